package arbitrage

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGuardFixture(gasPrice *big.Int) (*Guard, *fakeEth, *fakeQuoter, *fakeQuoter) {
	cfg := DefaultConfig()
	cfg.NodeTimeout = 100 * time.Millisecond
	source := newFakeQuoter("uniswap", weth, "2000")
	target := newFakeQuoter("sushiswap", weth, "2020")
	eth := &fakeEth{gasPrice: gasPrice}
	agg := NewAggregator(zap.NewNop(), mustRegistry(source, target), cfg)
	return NewGuard(eth, agg, cfg), eth, source, target
}

func testOpportunity(profit string, gasPrice *big.Int) *Opportunity {
	return &Opportunity{
		Pair:           wethUsdc,
		SourceVenue:    "uniswap",
		TargetVenue:    "sushiswap",
		AmountIn:       toBaseUnits(dec("10"), 18),
		ExpectedProfit: dec(profit),
		Path:           []string{"uniswap", "sushiswap"},
		GasEstimate:    360_000,
		SourcePrice:    dec("2000"),
		TargetPrice:    dec("2020"),
		GasPrice:       gasPrice,
		DiscoveredAt:   time.Now(),
	}
}

func TestGuardValidate(t *testing.T) {
	testCases := []struct {
		name        string
		opp         *Opportunity
		gasNow      *big.Int
		sourceNow   string
		targetNow   string
		disableDown bool
		err         error
		reason      string
	}{
		{
			name:      "unchanged",
			opp:       testOpportunity("181.982", gwei(50)),
			gasNow:    gwei(50),
			sourceNow: "2000",
			targetNow: "2020",
		},
		{
			name:      "source moved exactly one percent",
			opp:       testOpportunity("181.982", gwei(50)),
			gasNow:    gwei(50),
			sourceNow: "2020",
			targetNow: "2020",
		},
		{
			name:      "target moved down exactly one percent",
			opp:       testOpportunity("181.982", gwei(50)),
			gasNow:    gwei(50),
			sourceNow: "2000",
			targetNow: "1999.8",
		},
		{
			name:      "source moved more than one percent",
			opp:       testOpportunity("181.982", gwei(50)),
			gasNow:    gwei(50),
			sourceNow: "2020.2",
			targetNow: "2020",
			err:       ErrStalePrice,
			reason:    "stale_price",
		},
		{
			name:      "target moved more than one percent",
			opp:       testOpportunity("181.982", gwei(50)),
			gasNow:    gwei(50),
			sourceNow: "2000",
			targetNow: "1999.7",
			err:       ErrStalePrice,
			reason:    "stale_price",
		},
		{
			name:   "expected profit at threshold",
			opp:    testOpportunity("0.01", gwei(50)),
			gasNow: gwei(50),
			err:    ErrBelowThreshold,
			reason: "below_threshold",
		},
		{
			// 0.5 + 0.0036 - 0.72 at 2000 gwei
			name:   "gas went up",
			opp:    testOpportunity("0.5", gwei(10)),
			gasNow: gwei(2000),
			err:    ErrBelowThreshold,
			reason: "below_threshold",
		},
		{
			// net now 1 + 1.8 - 1.08 stays above threshold, but gas 1.08 >= 1
			name:   "gas meets expected profit",
			opp:    testOpportunity("1", gwei(5000)),
			gasNow: gwei(3000),
			err:    ErrGasExceedsProfit,
			reason: "gas_exceeds_profit",
		},
		{
			name:        "venue gone",
			opp:         testOpportunity("181.982", gwei(50)),
			gasNow:      gwei(50),
			sourceNow:   "2000",
			targetNow:   "2020",
			disableDown: true,
			err:         ErrVenueMissing,
			reason:      "venue_missing",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			guard, _, source, target := newGuardFixture(tc.gasNow)
			if tc.sourceNow != "" {
				source.setPrice(weth, tc.sourceNow)
			}
			if tc.targetNow != "" {
				target.setPrice(weth, tc.targetNow)
			}
			if tc.disableDown {
				target.err = errVenueDown
			}

			err := guard.Validate(context.Background(), tc.opp)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
			require.Equal(t, tc.reason, rejectionReason(err))
		})
	}
}

func TestGuardRejectsOnNodeError(t *testing.T) {
	guard, eth, source, _ := newGuardFixture(gwei(50))
	eth.gasErr = errVenueDown

	err := guard.Validate(context.Background(), testOpportunity("181.982", gwei(50)))
	require.ErrorIs(t, err, ErrNodeRead)
	require.Equal(t, "node_read", rejectionReason(err))
	require.Equal(t, int64(0), source.calls.Load())
}

func TestGuardRefreshesCache(t *testing.T) {
	guard, _, source, _ := newGuardFixture(gwei(50))
	opp := testOpportunity("181.982", gwei(50))

	require.NoError(t, guard.Validate(context.Background(), opp))
	require.NoError(t, guard.Validate(context.Background(), opp))
	// every validation queries the venues again
	require.Equal(t, int64(2), source.calls.Load())

	snap, ok := guard.aggregator.Lookup(wethUsdc)
	require.True(t, ok)
	require.Equal(t, 2, snap.Len())
}

func TestGuardRejectsOnHungNode(t *testing.T) {
	guard, eth, source, _ := newGuardFixture(gwei(50))
	eth.hang = true

	start := time.Now()
	err := guard.Validate(context.Background(), testOpportunity("181.982", gwei(50)))
	require.ErrorIs(t, err, ErrNodeRead)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, int64(0), source.calls.Load())
}
