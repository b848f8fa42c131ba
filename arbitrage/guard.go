package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Guard re-checks an opportunity right before execution. Any error it returns is a rejection.
type Guard struct {
	eth         GasPricer
	aggregator  *Aggregator
	minProfit   decimal.Decimal
	tolerance   decimal.Decimal
	nodeTimeout time.Duration
}

func NewGuard(eth GasPricer, aggregator *Aggregator, cfg Config) *Guard {
	return &Guard{
		eth:         eth,
		aggregator:  aggregator,
		minProfit:   cfg.MinProfit,
		tolerance:   cfg.PriceTolerance,
		nodeTimeout: cfg.NodeTimeout,
	}
}

func (g *Guard) Validate(ctx context.Context, opp *Opportunity) error {
	if !opp.ExpectedProfit.GreaterThan(g.minProfit) {
		return ErrBelowThreshold
	}

	gasCtx, cancel := withTimeout(ctx, g.nodeTimeout)
	gasPrice, err := g.eth.SuggestGasPrice(gasCtx)
	cancel()
	if err != nil {
		return errors.Join(ErrNodeRead, err)
	}
	gasCostNow := GasCost(opp.GasEstimate, gasPrice)

	// expected profit already paid gas at the discovery price, swap it for the current one
	netNow := opp.ExpectedProfit.Add(GasCost(opp.GasEstimate, opp.GasPrice)).Sub(gasCostNow)
	if !netNow.GreaterThan(g.minProfit) {
		return fmt.Errorf("%w: %s at current gas price", ErrBelowThreshold, netNow.String())
	}
	if gasCostNow.GreaterThanOrEqual(opp.ExpectedProfit) {
		return ErrGasExceedsProfit
	}

	snap := g.aggregator.Refresh(ctx, opp.Pair)
	if err := g.checkDrift(snap, opp.SourceVenue, opp.SourcePrice); err != nil {
		return err
	}
	return g.checkDrift(snap, opp.TargetVenue, opp.TargetPrice)
}

func (g *Guard) checkDrift(snap *PriceSnapshot, venueName string, discovered decimal.Decimal) error {
	current, ok := snap.Price(venueName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrVenueMissing, venueName)
	}
	if !discovered.IsPositive() {
		return fmt.Errorf("%w: %s has no discovery price", ErrStalePrice, venueName)
	}
	drift := current.Sub(discovered).Abs().Div(discovered)
	if drift.GreaterThan(g.tolerance) {
		return fmt.Errorf("%w: %s moved %s", ErrStalePrice, venueName, drift.StringFixed(4))
	}
	return nil
}

// rejectionReason is the metrics label for a Validate error
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrBelowThreshold):
		return "below_threshold"
	case errors.Is(err, ErrGasExceedsProfit):
		return "gas_exceeds_profit"
	case errors.Is(err, ErrStalePrice):
		return "stale_price"
	case errors.Is(err, ErrVenueMissing):
		return "venue_missing"
	case errors.Is(err, ErrNodeRead):
		return "node_read"
	default:
		return "other"
	}
}
