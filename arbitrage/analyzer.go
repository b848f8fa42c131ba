package arbitrage

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/flashbots/dex-arb-bot/venue"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Analyzer struct {
	log          *zap.Logger
	venues       *venue.Registry
	sizer        TradeSizer
	minProfit    decimal.Decimal
	flashLoanFee decimal.Decimal
	gasEstimate  uint64
}

func NewAnalyzer(log *zap.Logger, venues *venue.Registry, sizer TradeSizer, cfg Config) *Analyzer {
	return &Analyzer{
		log:          log.Named("analyzer"),
		venues:       venues,
		sizer:        sizer,
		minProfit:    cfg.MinProfit,
		flashLoanFee: cfg.FlashLoanFee,
		gasEstimate:  cfg.GasEstimate(),
	}
}

// Analyze compares every ordered pair of distinct venues present in snap and returns the candidates
// whose net profit exceeds the minimum profit. It has no side effects besides venue reads.
func (a *Analyzer) Analyze(ctx context.Context, pair Pair, snap *PriceSnapshot, gasPrice *big.Int) []*Opportunity {
	gasCost := GasCost(a.gasEstimate, gasPrice)

	var present []string
	for _, q := range a.venues.All() {
		if _, ok := snap.Price(q.Name()); ok {
			present = append(present, q.Name())
		}
	}

	var res []*Opportunity
	for _, source := range present {
		for _, target := range present {
			if source == target {
				continue
			}
			opp, err := a.evaluate(ctx, pair, snap, source, target, gasCost, gasPrice)
			if err != nil {
				if !errors.Is(err, ErrBelowThreshold) && !errors.Is(err, ErrNoProfitableAmount) {
					a.log.Debug("Skipping venue pair", zap.String("pair", pair.String()),
						zap.String("source", source), zap.String("target", target), zap.Error(err))
				}
				continue
			}
			res = append(res, opp)
		}
	}
	return res
}

func (a *Analyzer) evaluate(ctx context.Context, pair Pair, snap *PriceSnapshot, source, target string, gasCost decimal.Decimal, gasPrice *big.Int) (*Opportunity, error) {
	sourcePrice, ok := snap.Price(source)
	if !ok {
		return nil, ErrMissingPrice
	}
	targetPrice, ok := snap.Price(target)
	if !ok {
		return nil, ErrMissingPrice
	}
	sourceQuoter, ok := a.venues.Get(source)
	if !ok {
		return nil, ErrMissingPrice
	}
	targetQuoter, ok := a.venues.Get(target)
	if !ok {
		return nil, ErrMissingPrice
	}

	amount, err := a.sizer.OptimalAmount(ctx, pair, sourceQuoter, targetQuoter)
	if err != nil {
		return nil, err
	}

	net := NetProfit(toWholeUnits(amount, pair.Base.Decimals), sourcePrice, targetPrice, a.flashLoanFee, gasCost)
	if !net.GreaterThan(a.minProfit) {
		return nil, ErrBelowThreshold
	}

	return &Opportunity{
		Pair:           pair,
		SourceVenue:    source,
		TargetVenue:    target,
		AmountIn:       amount,
		ExpectedProfit: net,
		Path:           []string{source, target},
		GasEstimate:    a.gasEstimate,
		SourcePrice:    sourcePrice,
		TargetPrice:    targetPrice,
		GasPrice:       gasPrice,
		DiscoveredAt:   time.Now(),
	}, nil
}
