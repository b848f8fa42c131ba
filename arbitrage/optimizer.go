package arbitrage

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/flashbots/dex-arb-bot/venue"
	"github.com/shopspring/decimal"
)

// TradeSizer picks the input amount for a round trip Base -> Quote on source and Quote -> Base on target.
type TradeSizer interface {
	OptimalAmount(ctx context.Context, pair Pair, source, target venue.Quoter) (*big.Int, error)
}

// BisectionSizer narrows [min, max] for a fixed number of iterations. At every midpoint it compares
// the simulated profit with the profit one fixed decrement below and keeps the half that is still
// ascending, so it assumes a single profit peak in the range. The best midpoint seen is returned.
type BisectionSizer struct {
	min          decimal.Decimal
	max          decimal.Decimal
	decrement    decimal.Decimal
	iterations   int
	flashLoanFee decimal.Decimal
	quoteTimeout time.Duration
}

func NewBisectionSizer(cfg Config) *BisectionSizer {
	return &BisectionSizer{
		min:          cfg.MinTradeAmount,
		max:          cfg.MaxTradeAmount,
		decrement:    cfg.ProbeDecrement,
		iterations:   cfg.SearchIterations,
		flashLoanFee: cfg.FlashLoanFee,
		quoteTimeout: cfg.QuoteTimeout,
	}
}

func (s *BisectionSizer) OptimalAmount(ctx context.Context, pair Pair, source, target venue.Quoter) (*big.Int, error) {
	decimals := pair.Base.Decimals
	lo := toBaseUnits(s.min, decimals)
	hi := toBaseUnits(s.max, decimals)
	decrement := toBaseUnits(s.decrement, decimals)

	var best *big.Int
	bestProfit := decimal.Zero

	for i := 0; i < s.iterations; i++ {
		mid := new(big.Int).Add(lo, hi)
		mid.Rsh(mid, 1)

		profit, err := s.simulate(ctx, pair, source, target, mid)
		if err != nil {
			return nil, err
		}
		if profit.GreaterThan(bestProfit) {
			best, bestProfit = mid, profit
		}

		lowerProfit := decimal.Zero
		if lower := new(big.Int).Sub(mid, decrement); lower.Sign() > 0 {
			lowerProfit, err = s.simulate(ctx, pair, source, target, lower)
			if err != nil {
				return nil, err
			}
		}

		if lowerProfit.LessThan(profit) {
			lo = mid
		} else {
			hi = mid
		}
	}

	if best == nil {
		return nil, ErrNoProfitableAmount
	}
	return best, nil
}

// simulate returns the round trip profit in Base base units, net of the flash-loan fee on amount.
func (s *BisectionSizer) simulate(ctx context.Context, pair Pair, source, target venue.Quoter, amount *big.Int) (decimal.Decimal, error) {
	mid, err := s.quote(ctx, source, amount, pair.Base, pair.Quote)
	if err != nil {
		return decimal.Zero, err
	}
	back, err := s.quote(ctx, target, mid, pair.Quote, pair.Base)
	if err != nil {
		return decimal.Zero, err
	}

	in := decimal.NewFromBigInt(amount, 0)
	profit := decimal.NewFromBigInt(back, 0).Sub(in)
	return profit.Sub(in.Mul(s.flashLoanFee)), nil
}

func (s *BisectionSizer) quote(ctx context.Context, q venue.Quoter, amount *big.Int, in, out Token) (*big.Int, error) {
	ctx, cancel := withTimeout(ctx, s.quoteTimeout)
	defer cancel()

	res, err := q.AmountOut(ctx, amount, in.Address, out.Address)
	if err != nil {
		return nil, errors.Join(ErrSimulation, err)
	}
	if res == nil {
		return nil, errors.Join(ErrSimulation, venue.ErrDecode)
	}
	return res, nil
}
