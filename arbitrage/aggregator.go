package arbitrage

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/flashbots/dex-arb-bot/metrics"
	"github.com/flashbots/dex-arb-bot/ttlcache"
	"github.com/flashbots/dex-arb-bot/venue"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Aggregator collects probe quotes for a pair from every venue and caches the resulting snapshot.
//
// Lookup and Collect never write the cache so they can run from fan-out workers. Commit is the only
// write and must be called from the goroutine that owns the aggregator.
type Aggregator struct {
	log          *zap.Logger
	venues       *venue.Registry
	cache        *ttlcache.Cache[*PriceSnapshot]
	concurrency  int
	quoteTimeout time.Duration
}

func NewAggregator(log *zap.Logger, venues *venue.Registry, cfg Config) *Aggregator {
	concurrency := cfg.VenueConcurrency
	if concurrency <= 0 {
		concurrency = venues.Len()
	}
	return &Aggregator{
		log:          log.Named("aggregator"),
		venues:       venues,
		cache:        ttlcache.New[*PriceSnapshot](cfg.CacheTTL),
		concurrency:  concurrency,
		quoteTimeout: cfg.QuoteTimeout,
	}
}

// Lookup returns the cached snapshot for pair if it is inside the TTL and was quoted in the same direction.
func (a *Aggregator) Lookup(pair Pair) (*PriceSnapshot, bool) {
	snap, ok := a.cache.Get(pair.Key())
	if !ok {
		return nil, false
	}
	if snap.TokenIn != pair.Base.Address || time.Since(snap.CapturedAt) >= a.cache.TTL() {
		return nil, false
	}
	return snap, true
}

// Collect queries every venue concurrently and returns a new snapshot without caching it.
// Failed venues are logged and left out of the snapshot.
func (a *Aggregator) Collect(ctx context.Context, pair Pair) *PriceSnapshot {
	quoters := a.venues.All()
	prices := make([]*decimal.Decimal, len(quoters))
	probe := unitAmount(pair.Base.Decimals)

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, q := range quoters {
		i, q := i, q
		g.Go(func() error {
			price, err := a.probe(ctx, q, pair, probe)
			if err != nil {
				a.log.Warn("Failed to get venue price", zap.String("venue", q.Name()), zap.String("pair", pair.String()), zap.Error(err))
				metrics.IncVenueQuoteFailure(q.Name())
				return nil
			}
			prices[i] = &price
			return nil
		})
	}
	_ = g.Wait()

	snap := &PriceSnapshot{
		TokenIn:    pair.Base.Address,
		Prices:     make(map[string]decimal.Decimal, len(quoters)),
		CapturedAt: time.Now(),
	}
	for i, q := range quoters {
		if prices[i] != nil {
			snap.Prices[q.Name()] = *prices[i]
		}
	}
	return snap
}

func (a *Aggregator) Commit(pair Pair, snap *PriceSnapshot) {
	a.cache.Set(pair.Key(), snap)
}

// Snapshot returns the cached snapshot or collects and commits a new one.
func (a *Aggregator) Snapshot(ctx context.Context, pair Pair) *PriceSnapshot {
	if snap, ok := a.Lookup(pair); ok {
		return snap
	}
	return a.Refresh(ctx, pair)
}

// Refresh collects and commits a new snapshot regardless of the cache state.
func (a *Aggregator) Refresh(ctx context.Context, pair Pair) *PriceSnapshot {
	snap := a.Collect(ctx, pair)
	a.Commit(pair, snap)
	return snap
}

func (a *Aggregator) probe(ctx context.Context, q venue.Quoter, pair Pair, amountIn *big.Int) (price decimal.Decimal, err error) {
	defer func() {
		if r := recover(); r != nil {
			price, err = decimal.Zero, fmt.Errorf("%w: panic: %v", venue.ErrFetch, r)
		}
	}()

	ctx, cancel := withTimeout(ctx, a.quoteTimeout)
	defer cancel()

	out, err := q.AmountOut(ctx, amountIn, pair.Base.Address, pair.Quote.Address)
	if err != nil {
		return decimal.Zero, err
	}
	if out == nil || out.Sign() <= 0 {
		return decimal.Zero, venue.ErrDecode
	}
	return decimal.NewFromBigInt(out, -pair.Quote.Decimals), nil
}
