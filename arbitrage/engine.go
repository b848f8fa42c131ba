package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flashbots/dex-arb-bot/metrics"
	"github.com/flashbots/dex-arb-bot/venue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type State int

const (
	StateScanning State = iota
	StateGated
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateGated:
		return "gated"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

type EngineOpts struct {
	Log      *zap.Logger
	Config   Config
	Eth      EthClient
	Venues   *venue.Registry
	Pairs    []Pair
	Executor Executor
	Sinks    []ResultSink
	// Sizer defaults to a BisectionSizer built from Config
	Sizer TradeSizer
	// BackOff is the delay policy of the backoff state, constant ErrorBackoff by default
	BackOff backoff.BackOff
}

// Engine is the monitor loop. Passes never overlap: one pass scans every pair, then validates and
// executes the candidates one by one, then sleeps.
type Engine struct {
	log *zap.Logger
	cfg Config
	eth EthClient

	pairs      []Pair
	aggregator *Aggregator
	analyzer   *Analyzer
	guard      *Guard
	executor   Executor
	sinks      []ResultSink

	backoff backoff.BackOff
	stats   runningStats
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewEngine(opts EngineOpts) *Engine {
	log := opts.Log.Named("engine")
	sizer := opts.Sizer
	if sizer == nil {
		sizer = NewBisectionSizer(opts.Config)
	}
	bo := opts.BackOff
	if bo == nil {
		bo = backoff.NewConstantBackOff(opts.Config.ErrorBackoff)
	}

	aggregator := NewAggregator(opts.Log, opts.Venues, opts.Config)
	return &Engine{
		log:        log,
		cfg:        opts.Config,
		eth:        opts.Eth,
		pairs:      opts.Pairs,
		aggregator: aggregator,
		analyzer:   NewAnalyzer(opts.Log, opts.Venues, sizer, opts.Config),
		guard:      NewGuard(opts.Eth, aggregator, opts.Config),
		executor:   opts.Executor,
		sinks:      opts.Sinks,
		backoff:    bo,
		sleep:      sleepCtx,
	}
}

func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// Run loops until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("Starting price monitoring", zap.Int("pairs", len(e.pairs)), zap.Int("venues", e.aggregator.venues.Len()))
	for {
		state, delay := e.ScanOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.log.Debug("Pass finished", zap.Stringer("next", state), zap.Duration("sleep", delay))
		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// ScanOnce runs one pass and returns the state it ended in and how long to sleep before the next pass.
func (e *Engine) ScanOnce(ctx context.Context) (state State, delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Recovered from panic in monitoring loop", zap.Any("panic", r), zap.Stack("stack"))
			metrics.IncLoopErrors()
			state, delay = StateBackoff, e.nextBackOff()
		}
	}()

	gasCtx, cancel := withTimeout(ctx, e.cfg.NodeTimeout)
	gasPrice, err := e.eth.SuggestGasPrice(gasCtx)
	cancel()
	if err != nil {
		return e.fail(errors.Join(ErrNodeRead, err))
	}
	if gasPrice.Cmp(e.cfg.MaxGasPrice) > 0 {
		e.log.Info("Gas price too high", zap.String("gasPriceGwei", formatUnits(gasPrice, "gwei")),
			zap.String("maxGasPriceGwei", formatUnits(e.cfg.MaxGasPrice, "gwei")))
		metrics.IncGasGated()
		return StateGated, e.cfg.GasCooldown
	}

	if err := e.scan(ctx, gasPrice); err != nil {
		return e.fail(err)
	}
	e.backoff.Reset()
	return StateScanning, e.cfg.PollInterval
}

func (e *Engine) fail(err error) (State, time.Duration) {
	e.log.Error("Error in monitoring loop", zap.Error(err))
	metrics.IncLoopErrors()
	return StateBackoff, e.nextBackOff()
}

func (e *Engine) nextBackOff() time.Duration {
	d := e.backoff.NextBackOff()
	if d == backoff.Stop {
		return e.cfg.ErrorBackoff
	}
	return d
}

type pairScan struct {
	snapshot      *PriceSnapshot
	fresh         bool
	opportunities []*Opportunity
}

func (e *Engine) scan(ctx context.Context, gasPrice *big.Int) error {
	startAt := time.Now()
	defer func() {
		metrics.RecordScanDuration(time.Since(startAt).Milliseconds())
	}()

	scans := make([]pairScan, len(e.pairs))
	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.PairConcurrency > 0 {
		g.SetLimit(e.cfg.PairConcurrency)
	}
	for i, pair := range e.pairs {
		i, pair := i, pair
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: pair %s: %v", ErrScanPanic, pair.String(), r)
				}
			}()
			snap, cached := e.aggregator.Lookup(pair)
			if !cached {
				snap = e.aggregator.Collect(gctx, pair)
			}
			scans[i] = pairScan{
				snapshot:      snap,
				fresh:         !cached,
				opportunities: e.analyzer.Analyze(gctx, pair, snap, gasPrice),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var candidates []*Opportunity
	for i, s := range scans {
		if s.fresh {
			e.aggregator.Commit(e.pairs[i], s.snapshot)
		}
		candidates = append(candidates, s.opportunities...)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ExpectedProfit.GreaterThan(candidates[j].ExpectedProfit)
	})
	e.stats.addFound(len(candidates))
	metrics.IncOpportunitiesFound(len(candidates))

	for _, opp := range candidates {
		if err := e.guard.Validate(ctx, opp); err != nil {
			e.log.Info("Opportunity rejected", zap.String("pair", opp.Pair.String()),
				zap.String("source", opp.SourceVenue), zap.String("target", opp.TargetVenue), zap.Error(err))
			metrics.IncValidationRejected(rejectionReason(err))
			continue
		}
		e.record(ctx, e.executor.Submit(ctx, opp))
	}

	stats := e.stats.snapshot()
	e.log.Info("Stats", zap.Uint64("opportunitiesFound", stats.OpportunitiesFound),
		zap.Uint64("tradesExecuted", stats.TradesExecuted), zap.Uint64("failedTrades", stats.FailedTrades),
		zap.String("totalProfit", stats.TotalProfit.String()))
	return nil
}

func (e *Engine) record(ctx context.Context, res *ExecutionResult) {
	e.stats.addResult(res)
	if res.Success {
		metrics.IncTradesExecuted()
		metrics.AddProfit(res.ExpectedProfit.InexactFloat64())
		e.log.Info("Successfully executed arbitrage", zap.String("pair", res.Pair),
			zap.String("profit", res.ExpectedProfit.String()), zap.String("bundle", res.BundleHash.Hex()))
	} else {
		metrics.IncTradesFailed()
		e.log.Warn("Failed to execute arbitrage", zap.String("pair", res.Pair),
			zap.String("reason", string(res.Reason)), zap.String("error", res.Error))
	}

	for _, sink := range e.sinks {
		if err := sink.RecordExecution(ctx, res); err != nil {
			e.log.Warn("Failed to record execution result", zap.Error(err))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
