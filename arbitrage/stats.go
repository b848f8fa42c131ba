package arbitrage

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Stats are process-wide running totals. They are not persisted across restarts.
type Stats struct {
	OpportunitiesFound uint64
	TradesExecuted     uint64
	FailedTrades       uint64
	TotalProfit        decimal.Decimal
}

// runningStats is written only by the engine loop, the lock makes Stats() safe from other goroutines
type runningStats struct {
	mu sync.RWMutex
	s  Stats
}

func (r *runningStats) addFound(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.OpportunitiesFound += uint64(n)
}

func (r *runningStats) addResult(res *ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res.Success {
		r.s.TradesExecuted++
		r.s.TotalProfit = r.s.TotalProfit.Add(res.ExpectedProfit)
	} else {
		r.s.FailedTrades++
	}
}

func (r *runningStats) snapshot() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s
}
