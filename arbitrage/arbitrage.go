// Package arbitrage implements cross-venue arbitrage discovery and execution.
//
// Data flow:
//
//	Engine (monitor loop)
//	-> gas gate (SuggestGasPrice vs MaxGasPrice)
//	-> Aggregator, per pair, probe quotes fanned out to every venue, snapshot cached with a TTL
//	-> Analyzer, every ordered venue pair, sized by the TradeSizer, costed with flash-loan fee and gas
//	-> Guard, re-checks profit against current gas and re-fetches prices for drift
//	-> Submitter, signs one executeArbitrage call and sends it as a bundle to the relay
//	-> ResultSink (redis feed, postgres journal), running Stats and metrics
//
// Only the goroutine running Engine.Run writes the price cache and the statistics. Fan-out workers
// return values and the orchestrating call site commits them.
package arbitrage

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/params"
	"github.com/shopspring/decimal"
)

type Config struct {
	// CacheTTL is how long a price snapshot stays valid
	CacheTTL time.Duration
	// QuoteTimeout bounds every single venue call
	QuoteTimeout time.Duration
	// NodeTimeout bounds every gas price, nonce and block number read
	NodeTimeout      time.Duration
	VenueConcurrency int
	PairConcurrency  int

	MinProfit decimal.Decimal
	// FlashLoanFee is a rate, 9 bps is 0.0009
	FlashLoanFee     decimal.Decimal
	BaseGas          uint64
	GasMarginPercent uint64
	MaxGasPrice      *big.Int

	// trade size search range, in whole units of the pair's base token
	MinTradeAmount   decimal.Decimal
	MaxTradeAmount   decimal.Decimal
	ProbeDecrement   decimal.Decimal
	SearchIterations int

	// PriceTolerance is the maximum relative price move between discovery and execution
	PriceTolerance decimal.Decimal
	BundleValidity time.Duration

	PollInterval time.Duration
	GasCooldown  time.Duration
	ErrorBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		CacheTTL:         5 * time.Second,
		QuoteTimeout:     2 * time.Second,
		NodeTimeout:      2 * time.Second,
		VenueConcurrency: 8,
		PairConcurrency:  4,
		MinProfit:        decimal.RequireFromString("0.01"),
		FlashLoanFee:     FeeFromBps(9),
		BaseGas:          300_000,
		GasMarginPercent: 20,
		MaxGasPrice:      new(big.Int).Mul(big.NewInt(100), big.NewInt(params.GWei)),
		MinTradeAmount:   decimal.RequireFromString("0.1"),
		MaxTradeAmount:   decimal.NewFromInt(100),
		ProbeDecrement:   decimal.RequireFromString("0.1"),
		SearchIterations: 20,
		PriceTolerance:   decimal.RequireFromString("0.01"),
		BundleValidity:   120 * time.Second,
		PollInterval:     time.Second,
		GasCooldown:      10 * time.Second,
		ErrorBackoff:     5 * time.Second,
	}
}

// GasEstimate is the static per-trade gas estimate including the safety margin.
func (c Config) GasEstimate() uint64 {
	return c.BaseGas * (100 + c.GasMarginPercent) / 100
}

func FeeFromBps(bps int64) decimal.Decimal {
	return decimal.New(bps, -4)
}
