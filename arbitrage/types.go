package arbitrage

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/dex-arb-bot/venue"
	"github.com/shopspring/decimal"
)

type Token struct {
	Symbol   string
	Address  common.Address
	Decimals int32
}

// Pair is quoted Base -> Quote. Cache identity ignores the order.
type Pair struct {
	Base  Token
	Quote Token
}

func (p Pair) Key() string {
	return venue.PairKey(p.Base.Address, p.Quote.Address)
}

func (p Pair) String() string {
	return p.Base.Symbol + "/" + p.Quote.Symbol
}

// PriceSnapshot maps venue name to the price of one whole Base unit in Quote units.
// Snapshots are never mutated after they are built.
type PriceSnapshot struct {
	TokenIn    common.Address
	Prices     map[string]decimal.Decimal
	CapturedAt time.Time
}

func (s *PriceSnapshot) Price(venueName string) (decimal.Decimal, bool) {
	p, ok := s.Prices[venueName]
	return p, ok
}

func (s *PriceSnapshot) Len() int {
	return len(s.Prices)
}

type Opportunity struct {
	Pair        Pair
	SourceVenue string
	TargetVenue string
	// AmountIn is in Base token base units
	AmountIn       *big.Int
	ExpectedProfit decimal.Decimal
	Path           []string
	GasEstimate    uint64

	// discovery-time inputs, re-checked before execution
	SourcePrice  decimal.Decimal
	TargetPrice  decimal.Decimal
	GasPrice     *big.Int
	DiscoveredAt time.Time
}

type ReasonCode string

const (
	ReasonNone           ReasonCode = ""
	ReasonNodeRead       ReasonCode = "node_read"
	ReasonBuildTx        ReasonCode = "build_tx"
	ReasonSigning        ReasonCode = "signing"
	ReasonRelayRejected  ReasonCode = "relay_rejected"
	ReasonRelayTransport ReasonCode = "relay_transport"
	ReasonTimeout        ReasonCode = "timeout"
	ReasonUnknown        ReasonCode = "unknown"
)

type ExecutionResult struct {
	Pair           string          `json:"pair"`
	SourceVenue    string          `json:"sourceVenue"`
	TargetVenue    string          `json:"targetVenue"`
	AmountIn       *big.Int        `json:"amountIn"`
	ExpectedProfit decimal.Decimal `json:"expectedProfit"`
	Success        bool            `json:"success"`
	Reason         ReasonCode      `json:"reason,omitempty"`
	Error          string          `json:"error,omitempty"`
	TxHash         common.Hash     `json:"txHash"`
	BundleHash     common.Hash     `json:"bundleHash"`
	TargetBlock    uint64          `json:"targetBlock"`
	SubmittedAt    time.Time       `json:"submittedAt"`
}

func newExecutionResult(opp *Opportunity, now time.Time) *ExecutionResult {
	return &ExecutionResult{
		Pair:           opp.Pair.String(),
		SourceVenue:    opp.SourceVenue,
		TargetVenue:    opp.TargetVenue,
		AmountIn:       opp.AmountIn,
		ExpectedProfit: opp.ExpectedProfit,
		SubmittedAt:    now,
	}
}
