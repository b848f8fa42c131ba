package arbitrage

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/dex-arb-bot/relay"
)

// EthClient is the subset of the node API used by the engine, satisfied by *ethclient.Client
type EthClient interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

type BundleSender interface {
	SendBundle(ctx context.Context, args *relay.SendBundleArgs) (*relay.SendBundleResponse, error)
}

type Executor interface {
	Submit(ctx context.Context, opp *Opportunity) *ExecutionResult
}

// ResultSink receives every execution result. Sinks are best-effort, an error is only logged.
type ResultSink interface {
	RecordExecution(ctx context.Context, result *ExecutionResult) error
}
