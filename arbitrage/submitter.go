package arbitrage

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/flashbots/dex-arb-bot/relay"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
)

// ArbitrageContractABI is the entry point of the flash-loan arbitrage contract.
const ArbitrageContractABI = `[{"inputs":[{"internalType":"address","name":"token0","type":"address"},{"internalType":"address","name":"token1","type":"address"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"string","name":"sourceDex","type":"string"},{"internalType":"string","name":"targetDex","type":"string"},{"internalType":"uint256","name":"minProfit","type":"uint256"}],"name":"executeArbitrage","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

var arbitrageABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ArbitrageContractABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

type SubmitterOpts struct {
	Log            *zap.Logger
	Eth            EthClient
	Relay          BundleSender
	SigningKey     *ecdsa.PrivateKey
	ChainID        *big.Int
	Contract       common.Address
	BundleValidity time.Duration
	// NodeTimeout bounds the nonce, gas price and block number reads of one submission
	NodeTimeout time.Duration
}

// Submitter turns a validated opportunity into one signed executeArbitrage transaction and sends it
// to the relay as a single-transaction bundle targeting the next block. It never retries.
type Submitter struct {
	log         *zap.Logger
	eth         EthClient
	relay       BundleSender
	key         *ecdsa.PrivateKey
	from        common.Address
	signer      types.Signer
	chainID     *big.Int
	contract    common.Address
	validity    time.Duration
	nodeTimeout time.Duration
}

func NewSubmitter(opts SubmitterOpts) *Submitter {
	return &Submitter{
		log:         opts.Log.Named("submitter"),
		eth:         opts.Eth,
		relay:       opts.Relay,
		key:         opts.SigningKey,
		from:        crypto.PubkeyToAddress(opts.SigningKey.PublicKey),
		signer:      types.LatestSignerForChainID(opts.ChainID),
		chainID:     opts.ChainID,
		contract:    opts.Contract,
		validity:    opts.BundleValidity,
		nodeTimeout: opts.NodeTimeout,
	}
}

func (s *Submitter) Address() common.Address {
	return s.from
}

func (s *Submitter) Submit(ctx context.Context, opp *Opportunity) *ExecutionResult {
	now := time.Now()
	res := newExecutionResult(opp, now)

	tx, block, err := s.buildTx(ctx, opp)
	if err != nil {
		return res.fail(err)
	}
	res.TxHash = tx.Hash()
	res.BundleHash = bundleHash(tx.Hash())
	res.TargetBlock = block + 1

	rawTx, err := tx.MarshalBinary()
	if err != nil {
		return res.fail(errors.Join(ErrBuildTx, err))
	}

	args := &relay.SendBundleArgs{
		Txs:          []hexutil.Bytes{rawTx},
		BlockNumber:  hexutil.Uint64(res.TargetBlock),
		MinTimestamp: uint64(now.Unix()),
		MaxTimestamp: uint64(now.Add(s.validity).Unix()),
	}
	s.log.Debug("Sending bundle", zap.String("tx", res.TxHash.Hex()), zap.Uint64("block", res.TargetBlock),
		zap.String("pair", res.Pair), zap.String("source", res.SourceVenue), zap.String("target", res.TargetVenue))
	resp, err := s.relay.SendBundle(ctx, args)
	if err != nil {
		return res.fail(err)
	}
	if resp.BundleHash != (common.Hash{}) {
		res.BundleHash = resp.BundleHash
	}
	res.Success = true
	return res
}

func (s *Submitter) buildTx(ctx context.Context, opp *Opportunity) (*types.Transaction, uint64, error) {
	ctx, cancel := withTimeout(ctx, s.nodeTimeout)
	defer cancel()

	nonce, err := s.eth.NonceAt(ctx, s.from, nil)
	if err != nil {
		return nil, 0, errors.Join(ErrNodeRead, err)
	}
	gasPrice, err := s.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, 0, errors.Join(ErrNodeRead, err)
	}
	block, err := s.eth.BlockNumber(ctx)
	if err != nil {
		return nil, 0, errors.Join(ErrNodeRead, err)
	}

	data, err := encodeExecuteArbitrage(opp)
	if err != nil {
		return nil, 0, err
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: gasPrice,
		GasFeeCap: gasPrice,
		Gas:       opp.GasEstimate,
		To:        &s.contract,
		Value:     big.NewInt(0),
		Data:      data,
	})
	signed, err := types.SignTx(tx, s.signer, s.key)
	if err != nil {
		return nil, 0, errors.Join(ErrSigning, err)
	}
	return signed, block, nil
}

// encodeExecuteArbitrage passes the expected profit, in Quote base units, as the on-chain profit guard.
func encodeExecuteArbitrage(opp *Opportunity) ([]byte, error) {
	minProfit := toBaseUnits(opp.ExpectedProfit, opp.Pair.Quote.Decimals)
	if minProfit.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative profit guard %s", ErrBuildTx, opp.ExpectedProfit.String())
	}
	data, err := arbitrageABI.Pack("executeArbitrage",
		opp.Pair.Base.Address, opp.Pair.Quote.Address, opp.AmountIn, opp.SourceVenue, opp.TargetVenue, minProfit)
	if err != nil {
		return nil, errors.Join(ErrBuildTx, err)
	}
	return data, nil
}

// bundleHash is keccak256 over the concatenated tx hashes, the way relays identify a bundle.
func bundleHash(txHashes ...common.Hash) common.Hash {
	hasher := sha3.NewLegacyKeccak256()
	for _, h := range txHashes {
		hasher.Write(h.Bytes())
	}
	return common.BytesToHash(hasher.Sum(nil))
}

func (r *ExecutionResult) fail(err error) *ExecutionResult {
	r.Success = false
	r.Reason = reasonFor(err)
	r.Error = err.Error()
	return r
}

func reasonFor(err error) ReasonCode {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, relay.ErrRelayRejected), errors.Is(err, relay.ErrEmptyResult):
		return ReasonRelayRejected
	case errors.Is(err, relay.ErrRelayTransport):
		return ReasonRelayTransport
	case errors.Is(err, ErrSigning):
		return ReasonSigning
	case errors.Is(err, ErrBuildTx):
		return ReasonBuildTx
	case errors.Is(err, ErrNodeRead):
		return ReasonNodeRead
	default:
		return ReasonUnknown
	}
}
