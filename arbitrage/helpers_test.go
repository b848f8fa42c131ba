package arbitrage

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/flashbots/dex-arb-bot/venue"
	"github.com/shopspring/decimal"
)

var (
	weth = Token{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18}
	usdc = Token{Symbol: "USDC", Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6}
	wbtc = Token{Symbol: "WBTC", Address: common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), Decimals: 8}

	wethUsdc = Pair{Base: weth, Quote: usdc}
	wbtcUsdc = Pair{Base: wbtc, Quote: usdc}

	testTokens = map[common.Address]Token{weth.Address: weth, usdc.Address: usdc, wbtc.Address: wbtc}

	errVenueDown = errors.New("venue down")
)

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(params.GWei))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeQuoter prices every base token at a fixed number of quote units, in both directions
type fakeQuoter struct {
	name  string
	calls atomic.Int64
	err   error

	mu     sync.Mutex
	prices map[common.Address]decimal.Decimal

	block func(ctx context.Context) error
}

func newFakeQuoter(name string, base Token, price string) *fakeQuoter {
	return &fakeQuoter{
		name:   name,
		prices: map[common.Address]decimal.Decimal{base.Address: dec(price)},
	}
}

func (q *fakeQuoter) setPrice(base Token, price string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prices[base.Address] = dec(price)
}

func (q *fakeQuoter) Name() string {
	return q.name
}

func (q *fakeQuoter) AmountOut(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	q.calls.Add(1)
	if q.block != nil {
		if err := q.block(ctx); err != nil {
			return nil, err
		}
	}
	if q.err != nil {
		return nil, q.err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	in, out := testTokens[tokenIn], testTokens[tokenOut]
	amount := decimal.NewFromBigInt(amountIn, -in.Decimals)
	if price, ok := q.prices[tokenIn]; ok {
		return amount.Mul(price).Shift(out.Decimals).BigInt(), nil
	}
	if price, ok := q.prices[tokenOut]; ok {
		return amount.Div(price).Shift(out.Decimals).BigInt(), nil
	}
	return nil, venue.ErrUnsupportedPair
}

func mustRegistry(quoters ...venue.Quoter) *venue.Registry {
	r, err := venue.NewRegistry(quoters...)
	if err != nil {
		panic(err)
	}
	return r
}

type fakeEth struct {
	mu        sync.Mutex
	gasPrice  *big.Int
	gasErr    error
	block     uint64
	nonce     uint64
	nonceErr  error
	gasCalls  int
	nonceCall int
	// hang makes every read wait until its context is done
	hang bool
}

func (f *fakeEth) setGasPrice(p *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gasPrice = p
}

func (f *fakeEth) wait(ctx context.Context) error {
	f.mu.Lock()
	hang := f.hang
	f.mu.Unlock()
	if !hang {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeEth) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gasCalls++
	if f.gasErr != nil {
		return nil, f.gasErr
	}
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeEth) BlockNumber(ctx context.Context) (uint64, error) {
	if err := f.wait(ctx); err != nil {
		return 0, err
	}
	return f.block, nil
}

func (f *fakeEth) NonceAt(ctx context.Context, _ common.Address, _ *big.Int) (uint64, error) {
	if err := f.wait(ctx); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCall++
	return f.nonce, f.nonceErr
}

// fixedSizer always returns the same amount in whole base units
type fixedSizer struct {
	amount decimal.Decimal
	err    error
	calls  atomic.Int64
}

func (s *fixedSizer) OptimalAmount(_ context.Context, pair Pair, _, _ venue.Quoter) (*big.Int, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return toBaseUnits(s.amount, pair.Base.Decimals), nil
}

type recordingExecutor struct {
	opps    []*Opportunity
	success bool
	panics  bool
}

func (e *recordingExecutor) Submit(_ context.Context, opp *Opportunity) *ExecutionResult {
	if e.panics {
		panic("executor exploded")
	}
	e.opps = append(e.opps, opp)
	res := newExecutionResult(opp, opp.DiscoveredAt)
	if e.success {
		res.Success = true
		return res
	}
	return res.fail(ErrSigning)
}

type recordingSink struct {
	results []*ExecutionResult
	err     error
}

func (s *recordingSink) RecordExecution(_ context.Context, result *ExecutionResult) error {
	s.results = append(s.results, result)
	return s.err
}
