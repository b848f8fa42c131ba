package venue

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const swapKindGivenIn uint8 = 0

type balancerSingleSwap struct {
	PoolId   [32]byte //nolint:revive,stylecheck
	Kind     uint8
	AssetIn  common.Address
	AssetOut common.Address
	Amount   *big.Int
	UserData []byte
}

type balancerFundManagement struct {
	Sender              common.Address
	FromInternalBalance bool
	Recipient           common.Address
	ToInternalBalance   bool
}

// WeightedPoolVenue quotes Balancer V2 weighted pools with BalancerQueries.querySwap.
// Each supported pair needs a configured pool id.
type WeightedPoolVenue struct {
	name     string
	address  common.Address
	pools    map[string][32]byte
	contract *bind.BoundContract
}

func NewWeightedPoolVenue(name string, queries common.Address, pools map[string][32]byte, caller bind.ContractCaller) *WeightedPoolVenue {
	if pools == nil {
		pools = make(map[string][32]byte)
	}
	return &WeightedPoolVenue{
		name:     name,
		address:  queries,
		pools:    pools,
		contract: bind.NewBoundContract(queries, balancerQueriesABI, caller, nil, nil),
	}
}

func (v *WeightedPoolVenue) Name() string {
	return v.name
}

func (v *WeightedPoolVenue) AmountOut(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	poolID, ok := v.pools[PairKey(tokenIn, tokenOut)]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no pool for %s/%s", ErrUnsupportedPair, v.name, tokenIn.Hex(), tokenOut.Hex())
	}

	swap := balancerSingleSwap{
		PoolId:   poolID,
		Kind:     swapKindGivenIn,
		AssetIn:  tokenIn,
		AssetOut: tokenOut,
		Amount:   amountIn,
		UserData: []byte{},
	}
	// queries are simulated from the zero address, funds never move
	funds := balancerFundManagement{}

	var out []interface{}
	err := v.contract.Call(&bind.CallOpts{Context: ctx}, &out, "querySwap", swap, funds)
	if err != nil {
		return nil, errors.Join(ErrFetch, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s: querySwap returned %d values", ErrDecode, v.name, len(out))
	}
	amount, ok := out[0].(*big.Int)
	if !ok || amount == nil {
		return nil, fmt.Errorf("%w: %s: unexpected querySwap output", ErrDecode, v.name)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s: zero output", ErrUnsupportedPair, v.name)
	}
	return amount, nil
}
