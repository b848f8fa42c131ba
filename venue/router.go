package venue

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// RouterVenue quotes through a UniswapV2-style router using getAmountsOut over a direct path.
type RouterVenue struct {
	name     string
	address  common.Address
	contract *bind.BoundContract
}

func NewRouterVenue(name string, address common.Address, caller bind.ContractCaller) *RouterVenue {
	return &RouterVenue{
		name:     name,
		address:  address,
		contract: bind.NewBoundContract(address, routerABI, caller, nil, nil),
	}
}

func (v *RouterVenue) Name() string {
	return v.name
}

func (v *RouterVenue) AmountOut(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	var out []interface{}
	err := v.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAmountsOut", amountIn, []common.Address{tokenIn, tokenOut})
	if err != nil {
		return nil, errors.Join(ErrFetch, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s: getAmountsOut returned %d values", ErrDecode, v.name, len(out))
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) != 2 {
		return nil, fmt.Errorf("%w: %s: unexpected getAmountsOut output", ErrDecode, v.name)
	}
	if amounts[1] == nil || amounts[1].Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s: zero output", ErrUnsupportedPair, v.name)
	}
	return amounts[1], nil
}
