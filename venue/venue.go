// Package venue implements price quoting against on-chain trading venues.
//
// Every venue family exposes the same capability, Quoter.AmountOut. New venue families are added
// as new Quoter implementations and registered in Build.
package venue

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrFetch              = errors.New("venue request failed")
	ErrDecode             = errors.New("malformed venue response")
	ErrUnsupportedPair    = errors.New("pair not supported by venue")
	ErrAdapterUnavailable = errors.New("venue adapter not available")
	ErrUnknownKind        = errors.New("unknown venue kind")
	ErrDuplicateVenue     = errors.New("duplicate venue name")
)

type Kind string

const (
	KindRouter     Kind = "router"
	KindWeighted   Kind = "weighted"
	KindStableSwap Kind = "stableswap"
)

// Quoter returns the output amount a venue would give for amountIn of tokenIn swapped to tokenOut.
// Implementations must be side-effect free and safe for concurrent use.
type Quoter interface {
	Name() string
	AmountOut(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error)
}

// Spec describes how to reach one venue
type Spec struct {
	Name    string
	Kind    Kind
	Address common.Address
	// Pools maps PairKey(token0, token1) to a pool id, used by weighted pools only.
	Pools map[string][32]byte
}

// Build constructs the Quoter variant for spec.Kind.
func Build(spec Spec, caller bind.ContractCaller) (Quoter, error) { //nolint:ireturn
	switch spec.Kind {
	case KindRouter:
		return NewRouterVenue(spec.Name, spec.Address, caller), nil
	case KindWeighted:
		return NewWeightedPoolVenue(spec.Name, spec.Address, spec.Pools, caller), nil
	case KindStableSwap:
		return NewStableSwapVenue(spec.Name, spec.Address), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
}

// PairKey is the order-independent identity of a token pair.
func PairKey(a, b common.Address) string {
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	return a.Hex() + "-" + b.Hex()
}

// Registry keeps venues in configuration order.
type Registry struct {
	order  []Quoter
	byName map[string]Quoter
}

func NewRegistry(quoters ...Quoter) (*Registry, error) {
	r := &Registry{
		order:  make([]Quoter, 0, len(quoters)),
		byName: make(map[string]Quoter, len(quoters)),
	}
	for _, q := range quoters {
		if _, ok := r.byName[q.Name()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateVenue, q.Name())
		}
		r.order = append(r.order, q)
		r.byName[q.Name()] = q
	}
	return r, nil
}

func (r *Registry) Get(name string) (Quoter, bool) { //nolint:ireturn
	q, ok := r.byName[name]
	return q, ok
}

func (r *Registry) All() []Quoter {
	return r.order
}

func (r *Registry) Len() int {
	return len(r.order)
}
