package venue

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StableSwapVenue is the adapter slot for Curve-style stable-swap pools.
//
// Quoting a stable-swap pool needs a registry lookup (registry -> pool -> coin indexes -> get_dy).
// That path has never been wired, so every quote fails with ErrAdapterUnavailable and the venue
// is excluded from snapshots like any other failed venue.
type StableSwapVenue struct {
	name     string
	registry common.Address
}

func NewStableSwapVenue(name string, registry common.Address) *StableSwapVenue {
	return &StableSwapVenue{
		name:     name,
		registry: registry,
	}
}

func (v *StableSwapVenue) Name() string {
	return v.name
}

func (v *StableSwapVenue) AmountOut(_ context.Context, _ *big.Int, _, _ common.Address) (*big.Int, error) {
	return nil, fmt.Errorf("%w: %s: stable-swap pool lookup via registry %s is not initialized", ErrAdapterUnavailable, v.name, v.registry.Hex())
}
