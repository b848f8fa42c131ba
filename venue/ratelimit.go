package venue

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// RateLimitedQuoter makes every AmountOut call wait on a limiter that can be shared between venues
// hitting the same node.
type RateLimitedQuoter struct {
	Quoter
	limiter *rate.Limiter
}

func RateLimited(q Quoter, limiter *rate.Limiter) *RateLimitedQuoter {
	return &RateLimitedQuoter{
		Quoter:  q,
		limiter: limiter,
	}
}

func (q *RateLimitedQuoter) AmountOut(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	if err := q.limiter.Wait(ctx); err != nil {
		return nil, errors.Join(ErrFetch, err)
	}
	return q.Quoter.AmountOut(ctx, amountIn, tokenIn, tokenOut)
}
