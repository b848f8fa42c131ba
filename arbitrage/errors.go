package arbitrage

import "errors"

var (
	ErrNoProfitableAmount = errors.New("no profitable trade amount in range")
	ErrSimulation         = errors.New("trade simulation failed")
	ErrMissingPrice       = errors.New("missing venue price")

	ErrBelowThreshold   = errors.New("profit below threshold")
	ErrGasExceedsProfit = errors.New("gas cost exceeds expected profit")
	ErrStalePrice       = errors.New("price moved since discovery")
	ErrVenueMissing     = errors.New("venue missing from fresh snapshot")

	ErrNodeRead = errors.New("node read failed")
	ErrBuildTx  = errors.New("failed to build transaction")
	ErrSigning  = errors.New("failed to sign transaction")

	ErrScanPanic = errors.New("panic during scan")
)
