package arbitrage

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/params"
	"github.com/shopspring/decimal"
)

var (
	ethDivisor  = new(big.Float).SetUint64(params.Ether)
	gweiDivisor = new(big.Float).SetUint64(params.GWei)

	big10 = big.NewInt(10)
)

func formatUnits(value *big.Int, unit string) string {
	if value == nil {
		return ""
	}
	float := new(big.Float).SetInt(value)
	switch unit {
	case "eth":
		return float.Quo(float, ethDivisor).String()
	case "gwei":
		return float.Quo(float, gweiDivisor).String()
	default:
		return ""
	}
}

// unitAmount is one whole token in base units
func unitAmount(decimals int32) *big.Int {
	return new(big.Int).Exp(big10, big.NewInt(int64(decimals)), nil)
}

func toBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).BigInt()
}

func toWholeUnits(amount *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(amount, -decimals)
}

// GasCost converts gasEstimate at gasPrice wei into whole native units.
func GasCost(gasEstimate uint64, gasPrice *big.Int) decimal.Decimal {
	if gasPrice == nil {
		return decimal.Zero
	}
	wei := new(big.Int).Mul(new(big.Int).SetUint64(gasEstimate), gasPrice)
	return decimal.NewFromBigInt(wei, -18)
}

// NetProfit is (target - source) * amount minus the flash-loan fee on amount and the gas cost.
// amount is in whole Base units, prices in Quote per Base.
func NetProfit(amount, sourcePrice, targetPrice, flashLoanFee, gasCost decimal.Decimal) decimal.Decimal {
	gross := targetPrice.Sub(sourcePrice).Mul(amount)
	fee := amount.Mul(flashLoanFee).Mul(sourcePrice)
	return gross.Sub(fee).Sub(gasCost)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
