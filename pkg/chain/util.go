package chain

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ToBaseUnits converts a display amount (e.g. NTRN) into base units (untrn)
// by shifting it by decimals places.
//
// Supported input types for iamount: string, float64, int64, decimal.Decimal,
// *decimal.Decimal. Amounts that are negative or finer than one base unit are
// rejected.
func ToBaseUnits(iamount any, decimals int32) (*big.Int, error) {
	var amount decimal.Decimal
	switch v := iamount.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			zap.L().Error("failed to convert string to decimal", zap.String("amount", v), zap.Error(err))
			return nil, fmt.Errorf("invalid amount %q: %w", v, err)
		}
		amount = d
	case float64:
		amount = decimal.NewFromFloat(v)
	case int64:
		amount = decimal.NewFromInt(v)
	case decimal.Decimal:
		amount = v
	case *decimal.Decimal:
		if v == nil {
			return nil, fmt.Errorf("nil amount")
		}
		amount = *v
	default:
		return nil, fmt.Errorf("unsupported amount type %T", iamount)
	}

	if amount.IsNegative() {
		return nil, fmt.Errorf("amount %s is negative", amount)
	}
	shifted := amount.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FromBaseUnits converts a base-unit amount into display units with decimals
// digits of precision.
//
// Supported input types for ivalue: string, *big.Int, sdkmath.Int,
// sdkmath.Uint, uint64, int. Any other type results in decimal.Zero and logs
// an error.
func FromBaseUnits(ivalue any, decimals int32) decimal.Decimal {
	value := new(big.Int)
	switch v := ivalue.(type) {
	case string:
		if _, ok := value.SetString(v, 10); !ok {
			zap.L().Error("failed to parse base amount", zap.String("amount", v))
			return decimal.Zero
		}
	case *big.Int:
		if v == nil {
			return decimal.Zero
		}
		value.Set(v)
	case sdkmath.Int:
		value = v.BigInt()
	case sdkmath.Uint:
		value = v.BigInt()
	case uint64:
		value.SetUint64(v)
	case int:
		value.SetInt64(int64(v))
	default:
		zap.L().Error("unsupported type", zap.String("type", fmt.Sprintf("%T", ivalue)))
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -decimals)
}

// FormatAmount renders a base-unit amount with exactly decimals fraction
// digits, e.g. "1500000" with 6 decimals gives "1.500000".
func FormatAmount(base string, decimals int32) string {
	return FromBaseUnits(base, decimals).StringFixed(decimals)
}
