/*
Display-scale conversions for API responses. Internal amounts are sdkmath.Int
on fixed scales (1e18 for USD values, the asset's native decimals for token
amounts); handlers convert them to floats for human-readable output only, never
for accounting.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// usdDecimals is the fixed-point scale of internal USD values.
const usdDecimals = 18

// DisplayUSD converts a 1e18 fixed-point USD value to a float for display.
func DisplayUSD(valueUsd sdkmath.Int) (float64, error) {
	return toDisplay(valueUsd, usdDecimals)
}

// DisplayAmount converts a native token amount to a float using the asset's
// listed decimals.
func DisplayAmount(amount sdkmath.Int, decimals uint8) (float64, error) {
	return toDisplay(amount, int(decimals))
}

func toDisplay(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromInt(amount)
	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < precision; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	result := decAmount.Quo(factor)
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}
