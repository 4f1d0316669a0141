/*
This file contains conversions between on-chain token amounts (big integers in the token's
smallest unit) and the float64 quantities the decision engine works with.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

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

// MaxPrecision is the largest number of token decimals supported by the legacy decimal type.
const MaxPrecision = 18

func validatePrecision(precision int) error {
	if precision < 0 || precision > MaxPrecision {
		return fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidPrecision, precision, MaxPrecision)
	}
	return nil
}

// SDKIntToFloat64 converts a raw token amount to a float64 quantity in whole tokens
func SDKIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if err := validatePrecision(precision); err != nil {
		return 0, err
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	result := sdkmath.LegacyNewDecFromInt(amount).QuoInt(sdkmath.NewIntWithDecimal(1, precision))
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// BigIntToFloat64 is SDKIntToFloat64 for values returned by the chain client
func BigIntToFloat64(amount *big.Int, precision int) (float64, error) {
	if amount == nil {
		return 0, ErrAmountNil
	}
	return SDKIntToFloat64(sdkmath.NewIntFromBigInt(amount), precision)
}

// Float64ToSDKInt converts a whole-token quantity to the token's smallest unit, truncating.
func Float64ToSDKInt(amount float64, precision int) (sdkmath.Int, error) {
	if err := validatePrecision(precision); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if amount == 0 {
		return sdkmath.ZeroInt(), nil
	}

	// Fixed 18-digit formatting fits LegacyDec; digits below precision are dropped by the truncation
	amountStr := fmt.Sprintf("%.*f", MaxPrecision, amount)

	decAmount, err := sdkmath.LegacyNewDecFromStr(amountStr)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: failed to create decimal from string: %w", ErrConversionFailed, err)
	}

	result := decAmount.MulInt(sdkmath.NewIntWithDecimal(1, precision)).TruncateInt()
	if result.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}

	return result, nil
}

// ParseRawAmount parses a base-10 integer amount such as a configured minimum receive quantity.
// An empty string is zero.
func ParseRawAmount(s string) (sdkmath.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sdkmath.ZeroInt(), nil
	}
	amount, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q is not an integer", ErrConversionFailed, s)
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return amount, nil
}

// ParseTokenAmount parses a decimal token quantity ("1.5") into smallest units.
func ParseTokenAmount(s string, precision int) (sdkmath.Int, error) {
	if err := validatePrecision(precision); err != nil {
		return sdkmath.ZeroInt(), err
	}
	dec, err := sdkmath.LegacyNewDecFromStr(strings.TrimSpace(s))
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if dec.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return dec.MulInt(sdkmath.NewIntWithDecimal(1, precision)).TruncateInt(), nil
}
