/*

This file contains the composition reader. It turns the SetToken's per-share real units into
quantities, values and percentages, with asset A priced at 1 and asset B priced by the oracle.

*/

package vault

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/ethmom/rebalancer/internal/config"
	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/utils"
)

// ReadComposition reads both components from the vault and values them at priceB.
// source selects getDefaultPositionRealUnit ("default") or getTotalComponentRealUnits ("total").
func ReadComposition(ctx context.Context, reader VaultReader, pair types.AssetPair, priceB float64, source string) (types.Composition, error) {
	if err := validatePrice(priceB); err != nil {
		return types.Composition{}, err
	}
	if reader == nil {
		return types.Composition{}, errors.Join(types.ErrCompositionRead, ErrInvalidConnection)
	}

	readUnits := reader.GetDefaultPositionRealUnit
	switch source {
	case "", config.CompositionSourceDefault:
	case config.CompositionSourceTotal:
		readUnits = reader.GetTotalComponentRealUnits
	default:
		return types.Composition{}, fmt.Errorf("%w: unknown composition source %q", types.ErrCompositionRead, source)
	}

	rawA, err := readUnits(ctx, pair.A.Address)
	if err != nil {
		return types.Composition{}, fmt.Errorf("%w: %s units: %w", types.ErrCompositionRead, pair.A.Symbol, err)
	}
	rawB, err := readUnits(ctx, pair.B.Address)
	if err != nil {
		return types.Composition{}, fmt.Errorf("%w: %s units: %w", types.ErrCompositionRead, pair.B.Symbol, err)
	}

	comp, err := ComputeComposition(pair, rawA, rawB, priceB)
	if err != nil {
		return types.Composition{}, err
	}

	vaultLogger.Info().
		Str("setToken", reader.Address().Hex()).
		Str("source", source).
		Float64("quantityA", comp.QuantityA).
		Float64("quantityB", comp.QuantityB).
		Float64("priceB", comp.PriceB).
		Float64("totalValue", comp.TotalValue).
		Float64("pctA", comp.PctA).
		Float64("pctB", comp.PctB).
		Msg("Vault composition read")

	return comp, nil
}

// ComputeComposition values raw real units. PctA and PctB are both 0 when the total is 0.
func ComputeComposition(pair types.AssetPair, rawA, rawB *big.Int, priceB float64) (types.Composition, error) {
	if err := validatePrice(priceB); err != nil {
		return types.Composition{}, err
	}
	if rawA == nil || rawB == nil {
		return types.Composition{}, fmt.Errorf("%w: real units missing", types.ErrCompositionRead)
	}
	if rawA.Sign() < 0 || rawB.Sign() < 0 {
		return types.Composition{}, fmt.Errorf("%w: negative real units (A=%s, B=%s)", types.ErrCompositionRead, rawA, rawB)
	}

	quantityA, err := utils.BigIntToFloat64(rawA, pair.A.Decimals)
	if err != nil {
		return types.Composition{}, fmt.Errorf("%w: %s quantity: %w", types.ErrCompositionRead, pair.A.Symbol, err)
	}
	quantityB, err := utils.BigIntToFloat64(rawB, pair.B.Decimals)
	if err != nil {
		return types.Composition{}, fmt.Errorf("%w: %s quantity: %w", types.ErrCompositionRead, pair.B.Symbol, err)
	}

	valueA := quantityA
	valueB := quantityB * priceB
	total := valueA + valueB

	comp := types.Composition{
		Pair:       pair,
		RawA:       sdkmath.NewIntFromBigInt(rawA),
		RawB:       sdkmath.NewIntFromBigInt(rawB),
		QuantityA:  quantityA,
		QuantityB:  quantityB,
		PriceB:     priceB,
		ValueA:     valueA,
		ValueB:     valueB,
		TotalValue: total,
	}
	if math.IsInf(total, 0) || math.IsNaN(total) {
		return types.Composition{}, fmt.Errorf("%w: total value is %f", types.ErrCompositionRead, total)
	}
	if total > 0 {
		comp.PctB = 100 * valueB / total
		comp.PctA = 100 - comp.PctB
	}
	return comp, nil
}

func validatePrice(priceB float64) error {
	if math.IsNaN(priceB) || math.IsInf(priceB, 0) || priceB <= 0 {
		return fmt.Errorf("%w: asset B price %f is not a positive finite number", types.ErrOracleUnavailable, priceB)
	}
	return nil
}
