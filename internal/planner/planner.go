package planner

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/ethmom/rebalancer/internal/logger"
	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/utils"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidTolerance  = errors.New("tolerance fraction is invalid")
	ErrInvalidTarget     = errors.New("target allocation is invalid")
	ErrInvalidPrice      = errors.New("asset B price must be positive and finite")
	ErrMathematicalError = errors.New("mathematical calculation error")
)

var decisionLogger = logger.GetForComponent("decision_engine")

// Decide compares the target allocation against the current composition and reports whether
// a trade is needed. A trade is required once the drift in asset B value reaches
// toleranceFraction * TotalValue. The boundary itself triggers.
func Decide(target types.TargetAllocation, current types.Composition, toleranceFraction float64) (types.Decision, error) {
	// ===== INPUT VALIDATION =====
	if err := validateInputs(target, current, toleranceFraction); err != nil {
		decisionLogger.Error().Err(err).Msg("Decision input validation failed")
		return types.Decision{}, err
	}

	total := current.TotalValue
	desiredValueB := target.PctB / 100.0 * total
	difference := desiredValueB - current.ValueB
	threshold := toleranceFraction * total

	if math.IsNaN(difference) || math.IsInf(difference, 0) {
		return types.Decision{}, fmt.Errorf("%w: difference is %f", ErrMathematicalError, difference)
	}

	decision := types.Decision{
		Direction:     types.DirectionNone,
		DesiredValueB: desiredValueB,
		Difference:    difference,
		Threshold:     threshold,
		NotionalRaw:   sdkmath.ZeroInt(),
	}

	if difference == 0 || math.Abs(difference) < threshold {
		logDecision(decisionLogger.Info(), decision, current).Msg("Allocation within tolerance, no trade required")
		return decision, nil
	}

	// ===== SIZE THE TRADE =====
	decision.Required = true
	var decimals int
	if difference > 0 {
		// Buy B with asset A, asset A is priced at 1
		decision.Direction = types.DirectionBuyB
		decision.Notional = difference
		decimals = current.Pair.A.Decimals
	} else {
		// Sell B for asset A
		decision.Direction = types.DirectionBuyA
		decision.Notional = -difference / current.PriceB
		decimals = current.Pair.B.Decimals
	}

	raw, err := utils.Float64ToSDKInt(decision.Notional, decimals)
	if err != nil {
		return types.Decision{}, fmt.Errorf("%w: notional %f: %w", ErrMathematicalError, decision.Notional, err)
	}
	decision.NotionalRaw = raw

	logDecision(decisionLogger.Info(), decision, current).
		Str("direction", string(decision.Direction)).
		Float64("notional", decision.Notional).
		Str("notionalRaw", decision.NotionalRaw.String()).
		Msg("Rebalance required")

	return decision, nil
}

// validateInputs performs validation of all decision inputs
func validateInputs(target types.TargetAllocation, current types.Composition, toleranceFraction float64) error {
	if math.IsNaN(current.TotalValue) || math.IsInf(current.TotalValue, 0) || current.TotalValue <= 0 {
		return fmt.Errorf("%w: total value is %f", types.ErrZeroPortfolioValue, current.TotalValue)
	}
	if math.IsNaN(toleranceFraction) || math.IsInf(toleranceFraction, 0) || toleranceFraction < 0 || toleranceFraction >= 1 {
		return fmt.Errorf("%w: %f (must be in [0, 1))", ErrInvalidTolerance, toleranceFraction)
	}
	if math.IsNaN(target.PctB) || target.PctB < 0 || target.PctB > 100 {
		return fmt.Errorf("%w: pctB %f", ErrInvalidTarget, target.PctB)
	}
	if math.IsNaN(current.ValueB) || math.IsInf(current.ValueB, 0) || current.ValueB < 0 {
		return fmt.Errorf("%w: value of asset B is %f", ErrMathematicalError, current.ValueB)
	}
	if math.IsNaN(current.PriceB) || math.IsInf(current.PriceB, 0) || current.PriceB <= 0 {
		return fmt.Errorf("%w: %w: %f", types.ErrOracleUnavailable, ErrInvalidPrice, current.PriceB)
	}
	return nil
}

func logDecision(e *zerolog.Event, d types.Decision, current types.Composition) *zerolog.Event {
	return e.
		Float64("totalValue", current.TotalValue).
		Float64("currentValueB", current.ValueB).
		Float64("desiredValueB", d.DesiredValueB).
		Float64("difference", d.Difference).
		Float64("threshold", d.Threshold)
}
