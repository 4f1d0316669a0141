/*

This file contains the momentum allocation table that turns a trend score into a target split
between asset A (USDC) and asset B (WETH).

*/

package analyzer

import (
	"github.com/ethmom/rebalancer/internal/logger"
	"github.com/ethmom/rebalancer/internal/types"
)

var allocationLogger = logger.GetForComponent("allocation_policy")

var (
	allAssetA = types.TargetAllocation{PctA: 100, PctB: 0}
	allAssetB = types.TargetAllocation{PctA: 0, PctB: 100}
	balanced  = types.TargetAllocation{PctA: 50, PctB: 50}
)

// DecideTargetAllocation maps a trend score to a target allocation using the fixed table.
// Scores outside the table fall back to 50/50. It never fails.
func DecideTargetAllocation(trendScore float64) types.TargetAllocation {
	return AllocationPolicy{}.Decide(trendScore)
}

// AllocationPolicy is the allocation table plus the optional all-asset-B row.
// FullAssetBScore is nil unless an operator sets it; the table itself never produces (0, 100).
type AllocationPolicy struct {
	FullAssetBScore *float64
}

// NewAllocationPolicy builds the policy from strategy parameters.
func NewAllocationPolicy(params types.StrategyParameters) AllocationPolicy {
	return AllocationPolicy{FullAssetBScore: params.FullAssetBScore}
}

// Decide returns the target allocation for a score.
func (p AllocationPolicy) Decide(trendScore float64) types.TargetAllocation {
	var target types.TargetAllocation
	switch {
	case trendScore == 1.0:
		target = allAssetA
	case trendScore == -0.5 || trendScore == 0 || trendScore == 0.5:
		target = balanced
	case p.FullAssetBScore != nil && trendScore == *p.FullAssetBScore:
		target = allAssetB
	default:
		target = balanced
	}

	allocationLogger.Debug().
		Float64("trendScore", trendScore).
		Float64("targetPctA", target.PctA).
		Float64("targetPctB", target.PctB).
		Msg("Target allocation decided")

	return target
}
