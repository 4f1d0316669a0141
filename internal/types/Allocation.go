package types

// TargetAllocation is the desired split of portfolio value in percent (0 to 100).
// PctA + PctB is always 100.
type TargetAllocation struct {
	PctA float64 `json:"pct_a"`
	PctB float64 `json:"pct_b"`
}

// Fractions returns the allocation as fractions of 1 for callers that work in that unit.
func (t TargetAllocation) Fractions() (float64, float64) {
	return t.PctA / 100.0, t.PctB / 100.0
}

// Direction is the side of a rebalancing trade.
type Direction string

const (
	DirectionNone Direction = "NONE"
	DirectionBuyA Direction = "BUY_A" // Sell asset B for asset A
	DirectionBuyB Direction = "BUY_B" // Sell asset A for asset B
)
