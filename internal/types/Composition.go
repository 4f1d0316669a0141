package types

import (
	sdkmath "cosmossdk.io/math"
)

// Composition is the vault's current two-asset state, read fresh every cycle.
// Values are denominated in asset A (USD).
type Composition struct {
	Pair AssetPair `json:"pair"`

	RawA sdkmath.Int `json:"raw_a"` // Real units in asset A's smallest denomination
	RawB sdkmath.Int `json:"raw_b"` // Real units in asset B's smallest denomination

	QuantityA float64 `json:"quantity_a"`
	QuantityB float64 `json:"quantity_b"`
	PriceB    float64 `json:"price_b"`

	ValueA     float64 `json:"value_a"`
	ValueB     float64 `json:"value_b"`
	TotalValue float64 `json:"total_value"`
	PctA       float64 `json:"pct_a"`
	PctB       float64 `json:"pct_b"`
}
