/*

This file contains the tunable strategy parameters. They are versioned in the state database
so that every cycle snapshot can be traced back to the exact parameters it ran with.

*/

package types

// StrategyParameters holds every knob of the rebalancing strategy.
type StrategyParameters struct {
	ToleranceFraction  float64  `json:"tolerance_fraction"`   // Deadband as a fraction of total value (0.05 for 5%)
	ExchangeName       string   `json:"exchange_name"`        // Exchange adapter registered on the TradeModule
	ExchangeData       string   `json:"exchange_data"`        // Hex adapter data, e.g. a Balancer pool id
	MinReceiveQuantity string   `json:"min_receive_quantity"` // Smallest units of the received token, "0" disables the floor
	GasLimit           uint64   `json:"gas_limit"`            // 0 lets the node estimate
	FullAssetBScore    *float64 `json:"full_asset_b_score,omitempty"`
}
