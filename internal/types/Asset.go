/*

This file contains the token types the rebalancer trades between.
Asset A is the USD-pegged leg (USDC) and asset B the volatile leg (WETH).

*/

package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// Asset is an ERC20 component of the SetToken
type Asset struct {
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals int            `json:"decimals"` // Fixed per asset, never read from chain
}

// AssetPair is the two-asset basket managed by the rebalancer
type AssetPair struct {
	A Asset `json:"asset_a"` // Priced at 1
	B Asset `json:"asset_b"` // Priced by the oracle
}
