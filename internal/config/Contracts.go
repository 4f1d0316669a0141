/*

This file contains the contract and asset registry. Asset decimals are fixed configuration
and never discovered from chain.

*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethmom/rebalancer/internal/contracts"
	"github.com/ethmom/rebalancer/internal/types"
)

var (
	defaultTradeModule        = contracts.TradeModuleAddress
	defaultDebtIssuanceModule = contracts.DebtIssuanceModuleAddress
	defaultSetTokenCreator    = contracts.SetTokenCreatorAddress
	defaultPriceOracle        = contracts.EthUsdAggregatorAddress
	defaultUniswapRouter      = contracts.UniswapV2RouterAddress
)

// KnownAssets maps a symbol to its mainnet token so operators can refer to components by name.
var KnownAssets = map[string]types.Asset{
	"USDC": {Symbol: "USDC", Address: contracts.USDCAddress, Decimals: contracts.USDCDecimals},
	"WETH": {Symbol: "WETH", Address: contracts.WETHAddress, Decimals: contracts.WETHDecimals},
}

// DefaultAssetPair is USDC as asset A and WETH as asset B.
func DefaultAssetPair() types.AssetPair {
	return types.AssetPair{A: KnownAssets["USDC"], B: KnownAssets["WETH"]}
}

// LookupAsset resolves a symbol or a hex address against KnownAssets.
func LookupAsset(ref string) (types.Asset, error) {
	ref = strings.TrimSpace(ref)
	if asset, ok := KnownAssets[strings.ToUpper(ref)]; ok {
		return asset, nil
	}
	if common.IsHexAddress(ref) {
		addr := common.HexToAddress(ref)
		for _, asset := range KnownAssets {
			if asset.Address == addr {
				return asset, nil
			}
		}
	}
	return types.Asset{}, fmt.Errorf("%w: unknown asset %q", ErrInvalidValue, ref)
}

// loadContractConfig applies environment overrides to contract addresses and assets.
func loadContractConfig(cfg *Config) error {
	overrides := []struct {
		key string
		dst *common.Address
	}{
		{"SET_TOKEN_ADDRESS", &cfg.SetTokenAddress},
		{"TRADE_MODULE_ADDRESS", &cfg.TradeModule},
		{"DEBT_ISSUANCE_MODULE_ADDRESS", &cfg.DebtIssuanceModule},
		{"SET_TOKEN_CREATOR_ADDRESS", &cfg.SetTokenCreator},
		{"PRICE_ORACLE_ADDRESS", &cfg.PriceOracle},
		{"UNISWAP_ROUTER_ADDRESS", &cfg.UniswapRouter},
		{"ASSET_A_ADDRESS", &cfg.Assets.A.Address},
		{"ASSET_B_ADDRESS", &cfg.Assets.B.Address},
	}
	for _, o := range overrides {
		if err := overrideAddress(o.key, o.dst); err != nil {
			return err
		}
	}

	overrideString("ASSET_A_SYMBOL", &cfg.Assets.A.Symbol)
	overrideString("ASSET_B_SYMBOL", &cfg.Assets.B.Symbol)
	if err := overrideDecimals("ASSET_A_DECIMALS", &cfg.Assets.A.Decimals); err != nil {
		return err
	}
	if err := overrideDecimals("ASSET_B_DECIMALS", &cfg.Assets.B.Decimals); err != nil {
		return err
	}

	overrideString("ADDRESSES_FILE", &cfg.AddressesFile)
	overrideString("COMPOSITION_SOURCE", &cfg.CompositionSource)
	cfg.CompositionSource = strings.ToLower(cfg.CompositionSource)
	return overrideSeconds("MAX_PRICE_AGE_SECONDS", &cfg.MaxPriceAge)
}

func overrideDecimals(key string, dst *int) error {
	if !isSet(key) {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fmt.Errorf("%w: environment variable %s must be an integer", ErrInvalidValue, key)
	}
	*dst = v
	return nil
}
