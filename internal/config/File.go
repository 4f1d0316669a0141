package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML layer. Secrets are never read from it.
type fileConfig struct {
	RPCURL  string `yaml:"rpc_url"`
	ChainID uint64 `yaml:"chain_id"`

	TrendScore struct {
		Endpoint       string `yaml:"endpoint"`
		Field          string `yaml:"field"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"trend_score"`

	SetToken      string `yaml:"set_token"`
	AddressesFile string `yaml:"addresses_file"`

	Contracts struct {
		TradeModule        string `yaml:"trade_module"`
		DebtIssuanceModule string `yaml:"debt_issuance_module"`
		SetTokenCreator    string `yaml:"set_token_creator"`
		PriceOracle        string `yaml:"price_oracle"`
		UniswapRouter      string `yaml:"uniswap_router"`
	} `yaml:"contracts"`

	Assets struct {
		A fileAsset `yaml:"a"`
		B fileAsset `yaml:"b"`
	} `yaml:"assets"`

	CompositionSource  string `yaml:"composition_source"`
	MaxPriceAgeSeconds *int   `yaml:"max_price_age_seconds"`

	Strategy struct {
		ConfigName         string   `yaml:"config_name"`
		ToleranceFraction  *float64 `yaml:"tolerance_fraction"`
		ExchangeName       string   `yaml:"exchange_name"`
		ExchangeData       string   `yaml:"exchange_data"`
		MinReceiveQuantity string   `yaml:"min_receive_quantity"`
		GasLimit           *uint64  `yaml:"gas_limit"`
		FullAssetBScore    *float64 `yaml:"full_asset_b_score"`
	} `yaml:"strategy"`

	Mode     string `yaml:"mode"`
	RunMode  string `yaml:"run_mode"`
	Schedule string `yaml:"schedule"`
	WebPort  string `yaml:"web_port"`
}

type fileAsset struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals *int   `yaml:"decimals"`
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.RPCURL, fc.RPCURL)
	if fc.ChainID != 0 {
		cfg.ChainID = fc.ChainID
	}
	setString(&cfg.TrendScoreEndpoint, fc.TrendScore.Endpoint)
	setString(&cfg.TrendScoreField, fc.TrendScore.Field)
	if fc.TrendScore.TimeoutSeconds > 0 {
		cfg.SignalTimeout = time.Duration(fc.TrendScore.TimeoutSeconds) * time.Second
	}
	setString(&cfg.AddressesFile, fc.AddressesFile)

	addresses := []struct {
		name string
		raw  string
		dst  *common.Address
	}{
		{"set_token", fc.SetToken, &cfg.SetTokenAddress},
		{"contracts.trade_module", fc.Contracts.TradeModule, &cfg.TradeModule},
		{"contracts.debt_issuance_module", fc.Contracts.DebtIssuanceModule, &cfg.DebtIssuanceModule},
		{"contracts.set_token_creator", fc.Contracts.SetTokenCreator, &cfg.SetTokenCreator},
		{"contracts.price_oracle", fc.Contracts.PriceOracle, &cfg.PriceOracle},
		{"contracts.uniswap_router", fc.Contracts.UniswapRouter, &cfg.UniswapRouter},
		{"assets.a.address", fc.Assets.A.Address, &cfg.Assets.A.Address},
		{"assets.b.address", fc.Assets.B.Address, &cfg.Assets.B.Address},
	}
	for _, a := range addresses {
		if err := setAddress(a.dst, a.name, a.raw); err != nil {
			return err
		}
	}
	setString(&cfg.Assets.A.Symbol, fc.Assets.A.Symbol)
	setString(&cfg.Assets.B.Symbol, fc.Assets.B.Symbol)
	if fc.Assets.A.Decimals != nil {
		cfg.Assets.A.Decimals = *fc.Assets.A.Decimals
	}
	if fc.Assets.B.Decimals != nil {
		cfg.Assets.B.Decimals = *fc.Assets.B.Decimals
	}

	setString(&cfg.CompositionSource, strings.ToLower(fc.CompositionSource))
	if fc.MaxPriceAgeSeconds != nil {
		cfg.MaxPriceAge = time.Duration(*fc.MaxPriceAgeSeconds) * time.Second
	}

	setString(&cfg.StrategyConfigName, fc.Strategy.ConfigName)
	if fc.Strategy.ToleranceFraction != nil {
		cfg.Strategy.ToleranceFraction = *fc.Strategy.ToleranceFraction
	}
	setString(&cfg.Strategy.ExchangeName, fc.Strategy.ExchangeName)
	setString(&cfg.Strategy.ExchangeData, fc.Strategy.ExchangeData)
	setString(&cfg.Strategy.MinReceiveQuantity, fc.Strategy.MinReceiveQuantity)
	if fc.Strategy.GasLimit != nil {
		cfg.Strategy.GasLimit = *fc.Strategy.GasLimit
	}
	if fc.Strategy.FullAssetBScore != nil {
		score := *fc.Strategy.FullAssetBScore
		cfg.Strategy.FullAssetBScore = &score
	}

	setString(&cfg.Mode, fc.Mode)
	setString(&cfg.RunMode, fc.RunMode)
	setString(&cfg.Schedule, fc.Schedule)
	setString(&cfg.WebPort, fc.WebPort)
	return nil
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setAddress(dst *common.Address, name, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !common.IsHexAddress(raw) {
		return fmt.Errorf("%w: %s must be a hex address, got %q", ErrInvalidValue, name, raw)
	}
	*dst = common.HexToAddress(raw)
	return nil
}
