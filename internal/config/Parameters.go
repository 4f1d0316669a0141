/*

This file contains the default strategy parameters and the runtime defaults of the bot.

The strategy parameters are stored in the database on first start and loaded from there
afterwards, so an operator can publish a new version without redeploying.

*/

package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ethmom/rebalancer/internal/contracts"
	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/utils"
)

const (
	DefaultStrategyConfigName    = "ethmom_momentum"
	DefaultStrategyConfigVersion = 1

	DefaultToleranceFraction = 0.05 // Trade once drift reaches 5% of total value
	DefaultSchedule          = "@every 10m"
	DefaultTxConfirmTimeout  = 5 * time.Minute
	DefaultMaxPriceAge       = 2 * time.Hour // Chainlink ETH/USD heartbeat is 1h
	DefaultAddressesFile     = "deployedAddresses.json"
)

// reservedScores are the trend scores already mapped by the fixed allocation table.
var reservedScores = []float64{1.0, -0.5, 0, 0.5}

// DefaultStrategyParameters provides the baseline strategy. It is used when no active
// parameters are found in the database during initialization.
func DefaultStrategyParameters() types.StrategyParameters {
	return types.StrategyParameters{
		ToleranceFraction:  DefaultToleranceFraction,
		ExchangeName:       contracts.DefaultExchangeName,
		ExchangeData:       contracts.DefaultExchangeData,
		MinReceiveQuantity: "0", // No slippage floor unless the operator sets one
		GasLimit:           contracts.DefaultGasLimit,
		FullAssetBScore:    nil, // Must be set explicitly to enable the all-asset-B row
	}
}

// loadStrategyConfig applies environment overrides to the strategy parameters.
func loadStrategyConfig(cfg *Config) error {
	if err := overrideFloat64("TOLERANCE_FRACTION", &cfg.Strategy.ToleranceFraction); err != nil {
		return err
	}
	overrideString("EXCHANGE_NAME", &cfg.Strategy.ExchangeName)
	overrideString("EXCHANGE_DATA", &cfg.Strategy.ExchangeData)
	overrideString("MIN_RECEIVE_QUANTITY", &cfg.Strategy.MinReceiveQuantity)
	if err := overrideUint64("GAS_LIMIT", &cfg.Strategy.GasLimit); err != nil {
		return err
	}
	if isSet("FULL_ASSET_B_SCORE") {
		score, err := getEnvAsFloat64("FULL_ASSET_B_SCORE")
		if err != nil {
			return err
		}
		cfg.Strategy.FullAssetBScore = &score
	}
	overrideString("STRATEGY_CONFIG_NAME", &cfg.StrategyConfigName)
	return nil
}

// ValidateStrategyParameters checks a parameter set before it is used or stored.
func ValidateStrategyParameters(p types.StrategyParameters) error {
	if math.IsNaN(p.ToleranceFraction) || math.IsInf(p.ToleranceFraction, 0) {
		return fmt.Errorf("%w: tolerance fraction is not finite", ErrInvalidValue)
	}
	if p.ToleranceFraction < 0 || p.ToleranceFraction >= 1 {
		return fmt.Errorf("%w: tolerance fraction must be in [0, 1), got %f", ErrInvalidValue, p.ToleranceFraction)
	}
	if strings.TrimSpace(p.ExchangeName) == "" {
		return fmt.Errorf("%w: exchange name cannot be empty", ErrInvalidValue)
	}
	if _, err := DecodeExchangeData(p.ExchangeData); err != nil {
		return err
	}
	if _, err := utils.ParseRawAmount(p.MinReceiveQuantity); err != nil {
		return fmt.Errorf("%w: min receive quantity: %w", ErrInvalidValue, err)
	}
	if p.FullAssetBScore != nil {
		score := *p.FullAssetBScore
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return fmt.Errorf("%w: full asset B score is not finite", ErrInvalidValue)
		}
		for _, reserved := range reservedScores {
			if score == reserved {
				return fmt.Errorf("%w: full asset B score %v is already mapped by the allocation table", ErrInvalidValue, score)
			}
		}
	}
	return nil
}

// DecodeExchangeData decodes the hex adapter data. An empty string is no data.
func DecodeExchangeData(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" {
		return []byte{}, nil
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange data must be hex: %w", ErrInvalidValue, err)
	}
	return data, nil
}
