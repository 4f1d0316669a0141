package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethmom/rebalancer/internal/utils"
)

// parseTokenAmount converts a decimal flag value into smallest units.
func parseTokenAmount(value string, decimals int, flag string) (*big.Int, error) {
	amount, err := utils.ParseTokenAmount(value, decimals)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return amount.BigInt(), nil
}

func parsePositiveAmount(value string, decimals int, flag string) (*big.Int, error) {
	amount, err := parseTokenAmount(value, decimals, flag)
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("--%s must be positive", flag)
	}
	return amount, nil
}

// parseOptionalAddress returns the zero address for an empty flag.
func parseOptionalAddress(value, flag string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("--%s: %q is not a hex address", flag, value)
	}
	return common.HexToAddress(value), nil
}
