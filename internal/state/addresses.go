/*

This file contains the deployed addresses file shared by the operator CLI and the bot.
`setctl create` writes it after the SetToken is deployed; the bot reads it when no
SetToken address is configured.

*/

package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

var ErrInvalidAddressesFile = errors.New("invalid deployed addresses file")

// DeployedAddresses is the on-disk shape of the addresses file
type DeployedAddresses struct {
	SetTokenAddress string `json:"setTokenAddress"`
}

// SetToken returns the parsed SetToken address.
func (d DeployedAddresses) SetToken() (common.Address, error) {
	if !common.IsHexAddress(d.SetTokenAddress) {
		return common.Address{}, fmt.Errorf("%w: setTokenAddress %q", ErrInvalidAddressesFile, d.SetTokenAddress)
	}
	return common.HexToAddress(d.SetTokenAddress), nil
}

// LoadDeployedAddresses reads and validates the addresses file at path.
func LoadDeployedAddresses(path string) (*DeployedAddresses, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var addresses DeployedAddresses
	if err := json.Unmarshal(data, &addresses); err != nil {
		return nil, errors.Join(ErrInvalidAddressesFile, err)
	}
	if _, err := addresses.SetToken(); err != nil {
		return nil, err
	}
	return &addresses, nil
}

// SaveDeployedAddresses writes the SetToken address to path, replacing any previous file.
func SaveDeployedAddresses(path string, setToken common.Address) error {
	data, err := json.MarshalIndent(DeployedAddresses{SetTokenAddress: setToken.Hex()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode deployed addresses: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	log.Info().Str("path", path).Str("set_token", setToken.Hex()).Msg("Saved deployed addresses")
	return nil
}
