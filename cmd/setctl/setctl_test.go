package main

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokenAmount(t *testing.T) {
	got, err := parseTokenAmount("0.01", 18, "weth-unit")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1e16), got)

	got, err = parseTokenAmount("10", 6, "usdc-unit")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000_000), got)

	_, err = parseTokenAmount("ten", 6, "usdc-unit")
	assert.ErrorContains(t, err, "--usdc-unit")

	_, err = parsePositiveAmount("0", 18, "amount")
	assert.ErrorContains(t, err, "--amount must be positive")
}

func TestParseOptionalAddress(t *testing.T) {
	got, err := parseOptionalAddress("", "to")
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, got)

	got, err = parseOptionalAddress(" 0x93e70429f3493e5584291093a61530485ff566de ", "to")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x93e70429f3493e5584291093a61530485ff566de"), got)

	_, err = parseOptionalAddress("0x1234", "to")
	assert.ErrorContains(t, err, "--to")
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{
		"create", "init-trade", "init-issuance", "wrap-eth", "swap-eth",
		"approve", "issue", "redeem", "inspect", "rebalance",
	}, names)

	create, _, err := root.Find([]string{"create"})
	require.NoError(t, err)
	assert.Equal(t, "0.01", create.Flags().Lookup("weth-unit").DefValue)
	assert.Equal(t, "true", create.Flags().Lookup("save").DefValue)
}
