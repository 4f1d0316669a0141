/*

This file contains the wiring shared by the bot and the operator CLI: chain connection, signer,
SetToken resolution, history store and the assembled Rebalancer.

*/

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"github.com/ethmom/rebalancer/internal/bootstrap"
	"github.com/ethmom/rebalancer/internal/config"
	"github.com/ethmom/rebalancer/internal/datafetcher"
	"github.com/ethmom/rebalancer/internal/rebalancer"
	"github.com/ethmom/rebalancer/internal/simulations"
	"github.com/ethmom/rebalancer/internal/state"
	"github.com/ethmom/rebalancer/internal/vault"
	"github.com/ethmom/rebalancer/internal/wallet"
)

var ErrNoSetToken = errors.New("no SetToken address configured")

// Chain is an open RPC connection and the manager signer on it.
type Chain struct {
	Client *ethclient.Client
	Signer *wallet.SigningClient
}

// Connect dials RPC_URL and loads the signer.
func Connect(ctx context.Context, cfg *config.Config) (*Chain, error) {
	client, err := wallet.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}

	signer, err := wallet.NewSigningClient(ctx, client, wallet.ClientConfig{
		PrivateKeyHex:  cfg.PrivateKey,
		ChainID:        cfg.ChainID,
		GasLimit:       cfg.Strategy.GasLimit,
		ConfirmTimeout: cfg.TxConfirmTimeout,
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	return &Chain{Client: client, Signer: signer}, nil
}

// Close releases the RPC connection.
func (c *Chain) Close() {
	c.Client.Close()
}

// Operator returns bootstrap operations bound to the configured protocol contracts.
func (c *Chain) Operator(cfg *config.Config) (*bootstrap.Operator, error) {
	return bootstrap.NewOperator(c.Signer, bootstrap.Addresses{
		SetTokenCreator:    cfg.SetTokenCreator,
		TradeModule:        cfg.TradeModule,
		DebtIssuanceModule: cfg.DebtIssuanceModule,
		WETH:               config.KnownAssets["WETH"].Address,
		UniswapRouter:      cfg.UniswapRouter,
	})
}

// SetToken returns a client for the configured SetToken, signing with the manager key.
func (c *Chain) SetToken(cfg *config.Config) (*vault.SetTokenClient, error) {
	address, err := ResolveSetToken(cfg)
	if err != nil {
		return nil, err
	}
	return vault.NewSetTokenClient(address, c.Client, c.Signer, cfg.TradeModule)
}

// ResolveSetToken prefers SET_TOKEN_ADDRESS and falls back to the deployed addresses file.
func ResolveSetToken(cfg *config.Config) (common.Address, error) {
	if cfg.SetTokenAddress != (common.Address{}) {
		return cfg.SetTokenAddress, nil
	}
	deployed, err := state.LoadDeployedAddresses(cfg.AddressesFile)
	if err != nil {
		return common.Address{}, errors.Join(ErrNoSetToken, err)
	}
	address, err := deployed.SetToken()
	if err != nil {
		return common.Address{}, errors.Join(ErrNoSetToken, err)
	}
	log.Info().Str("path", cfg.AddressesFile).Str("setToken", address.Hex()).Msg("SetToken address read from deployed addresses file")
	return address, nil
}

// OpenHistory opens the cycle history store and versions the configured strategy parameters
// in it. The returned id is nil when persistence is disabled.
func OpenHistory(cfg *config.Config) (state.Recorder, *int64, error) {
	recorder, err := state.OpenRecorder(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	if state.DB == nil {
		return recorder, nil, nil
	}

	id, err := state.SyncStrategyParameters(cfg.Strategy, cfg.StrategyConfigName)
	if err != nil {
		recorder.Close()
		return nil, nil, fmt.Errorf("failed to sync strategy parameters: %w", err)
	}
	log.Info().Int64("paramsID", id).Str("configName", cfg.StrategyConfigName).Msg("Strategy parameters synced")
	return recorder, &id, nil
}

// NewRebalancer assembles a Rebalancer for the SetToken. BOT_MODE=simulate swaps the trade
// submitter for a gas-estimating simulator.
func NewRebalancer(cfg *config.Config, chain *Chain, setToken *vault.SetTokenClient, recorder state.Recorder, paramsID *int64) (*rebalancer.Rebalancer, error) {
	signal, err := datafetcher.NewTrendScoreFetcher(cfg.TrendScoreEndpoint, cfg.TrendScoreField, cfg.SignalTimeout)
	if err != nil {
		return nil, err
	}
	oracle, err := datafetcher.NewChainlinkOracle(cfg.PriceOracle, chain.Client, cfg.MaxPriceAge)
	if err != nil {
		return nil, err
	}

	var submitter rebalancer.TradeSubmitter = setToken
	if cfg.Mode == config.ModeSimulate {
		log.Warn().Msg("BOT_MODE=simulate: trades are gas-estimated and never broadcast.")
		sim, err := simulations.NewTradeSimulator(chain.Signer, cfg.TradeModule)
		if err != nil {
			return nil, err
		}
		submitter = sim
	} else {
		log.Warn().Msg("BOT_MODE=live: real transactions will be broadcast.")
	}

	return rebalancer.New(rebalancer.Config{
		Signal:            signal,
		Oracle:            oracle,
		Vault:             setToken,
		Submitter:         submitter,
		Recorder:          recorder,
		Pair:              cfg.Assets,
		CompositionSource: cfg.CompositionSource,
		Params:            cfg.Strategy,
		ParamsID:          paramsID,
	})
}
