package simulations

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethmom/rebalancer/internal/logger"
	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/wallet"
)

var tradeSimLogger = logger.GetForComponent("trade_simulator")

// GasEstimator runs eth_estimateGas from the manager address. *wallet.SigningClient satisfies it.
type GasEstimator interface {
	EstimateGas(ctx context.Context, to common.Address, data []byte, value *big.Int) (uint64, error)
}

// TradeSimulator dry-runs TradeModule.trade instead of broadcasting it.
type TradeSimulator struct {
	estimator   GasEstimator
	tradeModule common.Address
}

// NewTradeSimulator creates a simulator for the given TradeModule.
func NewTradeSimulator(estimator GasEstimator, tradeModule common.Address) (*TradeSimulator, error) {
	if estimator == nil {
		return nil, errors.New("gas estimator cannot be nil")
	}
	if tradeModule == (common.Address{}) {
		return nil, errors.New("trade module address cannot be zero")
	}
	return &TradeSimulator{estimator: estimator, tradeModule: tradeModule}, nil
}

// SimulateTrade packs the trade call and estimates its gas. A revert during estimation is
// reported as types.ErrTradeExecution, the same as a mined revert.
func (s *TradeSimulator) SimulateTrade(ctx context.Context, instr types.TradeInstruction) (*types.TransactionResult, error) {
	data, err := wallet.PackTrade(instr)
	if err != nil {
		return nil, errors.Join(types.ErrTradeExecution, err)
	}

	tradeSimLogger.Info().
		Str("setToken", instr.SetToken.Hex()).
		Str("send", instr.SendSymbol).
		Str("sendQuantity", instr.SendQuantity.String()).
		Str("receive", instr.ReceiveSymbol).
		Msg("Simulating trade")

	gas, err := s.estimator.EstimateGas(ctx, s.tradeModule, data, nil)
	if err != nil {
		tradeSimLogger.Error().Err(err).Msg("Trade simulation reverted")
		return &types.TransactionResult{
			Simulated:    true,
			Success:      false,
			ErrorMessage: err.Error(),
		}, errors.Join(types.ErrTradeExecution, fmt.Errorf("simulation failed: %w", err))
	}

	tradeSimLogger.Info().
		Uint64("estimatedGas", gas).
		Msg("Trade simulation succeeded")

	return &types.TransactionResult{
		GasUsed:   gas,
		GasLimit:  gas,
		Simulated: true,
		Success:   true,
	}, nil
}

// ExecuteTrade lets the simulator stand in for the live vault client.
func (s *TradeSimulator) ExecuteTrade(ctx context.Context, instr types.TradeInstruction) (*types.TransactionResult, error) {
	return s.SimulateTrade(ctx, instr)
}
