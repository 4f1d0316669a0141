/*

This file contains the write calls the manager key makes: the rebalancing trade, module
initialization, issuance and the funding helpers used by the operator CLI.

*/

package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/ethmom/rebalancer/internal/contracts"
	"github.com/ethmom/rebalancer/internal/types"
)

var ErrInstructionInvalid = errors.New("trade instruction is invalid")

// Transact signs and sends one contract call, then waits for its receipt. The receipt is also
// returned on revert so callers can record the failed transaction.
func (s *SigningClient) Transact(ctx context.Context, contract common.Address, parsed abi.ABI, value *big.Int, method string, args ...interface{}) (*types.TransactionResult, *ethtypes.Receipt, error) {
	if contract == (common.Address{}) {
		return nil, nil, errors.Join(ErrTxBuildFailed, fmt.Errorf("%s: contract address cannot be zero", method))
	}

	opts, err := s.TransactOpts(ctx, value)
	if err != nil {
		return nil, nil, err
	}

	walletLogger.Info().
		Str("contract", contract.Hex()).
		Str("method", method).
		Msg("Sending transaction")

	bound := bind.NewBoundContract(contract, parsed, s.backend, s.backend, s.backend)
	tx, err := bound.Transact(opts, method, args...)
	if err != nil {
		walletLogger.Error().Err(err).Str("method", method).Msg("Failed to send transaction")
		return &types.TransactionResult{Success: false, ErrorMessage: err.Error()}, nil, errors.Join(ErrTxBroadcastFailed, err)
	}

	walletLogger.Info().
		Str("txHash", tx.Hash().Hex()).
		Str("method", method).
		Uint64("nonce", tx.Nonce()).
		Uint64("gas", tx.Gas()).
		Msg("Transaction broadcasted successfully")

	receipt, err := s.WaitForTransactionInclusion(ctx, tx)
	result := ReceiptToResult(tx, receipt)
	if err != nil {
		result.Success = false
		result.ErrorMessage = err.Error()
		return result, receipt, err
	}
	return result, receipt, nil
}

// Trade calls TradeModule.trade with the instruction.
func (s *SigningClient) Trade(ctx context.Context, tradeModule common.Address, instr types.TradeInstruction) (*types.TransactionResult, error) {
	if err := validateInstruction(instr); err != nil {
		return nil, err
	}
	args := TradeArgs(instr)
	result, _, err := s.Transact(ctx, tradeModule, contracts.TradeModuleABI, nil, "trade", args...)
	return result, err
}

// TradeArgs orders the instruction fields as TradeModule.trade expects them.
func TradeArgs(instr types.TradeInstruction) []interface{} {
	return []interface{}{
		instr.SetToken,
		instr.ExchangeName,
		instr.SendToken,
		instr.SendQuantity.BigInt(),
		instr.ReceiveToken,
		instr.MinReceiveQuantity.BigInt(),
		[]byte(instr.ExchangeData),
	}
}

// PackTrade returns the calldata of TradeModule.trade for the instruction.
func PackTrade(instr types.TradeInstruction) ([]byte, error) {
	if err := validateInstruction(instr); err != nil {
		return nil, err
	}
	data, err := contracts.TradeModuleABI.Pack("trade", TradeArgs(instr)...)
	if err != nil {
		return nil, errors.Join(ErrTxBuildFailed, err)
	}
	return data, nil
}

// validateInstruction runs before any trade is packed or sent
func validateInstruction(instr types.TradeInstruction) error {
	switch {
	case instr.SetToken == (common.Address{}):
		return fmt.Errorf("%w: set token cannot be zero", ErrInstructionInvalid)
	case instr.ExchangeName == "":
		return fmt.Errorf("%w: exchange name cannot be empty", ErrInstructionInvalid)
	case instr.SendToken == (common.Address{}) || instr.ReceiveToken == (common.Address{}):
		return fmt.Errorf("%w: send and receive tokens cannot be zero", ErrInstructionInvalid)
	case instr.SendToken == instr.ReceiveToken:
		return fmt.Errorf("%w: send and receive tokens must differ", ErrInstructionInvalid)
	case instr.SendQuantity.IsNil() || !instr.SendQuantity.IsPositive():
		return fmt.Errorf("%w: send quantity must be positive", ErrInstructionInvalid)
	case instr.MinReceiveQuantity.IsNil() || instr.MinReceiveQuantity.IsNegative():
		return fmt.Errorf("%w: min receive quantity cannot be negative", ErrInstructionInvalid)
	}
	return nil
}

// InitializeTradeModule calls TradeModule.initialize for the SetToken.
func (s *SigningClient) InitializeTradeModule(ctx context.Context, tradeModule, setToken common.Address) (*types.TransactionResult, error) {
	result, _, err := s.Transact(ctx, tradeModule, contracts.TradeModuleABI, nil, "initialize", setToken)
	return result, err
}

// IssuanceFees are the DebtIssuanceModule fee settings in precise units (1e18 is 100%).
type IssuanceFees struct {
	MaxManagerFee *big.Int
	IssueFee      *big.Int
	RedeemFee     *big.Int
	FeeRecipient  common.Address
	IssuanceHook  common.Address
}

// InitializeIssuanceModule calls DebtIssuanceModule.initialize for the SetToken.
func (s *SigningClient) InitializeIssuanceModule(ctx context.Context, issuanceModule, setToken common.Address, fees IssuanceFees) (*types.TransactionResult, error) {
	for name, v := range map[string]*big.Int{"max manager fee": fees.MaxManagerFee, "issue fee": fees.IssueFee, "redeem fee": fees.RedeemFee} {
		if v == nil || v.Sign() < 0 {
			return nil, errors.Join(ErrTxBuildFailed, fmt.Errorf("%s must be a non-negative amount", name))
		}
	}
	if fees.IssueFee.Cmp(fees.MaxManagerFee) > 0 || fees.RedeemFee.Cmp(fees.MaxManagerFee) > 0 {
		return nil, errors.Join(ErrTxBuildFailed, errors.New("issue and redeem fees cannot exceed the max manager fee"))
	}
	result, _, err := s.Transact(ctx, issuanceModule, contracts.DebtIssuanceModuleABI, nil, "initialize",
		setToken, fees.MaxManagerFee, fees.IssueFee, fees.RedeemFee, fees.FeeRecipient, fees.IssuanceHook)
	return result, err
}

// Issue mints SetToken quantity to the recipient through the DebtIssuanceModule.
func (s *SigningClient) Issue(ctx context.Context, issuanceModule, setToken common.Address, quantity *big.Int, to common.Address) (*types.TransactionResult, error) {
	if quantity == nil || quantity.Sign() <= 0 {
		return nil, errors.Join(ErrTxBuildFailed, errors.New("issue quantity must be positive"))
	}
	result, _, err := s.Transact(ctx, issuanceModule, contracts.DebtIssuanceModuleABI, nil, "issue", setToken, quantity, to)
	return result, err
}

// Redeem burns SetToken quantity and returns the components to the recipient.
func (s *SigningClient) Redeem(ctx context.Context, issuanceModule, setToken common.Address, quantity *big.Int, to common.Address) (*types.TransactionResult, error) {
	if quantity == nil || quantity.Sign() <= 0 {
		return nil, errors.Join(ErrTxBuildFailed, errors.New("redeem quantity must be positive"))
	}
	result, _, err := s.Transact(ctx, issuanceModule, contracts.DebtIssuanceModuleABI, nil, "redeem", setToken, quantity, to)
	return result, err
}

// Approve sets an ERC20 allowance for spender.
func (s *SigningClient) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.TransactionResult, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, errors.Join(ErrTxBuildFailed, errors.New("approve amount cannot be negative"))
	}
	result, _, err := s.Transact(ctx, token, contracts.ERC20ABI, nil, "approve", spender, amount)
	return result, err
}

// WrapETH deposits wei into WETH9.
func (s *SigningClient) WrapETH(ctx context.Context, weth common.Address, wei *big.Int) (*types.TransactionResult, error) {
	if wei == nil || wei.Sign() <= 0 {
		return nil, errors.Join(ErrTxBuildFailed, errors.New("wrap amount must be positive"))
	}
	result, _, err := s.Transact(ctx, weth, contracts.WETHABI, wei, "deposit")
	return result, err
}

// SwapExactETHForTokens swaps wei along path on a UniswapV2 router, sending the output to the signer.
func (s *SigningClient) SwapExactETHForTokens(ctx context.Context, router common.Address, wei, amountOutMin *big.Int, path []common.Address, deadline *big.Int) (*types.TransactionResult, error) {
	if wei == nil || wei.Sign() <= 0 {
		return nil, errors.Join(ErrTxBuildFailed, errors.New("swap amount must be positive"))
	}
	if len(path) < 2 {
		return nil, errors.Join(ErrTxBuildFailed, errors.New("swap path needs at least two tokens"))
	}
	if amountOutMin == nil {
		amountOutMin = big.NewInt(0)
	}
	result, _, err := s.Transact(ctx, router, contracts.UniswapV2RouterABI, wei, "swapExactETHForTokens",
		amountOutMin, path, s.address, deadline)
	return result, err
}
