package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethmom/rebalancer/internal/contracts"
	"github.com/ethmom/rebalancer/internal/logger"
	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/wallet"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAddress    = errors.New("SetToken address is invalid")
	ErrInvalidConnection = errors.New("connection is invalid")
	ErrCallFailed        = errors.New("contract call failed")
	ErrInvalidResponse   = errors.New("response data is invalid")
	ErrReadOnly          = errors.New("vault client has no signer")
)

var vaultLogger = logger.GetForComponent("vault_client")

var _ VaultManager = (*SetTokenClient)(nil)

// SetTokenClient reads a SetToken over JSON-RPC and, when it has a signer, trades through the
// TradeModule with the manager key.
type SetTokenClient struct {
	address     common.Address
	contract    *bind.BoundContract
	signer      *wallet.SigningClient
	tradeModule common.Address
}

// NewSetTokenClient creates a SetToken client with validation. signer may be nil for read-only use.
func NewSetTokenClient(address common.Address, backend bind.ContractBackend, signer *wallet.SigningClient, tradeModule common.Address) (*SetTokenClient, error) {
	if address == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	if backend == nil {
		return nil, errors.Join(ErrInvalidConnection, errors.New("chain backend cannot be nil"))
	}
	if signer != nil && tradeModule == (common.Address{}) {
		return nil, errors.New("trade module address cannot be zero")
	}

	client := &SetTokenClient{
		address:     address,
		contract:    bind.NewBoundContract(address, contracts.SetTokenABI, backend, backend, backend),
		signer:      signer,
		tradeModule: tradeModule,
	}

	vaultLogger.Info().
		Str("setToken", address.Hex()).
		Bool("readOnly", signer == nil).
		Msg("SetToken client created successfully")

	return client, nil
}

// Address returns the SetToken address.
func (v *SetTokenClient) Address() common.Address {
	return v.address
}

func (v *SetTokenClient) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := v.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		vaultLogger.Error().Err(err).Str("method", method).Str("setToken", v.address.Hex()).Msg("SetToken call failed")
		return nil, errors.Join(ErrCallFailed, fmt.Errorf("%s: %w", method, err))
	}
	if len(out) == 0 {
		return nil, errors.Join(ErrInvalidResponse, fmt.Errorf("%s returned no values", method))
	}
	return out, nil
}

func (v *SetTokenClient) callBigInt(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := v.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	value, ok := out[0].(*big.Int)
	if !ok || value == nil {
		return nil, errors.Join(ErrInvalidResponse, fmt.Errorf("%s returned %T", method, out[0]))
	}
	return value, nil
}

func (v *SetTokenClient) callAddresses(ctx context.Context, method string) ([]common.Address, error) {
	out, err := v.call(ctx, method)
	if err != nil {
		return nil, err
	}
	addresses, ok := out[0].([]common.Address)
	if !ok {
		return nil, errors.Join(ErrInvalidResponse, fmt.Errorf("%s returned %T", method, out[0]))
	}
	return addresses, nil
}

// Manager returns the SetToken manager.
func (v *SetTokenClient) Manager(ctx context.Context) (common.Address, error) {
	out, err := v.call(ctx, "manager")
	if err != nil {
		return common.Address{}, err
	}
	manager, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, errors.Join(ErrInvalidResponse, fmt.Errorf("manager returned %T", out[0]))
	}
	return manager, nil
}

// TotalSupply returns the SetToken supply in 18-decimal units.
func (v *SetTokenClient) TotalSupply(ctx context.Context) (*big.Int, error) {
	return v.callBigInt(ctx, "totalSupply")
}

// BalanceOf returns the SetToken balance of account.
func (v *SetTokenClient) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return v.callBigInt(ctx, "balanceOf", account)
}

// GetModules returns every module added to the SetToken.
func (v *SetTokenClient) GetModules(ctx context.Context) ([]common.Address, error) {
	return v.callAddresses(ctx, "getModules")
}

// IsInitializedModule reports whether module finished initialization for the SetToken.
func (v *SetTokenClient) IsInitializedModule(ctx context.Context, module common.Address) (bool, error) {
	out, err := v.call(ctx, "isInitializedModule", module)
	if err != nil {
		return false, err
	}
	initialized, ok := out[0].(bool)
	if !ok {
		return false, errors.Join(ErrInvalidResponse, fmt.Errorf("isInitializedModule returned %T", out[0]))
	}
	return initialized, nil
}

// GetComponents returns the component token addresses.
func (v *SetTokenClient) GetComponents(ctx context.Context) ([]common.Address, error) {
	return v.callAddresses(ctx, "getComponents")
}

// positionTuple mirrors the ISetToken.Position struct for ABI conversion
type positionTuple struct {
	Component     common.Address
	Module        common.Address
	Unit          *big.Int
	PositionState uint8
	Data          []byte
}

// GetPositions returns all default and external positions.
func (v *SetTokenClient) GetPositions(ctx context.Context) ([]types.SetPosition, error) {
	out, err := v.call(ctx, "getPositions")
	if err != nil {
		return nil, err
	}
	tuples, ok := abi.ConvertType(out[0], new([]positionTuple)).(*[]positionTuple)
	if !ok {
		return nil, errors.Join(ErrInvalidResponse, fmt.Errorf("getPositions returned %T", out[0]))
	}

	positions := make([]types.SetPosition, 0, len(*tuples))
	for _, p := range *tuples {
		positions = append(positions, types.SetPosition{
			Component:     p.Component,
			Module:        p.Module,
			Unit:          p.Unit,
			PositionState: p.PositionState,
			Data:          p.Data,
		})
	}
	return positions, nil
}

// GetDefaultPositionRealUnit returns the default position real unit of component.
func (v *SetTokenClient) GetDefaultPositionRealUnit(ctx context.Context, component common.Address) (*big.Int, error) {
	return v.callBigInt(ctx, "getDefaultPositionRealUnit", component)
}

// GetTotalComponentRealUnits returns default plus external real units of component.
func (v *SetTokenClient) GetTotalComponentRealUnits(ctx context.Context, component common.Address) (*big.Int, error) {
	return v.callBigInt(ctx, "getTotalComponentRealUnits", component)
}

// ExecuteTrade submits the instruction to the TradeModule and waits for the receipt. Every
// failure wraps types.ErrTradeExecution. There is no retry.
func (v *SetTokenClient) ExecuteTrade(ctx context.Context, instr types.TradeInstruction) (*types.TransactionResult, error) {
	vaultLogger.Info().
		Str("setToken", v.address.Hex()).
		Str("send", instr.SendSymbol).
		Str("sendQuantity", instr.SendQuantity.String()).
		Str("receive", instr.ReceiveSymbol).
		Msg("ExecuteTrade: Starting trade execution")

	if v.signer == nil {
		return nil, errors.Join(types.ErrTradeExecution, ErrReadOnly)
	}
	if instr.SetToken != v.address {
		return nil, errors.Join(types.ErrTradeExecution, fmt.Errorf("instruction targets %s, client manages %s", instr.SetToken.Hex(), v.address.Hex()))
	}

	result, err := v.signer.Trade(ctx, v.tradeModule, instr)
	if err != nil {
		vaultLogger.Error().Err(err).Msg("ExecuteTrade: Trade failed")
		if result == nil {
			result = &types.TransactionResult{Success: false, ErrorMessage: err.Error()}
		}
		return result, errors.Join(types.ErrTradeExecution, err)
	}

	vaultLogger.Info().
		Str("txHash", result.TxHash).
		Uint64("gasUsed", result.GasUsed).
		Float64("gasFeeETH", result.GasFeeETH).
		Msg("ExecuteTrade: Trade executed successfully")

	return result, nil
}
