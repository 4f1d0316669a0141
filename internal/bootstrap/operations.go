/*

This file contains the one-off operator actions that stand a SetToken up and fund it: creation
through the SetTokenCreator, module initialization, WETH/USDC acquisition, issuance and
redemption, plus a read-only inspection of the deployed token.

*/

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/ethmom/rebalancer/internal/contracts"
	"github.com/ethmom/rebalancer/internal/logger"
	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/vault"
	"github.com/ethmom/rebalancer/internal/wallet"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidRequest     = errors.New("bootstrap request is invalid")
	ErrNotManager         = errors.New("signer is not the SetToken manager")
	ErrModuleNotAdded     = errors.New("module is not added to the SetToken")
	ErrCreatedEventAbsent = errors.New("SetTokenCreated event not found in receipt")
)

const (
	DefaultName   = "$ETHMOM"
	DefaultSymbol = "ETHMOM"

	// SwapDeadline is how long a router swap stays valid after submission
	SwapDeadline = 20 * time.Minute
)

var bootstrapLogger = logger.GetForComponent("bootstrap")

// Signer is the subset of wallet.SigningClient the operator actions need.
type Signer interface {
	Address() common.Address
	Transact(ctx context.Context, contract common.Address, parsed abi.ABI, value *big.Int, method string, args ...interface{}) (*types.TransactionResult, *ethtypes.Receipt, error)
	InitializeTradeModule(ctx context.Context, tradeModule, setToken common.Address) (*types.TransactionResult, error)
	InitializeIssuanceModule(ctx context.Context, issuanceModule, setToken common.Address, fees wallet.IssuanceFees) (*types.TransactionResult, error)
	Issue(ctx context.Context, issuanceModule, setToken common.Address, quantity *big.Int, to common.Address) (*types.TransactionResult, error)
	Redeem(ctx context.Context, issuanceModule, setToken common.Address, quantity *big.Int, to common.Address) (*types.TransactionResult, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.TransactionResult, error)
	WrapETH(ctx context.Context, weth common.Address, wei *big.Int) (*types.TransactionResult, error)
	SwapExactETHForTokens(ctx context.Context, router common.Address, wei, amountOutMin *big.Int, path []common.Address, deadline *big.Int) (*types.TransactionResult, error)
}

// Addresses are the protocol contracts the operator talks to.
type Addresses struct {
	SetTokenCreator    common.Address
	TradeModule        common.Address
	DebtIssuanceModule common.Address
	WETH               common.Address
	UniswapRouter      common.Address
}

// Operator runs bootstrap actions with the manager key.
type Operator struct {
	signer Signer
	addrs  Addresses
	now    func() time.Time
}

// NewOperator validates the contract addresses and returns an Operator.
func NewOperator(signer Signer, addrs Addresses) (*Operator, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: signer cannot be nil", ErrInvalidRequest)
	}
	for name, a := range map[string]common.Address{
		"SetTokenCreator":    addrs.SetTokenCreator,
		"TradeModule":        addrs.TradeModule,
		"DebtIssuanceModule": addrs.DebtIssuanceModule,
		"WETH":               addrs.WETH,
		"UniswapRouter":      addrs.UniswapRouter,
	} {
		if a == (common.Address{}) {
			return nil, fmt.Errorf("%w: %s address cannot be zero", ErrInvalidRequest, name)
		}
	}
	return &Operator{signer: signer, addrs: addrs, now: time.Now}, nil
}

// CreateRequest describes a new SetToken. Units are per-share real units in each component's
// smallest denomination, in the same order as Components.
type CreateRequest struct {
	Components []common.Address
	Units      []*big.Int
	Modules    []common.Address // Defaults to TradeModule and DebtIssuanceModule
	Manager    common.Address   // Defaults to the signer
	Name       string
	Symbol     string
}

func (o *Operator) normalize(req CreateRequest) (CreateRequest, error) {
	if len(req.Components) == 0 {
		return req, fmt.Errorf("%w: at least one component is required", ErrInvalidRequest)
	}
	if len(req.Components) != len(req.Units) {
		return req, fmt.Errorf("%w: %d components but %d units", ErrInvalidRequest, len(req.Components), len(req.Units))
	}
	seen := make(map[common.Address]bool, len(req.Components))
	for i, c := range req.Components {
		if c == (common.Address{}) {
			return req, fmt.Errorf("%w: component %d address cannot be zero", ErrInvalidRequest, i)
		}
		if seen[c] {
			return req, fmt.Errorf("%w: component %s listed twice", ErrInvalidRequest, c.Hex())
		}
		seen[c] = true
		if req.Units[i] == nil || req.Units[i].Sign() <= 0 {
			return req, fmt.Errorf("%w: unit for component %s must be positive", ErrInvalidRequest, c.Hex())
		}
	}

	if len(req.Modules) == 0 {
		req.Modules = []common.Address{o.addrs.TradeModule, o.addrs.DebtIssuanceModule}
	}
	if req.Manager == (common.Address{}) {
		req.Manager = o.signer.Address()
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = DefaultName
	}
	if strings.TrimSpace(req.Symbol) == "" {
		req.Symbol = DefaultSymbol
	}
	return req, nil
}

// CreateSetToken deploys a SetToken through the SetTokenCreator and returns its address as
// announced by the SetTokenCreated event.
func (o *Operator) CreateSetToken(ctx context.Context, req CreateRequest) (common.Address, *types.TransactionResult, error) {
	req, err := o.normalize(req)
	if err != nil {
		return common.Address{}, nil, err
	}

	bootstrapLogger.Info().
		Int("components", len(req.Components)).
		Int("modules", len(req.Modules)).
		Str("manager", req.Manager.Hex()).
		Str("symbol", req.Symbol).
		Msg("Creating SetToken")

	result, receipt, err := o.signer.Transact(ctx, o.addrs.SetTokenCreator, contracts.SetTokenCreatorABI, nil, "create",
		req.Components, req.Units, req.Modules, req.Manager, req.Name, req.Symbol)
	if err != nil {
		return common.Address{}, result, err
	}

	setToken, err := ParseSetTokenCreated(receipt, o.addrs.SetTokenCreator)
	if err != nil {
		return common.Address{}, result, err
	}

	bootstrapLogger.Info().Str("setToken", setToken.Hex()).Str("txHash", result.TxHash).Msg("SetToken created")
	return setToken, result, nil
}

// ParseSetTokenCreated finds the SetTokenCreated log emitted by creator and returns the indexed
// SetToken address.
func ParseSetTokenCreated(receipt *ethtypes.Receipt, creator common.Address) (common.Address, error) {
	if receipt == nil {
		return common.Address{}, fmt.Errorf("%w: receipt is nil", ErrCreatedEventAbsent)
	}
	eventID := contracts.SetTokenCreatorABI.Events["SetTokenCreated"].ID
	for _, l := range receipt.Logs {
		if l == nil || l.Address != creator || len(l.Topics) < 2 || l.Topics[0] != eventID {
			continue
		}
		return common.BytesToAddress(l.Topics[1].Bytes()), nil
	}
	return common.Address{}, ErrCreatedEventAbsent
}

// requireManager fails unless the signer manages the SetToken and module is added to it.
// It reports whether module is already initialized.
func (o *Operator) requireManager(ctx context.Context, reader vault.VaultReader, module common.Address) (bool, error) {
	manager, err := reader.Manager(ctx)
	if err != nil {
		return false, err
	}
	if manager != o.signer.Address() {
		return false, fmt.Errorf("%w: manager is %s, signer is %s", ErrNotManager, manager.Hex(), o.signer.Address().Hex())
	}

	modules, err := reader.GetModules(ctx)
	if err != nil {
		return false, err
	}
	added := false
	for _, m := range modules {
		if m == module {
			added = true
			break
		}
	}
	if !added {
		return false, fmt.Errorf("%w: %s", ErrModuleNotAdded, module.Hex())
	}

	return reader.IsInitializedModule(ctx, module)
}

// InitializeTradeModule initializes the TradeModule for the SetToken. It returns a nil result
// when the module is already initialized.
func (o *Operator) InitializeTradeModule(ctx context.Context, reader vault.VaultReader) (*types.TransactionResult, error) {
	initialized, err := o.requireManager(ctx, reader, o.addrs.TradeModule)
	if err != nil {
		return nil, err
	}
	if initialized {
		bootstrapLogger.Info().Str("setToken", reader.Address().Hex()).Msg("TradeModule already initialized, nothing to do")
		return nil, nil
	}
	return o.signer.InitializeTradeModule(ctx, o.addrs.TradeModule, reader.Address())
}

// InitializeIssuanceModule initializes the DebtIssuanceModule with fees. A zero FeeRecipient
// defaults to the signer. It returns a nil result when the module is already initialized.
func (o *Operator) InitializeIssuanceModule(ctx context.Context, reader vault.VaultReader, fees wallet.IssuanceFees) (*types.TransactionResult, error) {
	initialized, err := o.requireManager(ctx, reader, o.addrs.DebtIssuanceModule)
	if err != nil {
		return nil, err
	}
	if initialized {
		bootstrapLogger.Info().Str("setToken", reader.Address().Hex()).Msg("DebtIssuanceModule already initialized, nothing to do")
		return nil, nil
	}
	if fees.FeeRecipient == (common.Address{}) {
		fees.FeeRecipient = o.signer.Address()
	}
	return o.signer.InitializeIssuanceModule(ctx, o.addrs.DebtIssuanceModule, reader.Address(), fees)
}

// WrapETH converts wei of native ETH into WETH.
func (o *Operator) WrapETH(ctx context.Context, wei *big.Int) (*types.TransactionResult, error) {
	return o.signer.WrapETH(ctx, o.addrs.WETH, wei)
}

// SwapETHForToken buys tokenOut with wei of ETH through the router along [WETH, tokenOut].
func (o *Operator) SwapETHForToken(ctx context.Context, wei *big.Int, tokenOut common.Address) (*types.TransactionResult, error) {
	if tokenOut == (common.Address{}) || tokenOut == o.addrs.WETH {
		return nil, fmt.Errorf("%w: swap output must be a token other than WETH", ErrInvalidRequest)
	}
	deadline := big.NewInt(o.now().Add(SwapDeadline).Unix())
	path := []common.Address{o.addrs.WETH, tokenOut}
	return o.signer.SwapExactETHForTokens(ctx, o.addrs.UniswapRouter, wei, big.NewInt(0), path, deadline)
}

// ApproveForIssuance lets the DebtIssuanceModule pull amount of token during issue.
func (o *Operator) ApproveForIssuance(ctx context.Context, token common.Address, amount *big.Int) (*types.TransactionResult, error) {
	return o.signer.Approve(ctx, token, o.addrs.DebtIssuanceModule, amount)
}

// Issue mints quantity SetToken to the recipient, or to the signer when to is zero.
func (o *Operator) Issue(ctx context.Context, setToken common.Address, quantity *big.Int, to common.Address) (*types.TransactionResult, error) {
	if to == (common.Address{}) {
		to = o.signer.Address()
	}
	return o.signer.Issue(ctx, o.addrs.DebtIssuanceModule, setToken, quantity, to)
}

// Redeem burns quantity SetToken, sending components to the recipient or the signer.
func (o *Operator) Redeem(ctx context.Context, setToken common.Address, quantity *big.Int, to common.Address) (*types.TransactionResult, error) {
	if to == (common.Address{}) {
		to = o.signer.Address()
	}
	return o.signer.Redeem(ctx, o.addrs.DebtIssuanceModule, setToken, quantity, to)
}
