package bootstrap

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethmom/rebalancer/internal/contracts"
	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/wallet"
)

var (
	signerAddr   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	otherAddr    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testSetToken = common.HexToAddress("0x93e70429f3493e5584291093a61530485ff566de")

	testAddrs = Addresses{
		SetTokenCreator:    contracts.SetTokenCreatorAddress,
		TradeModule:        contracts.TradeModuleAddress,
		DebtIssuanceModule: contracts.DebtIssuanceModuleAddress,
		WETH:               contracts.WETHAddress,
		UniswapRouter:      contracts.UniswapV2RouterAddress,
	}
)

type call struct {
	method string
	to     common.Address
	args   []interface{}
}

type fakeSigner struct {
	calls   []call
	receipt *ethtypes.Receipt
	err     error
}

func (f *fakeSigner) Address() common.Address { return signerAddr }

func (f *fakeSigner) record(method string, to common.Address, args ...interface{}) (*types.TransactionResult, error) {
	f.calls = append(f.calls, call{method: method, to: to, args: args})
	if f.err != nil {
		return nil, f.err
	}
	return &types.TransactionResult{TxHash: "0xabc", Success: true}, nil
}

func (f *fakeSigner) Transact(ctx context.Context, contract common.Address, parsed abi.ABI, value *big.Int, method string, args ...interface{}) (*types.TransactionResult, *ethtypes.Receipt, error) {
	result, err := f.record(method, contract, args...)
	return result, f.receipt, err
}

func (f *fakeSigner) InitializeTradeModule(ctx context.Context, tradeModule, setToken common.Address) (*types.TransactionResult, error) {
	return f.record("initTrade", tradeModule, setToken)
}

func (f *fakeSigner) InitializeIssuanceModule(ctx context.Context, issuanceModule, setToken common.Address, fees wallet.IssuanceFees) (*types.TransactionResult, error) {
	return f.record("initIssuance", issuanceModule, setToken, fees)
}

func (f *fakeSigner) Issue(ctx context.Context, issuanceModule, setToken common.Address, quantity *big.Int, to common.Address) (*types.TransactionResult, error) {
	return f.record("issue", issuanceModule, setToken, quantity, to)
}

func (f *fakeSigner) Redeem(ctx context.Context, issuanceModule, setToken common.Address, quantity *big.Int, to common.Address) (*types.TransactionResult, error) {
	return f.record("redeem", issuanceModule, setToken, quantity, to)
}

func (f *fakeSigner) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.TransactionResult, error) {
	return f.record("approve", token, spender, amount)
}

func (f *fakeSigner) WrapETH(ctx context.Context, weth common.Address, wei *big.Int) (*types.TransactionResult, error) {
	return f.record("wrap", weth, wei)
}

func (f *fakeSigner) SwapExactETHForTokens(ctx context.Context, router common.Address, wei, amountOutMin *big.Int, path []common.Address, deadline *big.Int) (*types.TransactionResult, error) {
	return f.record("swap", router, wei, amountOutMin, path, deadline)
}

func createdReceipt(setToken common.Address) *ethtypes.Receipt {
	eventID := contracts.SetTokenCreatorABI.Events["SetTokenCreated"].ID
	return &ethtypes.Receipt{Logs: []*ethtypes.Log{
		{Address: contracts.WETHAddress, Topics: []common.Hash{common.HexToHash("0x01")}},
		{
			Address: contracts.SetTokenCreatorAddress,
			Topics:  []common.Hash{eventID, common.BytesToHash(setToken.Bytes()), common.BytesToHash(signerAddr.Bytes())},
		},
	}}
}

func newOperator(t *testing.T, signer *fakeSigner) *Operator {
	t.Helper()
	op, err := NewOperator(signer, testAddrs)
	require.NoError(t, err)
	return op
}

func TestNewOperatorRejectsZeroAddresses(t *testing.T) {
	addrs := testAddrs
	addrs.UniswapRouter = common.Address{}
	_, err := NewOperator(&fakeSigner{}, addrs)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = NewOperator(nil, testAddrs)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCreateSetTokenDefaultsAndEventParsing(t *testing.T) {
	signer := &fakeSigner{receipt: createdReceipt(testSetToken)}
	op := newOperator(t, signer)

	units := []*big.Int{big.NewInt(1e16), big.NewInt(10_000_000)}
	addr, result, err := op.CreateSetToken(context.Background(), CreateRequest{
		Components: []common.Address{contracts.WETHAddress, contracts.USDCAddress},
		Units:      units,
	})
	require.NoError(t, err)
	assert.Equal(t, testSetToken, addr)
	assert.Equal(t, "0xabc", result.TxHash)

	require.Len(t, signer.calls, 1)
	c := signer.calls[0]
	assert.Equal(t, "create", c.method)
	assert.Equal(t, contracts.SetTokenCreatorAddress, c.to)
	require.Len(t, c.args, 6)
	assert.Equal(t, []common.Address{contracts.TradeModuleAddress, contracts.DebtIssuanceModuleAddress}, c.args[2])
	assert.Equal(t, signerAddr, c.args[3])
	assert.Equal(t, DefaultName, c.args[4])
	assert.Equal(t, DefaultSymbol, c.args[5])
}

func TestCreateSetTokenValidation(t *testing.T) {
	op := newOperator(t, &fakeSigner{})
	ctx := context.Background()
	weth, usdc := contracts.WETHAddress, contracts.USDCAddress

	cases := map[string]CreateRequest{
		"no components":  {},
		"unit mismatch":  {Components: []common.Address{weth, usdc}, Units: []*big.Int{big.NewInt(1)}},
		"zero unit":      {Components: []common.Address{weth}, Units: []*big.Int{big.NewInt(0)}},
		"duplicate":      {Components: []common.Address{weth, weth}, Units: []*big.Int{big.NewInt(1), big.NewInt(1)}},
		"zero component": {Components: []common.Address{{}}, Units: []*big.Int{big.NewInt(1)}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := op.CreateSetToken(ctx, req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestCreateSetTokenWithoutEvent(t *testing.T) {
	signer := &fakeSigner{receipt: &ethtypes.Receipt{}}
	op := newOperator(t, signer)

	_, result, err := op.CreateSetToken(context.Background(), CreateRequest{
		Components: []common.Address{contracts.WETHAddress},
		Units:      []*big.Int{big.NewInt(1)},
	})
	assert.ErrorIs(t, err, ErrCreatedEventAbsent)
	assert.NotNil(t, result)
}

func TestParseSetTokenCreatedIgnoresOtherEmitters(t *testing.T) {
	receipt := createdReceipt(testSetToken)
	_, err := ParseSetTokenCreated(receipt, otherAddr)
	assert.ErrorIs(t, err, ErrCreatedEventAbsent)

	_, err = ParseSetTokenCreated(nil, contracts.SetTokenCreatorAddress)
	assert.ErrorIs(t, err, ErrCreatedEventAbsent)
}

func TestInitializeTradeModule(t *testing.T) {
	ctx := context.Background()

	t.Run("initializes pending module", func(t *testing.T) {
		signer := &fakeSigner{}
		reader := newFakeReader()
		result, err := newOperator(t, signer).InitializeTradeModule(ctx, reader)
		require.NoError(t, err)
		require.NotNil(t, result)
		require.Len(t, signer.calls, 1)
		assert.Equal(t, "initTrade", signer.calls[0].method)
		assert.Equal(t, testSetToken, signer.calls[0].args[0])
	})

	t.Run("skips initialized module", func(t *testing.T) {
		signer := &fakeSigner{}
		reader := newFakeReader()
		reader.initialized[contracts.TradeModuleAddress] = true
		result, err := newOperator(t, signer).InitializeTradeModule(ctx, reader)
		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Empty(t, signer.calls)
	})

	t.Run("refuses when signer is not manager", func(t *testing.T) {
		signer := &fakeSigner{}
		reader := newFakeReader()
		reader.manager = otherAddr
		_, err := newOperator(t, signer).InitializeTradeModule(ctx, reader)
		assert.ErrorIs(t, err, ErrNotManager)
		assert.Empty(t, signer.calls)
	})

	t.Run("refuses module that was never added", func(t *testing.T) {
		signer := &fakeSigner{}
		reader := newFakeReader()
		reader.modules = []common.Address{contracts.DebtIssuanceModuleAddress}
		_, err := newOperator(t, signer).InitializeTradeModule(ctx, reader)
		assert.ErrorIs(t, err, ErrModuleNotAdded)
	})
}

func TestInitializeIssuanceModuleDefaultsFeeRecipient(t *testing.T) {
	signer := &fakeSigner{}
	fees := wallet.IssuanceFees{MaxManagerFee: big.NewInt(0), IssueFee: big.NewInt(0), RedeemFee: big.NewInt(0)}

	_, err := newOperator(t, signer).InitializeIssuanceModule(context.Background(), newFakeReader(), fees)
	require.NoError(t, err)
	require.Len(t, signer.calls, 1)
	got := signer.calls[0].args[1].(wallet.IssuanceFees)
	assert.Equal(t, signerAddr, got.FeeRecipient)
	assert.Equal(t, contracts.DebtIssuanceModuleAddress, signer.calls[0].to)
}

func TestFundingAndIssuance(t *testing.T) {
	signer := &fakeSigner{}
	op := newOperator(t, signer)
	now := time.Unix(1_700_000_000, 0)
	op.now = func() time.Time { return now }
	ctx := context.Background()
	wei := big.NewInt(1e17)

	_, err := op.WrapETH(ctx, wei)
	require.NoError(t, err)
	_, err = op.SwapETHForToken(ctx, wei, contracts.USDCAddress)
	require.NoError(t, err)
	_, err = op.ApproveForIssuance(ctx, contracts.USDCAddress, big.NewInt(5))
	require.NoError(t, err)
	_, err = op.Issue(ctx, testSetToken, big.NewInt(7), common.Address{})
	require.NoError(t, err)
	_, err = op.Redeem(ctx, testSetToken, big.NewInt(3), otherAddr)
	require.NoError(t, err)

	require.Len(t, signer.calls, 5)

	wrap := signer.calls[0]
	assert.Equal(t, contracts.WETHAddress, wrap.to)

	swap := signer.calls[1]
	assert.Equal(t, contracts.UniswapV2RouterAddress, swap.to)
	assert.Equal(t, []common.Address{contracts.WETHAddress, contracts.USDCAddress}, swap.args[2])
	assert.Equal(t, big.NewInt(now.Add(20*time.Minute).Unix()), swap.args[3])

	approve := signer.calls[2]
	assert.Equal(t, contracts.USDCAddress, approve.to)
	assert.Equal(t, contracts.DebtIssuanceModuleAddress, approve.args[0])

	issue := signer.calls[3]
	assert.Equal(t, signerAddr, issue.args[2])

	redeem := signer.calls[4]
	assert.Equal(t, otherAddr, redeem.args[2])
}

func TestSwapRejectsWETHOutput(t *testing.T) {
	signer := &fakeSigner{}
	_, err := newOperator(t, signer).SwapETHForToken(context.Background(), big.NewInt(1), contracts.WETHAddress)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, signer.calls)
}

func TestSignerErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	signer := &fakeSigner{err: boom}
	_, err := newOperator(t, signer).WrapETH(context.Background(), big.NewInt(1))
	assert.ErrorIs(t, err, boom)
}
