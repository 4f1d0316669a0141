package bootstrap

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethmom/rebalancer/internal/contracts"
	"github.com/ethmom/rebalancer/internal/types"
)

type fakeReader struct {
	manager     common.Address
	modules     []common.Address
	initialized map[common.Address]bool
	components  []common.Address
	units       map[common.Address]*big.Int
	supply      *big.Int
	balances    map[common.Address]*big.Int
	positionErr error
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		manager:     signerAddr,
		modules:     []common.Address{contracts.TradeModuleAddress, contracts.DebtIssuanceModuleAddress},
		initialized: map[common.Address]bool{},
		components:  []common.Address{contracts.WETHAddress, contracts.USDCAddress},
		units: map[common.Address]*big.Int{
			contracts.WETHAddress: big.NewInt(1e16),
			contracts.USDCAddress: big.NewInt(10_000_000),
		},
		supply:   big.NewInt(3e18),
		balances: map[common.Address]*big.Int{signerAddr: big.NewInt(2e18)},
	}
}

func (f *fakeReader) Address() common.Address { return testSetToken }

func (f *fakeReader) Manager(ctx context.Context) (common.Address, error) { return f.manager, nil }

func (f *fakeReader) TotalSupply(ctx context.Context) (*big.Int, error) { return f.supply, nil }

func (f *fakeReader) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	if b, ok := f.balances[account]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeReader) GetModules(ctx context.Context) ([]common.Address, error) { return f.modules, nil }

func (f *fakeReader) IsInitializedModule(ctx context.Context, module common.Address) (bool, error) {
	return f.initialized[module], nil
}

func (f *fakeReader) GetComponents(ctx context.Context) ([]common.Address, error) {
	return f.components, nil
}

func (f *fakeReader) GetPositions(ctx context.Context) ([]types.SetPosition, error) {
	if f.positionErr != nil {
		return nil, f.positionErr
	}
	var out []types.SetPosition
	for _, c := range f.components {
		out = append(out, types.SetPosition{Component: c, Unit: f.units[c]})
	}
	return out, nil
}

func (f *fakeReader) GetDefaultPositionRealUnit(ctx context.Context, component common.Address) (*big.Int, error) {
	return f.units[component], nil
}

func (f *fakeReader) GetTotalComponentRealUnits(ctx context.Context, component common.Address) (*big.Int, error) {
	return f.units[component], nil
}

func TestInspect(t *testing.T) {
	reader := newFakeReader()
	reader.initialized[contracts.TradeModuleAddress] = true

	got, err := Inspect(context.Background(), reader, signerAddr)
	require.NoError(t, err)

	assert.Equal(t, testSetToken, got.SetToken)
	assert.Equal(t, signerAddr, got.Manager)
	assert.Equal(t, big.NewInt(3e18), got.TotalSupply)
	assert.Equal(t, big.NewInt(2e18), got.HolderBal)
	assert.Equal(t, []ModuleState{
		{Address: contracts.TradeModuleAddress, Initialized: true},
		{Address: contracts.DebtIssuanceModuleAddress, Initialized: false},
	}, got.Modules)
	require.Len(t, got.Components, 2)
	assert.Equal(t, big.NewInt(10_000_000), got.Components[1].DefaultUnit)
	assert.Len(t, got.Positions, 2)
}

func TestInspectWithoutHolderAndFailingPositions(t *testing.T) {
	reader := newFakeReader()

	got, err := Inspect(context.Background(), reader, common.Address{})
	require.NoError(t, err)
	assert.Nil(t, got.HolderBal)

	reader.positionErr = errors.New("rpc down")
	_, err = Inspect(context.Background(), reader, common.Address{})
	assert.ErrorContains(t, err, "positions: rpc down")
}
