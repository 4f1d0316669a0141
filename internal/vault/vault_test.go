package vault

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethmom/rebalancer/internal/config"
	"github.com/ethmom/rebalancer/internal/types"
)

// fakeReader serves real units from maps
type fakeReader struct {
	VaultReader
	defaults map[common.Address]*big.Int
	totals   map[common.Address]*big.Int
	err      error
	calls    int
}

func (f *fakeReader) Address() common.Address {
	return common.HexToAddress("0x93e70429f3493e5584291093a61530485ff566de")
}

func (f *fakeReader) GetDefaultPositionRealUnit(_ context.Context, c common.Address) (*big.Int, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.defaults[c], nil
}

func (f *fakeReader) GetTotalComponentRealUnits(_ context.Context, c common.Address) (*big.Int, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.totals[c], nil
}

func units(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

func TestComputeCompositionRoundTrip(t *testing.T) {
	pair := config.DefaultAssetPair()

	// 500 USDC and 1 WETH at 2000
	comp, err := ComputeComposition(pair, units("500000000"), units("1000000000000000000"), 2000)
	require.NoError(t, err)

	assert.Equal(t, 500.0, comp.QuantityA)
	assert.Equal(t, 1.0, comp.QuantityB)
	assert.Equal(t, 500.0, comp.ValueA)
	assert.Equal(t, 2000.0, comp.ValueB)
	assert.Equal(t, 2500.0, comp.TotalValue)
	assert.Equal(t, 80.0, comp.PctB)
	assert.Equal(t, 20.0, comp.PctA)
	assert.Equal(t, "500000000", comp.RawA.String())
}

func TestComputeCompositionEmptyVault(t *testing.T) {
	comp, err := ComputeComposition(config.DefaultAssetPair(), big.NewInt(0), big.NewInt(0), 2000)
	require.NoError(t, err)
	assert.Equal(t, 0.0, comp.TotalValue)
	assert.Equal(t, 0.0, comp.PctA)
	assert.Equal(t, 0.0, comp.PctB)
}

func TestComputeCompositionInvariants(t *testing.T) {
	pair := config.DefaultAssetPair()
	cases := []struct{ rawA, rawB string }{
		{"1", "1"},
		{"123456789", "987654321000000000"},
		{"1000000000000", "3000000000000000"},
		{"0", "5000000000000000000"},
		{"42000000", "0"},
	}
	for _, c := range cases {
		comp, err := ComputeComposition(pair, units(c.rawA), units(c.rawB), 3141.59)
		require.NoError(t, err)
		assert.InDelta(t, 100.0, comp.PctA+comp.PctB, 1e-9)
		assert.InDelta(t, comp.QuantityA+comp.QuantityB*comp.PriceB, comp.TotalValue, 1e-9)
	}
}

func TestComputeCompositionRejectsBadInputs(t *testing.T) {
	pair := config.DefaultAssetPair()

	for _, price := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := ComputeComposition(pair, big.NewInt(1), big.NewInt(1), price)
		assert.ErrorIs(t, err, types.ErrOracleUnavailable)
	}

	_, err := ComputeComposition(pair, big.NewInt(-1), big.NewInt(1), 2000)
	assert.ErrorIs(t, err, types.ErrCompositionRead)

	_, err = ComputeComposition(pair, nil, big.NewInt(1), 2000)
	assert.ErrorIs(t, err, types.ErrCompositionRead)
}

func TestReadCompositionSource(t *testing.T) {
	pair := config.DefaultAssetPair()
	reader := &fakeReader{
		defaults: map[common.Address]*big.Int{
			pair.A.Address: units("500000000"),
			pair.B.Address: units("1000000000000000000"),
		},
		totals: map[common.Address]*big.Int{
			pair.A.Address: units("1000000000"),
			pair.B.Address: units("1000000000000000000"),
		},
	}

	comp, err := ReadComposition(context.Background(), reader, pair, 2000, config.CompositionSourceDefault)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, comp.TotalValue)

	comp, err = ReadComposition(context.Background(), reader, pair, 2000, config.CompositionSourceTotal)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, comp.TotalValue)

	_, err = ReadComposition(context.Background(), reader, pair, 2000, "median")
	assert.ErrorIs(t, err, types.ErrCompositionRead)
}

func TestReadCompositionErrors(t *testing.T) {
	pair := config.DefaultAssetPair()

	failing := &fakeReader{err: errors.New("execution reverted")}
	_, err := ReadComposition(context.Background(), failing, pair, 2000, "")
	assert.ErrorIs(t, err, types.ErrCompositionRead)
	assert.Equal(t, 1, failing.calls)

	// A bad price fails before any chain call
	untouched := &fakeReader{}
	_, err = ReadComposition(context.Background(), untouched, pair, 0, "")
	assert.ErrorIs(t, err, types.ErrOracleUnavailable)
	assert.Equal(t, 0, untouched.calls)
}

func TestNewSetTokenClientValidation(t *testing.T) {
	_, err := NewSetTokenClient(common.Address{}, nil, nil, common.Address{})
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = NewSetTokenClient(common.HexToAddress("0x01"), nil, nil, common.Address{})
	assert.ErrorIs(t, err, ErrInvalidConnection)
}
