package planner

import (
	"math"
	"math/big"
	"math/rand"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethmom/rebalancer/internal/config"
	"github.com/ethmom/rebalancer/internal/contracts"
	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/utils"
	"github.com/ethmom/rebalancer/internal/vault"
)

var testSetToken = common.HexToAddress("0x93e70429f3493e5584291093a61530485ff566de")

func composition(valueA, valueB, priceB float64) types.Composition {
	pair := config.DefaultAssetPair()
	rawA, _ := utils.Float64ToSDKInt(valueA, pair.A.Decimals)
	rawB, _ := utils.Float64ToSDKInt(valueB/priceB, pair.B.Decimals)
	total := valueA + valueB
	c := types.Composition{
		Pair:       pair,
		RawA:       rawA,
		RawB:       rawB,
		QuantityA:  valueA,
		QuantityB:  valueB / priceB,
		PriceB:     priceB,
		ValueA:     valueA,
		ValueB:     valueB,
		TotalValue: total,
	}
	if total > 0 {
		c.PctB = 100 * valueB / total
		c.PctA = 100 - c.PctB
	}
	return c
}

func balanced() types.TargetAllocation { return types.TargetAllocation{PctA: 50, PctB: 50} }

func TestDecideDeadbandBoundary(t *testing.T) {
	// total 1000, tolerance 5% gives a threshold of 50
	d, err := Decide(balanced(), composition(550, 450, 2000), 0.05)
	require.NoError(t, err)
	assert.Equal(t, 50.0, d.Difference)
	assert.Equal(t, 50.0, d.Threshold)
	assert.True(t, d.Required)
	assert.Equal(t, types.DirectionBuyB, d.Direction)

	current := composition(549.999, 450.001, 2000)
	current.TotalValue = 1000
	d, err = Decide(balanced(), current, 0.05)
	require.NoError(t, err)
	assert.InDelta(t, 49.999, d.Difference, 1e-9)
	assert.False(t, d.Required)
	assert.Equal(t, types.DirectionNone, d.Direction)
	assert.True(t, d.NotionalRaw.IsZero())
}

func TestDecideIdempotentWhenBalanced(t *testing.T) {
	for _, tolerance := range []float64{0, 0.01, 0.05, 0.5} {
		d, err := Decide(balanced(), composition(1250, 1250, 2000), tolerance)
		require.NoError(t, err)
		assert.False(t, d.Required, "tolerance %v", tolerance)
		assert.Equal(t, types.DirectionNone, d.Direction)
		assert.Equal(t, 0.0, d.Notional)
	}
}

func TestDecideDirectionSigns(t *testing.T) {
	// Too little B: buy B with 250 USDC
	d, err := Decide(balanced(), composition(750, 250, 2000), 0.05)
	require.NoError(t, err)
	assert.Equal(t, types.DirectionBuyB, d.Direction)
	assert.Equal(t, 250.0, d.Notional)
	assert.Equal(t, "250000000", d.NotionalRaw.String())

	// Too much B: sell 0.125 WETH
	d, err = Decide(balanced(), composition(250, 750, 2000), 0.05)
	require.NoError(t, err)
	assert.Equal(t, types.DirectionBuyA, d.Direction)
	assert.Equal(t, 0.125, d.Notional)
	assert.Equal(t, "125000000000000000", d.NotionalRaw.String())
}

func TestDecideStrongTrendSellsAllB(t *testing.T) {
	current := composition(500, 2000, 2000)
	assert.Equal(t, 2500.0, current.TotalValue)
	assert.Equal(t, 80.0, current.PctB)

	d, err := Decide(types.TargetAllocation{PctA: 100, PctB: 0}, current, 0.05)
	require.NoError(t, err)

	assert.Equal(t, 0.0, d.DesiredValueB)
	assert.Equal(t, -2000.0, d.Difference)
	assert.Equal(t, 125.0, d.Threshold)
	assert.True(t, d.Required)
	assert.Equal(t, types.DirectionBuyA, d.Direction)
	assert.Equal(t, 1.0, d.Notional)
	assert.Equal(t, "1000000000000000000", d.NotionalRaw.String())
}

func TestDecideRejectsInvalidInputs(t *testing.T) {
	_, err := Decide(balanced(), composition(0, 0, 2000), 0.05)
	assert.ErrorIs(t, err, types.ErrZeroPortfolioValue)

	nan := composition(100, 100, 2000)
	nan.TotalValue = math.NaN()
	_, err = Decide(balanced(), nan, 0.05)
	assert.ErrorIs(t, err, types.ErrZeroPortfolioValue)

	_, err = Decide(balanced(), composition(100, 100, 2000), 1.5)
	assert.ErrorIs(t, err, ErrInvalidTolerance)

	_, err = Decide(balanced(), composition(100, 100, 2000), -0.1)
	assert.ErrorIs(t, err, ErrInvalidTolerance)

	badPrice := composition(100, 100, 2000)
	badPrice.PriceB = 0
	_, err = Decide(balanced(), badPrice, 0.05)
	assert.ErrorIs(t, err, types.ErrOracleUnavailable)

	_, err = Decide(types.TargetAllocation{PctA: -10, PctB: 110}, composition(100, 100, 2000), 0.05)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestBuildTradeInstruction(t *testing.T) {
	params := config.DefaultStrategyParameters()
	current := composition(500, 2000, 2000)

	d, err := Decide(types.TargetAllocation{PctA: 100, PctB: 0}, current, params.ToleranceFraction)
	require.NoError(t, err)

	instr, err := BuildTradeInstruction(testSetToken, d, current, params)
	require.NoError(t, err)

	assert.Equal(t, testSetToken, instr.SetToken)
	assert.Equal(t, contracts.DefaultExchangeName, instr.ExchangeName)
	assert.Equal(t, contracts.WETHAddress, instr.SendToken)
	assert.Equal(t, "WETH", instr.SendSymbol)
	assert.Equal(t, "1000000000000000000", instr.SendQuantity.String())
	assert.Equal(t, contracts.USDCAddress, instr.ReceiveToken)
	assert.True(t, instr.MinReceiveQuantity.IsZero())
	assert.Len(t, instr.ExchangeData, 32)
}

func TestBuildTradeInstructionBuyB(t *testing.T) {
	params := config.DefaultStrategyParameters()
	params.MinReceiveQuantity = "100000000000000000"
	current := composition(750, 250, 2000)

	d, err := Decide(balanced(), current, params.ToleranceFraction)
	require.NoError(t, err)

	instr, err := BuildTradeInstruction(testSetToken, d, current, params)
	require.NoError(t, err)
	assert.Equal(t, contracts.USDCAddress, instr.SendToken)
	assert.Equal(t, contracts.WETHAddress, instr.ReceiveToken)
	assert.Equal(t, "250000000", instr.SendQuantity.String())
	assert.Equal(t, "100000000000000000", instr.MinReceiveQuantity.String())
}

func TestBuildTradeInstructionErrors(t *testing.T) {
	params := config.DefaultStrategyParameters()
	current := composition(500, 500, 2000)

	_, err := BuildTradeInstruction(testSetToken, types.Decision{Direction: types.DirectionNone}, current, params)
	assert.ErrorIs(t, err, ErrNoTradeRequired)

	dust := types.Decision{Required: true, Direction: types.DirectionBuyB, Notional: 1e-9, NotionalRaw: sdkmath.ZeroInt()}
	_, err = BuildTradeInstruction(testSetToken, dust, current, params)
	assert.ErrorIs(t, err, ErrDustTrade)

	valid := types.Decision{Required: true, Direction: types.DirectionBuyB, Notional: 1, NotionalRaw: sdkmath.NewInt(1_000_000)}
	_, err = BuildTradeInstruction(common.Address{}, valid, current, params)
	assert.Error(t, err)

	params.MinReceiveQuantity = "-5"
	_, err = BuildTradeInstruction(testSetToken, valid, current, params)
	assert.Error(t, err)
}

func TestFullSellNeverExceedsHeldUnits(t *testing.T) {
	params := config.DefaultStrategyParameters()
	pair := config.DefaultAssetPair()
	rng := rand.New(rand.NewSource(7))

	// a balance whose float round trip sizes the sell above what is held
	rawBs := []*big.Int{big.NewInt(3447277413627300610)}
	for i := 0; i < 2000; i++ {
		rawBs = append(rawBs, new(big.Int).Add(big.NewInt(1e17), big.NewInt(rng.Int63n(9e18))))
	}

	for i, rawB := range rawBs {
		priceB := 1500 + rng.Float64()*2500
		rawA := big.NewInt(rng.Int63n(100_000_000))
		current, err := vault.ComputeComposition(pair, rawA, rawB, priceB)
		require.NoError(t, err)

		d, err := Decide(types.TargetAllocation{PctA: 100, PctB: 0}, current, params.ToleranceFraction)
		require.NoError(t, err)
		require.Equal(t, types.DirectionBuyA, d.Direction, "case %d", i)

		instr, err := BuildTradeInstruction(testSetToken, d, current, params)
		require.NoError(t, err)
		require.True(t, instr.SendQuantity.LTE(current.RawB), "case %d: send %s > held %s", i, instr.SendQuantity, current.RawB)
		require.True(t, instr.SendQuantity.IsPositive())
	}
}

func TestFullBuyNeverExceedsHeldUnits(t *testing.T) {
	params := config.DefaultStrategyParameters()
	pair := config.DefaultAssetPair()

	rawA := big.NewInt(1_234_567_891)
	current, err := vault.ComputeComposition(pair, rawA, big.NewInt(0), 3333.33)
	require.NoError(t, err)

	d, err := Decide(types.TargetAllocation{PctA: 0, PctB: 100}, current, params.ToleranceFraction)
	require.NoError(t, err)
	require.Equal(t, types.DirectionBuyB, d.Direction)

	// A notional sized above the balance is clamped
	d.NotionalRaw = d.NotionalRaw.Add(sdkmath.NewInt(5))
	instr, err := BuildTradeInstruction(testSetToken, d, current, params)
	require.NoError(t, err)
	assert.Equal(t, rawA.String(), instr.SendQuantity.String())
}
