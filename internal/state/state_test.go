package state

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethmom/rebalancer/internal/config"
	"github.com/ethmom/rebalancer/internal/types"
)

var testSetToken = common.HexToAddress("0x1111111111111111111111111111111111111111")

func setupTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(DBConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "state.db")}))
	require.NoError(t, EnsureSchema())
	t.Cleanup(CloseDB)
}

func ptr[T any](v T) *T { return &v }

func TestInitDBRejectsUnknownDriver(t *testing.T) {
	err := InitDB(DBConfig{Driver: "mysql"})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	err = InitDB(DBConfig{Driver: DriverSQLite})
	assert.ErrorIs(t, err, ErrInvalidDBConfig)
}

func TestInitDBKeepsDialectOnFailedPing(t *testing.T) {
	CloseDB()
	defer func(d string) { driver = d }(driver)
	driver = DriverSQLite

	err := InitDB(DBConfig{
		Driver:   DriverPostgres,
		Host:     "127.0.0.1",
		Port:     1,
		User:     "ethmom",
		Password: "ethmom",
		DBName:   "ethmom",
		SSLMode:  "disable",
	})
	require.Error(t, err)
	assert.Nil(t, DB)
	assert.Equal(t, DriverSQLite, driver)
}

func TestNotInitialized(t *testing.T) {
	CloseDB()
	_, err := IncrementCycleNumber()
	assert.ErrorIs(t, err, ErrDBNotInitialized)
	_, err = SaveCycleSnapshot(types.CycleSnapshot{})
	assert.ErrorIs(t, err, ErrDBNotInitialized)
	assert.ErrorIs(t, TestDBConnection(), ErrDBNotInitialized)
}

func TestRebind(t *testing.T) {
	defer func(d string) { driver = d }(driver)

	driver = DriverSQLite
	assert.Equal(t, "SELECT * FROM t WHERE a = ? AND b = ?", rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	driver = DriverPostgres
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	setupTestDB(t)
	require.NoError(t, EnsureSchema())
	require.NoError(t, TestDBConnection())
}

func TestCycleCounter(t *testing.T) {
	setupTestDB(t)

	current, err := GetCurrentCycleNumber()
	require.NoError(t, err)
	assert.Equal(t, 0, current)

	for want := 1; want <= 3; want++ {
		got, err := IncrementCycleNumber()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	require.NoError(t, ResetCycleNumber(10))
	next, err := IncrementCycleNumber()
	require.NoError(t, err)
	assert.Equal(t, 11, next)

	assert.Error(t, ResetCycleNumber(-1))

	_, err = DB.Exec(`DELETE FROM cycle_counter`)
	require.NoError(t, err)
	first, err := IncrementCycleNumber()
	require.NoError(t, err)
	assert.Equal(t, 1, first)
}

func TestStrategyParametersVersioning(t *testing.T) {
	setupTestDB(t)

	_, _, err := LoadActiveStrategyParameters("ethmom")
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := GetActiveStrategyParametersID("ethmom")
	require.NoError(t, err)
	assert.Nil(t, id)

	v1 := types.StrategyParameters{
		ToleranceFraction:  0.05,
		ExchangeName:       "BalancerV2ExchangeAdapter",
		ExchangeData:       "0x96646936b91d6b9d7d0c47c496afbf3d6ec7b6f8000200000000000000000019",
		MinReceiveQuantity: "0",
		GasLimit:           8_000_000,
	}
	firstID, err := SaveStrategyParameters(v1, "ethmom", 1, true)
	require.NoError(t, err)

	v2 := v1
	v2.ToleranceFraction = 0.02
	v2.FullAssetBScore = ptr(-1.0)
	secondID, err := SaveStrategyParameters(v2, "ethmom", 2, true)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)

	loaded, loadedID, err := LoadActiveStrategyParameters("ethmom")
	require.NoError(t, err)
	assert.Equal(t, secondID, loadedID)
	assert.Equal(t, v2, *loaded)

	activeID, err := GetActiveStrategyParametersID("ethmom")
	require.NoError(t, err)
	require.NotNil(t, activeID)
	assert.Equal(t, secondID, *activeID)

	latest, latestID, err := LoadLatestStrategyParameters("ethmom")
	require.NoError(t, err)
	assert.Equal(t, secondID, latestID)
	assert.Equal(t, 0.02, latest.ToleranceFraction)

	var activeCount int
	require.NoError(t, DB.QueryRow(`SELECT COUNT(*) FROM strategy_parameters WHERE is_active = TRUE`).Scan(&activeCount))
	assert.Equal(t, 1, activeCount)

	// Same version twice violates the unique constraint
	_, err = SaveStrategyParameters(v1, "ethmom", 2, false)
	assert.Error(t, err)
}

func TestSyncStrategyParameters(t *testing.T) {
	setupTestDB(t)

	params := types.StrategyParameters{ToleranceFraction: 0.05, ExchangeName: "adapter", MinReceiveQuantity: "0"}
	firstID, err := SyncStrategyParameters(params, "ethmom")
	require.NoError(t, err)

	sameID, err := SyncStrategyParameters(params, "ethmom")
	require.NoError(t, err)
	assert.Equal(t, firstID, sameID)

	params.GasLimit = 500_000
	changedID, err := SyncStrategyParameters(params, "ethmom")
	require.NoError(t, err)
	assert.NotEqual(t, firstID, changedID)

	var version int
	require.NoError(t, DB.QueryRow(`SELECT version FROM strategy_parameters WHERE params_id = ?`, changedID).Scan(&version))
	assert.Equal(t, 2, version)
}

func sampleSnapshot(cycle int, status types.CycleStatus, at time.Time) types.CycleSnapshot {
	pair := types.AssetPair{
		A: types.Asset{Symbol: "USDC", Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6},
		B: types.Asset{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18},
	}
	return types.CycleSnapshot{
		CycleID:     "cycle-" + string(status),
		CycleNumber: cycle,
		Timestamp:   at,
		ParamsID:    ptr(int64(1)),
		SetToken:    testSetToken,
		Status:      status,
		DurationMs:  120,
		TrendScore:  ptr(1.0),
		Target:      &types.TargetAllocation{PctA: 100, PctB: 0},
		Composition: &types.Composition{
			Pair:       pair,
			RawA:       sdkmath.NewInt(500_000_000),
			RawB:       sdkmath.NewIntFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
			QuantityA:  500,
			QuantityB:  1,
			PriceB:     2000,
			ValueA:     500,
			ValueB:     2000,
			TotalValue: 2500,
			PctA:       20,
			PctB:       80,
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	setupTestDB(t)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshot := sampleSnapshot(1, types.CycleStatusTraded, at)
	snapshot.Decision = &types.Decision{
		Required:      true,
		Direction:     types.DirectionBuyA,
		DesiredValueB: 0,
		Difference:    -2000,
		Threshold:     125,
		Notional:      1,
		NotionalRaw:   snapshot.Composition.RawB,
	}
	snapshot.Transaction = &types.TransactionResult{TxHash: "0xabc", GasUsed: 210000, GasFeeETH: 0.005, Success: true}

	id, err := SaveCycleSnapshot(snapshot)
	require.NoError(t, err)

	loaded, err := GetCycleByID(id)
	require.NoError(t, err)
	assert.Equal(t, id, loaded.SnapshotID)
	assert.Equal(t, snapshot.CycleID, loaded.CycleID)
	assert.Equal(t, at, loaded.Timestamp)
	assert.Equal(t, testSetToken, loaded.SetToken)
	assert.Equal(t, types.CycleStatusTraded, loaded.Status)
	require.NotNil(t, loaded.TrendScore)
	assert.Equal(t, 1.0, *loaded.TrendScore)
	assert.Equal(t, snapshot.Target, loaded.Target)
	require.NotNil(t, loaded.Composition)
	assert.Equal(t, 2500.0, loaded.Composition.TotalValue)
	assert.Equal(t, "1000000000000000000", loaded.Composition.RawB.String())
	require.NotNil(t, loaded.Decision)
	assert.Equal(t, types.DirectionBuyA, loaded.Decision.Direction)
	require.NotNil(t, loaded.Transaction)
	assert.Equal(t, "0xabc", loaded.Transaction.TxHash)
	assert.Nil(t, loaded.Instruction)

	_, err = GetCycleByID(id + 100)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSignalUnavailableSnapshotHasNoObservations(t *testing.T) {
	setupTestDB(t)

	id, err := SaveCycleSnapshot(types.CycleSnapshot{
		CycleID:     "no-signal",
		CycleNumber: 1,
		SetToken:    testSetToken,
		Status:      types.CycleStatusSignalUnavailable,
	})
	require.NoError(t, err)

	loaded, err := GetCycleByID(id)
	require.NoError(t, err)
	assert.Nil(t, loaded.TrendScore)
	assert.Nil(t, loaded.Target)
	assert.Nil(t, loaded.Composition)
	assert.Nil(t, loaded.ParamsID)
}

func TestRecentCyclesAndAnalytics(t *testing.T) {
	setupTestDB(t)

	summary, err := GetVaultSummary()
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalCycles)

	_, err = GetLatestCycle()
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	statuses := []types.CycleStatus{
		types.CycleStatusNoTrade,
		types.CycleStatusTraded,
		types.CycleStatusFailed,
		types.CycleStatusSimulated,
	}
	for i, status := range statuses {
		snapshot := sampleSnapshot(i+1, status, base.Add(time.Duration(i)*10*time.Minute))
		if status == types.CycleStatusTraded {
			snapshot.Transaction = &types.TransactionResult{TxHash: "0x01", GasFeeETH: 0.004, Success: true}
		}
		_, err := SaveCycleSnapshot(snapshot)
		require.NoError(t, err)
	}
	_, err = SaveCycleSnapshot(types.CycleSnapshot{
		CycleID:     "no-signal",
		CycleNumber: 5,
		Timestamp:   base.Add(time.Hour),
		SetToken:    testSetToken,
		Status:      types.CycleStatusSignalUnavailable,
	})
	require.NoError(t, err)

	recent, err := GetRecentCycles(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, 5, recent[0].CycleNumber)
	assert.Equal(t, 4, recent[1].CycleNumber)

	latest, err := GetLatestCycle()
	require.NoError(t, err)
	assert.Equal(t, types.CycleStatusSignalUnavailable, latest.Status)

	summary, err = GetVaultSummary()
	require.NoError(t, err)
	assert.Equal(t, 5, summary.TotalCycles)
	assert.Equal(t, 2500.0, summary.TotalValue)
	assert.Equal(t, 80.0, summary.PctB)
	assert.Equal(t, 20.0, summary.PctA)
	assert.Equal(t, string(types.CycleStatusSimulated), summary.LastStatus)
	assert.Equal(t, testSetToken.Hex(), summary.SetToken)

	metrics, err := GetPerformanceMetrics()
	require.NoError(t, err)
	assert.Equal(t, 5, metrics.TotalCycles)
	assert.Equal(t, 1, metrics.TradedCycles)
	assert.Equal(t, 1, metrics.NoTradeCycles)
	assert.Equal(t, 1, metrics.SimulatedCycles)
	assert.Equal(t, 1, metrics.SignalUnavailableCycles)
	assert.Equal(t, 1, metrics.FailedCycles)
	assert.InDelta(t, 0.004, metrics.TotalGasFeesETH, 1e-12)
	assert.InDelta(t, 80.0, metrics.SuccessRate, 1e-9)
	assert.InDelta(t, 96.0, metrics.AvgDurationMs, 1e-9)
}

func TestRecorders(t *testing.T) {
	noop := NewNoopRecorder()
	first, err := noop.NextCycleNumber()
	require.NoError(t, err)
	second, err := noop.NextCycleNumber()
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	_, err = noop.RecordCycle(types.CycleSnapshot{})
	assert.NoError(t, err)
	assert.NoError(t, noop.Close())

	setupTestDB(t)
	var recorder Recorder = NewDBRecorder()
	n, err := recorder.NextCycleNumber()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	id, err := recorder.RecordCycle(sampleSnapshot(n, types.CycleStatusNoTrade, time.Now()))
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.NoError(t, recorder.Close())
	assert.Nil(t, DB)
}

func TestDeployedAddresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployedAddresses.json")

	_, err := LoadDeployedAddresses(path)
	assert.Error(t, err)

	require.NoError(t, SaveDeployedAddresses(path, testSetToken))
	loaded, err := LoadDeployedAddresses(path)
	require.NoError(t, err)
	setToken, err := loaded.SetToken()
	require.NoError(t, err)
	assert.Equal(t, testSetToken, setToken)

	require.NoError(t, os.WriteFile(path, []byte(`{"setTokenAddress": "nope"}`), 0o644))
	_, err = LoadDeployedAddresses(path)
	assert.ErrorIs(t, err, ErrInvalidAddressesFile)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = LoadDeployedAddresses(path)
	assert.ErrorIs(t, err, ErrInvalidAddressesFile)
}

func TestOpenRecorder(t *testing.T) {
	recorder, err := OpenRecorder(config.DBSettings{})
	require.NoError(t, err)
	assert.IsType(t, &NoopRecorder{}, recorder)

	recorder, err = OpenRecorder(config.DBSettings{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	t.Cleanup(CloseDB)
	assert.IsType(t, &DBRecorder{}, recorder)

	current, err := GetCurrentCycleNumber()
	require.NoError(t, err)
	assert.Equal(t, 0, current)

	_, err = OpenRecorder(config.DBSettings{Driver: "mysql"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
