/*

This file contains the rebalancing cycle: trend signal -> allocation policy -> oracle price ->
vault composition -> decision -> trade instruction -> submission, recorded as one snapshot.

*/

package rebalancer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ethmom/rebalancer/internal/analyzer"
	"github.com/ethmom/rebalancer/internal/logger"
	"github.com/ethmom/rebalancer/internal/planner"
	"github.com/ethmom/rebalancer/internal/state"
	"github.com/ethmom/rebalancer/internal/types"
	"github.com/ethmom/rebalancer/internal/vault"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidConfig = errors.New("invalid rebalancer configuration")
)

// SignalSource returns the current trend score, or false when no usable score is available.
type SignalSource interface {
	FetchTrendScore(ctx context.Context) (float64, bool)
}

// PriceSource returns the price of asset B in units of asset A.
type PriceSource interface {
	LatestPrice(ctx context.Context) (float64, error)
}

// TradeSubmitter executes (or simulates) one trade instruction.
type TradeSubmitter interface {
	ExecuteTrade(ctx context.Context, instr types.TradeInstruction) (*types.TransactionResult, error)
}

// Config holds everything a Rebalancer needs. Each dependency is explicit so tests can swap it.
type Config struct {
	Signal    SignalSource
	Oracle    PriceSource
	Vault     vault.VaultReader
	Submitter TradeSubmitter
	Recorder  state.Recorder // Optional, defaults to a NoopRecorder

	Pair              types.AssetPair
	CompositionSource string
	Params            types.StrategyParameters
	ParamsID          *int64
}

// Rebalancer runs rebalancing cycles for one SetToken.
type Rebalancer struct {
	logger zerolog.Logger

	signal    SignalSource
	oracle    PriceSource
	vault     vault.VaultReader
	submitter TradeSubmitter
	recorder  state.Recorder
	policy    analyzer.AllocationPolicy

	pair     types.AssetPair
	source   string
	params   types.StrategyParameters
	paramsID *int64

	flight singleflight.Group
}

// New creates a Rebalancer after validating its configuration.
func New(cfg Config) (*Rebalancer, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = state.NewNoopRecorder()
	}

	r := &Rebalancer{
		logger:    logger.GetForComponent("rebalancer"),
		signal:    cfg.Signal,
		oracle:    cfg.Oracle,
		vault:     cfg.Vault,
		submitter: cfg.Submitter,
		recorder:  recorder,
		policy:    analyzer.NewAllocationPolicy(cfg.Params),
		pair:      cfg.Pair,
		source:    cfg.CompositionSource,
		params:    cfg.Params,
		paramsID:  cfg.ParamsID,
	}

	r.logger.Info().
		Str("setToken", r.vault.Address().Hex()).
		Str("assetA", r.pair.A.Symbol).
		Str("assetB", r.pair.B.Symbol).
		Float64("tolerance", r.params.ToleranceFraction).
		Msg("Rebalancer created")

	return r, nil
}

func validateConfig(cfg Config) error {
	if cfg.Signal == nil {
		return fmt.Errorf("%w: signal source cannot be nil", ErrInvalidConfig)
	}
	if cfg.Oracle == nil {
		return fmt.Errorf("%w: price source cannot be nil", ErrInvalidConfig)
	}
	if cfg.Vault == nil {
		return fmt.Errorf("%w: vault reader cannot be nil", ErrInvalidConfig)
	}
	if cfg.Submitter == nil {
		return fmt.Errorf("%w: trade submitter cannot be nil", ErrInvalidConfig)
	}
	if cfg.Vault.Address() == (common.Address{}) {
		return fmt.Errorf("%w: SetToken address cannot be zero", ErrInvalidConfig)
	}
	if cfg.Pair.A.Address == (common.Address{}) || cfg.Pair.B.Address == (common.Address{}) {
		return fmt.Errorf("%w: asset addresses cannot be zero", ErrInvalidConfig)
	}
	if cfg.Params.ToleranceFraction < 0 || cfg.Params.ToleranceFraction >= 1 {
		return fmt.Errorf("%w: tolerance fraction must be in [0, 1), got %f", ErrInvalidConfig, cfg.Params.ToleranceFraction)
	}
	return nil
}

// RunCycle runs one cycle. Calls that overlap for the same SetToken share a single run and
// its result.
func (r *Rebalancer) RunCycle(ctx context.Context) types.CycleResult {
	key := r.vault.Address().Hex()
	v, _, shared := r.flight.Do(key, func() (interface{}, error) {
		return r.runCycle(ctx), nil
	})
	result := v.(types.CycleResult)
	if shared {
		r.logger.Warn().Str("setToken", key).Str("cycle_id", result.CycleID).Msg("Overlapping cycle request joined the running cycle")
	}
	return result
}

func (r *Rebalancer) runCycle(ctx context.Context) types.CycleResult {
	start := time.Now()

	// Unique cycle ID for tracing logs across the entire cycle
	cycleID := uuid.New().String()
	cycleLogger := r.logger.With().Str("cycle_id", cycleID).Logger()
	cycleLogger.Info().Msg("--- Starting rebalance cycle ---")

	cycleNumber, err := r.recorder.NextCycleNumber()
	if err != nil {
		cycleLogger.Warn().Err(err).Msg("Failed to advance cycle counter")
	}

	result := types.CycleResult{CycleSnapshot: types.CycleSnapshot{
		CycleID:     cycleID,
		CycleNumber: cycleNumber,
		Timestamp:   start,
		ParamsID:    r.paramsID,
		SetToken:    r.vault.Address(),
	}}

	// ===== STEP 1: TREND SIGNAL =====
	cycleLogger.Info().Msg("Step 1: Fetching trend score...")
	score, ok := r.signal.FetchTrendScore(ctx)
	if !ok {
		cycleLogger.Warn().Msg("Cycle halted: trend signal unavailable, no trade attempted.")
		result.Status = types.CycleStatusSignalUnavailable
		result.ErrorMessage = types.ErrSignalUnavailable.Error()
		return r.finish(result, start, cycleLogger)
	}
	result.TrendScore = &score

	// ===== STEP 2: TARGET ALLOCATION =====
	target := r.policy.Decide(score)
	result.Target = &target
	cycleLogger.Info().
		Float64("trendScore", score).
		Float64("targetPctA", target.PctA).
		Float64("targetPctB", target.PctB).
		Msg("Step 2: Target allocation decided.")

	// ===== STEP 3: ORACLE PRICE =====
	priceB, err := r.oracle.LatestPrice(ctx)
	if err != nil {
		if !errors.Is(err, types.ErrOracleUnavailable) {
			err = errors.Join(types.ErrOracleUnavailable, err)
		}
		return r.fail(result, err, "Cycle aborted: failed to read price oracle.", start, cycleLogger)
	}
	cycleLogger.Info().Float64("priceB", priceB).Str("asset", r.pair.B.Symbol).Msg("Step 3: Oracle price read.")

	// ===== STEP 4: VAULT COMPOSITION =====
	composition, err := vault.ReadComposition(ctx, r.vault, r.pair, priceB, r.source)
	if err != nil {
		return r.fail(result, err, "Cycle aborted: failed to read vault composition.", start, cycleLogger)
	}
	result.Composition = &composition
	cycleLogger.Info().
		Float64("totalValue", composition.TotalValue).
		Float64("pctA", composition.PctA).
		Float64("pctB", composition.PctB).
		Msg("Step 4: Vault composition read.")

	// ===== STEP 5: DECISION =====
	decision, err := planner.Decide(target, composition, r.params.ToleranceFraction)
	if err != nil {
		return r.fail(result, err, "Cycle aborted: rebalance decision failed.", start, cycleLogger)
	}
	result.Decision = &decision
	if !decision.Required {
		cycleLogger.Info().
			Float64("difference", decision.Difference).
			Float64("threshold", decision.Threshold).
			Msg("Step 5: Within tolerance, no rebalancing required.")
		result.Status = types.CycleStatusNoTrade
		return r.finish(result, start, cycleLogger)
	}
	cycleLogger.Info().
		Str("direction", string(decision.Direction)).
		Float64("notional", decision.Notional).
		Str("notionalRaw", decision.NotionalRaw.String()).
		Msg("Step 5: Rebalancing required.")

	// ===== STEP 6: TRADE INSTRUCTION =====
	instr, err := planner.BuildTradeInstruction(r.vault.Address(), decision, composition, r.params)
	if err != nil {
		if errors.Is(err, planner.ErrDustTrade) {
			cycleLogger.Warn().Err(err).Msg("Step 6: Trade rounds to zero, skipping.")
			result.Status = types.CycleStatusNoTrade
			return r.finish(result, start, cycleLogger)
		}
		return r.fail(result, err, "Cycle aborted: failed to build trade instruction.", start, cycleLogger)
	}
	result.Instruction = &instr
	cycleLogger.Info().
		Str("send", instr.SendSymbol).
		Str("sendQuantity", instr.SendQuantity.String()).
		Str("receive", instr.ReceiveSymbol).
		Str("minReceive", instr.MinReceiveQuantity.String()).
		Str("exchange", instr.ExchangeName).
		Msg("Step 6: Trade instruction built.")

	// ===== STEP 7: SUBMISSION =====
	tx, err := r.submitter.ExecuteTrade(ctx, instr)
	if tx != nil {
		result.Transaction = tx
	}
	if err != nil {
		if !errors.Is(err, types.ErrTradeExecution) {
			err = errors.Join(types.ErrTradeExecution, err)
		}
		return r.fail(result, err, "Cycle failed: trade execution failed.", start, cycleLogger)
	}

	if tx != nil && tx.Simulated {
		result.Status = types.CycleStatusSimulated
		cycleLogger.Info().Uint64("gasEstimate", tx.GasUsed).Msg("Step 7: Trade simulated, nothing broadcast.")
	} else {
		result.Status = types.CycleStatusTraded
		event := cycleLogger.Info()
		if tx != nil {
			event = event.Str("txHash", tx.TxHash).Uint64("block", tx.BlockNumber).Float64("gasFeeETH", tx.GasFeeETH)
		}
		event.Msg("Step 7: Trade confirmed.")
	}
	return r.finish(result, start, cycleLogger)
}

func (r *Rebalancer) fail(result types.CycleResult, err error, msg string, start time.Time, cycleLogger zerolog.Logger) types.CycleResult {
	cycleLogger.Error().Err(err).Msg(msg)
	result.Status = types.CycleStatusFailed
	result.Err = err
	result.ErrorMessage = err.Error()
	return r.finish(result, start, cycleLogger)
}

func (r *Rebalancer) finish(result types.CycleResult, start time.Time, cycleLogger zerolog.Logger) types.CycleResult {
	result.DurationMs = time.Since(start).Milliseconds()

	if _, err := r.recorder.RecordCycle(result.CycleSnapshot); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to record cycle snapshot")
	}

	cycleLogger.Info().
		Str("status", string(result.Status)).
		Int("cycleNumber", result.CycleNumber).
		Int64("durationMs", result.DurationMs).
		Msg("--- Rebalance cycle finished ---")
	return result
}
