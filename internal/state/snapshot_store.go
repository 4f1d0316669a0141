// ./internal/state/snapshot_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethmom/rebalancer/internal/types"
	"github.com/rs/zerolog/log"
)

const snapshotColumns = `
	snapshot_id, cycle_id, cycle_number, snapshot_timestamp, params_id, set_token,
	status, error_message, duration_ms,
	trend_score, target_pct_a, target_pct_b,
	composition, decision, instruction, transaction_result`

// SaveCycleSnapshot saves a complete cycle snapshot to the database.
func SaveCycleSnapshot(snapshot types.CycleSnapshot) (int64, error) {
	if DB == nil {
		return 0, ErrDBNotInitialized
	}

	compositionJSON, err := marshalNullable(snapshot.Composition != nil, snapshot.Composition)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal composition: %w", err)
	}
	decisionJSON, err := marshalNullable(snapshot.Decision != nil, snapshot.Decision)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal decision: %w", err)
	}
	instructionJSON, err := marshalNullable(snapshot.Instruction != nil, snapshot.Instruction)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal instruction: %w", err)
	}
	transactionJSON, err := marshalNullable(snapshot.Transaction != nil, snapshot.Transaction)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal transaction: %w", err)
	}

	// Flattened columns feed the analytics queries
	var (
		paramsID                     sql.NullInt64
		trendScore, targetA, targetB sql.NullFloat64
		totalValue, pctB, priceB     sql.NullFloat64
		notional, gasFee             float64
		txHash                       string
	)
	direction := types.DirectionNone
	if snapshot.ParamsID != nil {
		paramsID = sql.NullInt64{Int64: *snapshot.ParamsID, Valid: true}
	}
	if snapshot.TrendScore != nil {
		trendScore = sql.NullFloat64{Float64: *snapshot.TrendScore, Valid: true}
	}
	if snapshot.Target != nil {
		targetA = sql.NullFloat64{Float64: snapshot.Target.PctA, Valid: true}
		targetB = sql.NullFloat64{Float64: snapshot.Target.PctB, Valid: true}
	}
	if c := snapshot.Composition; c != nil {
		totalValue = sql.NullFloat64{Float64: c.TotalValue, Valid: true}
		pctB = sql.NullFloat64{Float64: c.PctB, Valid: true}
		priceB = sql.NullFloat64{Float64: c.PriceB, Valid: true}
	}
	if d := snapshot.Decision; d != nil && d.Required {
		direction = d.Direction
		notional = d.Notional
	}
	if t := snapshot.Transaction; t != nil {
		txHash = t.TxHash
		gasFee = t.GasFeeETH
	}

	timestamp := snapshot.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	query := rebind(`
		INSERT INTO cycle_snapshots (
			cycle_id, cycle_number, snapshot_timestamp, params_id, set_token,
			status, error_message, duration_ms,
			trend_score, target_pct_a, target_pct_b,
			total_value, current_pct_b, price_b, direction, notional, tx_hash, gas_fee_eth,
			composition, decision, instruction, transaction_result
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING snapshot_id`)

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.CycleID, snapshot.CycleNumber, timestamp.Unix(), paramsID, snapshot.SetToken.Hex(),
		string(snapshot.Status), snapshot.ErrorMessage, snapshot.DurationMs,
		trendScore, targetA, targetB,
		totalValue, pctB, priceB, string(direction), notional, txHash, gasFee,
		compositionJSON, decisionJSON, instructionJSON, transactionJSON,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Str("status", string(snapshot.Status)).
		Msg("Cycle snapshot saved to database")

	return snapshotID, nil
}

// GetRecentCycles returns the most recent cycle snapshots, newest first.
func GetRecentCycles(limit int) ([]types.CycleSnapshot, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := DB.Query(rebind(`SELECT`+snapshotColumns+`
		FROM cycle_snapshots
		ORDER BY snapshot_timestamp DESC, snapshot_id DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]types.CycleSnapshot, 0, limit)
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, *snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle rows: %w", err)
	}
	return cycles, nil
}

// GetCycleByID returns one snapshot by its snapshot id.
func GetCycleByID(snapshotID int64) (*types.CycleSnapshot, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}

	row := DB.QueryRow(rebind(`SELECT`+snapshotColumns+` FROM cycle_snapshots WHERE snapshot_id = ?`), snapshotID)
	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: cycle snapshot %d", ErrNotFound, snapshotID)
		}
		return nil, err
	}
	return snapshot, nil
}

// GetLatestCycle returns the newest snapshot.
func GetLatestCycle() (*types.CycleSnapshot, error) {
	cycles, err := GetRecentCycles(1)
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, fmt.Errorf("%w: no cycles recorded", ErrNotFound)
	}
	return &cycles[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*types.CycleSnapshot, error) {
	var (
		s                            types.CycleSnapshot
		timestamp                    int64
		paramsID                     sql.NullInt64
		setToken, status             string
		trendScore, targetA, targetB sql.NullFloat64
		composition, decision        sql.NullString
		instruction, transaction     sql.NullString
	)
	err := row.Scan(
		&s.SnapshotID, &s.CycleID, &s.CycleNumber, &timestamp, &paramsID, &setToken,
		&status, &s.ErrorMessage, &s.DurationMs,
		&trendScore, &targetA, &targetB,
		&composition, &decision, &instruction, &transaction,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan cycle snapshot: %w", err)
	}

	s.Timestamp = time.Unix(timestamp, 0).UTC()
	s.SetToken = common.HexToAddress(setToken)
	s.Status = types.CycleStatus(status)
	if paramsID.Valid {
		id := paramsID.Int64
		s.ParamsID = &id
	}
	if trendScore.Valid {
		score := trendScore.Float64
		s.TrendScore = &score
	}
	if targetA.Valid && targetB.Valid {
		s.Target = &types.TargetAllocation{PctA: targetA.Float64, PctB: targetB.Float64}
	}

	if composition.Valid {
		s.Composition = &types.Composition{}
		if err := json.Unmarshal([]byte(composition.String), s.Composition); err != nil {
			return nil, fmt.Errorf("failed to unmarshal composition: %w", err)
		}
	}
	if decision.Valid {
		s.Decision = &types.Decision{}
		if err := json.Unmarshal([]byte(decision.String), s.Decision); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decision: %w", err)
		}
	}
	if instruction.Valid {
		s.Instruction = &types.TradeInstruction{}
		if err := json.Unmarshal([]byte(instruction.String), s.Instruction); err != nil {
			return nil, fmt.Errorf("failed to unmarshal instruction: %w", err)
		}
	}
	if transaction.Valid {
		s.Transaction = &types.TransactionResult{}
		if err := json.Unmarshal([]byte(transaction.String), s.Transaction); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
		}
	}
	return &s, nil
}

func marshalNullable(present bool, v any) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
