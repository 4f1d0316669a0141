package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethmom/rebalancer/internal/types"
	"github.com/rs/zerolog/log"
)

// VaultSummary represents the last observed vault state
type VaultSummary struct {
	SetToken       string   `json:"set_token"`
	TotalValue     float64  `json:"total_value"`
	PctA           float64  `json:"pct_a"`
	PctB           float64  `json:"pct_b"`
	PriceB         float64  `json:"price_b"`
	LastTrendScore *float64 `json:"last_trend_score,omitempty"`
	LastStatus     string   `json:"last_status"`
	TotalCycles    int      `json:"total_cycles"`
	LastUpdated    string   `json:"last_updated"`
}

// PerformanceMetrics represents aggregated cycle outcomes
type PerformanceMetrics struct {
	TotalCycles             int     `json:"total_cycles"`
	TradedCycles            int     `json:"traded_cycles"`
	NoTradeCycles           int     `json:"no_trade_cycles"`
	SimulatedCycles         int     `json:"simulated_cycles"`
	SignalUnavailableCycles int     `json:"signal_unavailable_cycles"`
	FailedCycles            int     `json:"failed_cycles"`
	TotalGasFeesETH         float64 `json:"total_gas_fees_eth"`
	AvgDurationMs           float64 `json:"avg_duration_ms"`
	SuccessRate             float64 `json:"success_rate"` // Share of cycles that did not fail, in percent
}

// GetVaultSummary builds the summary from the newest snapshot that observed the vault.
func GetVaultSummary() (*VaultSummary, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}

	summary := &VaultSummary{}
	if err := DB.QueryRow(`SELECT COUNT(*) FROM cycle_snapshots`).Scan(&summary.TotalCycles); err != nil {
		return nil, fmt.Errorf("failed to count cycles: %w", err)
	}

	var (
		timestamp                int64
		totalValue, pctB, priceB sql.NullFloat64
		trendScore               sql.NullFloat64
	)
	err := DB.QueryRow(`
		SELECT set_token, status, snapshot_timestamp, total_value, current_pct_b, price_b, trend_score
		FROM cycle_snapshots
		WHERE total_value IS NOT NULL
		ORDER BY snapshot_timestamp DESC, snapshot_id DESC
		LIMIT 1`).Scan(&summary.SetToken, &summary.LastStatus, &timestamp, &totalValue, &pctB, &priceB, &trendScore)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug().Msg("No vault observations recorded yet")
			return summary, nil
		}
		return nil, fmt.Errorf("failed to query vault summary: %w", err)
	}

	summary.TotalValue = totalValue.Float64
	summary.PctB = pctB.Float64
	summary.PctA = 100.0 - pctB.Float64
	summary.PriceB = priceB.Float64
	if trendScore.Valid {
		score := trendScore.Float64
		summary.LastTrendScore = &score
	}
	summary.LastUpdated = time.Unix(timestamp, 0).UTC().Format(time.RFC3339)
	return summary, nil
}

// GetPerformanceMetrics aggregates cycle outcomes by status.
func GetPerformanceMetrics() (*PerformanceMetrics, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}

	rows, err := DB.Query(`
		SELECT status, COUNT(*), COALESCE(SUM(gas_fee_eth), 0), COALESCE(SUM(duration_ms), 0)
		FROM cycle_snapshots
		GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance metrics: %w", err)
	}
	defer rows.Close()

	metrics := &PerformanceMetrics{}
	var totalDuration float64
	for rows.Next() {
		var (
			status   string
			count    int
			gasFees  float64
			duration float64
		)
		if err := rows.Scan(&status, &count, &gasFees, &duration); err != nil {
			return nil, fmt.Errorf("failed to scan performance row: %w", err)
		}

		metrics.TotalCycles += count
		metrics.TotalGasFeesETH += gasFees
		totalDuration += duration
		switch types.CycleStatus(status) {
		case types.CycleStatusTraded:
			metrics.TradedCycles += count
		case types.CycleStatusNoTrade:
			metrics.NoTradeCycles += count
		case types.CycleStatusSimulated:
			metrics.SimulatedCycles += count
		case types.CycleStatusSignalUnavailable:
			metrics.SignalUnavailableCycles += count
		default:
			metrics.FailedCycles += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating performance rows: %w", err)
	}

	if metrics.TotalCycles > 0 {
		metrics.AvgDurationMs = totalDuration / float64(metrics.TotalCycles)
		metrics.SuccessRate = float64(metrics.TotalCycles-metrics.FailedCycles) / float64(metrics.TotalCycles) * 100.0
	}
	return metrics, nil
}
