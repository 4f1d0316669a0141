/*

This file contains the persistent cycle counter. It is a single row (id = 1) so cycle numbers
keep increasing across restarts and across the bot and `setctl rebalance`.

*/

package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const counterRowID = 1

// GetCurrentCycleNumber returns the last issued cycle number, 0 before the first cycle.
func GetCurrentCycleNumber() (int, error) {
	if DB == nil {
		return 0, ErrDBNotInitialized
	}

	var n int
	err := DB.QueryRow(rebind(`SELECT current_cycle FROM cycle_counter WHERE id = ?`), counterRowID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cycle counter: %w", err)
	}
	return n, nil
}

// IncrementCycleNumber issues the next cycle number. The counter row is created on first use
// if EnsureSchema's seed row is missing.
func IncrementCycleNumber() (int, error) {
	if DB == nil {
		return 0, ErrDBNotInitialized
	}

	query := rebind(`
		INSERT INTO cycle_counter (id, current_cycle, updated_at) VALUES (?, 1, ?)
		ON CONFLICT (id) DO UPDATE
		SET current_cycle = cycle_counter.current_cycle + 1,
		    updated_at = excluded.updated_at
		RETURNING current_cycle`)

	var n int
	if err := DB.QueryRow(query, counterRowID, time.Now().Unix()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to increment cycle counter: %w", err)
	}

	log.Debug().Int("cycle", n).Msg("Cycle number issued")
	return n, nil
}

// ResetCycleNumber sets the counter, for maintenance. The next cycle gets n+1.
func ResetCycleNumber(n int) error {
	if DB == nil {
		return ErrDBNotInitialized
	}
	if n < 0 {
		return fmt.Errorf("cycle number cannot be negative: %d", n)
	}

	query := rebind(`
		INSERT INTO cycle_counter (id, current_cycle, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET current_cycle = excluded.current_cycle,
		    updated_at = excluded.updated_at`)
	if _, err := DB.Exec(query, counterRowID, n, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to reset cycle counter to %d: %w", n, err)
	}

	log.Warn().Int("cycle", n).Msg("Cycle counter reset")
	return nil
}
