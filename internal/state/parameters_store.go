// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethmom/rebalancer/internal/types"
	"github.com/rs/zerolog/log"
)

const strategyParameterColumns = `
	tolerance_fraction, exchange_name, exchange_data,
	min_receive_quantity, gas_limit, full_asset_b_score`

// SaveStrategyParameters saves a new version of strategy parameters.
func SaveStrategyParameters(params types.StrategyParameters, configName string, version int, makeActive bool) (paramsID int64, err error) {
	if DB == nil {
		return 0, ErrDBNotInitialized
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if makeActive {
		_, err = tx.Exec(rebind(`UPDATE strategy_parameters SET is_active = FALSE WHERE config_name = ? AND is_active = TRUE`), configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	var fullAssetB sql.NullFloat64
	if params.FullAssetBScore != nil {
		fullAssetB = sql.NullFloat64{Float64: *params.FullAssetBScore, Valid: true}
	}

	stmt := rebind(`
		INSERT INTO strategy_parameters (
			version, config_name, is_active, activated_at, created_at,` + strategyParameterColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING params_id`)

	now := time.Now().Unix()
	err = tx.QueryRow(
		stmt,
		version, configName, makeActive, now, now,
		params.ToleranceFraction, params.ExchangeName, params.ExchangeData,
		params.MinReceiveQuantity, int64(params.GasLimit), fullAssetB,
	).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert strategy parameters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved strategy parameters")
	return paramsID, nil
}

// LoadActiveStrategyParameters loads the currently active strategy parameters and their id.
// ErrNotFound is returned when no version is active.
func LoadActiveStrategyParameters(configName string) (*types.StrategyParameters, int64, error) {
	return loadStrategyParameters(`WHERE config_name = ? AND is_active = TRUE`, configName)
}

// LoadLatestStrategyParameters loads the most recently activated version, active or not.
func LoadLatestStrategyParameters(configName string) (*types.StrategyParameters, int64, error) {
	return loadStrategyParameters(`WHERE config_name = ?`, configName)
}

func loadStrategyParameters(where string, configName string) (*types.StrategyParameters, int64, error) {
	if DB == nil {
		return nil, 0, ErrDBNotInitialized
	}

	query := rebind(`SELECT params_id,` + strategyParameterColumns + `
		FROM strategy_parameters ` + where + `
		ORDER BY activated_at DESC, params_id DESC
		LIMIT 1`)

	var (
		p          types.StrategyParameters
		paramsID   int64
		gasLimit   int64
		fullAssetB sql.NullFloat64
	)
	err := DB.QueryRow(query, configName).Scan(
		&paramsID,
		&p.ToleranceFraction, &p.ExchangeName, &p.ExchangeData,
		&p.MinReceiveQuantity, &gasLimit, &fullAssetB,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, fmt.Errorf("%w: strategy parameters for config %s", ErrNotFound, configName)
		}
		return nil, 0, fmt.Errorf("failed to load strategy parameters for %s: %w", configName, err)
	}
	if gasLimit > 0 {
		p.GasLimit = uint64(gasLimit)
	}
	if fullAssetB.Valid {
		v := fullAssetB.Float64
		p.FullAssetBScore = &v
	}

	log.Debug().Str("config", configName).Int64("params_id", paramsID).Msg("Loaded strategy parameters")
	return &p, paramsID, nil
}

// GetActiveStrategyParametersID returns the id of the active version, or nil when none is active.
func GetActiveStrategyParametersID(configName string) (*int64, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}

	var id int64
	err := DB.QueryRow(rebind(`
		SELECT params_id FROM strategy_parameters
		WHERE config_name = ? AND is_active = TRUE
		ORDER BY activated_at DESC, params_id DESC
		LIMIT 1`), configName).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active parameters id: %w", err)
	}
	return &id, nil
}

// SyncStrategyParameters makes params the active version for configName and returns its id.
// When the active version already holds the same values it is reused, otherwise a new version
// is saved and activated.
func SyncStrategyParameters(params types.StrategyParameters, configName string) (int64, error) {
	active, id, err := LoadActiveStrategyParameters(configName)
	if err == nil && sameStrategyParameters(*active, params) {
		return id, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	var latest sql.NullInt64
	if err := DB.QueryRow(rebind(`SELECT MAX(version) FROM strategy_parameters WHERE config_name = ?`), configName).Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to read latest version for %s: %w", configName, err)
	}
	version := 1
	if latest.Valid {
		version = int(latest.Int64) + 1
	}
	return SaveStrategyParameters(params, configName, version, true)
}

func sameStrategyParameters(a, b types.StrategyParameters) bool {
	if (a.FullAssetBScore == nil) != (b.FullAssetBScore == nil) {
		return false
	}
	if a.FullAssetBScore != nil && *a.FullAssetBScore != *b.FullAssetBScore {
		return false
	}
	return a.ToleranceFraction == b.ToleranceFraction &&
		a.ExchangeName == b.ExchangeName &&
		a.ExchangeData == b.ExchangeData &&
		a.MinReceiveQuantity == b.MinReceiveQuantity &&
		a.GasLimit == b.GasLimit
}
