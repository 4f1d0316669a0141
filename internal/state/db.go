// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ethmom/rebalancer/internal/config"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Error definitions for zero-tolerance error handling
var (
	ErrDBNotInitialized = errors.New("database not initialized")
	ErrUnknownDriver    = errors.New("unknown database driver")
	ErrInvalidDBConfig  = errors.New("invalid database configuration")
	ErrNotFound         = errors.New("record not found")
)

// DB is a global database connection pool.
var DB *sql.DB

// driver is the dialect DB was opened with.
var driver string

// DBConfig holds database connection parameters.
type DBConfig struct {
	Driver   string // "postgres" or "sqlite"
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
	Path     string // SQLite file path
}

// DBConfigFromSettings maps the loaded configuration onto connection parameters.
func DBConfigFromSettings(s config.DBSettings) DBConfig {
	return DBConfig{
		Driver:   s.Driver,
		Host:     s.Host,
		Port:     s.Port,
		User:     s.User,
		Password: s.Password,
		DBName:   s.Name,
		SSLMode:  s.SSLMode,
		Path:     s.Path,
	}
}

// OpenRecorder connects to the configured store and returns its recorder. An empty driver
// returns a NoopRecorder.
func OpenRecorder(s config.DBSettings) (Recorder, error) {
	if s.Driver == "" {
		log.Warn().Msg("DB_DRIVER is empty, cycle history will not be persisted")
		return NewNoopRecorder(), nil
	}
	if err := InitDB(DBConfigFromSettings(s)); err != nil {
		return nil, err
	}
	if err := EnsureSchema(); err != nil {
		CloseDB()
		return nil, err
	}
	return NewDBRecorder(), nil
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	var err error
	switch cfg.Driver {
	case DriverPostgres:
		psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		DB, err = sql.Open("postgres", psqlInfo)
		if err != nil {
			return fmt.Errorf("failed to open database connection: %w", err)
		}
		DB.SetMaxOpenConns(25)
		DB.SetMaxIdleConns(25)
		DB.SetConnMaxLifetime(5 * time.Minute)
	case DriverSQLite:
		if cfg.Path == "" {
			return fmt.Errorf("%w: sqlite requires a path", ErrInvalidDBConfig)
		}
		DB, err = sql.Open("sqlite", cfg.Path)
		if err != nil {
			return fmt.Errorf("failed to open database connection: %w", err)
		}
		// SQLite allows one writer at a time
		DB.SetMaxOpenConns(1)
		if _, err := DB.Exec("PRAGMA journal_mode=WAL"); err != nil {
			DB.Close()
			DB = nil
			return fmt.Errorf("failed to set WAL mode: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err := DB.Ping(); err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}
	driver = cfg.Driver

	log.Info().Str("driver", cfg.Driver).Msg("Successfully connected to the state database")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
		DB = nil
	}
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func rebind(query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// schemaStatements returns the DDL for the active driver. Every statement is idempotent.
func schemaStatements() []string {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == DriverPostgres {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS strategy_parameters (
			params_id ` + idColumn + `,
			version INTEGER NOT NULL DEFAULT 1,
			config_name TEXT NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at BIGINT NOT NULL,
			created_at BIGINT NOT NULL,
			tolerance_fraction DOUBLE PRECISION NOT NULL,
			exchange_name TEXT NOT NULL,
			exchange_data TEXT NOT NULL DEFAULT '',
			min_receive_quantity TEXT NOT NULL DEFAULT '0',
			gas_limit BIGINT NOT NULL DEFAULT 0,
			full_asset_b_score DOUBLE PRECISION,
			CONSTRAINT uq_strategy_parameters_config_version UNIQUE (config_name, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_strategy_parameters_config_active ON strategy_parameters(config_name, is_active, activated_at DESC)`,

		`CREATE TABLE IF NOT EXISTS cycle_snapshots (
			snapshot_id ` + idColumn + `,
			cycle_id TEXT NOT NULL,
			cycle_number INTEGER NOT NULL,
			snapshot_timestamp BIGINT NOT NULL,
			params_id BIGINT,
			set_token TEXT NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL DEFAULT 0,

			trend_score DOUBLE PRECISION,
			target_pct_a DOUBLE PRECISION,
			target_pct_b DOUBLE PRECISION,
			total_value DOUBLE PRECISION,
			current_pct_b DOUBLE PRECISION,
			price_b DOUBLE PRECISION,
			direction TEXT NOT NULL DEFAULT 'NONE',
			notional DOUBLE PRECISION NOT NULL DEFAULT 0,
			tx_hash TEXT NOT NULL DEFAULT '',
			gas_fee_eth DOUBLE PRECISION NOT NULL DEFAULT 0,

			composition TEXT,
			decision TEXT,
			instruction TEXT,
			transaction_result TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_timestamp ON cycle_snapshots(snapshot_timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_cycle ON cycle_snapshots(cycle_number DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_status ON cycle_snapshots(status)`,

		`CREATE TABLE IF NOT EXISTS cycle_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at BIGINT NOT NULL DEFAULT 0,
			CONSTRAINT single_row_check CHECK (id = 1)
		)`,
		`INSERT INTO cycle_counter (id, current_cycle, updated_at) VALUES (1, 0, 0) ON CONFLICT (id) DO NOTHING`,
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return ErrDBNotInitialized
	}

	for _, stmt := range schemaStatements() {
		if _, err := DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema DDL: %w", err)
		}
	}
	log.Info().Str("driver", driver).Msg("Database schema ensured")
	return nil
}

// DropSchema removes every table owned by the rebalancer.
func DropSchema() error {
	if DB == nil {
		return ErrDBNotInitialized
	}

	for _, table := range []string{"cycle_snapshots", "strategy_parameters", "cycle_counter"} {
		if _, err := DB.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
		log.Info().Str("table", table).Msg("Dropped table")
	}
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return ErrDBNotInitialized
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
