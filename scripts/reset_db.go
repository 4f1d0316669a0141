package main

import (
	"os"

	"github.com/ethmom/rebalancer/internal/config"
	"github.com/ethmom/rebalancer/internal/logger"
	"github.com/ethmom/rebalancer/internal/state"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Initialize(logLevel)
	log.Info().Msg("Starting database reset script...")

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	settings, err := config.LoadDBSettings()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid database configuration")
	}
	if settings.Driver == "" {
		log.Fatal().Msg("DB_DRIVER environment variable not set (postgres or sqlite).")
	}
	if settings.Driver == state.DriverPostgres && (settings.User == "" || settings.Name == "") {
		log.Fatal().Msg("DB_USER and DB_NAME must be set for postgres.")
	}

	log.Info().
		Str("driver", settings.Driver).
		Str("host", settings.Host).
		Int("port", settings.Port).
		Str("dbname", settings.Name).
		Str("path", settings.Path).
		Msg("Connecting to database")

	if err := state.InitDB(state.DBConfigFromSettings(settings)); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer state.CloseDB()

	log.Info().Msg("Connected to database. Attempting to drop all tables...")
	if err := state.DropSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to drop tables")
	}
	log.Info().Msg("Successfully dropped all tables")

	log.Info().Msg("Recreating database schema...")
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to recreate database schema")
	}
	log.Info().Msg("Database reset complete!")
}
