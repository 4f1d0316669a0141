package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ethmom/rebalancer/internal/app"
	"github.com/ethmom/rebalancer/internal/config"
	"github.com/ethmom/rebalancer/internal/logger"
	"github.com/ethmom/rebalancer/internal/web"
)

const shutdownTimeout = 10 * time.Second

// main is the entry point for the ETHMOM rebalancing bot.
func main() {
	os.Exit(run())
}

func run() int {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}
	if err := cfg.ValidateBot(); err != nil {
		log.Error().Err(err).Msg("Invalid bot configuration. Set BOT_MODE=live or BOT_MODE=simulate to run.")
		return 1
	}

	logger.Initialize(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogFile != "" {
		if err := logger.AttachFile(cfg.LogFile); err != nil {
			log.Error().Err(err).Str("path", cfg.LogFile).Msg("Failed to open log file")
			return 1
		}
	}
	log.Info().Str("mode", cfg.Mode).Str("runMode", cfg.RunMode).Msg("ETHMOM rebalancer starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. History store (optional) ---
	recorder, paramsID, err := app.OpenHistory(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open cycle history store")
		return 1
	}
	defer recorder.Close()

	// --- 3. Chain and SetToken ---
	chain, err := app.Connect(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to chain")
		return 1
	}
	defer chain.Close()

	setToken, err := chain.SetToken(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve SetToken")
		return 1
	}

	// --- 4. Rebalancer with dependency injection ---
	rb, err := app.NewRebalancer(cfg, chain, setToken, recorder, paramsID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create rebalancer")
		return 1
	}

	if cfg.RunMode == config.RunModeOnce {
		result := rb.RunCycle(ctx)
		log.Info().Str("status", string(result.Status)).Int("exitCode", result.Status.ExitCode()).Msg("Single cycle finished")
		return result.Status.ExitCode()
	}

	// --- 5. Scheduled mode with dashboard ---
	webServer := web.NewWebServer(cfg.WebPort, cfg.StrategyConfigName)
	go func() {
		log.Info().Str("port", cfg.WebPort).Str("url", "http://localhost:"+cfg.WebPort).Msg("Starting ETHMOM web dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed")
		}
	}()

	if err := rb.Schedule(ctx, cfg.Schedule); err != nil {
		log.Error().Err(err).Msg("Failed to start schedule")
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Web server did not shut down cleanly")
	}
	log.Info().Msg("ETHMOM rebalancer stopped")
	return 0
}
