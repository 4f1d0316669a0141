package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ethmom/rebalancer/internal/app"
	"github.com/ethmom/rebalancer/internal/config"
	"github.com/ethmom/rebalancer/internal/logger"
)

// exitCodeError carries a non-zero process exit code out of a command.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string { return "exit status" }

// session is the state shared by every subcommand once PersistentPreRunE has run.
type session struct {
	cfg   *config.Config
	chain *app.Chain
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}
	var exit exitCodeError
	if errors.As(err, &exit) {
		stop()
		os.Exit(exit.code)
	}
	log.Error().Err(err).Msg("setctl failed")
	stop()
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	s := &session{}

	root := &cobra.Command{
		Use:           "setctl",
		Short:         "Operate the ETHMOM SetToken: create, fund, initialize, inspect and rebalance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Initialize(cfg.LogLevel, cfg.LogFormat)
			if cfg.LogFile != "" {
				if err := logger.AttachFile(cfg.LogFile); err != nil {
					return err
				}
			}

			chain, err := app.Connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			s.cfg = cfg
			s.chain = chain
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if s.chain != nil {
				s.chain.Close()
			}
		},
	}

	root.AddCommand(
		newCreateCmd(s),
		newInitTradeCmd(s),
		newInitIssuanceCmd(s),
		newWrapETHCmd(s),
		newSwapETHCmd(s),
		newApproveCmd(s),
		newIssueCmd(s),
		newRedeemCmd(s),
		newInspectCmd(s),
		newRebalanceCmd(s),
	)
	return root
}
