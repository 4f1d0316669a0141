package rebalancer

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Schedule runs one cycle immediately and then one per tick of spec (standard cron syntax or
// descriptors such as "@every 10m") until ctx is done. Ticks that arrive while a cycle is
// still running are skipped.
func (r *Rebalancer) Schedule(ctx context.Context, spec string) error {
	cl := cronLogger{logger: r.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(spec, func() { r.RunCycle(ctx) }); err != nil {
		return fmt.Errorf("%w: schedule %q: %w", ErrInvalidConfig, spec, err)
	}

	r.logger.Info().Str("schedule", spec).Msg("Starting scheduled rebalancing")

	// Run first cycle immediately
	r.RunCycle(ctx)

	c.Start()
	<-ctx.Done()

	r.logger.Info().Msg("Rebalancing schedule stopped due to context cancellation")
	<-c.Stop().Done()
	return nil
}
