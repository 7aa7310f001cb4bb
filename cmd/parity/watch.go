package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ternarybob/pixelparity/internal/app"
	"github.com/ternarybob/pixelparity/internal/common"
)

var watchImmediate bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the environment up and re-run the comparison on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		schedule := config.Watch.Schedule
		if schedule == "" {
			return fmt.Errorf("no schedule configured, set [watch] schedule")
		}
		if _, err := cron.ParseStandard(schedule); err != nil {
			return fmt.Errorf("invalid watch schedule %q: %w", schedule, err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		common.PrintBanner(config, logger)

		a, err := app.New(config, logger)
		if err != nil {
			return err
		}
		if err := checkRequested(a); err != nil {
			return err
		}
		if err := a.Start(ctx); err != nil {
			_ = a.Close()
			return err
		}
		defer a.Close()

		// Cron ticks and the initial run share one lock so runs never overlap.
		var running sync.Mutex
		job := func() {
			if !running.TryLock() {
				logger.Info().Msg("Previous run still in progress, skipping tick")
				return
			}
			defer running.Unlock()
			common.SafeCall(logger, "parity-watch", func() {
				scheduledRun(ctx, a)
			})
		}

		c := cron.New()
		if _, err := c.AddFunc(schedule, job); err != nil {
			return fmt.Errorf("failed to schedule watch: %w", err)
		}
		c.Start()
		logger.Info().Str("schedule", schedule).Msg("Watching for parity regressions")

		if watchImmediate {
			common.SafeGo(logger, "parity-watch-initial", job)
		}

		<-ctx.Done()
		logger.Info().Msg("Stopping watch")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchImmediate, "now", false, "Run once immediately instead of waiting for the first tick")
}

// scheduledRun starts a fresh run on the shared environment and writes its
// summary. Failures are logged; the watch keeps going.
func scheduledRun(ctx context.Context, a *app.App) {
	if err := a.Controller.HealthCheck(); err != nil {
		logger.Error().Err(err).Msg("Server is down, skipping scheduled run")
		return
	}
	if _, err := a.NewRun(); err != nil {
		logger.Error().Err(err).Msg("Failed to prepare scheduled run")
		return
	}

	if err := runOnce(ctx, a); err != nil {
		logger.Warn().Err(err).Msg("Scheduled parity run failed")
	}
	if err := a.WriteSummary(); err != nil {
		logger.Warn().Err(err).Msg("Failed to write summary")
	}
}
