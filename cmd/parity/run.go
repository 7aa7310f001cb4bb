package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/pixelparity/internal/app"
	"github.com/ternarybob/pixelparity/internal/common"
	"github.com/ternarybob/pixelparity/internal/compare"
	"github.com/ternarybob/pixelparity/internal/models"
)

// errRunFailed marks a run that completed with failing components.
var errRunFailed = errors.New("parity run failed")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build, start and compare every requested component once",
	RunE:  runParity,
}

func runParity(cmd *cobra.Command, args []string) error {
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
		logger.Error().Err(err).Msg("Environment setup failed")
		_ = a.Close()
		return err
	}

	runErr := runOnce(ctx, a)
	if err := a.Close(); err != nil {
		logger.Warn().Err(err).Msg("Shutdown incomplete")
	}
	return runErr
}

// runOnce runs the worklist on a started app and prints a message for
// every failing component. It returns errRunFailed when any failed.
func runOnce(ctx context.Context, a *app.App) error {
	verdicts := a.Runner.Run(ctx, a.Worklist)
	printFailures(verdicts)

	if err := a.Controller.HealthCheck(); err != nil {
		return err
	}

	passed, failed := a.Runner.Summary().Counts()
	fmt.Printf("\n%d passed, %d failed (run %s)\n", passed, failed, a.Runner.RunID())
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d components", errRunFailed, failed, passed+failed)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return nil
}

func printFailures(verdicts []models.Verdict) {
	for _, v := range verdicts {
		if !v.Passed {
			fmt.Printf("\n%s\n", compare.Message(v))
		}
	}
}

// checkRequested fails on requested ids with no scenario and warns about
// catalog drift, which the check command reports in full.
func checkRequested(a *app.App) error {
	c := a.Consistency()
	if report := c.UnknownReport(); report != "" {
		return fmt.Errorf("requested components not found\n%s", report)
	}
	if len(c.MissingScenarios) > 0 || len(c.OrphanScenarios) > 0 {
		logger.Warn().
			Strs("missing_scenarios", c.MissingScenarios).
			Strs("orphan_scenarios", c.OrphanScenarios).
			Msg("Component catalog and scenarios disagree, see 'parity check'")
	}
	if len(a.Worklist) == 0 {
		return errors.New("worklist is empty")
	}
	return nil
}
