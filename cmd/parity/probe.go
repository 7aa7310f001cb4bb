package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/pixelparity/internal/app"
	"github.com/ternarybob/pixelparity/internal/models"
	"github.com/ternarybob/pixelparity/internal/probe"
)

var probeStart bool

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Fetch every render target over HTTP and report server-side render problems",
	Long: `probe requests each target URL without a browser and inspects the
server-rendered markup for the capture root, the framework error page and the
fatal error template. It targets --base-url or the configured host and port;
pass --start to build and start the server first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(config, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := checkRequested(a); err != nil {
			return err
		}
		if probeStart {
			if err := a.Start(ctx); err != nil {
				return err
			}
		}

		results := probeAll(ctx, a.NewProber(), a.Worklist, config.Suite.Concurrency)

		failed := 0
		for _, result := range results {
			fmt.Println(result.String())
			if !result.OK() {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d targets failed the probe", failed, len(results))
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().BoolVar(&probeStart, "start", false, "Build and start the server before probing")
}

// probeAll probes both variants of every scenario, in worklist order.
func probeAll(ctx context.Context, prober *probe.Prober, worklist []models.Scenario, limit int) []probe.Result {
	results := make([]probe.Result, 0, len(worklist)*len(models.Variants))
	for _, scenario := range worklist {
		for _, variant := range models.Variants {
			results = append(results, probe.Result{Target: scenario.Target(variant)})
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(max(limit, 1))
	for i := range results {
		g.Go(func() error {
			results[i] = prober.Probe(ctx, results[i].Target)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
