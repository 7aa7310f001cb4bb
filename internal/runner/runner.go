// Package runner drives the per-component pipeline: capture both variants,
// compare, persist artifacts on failure and record history.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/ternarybob/pixelparity/internal/common"
	"github.com/ternarybob/pixelparity/internal/compare"
	"github.com/ternarybob/pixelparity/internal/history"
	"github.com/ternarybob/pixelparity/internal/models"
	"github.com/ternarybob/pixelparity/internal/report"
)

// Capturer produces a snapshot bundle for one target. Implementations
// never fail; problems are recorded in the bundle.
type Capturer interface {
	Capture(ctx context.Context, target models.CaptureTarget, settle []string) *models.SnapshotBundle
}

// ArtifactWriter persists the bundles of a failed comparison.
type ArtifactWriter interface {
	Write(component string, a, b *models.SnapshotBundle) (string, error)
}

// Runner compares components. Safe for concurrent use.
type Runner struct {
	capturer  Capturer
	artifacts ArtifactWriter
	history   history.Store
	summary   *report.Summary
	logger    arbor.ILogger

	runID            string
	baseURL          string
	concurrency      int
	componentTimeout time.Duration
	slots            *semaphore.Weighted
	limiter          *rate.Limiter
}

// New creates a runner with a fresh run id.
func New(capturer Capturer, artifacts ArtifactWriter, store history.Store, config *common.Config, baseURL string, logger arbor.ILogger) *Runner {
	if store == nil {
		store = history.NoopStore{}
	}

	runID := uuid.New().String()
	r := &Runner{
		capturer:         capturer,
		artifacts:        artifacts,
		history:          store,
		summary:          report.NewSummary(runID, time.Now()),
		logger:           logger,
		runID:            runID,
		baseURL:          baseURL,
		concurrency:      config.Suite.Concurrency,
		componentTimeout: common.Duration(config.Suite.ComponentTimeout, 90*time.Second),
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	r.slots = semaphore.NewWeighted(int64(r.concurrency))
	if rps := config.Suite.CapturesPerSecond; rps > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return r
}

// RunID returns the identifier of this run.
func (r *Runner) RunID() string {
	return r.runID
}

// Summary returns the verdicts collected so far.
func (r *Runner) Summary() *report.Summary {
	return r.summary
}

// CompareComponent captures both variants of a scenario concurrently and
// returns the verdict. At most suite.concurrency comparisons run at once,
// whoever calls. The component timeout starts once a slot is held and
// bounds everything, captures included.
func (r *Runner) CompareComponent(ctx context.Context, scenario models.Scenario) models.Verdict {
	if err := r.slots.Acquire(ctx, 1); err == nil {
		defer r.slots.Release(1)
	}

	startTime := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.componentTimeout)
	defer cancel()

	r.logger.Debug().
		Str("component", scenario.ID).
		Str("state", string(models.StateCapturingA)).
		Msg("Capturing variants")

	bundles := make([]*models.SnapshotBundle, len(models.Variants))
	var wg sync.WaitGroup
	for i, variant := range models.Variants {
		wg.Add(1)
		go func(i int, target models.CaptureTarget) {
			defer wg.Done()
			r.pace(ctx)
			bundles[i] = r.capturer.Capture(ctx, target, scenario.Settle)
		}(i, scenario.Target(variant))
	}
	wg.Wait()

	a, b := bundles[0], bundles[1]
	verdict := compare.Compare(scenario.ID, a, b, scenario.A.Label, scenario.B.Label)
	verdict.BaseURL = r.baseURL
	verdict.Duration = time.Since(startTime)

	if !verdict.Passed && r.artifacts != nil {
		dir, err := r.artifacts.Write(scenario.ID, a, b)
		if err != nil {
			r.logger.Error().Err(err).Str("component", scenario.ID).Msg("Failed to write artifacts")
		}
		verdict.ArtifactDir = dir
	}

	// History outlives the component deadline.
	if err := r.history.Record(context.Background(), history.NewRecord(r.runID, verdict, startTime)); err != nil {
		r.logger.Warn().Err(err).Str("component", scenario.ID).Msg("Failed to record run history")
	}
	r.summary.Add(verdict)

	event := r.logger.Info()
	if !verdict.Passed {
		event = r.logger.Warn().Strs("reasons", verdict.Reasons).Str("artifacts", verdict.ArtifactDir)
	}
	event.
		Str("component", scenario.ID).
		Str("state", string(verdict.State)).
		Bool("passed", verdict.Passed).
		Bool("a11y_match", verdict.AccessibilityMatch).
		Dur("duration", verdict.Duration).
		Msg("Component compared")

	return verdict
}

// Run compares every scenario with at most suite.concurrency components
// in flight and returns the verdicts in worklist order.
func (r *Runner) Run(ctx context.Context, worklist []models.Scenario) []models.Verdict {
	r.logger.Info().
		Str("run_id", r.runID).
		Int("components", len(worklist)).
		Int("concurrency", r.concurrency).
		Msg("Starting parity run")

	verdicts := make([]models.Verdict, len(worklist))
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for i, scenario := range worklist {
		g.Go(func() error {
			verdicts[i] = r.CompareComponent(ctx, scenario)
			return nil
		})
	}
	_ = g.Wait()

	passed, failed := r.summary.Counts()
	r.logger.Info().
		Str("run_id", r.runID).
		Int("passed", passed).
		Int("failed", failed).
		Msg("Parity run finished")
	return verdicts
}

func (r *Runner) pace(ctx context.Context) {
	if r.limiter == nil {
		return
	}
	if err := r.limiter.Wait(ctx); err != nil {
		r.logger.Debug().Err(err).Msg("Capture pacing interrupted")
	}
}
