package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pixelparity/internal/capture"
	"github.com/ternarybob/pixelparity/internal/catalog"
	"github.com/ternarybob/pixelparity/internal/common"
	"github.com/ternarybob/pixelparity/internal/environment"
	"github.com/ternarybob/pixelparity/internal/history"
	"github.com/ternarybob/pixelparity/internal/models"
	"github.com/ternarybob/pixelparity/internal/probe"
	"github.com/ternarybob/pixelparity/internal/report"
	"github.com/ternarybob/pixelparity/internal/runner"
)

// App holds all harness components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Scenario resolution
	Registry   *catalog.Registry
	Catalog    []string
	Worklist   []models.Scenario
	Components []string // Requested component ids, empty for all

	// Environment and capture (set by Start)
	Controller *environment.Controller
	Capturer   *capture.Capturer
	Runner     *runner.Runner
	Prober     *probe.Prober

	// Output
	Artifacts *report.Artifacts
	History   history.Store

	started bool
}

// New loads the scenario registry and the component catalog. It does not
// touch the server or the browser.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config:     cfg,
		Logger:     logger,
		Components: cfg.Suite.Components,
		Artifacts:  report.NewArtifacts(cfg.Output.ArtifactsDir, logger),
		History:    history.NoopStore{},
	}

	if err := a.initCatalog(); err != nil {
		return nil, err
	}

	a.Worklist = a.Registry.Worklist(a.Components)

	logger.Info().
		Int("scenarios", a.Registry.Len()).
		Int("catalog", len(a.Catalog)).
		Int("worklist", len(a.Worklist)).
		Msg("Scenario registry loaded")

	return a, nil
}

func (a *App) initCatalog() error {
	registry, err := catalog.LoadScenarios(a.Config.Catalog.ScenariosFile)
	if err != nil {
		return fmt.Errorf("failed to load scenarios: %w", err)
	}
	a.Registry = registry

	components, err := catalog.ListComponents(a.Config.Catalog.ComponentsDir, a.Config.Catalog.ComponentPattern)
	if err != nil {
		return fmt.Errorf("failed to list components: %w", err)
	}
	if len(components) == 0 {
		// An empty catalog shows up as orphans, not as a setup failure.
		a.Logger.Warn().
			Str("dir", a.Config.Catalog.ComponentsDir).
			Str("pattern", a.Config.Catalog.ComponentPattern).
			Msg("No component files found")
	}
	a.Catalog = components
	return nil
}

// Consistency checks the catalog, the registry and the requested ids
// against each other.
func (a *App) Consistency() catalog.Consistency {
	return catalog.Check(a.Catalog, a.Registry, a.Components)
}

// Start brings up the environment: it resets the artifact directory, then
// builds and starts the server (unless external) and launches the browser,
// all within the setup timeout. Any failure here is fatal for the run.
func (a *App) Start(ctx context.Context) error {
	if a.started {
		return nil
	}

	if err := a.Artifacts.Reset(); err != nil {
		return fmt.Errorf("failed to reset artifacts: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, common.Duration(a.Config.Suite.SetupTimeout, 5*time.Minute))
	defer cancel()

	a.Controller = environment.NewController(a.Config, a.Logger)
	if err := a.Controller.Start(setupCtx); err != nil {
		_ = a.Controller.Stop()
		return fmt.Errorf("environment setup failed: %w", err)
	}

	store, err := history.Open(a.Logger, &a.Config.History)
	if err != nil {
		// History is advisory; a locked or corrupt store must not block a run.
		a.Logger.Warn().Err(err).Str("path", a.Config.History.Path).Msg("Run history disabled")
		store = history.NoopStore{}
	}
	a.History = store

	browser, err := a.Controller.RequireBrowser()
	if err != nil {
		return err
	}

	baseURL := a.Controller.BaseURL()
	a.Capturer = capture.NewCapturer(browser, baseURL, a.Config, a.Logger)
	a.Runner = runner.New(a.Capturer, a.Artifacts, a.History, a.Config, baseURL, a.Logger)
	a.started = true

	a.Logger.Info().
		Str("run_id", a.Runner.RunID()).
		Str("base_url", baseURL).
		Bool("started_server", a.Controller.StartedServer()).
		Msg("Environment ready")
	return nil
}

// NewRun replaces the runner with a fresh one on the running environment:
// new run id, empty summary, reset artifact directory. Used by scheduled
// re-runs that keep the server and browser up between runs.
func (a *App) NewRun() (*runner.Runner, error) {
	if !a.started {
		return nil, fmt.Errorf("app: %w", models.ErrServerNotStarted)
	}
	if err := a.Artifacts.Reset(); err != nil {
		return nil, fmt.Errorf("failed to reset artifacts: %w", err)
	}
	a.Runner = runner.New(a.Capturer, a.Artifacts, a.History, a.Config, a.Controller.BaseURL(), a.Logger)
	return a.Runner, nil
}

// WriteSummary writes the current run's summary into the artifact root.
func (a *App) WriteSummary() error {
	if a.Runner == nil {
		return nil
	}
	if err := a.Runner.Summary().Write(a.Artifacts.Root()); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	a.Logger.Info().Str("dir", a.Artifacts.Root()).Str("run_id", a.Runner.RunID()).Msg("Run summary written")
	return nil
}

// NewProber returns a prober for the resolved base URL. It needs no browser.
func (a *App) NewProber() *probe.Prober {
	if a.Prober == nil {
		baseURL := a.Config.ResolvedBaseURL()
		if a.Controller != nil {
			baseURL = a.Controller.BaseURL()
		}
		a.Prober = probe.NewProber(baseURL, a.Config, a.Logger)
	}
	return a.Prober
}

// OpenHistory opens the history store without starting the environment.
func (a *App) OpenHistory() error {
	store, err := history.Open(a.Logger, &a.Config.History)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	a.History = store
	return nil
}

// Close writes the run summary and tears everything down. Safe to call
// when Start failed or never ran.
func (a *App) Close() error {
	var errs []error

	if err := a.WriteSummary(); err != nil {
		errs = append(errs, err)
	}

	if a.History != nil {
		if err := a.History.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close history: %w", err))
		}
	}

	if a.Controller != nil {
		if err := a.Controller.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop environment: %w", err))
		}
	}

	return errors.Join(errs...)
}
