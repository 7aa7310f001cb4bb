package parity

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pixelparity/internal/app"
	"github.com/ternarybob/pixelparity/internal/common"
)

// Suite state shared by the tests in this package. suite is nil when the
// scenario file could not be loaded; e2e is true once the environment is up.
var (
	suite    *app.App
	suiteErr error
	e2e      bool
	logger   arbor.ILogger
)

// TestMain loads the configuration and the scenario registry. With
// PARITY_E2E=1 it also builds and starts the server and the browser once
// for the whole package; a setup failure aborts the run.
func TestMain(m *testing.M) {
	mw := io.MultiWriter(os.Stderr)

	if err := chdirRoot(); err != nil {
		fmt.Fprintf(mw, "✗ %v\n", err)
		os.Exit(1)
	}

	config, err := common.LoadFromFiles(configFiles()...)
	if err != nil {
		fmt.Fprintf(mw, "✗ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger = common.InitLogger(config)

	suite, suiteErr = app.New(config, logger)
	if suiteErr != nil {
		fmt.Fprintf(mw, "⚠ Scenario registry unavailable, parity tests will skip: %v\n", suiteErr)
	}

	if suite != nil && os.Getenv("PARITY_E2E") == "1" {
		common.PrintBanner(config, logger)
		if err := suite.Start(context.Background()); err != nil {
			fmt.Fprintf(mw, "✗ Environment setup failed: %v\n", err)
			_ = suite.Close()
			os.Exit(1)
		}
		e2e = true
		fmt.Fprintf(mw, "✓ Environment ready at %s\n", suite.Controller.BaseURL())
	}

	var exitCode int
	func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(mw, "\n⚠ PANIC during test execution: %v\n", r)
				fmt.Fprintf(mw, "Performing cleanup...\n")
				exitCode = 1
			}
			cleanupAllResources(mw)
		}()
		exitCode = m.Run()
	}()

	os.Exit(exitCode)
}

// cleanupAllResources writes the run summary and stops the server and browser.
func cleanupAllResources(w io.Writer) {
	if suite == nil {
		return
	}
	fmt.Fprintf(w, "Cleaning up parity resources...\n")
	if err := suite.Close(); err != nil {
		fmt.Fprintf(w, "⚠ Cleanup error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "✓ Cleanup complete\n")
}

// configFiles returns PARITY_CONFIG (comma-separated, later files win) or
// parity.toml when present. No files means defaults plus env overrides.
func configFiles() []string {
	if files := os.Getenv("PARITY_CONFIG"); files != "" {
		return common.SplitList(files)
	}
	if _, err := os.Stat("parity.toml"); err == nil {
		return []string{"parity.toml"}
	}
	return nil
}

// chdirRoot makes relative config paths resolve from the project root:
// PARITY_ROOT when set, else the module root two levels up.
func chdirRoot() error {
	root := os.Getenv("PARITY_ROOT")
	if root == "" {
		root = filepath.Join("..", "..")
	}
	if err := os.Chdir(root); err != nil {
		return fmt.Errorf("failed to enter project root %s: %w", root, err)
	}
	return nil
}

// requireSuite skips when the scenario registry could not be loaded.
func requireSuite(t *testing.T) *app.App {
	t.Helper()
	if suite == nil {
		t.Skipf("scenario registry unavailable: %v", suiteErr)
	}
	return suite
}

// requireE2E skips unless the environment was started for this run.
func requireE2E(t *testing.T) *app.App {
	t.Helper()
	s := requireSuite(t)
	if !e2e {
		t.Skip("set PARITY_E2E=1 to build, start and compare the renderers")
	}
	return s
}
