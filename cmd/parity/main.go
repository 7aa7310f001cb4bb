package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pixelparity/internal/common"
)

var (
	// Persistent flags
	configFiles  []string // Later files override earlier ones
	baseURL      string
	componentIDs []string

	// Global state, set by loadConfig
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "parity",
	Short: "Compare two renderers of the same UI components for visual and DOM parity",
	Long: `parity builds and starts the application under test (or uses --base-url),
captures every component scenario from both renderers in headless Chrome, and
fails when the normalized DOM or the screenshot of the two differ.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runParity,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Use an already running deployment instead of building and starting one")
	rootCmd.PersistentFlags().StringSliceVar(&componentIDs, "components", nil, "Component ids to run (default: every scenario)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	defer common.RecoverWithCrashFile()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig runs the startup sequence (REQUIRED ORDER):
// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
// 2. Apply CLI overrides (highest priority)
// 3. Initialize logger and crash handler
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("parity.toml"); err == nil {
			configFiles = append(configFiles, "parity.toml")
		} else if _, err := os.Stat("deployments/local/parity.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/parity.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	common.ApplyFlagOverrides(config, baseURL, componentIDs)
	if err := config.Validate(); err != nil {
		return err
	}

	logger = common.InitLogger(config)
	common.InstallCrashHandler(config.Logging.Dir)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("base_url", config.ResolvedBaseURL()).
		Strs("components", config.Suite.Components).
		Int("concurrency", config.Suite.Concurrency).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration")
	return nil
}
