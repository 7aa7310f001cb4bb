package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the harness configuration
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Browser BrowserConfig `toml:"browser"`
	Capture CaptureConfig `toml:"capture"`
	Suite   SuiteConfig   `toml:"suite"`
	Catalog CatalogConfig `toml:"catalog"`
	Output  OutputConfig  `toml:"output"`
	History HistoryConfig `toml:"history"`
	Logging LoggingConfig `toml:"logging"`
	Watch   WatchConfig   `toml:"watch"`
}

// ServerConfig controls the application server under test
type ServerConfig struct {
	BaseURL        string `toml:"base_url" validate:"omitempty,url"` // Pre-existing deployment; skips build and start
	Host           string `toml:"host" validate:"required"`
	Port           int    `toml:"port" validate:"min=1,max=65535"`
	BuildCommand   string `toml:"build_command"` // e.g. "pnpm --filter web build"
	StartCommand   string `toml:"start_command"` // e.g. "pnpm --filter web start"
	WorkDir        string `toml:"work_dir"`
	StartupTimeout string `toml:"startup_timeout" validate:"duration"` // Readiness poll budget
	PollInterval   string `toml:"poll_interval" validate:"duration"`
	ShutdownGrace  string `toml:"shutdown_grace" validate:"duration"` // SIGTERM to SIGKILL escalation
}

// BrowserConfig controls the headless Chrome instance
type BrowserConfig struct {
	ExecPath          string  `toml:"exec_path"`
	Headless          bool    `toml:"headless"`
	NoSandbox         bool    `toml:"no_sandbox"`
	ViewportWidth     int     `toml:"viewport_width" validate:"min=1"`
	ViewportHeight    int     `toml:"viewport_height" validate:"min=1"`
	DeviceScaleFactor float64 `toml:"device_scale_factor" validate:"gt=0"`
	Locale            string  `toml:"locale" validate:"required"`
}

// CaptureConfig controls the render capture pipeline
type CaptureConfig struct {
	Route                 string `toml:"route" validate:"required,startswith=/"`
	RootSelector          string `toml:"root_selector" validate:"required"`
	ErrorPageSelector     string `toml:"error_page_selector" validate:"required"`
	ErrorTemplateSelector string `toml:"error_template_selector" validate:"required"`
	PageLoadTimeout       string `toml:"page_load_timeout" validate:"duration"`
	FontWait              string `toml:"font_wait" validate:"duration"`
	ImageWait             string `toml:"image_wait" validate:"duration"`
	SettleQuiet           string `toml:"settle_quiet" validate:"duration"` // Mutation quiet period
	SettleCap             string `toml:"settle_cap" validate:"duration"`   // Absolute settle cap
	ComponentSettle       string `toml:"component_settle" validate:"duration"`
	ChartWait             string `toml:"chart_wait" validate:"duration"`
	StabilitySamples      int    `toml:"stability_samples" validate:"min=1"`
}

// SuiteConfig controls which components run and how
type SuiteConfig struct {
	Components        []string `toml:"components"` // Empty runs every scenario
	Concurrency       int      `toml:"concurrency" validate:"min=1"`
	CapturesPerSecond float64  `toml:"captures_per_second" validate:"gte=0"` // 0 disables pacing
	ComponentTimeout  string   `toml:"component_timeout" validate:"duration"`
	SetupTimeout      string   `toml:"setup_timeout" validate:"duration"`
}

// CatalogConfig locates the component catalog and the scenario file
type CatalogConfig struct {
	ComponentsDir    string `toml:"components_dir" validate:"required"`
	ComponentPattern string `toml:"component_pattern" validate:"required"`
	ScenariosFile    string `toml:"scenarios_file" validate:"required"`
}

// OutputConfig controls artifact output
type OutputConfig struct {
	ArtifactsDir string `toml:"artifacts_dir" validate:"required"`
}

// HistoryConfig controls the run history store. Empty path disables it.
type HistoryConfig struct {
	Path     string `toml:"path"`
	KeepRuns int    `toml:"keep_runs" validate:"gte=0"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output     []string `toml:"output" validate:"dive,oneof=stdout console file"`
	TimeFormat string   `toml:"time_format"`
	Dir        string   `toml:"dir"` // Log and crash file directory
}

// WatchConfig controls scheduled re-runs of the CLI watch command
type WatchConfig struct {
	Schedule string `toml:"schedule"` // Cron spec, e.g. "@every 30m"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "localhost",
			Port:           3100,
			StartupTimeout: "3m",
			PollInterval:   "500ms",
			ShutdownGrace:  "10s",
		},
		Browser: BrowserConfig{
			Headless:          true,
			NoSandbox:         true,
			ViewportWidth:     1280,
			ViewportHeight:    720,
			DeviceScaleFactor: 1,
			Locale:            "en-US",
		},
		Capture: CaptureConfig{
			Route:                 "/rescript-pixel",
			RootSelector:          "[data-parity-root]",
			ErrorPageSelector:     "#__next_error__, [data-nextjs-error-page], nextjs-portal[data-nextjs-error]",
			ErrorTemplateSelector: "template[data-parity-fatal]",
			PageLoadTimeout:       "30s",
			FontWait:              "3s",
			ImageWait:             "5s",
			SettleQuiet:           "150ms",
			SettleCap:             "2s",
			ComponentSettle:       "3s",
			ChartWait:             "5s",
			StabilitySamples:      3,
		},
		Suite: SuiteConfig{
			Concurrency:      4,
			ComponentTimeout: "90s",
			SetupTimeout:     "5m",
		},
		Catalog: CatalogConfig{
			ComponentsDir:    "./src/components/ui",
			ComponentPattern: "*.tsx",
			ScenariosFile:    "./parity-scenarios.yaml",
		},
		Output: OutputConfig{
			ArtifactsDir: "./test-results/parity",
		},
		History: HistoryConfig{
			KeepRuns: 20,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
			Dir:        "./logs",
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies PARITY_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if baseURL := os.Getenv("PARITY_BASE_URL"); baseURL != "" {
		config.Server.BaseURL = baseURL
	}
	if port := os.Getenv("PARITY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if components := os.Getenv("PARITY_COMPONENTS"); components != "" {
		config.Suite.Components = SplitList(components)
	}
	if concurrency := os.Getenv("PARITY_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Suite.Concurrency = c
		}
	}

	// Timeouts are given in milliseconds
	msOverrides := map[string]*string{
		"PARITY_PAGE_LOAD_TIMEOUT_MS":   &config.Capture.PageLoadTimeout,
		"PARITY_TEST_TIMEOUT_MS":        &config.Suite.ComponentTimeout,
		"PARITY_FONT_WAIT_MS":           &config.Capture.FontWait,
		"PARITY_IMAGE_WAIT_MS":          &config.Capture.ImageWait,
		"PARITY_SETUP_TIMEOUT_MS":       &config.Suite.SetupTimeout,
		"PARITY_SERVER_POLL_TIMEOUT_MS": &config.Server.StartupTimeout,
	}
	for name, target := range msOverrides {
		if value := os.Getenv(name); value != "" {
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				*target = fmt.Sprintf("%dms", ms)
			}
		}
	}

	if dir := os.Getenv("PARITY_ARTIFACTS_DIR"); dir != "" {
		config.Output.ArtifactsDir = dir
	}
	if level := os.Getenv("PARITY_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if chrome := os.Getenv("PARITY_CHROME_PATH"); chrome != "" {
		config.Browser.ExecPath = chrome
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, baseURL string, components []string) {
	if baseURL != "" {
		config.Server.BaseURL = baseURL
	}
	if len(components) > 0 {
		config.Suite.Components = components
	}
}

// Validate checks struct constraints, including that every duration parses
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	}); err != nil {
		return fmt.Errorf("failed to register duration validation: %w", err)
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ResolvedBaseURL returns the configured base URL, or the URL of the server
// the harness starts itself
func (c *Config) ResolvedBaseURL() string {
	if c.Server.BaseURL != "" {
		return strings.TrimRight(c.Server.BaseURL, "/")
	}
	return fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
}

// ExternalServer reports whether the harness must not build or start a server
func (c *Config) ExternalServer() bool {
	return c.Server.BaseURL != ""
}

// Duration parses a validated duration string. Invalid values yield fallback.
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// SplitList splits a comma-separated list, dropping blanks
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
