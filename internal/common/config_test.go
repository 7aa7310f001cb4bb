package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig_IsValid(t *testing.T) {
	config := NewDefaultConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, "http://localhost:3100", config.ResolvedBaseURL())
	assert.False(t, config.ExternalServer())
}

func TestLoadFromFiles_LaterFilesWin(t *testing.T) {
	base := writeConfig(t, "base.toml", `
[server]
port = 4000
build_command = "make build"

[suite]
concurrency = 2
`)
	local := writeConfig(t, "local.toml", `
[suite]
concurrency = 6
components = ["button", "select"]
`)

	config, err := LoadFromFiles(base, local)
	require.NoError(t, err)
	assert.Equal(t, 4000, config.Server.Port)
	assert.Equal(t, "make build", config.Server.BuildCommand)
	assert.Equal(t, 6, config.Suite.Concurrency)
	assert.Equal(t, []string{"button", "select"}, config.Suite.Components)
	// Untouched sections keep their defaults.
	assert.Equal(t, "/rescript-pixel", config.Capture.Route)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("PARITY_BASE_URL", "http://staging.example.com/")
	t.Setenv("PARITY_COMPONENTS", "button, ,select")
	t.Setenv("PARITY_PAGE_LOAD_TIMEOUT_MS", "45000")
	t.Setenv("PARITY_TEST_TIMEOUT_MS", "120000")
	t.Setenv("PARITY_LOG_LEVEL", "DEBUG")

	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.True(t, config.ExternalServer())
	assert.Equal(t, "http://staging.example.com", config.ResolvedBaseURL())
	assert.Equal(t, []string{"button", "select"}, config.Suite.Components)
	assert.Equal(t, 45*time.Second, Duration(config.Capture.PageLoadTimeout, 0))
	assert.Equal(t, 2*time.Minute, Duration(config.Suite.ComponentTimeout, 0))
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadFromFiles_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad duration", "[capture]\npage_load_timeout = \"soon\"\n"},
		{"zero concurrency", "[suite]\nconcurrency = 0\n"},
		{"route without slash", "[capture]\nroute = \"pixel\"\n"},
		{"unknown log level", "[logging]\nlevel = \"chatty\"\n"},
		{"bad base url", "[server]\nbase_url = \"not a url\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFiles(writeConfig(t, "parity.toml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	config.Suite.Components = []string{"button"}

	ApplyFlagOverrides(config, "", nil)
	assert.False(t, config.ExternalServer())
	assert.Equal(t, []string{"button"}, config.Suite.Components)

	ApplyFlagOverrides(config, "http://localhost:3000", []string{"select"})
	assert.Equal(t, "http://localhost:3000", config.ResolvedBaseURL())
	assert.Equal(t, []string{"select"}, config.Suite.Components)
}

func TestDuration_Fallback(t *testing.T) {
	assert.Equal(t, 2*time.Second, Duration("2s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("later", time.Minute))
}
