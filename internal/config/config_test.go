package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var harnessVars = []string{
	"PROBECHECK_CLI", "PROBECHECK_PROBES_DIR", "PROBECHECK_REQUIREMENTS",
	"PROBECHECK_TIMEOUT", "PROBECHECK_PACE", "PROBECHECK_TRACE_EXPORTER",
	"DATABASE_PATH", "NOTIFY_WEBHOOK_URL", "NOTIFY_NTFY_SERVER",
	"NOTIFY_NTFY_TOPIC", "NOTIFY_TOKEN",
}

// clearEnv empties the harness variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range harnessVars {
		t.Setenv(key, "")
	}
}

// load mirrors the command setup: env file first, then the environment.
func load(envFile string) (*HarnessConfig, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	return FromEnv()
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := load("")
	require.NoError(t, err)
	assert.Equal(t, "px", cfg.CLI)
	assert.Equal(t, "src", cfg.ProbesDir)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Pace)
	assert.Equal(t, "none", cfg.TraceExporter)
	assert.Equal(t, "https://ntfy.sh", cfg.Notify.NtfyServer)
	assert.Empty(t, cfg.DatabasePath)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROBECHECK_CLI", "/opt/px")
	t.Setenv("PROBECHECK_TIMEOUT", "45s")
	t.Setenv("PROBECHECK_PACE", "250ms")
	t.Setenv("PX_MEMORY_PRESSURE_THRESHOLD", "65")

	cfg, err := load("")
	require.NoError(t, err)
	assert.Equal(t, "/opt/px", cfg.CLI)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Pace)
	assert.Equal(t, "65", cfg.Env["PX_MEMORY_PRESSURE_THRESHOLD"])
	assert.Contains(t, cfg.PassthroughKeys(), "PX_MEMORY_PRESSURE_THRESHOLD")
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROBECHECK_CLI", "from-env")

	path := filepath.Join(t.TempDir(), "test.env")
	content := "PROBECHECK_CLI=from-file\nPROBECHECK_PROBES_DIR=probes\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	// An empty but set variable counts as set, so drop it entirely.
	os.Unsetenv("PROBECHECK_PROBES_DIR")

	cfg, err := load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.CLI)
	assert.Equal(t, "probes", cfg.ProbesDir)
}

func TestLoadMissingExplicitEnvFile(t *testing.T) {
	clearEnv(t)
	_, err := load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestLoadInvalidDuration(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PROBECHECK_TIMEOUT", "soon"},
		{"PROBECHECK_TIMEOUT", "-1s"},
		{"PROBECHECK_PACE", "30"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := load("")
			assert.Error(t, err)
		})
	}
}

func TestPassthrough(t *testing.T) {
	env := Passthrough([]string{
		"PX_WEBHOOK_URL=http://hook?a=b",
		"PX_EMPTY=",
		"PATH=/usr/bin",
		"px_lower=1",
		"MALFORMED",
	})
	assert.Equal(t, map[string]string{
		"PX_WEBHOOK_URL": "http://hook?a=b",
		"PX_EMPTY":       "",
	}, env)
}
