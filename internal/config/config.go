package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PassthroughPrefix marks variables handed to the probe CLI unmodified.
const PassthroughPrefix = "PX_"

// HarnessConfig holds configuration for the check command.
type HarnessConfig struct {
	CLI           string        // Probe CLI binary name or path
	ProbesDir     string        // Directory holding probe scripts
	Requirements  string        // Optional YAML catalog path
	Timeout       time.Duration // Overrides every probe's invocation timeout when positive
	Pace          time.Duration // Minimum interval between invocations
	DatabasePath  string        // Optional SQLite run history
	TraceExporter string        // "none" or "stdout"
	Env           map[string]string
	Notify        NotifyConfig
}

// NotifyConfig holds verdict-change notification settings.
type NotifyConfig struct {
	WebhookURL string
	NtfyServer string
	NtfyTopic  string
	Token      string
}

// WebConfig holds configuration for the web server.
type WebConfig struct {
	Port      int
	AuthToken string
}

// LoadEnvFile loads a .env file without overriding variables that are
// already set. The default ".env" may be absent; an explicit path may not.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// FromEnv reads the harness configuration from the process environment.
func FromEnv() (*HarnessConfig, error) {
	timeout, err := durationEnv("PROBECHECK_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	pace, err := durationEnv("PROBECHECK_PACE", 0)
	if err != nil {
		return nil, err
	}

	return &HarnessConfig{
		CLI:           getenv("PROBECHECK_CLI", "px"),
		ProbesDir:     getenv("PROBECHECK_PROBES_DIR", "src"),
		Requirements:  os.Getenv("PROBECHECK_REQUIREMENTS"),
		Timeout:       timeout,
		Pace:          pace,
		DatabasePath:  os.Getenv("DATABASE_PATH"),
		TraceExporter: getenv("PROBECHECK_TRACE_EXPORTER", "none"),
		Env:           Passthrough(os.Environ()),
		Notify: NotifyConfig{
			WebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
			NtfyServer: getenv("NOTIFY_NTFY_SERVER", "https://ntfy.sh"),
			NtfyTopic:  os.Getenv("NOTIFY_NTFY_TOPIC"),
			Token:      os.Getenv("NOTIFY_TOKEN"),
		},
	}, nil
}

// Passthrough collects PX_* entries from a KEY=VALUE list.
func Passthrough(environ []string) map[string]string {
	env := make(map[string]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, PassthroughPrefix) {
			continue
		}
		env[key] = value
	}
	return env
}

// PassthroughKeys returns the pass-through variable names, sorted.
func (c *HarnessConfig) PassthroughKeys() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, v)
	}
	return d, nil
}
