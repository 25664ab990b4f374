package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jandubois/probecheck/internal/config"
	"github.com/jandubois/probecheck/internal/harness"
)

// Version is set at build time via -ldflags "-X github.com/jandubois/probecheck/cmd.Version=..."
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "probecheck",
	Short: "Validate probe scripts against a live telemetry backend",
	Long: `Probecheck runs each probe script through an ordered pipeline of checks:
existence, required source markers, a dry run, the output schema, the
execution time and the behavior flags reported by the backend. Live checks
run through the probe CLI against an already connected backend.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command. A failed check run returns
// harness.ErrChecksFailed after the report has been printed.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, harness.ErrChecksFailed) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringP("database", "d", "", "SQLite database path (or DATABASE_PATH env)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("env-file", "", "Load environment from this file (default .env if present)")
}

func setup(cmd *cobra.Command, args []string) error {
	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := parseLevel(levelName)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	envFile, _ := cmd.Flags().GetString("env-file")
	return config.LoadEnvFile(envFile)
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

func getDatabasePath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("database")
	if path == "" {
		path = os.Getenv("DATABASE_PATH")
	}
	return path
}

func requireDatabasePath(cmd *cobra.Command) (string, error) {
	path := getDatabasePath(cmd)
	if path == "" {
		return "", fmt.Errorf("database path required (--database or DATABASE_PATH)")
	}
	return path, nil
}
