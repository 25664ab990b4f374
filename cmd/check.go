package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jandubois/probecheck/internal/config"
	"github.com/jandubois/probecheck/internal/db"
	"github.com/jandubois/probecheck/internal/gateway"
	"github.com/jandubois/probecheck/internal/harness"
	"github.com/jandubois/probecheck/internal/notify"
	"github.com/jandubois/probecheck/internal/preflight"
	"github.com/jandubois/probecheck/internal/probe"
	"github.com/jandubois/probecheck/internal/report"
	"github.com/jandubois/probecheck/internal/requirements"
	"github.com/jandubois/probecheck/internal/telemetry"
)

var checkCmd = &cobra.Command{
	Use:   "check [probe...]",
	Short: "Validate probes against the live backend",
	Long: `Check verifies once that the probe CLI is installed and connected to a
backend with at least one execution agent, then runs the validation pipeline
for each named probe. Without arguments every probe in the requirements
catalog is checked; --all checks every script found in the probes directory
that has requirements.

The exit status is 0 only if every probe passes.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().Bool("all", false, "Check every discovered probe script")
	checkCmd.Flags().String("cli", "", "Probe CLI binary (or PROBECHECK_CLI env, default px)")
	checkCmd.Flags().String("probes-dir", "", "Directory containing probe scripts (or PROBECHECK_PROBES_DIR env, default src)")
	checkCmd.Flags().String("requirements", "", "YAML requirements catalog merged over the built-ins (or PROBECHECK_REQUIREMENTS env)")
	checkCmd.Flags().Duration("timeout", 0, "Hard limit per CLI invocation, overriding the catalog (or PROBECHECK_TIMEOUT env)")
	checkCmd.Flags().Duration("max-duration", 0, "Override every probe's performance budget")
	checkCmd.Flags().Duration("pace", 0, "Minimum interval between CLI invocations (or PROBECHECK_PACE env)")
	checkCmd.Flags().String("format", "text", "Report format (text, json)")
	checkCmd.Flags().String("trace", "", "Trace exporter (none, stdout) (or PROBECHECK_TRACE_EXPORTER env)")
}

// applyFlags overrides environment configuration with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg *config.HarnessConfig) {
	flags := cmd.Flags()
	if flags.Changed("cli") {
		cfg.CLI, _ = flags.GetString("cli")
	}
	if flags.Changed("probes-dir") {
		cfg.ProbesDir, _ = flags.GetString("probes-dir")
	}
	if flags.Changed("requirements") {
		cfg.Requirements, _ = flags.GetString("requirements")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("pace") {
		cfg.Pace, _ = flags.GetDuration("pace")
	}
	if flags.Changed("trace") {
		cfg.TraceExporter, _ = flags.GetString("trace")
	}
	if path := getDatabasePath(cmd); path != "" {
		cfg.DatabasePath = path
	}
}

func loadCatalog(path string) (*requirements.Catalog, error) {
	catalog := requirements.Builtin()
	if path == "" {
		return catalog, nil
	}
	if err := catalog.Apply(path); err != nil {
		return nil, err
	}
	slog.Debug("loaded requirements file", "path", path, "probes", len(catalog.Names()))
	return catalog, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	slog.Debug("configuration loaded", "cli", cfg.CLI, "probes_dir", cfg.ProbesDir,
		"passthrough", cfg.PassthroughKeys())

	formatName, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")
	if all && len(args) > 0 {
		return fmt.Errorf("--all cannot be combined with probe names")
	}
	maxDuration, _ := cmd.Flags().GetDuration("max-duration")

	shutdown, err := telemetry.Init(cfg.TraceExporter, Version)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("trace shutdown failed", "error", err)
		}
	}()

	catalog, err := loadCatalog(cfg.Requirements)
	if err != nil {
		return err
	}

	gwOpts := []gateway.Option{gateway.WithPace(cfg.Pace)}
	if cfg.Timeout > 0 {
		gwOpts = append(gwOpts, gateway.WithTimeout(cfg.Timeout))
	}
	gw, err := gateway.New(cfg.CLI, gwOpts...)
	if err != nil {
		return err
	}

	session, err := preflight.Run(ctx, gw, cfg.Env)
	if err != nil {
		return err
	}

	opts := []harness.Option{
		harness.WithMaxDuration(maxDuration),
		harness.WithTimeout(cfg.Timeout),
	}
	if cfg.DatabasePath != "" {
		database, err := db.Open(ctx, cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer database.Close()

		dispatcher := notify.FromConfig(cfg.Notify)
		slog.Debug("recording run history", "database", cfg.DatabasePath, "notify_channels", dispatcher.Len())
		opts = append(opts, harness.WithRecorder(db.NewReportWriter(database, dispatcher)))
	}

	runner, err := harness.NewRunner(session, catalog, probe.NewLocator(cfg.ProbesDir), gw, opts...)
	if err != nil {
		return err
	}

	names := args
	switch {
	case all:
		names, err = runner.Discover()
		if err != nil {
			return err
		}
	case len(names) == 0:
		names = catalog.Names()
	}

	summary, err := runner.Run(ctx, names)
	if err != nil {
		return err
	}

	if err := report.Render(cmd.OutOrStdout(), format, summary); err != nil {
		return err
	}
	return summary.Err()
}
