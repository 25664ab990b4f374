package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jandubois/probecheck/internal/config"
	"github.com/jandubois/probecheck/internal/db"
	"github.com/jandubois/probecheck/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve recorded runs over a read-only HTTP API",
	Long: `Serve exposes the run history as JSON:

  GET /api/health
  GET /api/runs
  GET /api/runs/{id}
  GET /api/probes/{name}/reports

All endpoints except health require a bearer token.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("auth-token", "", "Authentication token (or AUTH_TOKEN env)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPath, err := requireDatabasePath(cmd)
	if err != nil {
		return err
	}
	port, _ := cmd.Flags().GetInt("port")
	authToken, _ := cmd.Flags().GetString("auth-token")
	if authToken == "" {
		authToken = os.Getenv("AUTH_TOKEN")
	}
	if authToken == "" {
		return fmt.Errorf("auth token required (--auth-token or AUTH_TOKEN)")
	}

	database, err := db.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer database.Close()

	server, err := web.NewServer(database, &config.WebConfig{
		Port:      port,
		AuthToken: authToken,
	})
	if err != nil {
		return fmt.Errorf("web server initialization failed: %w", err)
	}

	slog.Info("starting web server", "port", port)
	return server.Run(ctx)
}
