package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jandubois/probecheck/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("down", false, "Roll back all migrations")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dbPath, err := requireDatabasePath(cmd)
	if err != nil {
		return err
	}
	down, _ := cmd.Flags().GetBool("down")
	ctx := cmd.Context()

	if down {
		slog.Info("rolling back all migrations", "database", dbPath)
		if err := db.RollbackMigrations(ctx, dbPath); err != nil {
			return err
		}
		slog.Info("migrations rolled back")
		return nil
	}

	slog.Info("running migrations", "database", dbPath)
	if err := db.RunMigrations(ctx, dbPath); err != nil {
		return err
	}
	slog.Info("migrations complete")
	return nil
}
