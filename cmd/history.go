package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/jandubois/probecheck/internal/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded check runs",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("probe", "", "Show reports for one probe instead of runs")
	historyCmd.Flags().Int("limit", 20, "Maximum number of entries")
}

func runHistory(cmd *cobra.Command, args []string) error {
	dbPath, err := requireDatabasePath(cmd)
	if err != nil {
		return err
	}
	probeName, _ := cmd.Flags().GetString("probe")
	limit, _ := cmd.Flags().GetInt("limit")
	ctx := cmd.Context()

	database, err := db.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer database.Close()

	if probeName != "" {
		reports, err := database.ProbeReports(ctx, probeName, limit)
		if err != nil {
			return err
		}
		return printReports(cmd.OutOrStdout(), reports, time.Now())
	}

	runs, err := database.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	return printRuns(cmd.OutOrStdout(), runs, time.Now())
}

func verdict(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func age(now, t time.Time) string {
	return units.HumanDuration(now.Sub(t)) + " ago"
}

func printRuns(w io.Writer, runs []db.Run, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tPROBES\tFAILED\tRESULT\tDURATION")
	for _, run := range runs {
		result, duration := "RUNNING", "-"
		if run.Pass != nil {
			result = verdict(*run.Pass)
		}
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			run.ID, age(now, run.StartedAt), run.ProbeCount, run.FailedCount, result, duration)
	}
	return tw.Flush()
}

func printReports(w io.Writer, reports []db.ProbeReport, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCHECKED\tRESULT\tSTAGE\tDETAIL")
	for _, r := range reports {
		stage, detail := "-", "all checks passed"
		if !r.Pass {
			stage, detail = r.FailureStage, r.FailureReason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.RunID, age(now, r.FinishedAt), verdict(r.Pass), stage, detail)
	}
	return tw.Flush()
}
