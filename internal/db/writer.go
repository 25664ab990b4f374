package db

import (
	"context"
	"log/slog"

	"github.com/jandubois/probecheck/internal/harness"
	"github.com/jandubois/probecheck/internal/notify"
)

// ReportWriter records harness runs and announces verdict changes.
type ReportWriter struct {
	db       *DB
	notifier *notify.Dispatcher
}

// NewReportWriter creates a writer. notifier may be nil.
func NewReportWriter(database *DB, notifier *notify.Dispatcher) *ReportWriter {
	return &ReportWriter{db: database, notifier: notifier}
}

// StartRun records the run before any probe is checked.
func (w *ReportWriter) StartRun(ctx context.Context, s *harness.Summary) error {
	return w.db.CreateRun(ctx, s.ID, s.CLIPath, s.Started)
}

// RecordReport stores one probe's report. A verdict different from the
// probe's previous one, or a first-ever failure, is sent to the notifier.
func (w *ReportWriter) RecordReport(ctx context.Context, s *harness.Summary, r *harness.Report) error {
	prev, found, err := w.db.LastVerdict(ctx, r.Probe)
	if err != nil {
		return err
	}

	if _, err := w.db.SaveReport(ctx, toProbeReport(s.ID, r)); err != nil {
		return err
	}

	if (found && prev == r.Pass) || (!found && r.Pass) {
		return nil
	}

	change := &notify.VerdictChange{
		Probe: r.Probe,
		RunID: s.ID,
		Pass:  r.Pass,
	}
	if found {
		change.Previous = &prev
	}
	if f := r.Failure(); f != nil {
		change.Reason = f.Reason
	}
	slog.Info("probe verdict changed", "probe", r.Probe, "pass", r.Pass, "first", !found)

	if w.notifier != nil {
		w.notifier.NotifyVerdictChange(ctx, change)
	}
	return nil
}

// FinishRun stores the aggregate verdict.
func (w *ReportWriter) FinishRun(ctx context.Context, s *harness.Summary) error {
	return w.db.FinishRun(ctx, s.ID, s.Finished, len(s.Reports), s.Failed())
}

func toProbeReport(runID string, r *harness.Report) *ProbeReport {
	pr := &ProbeReport{
		RunID:      runID,
		Probe:      r.Probe,
		Path:       r.Path,
		Pass:       r.Pass,
		State:      string(r.State),
		StartedAt:  r.Started,
		FinishedAt: r.Finished,
		DurationMs: r.Duration().Milliseconds(),
	}
	if f := r.Failure(); f != nil {
		pr.FailureStage = string(f.Stage)
		pr.FailureKind = string(f.Kind)
		pr.FailureReason = f.Reason
	}
	for _, o := range r.Outcomes {
		pr.Outcomes = append(pr.Outcomes, StageOutcome{
			Stage:     string(o.Stage),
			Pass:      o.Pass,
			Kind:      string(o.Kind),
			Reason:    o.Reason,
			Missing:   o.Missing,
			ElapsedMs: o.Elapsed.Milliseconds(),
		})
	}
	return pr
}

var _ harness.Recorder = (*ReportWriter)(nil)
