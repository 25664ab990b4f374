package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run is one recorded harness invocation.
type Run struct {
	ID          string     `json:"id"`
	CLIPath     string     `json:"cli_path"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	ProbeCount  int        `json:"probe_count"`
	FailedCount int        `json:"failed_count"`

	// Pass is nil while the run is in progress.
	Pass *bool `json:"pass,omitempty"`
}

// StageOutcome is one stored stage result.
type StageOutcome struct {
	Stage     string          `json:"stage"`
	Pass      bool            `json:"pass"`
	Kind      string          `json:"kind,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Missing   JSONStringArray `json:"missing,omitempty"`
	ElapsedMs int64           `json:"elapsed_ms"`
}

// ProbeReport is one stored probe verdict.
type ProbeReport struct {
	ID            int64          `json:"id"`
	RunID         string         `json:"run_id"`
	Probe         string         `json:"probe"`
	Path          string         `json:"path"`
	Pass          bool           `json:"pass"`
	State         string         `json:"state"`
	FailureStage  string         `json:"failure_stage,omitempty"`
	FailureKind   string         `json:"failure_kind,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	DurationMs    int64          `json:"duration_ms"`
	Outcomes      []StageOutcome `json:"outcomes,omitempty"`
}

// CreateRun inserts a run that has just started.
func (d *DB) CreateRun(ctx context.Context, id, cliPath string, started time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO runs (id, cli_path, started_at) VALUES (?, ?, ?)`,
		id, cliPath, formatTime(started))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the aggregate verdict of a run.
func (d *DB) FinishRun(ctx context.Context, id string, finished time.Time, probes, failed int) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, probe_count = ?, failed_count = ?, pass = ?
		WHERE id = ?
	`, formatTime(finished), probes, failed, failed == 0, id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveReport stores a probe report and its stage outcomes in one
// transaction and returns the report id.
func (d *DB) SaveReport(ctx context.Context, r *ProbeReport) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO probe_reports (
			run_id, probe, path, pass, state, failure_stage, failure_kind, failure_reason,
			started_at, finished_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.Probe, r.Path, r.Pass, r.State,
		nullString(r.FailureStage), nullString(r.FailureKind), nullString(r.FailureReason),
		formatTime(r.StartedAt), formatTime(r.FinishedAt), r.DurationMs)
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("report id: %w", err)
	}

	for i, o := range r.Outcomes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stage_outcomes (report_id, position, stage, pass, kind, reason, missing, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, o.Stage, o.Pass, nullString(o.Kind), nullString(o.Reason), o.Missing, o.ElapsedMs)
		if err != nil {
			return 0, fmt.Errorf("insert stage %s: %w", o.Stage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit report: %w", err)
	}
	r.ID = id
	return id, nil
}

// LastVerdict returns the most recent stored verdict for a probe. found is
// false if the probe has never been recorded.
func (d *DB) LastVerdict(ctx context.Context, probe string) (pass, found bool, err error) {
	err = d.db.QueryRowContext(ctx,
		`SELECT pass FROM probe_reports WHERE probe = ? ORDER BY id DESC LIMIT 1`, probe,
	).Scan(&pass)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("query last verdict: %w", err)
	}
	return pass, true, nil
}

const runColumns = `id, cli_path, started_at, finished_at, probe_count, failed_count, pass`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var started, finished NullTime
	var pass sql.NullBool
	if err := row.Scan(&run.ID, &run.CLIPath, &started, &finished, &run.ProbeCount, &run.FailedCount, &pass); err != nil {
		return nil, err
	}
	run.StartedAt = started.Time
	run.FinishedAt = finished.Ptr()
	if pass.Valid {
		p := pass.Bool
		run.Pass = &p
	}
	return &run, nil
}

// ListRuns returns the newest runs first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns a run with its reports and their stage outcomes.
func (d *DB) GetRun(ctx context.Context, id string) (*Run, []ProbeReport, error) {
	run, err := scanRun(d.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query run: %w", err)
	}

	reports, err := d.queryReports(ctx, `WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, nil, err
	}
	for i := range reports {
		outcomes, err := d.stageOutcomes(ctx, reports[i].ID)
		if err != nil {
			return nil, nil, err
		}
		reports[i].Outcomes = outcomes
	}
	return run, reports, nil
}

// ProbeReports returns a probe's reports, newest first.
func (d *DB) ProbeReports(ctx context.Context, probe string, limit int) ([]ProbeReport, error) {
	if limit <= 0 {
		limit = 20
	}
	return d.queryReports(ctx, `WHERE probe = ? ORDER BY id DESC LIMIT ?`, probe, limit)
}

func (d *DB) queryReports(ctx context.Context, where string, args ...any) ([]ProbeReport, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, run_id, probe, path, pass, state,
		       COALESCE(failure_stage, ''), COALESCE(failure_kind, ''), COALESCE(failure_reason, ''),
		       started_at, finished_at, duration_ms
		FROM probe_reports `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := []ProbeReport{}
	for rows.Next() {
		var r ProbeReport
		var started, finished NullTime
		err := rows.Scan(&r.ID, &r.RunID, &r.Probe, &r.Path, &r.Pass, &r.State,
			&r.FailureStage, &r.FailureKind, &r.FailureReason,
			&started, &finished, &r.DurationMs)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.StartedAt = started.Time
		r.FinishedAt = finished.Time
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (d *DB) stageOutcomes(ctx context.Context, reportID int64) ([]StageOutcome, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT stage, pass, COALESCE(kind, ''), COALESCE(reason, ''), missing, elapsed_ms
		FROM stage_outcomes WHERE report_id = ? ORDER BY position
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query stage outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []StageOutcome
	for rows.Next() {
		var o StageOutcome
		if err := rows.Scan(&o.Stage, &o.Pass, &o.Kind, &o.Reason, &o.Missing, &o.ElapsedMs); err != nil {
			return nil, fmt.Errorf("scan stage outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
