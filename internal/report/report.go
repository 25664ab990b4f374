// Package report renders harness summaries for the terminal or for
// machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jandubois/probecheck/internal/check"
	"github.com/jandubois/probecheck/internal/harness"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format %q (want text or json)", s)
}

// Render writes s in the given format.
func Render(w io.Writer, f Format, s *harness.Summary) error {
	if f == FormatJSON {
		return JSON(w, s)
	}
	return Text(w, s)
}

// Text writes one line per probe with its verdict and first failing reason,
// then a totals line.
func Text(w io.Writer, s *harness.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROBE\tRESULT\tSTAGE\tDETAIL")
	for _, r := range s.Reports {
		result, stage, detail := "PASS", "-", "all checks passed"
		if f := r.Failure(); f != nil {
			result, stage, detail = "FAIL", string(f.Stage), f.Reason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Probe, result, stage, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	passed := len(s.Reports) - s.Failed()
	_, err := fmt.Fprintf(w, "\n%d probes: %d passed, %d failed\n", len(s.Reports), passed, s.Failed())
	return err
}

type jsonSummary struct {
	ID       string       `json:"id"`
	CLIPath  string       `json:"cli_path"`
	Pass     bool         `json:"pass"`
	Passed   int          `json:"passed"`
	Failed   int          `json:"failed"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Reports  []jsonReport `json:"reports"`
}

type jsonReport struct {
	Probe      string          `json:"probe"`
	Path       string          `json:"path"`
	Pass       bool            `json:"pass"`
	State      harness.State   `json:"state"`
	DurationMs int64           `json:"duration_ms"`
	Failure    *check.Outcome  `json:"failure,omitempty"`
	Outcomes   []check.Outcome `json:"outcomes"`
}

// JSON writes the summary as an indented document.
func JSON(w io.Writer, s *harness.Summary) error {
	out := jsonSummary{
		ID:       s.ID,
		CLIPath:  s.CLIPath,
		Pass:     s.Passed(),
		Passed:   len(s.Reports) - s.Failed(),
		Failed:   s.Failed(),
		Started:  s.Started,
		Finished: s.Finished,
		Reports:  make([]jsonReport, 0, len(s.Reports)),
	}
	for _, r := range s.Reports {
		out.Reports = append(out.Reports, jsonReport{
			Probe:      r.Probe,
			Path:       r.Path,
			Pass:       r.Pass,
			State:      r.State,
			DurationMs: r.Duration().Milliseconds(),
			Failure:    r.Failure(),
			Outcomes:   r.Outcomes,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
