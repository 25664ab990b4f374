package harness

import (
	"errors"
	"time"

	"github.com/jandubois/probecheck/internal/check"
)

// ErrChecksFailed is returned when at least one probe did not pass.
var ErrChecksFailed = errors.New("one or more probes failed validation")

// State is a probe's position in the pipeline.
type State string

const (
	StateNotChecked         State = "not_checked"
	StateExistsChecked      State = "exists_checked"
	StateStructureChecked   State = "structure_checked"
	StateSyntaxChecked      State = "syntax_checked"
	StateSchemaChecked      State = "schema_checked"
	StatePerformanceChecked State = "performance_checked"
	StateSemanticsChecked   State = "semantics_checked"
	StateDone               State = "done"
)

// stateAfter maps a passed stage to the state it leads to.
var stateAfter = map[check.Stage]State{
	check.StageExists:      StateExistsChecked,
	check.StageStructure:   StateStructureChecked,
	check.StageSyntax:      StateSyntaxChecked,
	check.StageSchema:      StateSchemaChecked,
	check.StagePerformance: StatePerformanceChecked,
	check.StageSemantics:   StateSemanticsChecked,
}

// Report is the ordered record of one probe's pipeline. Outcomes stop at
// the first failure; later stages are absent, not failed.
type Report struct {
	Probe    string          `json:"probe"`
	Path     string          `json:"path"`
	Outcomes []check.Outcome `json:"outcomes"`
	State    State           `json:"state"`
	Pass     bool            `json:"pass"`
	Started  time.Time       `json:"started"`
	Finished time.Time       `json:"finished"`
}

func newReport(name string) *Report {
	return &Report{Probe: name, State: StateNotChecked, Started: time.Now()}
}

// record appends o and advances the state. It reports whether the pipeline
// may continue.
func (r *Report) record(o check.Outcome) bool {
	r.Outcomes = append(r.Outcomes, o)
	if !o.Pass {
		r.finish(false)
		return false
	}
	r.State = stateAfter[o.Stage]
	return true
}

func (r *Report) finish(pass bool) {
	r.Pass = pass
	r.State = StateDone
	r.Finished = time.Now()
}

// Failure returns the first failing outcome, or nil if the probe passed.
func (r *Report) Failure() *check.Outcome {
	for i := range r.Outcomes {
		if !r.Outcomes[i].Pass {
			return &r.Outcomes[i]
		}
	}
	return nil
}

// Duration is the wall time spent checking the probe.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Summary aggregates the reports of one harness run.
type Summary struct {
	ID       string    `json:"id"`
	CLIPath  string    `json:"cli_path"`
	Reports  []*Report `json:"reports"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Passed reports whether every probe passed. An empty run passes.
func (s *Summary) Passed() bool {
	for _, r := range s.Reports {
		if !r.Pass {
			return false
		}
	}
	return true
}

// Failed returns the number of failing probes.
func (s *Summary) Failed() int {
	n := 0
	for _, r := range s.Reports {
		if !r.Pass {
			n++
		}
	}
	return n
}

// ExitCode is 0 iff every probe passed.
func (s *Summary) ExitCode() int {
	if s.Passed() {
		return 0
	}
	return 1
}

// Err returns ErrChecksFailed unless every probe passed.
func (s *Summary) Err() error {
	if s.Passed() {
		return nil
	}
	return ErrChecksFailed
}
