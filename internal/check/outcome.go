// Package check defines the outcome of a single validation stage and the
// pure validators the harness runs against a probe.
//
// Every stage produces an Outcome: either a pass, or a failure tagged with a
// Kind from a fixed taxonomy and a human-readable reason. Outcomes are never
// reduced to a bare boolean; the reason travels with the failure all the way
// to the report.
package check

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies why a stage failed.
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindStructuralIncomplete Kind = "structural_incomplete"
	KindExecutionFailed      Kind = "execution_failed"
	KindDecodeFailed         Kind = "decode_failed"
	KindSchemaMismatch       Kind = "schema_mismatch"
	KindPerformanceExceeded  Kind = "performance_exceeded"
	KindSemanticIncomplete   Kind = "semantic_incomplete"
	KindPreflightFailed      Kind = "preflight_failed"
)

// Stage names one step of the per-probe pipeline, in execution order.
type Stage string

const (
	StageExists      Stage = "exists"
	StageStructure   Stage = "structure"
	StageSyntax      Stage = "syntax"
	StageSchema      Stage = "schema"
	StagePerformance Stage = "performance"
	StageSemantics   Stage = "semantics"
)

// Stages lists every pipeline stage from cheapest to most expensive.
var Stages = []Stage{
	StageExists,
	StageStructure,
	StageSyntax,
	StageSchema,
	StagePerformance,
	StageSemantics,
}

// Live reports whether the stage needs a call to the backend.
func (s Stage) Live() bool {
	switch s {
	case StageSyntax, StageSchema, StagePerformance, StageSemantics:
		return true
	}
	return false
}

// Outcome is the tagged result of one stage.
type Outcome struct {
	Stage  Stage  `json:"stage"`
	Pass   bool   `json:"pass"`
	Kind   Kind   `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`

	// Missing holds the exact set of absent items (markers, columns, flags)
	// for failures that are set differences.
	Missing []string `json:"missing,omitempty"`

	// Elapsed is the measured duration of the live call behind this stage.
	Elapsed time.Duration `json:"-"`
}

// Passed returns a passing outcome for the stage.
func Passed(stage Stage) Outcome {
	return Outcome{Stage: stage, Pass: true}
}

// Failed returns a failing outcome. A reason is required.
func Failed(stage Stage, kind Kind, reason string, missing ...string) Outcome {
	if reason == "" {
		reason = string(kind)
	}
	return Outcome{
		Stage:   stage,
		Kind:    kind,
		Reason:  reason,
		Missing: missing,
	}
}

// WithElapsed returns a copy of o carrying the measured duration.
func (o Outcome) WithElapsed(d time.Duration) Outcome {
	o.Elapsed = d
	return o
}

func (o Outcome) String() string {
	if o.Pass {
		return fmt.Sprintf("%s: pass", o.Stage)
	}
	return fmt.Sprintf("%s: %s", o.Stage, o.Reason)
}

// Error carries a failure kind out of code paths that return Go errors,
// such as preflight.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, ", ")
}
