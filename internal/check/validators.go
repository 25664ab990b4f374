package check

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Flag is a named behavior the backend must report as true after running a
// probe, together with the operator-facing description of that behavior.
type Flag struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// MissingMarkers returns the markers that do not occur in source, in the
// order they were required. Matching is a case-sensitive substring test.
func MissingMarkers(source string, markers []string) []string {
	var missing []string
	seen := make(map[string]bool, len(markers))
	for _, marker := range markers {
		if seen[marker] {
			continue
		}
		seen[marker] = true
		if !strings.Contains(source, marker) {
			missing = append(missing, marker)
		}
	}
	return missing
}

// Structure checks that every required marker appears in the probe source.
func Structure(source string, markers []string) Outcome {
	missing := MissingMarkers(source, markers)
	if len(missing) > 0 {
		return Failed(StageStructure, KindStructuralIncomplete,
			"missing required elements: "+joinQuoted(missing), missing...)
	}
	return Passed(StageStructure)
}

// MissingColumns returns required columns absent from actual, sorted.
func MissingColumns(required, actual []string) []string {
	have := make(map[string]bool, len(actual))
	for _, col := range actual {
		have[col] = true
	}
	var missing []string
	seen := make(map[string]bool, len(required))
	for _, col := range required {
		if have[col] || seen[col] {
			continue
		}
		seen[col] = true
		missing = append(missing, col)
	}
	sort.Strings(missing)
	return missing
}

// Schema checks that the required columns are a subset of the produced ones.
func Schema(required, actual []string) Outcome {
	missing := MissingColumns(required, actual)
	if len(missing) > 0 {
		return Failed(StageSchema, KindSchemaMismatch,
			"missing columns: "+strings.Join(missing, ", "), missing...)
	}
	return Passed(StageSchema)
}

// Performance checks a measured duration against a budget. A run that takes
// exactly the budget passes.
func Performance(elapsed, budget time.Duration) Outcome {
	if elapsed > budget {
		took := fmt.Sprintf("%dms", roundMs(elapsed))
		if roundMs(elapsed) <= roundMs(budget) {
			// Over budget by less than the display resolution.
			took = fmt.Sprintf(">%dms", roundMs(budget))
		}
		reason := fmt.Sprintf("script took %s (max: %dms)", took, roundMs(budget))
		return Failed(StagePerformance, KindPerformanceExceeded, reason).WithElapsed(elapsed)
	}
	return Passed(StagePerformance).WithElapsed(elapsed)
}

// Semantics checks that every required flag is reported true. Each flag is
// judged on its own so the failure names exactly the behaviors that are
// absent.
func Semantics(required []Flag, actual map[string]bool) Outcome {
	var missing []string
	var reasons []string
	for _, flag := range required {
		if actual[flag.Name] {
			continue
		}
		missing = append(missing, flag.Name)
		if flag.Description != "" {
			reasons = append(reasons, fmt.Sprintf("%s (%s)", flag.Description, flag.Name))
		} else {
			reasons = append(reasons, fmt.Sprintf("flag %s not reported", flag.Name))
		}
	}
	if len(missing) > 0 {
		return Failed(StageSemantics, KindSemanticIncomplete, strings.Join(reasons, "; "), missing...)
	}
	return Passed(StageSemantics)
}

func roundMs(d time.Duration) int64 {
	return d.Round(time.Millisecond).Milliseconds()
}
