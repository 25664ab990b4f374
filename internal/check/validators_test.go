package check

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMissingMarkers(t *testing.T) {
	source := `def cpu_throttle_detector():
    WEBHOOK_URL = px.endpoint_config("webhook")
    px.export(df)
`
	tests := []struct {
		name     string
		markers  []string
		expected []string
	}{
		{
			name:     "all present",
			markers:  []string{"def cpu_throttle_detector():", "WEBHOOK_URL", "px.export"},
			expected: nil,
		},
		{
			name:     "one missing",
			markers:  []string{"WEBHOOK_URL", "THROTTLE_THRESHOLD", "px.export"},
			expected: []string{"THROTTLE_THRESHOLD"},
		},
		{
			name:     "keeps required order",
			markers:  []string{"zeta", "px.export", "alpha"},
			expected: []string{"zeta", "alpha"},
		},
		{
			name:     "case sensitive",
			markers:  []string{"webhook_url"},
			expected: []string{"webhook_url"},
		},
		{
			name:     "duplicates reported once",
			markers:  []string{"nope", "nope"},
			expected: []string{"nope"},
		},
		{
			name:     "no markers",
			markers:  nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MissingMarkers(source, tt.markers)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestStructure(t *testing.T) {
	out := Structure("px.export(df)", []string{"px.export", "WEBHOOK_URL"})
	if out.Pass {
		t.Fatal("expected failure")
	}
	if out.Kind != KindStructuralIncomplete {
		t.Errorf("expected kind %q, got %q", KindStructuralIncomplete, out.Kind)
	}
	if !reflect.DeepEqual(out.Missing, []string{"WEBHOOK_URL"}) {
		t.Errorf("unexpected missing set: %v", out.Missing)
	}
	if !strings.Contains(out.Reason, `"WEBHOOK_URL"`) {
		t.Errorf("expected marker in reason, got: %s", out.Reason)
	}

	if out := Structure("px.export(df)", []string{"px.export"}); !out.Pass {
		t.Errorf("expected pass, got %s", out)
	}
}

func TestSchema(t *testing.T) {
	out := Schema([]string{"a", "b", "d"}, []string{"a", "b", "c"})
	if out.Pass {
		t.Fatal("expected failure")
	}
	if out.Kind != KindSchemaMismatch {
		t.Errorf("expected kind %q, got %q", KindSchemaMismatch, out.Kind)
	}
	if !reflect.DeepEqual(out.Missing, []string{"d"}) {
		t.Errorf("expected missing [d], got %v", out.Missing)
	}
	if out.Reason != "missing columns: d" {
		t.Errorf("unexpected reason: %s", out.Reason)
	}

	if out := Schema([]string{"a"}, []string{"c", "b", "a"}); !out.Pass {
		t.Errorf("expected pass for superset, got %s", out)
	}
	if out := Schema([]string{"x", "y"}, nil); !reflect.DeepEqual(out.Missing, []string{"x", "y"}) {
		t.Errorf("expected every column missing, got %v", out.Missing)
	}
}

func TestPerformance(t *testing.T) {
	budget := 1000 * time.Millisecond
	tests := []struct {
		name     string
		elapsed  time.Duration
		expected bool
	}{
		{"well under", 400 * time.Millisecond, true},
		{"just under", 999 * time.Millisecond, true},
		{"at limit", 1000 * time.Millisecond, true},
		{"over", 1200 * time.Millisecond, false},
		{"over by less than a millisecond", 1000*time.Millisecond + 400*time.Microsecond, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Performance(tt.elapsed, budget)
			if out.Pass != tt.expected {
				t.Errorf("expected pass=%v, got %s", tt.expected, out)
			}
			if out.Elapsed != tt.elapsed {
				t.Errorf("expected elapsed %v, got %v", tt.elapsed, out.Elapsed)
			}
		})
	}

	out := Performance(1200*time.Millisecond, budget)
	if out.Reason != "script took 1200ms (max: 1000ms)" {
		t.Errorf("unexpected reason: %s", out.Reason)
	}
	if out.Kind != KindPerformanceExceeded {
		t.Errorf("expected kind %q, got %q", KindPerformanceExceeded, out.Kind)
	}

	out = Performance(1000*time.Millisecond+400*time.Microsecond, budget)
	if out.Reason != "script took >1000ms (max: 1000ms)" {
		t.Errorf("unexpected reason: %s", out.Reason)
	}
}

func TestSemantics(t *testing.T) {
	required := []Flag{
		{Name: "uses_config", Description: "must use external configuration"},
		{Name: "has_severity", Description: "must compute severity levels"},
		{Name: "detects_pressure", Description: "must detect memory pressure conditions"},
	}

	out := Semantics(required, map[string]bool{
		"uses_config":      true,
		"has_severity":     true,
		"detects_pressure": false,
	})
	if out.Pass {
		t.Fatal("expected failure")
	}
	if !reflect.DeepEqual(out.Missing, []string{"detects_pressure"}) {
		t.Errorf("expected only detects_pressure missing, got %v", out.Missing)
	}
	if out.Reason != "must detect memory pressure conditions (detects_pressure)" {
		t.Errorf("unexpected reason: %s", out.Reason)
	}

	out = Semantics(required, map[string]bool{"has_severity": true})
	if !reflect.DeepEqual(out.Missing, []string{"uses_config", "detects_pressure"}) {
		t.Errorf("expected each absent flag reported, got %v", out.Missing)
	}

	all := map[string]bool{"uses_config": true, "has_severity": true, "detects_pressure": true}
	if out := Semantics(required, all); !out.Pass {
		t.Errorf("expected pass, got %s", out)
	}
}

func TestStageLive(t *testing.T) {
	for _, stage := range Stages {
		want := stage != StageExists && stage != StageStructure
		if stage.Live() != want {
			t.Errorf("stage %s: expected live=%v", stage, want)
		}
	}
}
