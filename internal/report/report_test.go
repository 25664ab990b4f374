package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jandubois/probecheck/internal/check"
	"github.com/jandubois/probecheck/internal/harness"
)

func passedAll() []check.Outcome {
	var outcomes []check.Outcome
	for _, stage := range check.Stages {
		outcomes = append(outcomes, check.Passed(stage))
	}
	return outcomes
}

func fixtureSummary() *harness.Summary {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(ms int) time.Time { return start.Add(time.Duration(ms) * time.Millisecond) }

	return &harness.Summary{
		ID:       "3f2c8a9e-0000-4000-8000-000000000001",
		CLIPath:  "/usr/local/bin/px",
		Started:  start,
		Finished: at(2000),
		Reports: []*harness.Report{
			{
				Probe:    "cpu_throttle_detector",
				Path:     "src/cpu_throttle_detector.pxl",
				Outcomes: passedAll(),
				State:    harness.StateDone,
				Pass:     true,
				Started:  start,
				Finished: at(1200),
			},
			{
				Probe: "network_issue_finder",
				Path:  "src/network_issue_finder.pxl",
				Outcomes: []check.Outcome{
					check.Passed(check.StageExists),
					check.Passed(check.StageStructure),
					check.Passed(check.StageSyntax),
					check.Failed(check.StageSchema, check.KindSchemaMismatch,
						"missing columns: connection_errors, retransmit_pct",
						"connection_errors", "retransmit_pct"),
				},
				State:    harness.StateDone,
				Started:  at(1200),
				Finished: at(1500),
			},
			{
				Probe: "pod_creation_trace",
				Path:  "src/pod_creation_trace.pxl",
				Outcomes: []check.Outcome{
					check.Failed(check.StageExists, check.KindNotFound, "probe not found at src/pod_creation_trace.pxl"),
				},
				State:    harness.StateDone,
				Started:  at(1500),
				Finished: at(1500),
			},
		},
	}
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestTextGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, fixtureSummary()))
	golden(t).Assert(t, "text_summary", buf.Bytes())
}

func TestJSONGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, fixtureSummary()))
	golden(t).Assert(t, "json_summary", buf.Bytes())
}

func TestJSONIsValid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatJSON, fixtureSummary()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, false, decoded["pass"])
	assert.Equal(t, float64(2), decoded["failed"])
}

func TestTextEmptyRun(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatText, &harness.Summary{}))
	assert.Equal(t, "PROBE  RESULT  STAGE  DETAIL\n\n0 probes: 0 passed, 0 failed\n", buf.String())
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{"json", FormatJSON, false},
		{"yaml", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
