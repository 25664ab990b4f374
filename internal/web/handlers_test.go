package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jandubois/probecheck/internal/config"
	"github.com/jandubois/probecheck/internal/db"
)

// testServer creates a server over a fresh SQLite database seeded with one
// finished run.
func testServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := database.CreateRun(ctx, "run-1", "/usr/local/bin/px", start); err != nil {
		t.Fatal(err)
	}
	_, err = database.SaveReport(ctx, &db.ProbeReport{
		RunID:         "run-1",
		Probe:         "network_issue_finder",
		Path:          "src/network_issue_finder.pxl",
		State:         "done",
		FailureStage:  "semantics",
		FailureKind:   "semantic_incomplete",
		FailureReason: "must detect network issues (detects_network_issues)",
		StartedAt:     start,
		FinishedAt:    start.Add(time.Second),
		DurationMs:    1000,
		Outcomes: []db.StageOutcome{
			{Stage: "exists", Pass: true},
			{Stage: "semantics", Kind: "semantic_incomplete", Missing: db.JSONStringArray{"detects_network_issues"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := database.FinishRun(ctx, "run-1", start.Add(time.Second), 1, 1); err != nil {
		t.Fatal(err)
	}

	s, err := NewServer(database, &config.WebConfig{AuthToken: "test-token"})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return s
}

func do(t *testing.T, s *Server, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)

	w := do(t, s, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestNewServerRequiresToken(t *testing.T) {
	if _, err := NewServer(nil, &config.WebConfig{}); err == nil {
		t.Error("expected error without auth token")
	}
}

func TestAuthRequired(t *testing.T) {
	s := testServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong token", "Bearer nope"},
		{"no bearer prefix", "test-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.routes().ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", w.Code)
			}
		})
	}
}

func TestHandleListRuns(t *testing.T) {
	s := testServer(t)

	w := do(t, s, "/api/runs", "test-token")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var runs []db.Run
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].ID != "run-1" {
		t.Errorf("expected run-1, got %q", runs[0].ID)
	}
	if runs[0].Pass == nil || *runs[0].Pass {
		t.Errorf("expected failed run, got %v", runs[0].Pass)
	}
}

func TestHandleListRunsBadLimit(t *testing.T) {
	s := testServer(t)

	for _, limit := range []string{"0", "-1", "abc", "501"} {
		w := do(t, s, "/api/runs?limit="+limit, "test-token")
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected status 400, got %d", limit, w.Code)
		}
	}
}

func TestHandleGetRun(t *testing.T) {
	s := testServer(t)

	w := do(t, s, "/api/runs/run-1", "test-token")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Run     db.Run           `json:"run"`
		Reports []db.ProbeReport `json:"reports"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(resp.Reports))
	}
	outcomes := resp.Reports[0].Outcomes
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if got := outcomes[1].Missing; len(got) != 1 || got[0] != "detects_network_issues" {
		t.Errorf("expected missing [detects_network_issues], got %v", got)
	}
}

func TestHandleGetRunNotFound(t *testing.T) {
	s := testServer(t)

	w := do(t, s, "/api/runs/absent", "test-token")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestHandleProbeReports(t *testing.T) {
	s := testServer(t)

	w := do(t, s, "/api/probes/network_issue_finder/reports", "test-token")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var reports []db.ProbeReport
	if err := json.NewDecoder(w.Body).Decode(&reports); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(reports) != 1 || reports[0].FailureKind != "semantic_incomplete" {
		t.Errorf("unexpected reports: %+v", reports)
	}

	w = do(t, s, "/api/probes/unknown/reports", "test-token")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != "[]\n" {
		t.Errorf("expected empty list, got %q", body)
	}
}
