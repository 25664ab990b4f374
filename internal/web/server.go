// Package web serves a read-only JSON API over recorded harness runs.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jandubois/probecheck/internal/config"
	"github.com/jandubois/probecheck/internal/db"
)

// Store is the run history the server reads from.
type Store interface {
	ListRuns(ctx context.Context, limit int) ([]db.Run, error)
	GetRun(ctx context.Context, id string) (*db.Run, []db.ProbeReport, error)
	ProbeReports(ctx context.Context, probe string, limit int) ([]db.ProbeReport, error)
}

// Server is the web backend.
type Server struct {
	store  Store
	config *config.WebConfig
	server *http.Server
}

// NewServer creates a new web server.
func NewServer(store Store, cfg *config.WebConfig) (*Server, error) {
	if cfg.AuthToken == "" {
		return nil, errors.New("auth token required")
	}
	s := &Server{
		store:  store,
		config: cfg,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Run starts the web server and stops it when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check (no auth)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.Handle("GET /api/runs", s.requireAuth(http.HandlerFunc(s.handleListRuns)))
	mux.Handle("GET /api/runs/{id}", s.requireAuth(http.HandlerFunc(s.handleGetRun)))
	mux.Handle("GET /api/probes/{name}/reports", s.requireAuth(http.HandlerFunc(s.handleProbeReports)))

	return logRequests(mux)
}
