// Package api exposes the harvester's HTTP status interface: health probes,
// Prometheus scrapes and a live view of the running batch.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jfelder/chronicle-harvester/internal/batch"
	"github.com/jfelder/chronicle-harvester/internal/metrics"
)

// StatsSource provides a live view of the current batch run; the
// orchestrator satisfies it.
type StatsSource interface {
	Snapshot() batch.Stats
	BatchID() uuid.UUID
}

// Server wires HTTP handlers to the orchestrator.
type Server struct {
	router chi.Router
	stats  StatsSource
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(stats StatsSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{stats: stats, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/batch/stats", s.batchStats)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statsResponse struct {
	BatchID    string `json:"batch_id"`
	Successful int    `json:"successful"`
	Cached     int    `json:"cached"`
	NotFound   int    `json:"not_found"`
	Failed     int    `json:"failed"`
	Total      int    `json:"total"`
}

func (s *Server) batchStats(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no batch running"})
		return
	}
	snap := s.stats.Snapshot()
	writeJSON(w, http.StatusOK, statsResponse{
		BatchID:    s.stats.BatchID().String(),
		Successful: snap.Successful,
		Cached:     snap.Cached,
		NotFound:   snap.NotFound,
		Failed:     snap.Failed,
		Total:      snap.Total(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
