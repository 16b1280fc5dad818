// Package httpapi exposes the manual refresh trigger, cached status and run history over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"StationScraper/internal/cache"
	"StationScraper/internal/domain"
	"StationScraper/internal/infrastructure/storage"
)

const (
	recentRunsLimit = 10
	shutdownTimeout = 10 * time.Second
)

// Runner executes one batch over all stations.
type Runner interface {
	Run(ctx context.Context) ([]domain.BatchResult, error)
}

// RunHistory reads journaled batch runs.
type RunHistory interface {
	RecentRuns(ctx context.Context, limit int) ([]storage.RunSummary, error)
	StationResults(ctx context.Context, runID string) ([]domain.BatchResult, error)
}

// Server routes the public endpoints. Every handler answers with JSON, even on panics.
type Server struct {
	addr    string
	runner  Runner
	stats   *cache.Stats
	history RunHistory
	metrics http.Handler
	logger  *slog.Logger
	now     func() time.Time
}

// Options holds the optional collaborators of Server.
type Options struct {
	Stats   *cache.Stats
	History RunHistory
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewServer builds a server listening on addr.
func NewServer(addr string, runner Runner, opts Options) *Server {
	return &Server{
		addr:    addr,
		runner:  runner,
		stats:   opts.Stats,
		history: opts.History,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Handler returns the routed handler wrapped with panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/stations/{id}", s.handleStation)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return s.recoverer(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("batch runner not configured"))
		return
	}

	// A client hanging up must not abort a batch that already started writing.
	results, err := s.runner.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		s.logError("manual refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if results == nil {
		results = []domain.BatchResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"result": results})
}

type statusResponse struct {
	RunID      string               `json:"runId,omitempty"`
	StoredAt   *time.Time           `json:"storedAt,omitempty"`
	Stale      bool                 `json:"stale"`
	Results    []domain.BatchResult `json:"results"`
	RecentRuns []storage.RunSummary `json:"recentRuns,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Stale: true, Results: []domain.BatchResult{}}

	if s.stats != nil {
		snap := s.stats.Snapshot()
		resp.RunID = snap.RunID
		resp.Stale = s.stats.Stale(s.now())
		if !snap.StoredAt.IsZero() {
			storedAt := snap.StoredAt
			resp.StoredAt = &storedAt
		}
		if snap.Results != nil {
			resp.Results = snap.Results
		}
	}

	if s.history != nil {
		runs, err := s.history.RecentRuns(r.Context(), recentRunsLimit)
		if err != nil {
			s.logError("read run history", "error", err)
		} else {
			resp.RecentRuns = runs
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleStation serves the metadata cached for one station by the last run.
func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid station id %q", r.PathValue("id")))
		return
	}
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("stats cache not configured"))
		return
	}

	snap := s.stats.Snapshot()
	meta, ok := snap.Metadata[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("station %d not in last run", id))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runId":    snap.RunID,
		"stale":    s.stats.Stale(s.now()),
		"metadata": meta,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("run journal not configured"))
		return
	}

	runID := r.PathValue("id")
	results, err := s.history.StationResults(r.Context(), runID)
	if err != nil {
		s.logError("read station results", "run", runID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, fmt.Errorf("run %q not found", runID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runId": runID, "results": results})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logError("handler panic", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, fmt.Errorf("internal error: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) info(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Server) logError(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}
