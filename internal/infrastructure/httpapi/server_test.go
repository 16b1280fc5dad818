package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"StationScraper/internal/cache"
	"StationScraper/internal/domain"
	"StationScraper/internal/infrastructure/storage"
	"StationScraper/internal/metrics"
)

type runnerFunc func(ctx context.Context) ([]domain.BatchResult, error)

func (f runnerFunc) Run(ctx context.Context) ([]domain.BatchResult, error) { return f(ctx) }

type staticHistory struct {
	runs    []storage.RunSummary
	results map[string][]domain.BatchResult
	err     error
}

func (h staticHistory) RecentRuns(context.Context, int) ([]storage.RunSummary, error) {
	return h.runs, nil
}

func (h staticHistory) StationResults(_ context.Context, runID string) ([]domain.BatchResult, error) {
	return h.results[runID], h.err
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRefreshReturnsResults(t *testing.T) {
	t.Parallel()

	runner := runnerFunc(func(context.Context) ([]domain.BatchResult, error) {
		return []domain.BatchResult{
			{StationID: 1, Done: true, State: domain.StateDone},
			{StationID: 2, Done: false, State: domain.StateFailed, Error: "timeout"},
		}, nil
	})

	rec := get(t, NewServer(":0", runner, Options{}).Handler(), "/api/v1/refresh")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var body struct {
		Result []domain.BatchResult `json:"result"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Result) != 2 || body.Result[1].Done || body.Result[1].StationID != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestRefreshFailureIsJSON500(t *testing.T) {
	t.Parallel()

	runner := runnerFunc(func(context.Context) ([]domain.BatchResult, error) {
		return nil, errors.New("list stations: gateway down")
	})

	rec := get(t, NewServer(":0", runner, Options{}).Handler(), "/api/v1/refresh")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"error":"list stations: gateway down"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestRefreshRecoversPanics(t *testing.T) {
	t.Parallel()

	runner := runnerFunc(func(context.Context) ([]domain.BatchResult, error) {
		panic("nil station")
	})

	rec := get(t, NewServer(":0", runner, Options{}).Handler(), "/api/v1/refresh")
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "nil station") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshRejectsOtherMethods(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewServer(":0", nil, Options{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestStatusServesCache(t *testing.T) {
	t.Parallel()

	stats := cache.NewStats(time.Minute)
	stats.Store("run-7", []domain.BatchResult{{StationID: 3, Done: true, State: domain.StateDone}}, nil, time.Now().UTC())

	server := NewServer(":0", nil, Options{
		Stats:   stats,
		History: staticHistory{runs: []storage.RunSummary{{RunID: "run-7", Stations: 1, Done: 1}}},
	})
	rec := get(t, server.Handler(), "/api/v1/status")

	var body statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RunID != "run-7" || body.Stale || len(body.Results) != 1 || body.StoredAt == nil {
		t.Fatalf("unexpected status: %+v", body)
	}
	if len(body.RecentRuns) != 1 || body.RecentRuns[0].Done != 1 {
		t.Fatalf("history missing: %+v", body.RecentRuns)
	}
}

func TestStatusWithoutRuns(t *testing.T) {
	t.Parallel()

	rec := get(t, NewServer(":0", nil, Options{Stats: cache.NewStats(0)}).Handler(), "/api/v1/status")
	if !strings.Contains(rec.Body.String(), `"stale":true`) || !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestStationServesCachedMetadata(t *testing.T) {
	t.Parallel()

	listeners := 9
	stats := cache.NewStats(time.Minute)
	stats.Store("run-8",
		[]domain.BatchResult{{StationID: 4, Done: true, State: domain.StateDone}},
		[]domain.StationMetadata{{
			StationID:  4,
			NowPlaying: domain.NowPlaying{Song: &domain.Song{Name: "Grace", Artist: "Choir"}, Listeners: &listeners},
			Uptime:     domain.Uptime{IsUp: true, LatencyMs: 80},
		}},
		time.Now().UTC())
	handler := NewServer(":0", nil, Options{Stats: stats}).Handler()

	rec := get(t, handler, "/api/v1/stations/4")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		RunID    string                 `json:"runId"`
		Stale    bool                   `json:"stale"`
		Metadata domain.StationMetadata `json:"metadata"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	meta := body.Metadata
	if body.RunID != "run-8" || body.Stale || meta.StationID != 4 || !meta.Uptime.IsUp {
		t.Fatalf("unexpected body: %+v", body)
	}
	if meta.NowPlaying.Song == nil || meta.NowPlaying.Song.Name != "Grace" || *meta.NowPlaying.Listeners != 9 {
		t.Fatalf("unexpected now playing: %+v", meta.NowPlaying)
	}

	if rec := get(t, handler, "/api/v1/stations/5"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown station, got %d", rec.Code)
	}
	if rec := get(t, handler, "/api/v1/stations/abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
}

func TestRunServesJournaledResults(t *testing.T) {
	t.Parallel()

	history := staticHistory{results: map[string][]domain.BatchResult{
		"run-9": {
			{StationID: 1, Done: true, State: domain.StateDone},
			{StationID: 2, State: domain.StateFailed, Error: "write rejected"},
		},
	}}
	handler := NewServer(":0", nil, Options{History: history}).Handler()

	rec := get(t, handler, "/api/v1/runs/run-9")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		RunID   string               `json:"runId"`
		Results []domain.BatchResult `json:"results"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RunID != "run-9" || len(body.Results) != 2 || body.Results[1].Error != "write rejected" {
		t.Fatalf("unexpected body: %+v", body)
	}

	if rec := get(t, handler, "/api/v1/runs/missing"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown run, got %d", rec.Code)
	}
}

func TestRunErrorsAndMissingJournal(t *testing.T) {
	t.Parallel()

	failing := NewServer(":0", nil, Options{History: staticHistory{err: errors.New("database is locked")}}).Handler()
	if rec := get(t, failing, "/api/v1/runs/run-1"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	bare := NewServer(":0", nil, Options{}).Handler()
	if rec := get(t, bare, "/api/v1/runs/run-1"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without journal, got %d", rec.Code)
	}
	if rec := get(t, bare, "/api/v1/stations/1"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without cache, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	handler := NewServer(":0", nil, Options{Metrics: metrics.New().Handler()}).Handler()

	if rec := get(t, handler, "/healthz"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
	if rec := get(t, handler, "/metrics"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics not exposed: %d", rec.Code)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer("127.0.0.1:0", nil, Options{}).ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not stop")
	}
}
