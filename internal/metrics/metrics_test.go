package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"StationScraper/internal/domain"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func assertSample(t *testing.T, exposition, sample string) {
	t.Helper()
	if !strings.Contains(exposition, sample+"\n") {
		t.Fatalf("missing %q in exposition:\n%s", sample, exposition)
	}
}

func TestObserveRun(t *testing.T) {
	t.Parallel()

	m := New()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.ObserveRun(domain.BatchRun{
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Results: []domain.BatchResult{
			{StationID: 1, Done: true},
			{StationID: 2, Done: false},
			{StationID: 3, Done: true},
		},
	})

	out := scrape(t, m)
	assertSample(t, out, `stationscraper_station_results_total{outcome="done"} 2`)
	assertSample(t, out, `stationscraper_station_results_total{outcome="failed"} 1`)
	assertSample(t, out, "stationscraper_batch_duration_seconds_count 1")
	assertSample(t, out, "stationscraper_last_batch_timestamp_seconds 1.714564803e+09")
}

func TestObserveExtraction(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveExtraction("icecast", domain.NowPlaying{})
	m.ObserveExtraction("icecast", domain.Failed(time.Now(), domain.ErrorCapture{Kind: domain.ErrorParse}))

	out := scrape(t, m)
	assertSample(t, out, `stationscraper_extractions_total{category="icecast",outcome="ok"} 1`)
	assertSample(t, out, `stationscraper_extractions_total{category="icecast",outcome="parse"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveExtraction("icecast", domain.NowPlaying{})
	m.ObserveProbe(domain.Uptime{LatencyMs: 10})
	m.ObserveRun(domain.BatchRun{})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected nil metrics to serve 404, got %d", rec.Code)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveProbe(domain.Uptime{LatencyMs: 120})
	m.ObserveProbe(domain.Uptime{LatencyMs: domain.LatencyUnmeasured})

	assertSample(t, scrape(t, m), "stationscraper_probe_latency_seconds_count 1")
}
