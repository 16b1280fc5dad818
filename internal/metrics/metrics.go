// Package metrics exposes Prometheus collectors for batch runs, extractions and stream probes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"StationScraper/internal/domain"
)

const namespace = "stationscraper"

// Metrics groups the collectors on a dedicated registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	stationResults *prometheus.CounterVec
	extractions    *prometheus.CounterVec
	probeLatency   prometheus.Histogram
	batchDuration  prometheus.Histogram
	lastBatch      prometheus.Gauge
}

// New registers all collectors, plus the Go and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stationResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_results_total",
			Help:      "Per-station batch outcomes.",
		}, []string{"outcome"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Metadata extractions by category and outcome.",
		}, []string{"category", "outcome"}),
		probeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "Time to first response headers of stream probes that got a response.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8),
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall-clock duration of batch runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		lastBatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_timestamp_seconds",
			Help:      "Unix time the last batch run finished.",
		}),
	}

	m.registry.MustRegister(
		m.stationResults,
		m.extractions,
		m.probeLatency,
		m.batchDuration,
		m.lastBatch,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveExtraction counts one extractor invocation.
func (m *Metrics) ObserveExtraction(category domain.Category, record domain.NowPlaying) {
	if m == nil {
		return
	}
	outcome := "ok"
	if record.Error != nil {
		outcome = string(record.Error.Kind)
	}
	m.extractions.WithLabelValues(string(category), outcome).Inc()
}

// ObserveProbe records the latency of a probe that received a response.
func (m *Metrics) ObserveProbe(result domain.Uptime) {
	if m == nil || result.LatencyMs < 0 {
		return
	}
	m.probeLatency.Observe((time.Duration(result.LatencyMs) * time.Millisecond).Seconds())
}

// ObserveRun records per-station outcomes and the run duration.
func (m *Metrics) ObserveRun(run domain.BatchRun) {
	if m == nil {
		return
	}
	done, failed := run.Counts()
	m.stationResults.WithLabelValues("done").Add(float64(done))
	m.stationResults.WithLabelValues("failed").Add(float64(failed))
	m.batchDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
	m.lastBatch.Set(float64(run.FinishedAt.Unix()))
}
