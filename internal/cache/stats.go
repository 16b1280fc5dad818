// Package cache keeps the outcome of the most recent batch run for the status endpoint.
package cache

import (
	"sync"
	"time"

	"StationScraper/internal/domain"
)

const defaultRefreshInterval = 60 * time.Second

// Snapshot is a copy of the cached state at one point in time.
type Snapshot struct {
	RunID    string                           `json:"runId"`
	StoredAt time.Time                        `json:"storedAt"`
	Results  []domain.BatchResult             `json:"results"`
	Metadata map[int64]domain.StationMetadata `json:"metadata"`
}

// Stats is safe for concurrent batch runs and readers.
type Stats struct {
	mu       sync.RWMutex
	interval time.Duration
	current  Snapshot
}

// NewStats returns an empty cache considered stale until the first Store.
func NewStats(refreshInterval time.Duration) *Stats {
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}
	return &Stats{interval: refreshInterval}
}

// Store replaces the cached run. Older runs finishing late do not overwrite newer ones.
func (s *Stats) Store(runID string, results []domain.BatchResult, metadata []domain.StationMetadata, at time.Time) {
	byStation := make(map[int64]domain.StationMetadata, len(metadata))
	for _, m := range metadata {
		byStation[m.StationID] = m
	}
	copied := append([]domain.BatchResult(nil), results...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current.StoredAt.IsZero() && at.Before(s.current.StoredAt) {
		return
	}
	s.current = Snapshot{RunID: runID, StoredAt: at, Results: copied, Metadata: byStation}
}

// Snapshot returns a copy of the cached run.
func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Snapshot{RunID: s.current.RunID, StoredAt: s.current.StoredAt}
	out.Results = append([]domain.BatchResult(nil), s.current.Results...)
	out.Metadata = make(map[int64]domain.StationMetadata, len(s.current.Metadata))
	for id, m := range s.current.Metadata {
		out.Metadata[id] = m
	}
	return out
}

// Stale reports whether the refresh interval elapsed since the last Store.
func (s *Stats) Stale(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.StoredAt.IsZero() {
		return true
	}
	return now.Sub(s.current.StoredAt) >= s.interval
}
