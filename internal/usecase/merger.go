package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"StationScraper/internal/domain"
	"StationScraper/internal/extractor"
	"StationScraper/internal/metrics"
	"StationScraper/internal/normalize"
	"StationScraper/internal/ports"
)

// Merger runs every metadata descriptor of a station and folds the results
// into a single now-playing record.
type Merger struct {
	registry *extractor.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

var _ ports.NowPlayingSource = (*Merger)(nil)

// NewMerger builds a merger resolving categories through registry. metrics and log may be nil.
func NewMerger(registry *extractor.Registry, m *metrics.Metrics, log *slog.Logger) *Merger {
	if registry == nil {
		registry = extractor.NewRegistry()
	}
	return &Merger{
		registry: registry,
		metrics:  m,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// MergeAll applies the station's descriptors in ascending Order. Later
// non-empty values override earlier ones; empty values never erase.
// Extractors run one after another and the result is normalized once.
func (m *Merger) MergeAll(ctx context.Context, station domain.Station) domain.NowPlaying {
	fetches := append([]domain.MetadataFetch(nil), station.Fetches...)
	sort.SliceStable(fetches, func(i, j int) bool { return fetches[i].Order < fetches[j].Order })

	merged := domain.NowPlaying{Timestamp: m.now(), RawData: map[string]any{}}
	for _, fetch := range fetches {
		ex, err := m.registry.Resolve(fetch.Category)
		if err != nil {
			if errors.Is(err, extractor.ErrUnknownCategory) {
				m.metrics.ObserveExtraction(fetch.Category, domain.Failed(m.now(), domain.ErrorCapture{Kind: domain.ErrorUnsupported}))
			}
			m.warn("skipping metadata descriptor", "station", station.ID, "url", fetch.URL, "error", err)
			continue
		}

		record := m.extract(ctx, ex, fetch)
		m.metrics.ObserveExtraction(fetch.Category, record)
		if record.Error != nil {
			m.debug("metadata source failed",
				"station", station.ID,
				"category", fetch.Category,
				"kind", record.Error.Kind,
				"error", record.Error.Message)
		}
		mergeNowPlaying(&merged, record)
	}

	return normalize.NowPlaying(merged)
}

func (m *Merger) extract(ctx context.Context, ex extractor.Extractor, fetch domain.MetadataFetch) (record domain.NowPlaying) {
	defer func() {
		if r := recover(); r != nil {
			record = domain.Failed(m.now(), domain.ErrorCapture{
				Message:  fmt.Sprint(r),
				Kind:     domain.ErrorPanic,
				URL:      fetch.URL,
				Category: fetch.Category,
			})
		}
	}()
	return ex.Extract(ctx, fetch.URL)
}

func mergeNowPlaying(dst *domain.NowPlaying, src domain.NowPlaying) {
	if !src.Timestamp.IsZero() {
		dst.Timestamp = src.Timestamp
	}
	if src.Song != nil {
		if dst.Song == nil {
			dst.Song = &domain.Song{}
		}
		song := *dst.Song
		song.Name = overrideString(song.Name, src.Song.Name)
		song.Artist = overrideString(song.Artist, src.Song.Artist)
		song.ThumbnailURL = overrideString(song.ThumbnailURL, src.Song.ThumbnailURL)
		dst.Song = &song
	}
	// A zero count fills an empty slot but never replaces a reported one.
	if src.Listeners != nil && (*src.Listeners != 0 || dst.Listeners == nil) {
		n := *src.Listeners
		dst.Listeners = &n
	}
	if dst.RawData == nil {
		dst.RawData = map[string]any{}
	}
	mergeRaw(dst.RawData, src.RawData)
	if src.Error != nil {
		capture := *src.Error
		dst.Error = &capture
	}
}

func overrideString(current, next string) string {
	if next != "" {
		return next
	}
	return current
}

// mergeRaw folds src into dst; nested objects merge key by key. Null and
// empty strings are dropped; other empty values only fill absent keys.
func mergeRaw(dst, src map[string]any) {
	for key, value := range src {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			if v == "" {
				continue
			}
			dst[key] = v
		case map[string]any:
			existing, ok := dst[key].(map[string]any)
			if !ok {
				if _, taken := dst[key]; taken && len(v) == 0 {
					continue
				}
				existing = make(map[string]any, len(v))
			}
			mergeRaw(existing, v)
			dst[key] = existing
		default:
			if _, taken := dst[key]; taken && emptyRaw(v) {
				continue
			}
			dst[key] = v
		}
	}
}

func emptyRaw(value any) bool {
	switch v := value.(type) {
	case bool:
		return !v
	case float64:
		return v == 0
	case int:
		return v == 0
	case int64:
		return v == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

func (m *Merger) debug(msg string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

func (m *Merger) warn(msg string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}
