package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"StationScraper/internal/cache"
	"StationScraper/internal/domain"
	"StationScraper/internal/metrics"
	"StationScraper/internal/ports"
)

const (
	defaultConcurrency  = 10
	defaultWriteTimeout = 10 * time.Second
)

// BatchDeps wires all driven adapters into the batch orchestrator.
type BatchDeps struct {
	Gateway  ports.StationGateway
	Source   ports.NowPlayingSource
	Prober   ports.UptimeProber
	Journal  ports.RunJournal
	Notifier ports.Notifier
	Cache    *cache.Stats
	Metrics  *metrics.Metrics
	// Limiter paces gateway writes; nil disables pacing.
	Limiter *rate.Limiter
	Logger  *slog.Logger

	Concurrency  int
	ShuffleSeed  int64
	WriteTimeout time.Duration
}

// Batch scrapes every station once per Run. It holds no run-scoped state,
// so overlapping runs from the scheduler and the HTTP trigger are independent.
type Batch struct {
	gateway  ports.StationGateway
	source   ports.NowPlayingSource
	prober   ports.UptimeProber
	journal  ports.RunJournal
	notifier ports.Notifier
	cache    *cache.Stats
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	logger   *slog.Logger

	concurrency  int
	shuffleSeed  int64
	writeTimeout time.Duration
	now          func() time.Time
}

// NewBatch constructs the orchestration component.
func NewBatch(deps BatchDeps) *Batch {
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	writeTimeout := deps.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Batch{
		gateway:      deps.Gateway,
		source:       deps.Source,
		prober:       deps.Prober,
		journal:      deps.Journal,
		notifier:     deps.Notifier,
		cache:        deps.Cache,
		metrics:      deps.Metrics,
		limiter:      deps.Limiter,
		logger:       deps.Logger,
		concurrency:  concurrency,
		shuffleSeed:  deps.ShuffleSeed,
		writeTimeout: writeTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run lists stations, processes them under the concurrency cap and returns
// one result per station in processing order. Only a failed station listing
// is returned as an error.
func (b *Batch) Run(ctx context.Context) ([]domain.BatchResult, error) {
	if b.gateway == nil {
		return nil, fmt.Errorf("batch: no station gateway configured")
	}

	run := domain.BatchRun{ID: uuid.NewString(), StartedAt: b.now()}

	stations, err := b.gateway.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	b.shuffle(stations)
	b.debug("batch started", "run", run.ID, "stations", len(stations))

	results := make([]domain.BatchResult, len(stations))
	metadata := make([]domain.StationMetadata, len(stations))

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, station := range stations {
		g.Go(func() error {
			results[i], metadata[i] = b.processStation(ctx, station)
			return nil
		})
	}
	_ = g.Wait()

	run.FinishedAt = b.now()
	run.Results = results
	b.finish(ctx, run, stations, metadata)

	return results, nil
}

func (b *Batch) shuffle(stations []domain.Station) {
	seed := b.shuffleSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(stations), func(i, j int) { stations[i], stations[j] = stations[j], stations[i] })
}

func (b *Batch) processStation(ctx context.Context, station domain.Station) (result domain.BatchResult, meta domain.StationMetadata) {
	result = domain.BatchResult{StationID: station.ID, State: domain.StatePending}
	meta = domain.StationMetadata{StationID: station.ID}

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Sprintf("panic during %s: %v", strings.ToLower(string(result.State)), r)
			result.State = domain.StateFailed
			result.Done = false
			b.warn("station processing panicked", "station", station.ID, "error", result.Error)
		}
	}()

	result.State = domain.StateExtracting
	var (
		nowPlaying domain.NowPlaying
		uptime     domain.Uptime
		inner      errgroup.Group
	)
	inner.Go(func() error {
		nowPlaying = b.mergeAll(ctx, station)
		return nil
	})
	inner.Go(func() error {
		uptime = b.probe(ctx, station)
		return nil
	})
	_ = inner.Wait()

	result.State = domain.StateMerging
	meta.NowPlaying = nowPlaying
	meta.Uptime = uptime
	b.metrics.ObserveProbe(uptime)

	result.State = domain.StatePersisting
	if err := b.persist(ctx, meta); err != nil {
		result.State = domain.StateFailed
		result.Error = err.Error()
		b.warn("station write failed", "station", station.ID, "error", err)
		return result, meta
	}

	result.State = domain.StateDone
	result.Done = true
	return result, meta
}

func (b *Batch) mergeAll(ctx context.Context, station domain.Station) (record domain.NowPlaying) {
	defer func() {
		if r := recover(); r != nil {
			record = domain.Failed(b.now(), domain.ErrorCapture{Message: fmt.Sprint(r), Kind: domain.ErrorPanic})
			b.warn("metadata merge panicked", "station", station.ID, "error", r)
		}
	}()
	if b.source == nil {
		return domain.NowPlaying{Timestamp: b.now(), RawData: map[string]any{}}
	}
	return b.source.MergeAll(ctx, station)
}

func (b *Batch) probe(ctx context.Context, station domain.Station) (result domain.Uptime) {
	defer func() {
		if r := recover(); r != nil {
			result = domain.Uptime{
				Timestamp: b.now(),
				LatencyMs: domain.LatencyUnmeasured,
				RawData:   map[string]any{"error": fmt.Sprint(r)},
			}
			b.warn("stream probe panicked", "station", station.ID, "error", r)
		}
	}()
	if b.prober == nil || station.StreamURL == "" {
		return domain.Uptime{
			Timestamp: b.now(),
			LatencyMs: domain.LatencyUnmeasured,
			RawData:   map[string]any{"error": "no stream url"},
		}
	}
	return b.prober.Probe(ctx, station.StreamURL)
}

func (b *Batch) persist(ctx context.Context, meta domain.StationMetadata) error {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for write slot: %w", err)
		}
	}

	writeCtx, cancel := context.WithTimeout(ctx, b.writeTimeout)
	defer cancel()

	if err := b.gateway.SaveStationMetadata(writeCtx, meta); err != nil {
		return fmt.Errorf("save station %d: %w", meta.StationID, err)
	}
	return nil
}

func (b *Batch) finish(ctx context.Context, run domain.BatchRun, stations []domain.Station, metadata []domain.StationMetadata) {
	if b.cache != nil {
		b.cache.Store(run.ID, run.Results, metadata, run.FinishedAt)
	}

	if b.journal != nil {
		if err := b.journal.RecordRun(ctx, run); err != nil {
			b.warn("record batch run", "run", run.ID, "error", err)
		}
	}

	b.metrics.ObserveRun(run)

	done, failed := run.Counts()
	if failed > 0 && b.notifier != nil {
		digest := buildFailureDigest(run, stations)
		if err := b.notifier.PublishDigest(ctx, digest); err != nil {
			b.warn("publish failure digest", "run", run.ID, "error", err)
		}
	}

	if b.logger != nil {
		b.logger.Info("batch finished",
			"run", run.ID,
			"stations", humanize.Comma(int64(len(run.Results))),
			"done", humanize.Comma(int64(done)),
			"failed", humanize.Comma(int64(failed)),
			"took", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String())
	}
}

func buildFailureDigest(run domain.BatchRun, stations []domain.Station) string {
	titles := make(map[int64]string, len(stations))
	for _, station := range stations {
		titles[station.ID] = station.Title
	}

	_, failed := run.Counts()

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Station scraper* run `%s`\n", run.ID)
	fmt.Fprintf(&sb, "%s of %s stations failed\n\n",
		humanize.Comma(int64(failed)),
		humanize.Comma(int64(len(run.Results))))
	for _, res := range run.Results {
		if res.Done {
			continue
		}
		title := titles[res.StationID]
		if title == "" {
			title = "untitled"
		}
		fmt.Fprintf(&sb, "- %d %s: %s\n", res.StationID, title, res.Error)
	}
	return sb.String()
}

func (b *Batch) debug(msg string, args ...interface{}) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func (b *Batch) warn(msg string, args ...interface{}) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}
