package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"StationScraper/internal/cache"
	"StationScraper/internal/domain"
	"StationScraper/internal/extractor"
	"StationScraper/internal/metrics"
)

type fakeGateway struct {
	mu        sync.Mutex
	stations  []domain.Station
	listErr   error
	rejectIDs map[int64]bool
	saved     map[int64]domain.StationMetadata
}

func (g *fakeGateway) ListStations(context.Context) ([]domain.Station, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]domain.Station(nil), g.stations...), nil
}

func (g *fakeGateway) SaveStationMetadata(ctx context.Context, meta domain.StationMetadata) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rejectIDs[meta.StationID] {
		return errors.New("graphql: permission denied")
	}
	if g.saved == nil {
		g.saved = map[int64]domain.StationMetadata{}
	}
	g.saved[meta.StationID] = meta
	return nil
}

type fakeProber struct{}

func (fakeProber) Probe(_ context.Context, streamURL string) domain.Uptime {
	return domain.Uptime{Timestamp: time.Now(), IsUp: streamURL != "", LatencyMs: 42, RawData: map[string]any{}}
}

type fakeJournal struct {
	mu   sync.Mutex
	runs []domain.BatchRun
}

func (j *fakeJournal) RecordRun(_ context.Context, run domain.BatchRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, run)
	return nil
}

type fakeNotifier struct {
	digests []string
}

func (n *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	n.digests = append(n.digests, digest)
	return nil
}

func threeStations() []domain.Station {
	stations := make([]domain.Station, 0, 3)
	for id := int64(1); id <= 3; id++ {
		stations = append(stations, domain.Station{
			ID:        id,
			Title:     "Station",
			StreamURL: "http://stream.example/live",
			Fetches: []domain.MetadataFetch{
				{URL: "ok://", Category: "stub", Order: 1},
			},
		})
	}
	// Every source of station 2 blows up.
	stations[1].Fetches = []domain.MetadataFetch{
		{URL: "panic://", Category: "stub", Order: 1},
		{URL: "panic://", Category: "stub", Order: 2},
	}
	return stations
}

func newTestBatch(gw *fakeGateway, deps BatchDeps) *Batch {
	reg := extractor.NewRegistry()
	reg.Register(stubExtractor{
		category: "stub",
		panicOn:  "panic://",
		records: map[string]domain.NowPlaying{
			"ok://": {Song: &domain.Song{Name: "Song Name", Artist: "Artist Name"}},
		},
	})
	deps.Gateway = gw
	deps.Source = NewMerger(reg, deps.Metrics, nil)
	deps.Prober = fakeProber{}
	if deps.ShuffleSeed == 0 {
		deps.ShuffleSeed = 7
	}
	return NewBatch(deps)
}

func TestBatchRunIsolatesFailingSources(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{stations: threeStations()}
	results, err := newTestBatch(gw, BatchDeps{Concurrency: 2}).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, res := range results {
		if !res.Done || res.State != domain.StateDone {
			t.Fatalf("station %d not done: %+v", res.StationID, res)
		}
	}

	broken := gw.saved[2].NowPlaying
	if broken.Song != nil || broken.Error == nil || broken.Error.Kind != domain.ErrorPanic {
		t.Fatalf("station 2 should carry only an error capture, got %+v", broken)
	}
	if !gw.saved[2].Uptime.IsUp {
		t.Fatalf("station 2 uptime should be unaffected")
	}
	for _, id := range []int64{1, 3} {
		np := gw.saved[id].NowPlaying
		if np.Song == nil || np.Song.Name != "Song Name" || np.Error != nil {
			t.Fatalf("station %d affected by station 2: %+v", id, np)
		}
	}
}

func TestBatchRunReportsRejectedWrites(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{stations: threeStations(), rejectIDs: map[int64]bool{3: true}}
	journal := &fakeJournal{}
	notifier := &fakeNotifier{}
	stats := cache.NewStats(time.Minute)

	results, err := newTestBatch(gw, BatchDeps{
		Journal:  journal,
		Notifier: notifier,
		Cache:    stats,
		Metrics:  metrics.New(),
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var failed []domain.BatchResult
	for _, res := range results {
		if !res.Done {
			failed = append(failed, res)
		}
	}
	if len(failed) != 1 || failed[0].StationID != 3 || failed[0].State != domain.StateFailed {
		t.Fatalf("expected only station 3 to fail, got %+v", results)
	}
	if !strings.Contains(failed[0].Error, "permission denied") {
		t.Fatalf("write error not surfaced: %q", failed[0].Error)
	}

	if len(journal.runs) != 1 || len(journal.runs[0].Results) != 3 {
		t.Fatalf("run not journaled: %+v", journal.runs)
	}
	if len(notifier.digests) != 1 || !strings.Contains(notifier.digests[0], "- 3 Station") {
		t.Fatalf("unexpected digest: %v", notifier.digests)
	}

	snap := stats.Snapshot()
	if snap.RunID != journal.runs[0].ID || len(snap.Results) != 3 {
		t.Fatalf("cache not updated: %+v", snap)
	}
	if stats.Stale(snap.StoredAt) {
		t.Fatalf("fresh cache reported stale")
	}
}

func TestBatchRunNoDigestWhenAllDone(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	gw := &fakeGateway{stations: threeStations()}
	if _, err := newTestBatch(gw, BatchDeps{Notifier: notifier}).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(notifier.digests) != 0 {
		t.Fatalf("unexpected digest: %v", notifier.digests)
	}
}

func TestBatchRunPropagatesListFailure(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{listErr: errors.New("gateway down")}
	_, err := newTestBatch(gw, BatchDeps{}).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "gateway down") {
		t.Fatalf("expected list error, got %v", err)
	}
}

func TestBatchShuffleIsSeeded(t *testing.T) {
	t.Parallel()

	order := func(seed int64) []int64 {
		stations := make([]domain.Station, 10)
		for i := range stations {
			stations[i].ID = int64(i)
		}
		NewBatch(BatchDeps{ShuffleSeed: seed}).shuffle(stations)
		ids := make([]int64, len(stations))
		for i, s := range stations {
			ids[i] = s.ID
		}
		return ids
	}

	first, second := order(42), order(42)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same seed produced different orders: %v vs %v", first, second)
		}
	}
}

func TestBatchRunReturnsShuffledOrder(t *testing.T) {
	t.Parallel()

	stations := make([]domain.Station, 6)
	for i := range stations {
		stations[i] = domain.Station{ID: int64(i + 1)}
	}
	expected := append([]domain.Station(nil), stations...)
	NewBatch(BatchDeps{ShuffleSeed: 99}).shuffle(expected)

	gw := &fakeGateway{stations: stations}
	results, err := newTestBatch(gw, BatchDeps{ShuffleSeed: 99}).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, res := range results {
		if res.StationID != expected[i].ID {
			t.Fatalf("result %d is station %d, expected %d", i, res.StationID, expected[i].ID)
		}
	}
}

func TestBuildFailureDigest(t *testing.T) {
	t.Parallel()

	digest := buildFailureDigest(domain.BatchRun{
		ID: "run-1",
		Results: []domain.BatchResult{
			{StationID: 1, Done: true},
			{StationID: 2, Done: false, Error: "timeout"},
		},
	}, []domain.Station{{ID: 2, Title: "Radio Two"}})

	if !strings.Contains(digest, "1 of 2 stations failed") || !strings.Contains(digest, "- 2 Radio Two: timeout") {
		t.Fatalf("unexpected digest:\n%s", digest)
	}
}
