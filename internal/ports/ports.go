package ports

import (
	"context"
	"time"

	"StationScraper/internal/domain"
)

// StationGateway is the GraphQL API that owns stations and accepts metadata writes.
type StationGateway interface {
	ListStations(ctx context.Context) ([]domain.Station, error)
	SaveStationMetadata(ctx context.Context, metadata domain.StationMetadata) error
}

// NowPlayingSource produces the merged now-playing record of a station.
type NowPlayingSource interface {
	MergeAll(ctx context.Context, station domain.Station) domain.NowPlaying
}

// UptimeProber checks a station's audio stream for liveness and latency.
type UptimeProber interface {
	Probe(ctx context.Context, streamURL string) domain.Uptime
}

// RunJournal keeps a local audit trail of batch outcomes.
type RunJournal interface {
	RecordRun(ctx context.Context, run domain.BatchRun) error
}

// Notifier sends a digest about failed stations to an operator channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when batch runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
