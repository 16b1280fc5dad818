package domain

import "time"

// Song is the currently playing track. Empty strings stand for null.
type Song struct {
	Name         string `json:"name"`
	Artist       string `json:"artist"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// IsZero reports whether no field of the song carries a value.
func (s *Song) IsZero() bool {
	return s == nil || (s.Name == "" && s.Artist == "" && s.ThumbnailURL == "")
}

// ErrorKind classifies why an extraction or probe failed.
type ErrorKind string

const (
	ErrorNetwork     ErrorKind = "network"
	ErrorStatus      ErrorKind = "status"
	ErrorParse       ErrorKind = "parse"
	ErrorUnsupported ErrorKind = "unsupported"
	ErrorPanic       ErrorKind = "panic"
)

// ErrorCapture is the JSON-safe form of a failure stored next to the record.
type ErrorCapture struct {
	Message    string    `json:"message"`
	Kind       ErrorKind `json:"kind"`
	URL        string    `json:"url,omitempty"`
	Category   Category  `json:"category,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
}

// NowPlaying is a normalized snapshot of what a station is playing.
type NowPlaying struct {
	Timestamp time.Time      `json:"timestamp"`
	Song      *Song          `json:"current_song"`
	Listeners *int           `json:"listeners"`
	RawData   map[string]any `json:"raw_data"`
	Error     *ErrorCapture  `json:"error"`
}

// Failed builds the record an extractor returns when it could not produce data.
func Failed(at time.Time, capture ErrorCapture) NowPlaying {
	return NowPlaying{
		Timestamp: at,
		RawData:   map[string]any{},
		Error:     &capture,
	}
}

// Uptime is the liveness and latency snapshot of a station's audio stream.
type Uptime struct {
	Timestamp time.Time      `json:"timestamp"`
	IsUp      bool           `json:"is_up"`
	LatencyMs int            `json:"latency_ms"`
	RawData   map[string]any `json:"raw_data"`
}

// LatencyUnmeasured marks a probe that failed before any response arrived.
const LatencyUnmeasured = -1

// StationMetadata is the merged per-station record written to the gateway.
type StationMetadata struct {
	StationID  int64      `json:"station_id"`
	NowPlaying NowPlaying `json:"now_playing"`
	Uptime     Uptime     `json:"uptime"`
}
