package domain

// Category is the slug that selects which extractor parses a metadata endpoint.
type Category string

// Station is a configured radio source as returned by the gateway.
type Station struct {
	ID        int64
	Title     string
	StreamURL string
	RSSFeed   string
	Fetches   []MetadataFetch
}

// MetadataFetch tells the merger which extractor to run against URL and in what precedence.
// Lower Order is applied first; later descriptors override earlier ones.
type MetadataFetch struct {
	URL      string
	Category Category
	Order    int
}

// StationState tracks a station's progress inside one batch run.
type StationState string

const (
	StatePending    StationState = "PENDING"
	StateExtracting StationState = "EXTRACTING"
	StateMerging    StationState = "MERGING"
	StatePersisting StationState = "PERSISTING"
	StateDone       StationState = "DONE"
	StateFailed     StationState = "FAILED"
)

// BatchResult is the per-station outcome of a batch run.
type BatchResult struct {
	StationID int64        `json:"stationId"`
	Done      bool         `json:"done"`
	State     StationState `json:"state"`
	Error     string       `json:"error,omitempty"`
}
