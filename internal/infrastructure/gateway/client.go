// Package gateway talks to the GraphQL API that owns stations and stores scraped metadata.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"StationScraper/internal/domain"
	"StationScraper/internal/ports"
)

const (
	defaultTimeout    = 10 * time.Second
	adminSecretHeader = "x-hasura-admin-secret"
	maxResponseBytes  = 4 << 20
)

// Client posts GraphQL documents to a single endpoint.
type Client struct {
	endpoint    string
	adminSecret string
	timeout     time.Duration
	http        *http.Client
	logger      *slog.Logger
}

var _ ports.StationGateway = (*Client)(nil)

// NewClient creates a reusable gateway client. Every call is bounded by timeout.
func NewClient(endpoint, adminSecret string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:    endpoint,
		adminSecret: adminSecret,
		timeout:     timeout,
		http:        &http.Client{Timeout: timeout},
		logger:      log,
	}
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type stationRow struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	StreamURL string `json:"stream_url"`
	RSSFeed   string `json:"rss_feed"`
	Fetches   []struct {
		Order    int    `json:"order"`
		URL      string `json:"url"`
		Category *struct {
			Slug string `json:"slug"`
		} `json:"station_metadata_fetch_category"`
	} `json:"station_metadata_fetches"`
}

// ListStations loads every station with its metadata descriptors.
func (c *Client) ListStations(ctx context.Context) ([]domain.Station, error) {
	var data struct {
		Stations *[]stationRow `json:"stations"`
	}
	if err := c.do(ctx, "GetStations", getStationsQuery, nil, &data); err != nil {
		return nil, errors.Wrap(err, "get stations")
	}
	if data.Stations == nil {
		return nil, errors.New("get stations: response has no stations")
	}

	stations := make([]domain.Station, 0, len(*data.Stations))
	for _, row := range *data.Stations {
		station := domain.Station{
			ID:        row.ID,
			Title:     row.Title,
			StreamURL: row.StreamURL,
			RSSFeed:   row.RSSFeed,
			Fetches:   make([]domain.MetadataFetch, 0, len(row.Fetches)),
		}
		for _, f := range row.Fetches {
			var category domain.Category
			if f.Category != nil {
				category = domain.Category(f.Category.Slug)
			}
			station.Fetches = append(station.Fetches, domain.MetadataFetch{
				URL:      f.URL,
				Category: category,
				Order:    f.Order,
			})
		}
		stations = append(stations, station)
	}

	c.debug("stations loaded", "count", len(stations))
	return stations, nil
}

// SaveStationMetadata writes the now-playing and uptime rows in one mutation.
func (c *Client) SaveStationMetadata(ctx context.Context, metadata domain.StationMetadata) error {
	vars, err := metadataVariables(metadata)
	if err != nil {
		return errors.Wrapf(err, "station %d", metadata.StationID)
	}

	var data struct {
		NowPlaying *struct {
			ID *int64 `json:"id"`
		} `json:"insert_stations_now_playing_one"`
		Uptime *struct {
			ID *int64 `json:"id"`
		} `json:"insert_stations_uptime_one"`
	}
	if err := c.do(ctx, "UpdateStationMetadata", updateStationMetadataMutation, vars, &data); err != nil {
		return errors.Wrapf(err, "update station %d metadata", metadata.StationID)
	}
	if data.NowPlaying == nil || data.NowPlaying.ID == nil {
		return errors.Errorf("update station %d metadata: now playing row has no id", metadata.StationID)
	}
	if data.Uptime == nil || data.Uptime.ID == nil {
		return errors.Errorf("update station %d metadata: uptime row has no id", metadata.StationID)
	}
	return nil
}

func metadataVariables(metadata domain.StationMetadata) (map[string]any, error) {
	np := metadata.NowPlaying
	up := metadata.Uptime

	nowPlayingRaw, err := stringify(nonNilRaw(np.RawData))
	if err != nil {
		return nil, errors.Wrap(err, "encode now playing raw data")
	}
	uptimeRaw, err := stringify(nonNilRaw(up.RawData))
	if err != nil {
		return nil, errors.Wrap(err, "encode uptime raw data")
	}

	var capture any
	if np.Error != nil {
		encoded, err := stringify(np.Error)
		if err != nil {
			return nil, errors.Wrap(err, "encode error capture")
		}
		capture = encoded
	}

	var listeners any
	if np.Listeners != nil {
		listeners = *np.Listeners
	}

	timestamp := np.Timestamp
	if timestamp.IsZero() {
		timestamp = up.Timestamp
	}

	return map[string]any{
		"stationId":         metadata.StationID,
		"timestamp":         timestamp.UTC().Format(time.RFC3339Nano),
		"song":              songInput(np.Song),
		"listeners":         listeners,
		"nowPlayingRawData": nowPlayingRaw,
		"error":             capture,
		"isUp":              up.IsUp,
		"latencyMs":         up.LatencyMs,
		"uptimeRawData":     uptimeRaw,
	}, nil
}

// songInput builds the nested insert; the artist is upserted by its unique name.
func songInput(song *domain.Song) any {
	if song.IsZero() {
		return nil
	}

	data := map[string]any{
		"name":          nullable(song.Name),
		"thumbnail_url": nullable(song.ThumbnailURL),
	}
	if song.Artist != "" {
		data["artist"] = map[string]any{
			"data": map[string]any{"name": song.Artist},
			"on_conflict": map[string]any{
				"constraint":     artistNameConstraint,
				"update_columns": []string{"name"},
			},
		}
	}

	return map[string]any{
		"data": data,
		"on_conflict": map[string]any{
			"constraint":     songNameConstraint,
			"update_columns": []string{"thumbnail_url"},
		},
	}
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nonNilRaw(raw map[string]any) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	return raw
}

func stringify(v any) (string, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (c *Client) do(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	if strings.TrimSpace(c.endpoint) == "" {
		return errors.New("gateway endpoint is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"operationName": operation,
		"query":         query,
		"variables":     variables,
	})
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.adminSecret != "" {
		req.Header.Set(adminSecretHeader, c.adminSecret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("unexpected status %s", resp.Status)
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return errors.Wrap(err, "decode response")
	}
	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			messages = append(messages, e.Message)
		}
		return errors.Errorf("graphql: %s", strings.Join(messages, "; "))
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return errors.New("graphql: response has no data")
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return errors.Wrap(err, "decode data")
	}
	return nil
}

func (c *Client) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
