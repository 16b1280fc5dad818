package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"StationScraper/internal/domain"
	"StationScraper/internal/extractor"
)

var listenURLExpr = regexp.MustCompile(`listen_url=([^&#]+)`)

// ShoutcastJSONExtractor reads Shoutcast v2 style stats: {"songtitle": "...", "currentlisteners": N}.
// The title carries the song first and the artist second.
type ShoutcastJSONExtractor struct {
	fetcher
}

// NewShoutcastJSONExtractor wires an HTTP client; a nil client gets a 10s timeout.
func NewShoutcastJSONExtractor(client *http.Client, log *slog.Logger) *ShoutcastJSONExtractor {
	return &ShoutcastJSONExtractor{fetcher: newFetcher(extractor.ShoutcastJSON, client, log)}
}

// Extract fetches sourceURL and maps songtitle/currentlisteners.
func (e *ShoutcastJSONExtractor) Extract(ctx context.Context, sourceURL string) domain.NowPlaying {
	body, failure := e.get(ctx, sourceURL, jsonHeaders)
	if failure != nil {
		return e.failed(failure)
	}

	raw, err := decodeObject(body)
	if err != nil {
		return e.parseFailed(sourceURL, err)
	}

	payload := gjson.ParseBytes(body)
	song := splitTitle(payload.Get("songtitle").String(), songFirst)
	return e.record(song, listenersFrom(payload.Get("currentlisteners")), raw)
}

// RadioCoExtractor reads radio.co style feeds with a nested current_track object.
type RadioCoExtractor struct {
	fetcher
}

// NewRadioCoExtractor wires an HTTP client; a nil client gets a 10s timeout.
func NewRadioCoExtractor(client *http.Client, log *slog.Logger) *RadioCoExtractor {
	return &RadioCoExtractor{fetcher: newFetcher(extractor.RadioCo, client, log)}
}

// Extract fetches sourceURL and maps current_track.title and its artwork.
func (e *RadioCoExtractor) Extract(ctx context.Context, sourceURL string) domain.NowPlaying {
	body, failure := e.get(ctx, sourceURL, jsonHeaders)
	if failure != nil {
		return e.failed(failure)
	}

	raw, err := decodeObject(body)
	if err != nil {
		return e.parseFailed(sourceURL, err)
	}

	track := gjson.GetBytes(body, "current_track")
	song := splitTitle(track.Get("title").String(), artistFirst)
	if song != nil {
		song.ThumbnailURL = track.Get("artwork_url_large").String()
	}
	return e.record(song, nil, raw)
}

// IcecastExtractor reads Icecast status-json.xsl payloads.
// The source is chosen by the listen_url query parameter of the request URL.
type IcecastExtractor struct {
	fetcher
}

// NewIcecastExtractor wires an HTTP client; a nil client gets a 10s timeout.
func NewIcecastExtractor(client *http.Client, log *slog.Logger) *IcecastExtractor {
	return &IcecastExtractor{fetcher: newFetcher(extractor.Icecast, client, log)}
}

// Extract fetches sourceURL and maps the matching icestats source.
func (e *IcecastExtractor) Extract(ctx context.Context, sourceURL string) domain.NowPlaying {
	body, failure := e.get(ctx, sourceURL, jsonHeaders)
	if failure != nil {
		return e.failed(failure)
	}

	raw, err := decodeObject(body)
	if err != nil {
		return e.parseFailed(sourceURL, err)
	}

	source, ok := selectIcecastSource(gjson.GetBytes(body, "icestats.source"), listenURLFragment(sourceURL))
	if !ok {
		return e.parseFailed(sourceURL, fmt.Errorf("no icecast source matches %s", sourceURL))
	}

	song := splitTitle(source.Get("title").String(), artistFirst)
	return e.record(song, listenersFrom(source.Get("listeners")), raw)
}

func listenURLFragment(sourceURL string) string {
	match := listenURLExpr.FindStringSubmatch(sourceURL)
	if match == nil {
		return ""
	}
	if decoded, err := url.QueryUnescape(match[1]); err == nil {
		return decoded
	}
	return match[1]
}

// selectIcecastSource accepts both the array form and the single-object form Icecast emits.
func selectIcecastSource(sources gjson.Result, fragment string) (gjson.Result, bool) {
	var candidates []gjson.Result
	switch {
	case sources.IsArray():
		candidates = sources.Array()
	case sources.IsObject():
		candidates = []gjson.Result{sources}
	}

	for _, candidate := range candidates {
		if fragment == "" || strings.Contains(candidate.Get("listenurl").String(), fragment) {
			return candidate, true
		}
	}
	return gjson.Result{}, false
}

// SonicPanelExtractor reads payloads that expose title, artist and picture directly.
type SonicPanelExtractor struct {
	fetcher
}

// NewSonicPanelExtractor wires an HTTP client; a nil client gets a 10s timeout.
func NewSonicPanelExtractor(client *http.Client, log *slog.Logger) *SonicPanelExtractor {
	return &SonicPanelExtractor{fetcher: newFetcher(extractor.SonicPanel, client, log)}
}

// Extract fetches sourceURL and copies the named fields without splitting.
func (e *SonicPanelExtractor) Extract(ctx context.Context, sourceURL string) domain.NowPlaying {
	body, failure := e.get(ctx, sourceURL, jsonHeaders)
	if failure != nil {
		return e.failed(failure)
	}

	raw, err := decodeObject(body)
	if err != nil {
		return e.parseFailed(sourceURL, err)
	}

	payload := gjson.ParseBytes(body)
	song := &domain.Song{
		Name:         strings.TrimSpace(payload.Get("title").String()),
		Artist:       strings.TrimSpace(payload.Get("artist").String()),
		ThumbnailURL: strings.TrimSpace(payload.Get("picture").String()),
	}
	if song.IsZero() {
		song = nil
	}
	return e.record(song, listenersFrom(payload.Get("listeners")), raw)
}

func decodeObject(body []byte) (map[string]any, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid json payload")
	}
	raw, ok := gjson.ParseBytes(body).Value().(map[string]any)
	if !ok {
		return nil, errors.New("json payload is not an object")
	}
	return raw, nil
}

func listenersFrom(value gjson.Result) *int {
	switch value.Type {
	case gjson.Number:
		n := int(value.Int())
		return &n
	case gjson.String:
		return parseListeners(value.Str)
	default:
		return nil
	}
}
