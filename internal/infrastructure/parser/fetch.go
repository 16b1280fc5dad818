package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"StationScraper/internal/domain"
)

const (
	maxBodyBytes   = 1 << 20
	defaultTimeout = 10 * time.Second
	agentName      = "StationScraper/1.0"
	browserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var (
	jsonHeaders = http.Header{
		"User-Agent": {agentName},
		"Accept":     {"application/json, text/plain, */*"},
	}
	browserHeaders = http.Header{
		"User-Agent":      {browserAgent},
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": {"en-US,en;q=0.9"},
		"Cache-Control":   {"no-cache"},
	}
)

// fetcher holds what every extractor shares: the HTTP client, a clock and a logger.
type fetcher struct {
	category domain.Category
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

func newFetcher(category domain.Category, client *http.Client, log *slog.Logger) fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return fetcher{
		category: category,
		client:   client,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Category identifies the extractor inside the registry.
func (f fetcher) Category() domain.Category {
	return f.category
}

// get performs the single GET an extraction is allowed and returns the bounded body.
func (f fetcher) get(ctx context.Context, sourceURL string, headers http.Header) ([]byte, *domain.ErrorCapture) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, f.capture(sourceURL, domain.ErrorNetwork, fmt.Errorf("build request: %w", err))
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.capture(sourceURL, domain.ErrorNetwork, fmt.Errorf("request metadata: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		failure := f.capture(sourceURL, domain.ErrorStatus, fmt.Errorf("upstream returned %s", resp.Status))
		failure.StatusCode = resp.StatusCode
		return nil, failure
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, f.capture(sourceURL, domain.ErrorNetwork, fmt.Errorf("read body: %w", err))
	}

	return body, nil
}

func (f fetcher) capture(sourceURL string, kind domain.ErrorKind, err error) *domain.ErrorCapture {
	f.debug("extraction failed", "category", f.category, "url", sourceURL, "kind", kind, "error", err)
	return &domain.ErrorCapture{
		Message:  err.Error(),
		Kind:     kind,
		URL:      sourceURL,
		Category: f.category,
	}
}

func (f fetcher) failed(failure *domain.ErrorCapture) domain.NowPlaying {
	return domain.Failed(f.now(), *failure)
}

func (f fetcher) parseFailed(sourceURL string, err error) domain.NowPlaying {
	return f.failed(f.capture(sourceURL, domain.ErrorParse, err))
}

func (f fetcher) record(song *domain.Song, listeners *int, raw map[string]any) domain.NowPlaying {
	if raw == nil {
		raw = map[string]any{}
	}
	return domain.NowPlaying{
		Timestamp: f.now(),
		Song:      song,
		Listeners: listeners,
		RawData:   raw,
	}
}

func (f fetcher) debug(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

type titleOrder int

const (
	artistFirst titleOrder = iota
	songFirst
)

const titleSeparator = " - "

// splitTitle splits a combined "X - Y" title once on the first separator.
// Without a usable split the whole title is treated as the song name.
func splitTitle(title string, order titleOrder) *domain.Song {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	first, second, found := strings.Cut(title, titleSeparator)
	first, second = strings.TrimSpace(first), strings.TrimSpace(second)
	if !found || first == "" || second == "" {
		return &domain.Song{Name: title}
	}

	if order == songFirst {
		return &domain.Song{Name: first, Artist: second}
	}
	return &domain.Song{Name: second, Artist: first}
}

// parseListeners accepts integer counts that may arrive as text.
func parseListeners(value string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return nil
	}
	return &n
}
