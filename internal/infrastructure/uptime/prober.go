// Package uptime checks whether a station's audio stream answers, without downloading it.
package uptime

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"StationScraper/internal/domain"
	"StationScraper/internal/ports"
)

const (
	defaultTimeout = 5 * time.Second
	playerAgent    = "VLC/3.0.20 LibVLC/3.0.20"
)

// Prober issues a single GET per stream and only waits for the response headers.
type Prober struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.UptimeProber = (*Prober)(nil)

// NewProber builds a prober whose requests are cut off after timeout.
// The client has no overall timeout: audio bodies never end, so the deadline
// lives on the request context and the transport's header timeout.
func NewProber(timeout time.Duration, log *slog.Logger) *Prober {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           icyDialer(&net.Dialer{Timeout: timeout}),
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		DisableCompression:    true,
		MaxIdleConnsPerHost:   2,
	}
	return &Prober{
		client:  &http.Client{Transport: transport},
		timeout: timeout,
		logger:  log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Probe reports liveness (status 200) and the time to first response headers.
// SHOUTcast v1 servers answering "ICY 200 OK" count as HTTP 200.
func (p *Prober) Probe(ctx context.Context, streamURL string) domain.Uptime {
	started := time.Now()
	result := domain.Uptime{
		Timestamp: p.now(),
		LatencyMs: domain.LatencyUnmeasured,
		RawData:   map[string]any{},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var conn *icyConn
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			conn, _ = info.Conn.(*icyConn)
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		result.RawData["error"] = fmt.Sprintf("build request: %v", err)
		return result
	}
	req.Header.Set("User-Agent", playerAgent)
	req.Header.Set("Icy-MetaData", "0")
	req.Header.Set("Accept", "*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		result.RawData["error"] = err.Error()
		p.debug("stream probe failed", "url", streamURL, "error", err)
		return result
	}
	// The body is an endless audio stream; closing it without reading aborts the transfer.
	defer resp.Body.Close()

	result.LatencyMs = int(time.Since(started).Milliseconds())
	result.IsUp = resp.StatusCode == http.StatusOK
	result.RawData["status"] = resp.Status
	result.RawData["status_code"] = resp.StatusCode
	result.RawData["headers"] = flattenHeaders(resp.Header)
	if conn != nil && conn.answeredICY() {
		result.RawData["protocol"] = "icy"
	}

	if !result.IsUp {
		p.debug("stream probe not ok", "url", streamURL, "status", resp.Status)
	}
	return result
}

func flattenHeaders(h http.Header) map[string]any {
	out := make(map[string]any, len(h))
	for key := range h {
		out[key] = h.Get(key)
	}
	return out
}

func (p *Prober) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
