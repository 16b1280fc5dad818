package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"StationScraper/internal/domain"
	"StationScraper/internal/extractor"
)

var (
	xmlPreambleExpr = regexp.MustCompile(`^\s*<\?xml[^>]*\?>`)
	tagValueExpr    = regexp.MustCompile(`<([A-Za-z0-9_]+)>([^<]*)</`)
	legacyCellExpr  = regexp.MustCompile(`(?i)<tr><td width=100 nowrap><font class=default>(.*?): </font></td><td><font class=default><b>(.*?)</b></td></tr>`)
	uniqueExpr      = regexp.MustCompile(`\((.*?) unique\)`)
)

const (
	tagSongTitle        = "SONGTITLE"
	tagCurrentListeners = "CURRENTLISTENERS"

	labelCurrentSong      = "Current Song"
	labelCurrentListeners = "Current Listeners"
	labelStreamStatus     = "Stream Status"
)

// ShoutcastXMLExtractor reads tag-delimited stats pages such as Shoutcast v1 /stats.
type ShoutcastXMLExtractor struct {
	fetcher
}

// NewShoutcastXMLExtractor wires an HTTP client; a nil client gets a 10s timeout.
func NewShoutcastXMLExtractor(client *http.Client, log *slog.Logger) *ShoutcastXMLExtractor {
	return &ShoutcastXMLExtractor{fetcher: newFetcher(extractor.ShoutcastXML, client, log)}
}

// Extract fetches sourceURL and reads SONGTITLE and CURRENTLISTENERS.
func (e *ShoutcastXMLExtractor) Extract(ctx context.Context, sourceURL string) domain.NowPlaying {
	body, failure := e.get(ctx, sourceURL, browserHeaders)
	if failure != nil {
		return e.failed(failure)
	}

	text := xmlPreambleExpr.ReplaceAllString(string(body), "")
	tags := scanPairs(tagValueExpr, text)
	if len(tags) == 0 {
		return e.parseFailed(sourceURL, errors.New("no tagged values in payload"))
	}
	for key, value := range tags {
		tags[key] = html.UnescapeString(value)
	}

	song := splitTitle(tags[tagSongTitle], artistFirst)
	return e.record(song, parseListeners(tags[tagCurrentListeners]), rawFromPairs(tags))
}

// ShoutcastHTMLExtractor reads the Shoutcast v2 HTML status table where every value
// sits in a td.streamdata cell right after its "Label:" cell.
type ShoutcastHTMLExtractor struct {
	fetcher
}

// NewShoutcastHTMLExtractor wires an HTTP client; a nil client gets a 10s timeout.
func NewShoutcastHTMLExtractor(client *http.Client, log *slog.Logger) *ShoutcastHTMLExtractor {
	return &ShoutcastHTMLExtractor{fetcher: newFetcher(extractor.ShoutcastHTML, client, log)}
}

// Extract fetches sourceURL and reads the Current Song and Current Listeners rows.
func (e *ShoutcastHTMLExtractor) Extract(ctx context.Context, sourceURL string) domain.NowPlaying {
	body, failure := e.get(ctx, sourceURL, browserHeaders)
	if failure != nil {
		return e.failed(failure)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return e.parseFailed(sourceURL, fmt.Errorf("parse document: %w", err))
	}

	cells := streamDataCells(doc)
	if len(cells) == 0 {
		return e.parseFailed(sourceURL, errors.New("no streamdata cells in page"))
	}

	song := splitTitle(cells[labelCurrentSong], artistFirst)
	return e.record(song, parseListeners(cells[labelCurrentListeners]), rawFromPairs(cells))
}

func streamDataCells(doc *goquery.Document) map[string]string {
	cells := map[string]string{}
	doc.Find("td.streamdata").Each(func(_ int, value *goquery.Selection) {
		label := value.Prev()
		if label.Length() == 0 || !label.Is("td") {
			return
		}
		name := strings.TrimSpace(label.Text())
		if !strings.HasSuffix(name, ":") {
			return
		}
		cells[strings.TrimSuffix(name, ":")] = strings.TrimSpace(value.Text())
	})
	return cells
}

// OldShoutcastHTMLExtractor reads the Shoutcast v1 index page built from
// <font class=default> decorated table cells.
type OldShoutcastHTMLExtractor struct {
	fetcher
}

// NewOldShoutcastHTMLExtractor wires an HTTP client; a nil client gets a 10s timeout.
func NewOldShoutcastHTMLExtractor(client *http.Client, log *slog.Logger) *OldShoutcastHTMLExtractor {
	return &OldShoutcastHTMLExtractor{fetcher: newFetcher(extractor.OldShoutcastHTML, client, log)}
}

// Extract fetches sourceURL and reads Current Listeners and the Stream Status row.
//
// The title is taken from the "(N unique)" capture of Stream Status, not from
// Current Song. Stored records depend on this, so it stays until the intended
// source is confirmed.
func (e *OldShoutcastHTMLExtractor) Extract(ctx context.Context, sourceURL string) domain.NowPlaying {
	body, failure := e.get(ctx, sourceURL, browserHeaders)
	if failure != nil {
		return e.failed(failure)
	}

	cells := scanPairs(legacyCellExpr, string(body))
	if len(cells) == 0 {
		return e.parseFailed(sourceURL, errors.New("no status cells in page"))
	}

	var (
		song   *domain.Song
		unique string
	)
	if match := uniqueExpr.FindStringSubmatch(cells[labelStreamStatus]); match != nil {
		unique = match[1]
		song = splitTitle(html.UnescapeString(unique), artistFirst)
	}

	listeners := parseListeners(cells[labelCurrentListeners])
	if listeners == nil && unique != "" {
		listeners = parseListeners(unique)
	}

	return e.record(song, listeners, rawFromPairs(cells))
}

func rawFromPairs(pairs map[string]string) map[string]any {
	raw := make(map[string]any, len(pairs))
	for key, value := range pairs {
		raw[key] = value
	}
	return raw
}
