package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"StationScraper/internal/domain"
	"StationScraper/internal/extractor"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func assertSong(t *testing.T, got domain.NowPlaying, name, artist string) {
	t.Helper()
	if got.Error != nil {
		t.Fatalf("unexpected error capture: %+v", got.Error)
	}
	if got.Song == nil {
		t.Fatalf("expected a song, got nil")
	}
	if got.Song.Name != name {
		t.Fatalf("unexpected song name: %q, want %q", got.Song.Name, name)
	}
	if got.Song.Artist != artist {
		t.Fatalf("unexpected artist: %q, want %q", got.Song.Artist, artist)
	}
}

func assertListeners(t *testing.T, got domain.NowPlaying, want int) {
	t.Helper()
	if got.Listeners == nil {
		t.Fatalf("expected %d listeners, got nil", want)
	}
	if *got.Listeners != want {
		t.Fatalf("unexpected listeners: %d, want %d", *got.Listeners, want)
	}
}

func TestShoutcastJSONExtractor(t *testing.T) {
	t.Parallel()

	server := serve(t, http.StatusOK, `{"songtitle":"Amazing Grace - Chris Tomlin","currentlisteners":5}`)
	ex := NewShoutcastJSONExtractor(server.Client(), nil)
	fixed := time.Date(2025, time.May, 4, 10, 0, 0, 0, time.UTC)
	ex.now = func() time.Time { return fixed }

	got := ex.Extract(context.Background(), server.URL)

	assertSong(t, got, "Amazing Grace", "Chris Tomlin")
	assertListeners(t, got, 5)
	if !got.Timestamp.Equal(fixed) {
		t.Fatalf("unexpected timestamp: %v", got.Timestamp)
	}
	if got.RawData["songtitle"] != "Amazing Grace - Chris Tomlin" {
		t.Fatalf("raw payload not captured: %v", got.RawData)
	}
}

func TestRadioCoExtractor(t *testing.T) {
	t.Parallel()

	server := serve(t, http.StatusOK, `{"status":"online","current_track":{"title":"Hillsong - Oceans","artwork_url_large":"https://img.example.org/oceans.jpg"}}`)
	got := NewRadioCoExtractor(server.Client(), nil).Extract(context.Background(), server.URL)

	assertSong(t, got, "Oceans", "Hillsong")
	if got.Song.ThumbnailURL != "https://img.example.org/oceans.jpg" {
		t.Fatalf("unexpected thumbnail: %q", got.Song.ThumbnailURL)
	}
	if got.Listeners != nil {
		t.Fatalf("expected no listener count, got %d", *got.Listeners)
	}
}

func TestIcecastExtractorSelectsListenURL(t *testing.T) {
	t.Parallel()

	server := serve(t, http.StatusOK, `{"icestats":{"source":[
		{"listenurl":"http://radio.example.org:8000/bar","title":"Bar Artist - Bar Song","listeners":1},
		{"listenurl":"http://radio.example.org:8000/foo","title":"Foo Artist - Foo Song","listeners":9}
	]}}`)

	got := NewIcecastExtractor(server.Client(), nil).Extract(context.Background(), server.URL+"/status-json.xsl?listen_url=foo")

	assertSong(t, got, "Foo Song", "Foo Artist")
	assertListeners(t, got, 9)
}

func TestIcecastExtractorSingleSource(t *testing.T) {
	t.Parallel()

	server := serve(t, http.StatusOK, `{"icestats":{"source":{"listenurl":"http://radio.example.org:8000/live","title":"Only Artist - Only Song","listeners":"2"}}}`)
	got := NewIcecastExtractor(server.Client(), nil).Extract(context.Background(), server.URL+"/status-json.xsl")

	assertSong(t, got, "Only Song", "Only Artist")
	assertListeners(t, got, 2)
}

func TestIcecastExtractorNoMatchingSource(t *testing.T) {
	t.Parallel()

	server := serve(t, http.StatusOK, `{"icestats":{"source":[{"listenurl":"http://radio.example.org:8000/bar","title":"A - B"}]}}`)
	got := NewIcecastExtractor(server.Client(), nil).Extract(context.Background(), server.URL+"?listen_url=missing")

	if got.Error == nil || got.Error.Kind != domain.ErrorParse {
		t.Fatalf("expected parse failure, got %+v", got.Error)
	}
	if got.Song != nil {
		t.Fatalf("expected no song, got %+v", got.Song)
	}
}

func TestSonicPanelExtractor(t *testing.T) {
	t.Parallel()

	server := serve(t, http.StatusOK, `{"title":"Song X","artist":"Artist Y","picture":"https://img.example.org/x.jpg","listeners":"3"}`)
	got := NewSonicPanelExtractor(server.Client(), nil).Extract(context.Background(), server.URL)

	assertSong(t, got, "Song X", "Artist Y")
	assertListeners(t, got, 3)
	if got.Song.ThumbnailURL != "https://img.example.org/x.jpg" {
		t.Fatalf("unexpected thumbnail: %q", got.Song.ThumbnailURL)
	}
}

func TestJSONExtractorFailures(t *testing.T) {
	t.Parallel()

	t.Run("status", func(t *testing.T) {
		t.Parallel()
		server := serve(t, http.StatusInternalServerError, `oops`)
		got := NewShoutcastJSONExtractor(server.Client(), nil).Extract(context.Background(), server.URL)
		assertFailure(t, got, domain.ErrorStatus)
		if got.Error.StatusCode != http.StatusInternalServerError {
			t.Fatalf("unexpected status code: %d", got.Error.StatusCode)
		}
	})

	t.Run("parse", func(t *testing.T) {
		t.Parallel()
		server := serve(t, http.StatusOK, `not json`)
		got := NewRadioCoExtractor(server.Client(), nil).Extract(context.Background(), server.URL)
		assertFailure(t, got, domain.ErrorParse)
	})

	t.Run("network", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()
		got := NewIcecastExtractor(nil, nil).Extract(context.Background(), addr)
		assertFailure(t, got, domain.ErrorNetwork)
	})
}

func assertFailure(t *testing.T, got domain.NowPlaying, kind domain.ErrorKind) {
	t.Helper()
	if got.Error == nil {
		t.Fatalf("expected error capture")
	}
	if got.Error.Kind != kind {
		t.Fatalf("unexpected error kind: %s, want %s", got.Error.Kind, kind)
	}
	if got.Song != nil || got.Listeners != nil {
		t.Fatalf("failed record carries data: %+v", got)
	}
	if got.RawData == nil || len(got.RawData) != 0 {
		t.Fatalf("expected empty raw data, got %v", got.RawData)
	}
}

func TestSplitTitle(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title  string
		order  titleOrder
		name   string
		artist string
		isNil  bool
	}{
		{title: "Artist - Song", order: artistFirst, name: "Song", artist: "Artist"},
		{title: "Song - Artist", order: songFirst, name: "Song", artist: "Artist"},
		{title: "A - B - C", order: artistFirst, name: "B - C", artist: "A"},
		{title: "Just a title", order: artistFirst, name: "Just a title"},
		{title: " - Lonely", order: artistFirst, name: "- Lonely"},
		{title: "   ", order: artistFirst, isNil: true},
	}

	for _, tc := range cases {
		got := splitTitle(tc.title, tc.order)
		if tc.isNil {
			if got != nil {
				t.Fatalf("splitTitle(%q) = %+v, want nil", tc.title, got)
			}
			continue
		}
		if got == nil || got.Name != tc.name || got.Artist != tc.artist {
			t.Fatalf("splitTitle(%q) = %+v, want name=%q artist=%q", tc.title, got, tc.name, tc.artist)
		}
	}
}

func TestRegisterAll(t *testing.T) {
	t.Parallel()

	reg := extractor.NewRegistry()
	RegisterAll(reg, nil, nil)

	for _, category := range []domain.Category{
		extractor.ShoutcastJSON,
		extractor.RadioCo,
		extractor.Icecast,
		extractor.ShoutcastXML,
		extractor.ShoutcastHTML,
		extractor.OldShoutcastHTML,
		extractor.SonicPanel,
	} {
		if _, err := reg.Resolve(category); err != nil {
			t.Fatalf("category %s not registered: %v", category, err)
		}
	}
}
