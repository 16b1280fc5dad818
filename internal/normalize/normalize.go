// Package normalize cleans song and artist strings scraped from upstream metadata endpoints.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"StationScraper/internal/domain"
)

const placeholder = "undefined"

var (
	charRefExpr = regexp.MustCompile(`&#(\d+);`)

	// \s in RE2 is ASCII only; \p{Z} and U+FEFF keep non-breaking and other Unicode spaces.
	disallowedExpr = regexp.MustCompile(`[^A-Za-zÀ-ž\-\s\p{Z}\x{FEFF}?'&]`)
)

// NowPlaying returns a copy of record with song text fields cleaned.
// It never fails; fields that cannot be salvaged become empty.
func NowPlaying(record domain.NowPlaying) domain.NowPlaying {
	if record.Song == nil {
		return record
	}

	song := *record.Song
	song.Name = Text(song.Name)
	song.Artist = Text(song.Artist)
	song.ThumbnailURL = Thumbnail(song.ThumbnailURL)
	record.Song = &song

	return record
}

// Text runs the cleaning pipeline on a single song or artist value.
//
// The underscore and double-space replacements only touch the first occurrence.
// Downstream consumers rely on that output, so it is kept as is. Removing the
// placeholder runs after the space collapse, so "a undefined b" keeps a double
// space that a second pass would collapse.
func Text(value string) string {
	if usable(value) {
		value = norm.NFC.String(value)
		value = decodeCharRefs(value)
		value = strings.Replace(value, "_", " ", 1)
		value = strings.Replace(value, "  ", " ", 1)
		value = disallowedExpr.ReplaceAllString(value, "")
		value = strings.ReplaceAll(value, placeholder, "")
		value = capitalize(value)
	}

	if !usable(value) {
		return ""
	}
	return value
}

// Thumbnail drops placeholder or truncated thumbnail URLs.
func Thumbnail(value string) string {
	if value == "" || value == placeholder || utf8.RuneCountInString(value) < 2 {
		return ""
	}
	return value
}

func usable(value string) bool {
	return value != "" && value != placeholder && utf8.RuneCountInString(value) > 2
}

func decodeCharRefs(value string) string {
	return charRefExpr.ReplaceAllStringFunc(value, func(ref string) string {
		digits := ref[2 : len(ref)-1]
		code, err := strconv.ParseInt(digits, 10, 32)
		if err != nil || !utf8.ValidRune(rune(code)) {
			return ref
		}
		return string(rune(code))
	})
}

func capitalize(value string) string {
	if value == "" {
		return value
	}
	first := value[0]
	if first >= 'a' && first <= 'z' {
		return string(first-'a'+'A') + value[1:]
	}
	return value
}
