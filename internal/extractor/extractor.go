package extractor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"StationScraper/internal/domain"
)

// Supported upstream metadata formats.
const (
	ShoutcastJSON    domain.Category = "shoutcast_json"
	RadioCo          domain.Category = "radio_co"
	Icecast          domain.Category = "icecast"
	ShoutcastXML     domain.Category = "shoutcast_xml"
	ShoutcastHTML    domain.Category = "shoutcast_html"
	OldShoutcastHTML domain.Category = "old_shoutcast_html"
	SonicPanel       domain.Category = "sonicpanel"
)

// ErrUnknownCategory is returned by Resolve for slugs without an extractor.
var ErrUnknownCategory = errors.New("unknown metadata category")

// Extractor fetches one metadata endpoint and turns it into a now-playing record.
// Failures are reported inside the record, never as an error.
type Extractor interface {
	Category() domain.Category
	Extract(ctx context.Context, sourceURL string) domain.NowPlaying
}

// Registry keeps a mapping from category slugs to their implementations.
type Registry struct {
	extractors map[domain.Category]Extractor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: map[domain.Category]Extractor{}}
}

// Register adds or replaces an extractor implementation.
func (r *Registry) Register(extractor Extractor) {
	if r.extractors == nil {
		r.extractors = map[domain.Category]Extractor{}
	}
	r.extractors[extractor.Category()] = extractor
}

// Resolve returns the extractor for category or ErrUnknownCategory.
func (r *Registry) Resolve(category domain.Category) (Extractor, error) {
	if extractor, ok := r.extractors[category]; ok {
		return extractor, nil
	}
	return nil, fmt.Errorf("category %q: %w", category, ErrUnknownCategory)
}

// Categories lists registered slugs in lexical order.
func (r *Registry) Categories() []domain.Category {
	out := make([]domain.Category, 0, len(r.extractors))
	for category := range r.extractors {
		out = append(out, category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
