package parser

import (
	"log/slog"
	"net/http"

	"StationScraper/internal/domain"
	"StationScraper/internal/extractor"
)

// RegisterAll adds every supported format to reg, sharing one HTTP client.
func RegisterAll(reg *extractor.Registry, client *http.Client, log *slog.Logger) {
	named := func(category domain.Category) *slog.Logger {
		if log == nil {
			return nil
		}
		return log.With("component", "extractor."+string(category))
	}

	reg.Register(NewShoutcastJSONExtractor(client, named(extractor.ShoutcastJSON)))
	reg.Register(NewRadioCoExtractor(client, named(extractor.RadioCo)))
	reg.Register(NewIcecastExtractor(client, named(extractor.Icecast)))
	reg.Register(NewShoutcastXMLExtractor(client, named(extractor.ShoutcastXML)))
	reg.Register(NewShoutcastHTMLExtractor(client, named(extractor.ShoutcastHTML)))
	reg.Register(NewOldShoutcastHTMLExtractor(client, named(extractor.OldShoutcastHTML)))
	reg.Register(NewSonicPanelExtractor(client, named(extractor.SonicPanel)))
}
