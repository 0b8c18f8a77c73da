package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kinofeed/internal/tmdb"
	"kinofeed/models"
)

// movieVoteCountFloor keeps near-empty, low-signal titles out of movie
// discovery results. Series queries carry no floor.
const movieVoteCountFloor = 10

// LookupError reports an identifier that could not be resolved against
// a static table. Provider lookups are fatal to the request; genre and
// language lookups are resolved permissively and never produce one.
type LookupError struct {
	Kind string
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("could not find %s: %s", e.Kind, e.Name)
}

// providerEntry maps a streaming-provider catalog code to the upstream
// watch-provider identifier and its region.
type providerEntry struct {
	WatchProviderID int
	Country         string
}

var streamingProviders = map[string]providerEntry{
	"netflix": {8, "KR"},
	"watcha":  {97, "KR"},
	"wavve":   {356, "KR"},
	"disney":  {337, "KR"},
	"apple":   {350, "KR"},
	"prime":   {119, "KR"},
}

// trimSource removes the optional provider prefix from a catalog id, so
// "tmdb.top" and "top" resolve to the same source.
func trimSource(id string) string {
	return strings.TrimPrefix(id, "tmdb.")
}

// buildParams translates a catalog id plus filter into one upstream
// discovery parameter set. Deterministic, no I/O; the page value is a
// starting point that the aggregator overrides per upstream fetch.
func buildParams(contentType models.ContentType, language, sourceID, filter string, page int, genres []tmdb.Genre, languages []tmdb.Language) (url.Values, error) {
	params := url.Values{}
	params.Set("language", language)
	params.Set("page", strconv.Itoa(page))
	params.Set("sort_by", "popularity.desc")

	if contentType == models.ContentTypeMovie {
		params.Set("vote_count.gte", strconv.Itoa(movieVoteCountFloor))
	}

	if code, ok := strings.CutPrefix(sourceID, "streaming."); ok {
		provider, ok := streamingProviders[code]
		if !ok {
			return nil, &LookupError{Kind: "provider", Name: code}
		}
		if id := findGenreID(filter, genres); id != 0 {
			params.Set("with_genres", strconv.FormatInt(id, 10))
		}
		params.Set("with_watch_providers", strconv.Itoa(provider.WatchProviderID))
		params.Set("watch_region", provider.Country)
		params.Set("with_watch_monetization_types", "flatrate|free|ads")
		return params, nil
	}

	switch trimSource(sourceID) {
	case "top":
		if id := findGenreID(filter, genres); id != 0 {
			params.Set("with_genres", strconv.FormatInt(id, 10))
		}
	case "year":
		year := filter
		if year == "" {
			year = strconv.Itoa(time.Now().Year())
		}
		if contentType == models.ContentTypeMovie {
			params.Set("primary_release_year", year)
			params.Set("sort_by", "primary_release_date.desc")
		} else {
			params.Set("first_air_date_year", year)
			params.Set("sort_by", "first_air_date.desc")
		}
	case "language":
		code := findLanguageCode(filter, languages)
		if code == "" {
			code, _, _ = strings.Cut(language, "-")
		}
		params.Set("with_original_language", code)
	}

	return params, nil
}

// findGenreID resolves a genre name against the localized genre table.
// Unresolved names yield 0 (absent filter) rather than an error.
func findGenreID(name string, genres []tmdb.Genre) int64 {
	if name == "" {
		return 0
	}
	for _, g := range genres {
		if g.Name == name {
			return g.ID
		}
	}
	return 0
}

// findLanguageCode resolves a human-readable language name to its base
// ISO 639-1 code. Returns "" when nothing matches.
func findLanguageCode(name string, languages []tmdb.Language) string {
	if name == "" {
		return ""
	}
	for _, l := range languages {
		if l.Name == name || l.English == name {
			code, _, _ := strings.Cut(l.ISO639, "-")
			return code
		}
	}
	return ""
}
