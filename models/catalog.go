package models

// ContentType is the client-facing media type of a catalog or meta request.
type ContentType string

const (
	ContentTypeMovie  ContentType = "movie"
	ContentTypeSeries ContentType = "series"
)

// Valid reports whether the content type is one the addon serves.
func (t ContentType) Valid() bool {
	return t == ContentTypeMovie || t == ContentTypeSeries
}

// TMDBMediaType returns the upstream media_type value for this content type.
func (t ContentType) TMDBMediaType() string {
	if t == ContentTypeSeries {
		return "tv"
	}
	return string(t)
}

// RawItem is a single upstream discovery result before enrichment.
// It carries just enough to drive the per-item metadata fetch.
type RawItem struct {
	TMDBID           int64   `json:"id"`
	OriginalLanguage string  `json:"original_language"`
	MediaType        string  `json:"media_type,omitempty"`
	Title            string  `json:"title,omitempty"`
	Name             string  `json:"name,omitempty"`
	PosterPath       string  `json:"poster_path,omitempty"`
	GenreIDs         []int64 `json:"genre_ids,omitempty"`
	ReleaseDate      string  `json:"release_date,omitempty"`
	FirstAirDate     string  `json:"first_air_date,omitempty"`
}

// Meta is the normalized, enriched metadata record for one title.
// It is the unit stored in the metadata cache and returned to clients.
type Meta struct {
	ID          string      `json:"id"`
	Type        ContentType `json:"type"`
	Name        string      `json:"name"`
	Poster      string      `json:"poster,omitempty"`
	Background  string      `json:"background,omitempty"`
	Logo        string      `json:"logo,omitempty"`
	Description string      `json:"description,omitempty"`
	// ReleaseInfo is "2016" for movies, "2016-" for a continuing series
	// and "2016-2023" for an ended one. Serial content with a value
	// longer than 5 characters is treated as concluded.
	ReleaseInfo string   `json:"releaseInfo,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Runtime     string   `json:"runtime,omitempty"`
	IMDBRating  string   `json:"imdbRating,omitempty"`
	IMDBID      string   `json:"imdb_id,omitempty"`
}

// Concluded reports whether a series record describes an ended run.
func (m *Meta) Concluded() bool {
	return len(m.ReleaseInfo) > 5
}

// CatalogResponse is the payload of the catalog endpoint.
type CatalogResponse struct {
	Metas []Meta `json:"metas"`
}

// MetaResponse is the payload of the meta endpoint.
type MetaResponse struct {
	Meta *Meta `json:"meta"`
}
