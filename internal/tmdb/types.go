package tmdb

import "kinofeed/models"

// PagedResults is the common shape of discovery, trending, search and
// account list responses.
type PagedResults struct {
	Page         int              `json:"page"`
	TotalPages   int              `json:"total_pages"`
	TotalResults int              `json:"total_results"`
	Results      []models.RawItem `json:"results"`
}

// Genre is one entry of the localized genre table.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Language is one entry of the upstream language table.
type Language struct {
	ISO639  string `json:"iso_639_1"`
	English string `json:"english_name"`
	Name    string `json:"name"`
}

// ExternalIDs holds cross-provider identifiers appended to details.
type ExternalIDs struct {
	IMDBID string `json:"imdb_id"`
	TVDBID int64  `json:"tvdb_id"`
}

// MovieDetails is the relevant subset of /movie/{id}.
type MovieDetails struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Overview    string      `json:"overview"`
	PosterPath  string      `json:"poster_path"`
	Backdrop    string      `json:"backdrop_path"`
	ReleaseDate string      `json:"release_date"`
	Runtime     int         `json:"runtime"`
	VoteAverage float64     `json:"vote_average"`
	Genres      []Genre     `json:"genres"`
	IMDBID      string      `json:"imdb_id"`
	ExternalIDs ExternalIDs `json:"external_ids"`
	Status      string      `json:"status"`
}

// SeriesDetails is the relevant subset of /tv/{id}.
type SeriesDetails struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Overview       string      `json:"overview"`
	PosterPath     string      `json:"poster_path"`
	Backdrop       string      `json:"backdrop_path"`
	FirstAirDate   string      `json:"first_air_date"`
	LastAirDate    string      `json:"last_air_date"`
	EpisodeRunTime []int       `json:"episode_run_time"`
	VoteAverage    float64     `json:"vote_average"`
	Genres         []Genre     `json:"genres"`
	ExternalIDs    ExternalIDs `json:"external_ids"`
	// Status is e.g. "Returning Series", "Ended" or "Canceled".
	Status string `json:"status"`
}

// Image is one artwork entry from the images endpoints.
type Image struct {
	FilePath string `json:"file_path"`
	ISO639   string `json:"iso_639_1"`
}

// Images groups artwork by kind.
type Images struct {
	Logos     []Image `json:"logos"`
	Posters   []Image `json:"posters"`
	Backdrops []Image `json:"backdrops"`
}

// FindResults is the response of /find/{external_id}.
type FindResults struct {
	MovieResults []models.RawItem `json:"movie_results"`
	TVResults    []models.RawItem `json:"tv_results"`
}
