package models

// CatalogRequest describes one inbound catalog resolution. Constructed
// per call; immutable once built.
type CatalogRequest struct {
	Type     ContentType
	SourceID string
	Language string
	// Page is the client-visible 1-based window number.
	Page int
	// Genre carries the optional filter value from the request extra:
	// a genre name, a year, or a language name depending on the source.
	Genre string
	// Search, when non-empty, routes the request to the search resolver.
	Search string
	// RPDBKey enables poster substitution when configured.
	RPDBKey string
	// MDBListKey authorizes external curated list fetches.
	MDBListKey string
	// SessionID authorizes personal list fetches (favorites/watchlist).
	SessionID string
}
