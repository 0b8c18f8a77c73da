package metadata

import (
	"context"
	"strings"

	"kinofeed/internal/tmdb"
)

// logoCandidate is one logo image with its language tag. Candidates
// come from fanart.tv and from the upstream image endpoints.
type logoCandidate struct {
	url  string
	lang string
}

func isSVGURL(u string) bool {
	return strings.HasSuffix(strings.ToLower(u), ".svg")
}

// pickLogo chooses a logo for the requested language: exact tag match
// first ("ko-KR"), then base language ("ko"), otherwise "". SVG files
// are excluded at every step.
func pickLogo(candidates []logoCandidate, language string) string {
	base, _, _ := strings.Cut(language, "-")

	var exact, partial string
	for _, c := range candidates {
		if c.url == "" || isSVGURL(c.url) {
			continue
		}
		if exact == "" && c.lang == language {
			exact = c.url
		}
		if partial == "" && c.lang == base {
			partial = c.url
		}
	}
	if exact != "" {
		return exact
	}
	return partial
}

// movieLogo resolves the best logo for a movie. Both sources are
// fetched and either failing contributes nothing.
func (s *Service) movieLogo(ctx context.Context, tmdbID int64, language string) string {
	var candidates []logoCandidate
	if s.fanart.isConfigured() {
		if logos, err := s.fanart.movieLogos(ctx, tmdbID); err == nil {
			for _, l := range logos {
				candidates = append(candidates, logoCandidate{url: l.URL, lang: l.Lang})
			}
		}
	}
	if images, err := s.tmdb.MovieImages(ctx, tmdbID); err == nil {
		for _, l := range images.Logos {
			candidates = append(candidates, logoCandidate{url: tmdb.ImageURL(l.FilePath, "original"), lang: l.ISO639})
		}
	}
	return pickLogo(candidates, language)
}

// seriesLogo resolves the best logo for a series, preferring fanart.tv
// (keyed by TVDB id) and falling back to upstream artwork.
func (s *Service) seriesLogo(ctx context.Context, tvdbID, tmdbID int64, language string) string {
	var candidates []logoCandidate
	if s.fanart.isConfigured() && tvdbID > 0 {
		if logos, err := s.fanart.showLogos(ctx, tvdbID); err == nil {
			for _, l := range logos {
				candidates = append(candidates, logoCandidate{url: l.URL, lang: l.Lang})
			}
		}
	}
	if images, err := s.tmdb.SeriesImages(ctx, tmdbID); err == nil {
		for _, l := range images.Logos {
			candidates = append(candidates, logoCandidate{url: tmdb.ImageURL(l.FilePath, "original"), lang: l.ISO639})
		}
	}
	return pickLogo(candidates, language)
}
