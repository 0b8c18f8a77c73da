package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"kinofeed/config"
	"kinofeed/internal/tmdb"
	"kinofeed/models"
	metadatapkg "kinofeed/services/metadata"
)

const (
	manifestID      = "org.kinofeed.catalogs"
	manifestVersion = "1.2.0"
	yearOptionSpan  = 25
)

type tableProvider interface {
	Genres(context.Context, string, models.ContentType) []tmdb.Genre
	Languages(context.Context) []tmdb.Language
}

var _ tableProvider = (*metadatapkg.Service)(nil)

type ManifestHandler struct {
	Tables tableProvider
}

func NewManifestHandler(tables tableProvider) *ManifestHandler {
	return &ManifestHandler{Tables: tables}
}

// Get serves /manifest.json and /{config}/manifest.json. Catalog filter
// options are localized to the configured language; when the config
// names specific catalogs, everything else is omitted.
func (h *ManifestHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg := config.ParseUserConfig(mux.Vars(r)["config"])
	language := metadatapkg.NormalizeLanguage(cfg.Language)

	catalogs := h.buildCatalogs(r.Context(), language, cfg)

	manifest := models.Manifest{
		ID:          manifestID,
		Version:     manifestVersion,
		Name:        "KinoFeed",
		Description: "Discovery, trending and curated catalogs with localized metadata",
		Resources:   []string{"catalog", "meta"},
		Types:       []string{"movie", "series"},
		IDPrefixes:  []string{"tmdb:", "tt"},
		Catalogs:    catalogs,
		BehaviorHints: map[string]bool{
			"configurable": true,
		},
	}

	setCacheControl(w, 12*time.Hour, 14*24*time.Hour, 30*24*time.Hour)
	writeJSON(w, http.StatusOK, manifest)
}

func (h *ManifestHandler) buildCatalogs(ctx context.Context, language string, cfg config.UserConfig) []models.ManifestCatalog {
	skipExtra := models.ManifestExtra{Name: "skip"}

	var all []models.ManifestCatalog
	for _, t := range []models.ContentType{models.ContentTypeMovie, models.ContentTypeSeries} {
		genreOptions := genreNames(h.Tables.Genres(ctx, language, t))

		all = append(all,
			models.ManifestCatalog{
				ID: "tmdb.top", Type: string(t), Name: "Popular",
				Extra: []models.ManifestExtra{
					{Name: "genre", Options: genreOptions},
					{Name: "search"},
					skipExtra,
				},
			},
			models.ManifestCatalog{
				ID: "tmdb.year", Type: string(t), Name: "By Year",
				Extra: []models.ManifestExtra{
					{Name: "genre", Options: yearOptions(), IsRequired: true},
					skipExtra,
				},
			},
			models.ManifestCatalog{
				ID: "tmdb.language", Type: string(t), Name: "By Language",
				Extra: []models.ManifestExtra{
					{Name: "genre", Options: languageNames(h.Tables.Languages(ctx)), IsRequired: true},
					skipExtra,
				},
			},
			models.ManifestCatalog{
				ID: "tmdb.trending", Type: string(t), Name: "Trending",
				Extra: []models.ManifestExtra{
					{Name: "genre", Options: []string{"Day", "Week"}},
					skipExtra,
				},
			},
		)

		if cfg.SessionID != "" {
			all = append(all,
				models.ManifestCatalog{ID: "tmdb.favorites", Type: string(t), Name: "Favorites",
					Extra: []models.ManifestExtra{skipExtra}},
				models.ManifestCatalog{ID: "tmdb.watchlist", Type: string(t), Name: "Watchlist",
					Extra: []models.ManifestExtra{skipExtra}},
			)
		}

		for _, code := range []string{"netflix", "watcha", "wavve", "disney", "apple", "prime"} {
			all = append(all, models.ManifestCatalog{
				ID: "streaming." + code, Type: string(t), Name: "Streaming: " + code,
				Extra: []models.ManifestExtra{
					{Name: "genre", Options: genreOptions},
					skipExtra,
				},
			})
		}
	}

	if len(cfg.Catalogs) == 0 {
		return all
	}
	wanted := make(map[string]bool, len(cfg.Catalogs))
	for _, id := range cfg.Catalogs {
		wanted[id] = true
	}
	kept := all[:0]
	for _, c := range all {
		if wanted[c.ID] {
			kept = append(kept, c)
		}
	}
	return kept
}

func genreNames(genres []tmdb.Genre) []string {
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		names = append(names, g.Name)
	}
	return names
}

func languageNames(languages []tmdb.Language) []string {
	names := make([]string, 0, len(languages))
	for _, l := range languages {
		if l.English != "" {
			names = append(names, l.English)
		}
	}
	return names
}

func yearOptions() []string {
	current := time.Now().Year()
	years := make([]string, 0, yearOptionSpan)
	for y := current; y > current-yearOptionSpan; y-- {
		years = append(years, strconv.Itoa(y))
	}
	return years
}
