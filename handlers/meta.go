package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"kinofeed/config"
	"kinofeed/models"
	metadatapkg "kinofeed/services/metadata"
)

type metadataService interface {
	Meta(context.Context, models.ContentType, string, int64) (*models.Meta, error)
	TranslateIMDB(context.Context, models.ContentType, string) (int64, error)
}

var _ metadataService = (*metadatapkg.Service)(nil)

type MetaHandler struct {
	Service metadataService
}

func NewMetaHandler(s metadataService) *MetaHandler {
	return &MetaHandler{Service: s}
}

// Get serves /{config}/meta/{type}/{id}.json. IDs are accepted in
// native form ("tmdb:603") and IMDB form ("tt0133093"); the latter is
// translated first. An IMDB id with no mapping yields an empty record
// rather than an error.
func (h *MetaHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cfg := config.ParseUserConfig(vars["config"])

	contentType := models.ContentType(vars["type"])
	if !contentType.Valid() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unsupported type: " + vars["type"]})
		return
	}
	language := metadatapkg.NormalizeLanguage(cfg.Language)

	tmdbID, err := h.resolveID(r.Context(), contentType, vars["id"])
	if err != nil {
		log.Printf("[meta] id resolution failed id=%s: %v", vars["id"], err)
		writeError(w, http.StatusNotFound, err)
		return
	}
	if tmdbID == 0 {
		setCacheControl(w, time.Hour, 0, 0)
		writeJSON(w, http.StatusOK, models.MetaResponse{Meta: &models.Meta{}})
		return
	}

	meta, err := h.Service.Meta(r.Context(), contentType, language, tmdbID)
	if err != nil {
		log.Printf("[meta] lookup failed type=%s id=%d: %v", contentType, tmdbID, err)
		writeError(w, http.StatusNotFound, err)
		return
	}

	// Concluded series and movies change rarely; running series get a
	// short window so new seasons show up promptly.
	maxAge := 14 * 24 * time.Hour
	if contentType == models.ContentTypeSeries && !meta.Concluded() {
		maxAge = 24 * time.Hour
	}
	setCacheControl(w, maxAge, 20*24*time.Hour, 30*24*time.Hour)
	writeJSON(w, http.StatusOK, models.MetaResponse{Meta: meta})
}

// resolveID maps an addon id to the upstream numeric id. Returns 0 with
// nil error for an IMDB id that has no mapping.
func (h *MetaHandler) resolveID(ctx context.Context, contentType models.ContentType, id string) (int64, error) {
	if raw, ok := strings.CutPrefix(id, "tmdb:"); ok {
		return strconv.ParseInt(raw, 10, 64)
	}
	if strings.HasPrefix(id, "tt") {
		return h.Service.TranslateIMDB(ctx, contentType, id)
	}
	return strconv.ParseInt(id, 10, 64)
}
