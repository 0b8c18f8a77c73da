package handlers

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"kinofeed/config"
	"kinofeed/models"
	catalogpkg "kinofeed/services/catalog"
	"kinofeed/services/metadata"
)

// catalogWindowSize is the number of records one client-visible catalog
// page carries; skip offsets are translated into page numbers with it.
const catalogWindowSize = 100

type catalogService interface {
	Resolve(context.Context, models.CatalogRequest) (*models.CatalogResponse, error)
}

var _ catalogService = (*catalogpkg.Service)(nil)

type CatalogHandler struct {
	Service catalogService
}

func NewCatalogHandler(s catalogService) *CatalogHandler {
	return &CatalogHandler{Service: s}
}

// Get serves /{config}/catalog/{type}/{id}/{extra}.json (extra
// optional). The extra segment is a query-encoded filter set carrying
// genre, skip and search.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cfg := config.ParseUserConfig(vars["config"])

	contentType := models.ContentType(vars["type"])
	if !contentType.Valid() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unsupported type: " + vars["type"]})
		return
	}

	extra := parseExtra(vars["extra"])
	page := 1
	if skip, err := strconv.Atoi(extra.Get("skip")); err == nil && skip > 0 {
		page = skip/catalogWindowSize + 1
	}

	req := models.CatalogRequest{
		Type:       contentType,
		SourceID:   vars["id"],
		Language:   metadata.NormalizeLanguage(cfg.Language),
		Page:       page,
		Genre:      extra.Get("genre"),
		Search:     extra.Get("search"),
		RPDBKey:    cfg.RPDBKey,
		MDBListKey: cfg.MDBListKey,
		SessionID:  cfg.SessionID,
	}

	resp, err := h.Service.Resolve(r.Context(), req)
	if err != nil {
		log.Printf("[catalog] resolve failed type=%s id=%s: %v", req.Type, req.SourceID, err)
		writeError(w, http.StatusNotFound, err)
		return
	}

	setCacheControl(w, 24*time.Hour, 7*24*time.Hour, 14*24*time.Hour)
	writeJSON(w, http.StatusOK, resp)
}

// parseExtra decodes the optional extra path segment, which is a
// query-string ("genre=Drama&skip=100"). Malformed input degrades to an
// empty set.
func parseExtra(segment string) url.Values {
	if segment == "" {
		return url.Values{}
	}
	if unescaped, err := url.PathUnescape(segment); err == nil {
		segment = unescaped
	}
	values, err := url.ParseQuery(segment)
	if err != nil {
		return url.Values{}
	}
	return values
}
