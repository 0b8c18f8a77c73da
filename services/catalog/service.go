package catalog

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"kinofeed/internal/tmdb"
	"kinofeed/models"
	"kinofeed/services/mdblist"
	"kinofeed/services/metadata"
	"kinofeed/services/posters"
)

// ErrSessionRequired is returned when a personal list catalog is
// requested without a session id in the decoded configuration.
var ErrSessionRequired = errors.New("catalog: personal list requires a session id")

// excludedTrendingLanguages are original-language tags filtered out of
// trending rows.
var excludedTrendingLanguages = map[string]bool{
	"zh": true, "hi": true, "id": true, "vi": true,
	"th": true, "bn": true, "ml": true,
}

// Service is the top-level catalog resolver. It dispatches a request to
// the correct source and returns one normalized page of records.
type Service struct {
	tmdb    *tmdb.Client
	meta    *metadata.Service
	lists   *mdblist.Client
	posters *posters.Service
}

// NewService wires the orchestrator. Every collaborator is injected and
// shared for the process lifetime.
func NewService(tmdbClient *tmdb.Client, metaSvc *metadata.Service, listsClient *mdblist.Client, posterSvc *posters.Service) *Service {
	return &Service{
		tmdb:    tmdbClient,
		meta:    metaSvc,
		lists:   listsClient,
		posters: posterSvc,
	}
}

// Resolve dispatches one catalog request. Priority order: free-text
// search, external curated lists, built-in aggregates (trending,
// favorites, watchlist), then generic discovery.
func (s *Service) Resolve(ctx context.Context, req models.CatalogRequest) (*models.CatalogResponse, error) {
	if req.Search != "" {
		return s.search(ctx, req)
	}
	if listID, ok := strings.CutPrefix(req.SourceID, "mdblist."); ok {
		return s.externalList(ctx, req, listID)
	}
	switch trimSource(req.SourceID) {
	case "trending":
		return s.trending(ctx, req)
	case "favorites":
		return s.personal(ctx, req, s.tmdb.AccountFavorites)
	case "watchlist":
		return s.personal(ctx, req, s.tmdb.AccountWatchlist)
	default:
		return s.discover(ctx, req)
	}
}

// discover runs the generic pipeline: parameter building, concurrent
// page aggregation, per-item enrichment.
func (s *Service) discover(ctx context.Context, req models.CatalogRequest) (*models.CatalogResponse, error) {
	genres := s.meta.Genres(ctx, req.Language, req.Type)
	languages := s.meta.Languages(ctx)

	params, err := buildParams(req.Type, req.Language, req.SourceID, req.Genre, req.Page, genres, languages)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context, page int) ([]models.RawItem, error) {
		var res *tmdb.PagedResults
		var err error
		if req.Type == models.ContentTypeSeries {
			res, err = s.tmdb.DiscoverSeries(ctx, params, page)
		} else {
			res, err = s.tmdb.DiscoverMovies(ctx, params, page)
		}
		if err != nil {
			return nil, err
		}
		return res.Results, nil
	}

	raw := fetchWindow(ctx, fetch, catalogWindowSize, upstreamPageSize, req.Page)
	metas := s.meta.Enrich(ctx, raw, req.Type, req.Language, req.RPDBKey)
	return &models.CatalogResponse{Metas: metas}, nil
}

// trending serves the built-in trending aggregate. Rows are normalized
// from the raw upstream payload directly; the filter value selects the
// trend window ("Day"/"Week").
func (s *Service) trending(ctx context.Context, req models.CatalogRequest) (*models.CatalogResponse, error) {
	window := "day"
	if req.Genre != "" {
		window = strings.ToLower(req.Genre)
	}
	mediaType := req.Type.TMDBMediaType()

	fetch := func(ctx context.Context, page int) ([]models.RawItem, error) {
		res, err := s.tmdb.Trending(ctx, mediaType, window, req.Language, page)
		if err != nil {
			return nil, err
		}
		return res.Results, nil
	}

	raw := fetchWindow(ctx, fetch, trendingWindowSize, upstreamPageSize, req.Page)
	kept := raw[:0]
	for _, item := range raw {
		if !excludedTrendingLanguages[item.OriginalLanguage] {
			kept = append(kept, item)
		}
	}

	metas := s.meta.FromRawItems(ctx, kept, req.Type, req.Language)
	s.posters.SubstituteAll(ctx, metas, req.Language, req.RPDBKey)
	return &models.CatalogResponse{Metas: metas}, nil
}

// personal serves the favorites/watchlist aggregates. Session
// acquisition is the provider's concern; here only the session id is
// required, and results are windowed and enriched like any catalog.
func (s *Service) personal(ctx context.Context, req models.CatalogRequest, fetchList func(context.Context, string, string, string, int) (*tmdb.PagedResults, error)) (*models.CatalogResponse, error) {
	if req.SessionID == "" {
		return nil, ErrSessionRequired
	}
	mediaType := req.Type.TMDBMediaType()

	fetch := func(ctx context.Context, page int) ([]models.RawItem, error) {
		res, err := fetchList(ctx, mediaType, req.SessionID, req.Language, page)
		if err != nil {
			return nil, err
		}
		return res.Results, nil
	}

	raw := fetchWindow(ctx, fetch, catalogWindowSize, upstreamPageSize, req.Page)
	metas := s.meta.Enrich(ctx, raw, req.Type, req.Language, req.RPDBKey)
	return &models.CatalogResponse{Metas: metas}, nil
}

// externalList serves a curated list as its own catalog source. The
// list's native pagination unit is used as-is; items are resolved to
// full records preserving list order, and items that cannot be resolved
// are dropped.
func (s *Service) externalList(ctx context.Context, req models.CatalogRequest, listID string) (*models.CatalogResponse, error) {
	items, err := s.lists.FetchList(ctx, listID, req.MDBListKey, req.Page)
	if err != nil {
		return nil, err
	}

	resolved := make([]*models.Meta, len(items))
	p := pool.New().WithMaxGoroutines(defaultListWorkers)
	for i, item := range items {
		i, item := i, item
		if !listItemMatchesType(item, req.Type) {
			continue
		}
		p.Go(func() {
			tmdbID, err := s.resolveListItemID(ctx, req.Type, item)
			if err != nil || tmdbID == 0 {
				log.Printf("[catalog] list item %q unresolved: %v", item.Title, err)
				return
			}
			meta, err := s.meta.Meta(ctx, req.Type, req.Language, tmdbID)
			if err != nil {
				log.Printf("[catalog] list item %q enrich failed: %v", item.Title, err)
				return
			}
			resolved[i] = meta
		})
	}
	p.Wait()

	metas := make([]models.Meta, 0, len(items))
	for _, m := range resolved {
		if m != nil {
			metas = append(metas, *m)
		}
	}
	s.posters.SubstituteAll(ctx, metas, req.Language, req.RPDBKey)
	return &models.CatalogResponse{Metas: metas}, nil
}

const defaultListWorkers = 8

func listItemMatchesType(item mdblist.Item, contentType models.ContentType) bool {
	switch item.MediaType {
	case "movie":
		return contentType == models.ContentTypeMovie
	case "show":
		return contentType == models.ContentTypeSeries
	default:
		return true
	}
}

func (s *Service) resolveListItemID(ctx context.Context, contentType models.ContentType, item mdblist.Item) (int64, error) {
	if item.TMDBID != nil && *item.TMDBID > 0 {
		return *item.TMDBID, nil
	}
	if item.IMDBID != "" {
		return s.meta.TranslateIMDB(ctx, contentType, item.IMDBID)
	}
	return 0, nil
}
