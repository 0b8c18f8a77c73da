package catalog

import (
	"context"

	"kinofeed/models"
)

// search resolves a free-text catalog query. Results go through the
// same windowing and enrichment as discovery catalogs.
func (s *Service) search(ctx context.Context, req models.CatalogRequest) (*models.CatalogResponse, error) {
	fetch := func(ctx context.Context, page int) ([]models.RawItem, error) {
		if req.Type == models.ContentTypeSeries {
			res, err := s.tmdb.SearchSeries(ctx, req.Search, req.Language, page)
			if err != nil {
				return nil, err
			}
			return res.Results, nil
		}
		res, err := s.tmdb.SearchMovies(ctx, req.Search, req.Language, page)
		if err != nil {
			return nil, err
		}
		return res.Results, nil
	}

	raw := fetchWindow(ctx, fetch, catalogWindowSize, upstreamPageSize, req.Page)
	metas := s.meta.Enrich(ctx, raw, req.Type, req.Language, req.RPDBKey)
	return &models.CatalogResponse{Metas: metas}, nil
}
