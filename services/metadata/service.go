package metadata

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/text/language"

	"kinofeed/internal/cache"
	"kinofeed/internal/tmdb"
	"kinofeed/models"
	"kinofeed/services/posters"
)

// stableIDPolicyMultiplier stretches the freshness windows for ID
// mappings (IMDB to TMDB), which rarely change.
const stableIDPolicyMultiplier = 7

// defaultEnrichWorkers bounds per-request metadata fan-out.
const defaultEnrichWorkers = 8

// Options tunes the metadata service caches.
type Options struct {
	// MetaCacheEntries is the LRU ceiling for enriched records.
	MetaCacheEntries int
	// MetaPolicy is the freshness policy for enriched records. ID
	// mappings and static tables derive longer windows from it.
	MetaPolicy cache.Policy
	// EnrichWorkers is the per-request enrichment fan-out width.
	EnrichWorkers int
}

func (o *Options) withDefaults() {
	if o.MetaCacheEntries <= 0 {
		o.MetaCacheEntries = 20000
	}
	if o.MetaPolicy == (cache.Policy{}) {
		o.MetaPolicy = cache.Policy{
			MaxAge:               6 * time.Hour,
			StaleWhileRevalidate: 24 * time.Hour,
			StaleIfError:         7 * 24 * time.Hour,
		}
	}
	if o.EnrichWorkers <= 0 {
		o.EnrichWorkers = defaultEnrichWorkers
	}
}

// Service resolves raw upstream items into full metadata records with a
// per-key caching discipline, and owns the genre/language tables.
type Service struct {
	tmdb    *tmdb.Client
	fanart  *fanartClient
	posters *posters.Service

	metaCache  *cache.Cache[*models.Meta]
	idCache    *cache.Cache[int64]
	genreCache *cache.Cache[[]tmdb.Genre]
	langCache  *cache.Cache[[]tmdb.Language]

	enrichWorkers int
}

// NewService wires the metadata service. The TMDB client is injected;
// fanartAPIKey may be empty, disabling logo lookups from fanart.tv.
func NewService(tmdbClient *tmdb.Client, fanartAPIKey string, httpc *http.Client, posterSvc *posters.Service, opts Options) (*Service, error) {
	opts.withDefaults()

	idPolicy := cache.Policy{
		MaxAge:               opts.MetaPolicy.MaxAge * stableIDPolicyMultiplier,
		StaleWhileRevalidate: opts.MetaPolicy.StaleWhileRevalidate * stableIDPolicyMultiplier,
		StaleIfError:         opts.MetaPolicy.StaleIfError * stableIDPolicyMultiplier,
	}

	metaCache, err := cache.New[*models.Meta](opts.MetaCacheEntries, opts.MetaPolicy)
	if err != nil {
		return nil, err
	}
	idCache, err := cache.New[int64](opts.MetaCacheEntries, idPolicy)
	if err != nil {
		return nil, err
	}
	genreCache, err := cache.New[[]tmdb.Genre](64, idPolicy)
	if err != nil {
		return nil, err
	}
	langCache, err := cache.New[[]tmdb.Language](2, idPolicy)
	if err != nil {
		return nil, err
	}

	return &Service{
		tmdb:          tmdbClient,
		fanart:        newFanartClient(fanartAPIKey, httpc),
		posters:       posterSvc,
		metaCache:     metaCache,
		idCache:       idCache,
		genreCache:    genreCache,
		langCache:     langCache,
		enrichWorkers: opts.EnrichWorkers,
	}, nil
}

// NormalizeLanguage canonicalizes a client-supplied language tag,
// falling back to en-US for anything unparsable.
func NormalizeLanguage(tag string) string {
	tag = strings.TrimSpace(strings.ReplaceAll(tag, "_", "-"))
	if tag == "" {
		return "en-US"
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return "en-US"
	}
	return parsed.String()
}

// Genres returns the localized genre table for a content type. Table
// fetch failures are logged and yield an empty table so genre filters
// degrade to "absent" rather than failing the request.
func (s *Service) Genres(ctx context.Context, lang string, contentType models.ContentType) []tmdb.Genre {
	key := "genres:" + lang + ":" + string(contentType)
	genres, err := s.genreCache.GetOrCompute(ctx, key, func(ctx context.Context) ([]tmdb.Genre, error) {
		return s.tmdb.GenreList(ctx, contentType.TMDBMediaType(), lang)
	})
	if err != nil {
		log.Printf("[metadata] genre table fetch failed lang=%s type=%s: %v", lang, contentType, err)
		return nil
	}
	return genres
}

// Languages returns the upstream language table (cached process-wide).
func (s *Service) Languages(ctx context.Context) []tmdb.Language {
	languages, err := s.langCache.GetOrCompute(ctx, "languages", func(ctx context.Context) ([]tmdb.Language, error) {
		return s.tmdb.Languages(ctx)
	})
	if err != nil {
		log.Printf("[metadata] language table fetch failed: %v", err)
		return nil
	}
	return languages
}

// Meta resolves one title into a fully populated record through the
// freshness cache, keyed language:type:id.
func (s *Service) Meta(ctx context.Context, contentType models.ContentType, lang string, tmdbID int64) (*models.Meta, error) {
	key := fmt.Sprintf("%s:%s:%d", lang, contentType, tmdbID)
	return s.metaCache.GetOrCompute(ctx, key, func(ctx context.Context) (*models.Meta, error) {
		if contentType == models.ContentTypeSeries {
			return s.buildSeriesMeta(ctx, lang, tmdbID)
		}
		return s.buildMovieMeta(ctx, lang, tmdbID)
	})
}

// TranslateIMDB resolves an IMDB id to the upstream id for the given
// content type. Returns 0 with nil error when the id has no mapping.
func (s *Service) TranslateIMDB(ctx context.Context, contentType models.ContentType, imdbID string) (int64, error) {
	key := "imdb:" + string(contentType) + ":" + imdbID
	return s.idCache.GetOrCompute(ctx, key, func(ctx context.Context) (int64, error) {
		found, err := s.tmdb.FindByIMDB(ctx, imdbID)
		if err != nil {
			return 0, err
		}
		results := found.MovieResults
		if contentType == models.ContentTypeSeries {
			results = found.TVResults
		}
		if len(results) == 0 {
			return 0, nil
		}
		return results[0].TMDBID, nil
	})
}

// Enrich resolves a batch of raw items into full records concurrently.
// A failed item is logged and dropped; output order is not guaranteed
// to match input order. When rpdbKey is set, posters are substituted
// afterwards subject to the liveness probe.
func (s *Service) Enrich(ctx context.Context, items []models.RawItem, contentType models.ContentType, lang, rpdbKey string) []models.Meta {
	var (
		mu    sync.Mutex
		metas = make([]models.Meta, 0, len(items))
	)
	p := pool.New().WithMaxGoroutines(s.enrichWorkers)
	for _, item := range items {
		item := item
		if item.TMDBID <= 0 {
			continue
		}
		p.Go(func() {
			meta, err := s.Meta(ctx, contentType, lang, item.TMDBID)
			if err != nil {
				log.Printf("[metadata] enrich failed id=%d type=%s: %v", item.TMDBID, contentType, err)
				return
			}
			mu.Lock()
			metas = append(metas, *meta)
			mu.Unlock()
		})
	}
	p.Wait()

	s.posters.SubstituteAll(ctx, metas, lang, rpdbKey)
	return metas
}

// FromRawItems normalizes raw results directly into records without the
// per-item detail fetch, using the genre table for names. Used by the
// trending source where the upstream payload already carries enough.
func (s *Service) FromRawItems(ctx context.Context, items []models.RawItem, contentType models.ContentType, lang string) []models.Meta {
	genres := s.Genres(ctx, lang, contentType)
	byID := make(map[int64]string, len(genres))
	for _, g := range genres {
		byID[g.ID] = g.Name
	}

	metas := make([]models.Meta, 0, len(items))
	for _, item := range items {
		name := item.Title
		if name == "" {
			name = item.Name
		}
		if item.TMDBID <= 0 || name == "" {
			continue
		}
		meta := models.Meta{
			ID:          fmt.Sprintf("tmdb:%d", item.TMDBID),
			Type:        contentType,
			Name:        name,
			Poster:      tmdb.ImageURL(item.PosterPath, "w500"),
			ReleaseInfo: yearOf(firstNonEmpty(item.ReleaseDate, item.FirstAirDate)),
		}
		for _, id := range item.GenreIDs {
			if n, ok := byID[id]; ok {
				meta.Genres = append(meta.Genres, n)
			}
		}
		metas = append(metas, meta)
	}
	return metas
}

func (s *Service) buildMovieMeta(ctx context.Context, lang string, tmdbID int64) (*models.Meta, error) {
	d, err := s.tmdb.MovieDetails(ctx, tmdbID, lang)
	if err != nil {
		return nil, err
	}
	imdbID := d.IMDBID
	if imdbID == "" {
		imdbID = d.ExternalIDs.IMDBID
	}
	meta := &models.Meta{
		ID:          fmt.Sprintf("tmdb:%d", d.ID),
		Type:        models.ContentTypeMovie,
		Name:        d.Title,
		Poster:      tmdb.ImageURL(d.PosterPath, "w500"),
		Background:  tmdb.ImageURL(d.Backdrop, "original"),
		Description: d.Overview,
		ReleaseInfo: yearOf(d.ReleaseDate),
		Genres:      genreNames(d.Genres),
		Runtime:     formatRuntime(d.Runtime),
		IMDBRating:  formatRating(d.VoteAverage),
		IMDBID:      imdbID,
	}
	meta.Logo = s.movieLogo(ctx, d.ID, lang)
	return meta, nil
}

func (s *Service) buildSeriesMeta(ctx context.Context, lang string, tmdbID int64) (*models.Meta, error) {
	d, err := s.tmdb.SeriesDetails(ctx, tmdbID, lang)
	if err != nil {
		return nil, err
	}
	runtime := 0
	if len(d.EpisodeRunTime) > 0 {
		runtime = d.EpisodeRunTime[0]
	}
	meta := &models.Meta{
		ID:          fmt.Sprintf("tmdb:%d", d.ID),
		Type:        models.ContentTypeSeries,
		Name:        d.Name,
		Poster:      tmdb.ImageURL(d.PosterPath, "w500"),
		Background:  tmdb.ImageURL(d.Backdrop, "original"),
		Description: d.Overview,
		ReleaseInfo: seriesReleaseInfo(d.FirstAirDate, d.LastAirDate, d.Status),
		Genres:      genreNames(d.Genres),
		Runtime:     formatRuntime(runtime),
		IMDBRating:  formatRating(d.VoteAverage),
		IMDBID:      d.ExternalIDs.IMDBID,
	}
	meta.Logo = s.seriesLogo(ctx, d.ExternalIDs.TVDBID, d.ID, lang)
	return meta, nil
}

// seriesReleaseInfo renders "2016-" while a series continues and
// "2016-2023" once it has ended, which downstream caching treats as
// concluded.
func seriesReleaseInfo(firstAirDate, lastAirDate, status string) string {
	start := yearOf(firstAirDate)
	if start == "" {
		return ""
	}
	switch status {
	case "Ended", "Canceled":
		if end := yearOf(lastAirDate); end != "" {
			return start + "-" + end
		}
	}
	return start + "-"
}

func yearOf(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

func genreNames(genres []tmdb.Genre) []string {
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		names = append(names, g.Name)
	}
	return names
}

func formatRuntime(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	return fmt.Sprintf("%d min", minutes)
}

func formatRating(vote float64) string {
	if vote <= 0 {
		return ""
	}
	return fmt.Sprintf("%.1f", vote)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
