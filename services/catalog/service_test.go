package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"kinofeed/internal/tmdb"
	"kinofeed/models"
	"kinofeed/services/mdblist"
	"kinofeed/services/metadata"
	"kinofeed/services/posters"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, v any) *http.Response {
	body, _ := json.Marshal(v)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

// upstreamRecorder is a fake TMDB/MDBList backend. It records every
// request path and serves canned discovery pages and detail records.
type upstreamRecorder struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (u *upstreamRecorder) record(r *http.Request) {
	u.mu.Lock()
	u.requests = append(u.requests, r)
	u.mu.Unlock()
}

func (u *upstreamRecorder) pathsMatching(prefix string) []*http.Request {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []*http.Request
	for _, r := range u.requests {
		if strings.HasPrefix(r.URL.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

func discoveryPage(page, perPage int) tmdb.PagedResults {
	items := make([]models.RawItem, perPage)
	for i := range items {
		items[i] = models.RawItem{
			TMDBID:           int64(page*1000 + i),
			Title:            fmt.Sprintf("Movie %d-%d", page, i),
			OriginalLanguage: "en",
			ReleaseDate:      "2020-01-01",
		}
	}
	return tmdb.PagedResults{Page: page, TotalPages: 500, TotalResults: 10000, Results: items}
}

func (u *upstreamRecorder) roundTrip(r *http.Request) (*http.Response, error) {
	u.record(r)
	path := r.URL.Path
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page == 0 {
		page = 1
	}

	switch {
	case strings.HasPrefix(path, "/3/genre/"):
		return jsonResponse(200, map[string]any{"genres": []tmdb.Genre{{ID: 18, Name: "Drama"}}}), nil
	case path == "/3/configuration/languages":
		return jsonResponse(200, []tmdb.Language{{ISO639: "ko", English: "Korean", Name: "한국어/조선말"}}), nil
	case strings.HasPrefix(path, "/3/discover/"),
		strings.HasPrefix(path, "/3/search/"),
		strings.HasPrefix(path, "/3/trending/"),
		strings.HasPrefix(path, "/3/account/"):
		return jsonResponse(200, discoveryPage(page, 20)), nil
	case strings.HasSuffix(path, "/images"):
		return jsonResponse(200, tmdb.Images{}), nil
	case strings.HasPrefix(path, "/3/movie/"):
		id, _ := strconv.ParseInt(strings.TrimPrefix(path, "/3/movie/"), 10, 64)
		return jsonResponse(200, tmdb.MovieDetails{
			ID:          id,
			Title:       fmt.Sprintf("Movie %d", id),
			ReleaseDate: "2020-01-01",
			Runtime:     120,
			VoteAverage: 7.5,
		}), nil
	case strings.HasPrefix(path, "/lists/"):
		return jsonResponse(200, []mdblist.Item{}), nil
	}
	return jsonResponse(404, map[string]string{"status_message": "not found"}), nil
}

func newTestService(t *testing.T, rt http.RoundTripper) *Service {
	t.Helper()
	httpc := &http.Client{Transport: rt}
	tc := tmdb.New("test-key", httpc, tmdb.Options{BaseURL: "https://tmdb.test/3"})
	ps := posters.NewService(httpc)
	ms, err := metadata.NewService(tc, "", httpc, ps, metadata.Options{})
	if err != nil {
		t.Fatalf("metadata.NewService: %v", err)
	}
	lists := mdblist.NewClient(httpc)
	lists.SetBaseURL("https://mdblist.test")
	return NewService(tc, ms, lists, ps)
}

func TestResolveTopCatalogAggregatesFiveUpstreamPages(t *testing.T) {
	u := &upstreamRecorder{}
	svc := newTestService(t, roundTripFunc(u.roundTrip))

	resp, err := svc.Resolve(context.Background(), models.CatalogRequest{
		Type:     models.ContentTypeMovie,
		SourceID: "top",
		Language: "ko-KR",
		Page:     1,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resp.Metas) != 100 {
		t.Fatalf("got %d metas, want 100", len(resp.Metas))
	}

	discovers := u.pathsMatching("/3/discover/movie")
	if len(discovers) != 5 {
		t.Fatalf("issued %d discover fetches, want 5", len(discovers))
	}
	seen := map[string]bool{}
	for _, r := range discovers {
		seen[r.URL.Query().Get("page")] = true
		if got := r.URL.Query().Get("language"); got != "ko-KR" {
			t.Errorf("discover language = %q, want ko-KR", got)
		}
	}
	for _, p := range []string{"1", "2", "3", "4", "5"} {
		if !seen[p] {
			t.Errorf("upstream page %s was never requested (saw %v)", p, seen)
		}
	}
}

func TestResolveSearchRoutesToSearchEndpoint(t *testing.T) {
	u := &upstreamRecorder{}
	svc := newTestService(t, roundTripFunc(u.roundTrip))

	_, err := svc.Resolve(context.Background(), models.CatalogRequest{
		Type:     models.ContentTypeMovie,
		SourceID: "top",
		Language: "en-US",
		Page:     1,
		Search:   "parasite",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	searches := u.pathsMatching("/3/search/movie")
	if len(searches) == 0 {
		t.Fatal("search request never reached the search endpoint")
	}
	if got := searches[0].URL.Query().Get("query"); got != "parasite" {
		t.Errorf("search query = %q, want parasite", got)
	}
	if len(u.pathsMatching("/3/discover/")) != 0 {
		t.Error("search request also hit discovery")
	}
}

func TestResolvePersonalListNeedsSession(t *testing.T) {
	u := &upstreamRecorder{}
	svc := newTestService(t, roundTripFunc(u.roundTrip))

	for _, source := range []string{"favorites", "tmdb.watchlist"} {
		_, err := svc.Resolve(context.Background(), models.CatalogRequest{
			Type:     models.ContentTypeMovie,
			SourceID: source,
			Language: "en-US",
			Page:     1,
		})
		if !errors.Is(err, ErrSessionRequired) {
			t.Errorf("Resolve(%s) err = %v, want ErrSessionRequired", source, err)
		}
	}
}

func TestResolvePersonalListWithSession(t *testing.T) {
	u := &upstreamRecorder{}
	svc := newTestService(t, roundTripFunc(u.roundTrip))

	resp, err := svc.Resolve(context.Background(), models.CatalogRequest{
		Type:      models.ContentTypeMovie,
		SourceID:  "favorites",
		Language:  "en-US",
		Page:      1,
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resp.Metas) == 0 {
		t.Fatal("got no metas from account list")
	}

	account := u.pathsMatching("/3/account/")
	if len(account) != 5 {
		t.Fatalf("issued %d account fetches, want 5", len(account))
	}
	if got := account[0].URL.Query().Get("session_id"); got != "sess-1" {
		t.Errorf("session_id = %q, want sess-1", got)
	}
}

func TestResolveTrendingFiltersExcludedLanguages(t *testing.T) {
	u := &upstreamRecorder{}
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if strings.HasPrefix(r.URL.Path, "/3/trending/") {
			u.record(r)
			return jsonResponse(200, tmdb.PagedResults{Results: []models.RawItem{
				{TMDBID: 1, Title: "Kept", OriginalLanguage: "en", ReleaseDate: "2021-05-05"},
				{TMDBID: 2, Title: "Dropped", OriginalLanguage: "hi", ReleaseDate: "2021-05-05"},
				{TMDBID: 3, Title: "Also Kept", OriginalLanguage: "ko", ReleaseDate: "2021-05-05"},
			}}), nil
		}
		return u.roundTrip(r)
	})
	svc := newTestService(t, rt)

	resp, err := svc.Resolve(context.Background(), models.CatalogRequest{
		Type:     models.ContentTypeMovie,
		SourceID: "tmdb.trending",
		Language: "en-US",
		Page:     1,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, m := range resp.Metas {
		if m.Name == "Dropped" {
			t.Fatal("excluded-language item survived the trending filter")
		}
	}
	if len(resp.Metas) == 0 {
		t.Fatal("trending returned no metas")
	}
	if got := u.pathsMatching("/3/trending/movie/day"); len(got) == 0 {
		t.Fatal("trending window did not default to day")
	}
}

func TestResolveExternalListPreservesOrder(t *testing.T) {
	id1, id2, id3 := int64(301), int64(101), int64(201)
	u := &upstreamRecorder{}
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if strings.HasPrefix(r.URL.Path, "/lists/") {
			u.record(r)
			return jsonResponse(200, []mdblist.Item{
				{ID: 1, Rank: 1, Title: "Third", TMDBID: &id1, MediaType: "movie"},
				{ID: 2, Rank: 2, Title: "First", TMDBID: &id2, MediaType: "movie"},
				{ID: 3, Rank: 3, Title: "A Show", TMDBID: &id3, MediaType: "show"},
			}), nil
		}
		return u.roundTrip(r)
	})
	svc := newTestService(t, rt)

	resp, err := svc.Resolve(context.Background(), models.CatalogRequest{
		Type:       models.ContentTypeMovie,
		SourceID:   "mdblist.7777",
		Language:   "en-US",
		Page:       1,
		MDBListKey: "mdb-key",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resp.Metas) != 2 {
		t.Fatalf("got %d metas, want 2 (the show entry is skipped)", len(resp.Metas))
	}
	if resp.Metas[0].ID != "tmdb:301" || resp.Metas[1].ID != "tmdb:101" {
		t.Errorf("list order not preserved: %s, %s", resp.Metas[0].ID, resp.Metas[1].ID)
	}

	lists := u.pathsMatching("/lists/7777/items")
	if len(lists) != 1 {
		t.Fatalf("list endpoint hit %d times, want 1", len(lists))
	}
	if got := lists[0].URL.Query().Get("apikey"); got != "mdb-key" {
		t.Errorf("apikey = %q, want mdb-key", got)
	}
}

func TestResolveUnknownProviderPropagatesLookupError(t *testing.T) {
	u := &upstreamRecorder{}
	svc := newTestService(t, roundTripFunc(u.roundTrip))

	_, err := svc.Resolve(context.Background(), models.CatalogRequest{
		Type:     models.ContentTypeMovie,
		SourceID: "streaming.blockbuster",
		Language: "en-US",
		Page:     1,
	})
	var le *LookupError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want LookupError", err)
	}
}
