package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p/"
)

// ImageURL builds a full TMDB image URL for a relative artwork path.
// Returns "" for an empty path.
func ImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	return imageBaseURL + size + path
}

// Options tunes a Client beyond its API key.
type Options struct {
	// BaseURL overrides the production API host, used by tests.
	BaseURL string
	// RequestsPerSecond paces outgoing calls. <= 0 disables pacing.
	RequestsPerSecond float64
	// MaxInFlight caps total outstanding HTTP calls across every
	// request being served. <= 0 disables the gate.
	MaxInFlight int
}

// Client is a minimal TMDB v3 client covering the discovery, trending,
// search, detail, account and auth endpoints the addon needs. It is
// constructed once at startup and shared; the zero value is not usable.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	limiter *rate.Limiter
	gate    chan struct{}
	log     *slog.Logger
}

// New builds a Client around the injected http.Client.
func New(apiKey string, httpc *http.Client, opts Options) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), int(opts.RequestsPerSecond)+1)
	}
	var gate chan struct{}
	if opts.MaxInFlight > 0 {
		gate = make(chan struct{}, opts.MaxInFlight)
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   httpc,
		limiter: limiter,
		gate:    gate,
		log:     slog.Default(),
	}
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// statusError marks a response worth retrying and carries any
// Retry-After hint the server sent.
type statusError struct {
	status     int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tmdb: unexpected status %d: %s", e.status, e.body)
}

func retryable(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	// Only transport-level failures are retried; a decode failure on a
	// 2xx body will not get better on a second attempt.
	var ue *url.Error
	return errors.As(err, &ue)
}

func (c *Client) doGET(ctx context.Context, path string, q url.Values, v any) error {
	if c.gate != nil {
		select {
		case c.gate <- struct{}{}:
			defer func() { <-c.gate }()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", c.apiKey)
	u := c.baseURL + path + "?" + q.Encode()

	return retry.Do(
		func() error {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return err
			}
			resp, err := c.httpc.Do(req)
			if err != nil {
				return fmt.Errorf("tmdb: GET %s: %w", path, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
				se := &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
				if ra := resp.Header.Get("Retry-After"); ra != "" {
					if secs, err := strconv.Atoi(ra); err == nil {
						se.retryAfter = time.Duration(secs) * time.Second
					}
				}
				return se
			}
			return json.NewDecoder(resp.Body).Decode(v)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(func(n uint, err error, cfg *retry.Config) time.Duration {
			if se, ok := err.(*statusError); ok && se.retryAfter > 0 {
				return se.retryAfter
			}
			return retry.BackOffDelay(n, err, cfg)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("tmdb retry", "path", path, "attempt", n+1, "err", err)
		}),
	)
}

// DiscoverMovies queries /discover/movie with a prepared parameter set,
// overriding its page. The caller's params are never mutated, so one
// builder result can drive concurrent page fetches.
func (c *Client) DiscoverMovies(ctx context.Context, params url.Values, page int) (*PagedResults, error) {
	q := clone(params)
	q.Set("page", strconv.Itoa(page))
	var out PagedResults
	if err := c.doGET(ctx, "/discover/movie", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DiscoverSeries queries /discover/tv with a prepared parameter set,
// overriding its page.
func (c *Client) DiscoverSeries(ctx context.Context, params url.Values, page int) (*PagedResults, error) {
	q := clone(params)
	q.Set("page", strconv.Itoa(page))
	var out PagedResults
	if err := c.doGET(ctx, "/discover/tv", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trending queries /trending/{mediaType}/{window}. window is "day" or
// "week".
func (c *Client) Trending(ctx context.Context, mediaType, window, language string, page int) (*PagedResults, error) {
	q := url.Values{}
	q.Set("language", language)
	q.Set("page", strconv.Itoa(page))
	var out PagedResults
	if err := c.doGET(ctx, "/trending/"+mediaType+"/"+window, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchMovies queries /search/movie.
func (c *Client) SearchMovies(ctx context.Context, query, language string, page int) (*PagedResults, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("language", language)
	q.Set("page", strconv.Itoa(page))
	var out PagedResults
	if err := c.doGET(ctx, "/search/movie", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchSeries queries /search/tv.
func (c *Client) SearchSeries(ctx context.Context, query, language string, page int) (*PagedResults, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("language", language)
	q.Set("page", strconv.Itoa(page))
	var out PagedResults
	if err := c.doGET(ctx, "/search/tv", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MovieDetails fetches a movie with external ids appended.
func (c *Client) MovieDetails(ctx context.Context, id int64, language string) (*MovieDetails, error) {
	q := url.Values{}
	q.Set("language", language)
	q.Set("append_to_response", "external_ids")
	var out MovieDetails
	if err := c.doGET(ctx, fmt.Sprintf("/movie/%d", id), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SeriesDetails fetches a series with external ids appended.
func (c *Client) SeriesDetails(ctx context.Context, id int64, language string) (*SeriesDetails, error) {
	q := url.Values{}
	q.Set("language", language)
	q.Set("append_to_response", "external_ids")
	var out SeriesDetails
	if err := c.doGET(ctx, fmt.Sprintf("/tv/%d", id), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByIMDB resolves an IMDB id ("tt...") to TMDB results.
func (c *Client) FindByIMDB(ctx context.Context, imdbID string) (*FindResults, error) {
	q := url.Values{}
	q.Set("external_source", "imdb_id")
	var out FindResults
	if err := c.doGET(ctx, "/find/"+url.PathEscape(imdbID), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenreList fetches the localized genre table for one media type.
func (c *Client) GenreList(ctx context.Context, mediaType, language string) ([]Genre, error) {
	q := url.Values{}
	q.Set("language", language)
	var out struct {
		Genres []Genre `json:"genres"`
	}
	if err := c.doGET(ctx, "/genre/"+mediaType+"/list", q, &out); err != nil {
		return nil, err
	}
	return out.Genres, nil
}

// Languages fetches the upstream language table.
func (c *Client) Languages(ctx context.Context) ([]Language, error) {
	var out []Language
	if err := c.doGET(ctx, "/configuration/languages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MovieImages fetches artwork (logos included) for a movie.
func (c *Client) MovieImages(ctx context.Context, id int64) (*Images, error) {
	var out Images
	if err := c.doGET(ctx, fmt.Sprintf("/movie/%d/images", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SeriesImages fetches artwork (logos included) for a series.
func (c *Client) SeriesImages(ctx context.Context, id int64) (*Images, error) {
	var out Images
	if err := c.doGET(ctx, fmt.Sprintf("/tv/%d/images", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AccountFavorites fetches one page of the session owner's favorites.
// TMDB resolves the account from the session, so the path id is a
// placeholder.
func (c *Client) AccountFavorites(ctx context.Context, mediaType, sessionID, language string, page int) (*PagedResults, error) {
	return c.accountList(ctx, "favorite", mediaType, sessionID, language, page)
}

// AccountWatchlist fetches one page of the session owner's watchlist.
func (c *Client) AccountWatchlist(ctx context.Context, mediaType, sessionID, language string, page int) (*PagedResults, error) {
	return c.accountList(ctx, "watchlist", mediaType, sessionID, language, page)
}

func (c *Client) accountList(ctx context.Context, list, mediaType, sessionID, language string, page int) (*PagedResults, error) {
	kind := "movies"
	if mediaType == "tv" {
		kind = "tv"
	}
	q := url.Values{}
	q.Set("session_id", sessionID)
	q.Set("language", language)
	q.Set("page", strconv.Itoa(page))
	q.Set("sort_by", "created_at.desc")
	var out PagedResults
	if err := c.doGET(ctx, "/account/0/"+list+"/"+kind, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRequestToken starts the upstream auth handshake.
func (c *Client) CreateRequestToken(ctx context.Context) (string, error) {
	var out struct {
		Success      bool   `json:"success"`
		RequestToken string `json:"request_token"`
	}
	if err := c.doGET(ctx, "/authentication/token/new", nil, &out); err != nil {
		return "", err
	}
	if !out.Success || out.RequestToken == "" {
		return "", fmt.Errorf("tmdb: request token creation rejected")
	}
	return out.RequestToken, nil
}

// CreateSession exchanges an approved request token for a session id.
func (c *Client) CreateSession(ctx context.Context, requestToken string) (string, error) {
	q := url.Values{}
	q.Set("request_token", requestToken)
	var out struct {
		Success   bool   `json:"success"`
		SessionID string `json:"session_id"`
	}
	if err := c.doGET(ctx, "/authentication/session/new", q, &out); err != nil {
		return "", err
	}
	if !out.Success || out.SessionID == "" {
		return "", fmt.Errorf("tmdb: session creation rejected")
	}
	return out.SessionID, nil
}

// clone copies params so callers can reuse a builder result across
// concurrent page fetches.
func clone(params url.Values) url.Values {
	out := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}
