package mdblist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.mdblist.com"

// PageSize is the external list service's native pagination unit.
// External lists are served in this unit and never re-windowed.
const PageSize = 100

// Item is one entry of an external curated list.
type Item struct {
	ID          int    `json:"id"`
	Rank        int    `json:"rank"`
	Title       string `json:"title"`
	TMDBID      *int64 `json:"tmdb_id"`
	TVDBID      *int64 `json:"tvdbid"`
	IMDBID      string `json:"imdb_id"`
	MediaType   string `json:"mediatype"` // "movie" or "show"
	ReleaseYear int    `json:"release_year"`
}

// Client fetches external curated lists. The HTTP client is injected
// and shared.
type Client struct {
	httpc   *http.Client
	baseURL string
}

func NewClient(httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{httpc: httpc, baseURL: defaultBaseURL}
}

// SetBaseURL overrides the list service host, used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// FetchList returns one native page of a curated list. page is 1-based.
func (c *Client) FetchList(ctx context.Context, listID, apiKey string, page int) ([]Item, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("apikey", apiKey)
	q.Set("limit", strconv.Itoa(PageSize))
	q.Set("offset", strconv.Itoa((page-1)*PageSize))

	u := fmt.Sprintf("%s/lists/%s/items?%s", c.baseURL, url.PathEscape(listID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mdblist: fetch list %s: %w", listID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mdblist: fetch list %s failed: %s", listID, resp.Status)
	}

	var items []Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("mdblist: decode list %s: %w", listID, err)
	}
	return items, nil
}
