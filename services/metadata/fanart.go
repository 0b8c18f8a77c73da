package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const fanartBaseURL = "https://webservice.fanart.tv/v3"

// Minimal fanart.tv client (movie and show logo endpoints only).

type fanartClient struct {
	apiKey string
	httpc  *http.Client
}

func newFanartClient(apiKey string, httpc *http.Client) *fanartClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &fanartClient{apiKey: apiKey, httpc: httpc}
}

func (c *fanartClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

type fanartLogo struct {
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

func (c *fanartClient) movieLogos(ctx context.Context, tmdbID int64) ([]fanartLogo, error) {
	var out struct {
		HDMovieLogo []fanartLogo `json:"hdmovielogo"`
	}
	if err := c.doGET(ctx, fmt.Sprintf("%s/movies/%d", fanartBaseURL, tmdbID), &out); err != nil {
		return nil, err
	}
	return out.HDMovieLogo, nil
}

func (c *fanartClient) showLogos(ctx context.Context, tvdbID int64) ([]fanartLogo, error) {
	var out struct {
		HDTVLogo []fanartLogo `json:"hdtvlogo"`
	}
	if err := c.doGET(ctx, fmt.Sprintf("%s/tv/%d", fanartBaseURL, tvdbID), &out); err != nil {
		return nil, err
	}
	return out.HDTVLogo, nil
}

func (c *fanartClient) doGET(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?api_key="+c.apiKey, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fanart: GET %s failed: %s", u, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
