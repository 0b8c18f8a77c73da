package posters

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"kinofeed/models"
)

const rpdbBaseURL = "https://api.ratingposterdb.com"

// substituteWorkers bounds the number of concurrent liveness probes per
// result set.
const substituteWorkers = 8

// Service substitutes rating-poster images for original posters. A
// substitute is only applied when a liveness probe against its URL
// succeeds; probe failure leaves the original poster untouched.
type Service struct {
	httpc *http.Client
}

func NewService(httpc *http.Client) *Service {
	if httpc == nil {
		httpc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Service{httpc: httpc}
}

// PosterURL builds the provider-specific substitute URL for one title.
func (s *Service) PosterURL(key string, contentType models.ContentType, tmdbID, language string) string {
	return fmt.Sprintf("%s/%s/tmdb/poster-default/%s-%s.jpg?fallback=true&lang=%s",
		rpdbBaseURL, key, contentType, tmdbID, language)
}

// alive probes a substitute URL. Any transport failure or non-2xx
// status counts as dead.
func (s *Service) alive(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// SubstituteAll replaces each record's poster with its substitute URL
// when the probe succeeds. Records keep their original poster on probe
// failure, missing key, or missing upstream id. Mutates metas in place.
func (s *Service) SubstituteAll(ctx context.Context, metas []models.Meta, language, key string) {
	if key == "" {
		return
	}
	p := pool.New().WithMaxGoroutines(substituteWorkers)
	for i := range metas {
		i := i
		p.Go(func() {
			id, ok := strings.CutPrefix(metas[i].ID, "tmdb:")
			if !ok {
				return
			}
			substitute := s.PosterURL(key, metas[i].Type, id, language)
			if s.alive(ctx, substitute) {
				metas[i].Poster = substitute
			} else {
				log.Printf("[posters] substitute probe failed id=%s, keeping original", metas[i].ID)
			}
		})
	}
	p.Wait()
}
