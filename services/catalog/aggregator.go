package catalog

import (
	"context"
	"log"

	"github.com/sourcegraph/conc/pool"

	"kinofeed/models"
)

const (
	// upstreamPageSize is how many results the upstream provider
	// returns per page.
	upstreamPageSize = 20
	// catalogWindowSize is the client-visible page size for discovery,
	// search and personal list catalogs.
	catalogWindowSize = 100
	// trendingWindowSize is the larger window used for trending rows.
	trendingWindowSize = 500
)

// pageFetchFunc fetches one upstream page of raw results.
type pageFetchFunc func(ctx context.Context, page int) ([]models.RawItem, error)

// fetchWindow synthesizes client-visible page pageNumber of windowSize
// items from consecutive upstream pages of pageSize items. All upstream
// fetches run concurrently; a failed page contributes nothing instead
// of aborting the batch. Item order follows upstream page index order.
func fetchWindow(ctx context.Context, fetch pageFetchFunc, windowSize, pageSize, pageNumber int) []models.RawItem {
	pagesNeeded := (windowSize + pageSize - 1) / pageSize
	startPage := (pageNumber-1)*pagesNeeded + 1

	pages := make([][]models.RawItem, pagesNeeded)
	p := pool.New().WithMaxGoroutines(pagesNeeded)
	for i := 0; i < pagesNeeded; i++ {
		i := i
		p.Go(func() {
			items, err := fetch(ctx, startPage+i)
			if err != nil {
				log.Printf("[catalog] upstream page %d failed: %v", startPage+i, err)
				return
			}
			pages[i] = items
		})
	}
	p.Wait()

	merged := make([]models.RawItem, 0, windowSize)
	for _, page := range pages {
		merged = append(merged, page...)
	}
	if len(merged) > windowSize {
		merged = merged[:windowSize]
	}
	return merged
}
