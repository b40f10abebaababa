package scheduler

import (
	"context"

	"github.com/aniflux/aniflux/internal/catalog"
)

// NewCatalogRefreshTask re-syncs ongoing titles from the providers so the
// local copies of airing shows do not go stale between user visits.
func NewCatalogRefreshTask(aggregator *catalog.Aggregator) TaskConfig {
	return TaskConfig{
		ID:   "catalog-refresh",
		Name: "Catalog refresh",
		Cron: "0 4 * * *",
		Func: func(ctx context.Context) error {
			_, err := aggregator.Ongoing(ctx)
			return err
		},
	}
}
