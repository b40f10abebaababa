package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// staleThreshold is the age after which a cached detail record triggers a
// provider refresh on lookup.
const staleThreshold = 24 * time.Hour

const defaultPageSize = 20

// Aggregator fans catalog queries out to the configured providers, merges
// and deduplicates the results, and reconciles them into the store.
type Aggregator struct {
	store     Store
	providers []Provider
	logger    zerolog.Logger
}

// NewAggregator creates a new catalog aggregator. Provider order is
// significant: it fixes the merge order and the detail-lookup order.
func NewAggregator(store Store, providers []Provider, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		store:     store,
		providers: providers,
		logger:    logger.With().Str("component", "catalog").Logger(),
	}
}

// Search performs a hybrid catalog search. An empty query is answered
// entirely from the store, ordered by rating; a non-empty query combines
// local substring matches with a concurrent provider fan-out.
func (a *Aggregator) Search(ctx context.Context, params SearchParams) (*Page, error) {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	if params.Query == "" {
		items, total, err := a.store.ListByRating(ctx, params.Page, pageSize)
		if err != nil {
			return nil, err
		}
		page := params.Page
		if page < 1 {
			page = 1
		}
		return &Page{Items: items, Total: total, HasMore: total > page*pageSize}, nil
	}

	local, err := a.store.SearchByTitle(ctx, params.Query, pageSize)
	if err != nil {
		return nil, err
	}

	results := a.fanOut(ctx, func(ctx context.Context, p Provider) Result {
		return p.Search(ctx, params)
	})

	remote := flatten(results)
	synced := a.syncAll(ctx, remote)

	// Local results go first so the store-assigned identity wins ties.
	merged := dedupe(append(local, synced...))

	providerHasMore := false
	for _, r := range results {
		if r.HasMore {
			providerHasMore = true
		}
	}

	total := len(merged)
	hasMore := providerHasMore || total > pageSize
	if total > pageSize {
		merged = merged[:pageSize]
	}

	a.logger.Debug().
		Str("query", params.Query).
		Int("local", len(local)).
		Int("remote", len(remote)).
		Int("merged", total).
		Msg("Hybrid search completed")

	return &Page{Items: merged, Total: total, HasMore: hasMore}, nil
}

// GetByID returns one record by internal id. A fresh local copy is served
// as-is; a missing or stale one triggers provider lookups in order. When
// every provider fails, a stale local copy is still served over an error.
func (a *Aggregator) GetByID(ctx context.Context, id string) (*Record, error) {
	local, err := a.store.FindByID(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if local != nil && time.Since(local.LastSyncedAt) < staleThreshold {
		return local, nil
	}

	externalID := id
	if local != nil && local.ExternalID != "" {
		externalID = local.ExternalID
	}

	for _, p := range a.orderedProviders(local) {
		rec, err := p.GetByID(ctx, externalID)
		if err != nil {
			continue
		}
		stored, err := a.store.Upsert(ctx, *rec)
		if err != nil {
			a.logger.Error().Err(err).Str("provider", p.Name()).Msg("Failed to sync detail record")
			continue
		}
		return stored, nil
	}

	if local != nil {
		// Availability over freshness: refresh failed, serve what we have.
		a.logger.Warn().
			Str("id", id).
			Time("lastSyncedAt", local.LastSyncedAt).
			Msg("Stale catalog record served")
		return local, nil
	}

	return nil, ErrNotFound
}

// orderedProviders returns the providers in registration order, moving the
// record's own source to the front when known.
func (a *Aggregator) orderedProviders(local *Record) []Provider {
	if local == nil || local.Source == "" {
		return a.providers
	}
	ordered := make([]Provider, 0, len(a.providers))
	for _, p := range a.providers {
		if p.Name() == local.Source {
			ordered = append(ordered, p)
		}
	}
	for _, p := range a.providers {
		if p.Name() != local.Source {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// Seasonal lists anime for a year/season from all providers.
func (a *Aggregator) Seasonal(ctx context.Context, year int, season string) (*Page, error) {
	return a.listing(ctx, func(ctx context.Context, p Provider) Result {
		return p.Seasonal(ctx, year, season)
	}), nil
}

// Ongoing lists currently airing anime from all providers.
func (a *Aggregator) Ongoing(ctx context.Context) (*Page, error) {
	return a.listing(ctx, func(ctx context.Context, p Provider) Result {
		return p.Ongoing(ctx)
	}), nil
}

// Upcoming lists announced anime from all providers.
func (a *Aggregator) Upcoming(ctx context.Context) (*Page, error) {
	return a.listing(ctx, func(ctx context.Context, p Provider) Result {
		return p.Upcoming(ctx)
	}), nil
}

// Popular serves the top rated local records when the store has content,
// falling back to a provider fan-out for a cold store.
func (a *Aggregator) Popular(ctx context.Context) (*Page, error) {
	count, err := a.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		items, total, err := a.store.ListByRating(ctx, 1, defaultPageSize)
		if err != nil {
			return nil, err
		}
		return &Page{Items: items, Total: total, HasMore: total > defaultPageSize}, nil
	}

	return a.listing(ctx, func(ctx context.Context, p Provider) Result {
		return p.Popular(ctx)
	}), nil
}

// listing runs one provider call across all providers and merges the results.
func (a *Aggregator) listing(ctx context.Context, call func(context.Context, Provider) Result) *Page {
	results := a.fanOut(ctx, call)

	merged := dedupe(a.syncAll(ctx, flatten(results)))

	total := 0
	hasMore := false
	for _, r := range results {
		if r.Total > total {
			total = r.Total
		}
		if r.HasMore {
			hasMore = true
		}
	}
	if total < len(merged) {
		total = len(merged)
	}

	return &Page{Items: merged, Total: total, HasMore: hasMore}
}

// fanOut issues the call concurrently to every provider and joins all
// results. Results are buffered into a slice indexed by provider position,
// so the merge order never depends on response timing.
func (a *Aggregator) fanOut(ctx context.Context, call func(context.Context, Provider) Result) []Result {
	results := make([]Result, len(a.providers))

	var wg sync.WaitGroup
	for i, p := range a.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			results[i] = call(ctx, p)
		}(i, p)
	}
	wg.Wait()

	return results
}

// syncAll deduplicates remote items by exact title (first seen wins) and
// upserts each into the store. Items that fail to sync are kept unsynced
// rather than dropped.
func (a *Aggregator) syncAll(ctx context.Context, items []Record) []Record {
	seen := make(map[string]bool, len(items))
	synced := make([]Record, 0, len(items))

	for _, item := range items {
		if seen[item.Title] {
			continue
		}
		seen[item.Title] = true

		stored, err := a.store.Upsert(ctx, item)
		if err != nil {
			a.logger.Error().Err(err).
				Str("source", item.Source).
				Str("externalId", item.ExternalID).
				Str("title", item.Title).
				Msg("Failed to sync record")
			synced = append(synced, item)
			continue
		}
		synced = append(synced, *stored)
	}

	return synced
}

// flatten concatenates fan-out results in provider registration order.
func flatten(results []Result) []Record {
	var items []Record
	for _, r := range results {
		items = append(items, r.Items...)
	}
	return items
}

// dedupe removes duplicates, by internal id when present and by exact
// title for items without one. Earlier items win.
func dedupe(items []Record) []Record {
	seenIDs := make(map[string]bool, len(items))
	seenTitles := make(map[string]bool, len(items))
	unique := make([]Record, 0, len(items))

	for _, item := range items {
		if item.ID != "" {
			if seenIDs[item.ID] {
				continue
			}
			seenIDs[item.ID] = true
		} else {
			if seenTitles[item.Title] {
				continue
			}
		}
		seenTitles[item.Title] = true
		unique = append(unique, item)
	}

	return unique
}
