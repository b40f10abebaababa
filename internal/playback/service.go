package playback

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aniflux/aniflux/internal/catalog"
)

// ErrTitleNotFound is returned when the resolver is asked about a title
// the catalog does not know.
var ErrTitleNotFound = errors.New("title not found in catalog")

// Service resolves playback links for episodes. The store is authoritative
// once populated: resolver backends are only consulted on a cache miss or
// an explicit refresh.
type Service struct {
	store     Store
	catalog   catalog.Store
	resolvers []Resolver
	logger    zerolog.Logger
}

// NewService creates a new playback resolver service.
func NewService(store Store, catalogStore catalog.Store, resolvers []Resolver, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		catalog:   catalogStore,
		resolvers: resolvers,
		logger:    logger.With().Str("component", "playback").Logger(),
	}
}

// ResolveEpisode returns the playback links for one episode. Cached rows
// are served without any network call; on a miss every resolver backend is
// asked concurrently and each candidate is persisted under its backend
// name. An empty result is valid when every backend comes up dry.
func (s *Service) ResolveEpisode(ctx context.Context, animeID string, episode int) ([]Link, error) {
	links, err := s.store.FindLinks(ctx, animeID, episode)
	if err != nil {
		return nil, err
	}
	if len(links) > 0 {
		return links, nil
	}

	rec, err := s.catalog.FindByID(ctx, animeID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrTitleNotFound
		}
		return nil, err
	}

	candidates, err := s.findCandidates(ctx, rec.Title, episode)
	if err != nil {
		return nil, err
	}

	created := make([]Link, 0, len(candidates))
	for i, candidate := range candidates {
		if candidate == nil {
			continue
		}
		link, err := s.store.InsertLink(ctx, Link{
			AnimeID:    animeID,
			Episode:    episode,
			Backend:    s.resolvers[i].Name(),
			URL:        candidate.URL,
			Quality:    candidate.Quality,
			IsAdaptive: candidate.IsAdaptive,
		})
		if err != nil {
			s.logger.Error().Err(err).
				Str("backend", s.resolvers[i].Name()).
				Str("animeId", animeID).
				Int("episode", episode).
				Msg("Failed to persist playback link")
			continue
		}
		created = append(created, *link)
	}

	s.logger.Info().
		Str("animeId", animeID).
		Int("episode", episode).
		Int("links", len(created)).
		Msg("Episode resolution completed")

	return created, nil
}

// RefreshEpisode discards any cached links for the episode and resolves
// them again, forcing a fresh attempt against every backend.
func (s *Service) RefreshEpisode(ctx context.Context, animeID string, episode int) ([]Link, error) {
	if err := s.store.DeleteLinks(ctx, animeID, episode); err != nil {
		return nil, err
	}
	return s.ResolveEpisode(ctx, animeID, episode)
}

// ListEpisodeLinks returns every cached link for a title, ordered by episode.
func (s *Service) ListEpisodeLinks(ctx context.Context, animeID string) ([]Link, error) {
	return s.store.ListLinks(ctx, animeID)
}

// findCandidates asks every resolver concurrently and joins all answers.
// A failing backend contributes nothing; only caller cancellation fails
// the resolution as a whole.
func (s *Service) findCandidates(ctx context.Context, title string, episode int) ([]*Candidate, error) {
	candidates := make([]*Candidate, len(s.resolvers))

	g, gctx := errgroup.WithContext(ctx)
	for i, resolver := range s.resolvers {
		g.Go(func() error {
			candidate, err := resolver.FindVideo(gctx, title, episode)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn().Err(err).
					Str("backend", resolver.Name()).
					Str("title", title).
					Int("episode", episode).
					Msg("Resolver lookup failed")
				return nil
			}
			candidates[i] = candidate
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return candidates, nil
}
