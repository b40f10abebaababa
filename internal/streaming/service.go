package streaming

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aniflux/aniflux/internal/config"
)

// StreamSource is one playback variant for an episode.
type StreamSource struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
	IsM3U8  bool   `json:"isM3U8"`
}

// Episode is one episode entry in an Info response.
type Episode struct {
	ID          string `json:"id"`
	Number      int    `json:"number"`
	Title       string `json:"title,omitempty"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
}

// Info is the normalized detail document for a streaming-site title.
type Info struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Image         string    `json:"image"`
	Description   string    `json:"description,omitempty"`
	Genres        []string  `json:"genres,omitempty"`
	ReleaseDate   string    `json:"releaseDate,omitempty"`
	Status        string    `json:"status,omitempty"`
	TotalEpisodes int       `json:"totalEpisodes"`
	Episodes      []Episode `json:"episodes"`
	Source        string    `json:"source"`
}

// fallbackGenres is served when every source fails the genre listing.
var fallbackGenres = []string{
	"Action", "Adventure", "Comedy", "Drama", "Fantasy",
	"Horror", "Romance", "Sci-Fi", "Slice of Life", "Sports",
	"Supernatural", "Thriller", "Mystery", "Historical",
}

// Service exposes the ranked streaming listing operations. Every call
// funnels through the client's source traversal, so one failing backend
// never fails the operation while another can answer.
type Service struct {
	client        *Client
	registry      *Registry
	listTimeout   time.Duration
	detailTimeout time.Duration
	logger        zerolog.Logger
}

// NewService creates a new streaming service.
func NewService(cfg config.StreamingConfig, registry *Registry, logger zerolog.Logger) *Service {
	return &Service{
		client:        NewClient(cfg, registry, logger),
		registry:      registry,
		listTimeout:   time.Duration(cfg.ListTimeout) * time.Second,
		detailTimeout: time.Duration(cfg.DetailTimeout) * time.Second,
		logger:        logger.With().Str("component", "streaming").Logger(),
	}
}

// Search searches streaming sites for a title.
func (s *Service) Search(ctx context.Context, query string, page int, source string) (Payload, error) {
	return s.client.trySources(ctx, "search/"+url.PathEscape(query), source, pageParams(page), s.listTimeout)
}

// Info fetches the detail document (including the episode list) for a title.
func (s *Service) Info(ctx context.Context, animeID, source string) (*Info, error) {
	payload, err := s.client.trySources(ctx, "info/"+url.PathEscape(animeID), source, nil, s.detailTimeout)
	if err != nil {
		return nil, err
	}

	info := &Info{
		ID:          stringField(payload, "id"),
		Title:       stringField(payload, "title"),
		Image:       stringField(payload, "image"),
		Description: stringField(payload, "description"),
		ReleaseDate: stringField(payload, "releaseDate"),
		Status:      stringField(payload, "status"),
		Source:      stringField(payload, "source"),
		Episodes:    []Episode{},
	}
	if n, ok := payload["totalEpisodes"].(float64); ok {
		info.TotalEpisodes = int(n)
	}
	if genres, ok := payload["genres"].([]interface{}); ok {
		for _, g := range genres {
			if name, ok := g.(string); ok {
				info.Genres = append(info.Genres, name)
			}
		}
	}
	if episodes, ok := payload["episodes"].([]interface{}); ok {
		for _, e := range episodes {
			entry, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			ep := Episode{
				ID:          stringField(entry, "id"),
				Title:       stringField(entry, "title"),
				Image:       stringField(entry, "image"),
				Description: stringField(entry, "description"),
			}
			if n, ok := entry["number"].(float64); ok {
				ep.Number = int(n)
			}
			info.Episodes = append(info.Episodes, ep)
		}
	}

	return info, nil
}

// EpisodeLinks fetches the playback variants for one episode id.
func (s *Service) EpisodeLinks(ctx context.Context, episodeID, source string) ([]StreamSource, error) {
	payload, err := s.client.trySources(ctx, "watch/"+url.PathEscape(episodeID), source, nil, s.detailTimeout)
	if err != nil {
		return nil, err
	}

	raw, ok := payload["sources"].([]interface{})
	if !ok {
		if raw, ok = payload["primary"].([]interface{}); !ok {
			return []StreamSource{}, nil
		}
	}

	streams := make([]StreamSource, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		stream := StreamSource{
			URL:     stringField(m, "url"),
			Quality: stringField(m, "quality"),
		}
		if stream.Quality == "" {
			stream.Quality = "default"
		}
		if adaptive, ok := m["isM3U8"].(bool); ok {
			stream.IsM3U8 = adaptive
		}
		streams = append(streams, stream)
	}

	return streams, nil
}

// Recent lists recently released episodes.
func (s *Service) Recent(ctx context.Context, page int, source string) (Payload, error) {
	return s.client.trySources(ctx, "recent-episodes", source, pageParams(page), s.listTimeout)
}

// TopAiring lists the top currently airing titles.
func (s *Service) TopAiring(ctx context.Context, page int, source string) (Payload, error) {
	return s.client.trySources(ctx, "top-airing", source, pageParams(page), s.listTimeout)
}

// Popular lists popular titles.
func (s *Service) Popular(ctx context.Context, page int, source string) (Payload, error) {
	return s.client.trySources(ctx, "popular", source, pageParams(page), s.listTimeout)
}

// ByGenre lists titles for one genre.
func (s *Service) ByGenre(ctx context.Context, genre string, page int, source string) (Payload, error) {
	return s.client.trySources(ctx, "genre/"+url.PathEscape(genre), source, pageParams(page), s.listTimeout)
}

// Genres lists the genres known to the streaming sites, degrading to a
// static list when every source fails.
func (s *Service) Genres(ctx context.Context, source string) (Payload, error) {
	payload, err := s.client.trySources(ctx, "genre/list", source, nil, s.listTimeout)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch genres from any source, returning fallback list")
		return Payload{"genres": fallbackGenres}, nil
	}
	return payload, nil
}

// AvailableSources returns the enabled source names in current priority order.
func (s *Service) AvailableSources() []string {
	return s.registry.OrderedNames("")
}

// Backends returns the full registry snapshot.
func (s *Service) Backends() []Source {
	return s.registry.Sources()
}

func pageParams(page int) url.Values {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	return params
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
