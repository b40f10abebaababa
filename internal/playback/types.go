// Package playback resolves and caches direct playback links for episodes.
package playback

import (
	"context"
	"time"
)

// Link is one resolved playback URL for an episode. At most one link
// exists per (anime, episode, backend); different backends may coexist.
type Link struct {
	ID         int64     `json:"id"`
	AnimeID    string    `json:"animeId"`
	Episode    int       `json:"episode"`
	Backend    string    `json:"backend"`
	URL        string    `json:"url"`
	Quality    string    `json:"quality"`
	IsAdaptive bool      `json:"isAdaptive"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// Candidate is a playback URL discovered by a resolver backend.
type Candidate struct {
	URL        string
	Quality    string
	IsAdaptive bool
}

// Resolver is implemented by each external playback-link backend. A lookup
// returns at most one candidate; no match is (nil, nil). Implementations
// absorb their own transport errors where possible, but the service treats
// any returned error as no contribution from that backend.
type Resolver interface {
	Name() string
	FindVideo(ctx context.Context, title string, episode int) (*Candidate, error)
}
