package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/aniflux/aniflux/internal/config"
)

// ErrAllSourcesExhausted is returned when every ranked backend failed for
// a request. The failing path is attached for diagnostics.
var ErrAllSourcesExhausted = errors.New("all streaming sources exhausted")

// Payload is a provider-specific response document. Shapes are not
// standardized across sources, so callers pick out the keys they need.
type Payload map[string]interface{}

// recognizable reports whether the payload carries something usable:
// a result list, a record id, or playback sources.
func (p Payload) recognizable() bool {
	for _, key := range []string{"results", "id", "sources"} {
		if v, ok := p[key]; ok && v != nil {
			return true
		}
	}
	return false
}

// Client issues requests against a Consumet-style streaming API, trying
// ranked sources in registry order until one produces a usable payload.
type Client struct {
	httpClient *http.Client
	baseURL    string
	registry   *Registry
	logger     zerolog.Logger
}

// NewClient creates a new streaming client.
func NewClient(cfg config.StreamingConfig, registry *Registry, logger zerolog.Logger) *Client {
	return &Client{
		// Per-call deadlines come from the request context.
		httpClient: &http.Client{},
		baseURL:    cfg.BaseURL,
		registry:   registry,
		logger:     logger.With().Str("component", "streaming-client").Logger(),
	}
}

// trySources iterates the ranked source list and issues the request
// against each backend until one returns a recognizable payload. A
// transport error or unusable payload demotes the source via the registry
// and moves on. Exhausting every source fails with ErrAllSourcesExhausted.
func (c *Client) trySources(ctx context.Context, path, preferred string, params url.Values, timeout time.Duration) (Payload, error) {
	sources := c.registry.OrderedNames(preferred)

	for _, src := range sources {
		payload, err := c.fetch(ctx, src, path, params, timeout)
		if err != nil {
			c.logger.Warn().
				Str("source", src).
				Str("path", path).
				Err(err).
				Msg("Request to source failed")
			c.registry.ReportFailure(src)
			continue
		}
		if !payload.recognizable() {
			c.logger.Warn().
				Str("source", src).
				Str("path", path).
				Msg("Source returned unusable payload")
			c.registry.ReportFailure(src)
			continue
		}

		payload["source"] = src
		return payload, nil
	}

	return nil, fmt.Errorf("%w: path %q", ErrAllSourcesExhausted, path)
}

// fetch performs a single GET against one source.
func (c *Client) fetch(ctx context.Context, src, path string, params url.Values, timeout time.Duration) (Payload, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s/anime/%s/%s", c.baseURL, src, path)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return payload, nil
}
