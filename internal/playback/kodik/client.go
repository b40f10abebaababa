// Package kodik provides a playback link resolver backed by the Kodik API.
package kodik

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aniflux/aniflux/internal/config"
	"github.com/aniflux/aniflux/internal/playback"
)

// searchEntry is a Kodik search result.
type searchEntry struct {
	Title       string `json:"title"`
	TitleOrig   string `json:"title_orig"`
	ShikimoriID string `json:"shikimori_id"`
}

// listEntry is a Kodik episode listing result.
type listEntry struct {
	Link    string `json:"link"`
	Quality string `json:"quality"`
	Title   string `json:"title"`
	Episode int    `json:"episode"`
}

type searchResponse struct {
	Results []searchEntry `json:"results"`
}

type listResponse struct {
	Results []listEntry `json:"results"`
}

// Client is a Kodik API playback resolver.
type Client struct {
	httpClient *http.Client
	config     config.KodikConfig
	logger     zerolog.Logger
}

// NewClient creates a new Kodik client.
func NewClient(cfg config.KodikConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "kodik").Logger(),
	}
}

// Name returns the backend name stored on links this resolver produces.
func (c *Client) Name() string {
	return "kodik"
}

// IsConfigured returns true if the API token is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// FindVideo searches Kodik for the title and returns the playback link for
// the given episode, or nil when nothing matches.
func (c *Client) FindVideo(ctx context.Context, title string, episode int) (*playback.Candidate, error) {
	if !c.IsConfigured() {
		c.logger.Debug().Msg("Kodik API key not configured, skipping")
		return nil, nil
	}

	match, err := c.findTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, nil
	}

	params := url.Values{}
	params.Set("token", c.config.APIKey)
	params.Set("shikimori_id", match.ShikimoriID)
	params.Set("episode", strconv.Itoa(episode))
	params.Set("limit", "1")

	var response listResponse
	if err := c.doRequest(ctx, "/list", params, &response); err != nil {
		return nil, err
	}
	if len(response.Results) == 0 {
		return nil, nil
	}

	entry := response.Results[0]
	quality := entry.Quality
	if quality == "" {
		quality = "720p"
	}

	return &playback.Candidate{
		URL:     entry.Link,
		Quality: quality,
	}, nil
}

// findTitle searches Kodik and picks the entry whose title contains the
// requested one, in either the localized or original form.
func (c *Client) findTitle(ctx context.Context, title string) (*searchEntry, error) {
	params := url.Values{}
	params.Set("token", c.config.APIKey)
	params.Set("title", title)
	params.Set("types", "anime-serial,anime")
	params.Set("limit", "10")

	var response searchResponse
	if err := c.doRequest(ctx, "/search", params, &response); err != nil {
		return nil, err
	}

	needle := strings.ToLower(title)
	for _, entry := range response.Results {
		if strings.Contains(strings.ToLower(entry.Title), needle) ||
			strings.Contains(strings.ToLower(entry.TitleOrig), needle) {
			return &entry, nil
		}
	}
	return nil, nil
}

func (c *Client) doRequest(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := fmt.Sprintf("%s%s?%s", c.config.BaseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
