// Package sibnet provides a playback link resolver that scrapes the
// Sibnet video site.
package sibnet

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/aniflux/aniflux/internal/config"
	"github.com/aniflux/aniflux/internal/playback"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Client scrapes Sibnet search results for episode videos.
type Client struct {
	httpClient *http.Client
	config     config.SibnetConfig
	logger     zerolog.Logger
}

// NewClient creates a new Sibnet client.
func NewClient(cfg config.SibnetConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "sibnet").Logger(),
	}
}

// Name returns the backend name stored on links this resolver produces.
func (c *Client) Name() string {
	return "sibnet"
}

// FindVideo searches Sibnet for "<title> <episode> серия" and returns the
// first matching video, preferring a direct stream URL extracted from the
// video page and falling back to the embeddable page URL.
func (c *Client) FindVideo(ctx context.Context, title string, episode int) (*playback.Candidate, error) {
	query := fmt.Sprintf("%s %d серия", title, episode)

	doc, err := c.fetchDocument(ctx, fmt.Sprintf("%s/search.php?str=%s", c.config.BaseURL, url.QueryEscape(query)))
	if err != nil {
		return nil, err
	}

	pageURL := c.firstMatchingVideo(doc, title)
	if pageURL == "" {
		return nil, nil
	}

	directURL := c.extractDirectURL(ctx, pageURL)
	if directURL == "" {
		directURL = pageURL
	}

	return &playback.Candidate{
		URL:     directURL,
		Quality: "720p",
	}, nil
}

// firstMatchingVideo scans the search result items for a link whose title
// contains the requested one.
func (c *Client) firstMatchingVideo(doc *goquery.Document, title string) string {
	needle := strings.ToLower(title)
	var found string

	doc.Find(".video-item, .item").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Find("a").Attr("href")
		if !ok {
			return true
		}
		text := strings.TrimSpace(sel.Find(".title, .video-title").Text())
		if !strings.Contains(strings.ToLower(text), needle) {
			return true
		}
		found = c.absoluteURL(href)
		return false
	})

	return found
}

// extractDirectURL loads the video page and pulls a direct stream URL out
// of the embedded player markup, if one is present.
func (c *Client) extractDirectURL(ctx context.Context, pageURL string) string {
	doc, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", pageURL).Msg("Failed to load video page")
		return ""
	}

	src, ok := doc.Find("video source").Attr("src")
	if !ok {
		src, ok = doc.Find("video").Attr("src")
	}
	if !ok || src == "" {
		return ""
	}
	return c.absoluteURL(src)
}

func (c *Client) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

func (c *Client) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return c.config.BaseURL + href
}
