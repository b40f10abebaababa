// Package anilist provides an AniList GraphQL API catalog provider.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aniflux/aniflux/internal/catalog"
	"github.com/aniflux/aniflux/internal/config"
)

var ErrAPIError = errors.New("AniList API error")

const defaultPageSize = 20

// media is the provider-native anime shape in AniList GraphQL responses.
type media struct {
	ID    int `json:"id"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
		Native  string `json:"native"`
	} `json:"title"`
	Description string `json:"description"`
	CoverImage  struct {
		ExtraLarge string `json:"extraLarge"`
		Large      string `json:"large"`
		Medium     string `json:"medium"`
	} `json:"coverImage"`
	Genres       []string `json:"genres"`
	Episodes     int      `json:"episodes"`
	Duration     int      `json:"duration"`
	AverageScore int      `json:"averageScore"`
	Status       string   `json:"status"`
	Format       string   `json:"format"`
	StartDate    struct {
		Year  int `json:"year"`
		Month int `json:"month"`
		Day   int `json:"day"`
	} `json:"startDate"`
}

type pageResponse struct {
	Data struct {
		Page struct {
			PageInfo struct {
				Total       int  `json:"total"`
				HasNextPage bool `json:"hasNextPage"`
			} `json:"pageInfo"`
			Media []media `json:"media"`
		} `json:"Page"`
	} `json:"data"`
}

type byIDResponse struct {
	Data struct {
		Media *media `json:"Media"`
	} `json:"data"`
}

// Client is an AniList GraphQL API client.
type Client struct {
	httpClient *http.Client
	config     config.AniListConfig
	logger     zerolog.Logger
}

// NewClient creates a new AniList client.
func NewClient(cfg config.AniListConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "anilist").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "anilist"
}

// Search searches AniList for anime matching the query.
func (c *Client) Search(ctx context.Context, params catalog.SearchParams) catalog.Result {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	page := params.Page
	if page <= 0 {
		page = 1
	}

	variables := map[string]interface{}{
		"page":    page,
		"perPage": pageSize,
	}
	if params.Query != "" {
		variables["search"] = params.Query
	}
	if params.Year > 0 {
		variables["seasonYear"] = params.Year
	}
	if params.Season != "" {
		variables["season"] = strings.ToUpper(params.Season)
	}
	if s := mapStatusToNative(params.Status); s != "" {
		variables["status"] = s
	}
	if len(params.Genres) > 0 {
		variables["genres"] = params.Genres
	}

	return c.page(ctx, variables)
}

// GetByID fetches one anime by its AniList id.
func (c *Client) GetByID(ctx context.Context, externalID string) (*catalog.Record, error) {
	id, err := strconv.Atoi(externalID)
	if err != nil {
		return nil, catalog.ErrProviderNotFound
	}

	var response byIDResponse
	if err := c.query(ctx, byIDQuery, map[string]interface{}{"id": id}, &response); err != nil {
		c.logger.Warn().Err(err).Str("id", externalID).Msg("Detail lookup failed")
		return nil, err
	}
	if response.Data.Media == nil {
		return nil, catalog.ErrProviderNotFound
	}

	rec := c.mapMedia(*response.Data.Media)
	return &rec, nil
}

// Seasonal lists anime airing in the given year and season.
func (c *Client) Seasonal(ctx context.Context, year int, season string) catalog.Result {
	return c.page(ctx, map[string]interface{}{
		"page":       1,
		"perPage":    defaultPageSize,
		"season":     strings.ToUpper(season),
		"seasonYear": year,
		"sort":       []string{"POPULARITY_DESC"},
	})
}

// Ongoing lists currently releasing anime.
func (c *Client) Ongoing(ctx context.Context) catalog.Result {
	return c.statusListing(ctx, "RELEASING")
}

// Upcoming lists not-yet-released anime.
func (c *Client) Upcoming(ctx context.Context) catalog.Result {
	return c.statusListing(ctx, "NOT_YET_RELEASED")
}

// Popular lists anime sorted by popularity.
func (c *Client) Popular(ctx context.Context) catalog.Result {
	return c.page(ctx, map[string]interface{}{
		"page":    1,
		"perPage": defaultPageSize,
		"sort":    []string{"POPULARITY_DESC"},
	})
}

func (c *Client) statusListing(ctx context.Context, status string) catalog.Result {
	return c.page(ctx, map[string]interface{}{
		"page":    1,
		"perPage": defaultPageSize,
		"status":  status,
		"sort":    []string{"POPULARITY_DESC"},
	})
}

// page performs a Page listing query, absorbing failures into an empty result.
func (c *Client) page(ctx context.Context, variables map[string]interface{}) catalog.Result {
	var response pageResponse
	if err := c.query(ctx, pageQuery, variables, &response); err != nil {
		c.logger.Warn().Err(err).Msg("Listing query failed")
		return catalog.EmptyResult()
	}

	p := response.Data.Page
	items := make([]catalog.Record, 0, len(p.Media))
	for _, m := range p.Media {
		items = append(items, c.mapMedia(m))
	}

	return catalog.Result{
		Items:   items,
		Total:   p.PageInfo.Total,
		HasMore: p.PageInfo.HasNextPage,
	}
}

// query posts a GraphQL query to the AniList API and decodes the response.
func (c *Client) query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return catalog.ErrProviderNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// mapMedia converts an AniList record into the canonical catalog shape.
func (c *Client) mapMedia(m media) catalog.Record {
	title := m.Title.English
	if title == "" {
		title = m.Title.Romaji
	}

	rec := catalog.Record{
		Source:          c.Name(),
		ExternalID:      strconv.Itoa(m.ID),
		Title:           title,
		AlternateTitle:  m.Title.Native,
		Synopsis:        m.Description,
		Kind:            mapFormat(m.Format),
		Status:          mapStatus(m.Status),
		Episodes:        m.Episodes,
		EpisodeDuration: m.Duration,
		Rating:          float64(m.AverageScore) / 10,
		Genres:          m.Genres,
	}

	switch {
	case m.CoverImage.ExtraLarge != "":
		rec.CoverImageURL = m.CoverImage.ExtraLarge
	case m.CoverImage.Large != "":
		rec.CoverImageURL = m.CoverImage.Large
	default:
		rec.CoverImageURL = m.CoverImage.Medium
	}

	if m.StartDate.Year > 0 {
		month := m.StartDate.Month
		if month == 0 {
			month = 1
		}
		day := m.StartDate.Day
		if day == 0 {
			day = 1
		}
		t := time.Date(m.StartDate.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		rec.ReleaseDate = &t
	}

	return rec
}

func mapFormat(format string) catalog.Kind {
	switch format {
	case "TV", "TV_SHORT":
		return catalog.KindTV
	case "MOVIE":
		return catalog.KindMovie
	case "OVA":
		return catalog.KindOVA
	case "ONA":
		return catalog.KindONA
	case "SPECIAL":
		return catalog.KindSpecial
	default:
		return catalog.KindUnknown
	}
}

func mapStatus(status string) catalog.Status {
	switch status {
	case "RELEASING":
		return catalog.StatusOngoing
	case "FINISHED":
		return catalog.StatusFinished
	case "NOT_YET_RELEASED":
		return catalog.StatusAnnounced
	default:
		return catalog.StatusUnknown
	}
}

func mapStatusToNative(status catalog.Status) string {
	switch status {
	case catalog.StatusOngoing:
		return "RELEASING"
	case catalog.StatusFinished:
		return "FINISHED"
	case catalog.StatusAnnounced:
		return "NOT_YET_RELEASED"
	default:
		return ""
	}
}
