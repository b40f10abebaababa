// Package mal provides a MyAnimeList v2 API catalog provider.
package mal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aniflux/aniflux/internal/catalog"
	"github.com/aniflux/aniflux/internal/config"
)

var (
	ErrClientIDMissing = errors.New("MAL client id is not configured")
	ErrAPIError        = errors.New("MAL API error")
)

// requestFields is the field list requested on every MAL call.
const requestFields = "id,title,main_picture,alternative_titles,start_date,end_date," +
	"synopsis,mean,rank,popularity,num_episodes,status,genres,media_type,rating," +
	"studios,source,average_episode_duration"

const defaultPageSize = 20

// Client is a MyAnimeList v2 API client.
type Client struct {
	httpClient *http.Client
	config     config.MALConfig
	logger     zerolog.Logger
}

// NewClient creates a new MAL client.
func NewClient(cfg config.MALConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "mal").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "myanimelist"
}

// IsConfigured returns true if the client id is set.
func (c *Client) IsConfigured() bool {
	return c.config.ClientID != ""
}

// Search searches MAL for anime matching the query.
func (c *Client) Search(ctx context.Context, params catalog.SearchParams) catalog.Result {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	page := params.Page
	if page <= 0 {
		page = 1
	}

	q := url.Values{}
	q.Set("q", params.Query)
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa((page-1)*pageSize))

	return c.list(ctx, "/anime", q)
}

// GetByID fetches one anime by its MAL id.
func (c *Client) GetByID(ctx context.Context, externalID string) (*catalog.Record, error) {
	if !c.IsConfigured() {
		return nil, ErrClientIDMissing
	}

	q := url.Values{}
	q.Set("fields", requestFields)

	var node animeNode
	if err := c.doRequest(ctx, "/anime/"+url.PathEscape(externalID), q, &node); err != nil {
		if errors.Is(err, catalog.ErrProviderNotFound) {
			return nil, catalog.ErrProviderNotFound
		}
		c.logger.Warn().Err(err).Str("id", externalID).Msg("Detail lookup failed")
		return nil, err
	}

	rec := c.mapAnime(node)
	return &rec, nil
}

// Seasonal lists anime airing in the given year and season.
func (c *Client) Seasonal(ctx context.Context, year int, season string) catalog.Result {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(defaultPageSize))
	path := fmt.Sprintf("/anime/season/%d/%s", year, url.PathEscape(season))
	return c.list(ctx, path, q)
}

// Ongoing lists currently airing anime.
func (c *Client) Ongoing(ctx context.Context) catalog.Result {
	return c.ranking(ctx, "airing")
}

// Upcoming lists not-yet-aired anime.
func (c *Client) Upcoming(ctx context.Context) catalog.Result {
	return c.ranking(ctx, "upcoming")
}

// Popular lists anime ranked by popularity.
func (c *Client) Popular(ctx context.Context) catalog.Result {
	return c.ranking(ctx, "bypopularity")
}

func (c *Client) ranking(ctx context.Context, rankingType string) catalog.Result {
	q := url.Values{}
	q.Set("ranking_type", rankingType)
	q.Set("limit", strconv.Itoa(defaultPageSize))
	return c.list(ctx, "/anime/ranking", q)
}

// list performs a listing call and absorbs failures into an empty result,
// so an unavailable provider never aborts an aggregation.
func (c *Client) list(ctx context.Context, path string, q url.Values) catalog.Result {
	if !c.IsConfigured() {
		return catalog.EmptyResult()
	}

	q.Set("fields", requestFields)

	var response listResponse
	if err := c.doRequest(ctx, path, q, &response); err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("Listing call failed")
		return catalog.EmptyResult()
	}

	items := make([]catalog.Record, 0, len(response.Data))
	for _, entry := range response.Data {
		items = append(items, c.mapAnime(entry.Node))
	}

	return catalog.Result{
		Items:   items,
		Total:   response.Paging.Total,
		HasMore: response.Paging.Next != "",
	}
}

// doRequest performs a GET request against the MAL API and decodes the response.
func (c *Client) doRequest(ctx context.Context, path string, q url.Values, out interface{}) error {
	reqURL := fmt.Sprintf("%s%s?%s", c.config.BaseURL, path, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-MAL-CLIENT-ID", c.config.ClientID)

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

// mapAnime converts a MAL record into the canonical catalog shape.
// It is pure: fields MAL does not know stay zero.
func (c *Client) mapAnime(node animeNode) catalog.Record {
	rec := catalog.Record{
		Source:          c.Name(),
		ExternalID:      strconv.Itoa(node.ID),
		Title:           node.Title,
		Synopsis:        node.Synopsis,
		Kind:            mapMediaType(node.MediaType),
		Status:          mapStatus(node.Status),
		Episodes:        node.NumEpisodes,
		EpisodeDuration: node.AverageEpDuration / 60,
		Rating:          node.Mean,
	}

	if node.AlternativeTitles != nil {
		rec.AlternateTitle = node.AlternativeTitles.Ja
	}
	if node.MainPicture != nil {
		if node.MainPicture.Large != "" {
			rec.CoverImageURL = node.MainPicture.Large
		} else {
			rec.CoverImageURL = node.MainPicture.Medium
		}
	}
	if node.StartDate != "" {
		if t, err := time.Parse("2006-01-02", node.StartDate); err == nil {
			rec.ReleaseDate = &t
		}
	}
	for _, g := range node.Genres {
		rec.Genres = append(rec.Genres, g.Name)
	}

	return rec
}

func mapMediaType(mediaType string) catalog.Kind {
	switch mediaType {
	case "tv":
		return catalog.KindTV
	case "movie":
		return catalog.KindMovie
	case "ova":
		return catalog.KindOVA
	case "ona":
		return catalog.KindONA
	case "special":
		return catalog.KindSpecial
	default:
		return catalog.KindTV
	}
}

func mapStatus(status string) catalog.Status {
	switch status {
	case "currently_airing":
		return catalog.StatusOngoing
	case "finished_airing":
		return catalog.StatusFinished
	case "not_yet_aired":
		return catalog.StatusAnnounced
	default:
		return catalog.StatusFinished
	}
}
