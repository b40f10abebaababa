package streaming

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for ranked streaming listings.
type Handlers struct {
	service *Service
}

// NewHandlers creates new streaming handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the streaming routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/search", h.Search)
	g.GET("/recent", h.Recent)
	g.GET("/top-airing", h.TopAiring)
	g.GET("/popular", h.Popular)
	g.GET("/genres", h.Genres)
	g.GET("/genre/:genre", h.ByGenre)
	g.GET("/info/:id", h.Info)
	g.GET("/watch/:episodeId", h.Watch)
	g.GET("/sources", h.Sources)
}

// Search searches streaming sites for a title.
// GET /api/v1/streaming/search?query=...&page=...&source=...
func (h *Handlers) Search(c echo.Context) error {
	query := c.QueryParam("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter is required")
	}

	payload, err := h.service.Search(c.Request().Context(), query, pageParam(c), c.QueryParam("source"))
	return respond(c, payload, err)
}

// Recent lists recently released episodes.
// GET /api/v1/streaming/recent
func (h *Handlers) Recent(c echo.Context) error {
	payload, err := h.service.Recent(c.Request().Context(), pageParam(c), c.QueryParam("source"))
	return respond(c, payload, err)
}

// TopAiring lists the top currently airing titles.
// GET /api/v1/streaming/top-airing
func (h *Handlers) TopAiring(c echo.Context) error {
	payload, err := h.service.TopAiring(c.Request().Context(), pageParam(c), c.QueryParam("source"))
	return respond(c, payload, err)
}

// Popular lists popular streaming titles.
// GET /api/v1/streaming/popular
func (h *Handlers) Popular(c echo.Context) error {
	payload, err := h.service.Popular(c.Request().Context(), pageParam(c), c.QueryParam("source"))
	return respond(c, payload, err)
}

// Genres lists streaming-site genres.
// GET /api/v1/streaming/genres
func (h *Handlers) Genres(c echo.Context) error {
	payload, err := h.service.Genres(c.Request().Context(), c.QueryParam("source"))
	return respond(c, payload, err)
}

// ByGenre lists titles for one genre.
// GET /api/v1/streaming/genre/:genre
func (h *Handlers) ByGenre(c echo.Context) error {
	payload, err := h.service.ByGenre(c.Request().Context(), c.Param("genre"), pageParam(c), c.QueryParam("source"))
	return respond(c, payload, err)
}

// Info returns the streaming-site detail document for a title.
// GET /api/v1/streaming/info/:id
func (h *Handlers) Info(c echo.Context) error {
	info, err := h.service.Info(c.Request().Context(), c.Param("id"), c.QueryParam("source"))
	if err != nil {
		return streamingError(err)
	}
	return c.JSON(http.StatusOK, info)
}

// Watch returns the playback variants for one episode id.
// GET /api/v1/streaming/watch/:episodeId
func (h *Handlers) Watch(c echo.Context) error {
	sources, err := h.service.EpisodeLinks(c.Request().Context(), c.Param("episodeId"), c.QueryParam("source"))
	if err != nil {
		return streamingError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sources": sources})
}

// Sources returns the ranked backend list.
// GET /api/v1/streaming/sources
func (h *Handlers) Sources(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"available": h.service.AvailableSources(),
		"backends":  h.service.Backends(),
	})
}

func respond(c echo.Context, payload Payload, err error) error {
	if err != nil {
		return streamingError(err)
	}
	return c.JSON(http.StatusOK, payload)
}

func streamingError(err error) error {
	if errors.Is(err, ErrAllSourcesExhausted) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "streaming request failed")
}

func pageParam(c echo.Context) int {
	if raw := c.QueryParam("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page > 0 {
			return page
		}
	}
	return 1
}
