package playback

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for playback link operations.
type Handlers struct {
	service *Service
}

// NewHandlers creates new playback handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the playback routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/anime/:id/links", h.ListLinks)
	g.GET("/anime/:id/episodes/:episode/links", h.ResolveEpisode)
	g.POST("/anime/:id/episodes/:episode/links/refresh", h.RefreshEpisode)
}

// ListLinks returns every cached link for a title.
// GET /api/v1/anime/:id/links
func (h *Handlers) ListLinks(c echo.Context) error {
	links, err := h.service.ListEpisodeLinks(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, links)
}

// ResolveEpisode returns the playback links for one episode, resolving
// them from the configured backends on a cache miss.
// GET /api/v1/anime/:id/episodes/:episode/links
func (h *Handlers) ResolveEpisode(c echo.Context) error {
	episode, err := episodeParam(c)
	if err != nil {
		return err
	}

	links, err := h.service.ResolveEpisode(c.Request().Context(), c.Param("id"), episode)
	if err != nil {
		if errors.Is(err, ErrTitleNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "anime not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, links)
}

// RefreshEpisode discards cached links and resolves the episode again.
// POST /api/v1/anime/:id/episodes/:episode/links/refresh
func (h *Handlers) RefreshEpisode(c echo.Context) error {
	episode, err := episodeParam(c)
	if err != nil {
		return err
	}

	links, err := h.service.RefreshEpisode(c.Request().Context(), c.Param("id"), episode)
	if err != nil {
		if errors.Is(err, ErrTitleNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "anime not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, links)
}

func episodeParam(c echo.Context) (int, error) {
	episode, err := strconv.Atoi(c.Param("episode"))
	if err != nil || episode < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid episode number")
	}
	return episode, nil
}
