package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for catalog operations.
type Handlers struct {
	aggregator *Aggregator
	store      Store
}

// NewHandlers creates new catalog handlers.
func NewHandlers(aggregator *Aggregator, store Store) *Handlers {
	return &Handlers{
		aggregator: aggregator,
		store:      store,
	}
}

// RegisterRoutes registers the catalog routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/anime", h.Search)
	g.GET("/anime/popular", h.Popular)
	g.GET("/anime/ongoing", h.Ongoing)
	g.GET("/anime/upcoming", h.Upcoming)
	g.GET("/anime/seasonal", h.Seasonal)
	g.GET("/anime/:id", h.GetByID)
	g.GET("/genres", h.Genres)
}

// Search performs a hybrid catalog search.
// GET /api/v1/anime?query=...&page=...&limit=...&genres=a,b&year=...&season=...&status=...
func (h *Handlers) Search(c echo.Context) error {
	params := SearchParams{
		Query:    c.QueryParam("query"),
		Page:     intParam(c, "page", 1),
		PageSize: intParam(c, "limit", 20),
		Year:     intParam(c, "year", 0),
		Season:   c.QueryParam("season"),
		Status:   Status(strings.ToUpper(c.QueryParam("status"))),
	}
	if genres := c.QueryParam("genres"); genres != "" {
		params.Genres = strings.Split(genres, ",")
	}

	page, err := h.aggregator.Search(c.Request().Context(), params)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, page)
}

// GetByID returns one catalog record.
// GET /api/v1/anime/:id
func (h *Handlers) GetByID(c echo.Context) error {
	rec, err := h.aggregator.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "anime not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

// Popular lists popular titles.
// GET /api/v1/anime/popular
func (h *Handlers) Popular(c echo.Context) error {
	page, err := h.aggregator.Popular(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, page)
}

// Ongoing lists currently airing titles.
// GET /api/v1/anime/ongoing
func (h *Handlers) Ongoing(c echo.Context) error {
	page, err := h.aggregator.Ongoing(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, page)
}

// Upcoming lists announced titles.
// GET /api/v1/anime/upcoming
func (h *Handlers) Upcoming(c echo.Context) error {
	page, err := h.aggregator.Upcoming(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, page)
}

// Seasonal lists titles for a year and season.
// GET /api/v1/anime/seasonal?year=2024&season=winter
func (h *Handlers) Seasonal(c echo.Context) error {
	year := intParam(c, "year", 0)
	season := c.QueryParam("season")
	if year == 0 || season == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "year and season parameters are required")
	}

	page, err := h.aggregator.Seasonal(c.Request().Context(), year, season)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, page)
}

// Genres lists all known genre names.
// GET /api/v1/genres
func (h *Handlers) Genres(c echo.Context) error {
	genres, err := h.store.ListGenres(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if genres == nil {
		genres = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"genres": genres})
}

func intParam(c echo.Context, name string, fallback int) int {
	if raw := c.QueryParam(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}
