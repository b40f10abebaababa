// Package api wires the application services into an HTTP server.
package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/aniflux/aniflux/internal/catalog"
	"github.com/aniflux/aniflux/internal/config"
	"github.com/aniflux/aniflux/internal/playback"
	"github.com/aniflux/aniflux/internal/playback/kodik"
	"github.com/aniflux/aniflux/internal/playback/sibnet"
	"github.com/aniflux/aniflux/internal/provider/anilist"
	"github.com/aniflux/aniflux/internal/provider/mal"
	"github.com/aniflux/aniflux/internal/streaming"
)

// Server handles HTTP requests for the AniFlux API.
type Server struct {
	echo   *echo.Echo
	db     *sql.DB
	logger zerolog.Logger
	cfg    *config.Config

	// Services
	catalogStore     *catalog.SQLStore
	catalogService   *catalog.Aggregator
	playbackService  *playback.Service
	streamingService *streaming.Service
	registry         *streaming.Registry
}

// NewServer creates a new API server instance.
func NewServer(db *sql.DB, cfg *config.Config, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		db:     db,
		logger: logger,
		cfg:    cfg,
	}

	// Catalog providers, in merge order. MAL goes first: it is the
	// primary metadata source and wins dedup ties.
	providers := []catalog.Provider{
		mal.NewClient(cfg.Providers.MAL, logger),
	}
	if cfg.Providers.AniList.Enabled {
		providers = append(providers, anilist.NewClient(cfg.Providers.AniList, logger))
	}

	s.catalogStore = catalog.NewStore(db, logger)
	s.catalogService = catalog.NewAggregator(s.catalogStore, providers, logger)

	// Ranked streaming sources
	s.registry = streaming.NewRegistry(cfg.Streaming.Sources, logger)
	s.streamingService = streaming.NewService(cfg.Streaming, s.registry, logger)

	// Playback link resolvers
	resolvers := []playback.Resolver{
		kodik.NewClient(cfg.Playback.Kodik, logger),
		sibnet.NewClient(cfg.Playback.Sibnet, logger),
	}
	s.playbackService = playback.NewService(
		playback.NewStore(db, logger), s.catalogStore, resolvers, logger)

	s.setupMiddleware()
	s.registerRoutes()

	return s
}

// Catalog returns the catalog aggregator, for background task wiring.
func (s *Server) Catalog() *catalog.Aggregator {
	return s.catalogService
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("Request")
			return nil
		},
	}))
}

func (s *Server) registerRoutes() {
	v1 := s.echo.Group("/api/v1")

	catalog.NewHandlers(s.catalogService, s.catalogStore).RegisterRoutes(v1)
	playback.NewHandlers(s.playbackService).RegisterRoutes(v1)
	streaming.NewHandlers(s.streamingService).RegisterRoutes(v1.Group("/streaming"))

	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
