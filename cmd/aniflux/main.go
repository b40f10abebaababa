package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aniflux/aniflux/internal/api"
	"github.com/aniflux/aniflux/internal/config"
	"github.com/aniflux/aniflux/internal/database"
	"github.com/aniflux/aniflux/internal/logger"
	"github.com/aniflux/aniflux/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Secrets (MAL client id, Kodik token) commonly live in a .env file
	// during development; ignore a missing one.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().Str("path", cfg.Database.Path).Msg("Opening database")
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	server := api.NewServer(db.Conn(), cfg, log.Logger)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	if err := sched.RegisterTask(scheduler.NewCatalogRefreshTask(server.Catalog())); err != nil {
		log.Fatal().Err(err).Msg("Failed to register catalog refresh task")
	}
	sched.Start()

	go func() {
		addr := cfg.Server.Address()
		log.Info().Str("address", addr).Msg("Starting HTTP server")
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("Scheduler shutdown failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
