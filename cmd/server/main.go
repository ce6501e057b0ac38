// Package main is the entry point for the venue wars API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"venue-wars/internal/config"
	"venue-wars/internal/handler"
	"venue-wars/internal/pkg/db"
	"venue-wars/internal/pkg/lock"
	"venue-wars/internal/repository"
	"venue-wars/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	venueRepo := repository.NewVenueRepository(dbPool.Pool)
	controlRepo := repository.NewControlRepository(dbPool.Pool)
	battleRepo := repository.NewBattleRepository(dbPool.Pool)
	battleStatsRepo := repository.NewBattleStatsRepository(dbPool.Pool)
	checkinRepo := repository.NewCheckinRepository(dbPool.Pool)
	playerStatsRepo := repository.NewPlayerStatsRepository(dbPool.Pool)

	// Start the battle update listener
	listener := repository.NewBattleListener(dbPool.Pool)
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Battle listener stopped")
		}
	}()

	// Initialize services
	battleLocks := lock.NewKeyLock()
	controlService := service.NewControlService(dbPool.Pool, venueRepo, controlRepo, playerStatsRepo)
	rivalService := service.NewRivalService(checkinRepo, cfg.Battle.DetectionWindow)
	battleService := service.NewBattleService(dbPool.Pool, battleRepo, battleStatsRepo, playerStatsRepo, listener, battleLocks)
	leaderboardService := service.NewLeaderboardService(venueRepo, controlRepo, battleStatsRepo, playerStatsRepo)

	// Initialize HTTP routes
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	h := handler.New(controlService, rivalService, battleService, leaderboardService, cfg.App.DefaultAppID)
	h.Register(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server is starting...")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}

// requestLogger logs each request through zerolog instead of gin's
// default writer.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}
