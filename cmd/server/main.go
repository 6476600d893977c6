package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/database"
	"github.com/stemsi/exstem-attempts/internal/handler"
	"github.com/stemsi/exstem-attempts/internal/logger"
	"github.com/stemsi/exstem-attempts/internal/middleware"
	"github.com/stemsi/exstem-attempts/internal/queue"
	"github.com/stemsi/exstem-attempts/internal/repository"
	"github.com/stemsi/exstem-attempts/internal/router"
	"github.com/stemsi/exstem-attempts/internal/service"
	"github.com/stemsi/exstem-attempts/internal/timer"
	"github.com/stemsi/exstem-attempts/internal/validator"
	"github.com/stemsi/exstem-attempts/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Attempt Engine")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	attemptStore := repository.NewCachedAttemptStore(
		repository.NewAttemptRepository(pool), rdb, cfg.AttemptCacheTTL, log,
	)
	examCatalog := repository.NewCachedExamCatalog(
		repository.NewExamRepository(pool), rdb, cfg.ExamCacheTTL, log,
	)
	revisionRepo := repository.NewRevisionRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	clock := timer.NewAuthority(nil)
	publisher := queue.NewPublisher(rdb)
	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)
	attemptService := service.NewAttemptService(attemptStore, examCatalog, clock, publisher, cfg.MaxBatchSize, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Attempt: handler.NewAttemptHandler(attemptService, log),
		WS:      handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		Health:  handler.NewHealthHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	revisionWorker := worker.NewRevisionWorker(revisionRepo, rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		revisionWorker.Start(workerCtx)
	}()

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopLimiter := make(chan struct{})
	go limiter.Run(stopLimiter)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, limiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	close(stopLimiter)

	// 2. Stop background workers and wait for the revision queue to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}
