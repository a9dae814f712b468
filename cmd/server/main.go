package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/router"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/store"
	"github.com/stemsi/exstem-proctor/internal/telemetry"
	"github.com/stemsi/exstem-proctor/internal/validator"
	"github.com/stemsi/exstem-proctor/internal/worker"
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
		Str("result_store", cfg.ResultStore).
		Str("abandon_policy", cfg.AbandonPolicy).
		Dur("test_duration", cfg.TestDuration).
		Msg("Starting ExStem Proctor")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Metrics ───────────────────────────────────────────────────────
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}
	metrics, err := service.NewMetrics(meterProvider.Meter(telemetry.ServiceName))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register instruments")
	}

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
	questionRepo := repository.NewQuestionRepository(pool)
	resultRepo := repository.NewResultRepository(pool)

	// ─── Result Store ──────────────────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	var (
		resultStore  proctor.ResultStore
		resultReader service.ResultReader
	)
	switch cfg.ResultStore {
	case "sqlite":
		db, err := database.NewSQLite(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite")
		}
		defer db.Close()

		sqliteStore, err := store.NewSQLiteStore(ctx, db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare SQLite result store")
		}
		resultStore, resultReader = sqliteStore, sqliteStore
		close(workerDone)

	default:
		queueStore := store.NewRedisQueueStore(rdb, cfg.TestDuration*4, log)
		resultStore, resultReader = queueStore, queueStore

		resultWorker := worker.NewResultWorker(resultRepo, rdb, log)
		go func() {
			defer close(workerDone)
			resultWorker.Start(workerCtx)
		}()
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg.JWTSecret)
	consentService := service.NewConsentService(rdb, cfg.ConsentTTL, log)
	questionBank := service.NewQuestionBankService(questionRepo, rdb, cfg.TestDuration*2, log)
	resultService := service.NewResultService(resultReader, resultRepo)
	proctorService := service.NewProctorService(
		rdb,
		questionBank,
		consentService,
		resultService,
		resultStore,
		metrics,
		service.NewProctorConfig(cfg),
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Candidate: handler.NewCandidateHandler(consentService, proctorService, resultService, log),
		Recruiter: handler.NewRecruiterHandler(resultService, log),
		WS:        handler.NewWSHandler(proctorService, log, cfg.AllowedOrigins),
		Monitor:   handler.NewMonitorHandler(rdb, proctorService, log),
		System:    handler.NewSystemHandler(rdb, proctorService, log),
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiterStop := make(chan struct{})
	go limiter.Cleanup(limiterStop)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, limiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	close(limiterStop)

	// 2. Cancel open sessions: media is released and, under the record
	// policy, abandoned results reach the store before the worker stops.
	proctorService.Shutdown(shutdownCtx)

	// 3. Stop the persistence worker and wait for it to drain.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Result worker did not drain in time")
	}

	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Meter provider shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
