package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/clock"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/config"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/database"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/handler"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/logger"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/repository"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/router"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/service"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/validator"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/worker"
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
		Msg("Starting RobustQuiz Session Engine")

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
	sessionRepo := repository.NewSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	violationRepo := repository.NewViolationRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	clk := clock.System()
	authService := service.NewAuthService(cfg)
	notifier := service.NewRedisNotifier(rdb)
	payloadCache := service.NewRedisPayloadCache(rdb)

	sessionManager := service.NewSessionManager(sessionRepo, examRepo, clk, log)
	finalizer := service.NewSubmissionFinalizer(sessionManager, notifier, log)
	timer := service.NewTimerAuthority(sessionManager, finalizer, clk, log)
	heartbeat := service.NewHeartbeatMonitor(sessionRepo, finalizer, cfg.HeartbeatGrace, clk, log)
	deliverer := service.NewQuestionDeliverer(examRepo, questionRepo, payloadCache, cfg.QuestionBatchSize, log)
	answerService := service.NewAnswerService(answerRepo, questionRepo, clk, log)
	violationService := service.NewViolationService(violationRepo, finalizer, cfg.StrikeThreshold, clk, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	sessionHandler := handler.NewSessionHandler(sessionManager, timer, heartbeat, finalizer)
	handlers := &router.Handlers{
		Student:   handler.NewStudentHandler(sessionManager, timer),
		Session:   sessionHandler,
		Answer:    handler.NewAnswerHandler(sessionHandler, answerService, deliverer),
		Violation: handler.NewViolationHandler(sessionHandler, violationService),
		WS:        handler.NewWSHandler(rdb, sessionManager, timer, heartbeat, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	sweepWorker := worker.NewSweepWorker(timer, heartbeat, cfg.SweepInterval, log)
	dispatchWorker := worker.NewResultDispatchWorker(sessionManager, answerRepo, violationRepo, rdb, log)

	go sweepWorker.Start(workerCtx)
	go dispatchWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every available exam payload into Redis BEFORE accepting
	// traffic, so a synchronized exam start never stampedes PostgreSQL.
	if err := deliverer.PrewarmAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
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

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
