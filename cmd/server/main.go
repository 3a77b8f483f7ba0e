package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/database"
	"github.com/stemsi/ept-backend/internal/handler"
	"github.com/stemsi/ept-backend/internal/importer"
	"github.com/stemsi/ept-backend/internal/logger"
	"github.com/stemsi/ept-backend/internal/repository"
	"github.com/stemsi/ept-backend/internal/router"
	"github.com/stemsi/ept-backend/internal/service"
	"github.com/stemsi/ept-backend/internal/validator"
	"github.com/stemsi/ept-backend/internal/worker"
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
		Msg("Starting EPT Backend")

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

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("Failed to create upload directory")
	}

	// ─── AI Extractor (optional) ───────────────────────────────────────
	var extractor importer.Extractor
	if cfg.GeminiAPIKey != "" {
		gemini, err := importer.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			log.Warn().Err(err).Msg("AI extractor unavailable, question generation disabled")
		} else {
			defer gemini.Close()
			extractor = gemini
		}
	} else {
		log.Info().Msg("GEMINI_API_KEY not set, question generation disabled")
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	candidateRepo := repository.NewCandidateRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	settingRepo := repository.NewSettingRepository(pool)
	outcomeRepo := repository.NewOutcomeRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	adminService := service.NewAdminService(adminRepo)
	settingService := service.NewSettingService(settingRepo, rdb, log)
	candidateService := service.NewCandidateService(candidateRepo, authService, rdb, cfg, log)
	questionService := service.NewQuestionService(questionRepo, settingService, rdb, extractor, cfg.QuestionsFile, log)
	recordStore := service.NewRecordStore(outcomeRepo, candidateService, log)
	sessionService := service.NewExamSessionService(cfg, questionService, candidateService, recordStore, rdb, log)
	certificateService := service.NewCertificateService(candidateRepo, settingService, cfg, log)
	mediaService := service.NewMediaService(cfg, settingService)
	dashboardService := service.NewDashboardService(dashboardRepo, outcomeRepo, sessionService)
	monitorService := service.NewMonitorService(monitorRepo, outcomeRepo, sessionService, rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService, candidateService, adminService),
		Candidate: handler.NewCandidateHandler(candidateService, certificateService, log),
		Public:    handler.NewPublicHandler(certificateService, settingService),
		Admin:     handler.NewAdminHandler(candidateService, sessionService, monitorService, log),
		Question:  handler.NewQuestionHandler(questionService, log),
		Media:     handler.NewMediaHandler(mediaService),
		WS:        handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Setting:   handler.NewSettingHandler(settingService),
		Dashboard: handler.NewDashboardHandler(dashboardService),
		Monitor:   handler.NewMonitorHandler(monitorService, log),
		System:    handler.NewSystemHandler(pool, rdb, sessionService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	answerWorker := worker.NewAnswerAuditWorker(pool, rdb, log)
	integrityWorker := worker.NewIntegrityWorker(pool, rdb, log)

	workers.Add(2)
	go func() { defer workers.Done(); answerWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); integrityWorker.Start(workerCtx) }()

	// ─── Prewarm Question Cache ───────────────────────────────────────
	if questions, err := questionService.LoadQuestions(ctx); err != nil {
		log.Warn().Err(err).Msg("Question cache prewarm failed")
	} else {
		log.Info().Int("questions", len(questions)).Msg("Question bank ready")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, rdb, cfg, log)

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

	// 1. Stop accepting new HTTP requests (5s timeout). Hijacked WebSocket
	// connections are not tracked by Shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop exam session tickers. Unfinished sessions are abandoned.
	if n := sessionService.LiveCount(); n > 0 {
		log.Warn().Int("sessions", n).Msg("Abandoning live exam sessions")
	}
	sessionService.Shutdown()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
