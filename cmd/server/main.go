// Package main implements the entry point for the PlanForge API server,
// which accepts workout plan generation jobs, runs them through a durable
// background queue against the Gemini API, and serves job status, progress
// streams, and billing webhooks.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/planforge/planforge-api/internal/api"
	"github.com/planforge/planforge-api/internal/api/middleware"
	"github.com/planforge/planforge-api/internal/config"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/notification"
	"github.com/planforge/planforge-api/internal/platform/gemini"
	"github.com/planforge/planforge-api/internal/platform/logger"
	"github.com/planforge/planforge-api/internal/platform/postgres"
	"github.com/planforge/planforge-api/internal/progress"
	"github.com/planforge/planforge-api/internal/quota"
	"github.com/planforge/planforge-api/internal/service"
	"github.com/planforge/planforge-api/internal/service/auth"
	"github.com/planforge/planforge-api/internal/task"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("failed to close database", "error", err)
		}
	}()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return err
	}

	// Redis (progress broadcaster)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			appLogger.Error("failed to close redis client", "error", err)
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Stores
	jobStore := postgres.NewPostgresJobStore(db, appLogger)
	planStore := postgres.NewPostgresPlanStore(db, appLogger)
	usageStore := postgres.NewPostgresUsageStore(db, appLogger)
	webhookStore := postgres.NewPostgresWebhookStore(db, appLogger)
	subscriptionStore := postgres.NewPostgresSubscriptionStore(db, appLogger)
	taskStore := postgres.NewPostgresTaskStore(db)

	// Pipeline collaborators
	broadcaster := progress.NewRedisBroadcaster(redisClient, appLogger)
	notifier := notification.NewLogNotifier(appLogger)

	generator, err := gemini.NewGeminiGenerator(ctx, appLogger, cfg.LLM, planStore)
	if err != nil {
		return fmt.Errorf("failed to create plan generator: %w", err)
	}

	// Processors and queue
	registry := task.NewRegistry()
	weeklyProc, err := task.NewWeeklyGenerationProcessor(jobStore, planStore, generator, broadcaster, notifier, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create weekly generation processor: %w", err)
	}
	regenProc, err := task.NewWeeklyRegenerationProcessor(jobStore, planStore, generator, broadcaster, notifier, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create weekly regeneration processor: %w", err)
	}
	dayProc, err := task.NewDailyRegenerationProcessor(jobStore, planStore, generator, broadcaster, notifier, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create daily regeneration processor: %w", err)
	}
	if err := registry.Register(domain.JobTypeWeeklyGeneration, cfg.Task.Concurrency, weeklyProc); err != nil {
		return err
	}
	if err := registry.Register(domain.JobTypeWeeklyRegeneration, cfg.Task.Concurrency, regenProc); err != nil {
		return err
	}
	if err := registry.Register(domain.JobTypeDailyRegeneration, cfg.Task.Concurrency, dayProc); err != nil {
		return err
	}

	runnerConfig := task.DefaultRunnerConfig()
	runnerConfig.QueueSize = cfg.Task.QueueSize
	runnerConfig.DefaultMaxAttempts = cfg.Task.MaxAttempts
	runnerConfig.Concurrency = cfg.Task.Concurrency
	runnerConfig.BackoffBase = cfg.Task.BackoffBase
	runnerConfig.BackoffMax = cfg.Task.BackoffMax
	runnerConfig.StuckTaskAge = cfg.Task.StuckTaskAge

	runner := task.NewRunner(taskStore, registry, runnerConfig, appLogger)
	if err := runner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	defer runner.Stop()

	// Services
	gate, err := quota.NewGate(usageStore, cfg.Quota, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create usage gate: %w", err)
	}
	jobService, err := service.NewJobService(db, jobStore, runner, gate, cfg.Task.MaxAttempts, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create job service: %w", err)
	}
	billingService, err := service.NewBillingService(db, webhookStore, subscriptionStore, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create billing service: %w", err)
	}

	sweeper, err := service.NewRetentionSweeper(jobStore, cfg.Task.JobRetention, time.Hour, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create retention sweeper: %w", err)
	}
	go sweeper.Run(ctx)

	// HTTP boundary
	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to create JWT service: %w", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	jobHandler := api.NewJobHandler(jobService)
	progressHandler := api.NewProgressHandler(broadcaster)
	webhookHandler := api.NewWebhookHandler(billingService)

	router := newRouter(authMiddleware, jobHandler, progressHandler, webhookHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	appLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http server shutdown failed", "error", err)
	}

	// runner.Stop and resource closes run via defers.
	return nil
}
