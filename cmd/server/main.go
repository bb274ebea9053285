// Package main is the entrypoint for the FinSight API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/finsight-ai/finsight/internal/ai"
	"github.com/finsight-ai/finsight/internal/analysis"
	"github.com/finsight-ai/finsight/internal/api"
	"github.com/finsight-ai/finsight/internal/api/handler"
	mw "github.com/finsight-ai/finsight/internal/api/middleware"
	"github.com/finsight-ai/finsight/internal/api/response"
	"github.com/finsight-ai/finsight/internal/cache"
	"github.com/finsight-ai/finsight/internal/config"
	"github.com/finsight-ai/finsight/internal/extract"
	"github.com/finsight-ai/finsight/internal/queue"
	"github.com/finsight-ai/finsight/internal/store"
	"github.com/finsight-ai/finsight/internal/worker"
	"github.com/finsight-ai/finsight/pkg/models"
)

const (
	shutdownTimeout  = 30 * time.Second
	memoryQueueDepth = 256
	rateLimitPerMin  = 60
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"ai_provider", cfg.AI.Provider,
		"queue_driver", cfg.Queue.Driver,
		"env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Connect to Redis (rate limiting, and job dispatch when the
	// queue driver is redis)
	redisClient, err := cache.NewClient(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis client: %w", err)
	}
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient)
	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create AI analyzer
	analyzer, err := ai.NewAnalyzer(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI analyzer: %w", err)
	}
	slog.Info("AI analyzer initialized", "provider", analyzer.Name())

	// 6. Create store
	pgStore := store.NewPostgresStore(pool)

	if err := bootstrapAdminKey(ctx, pgStore); err != nil {
		return fmt.Errorf("bootstrap admin key: %w", err)
	}

	// 7. Create the job queue. The memory driver embeds the worker pool
	// in this process; the redis driver hands jobs to cmd/worker
	// processes over a shared list.
	var jobQueue queue.Queue
	poolDone := make(chan struct{})
	switch cfg.Queue.Driver {
	case "memory":
		memQueue := queue.NewMemoryQueue(memoryQueueDepth)
		jobQueue = memQueue

		runner := worker.NewRunner(pgStore, extract.NewPDFExtractor(), analyzer,
			cfg.AI.InferenceTimeout, logger)
		workerPool := worker.NewPool(memQueue, runner, cfg.Queue.Concurrency, logger)
		go func() {
			defer close(poolDone)
			workerPool.Run(ctx)
		}()
		slog.Info("embedded worker pool started", "concurrency", cfg.Queue.Concurrency)
	case "redis":
		jobQueue = queue.NewRedisQueue(redisClient, cfg.Queue.Name)
		close(poolDone)
		slog.Info("redis queue ready", "name", cfg.Queue.Name)
	default:
		return fmt.Errorf("unknown queue driver %q", cfg.Queue.Driver)
	}

	// 8. Build the analysis service and router
	svc := analysis.NewService(pgStore, jobQueue, cfg.Storage.DocumentDir, logger)

	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, rateLimitPerMin)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:    healthHandler(pgStore, redisCache),
		AnalyzeHandler:   handler.NewAnalyzeHandler(svc),
		JobStatusHandler: handler.NewJobStatusHandler(svc),
		JobResultHandler: handler.NewJobResultHandler(svc),
		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Stop accepting jobs and let the embedded pool drain what it holds.
	if err := jobQueue.Close(); err != nil {
		slog.Warn("queue close", "error", err)
	}
	select {
	case <-poolDone:
	case <-shutdownCtx.Done():
		slog.Warn("worker pool did not drain before shutdown deadline")
	}

	slog.Info("server stopped gracefully")
	return nil
}

// bootstrapAdminKey creates an initial admin API key when the store has
// none, so a fresh deployment can reach the admin endpoints. The raw key
// is logged exactly once and never recoverable afterwards.
func bootstrapAdminKey(ctx context.Context, s store.Store) error {
	keys, err := s.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	if len(keys) > 0 {
		return nil
	}

	raw, prefix, hash, err := handler.GenerateAPIKey()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "bootstrap-admin",
		KeyHash:   hash,
		KeyPrefix: prefix,
		Scopes:    []string{"read", "write", "admin"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		return fmt.Errorf("create key: %w", err)
	}

	slog.Info("bootstrap admin key created; store it now, it will not be shown again",
		"name", key.Name, "key", raw)
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
