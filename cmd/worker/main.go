// Package main is the entrypoint for the FinSight analysis worker. It
// consumes job ids from the Redis queue and runs document analysis,
// sharing the database and queue with the API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/finsight-ai/finsight/internal/ai"
	"github.com/finsight-ai/finsight/internal/cache"
	"github.com/finsight-ai/finsight/internal/config"
	"github.com/finsight-ai/finsight/internal/extract"
	"github.com/finsight-ai/finsight/internal/queue"
	"github.com/finsight-ai/finsight/internal/store"
	"github.com/finsight-ai/finsight/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Queue.Driver != "redis" {
		return fmt.Errorf("standalone worker requires QUEUE_DRIVER=redis; got %q "+
			"(the memory driver runs workers inside the API server)", cfg.Queue.Driver)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "queue", cfg.Queue.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	redisClient, err := cache.NewClient(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis client: %w", err)
	}
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	analyzer, err := ai.NewAnalyzer(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI analyzer: %w", err)
	}
	slog.Info("AI analyzer initialized", "provider", analyzer.Name())

	pgStore := store.NewPostgresStore(pool)
	jobQueue := queue.NewRedisQueue(redisClient, cfg.Queue.Name)

	runner := worker.NewRunner(pgStore, extract.NewPDFExtractor(), analyzer,
		cfg.AI.InferenceTimeout, logger)
	workerPool := worker.NewPool(jobQueue, runner, cfg.Queue.Concurrency, logger)

	slog.Info("worker pool starting", "concurrency", cfg.Queue.Concurrency)
	workerPool.Run(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}
