// Command backend-worker runs the backend worker pool (C9) and the
// reconciler (C11) in one process, per spec §5 ("the reconciler runs
// inside the backend worker process"). Exposes /health and /metrics for
// operational visibility; the core subsystem has no other HTTP surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/framewright/corpus/pkg/artifactstore"
	"github.com/framewright/corpus/pkg/assetstore"
	"github.com/framewright/corpus/pkg/backendworker"
	"github.com/framewright/corpus/pkg/broker"
	"github.com/framewright/corpus/pkg/config"
	"github.com/framewright/corpus/pkg/database"
	"github.com/framewright/corpus/pkg/jobproducer"
	"github.com/framewright/corpus/pkg/metrics"
	"github.com/framewright/corpus/pkg/orchestrator"
	"github.com/framewright/corpus/pkg/reconciler"
	"github.com/framewright/corpus/pkg/schema"
	"github.com/framewright/corpus/pkg/taskrepo"
	"github.com/framewright/corpus/pkg/thumbnail"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML configuration file (empty loads defaults)")
	httpAddr := flag.String("http-addr", getEnv("HTTP_ADDR", ":8090"), "Address for the /health and /metrics endpoints")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded, continuing with process environment", "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to database and applied migrations")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Broker.Addr,
		Password: cfg.Broker.Password,
		DB:       cfg.Broker.DB,
	})
	defer redisClient.Close()
	b := broker.New(redisClient)

	registry := schema.NewRegistry()
	if err := schema.Init(registry); err != nil {
		slog.Error("failed to register artifact schemas", "error", err)
		os.Exit(1)
	}

	assets := assetstore.New(dbClient.DB)
	tasks := taskrepo.New(dbClient.DB)
	artifacts := artifactstore.New(dbClient.DB, registry)
	thumbnails := thumbnail.New(dbClient.DB, thumbnail.NewFFmpegExtractor(), cfg.Thumbnail.MediaRoot, cfg.Thumbnail.MaxWidth)

	producer := jobproducer.New(b, cfg.Broker.JobsQueue, cfg.Broker.MLJobsQueue)
	orch := orchestrator.New(tasks, assets, producer)

	handler := backendworker.NewTaskHandler(tasks, artifacts, producer, orch, thumbnails, b, cfg.Broker.JobsQueue, &cfg.Worker)
	pool := backendworker.NewPool("backend-worker", &cfg.Worker, handler, b, cfg.Broker.JobsQueue)
	pool.Start(ctx)

	rec := reconciler.New(tasks, assets, producer, b, cfg.Broker.JobsQueue, &cfg.Reconciler)
	if err := rec.Start(ctx); err != nil {
		slog.Error("failed to start reconciler", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		reqCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		dbHealth, dbErr := database.Health(reqCtx, dbClient.DB.DB)
		poolHealth := pool.Health()
		m.SetWorkerPoolHealth("backend-worker", poolHealth.ActiveJobs, poolHealth.TotalWorkers)

		healthy := dbErr == nil && poolHealth.IsHealthy
		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   statusString(healthy),
			"database": dbHealth,
			"pool":     poolHealth,
		})
	})

	srv := &http.Server{Addr: *httpAddr, Handler: mux}
	go func() {
		slog.Info("health/metrics server listening", "addr", *httpAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health/metrics server failed", "error", err)
		}
	}()

	slog.Info("backend worker started", "worker_count", cfg.Worker.WorkerCount)
	<-ctx.Done()
	slog.Info("shutdown signal received, draining in-flight jobs")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.GracefulShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	rec.Stop()
	pool.Stop()
	slog.Info("backend worker stopped")
}

func statusString(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
