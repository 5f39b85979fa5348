// Command ml-worker runs the ML worker pool (C10): it consumes ml_jobs,
// forwards each job to an external inference service, and persists the
// resulting artifact envelopes. It reuses pkg/backendworker's Pool/Worker
// machinery directly — mlworker.Handler.Handle has the same signature as
// backendworker.JobHandler, so there is no separate pool implementation
// for this process.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

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
	"github.com/framewright/corpus/pkg/metrics"
	"github.com/framewright/corpus/pkg/mlworker"
	"github.com/framewright/corpus/pkg/models"
	"github.com/framewright/corpus/pkg/schema"
	"github.com/framewright/corpus/pkg/taskgraph"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML configuration file (empty loads defaults)")
	httpAddr := flag.String("http-addr", getEnv("HTTP_ADDR", ":8091"), "Address for the /health and /metrics endpoints")
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
	artifacts := artifactstore.New(dbClient.DB, registry)

	inferencer := mlworker.NewHTTPInferencer(cfg.Inference.BaseURL, cfg.Inference.Timeout)
	inferencers := make(map[models.TaskKind]mlworker.Inferencer, len(taskgraph.MLKinds()))
	for _, kind := range taskgraph.MLKinds() {
		inferencers[kind] = inferencer
	}

	handler := mlworker.NewHandler(assets, artifacts, registry, inferencers, b, cfg.Broker.MLJobsQueue)
	pool := backendworker.NewPool("ml-worker", &cfg.MLWorker, handler, b, cfg.Broker.MLJobsQueue)
	pool.Start(ctx)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := pool.Health()
		m.SetWorkerPoolHealth("ml-worker", health.ActiveJobs, health.TotalWorkers)

		w.Header().Set("Content-Type", "application/json")
		if !health.IsHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(health)
	})

	srv := &http.Server{Addr: *httpAddr, Handler: mux}
	go func() {
		slog.Info("health/metrics server listening", "addr", *httpAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health/metrics server failed", "error", err)
		}
	}()

	slog.Info("ml worker started", "worker_count", cfg.MLWorker.WorkerCount, "inference_base_url", cfg.Inference.BaseURL)
	<-ctx.Done()
	slog.Info("shutdown signal received, draining in-flight jobs")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.MLWorker.GracefulShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	pool.Stop()
	slog.Info("ml worker stopped")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
