// Command resync-projections rebuilds every projection row from its
// already-persisted artifact envelope — useful after a transformer change
// or a projection-table migration. A minimal wrapper over pkg/artifactstore
// exercising ListAll/ResyncProjection; not elaborated beyond that per
// spec §1's non-goals, grounded on original_source's
// commands/resync_projections.py (one transaction per artifact, tally
// synced/failed, never abort the run on one failure).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/framewright/corpus/pkg/artifactstore"
	"github.com/framewright/corpus/pkg/config"
	"github.com/framewright/corpus/pkg/database"
	"github.com/framewright/corpus/pkg/schema"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML configuration file (empty loads defaults)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded, continuing with process environment", "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	registry := schema.NewRegistry()
	if err := schema.Init(registry); err != nil {
		slog.Error("failed to register artifact schemas", "error", err)
		os.Exit(1)
	}

	store := artifactstore.New(dbClient.DB, registry)

	envs, err := store.ListAll(ctx)
	if err != nil {
		slog.Error("failed to list artifacts", "error", err)
		os.Exit(1)
	}
	slog.Info("found artifacts to resync", "count", len(envs))

	synced, failed := 0, 0
	for _, env := range envs {
		if err := store.ResyncProjection(ctx, env); err != nil {
			slog.Error("failed to resync artifact", "artifact_id", env.ArtifactID, "error", err)
			failed++
			continue
		}
		synced++
		if synced%10 == 0 {
			slog.Info("resync progress", "synced", synced)
		}
	}

	slog.Info("resync complete", "synced", synced, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}
