// Command show-tasks prints every task with its status, owning asset, and
// whether it is still present on the broker queue — a minimal wrapper over
// pkg/taskrepo, pkg/assetstore, and pkg/broker exercising List/Exists, not
// elaborated beyond that per spec §1's non-goals. Grounded on
// original_source's show_tasks.py (task/video join, queued-membership
// check, per-status tally).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/framewright/corpus/pkg/assetstore"
	"github.com/framewright/corpus/pkg/broker"
	"github.com/framewright/corpus/pkg/config"
	"github.com/framewright/corpus/pkg/database"
	"github.com/framewright/corpus/pkg/jobproducer"
	"github.com/framewright/corpus/pkg/taskrepo"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML configuration file (empty loads defaults)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to connect to database:", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Broker.Addr,
		Password: cfg.Broker.Password,
		DB:       cfg.Broker.DB,
	})
	defer redisClient.Close()
	b := broker.New(redisClient)

	tasks := taskrepo.New(dbClient.DB)
	assets := assetstore.New(dbClient.DB)

	all, err := tasks.ListAll(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to list tasks:", err)
		os.Exit(1)
	}
	if len(all) == 0 {
		fmt.Println("No tasks found.")
		return
	}

	tally := map[string]int{}
	queuedCount := 0

	fmt.Printf("%-36s | %-18s | %-10s | %-7s | %-36s | %-30s | %-19s\n",
		"Task ID", "Kind", "Status", "Queued", "Asset ID", "File Path", "Created")
	fmt.Println(strings.Repeat("=", 160))

	for _, t := range all {
		tally[string(t.Status)]++

		queued, err := b.Exists(ctx, cfg.Broker.JobsQueue, jobproducer.JobID(t.TaskID))
		if err != nil {
			queued = false
		}
		if queued {
			queuedCount++
		}

		filePath := ""
		if asset, err := assets.GetByID(ctx, t.AssetID); err == nil {
			filePath = asset.FilePath
		}
		if len(filePath) > 30 {
			filePath = filePath[:27] + "..."
		}

		queuedStr := "no"
		if queued {
			queuedStr = "yes"
		}

		fmt.Printf("%-36s | %-18s | %-10s | %-7s | %-36s | %-30s | %-19s\n",
			t.TaskID, t.Kind, t.Status, queuedStr, t.AssetID, filePath, t.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	fmt.Println(strings.Repeat("=", 160))
	fmt.Printf("\nTotal tasks: %d\n", len(all))
	fmt.Printf("Queued: %d\n", queuedCount)
	for _, status := range []string{"pending", "running", "completed", "failed", "cancelled"} {
		fmt.Printf("%s: %d\n", status, tally[status])
	}
}

