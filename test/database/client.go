// Package database provides test-only Postgres provisioning: a
// testcontainers-backed instance in local dev, or an external service
// container when CI connection env vars are set. Adapted from the
// teacher's ent-based NewTestClient to open over pkg/database's sqlx/pgx
// pool, which applies the same embedded golang-migrate migrations
// production uses rather than an ent auto-migrate step.
package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/framewright/corpus/pkg/database"
)

// NewTestClient creates a test database client.
// In CI (when CI_DATABASE_HOST is set): connects to an external PostgreSQL
// service container. In local dev: spins up a testcontainer with
// PostgreSQL. The container/connection is automatically cleaned up when
// the test ends.
func NewTestClient(t *testing.T) *database.Client {
	t.Helper()
	ctx := context.Background()

	cfg, ok := ciConfig()
	if ok {
		t.Log("using external PostgreSQL from CI_DATABASE_HOST")
	} else {
		t.Log("using testcontainers for PostgreSQL")
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		port, err := pgContainer.MappedPort(ctx, "5432/tcp")
		require.NoError(t, err)

		cfg = database.Config{
			Host: host, Port: port.Int(),
			User: "test", Password: "test", Database: "test",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 15 * time.Minute,
		}
	}

	client, err := database.NewClient(ctx, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

// ciConfig reads connection parameters from the CI service container's
// environment, returning ok=false when none are set — the local
// testcontainers path applies instead.
func ciConfig() (database.Config, bool) {
	host := os.Getenv("CI_DATABASE_HOST")
	if host == "" {
		return database.Config{}, false
	}
	return database.Config{
		Host: host, Port: 5432,
		User:            getEnvOrDefault("CI_DATABASE_USER", "test"),
		Password:        getEnvOrDefault("CI_DATABASE_PASSWORD", "test"),
		Database:        getEnvOrDefault("CI_DATABASE_NAME", "test"),
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}, true
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
