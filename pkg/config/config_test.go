package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasExpectedBaselineValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "latest", cfg.Selection.DefaultMode)
	assert.Equal(t, 5, cfg.Worker.WorkerCount)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestDefault_FailsValidationWithoutPassword(t *testing.T) {
	// Database.Password has no built-in default: it must come from a config
	// file or the environment, never baked into the binary.
	err := Default().Validate()
	require.Error(t, err)
}

func TestLoad_EmptyPathValidatesDefaults(t *testing.T) {
	_, err := Load("")
	require.Error(t, err, "an empty path validates Default() as-is, which has no DB password")
}

func TestLoad_MissingFileReturnsLoadError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoad_OverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
database:
  password: "secret"
broker:
  addr: "redis.internal:6379"
worker:
  worker_count: 12
selection:
  default_mode: "pinned"
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "redis.internal:6379", cfg.Broker.Addr)
	assert.Equal(t, 12, cfg.Worker.WorkerCount)
	assert.Equal(t, "pinned", cfg.Selection.DefaultMode)
	// Untouched fields still carry their defaults.
	assert.Equal(t, Default().Thumbnail.MediaRoot, cfg.Thumbnail.MediaRoot)
}

func TestLoad_InvalidYAMLReturnsLoadError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: valid: yaml: [["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestValidate_RejectsUnknownSelectionMode(t *testing.T) {
	cfg := Default()
	cfg.Database.Password = "secret"
	cfg.Selection.DefaultMode = "not_a_mode"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsZeroWorkerCount(t *testing.T) {
	cfg := Default()
	cfg.Database.Password = "secret"
	cfg.Worker.WorkerCount = 0
	err := cfg.Validate()
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "worker", valErr.Component)

	cfg = Default()
	cfg.Database.Password = "secret"
	cfg.MLWorker.WorkerCount = 0
	err = cfg.Validate()
	require.Error(t, err)
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "ml_worker", valErr.Component)
}

func TestValidate_RejectsEmptyInferenceBaseURL(t *testing.T) {
	cfg := Default()
	cfg.Inference.BaseURL = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsEmptyBrokerAddr(t *testing.T) {
	cfg := Default()
	cfg.Broker.Addr = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsEmptyThumbnailMediaRoot(t *testing.T) {
	cfg := Default()
	cfg.Thumbnail.MediaRoot = ""
	assert.Error(t, cfg.Validate())
}
