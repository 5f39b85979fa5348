package config

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/framewright/corpus/pkg/database"
)

// Config is the full process configuration surface: database connection,
// broker connection, backend/ML worker tunables, reconciler tunables,
// thumbnail extraction tunables, and the default selection-policy mode.
type Config struct {
	Database   database.Config   `yaml:"database"`
	Broker     BrokerConfig      `yaml:"broker"`
	Worker     WorkerConfig      `yaml:"worker"`
	MLWorker   WorkerConfig      `yaml:"ml_worker"`
	Inference  InferenceConfig   `yaml:"inference"`
	Reconciler ReconcilerConfig  `yaml:"reconciler"`
	Thumbnail  ThumbnailConfig   `yaml:"thumbnail"`
	Selection  SelectionDefaults `yaml:"selection"`
}

// InferenceConfig points the ML worker at the external inference service
// (out of scope per spec §1 — this is just the wire boundary to it).
type InferenceConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required"`
	Timeout time.Duration `yaml:"timeout"`
}

// BrokerConfig configures the durable broker connection (see pkg/broker).
type BrokerConfig struct {
	Addr        string `yaml:"addr" validate:"required"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	JobsQueue   string `yaml:"jobs_queue"`
	MLJobsQueue string `yaml:"ml_jobs_queue"`
}

// ThumbnailConfig configures the thumbnail extraction task (C13).
type ThumbnailConfig struct {
	MediaRoot string `yaml:"media_root" validate:"required"`
	MaxWidth  int    `yaml:"max_width"`
}

// SelectionDefaults configures the selection-policy manager's fallback mode.
type SelectionDefaults struct {
	// DefaultMode is the implicit policy mode used when no row is stored
	// for an (asset, kind) pair. Per the configuration surface, "latest".
	DefaultMode string `yaml:"default_mode"`
}

// Default returns the built-in configuration, combining each component's
// own defaults.
func Default() *Config {
	return &Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			User:            "corpus",
			Database:        "corpus",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 15 * time.Minute,
		},
		Broker: BrokerConfig{
			Addr:        "localhost:6379",
			JobsQueue:   "jobs",
			MLJobsQueue: "ml_jobs",
		},
		Worker:   *DefaultWorkerConfig(),
		MLWorker: *DefaultWorkerConfig(),
		Inference: InferenceConfig{
			BaseURL: "http://localhost:9000",
			Timeout: 120 * time.Second,
		},
		Reconciler: *DefaultReconcilerConfig(),
		Thumbnail: ThumbnailConfig{
			MediaRoot: "/videos",
			MaxWidth:  320,
		},
		Selection: SelectionDefaults{DefaultMode: "latest"},
	}
}

// Load reads a YAML config file, expands ${VAR}/$VAR environment
// references (see ExpandEnv), merges it over Default(), and validates the
// result. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewLoadError(path, ErrConfigNotFound)
		}
		return nil, NewLoadError(path, err)
	}

	expanded := ExpandEnv(raw)

	var fromFile Config
	if err := yaml.Unmarshal(expanded, &fromFile); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	if err := mergo.Merge(cfg, fromFile, mergo.WithOverride); err != nil {
		return nil, NewLoadError(path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var structValidator = validator.New()

// Validate checks the configuration for internally-consistent, well-formed
// values, delegating to each subsection's own validation rules.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c.Broker); err != nil {
		return NewValidationError("broker", "", "", err)
	}
	if err := structValidator.Struct(c.Thumbnail); err != nil {
		return NewValidationError("thumbnail", "", "", err)
	}
	if err := structValidator.Struct(c.Inference); err != nil {
		return NewValidationError("inference", "", "", err)
	}
	if err := c.Database.Validate(); err != nil {
		return NewValidationError("database", "", "", err)
	}
	if c.Worker.WorkerCount < 1 {
		return NewValidationError("worker", "", "worker_count", ErrInvalidValue)
	}
	if c.MLWorker.WorkerCount < 1 {
		return NewValidationError("ml_worker", "", "worker_count", ErrInvalidValue)
	}
	switch c.Selection.DefaultMode {
	case "default", "latest", "profile", "pinned", "best_quality":
	default:
		return NewValidationError("selection", "", "default_mode", ErrInvalidValue)
	}
	return nil
}
