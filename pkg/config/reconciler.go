package config

import "time"

// ReconcilerConfig controls the reconciler's cron schedule and the
// long-running-job alert threshold (see pkg/reconciler).
type ReconcilerConfig struct {
	// PollInterval is how often the reconciler runs a pass. Per the
	// configuration surface, defaults to 60s.
	PollInterval time.Duration `yaml:"poll_interval"`

	// LongRunningThreshold is how long a task may stay "running" before
	// it is logged at alert level without a state transition.
	LongRunningThreshold time.Duration `yaml:"long_running_threshold"`
}

// DefaultReconcilerConfig returns the built-in reconciler defaults.
func DefaultReconcilerConfig() *ReconcilerConfig {
	return &ReconcilerConfig{
		PollInterval:         60 * time.Second,
		LongRunningThreshold: 1 * time.Hour,
	}
}
