package config

import "time"

// WorkerConfig contains tunables shared by the backend worker pool and the
// ML worker pool. These values control how jobs are polled, claimed, and
// processed; see pkg/backendworker and pkg/mlworker.
type WorkerConfig struct {
	// WorkerCount is the number of worker goroutines in this pool.
	// Each worker independently polls its broker queue and processes jobs.
	WorkerCount int `yaml:"worker_count"`

	// MaxJobs is the concurrency ceiling the backend worker pool's Health
	// reports as MaxConcurrent; the pool reports itself unhealthy when more
	// jobs than this are active. Job claiming does not check it.
	MaxJobs int `yaml:"max_jobs"`

	// PollInterval is the base interval for checking the broker queue.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// JobTimeout is the maximum time a job may run before the backend
	// worker gives up waiting on artifact completion and fails the task.
	JobTimeout time.Duration `yaml:"job_timeout"`

	// MaxTries is the broker-level retry budget for transient failures.
	MaxTries int `yaml:"max_tries"`

	// AllowAbortJobs enables cooperative cancellation of in-flight jobs.
	AllowAbortJobs bool `yaml:"allow_abort_jobs"`

	// GracefulShutdownTimeout bounds the shutdown of the health/metrics HTTP
	// server. Stopping the worker pool afterwards waits for active jobs
	// without a time limit.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// ArtifactPollInitial, ArtifactPollMax, ArtifactPollDeadline configure
	// the backend worker's exponential backoff while waiting for C2 to
	// observe the artifacts an ML job produced (see pkg/backendworker).
	ArtifactPollInitial  time.Duration `yaml:"artifact_poll_initial"`
	ArtifactPollMax      time.Duration `yaml:"artifact_poll_max"`
	ArtifactPollDeadline time.Duration `yaml:"artifact_poll_deadline"`
}

// DefaultWorkerConfig returns the built-in worker-pool defaults, matching
// the configuration surface's stated tunables: max_jobs, job_timeout
// (1800s/3600s), max_tries=3, allow_abort_jobs=true, and the artifact-wait
// polling schedule (initial 1s, cap 30s, total 1800s).
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		WorkerCount:             5,
		MaxJobs:                 5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		JobTimeout:              30 * time.Minute,
		MaxTries:                3,
		AllowAbortJobs:          true,
		GracefulShutdownTimeout: 30 * time.Minute,
		ArtifactPollInitial:     1 * time.Second,
		ArtifactPollMax:         30 * time.Second,
		ArtifactPollDeadline:    1800 * time.Second,
	}
}
