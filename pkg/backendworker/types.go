// Package backendworker implements the backend worker pool (C9): consumes
// jobs, transitions tasks to running, forwards to ml_jobs, polls for
// artifact completion, and closes out the task row. Control flow is
// carried over from the teacher's pkg/queue (WorkerPool/Worker/orphan
// detection), generalized from session processing to task processing.
package backendworker

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for worker polling.
var (
	// ErrNoJobsAvailable indicates no job was ready on the queue.
	ErrNoJobsAvailable = errors.New("no jobs available")

	// ErrAtCapacity indicates the global concurrent job limit was reached.
	ErrAtCapacity = errors.New("at capacity")
)

// PoolHealth reports the current health of the worker pool.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	ActiveWorkers int            `json:"active_workers"`
	TotalWorkers  int            `json:"total_workers"`
	ActiveJobs    int            `json:"active_jobs"`
	MaxConcurrent int            `json:"max_concurrent"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}

// WorkerHealth reports the health of a single worker.
type WorkerHealth struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"` // "idle" or "working"
	CurrentTaskID  string    `json:"current_task_id,omitempty"`
	TasksProcessed int       `json:"tasks_processed"`
	LastActivity   time.Time `json:"last_activity"`
}

// WorkerStatus is the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// JobRegistry is the subset of Pool a Worker uses to register/unregister
// cancel functions for in-flight tasks.
type JobRegistry interface {
	RegisterJob(taskID string, cancel context.CancelFunc)
	UnregisterJob(taskID string)
}
