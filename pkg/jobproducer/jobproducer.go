// Package jobproducer implements the job producer (C8): routes tasks to a
// broker queue with deterministic, idempotent job ids.
package jobproducer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/broker"
	"github.com/framewright/corpus/pkg/models"
	"github.com/framewright/corpus/pkg/taskgraph"
)

// Producer enqueues tasks onto the backend (jobs) and ML (ml_jobs) queues.
// A gobreaker.CircuitBreaker wraps the broker calls so a Redis outage fails
// fast instead of hanging every enqueue.
type Producer struct {
	b           broker.Broker
	jobsQueue   string
	mlJobsQueue string
	breaker     *gobreaker.CircuitBreaker
}

// New constructs a Producer over b, targeting jobsQueue/mlJobsQueue.
func New(b broker.Broker, jobsQueue, mlJobsQueue string) *Producer {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "jobproducer-broker",
		MaxRequests: 1,
	})
	return &Producer{b: b, jobsQueue: jobsQueue, mlJobsQueue: mlJobsQueue, breaker: cb}
}

// JobID returns the deterministic, idempotent job id for a task: re-
// enqueueing the same task_id always produces the same job id.
func JobID(taskID string) string {
	return "ml_" + taskID
}

// EnqueueTask routes every task to the single backend jobs queue. Rejects
// unknown kinds.
func (p *Producer) EnqueueTask(ctx context.Context, taskID string, kind models.TaskKind, assetID, videoPath string, config json.RawMessage) (string, error) {
	if !isKnownKind(kind) {
		return "", apierr.New(apierr.KindValidation, apierr.CodeInvalidKind, fmt.Sprintf("unknown task kind %q", kind))
	}
	return p.enqueue(ctx, p.jobsQueue, taskID, string(kind), assetID, videoPath, config)
}

// EnqueueToMLJobs routes a task to the ml_jobs queue, used by the backend
// worker once a task has been claimed and transitioned to running.
func (p *Producer) EnqueueToMLJobs(ctx context.Context, taskID string, kind models.TaskKind, assetID, videoPath string, config json.RawMessage) (string, error) {
	return p.enqueue(ctx, p.mlJobsQueue, taskID, string(kind), assetID, videoPath, config)
}

func (p *Producer) enqueue(ctx context.Context, queue, taskID, taskType, assetID, videoPath string, config json.RawMessage) (string, error) {
	jobID := JobID(taskID)
	job := broker.Job{
		JobID:     jobID,
		TaskID:    taskID,
		TaskType:  taskType,
		AssetID:   assetID,
		VideoPath: videoPath,
		Config:    config,
	}

	result, err := p.breaker.Execute(func() (any, error) {
		enqueued, err := p.b.Enqueue(ctx, queue, job)
		return enqueued, err
	})
	if err != nil {
		return "", apierr.Wrap(apierr.KindTransient, apierr.CodeInternal, "enqueue failed", err)
	}
	if enqueued, _ := result.(bool); !enqueued {
		slog.Warn("jobproducer: enqueue deduped, job id already has broker meta", "queue", queue, "job_id", jobID, "task_id", taskID)
	}
	return jobID, nil
}

// CanWorkerHandle reports whether a worker with gpuAvailable may run kind.
// GPU-only kinds require gpuAvailable; CPU-capable kinds run anywhere.
func CanWorkerHandle(kind models.TaskKind, gpuAvailable bool) bool {
	if taskgraph.ResourceClassOf(kind) == models.ResourceGPU {
		return gpuAvailable
	}
	return true
}

func isKnownKind(kind models.TaskKind) bool {
	for _, k := range taskgraph.AllKinds() {
		if k == kind {
			return true
		}
	}
	return false
}
