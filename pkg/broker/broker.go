// Package broker implements the durable queue backing the two job queues
// (jobs, ml_jobs) described in spec §6. Redis is the broker: a list holds
// queue order, a companion hash holds per-job status metadata so the
// reconciler (C11) can introspect in-flight and completed jobs without a
// second store.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobStatus is the status recorded in a queue's meta hash for one job id.
type JobStatus string

// Job statuses as observed through broker introspection.
const (
	StatusQueued  JobStatus = "queued"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusFailed  JobStatus = "failed"
)

// ErrNotFound indicates the job id is absent from both the queue list and
// its meta hash.
var ErrNotFound = errors.New("broker: job not found")

// Job is one unit of work placed on a queue. TaskID, Kind, and AssetID are
// lifted to top-level fields because the reconciler and job producer key on
// them directly; Config carries any remaining job-specific parameters.
type Job struct {
	JobID     string          `json:"job_id"`
	TaskID    string          `json:"task_id"`
	TaskType  string          `json:"task_type"`
	AssetID   string          `json:"asset_id"`
	VideoPath string          `json:"video_path"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Broker is the interface the job producer, backend worker, ML worker, and
// reconciler use to interact with the durable queue. An interface (rather
// than a concrete *redis.Client) so tests can substitute miniredis or a
// fake without touching caller code.
type Broker interface {
	// Enqueue pushes job onto queue and deduplicates by job.JobID: if the
	// id already has meta recorded, Enqueue is a no-op and returns false.
	Enqueue(ctx context.Context, queue string, job Job) (enqueued bool, err error)

	// Pop blocks (up to the context deadline) for the next job on queue.
	Pop(ctx context.Context, queue string) (Job, error)

	// Exists reports whether jobID has any recorded status (queued,
	// running, done, or failed) — i.e. it has not dropped off the broker.
	Exists(ctx context.Context, queue, jobID string) (bool, error)

	// Status returns the recorded status for jobID, or ErrNotFound.
	Status(ctx context.Context, queue, jobID string) (JobStatus, error)

	// MarkRunning/MarkDone/MarkFailed update a job's meta status. Done and
	// Failed are terminal; the reconciler's running-sync reads them to
	// decide whether to transition the task.
	MarkRunning(ctx context.Context, queue, jobID string) error
	MarkDone(ctx context.Context, queue, jobID string) error
	MarkFailed(ctx context.Context, queue, jobID string, reason string) error

	// Remove deletes jobID's meta entry, e.g. after the owning task
	// reaches a terminal state and no longer needs broker bookkeeping.
	Remove(ctx context.Context, queue, jobID string) error
}

// RedisBroker implements Broker over a redis.UniversalClient (works for a
// miniredis-backed *redis.Client in tests and a real standalone client in
// production).
type RedisBroker struct {
	client redis.UniversalClient
}

// New wraps an existing Redis client as a Broker.
func New(client redis.UniversalClient) *RedisBroker {
	return &RedisBroker{client: client}
}

func metaKey(queue string) string {
	return queue + ":meta"
}

func (b *RedisBroker) Enqueue(ctx context.Context, queue string, job Job) (bool, error) {
	// SETNX-style dedup: HSetNX on the meta hash's status field is the
	// idempotency gate. Re-enqueueing the same job id is a no-op.
	set, err := b.client.HSetNX(ctx, metaKey(queue), job.JobID, string(StatusQueued)).Result()
	if err != nil {
		return false, fmt.Errorf("broker: dedup check: %w", err)
	}
	if !set {
		return false, nil
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("broker: marshal job: %w", err)
	}

	if err := b.client.RPush(ctx, queue, payload).Err(); err != nil {
		return false, fmt.Errorf("broker: push: %w", err)
	}
	return true, nil
}

func (b *RedisBroker) Pop(ctx context.Context, queue string) (Job, error) {
	res, err := b.client.BLPop(ctx, 5*time.Second, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("broker: pop: %w", err)
	}
	if len(res) < 2 {
		return Job{}, ErrNotFound
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return Job{}, fmt.Errorf("broker: unmarshal job: %w", err)
	}
	return job, nil
}

func (b *RedisBroker) Exists(ctx context.Context, queue, jobID string) (bool, error) {
	return b.client.HExists(ctx, metaKey(queue), jobID).Result()
}

func (b *RedisBroker) Status(ctx context.Context, queue, jobID string) (JobStatus, error) {
	val, err := b.client.HGet(ctx, metaKey(queue), jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("broker: status: %w", err)
	}
	return JobStatus(val), nil
}

func (b *RedisBroker) MarkRunning(ctx context.Context, queue, jobID string) error {
	return b.setStatus(ctx, queue, jobID, StatusRunning)
}

func (b *RedisBroker) MarkDone(ctx context.Context, queue, jobID string) error {
	return b.setStatus(ctx, queue, jobID, StatusDone)
}

func (b *RedisBroker) MarkFailed(ctx context.Context, queue, jobID string, reason string) error {
	if err := b.setStatus(ctx, queue, jobID, StatusFailed); err != nil {
		return err
	}
	return b.client.HSet(ctx, metaKey(queue)+":errors", jobID, reason).Err()
}

func (b *RedisBroker) setStatus(ctx context.Context, queue, jobID string, status JobStatus) error {
	if err := b.client.HSet(ctx, metaKey(queue), jobID, string(status)).Err(); err != nil {
		return fmt.Errorf("broker: set status: %w", err)
	}
	return nil
}

func (b *RedisBroker) Remove(ctx context.Context, queue, jobID string) error {
	if err := b.client.HDel(ctx, metaKey(queue), jobID).Err(); err != nil {
		return fmt.Errorf("broker: remove: %w", err)
	}
	return nil
}
