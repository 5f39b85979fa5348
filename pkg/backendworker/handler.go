package backendworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/artifactstore"
	"github.com/framewright/corpus/pkg/broker"
	"github.com/framewright/corpus/pkg/config"
	"github.com/framewright/corpus/pkg/jobproducer"
	"github.com/framewright/corpus/pkg/models"
	"github.com/framewright/corpus/pkg/taskrepo"
	"github.com/framewright/corpus/pkg/thumbnail"
)

// ThumbnailRunner drives the thumbnail extractor (C13) directly. Thumbnail
// extraction has no artifact output and no inference collaborator — it is
// not ML-inference-shaped — so it never goes through ml_jobs; the backend
// worker runs it in-process instead.
type ThumbnailRunner interface {
	Run(ctx context.Context, assetID, videoPath string) (thumbnail.Stats, error)
}

// JobHandler processes one job pulled from the jobs queue. Worker owns
// polling, claim registration, and cancellation; JobHandler owns the C9
// business logic (steps 1-6 of §4.9).
type JobHandler interface {
	Handle(ctx context.Context, job broker.Job) error
}

// Orchestrator is the subset of C7 the backend worker needs to close out a
// task: completion and failure both carry cascade effects (unlocking ML
// kinds once hashing completes, flipping asset status once every task for
// it is terminal) that belong in the orchestrator, not duplicated here.
type Orchestrator interface {
	BeginTask(ctx context.Context, task models.Task) error
	HandleTaskCompletion(ctx context.Context, task models.Task) error
	HandleTaskFailure(ctx context.Context, task models.Task, taskErr error) error
}

// TaskHandler implements JobHandler for the backend worker: load the task,
// transition to running, forward to ml_jobs, poll the artifact store for
// completion with exponential backoff, and close out the task row via the
// orchestrator.
//
// It also owns the jobs-queue broker bookkeeping: it marks the job running
// on claim and, on every terminal outcome, marks it done or failed and
// removes its meta entry — the reconciler's running-sync depends on the
// done/failed status actually being written, and a never-removed meta
// entry leaks forever.
type TaskHandler struct {
	tasks      *taskrepo.Repository
	artifacts  *artifactstore.Store
	producer   *jobproducer.Producer
	orch       Orchestrator
	thumbnails ThumbnailRunner
	b          broker.Broker
	jobsQueue  string
	cfg        *config.WorkerConfig
}

// NewTaskHandler constructs a TaskHandler. b/jobsQueue are the broker and
// queue name the job was claimed from, used to close out its meta entry.
func NewTaskHandler(tasks *taskrepo.Repository, artifacts *artifactstore.Store, producer *jobproducer.Producer, orch Orchestrator, thumbnails ThumbnailRunner, b broker.Broker, jobsQueue string, cfg *config.WorkerConfig) *TaskHandler {
	return &TaskHandler{tasks: tasks, artifacts: artifacts, producer: producer, orch: orch, thumbnails: thumbnails, b: b, jobsQueue: jobsQueue, cfg: cfg}
}

// Handle implements JobHandler.
func (h *TaskHandler) Handle(ctx context.Context, job broker.Job) error {
	task, err := h.tasks.GetByID(ctx, job.TaskID)
	if err != nil {
		return err
	}

	if task.Status != models.TaskPending && task.Status != models.TaskRunning {
		return apierr.New(apierr.KindFatal, apierr.CodeInvalidValue,
			fmt.Sprintf("task %s already terminal (%s)", task.TaskID, task.Status))
	}

	if err := h.b.MarkRunning(ctx, h.jobsQueue, job.JobID); err != nil {
		slog.Warn("broker mark running failed", "job_id", job.JobID, "error", err)
	}

	if err := h.tasks.UpdateStatus(ctx, task.TaskID, models.TaskRunning, nil); err != nil {
		return err
	}

	if err := h.orch.BeginTask(ctx, task); err != nil {
		return err
	}

	if task.Kind == models.TaskThumbnailExtraction {
		return h.runThumbnailExtraction(ctx, job, task)
	}

	if _, err := h.producer.EnqueueToMLJobs(ctx, task.TaskID, task.Kind, task.AssetID, job.VideoPath, job.Config); err != nil {
		failErr := fmt.Errorf("forwarding to ml_jobs: %w", err)
		h.finishFailed(ctx, job.JobID, failErr.Error())
		_ = h.orch.HandleTaskFailure(ctx, task, failErr)
		return failErr
	}

	artifactKind, hasArtifact := artifactKindFor(task.Kind)
	if !hasArtifact {
		// Kinds with no artifact output (e.g. hash) complete as soon as
		// the forwarded job is accepted; there is nothing in C2 to poll.
		h.finishDone(ctx, job.JobID)
		return h.orch.HandleTaskCompletion(ctx, task)
	}

	count, err := h.pollForCompletion(ctx, task.AssetID, artifactKind)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.finishFailed(ctx, job.JobID, "cancelled")
			return h.tasks.UpdateStatus(ctx, task.TaskID, models.TaskCancelled, nil)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			msg := fmt.Sprintf("task timed out after %v", h.cfg.ArtifactPollDeadline)
			h.finishFailed(ctx, job.JobID, msg)
			return h.orch.HandleTaskFailure(ctx, task, errors.New(msg))
		}
		h.finishFailed(ctx, job.JobID, err.Error())
		return h.orch.HandleTaskFailure(ctx, task, err)
	}

	slog.Info("task completed", "task_id", task.TaskID, "artifact_count", count)
	h.finishDone(ctx, job.JobID)
	return h.orch.HandleTaskCompletion(ctx, task)
}

// runThumbnailExtraction drives C13 in-process: no ml_jobs forward, no
// artifact-store polling — the extractor's own return value is the
// terminal outcome.
func (h *TaskHandler) runThumbnailExtraction(ctx context.Context, job broker.Job, task models.Task) error {
	stats, err := h.thumbnails.Run(ctx, task.AssetID, job.VideoPath)
	if err != nil {
		h.finishFailed(ctx, job.JobID, err.Error())
		return h.orch.HandleTaskFailure(ctx, task, err)
	}

	slog.Info("thumbnail extraction complete", "task_id", task.TaskID,
		"generated", stats.Generated, "skipped", stats.Skipped, "failed", stats.Failed, "total", stats.Total)
	h.finishDone(ctx, job.JobID)
	return h.orch.HandleTaskCompletion(ctx, task)
}

// finishDone marks jobID done and removes its meta entry. Broker bookkeeping
// errors are logged, not propagated: the task row is the source of truth,
// the broker meta is only an optimization for the reconciler.
func (h *TaskHandler) finishDone(ctx context.Context, jobID string) {
	if err := h.b.MarkDone(ctx, h.jobsQueue, jobID); err != nil {
		slog.Warn("broker mark done failed", "job_id", jobID, "error", err)
	}
	if err := h.b.Remove(ctx, h.jobsQueue, jobID); err != nil {
		slog.Warn("broker remove failed", "job_id", jobID, "error", err)
	}
}

func (h *TaskHandler) finishFailed(ctx context.Context, jobID, reason string) {
	if err := h.b.MarkFailed(ctx, h.jobsQueue, jobID, reason); err != nil {
		slog.Warn("broker mark failed failed", "job_id", jobID, "error", err)
	}
	if err := h.b.Remove(ctx, h.jobsQueue, jobID); err != nil {
		slog.Warn("broker remove failed", "job_id", jobID, "error", err)
	}
}

// pollForCompletion polls the artifact store for envelopes matching
// (assetID, kind) with exponential backoff (start ArtifactPollInitial, cap
// ArtifactPollMax, total deadline ArtifactPollDeadline). Recovers from
// transient query errors by logging and continuing to poll.
func (h *TaskHandler) pollForCompletion(ctx context.Context, assetID string, kind models.ArtifactKind) (int, error) {
	deadline := time.Now().Add(h.cfg.ArtifactPollDeadline)
	delay := h.cfg.ArtifactPollInitial

	for {
		if time.Now().After(deadline) {
			return 0, context.DeadlineExceeded
		}

		envs, err := h.artifacts.GetByAsset(ctx, artifactstore.Query{AssetID: assetID, Kind: &kind})
		if err != nil {
			slog.Warn("artifact poll query failed, retrying", "asset_id", assetID, "kind", kind, "error", err)
		} else if len(envs) > 0 {
			return len(envs), nil
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(jitter(delay)):
		}

		delay *= 2
		if delay > h.cfg.ArtifactPollMax {
			delay = h.cfg.ArtifactPollMax
		}
	}
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	offset := time.Duration(rand.Int64N(int64(d) / 4))
	return d - offset/2
}

func artifactKindFor(kind models.TaskKind) (models.ArtifactKind, bool) {
	return models.ArtifactKindForTask(kind)
}
