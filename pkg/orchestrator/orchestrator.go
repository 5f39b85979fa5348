// Package orchestrator implements the task orchestrator (C7): creates
// tasks for a video according to the task graph and current asset state,
// and drives task-state transitions.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/framewright/corpus/pkg/jobproducer"
	"github.com/framewright/corpus/pkg/models"
	"github.com/framewright/corpus/pkg/taskgraph"
	"github.com/framewright/corpus/pkg/taskrepo"
)

// AssetStore is the subset of asset persistence the orchestrator needs.
// Kept narrow and interface-typed so this package doesn't own asset CRUD —
// discovery and asset lifecycle live outside the core per spec §1.
type AssetStore interface {
	GetByID(ctx context.Context, assetID string) (models.Asset, error)
	ListByStatus(ctx context.Context, status models.AssetStatus) ([]models.Asset, error)
	SetStatus(ctx context.Context, assetID string, status models.AssetStatus) error
}

// Orchestrator creates and transitions tasks for assets.
type Orchestrator struct {
	tasks    *taskrepo.Repository
	assets   AssetStore
	producer *jobproducer.Producer
}

// New constructs an Orchestrator.
func New(tasks *taskrepo.Repository, assets AssetStore, producer *jobproducer.Producer) *Orchestrator {
	return &Orchestrator{tasks: tasks, assets: assets, producer: producer}
}

// CreateTasksForVideo enumerates kinds whose readiness rule is satisfied
// and for which no task already exists for the asset, inserts new pending
// tasks, and enqueues each through the job producer. Returns the created
// set.
func (o *Orchestrator) CreateTasksForVideo(ctx context.Context, asset models.Asset) ([]models.Task, error) {
	var created []models.Task

	for _, kind := range taskgraph.AllKinds() {
		if !taskgraph.IsReady(kind, asset) {
			continue
		}

		if _, exists, err := o.tasks.FindByVideoAndType(ctx, asset.AssetID, kind); err != nil {
			return created, err
		} else if exists {
			continue
		}

		task := models.Task{
			TaskID:    uuid.NewString(),
			AssetID:   asset.AssetID,
			Kind:      kind,
			Status:    models.TaskPending,
			Priority:  taskgraph.PriorityOf(kind),
			CreatedAt: time.Now(),
		}
		if taskgraph.IsLanguageRequired(kind) {
			lang := "en"
			task.Language = &lang
		}

		if err := o.tasks.Create(ctx, task); err != nil {
			return created, err
		}

		if _, err := o.producer.EnqueueTask(ctx, task.TaskID, kind, asset.AssetID, asset.FilePath, nil); err != nil {
			return created, fmt.Errorf("orchestrator: enqueue %s for %s: %w", kind, asset.AssetID, err)
		}

		created = append(created, task)
	}

	return created, nil
}

// ProcessDiscoveredVideos runs CreateTasksForVideo for every asset with
// status discovered.
func (o *Orchestrator) ProcessDiscoveredVideos(ctx context.Context) (int, error) {
	assets, err := o.assets.ListByStatus(ctx, models.AssetDiscovered)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, a := range assets {
		created, err := o.CreateTasksForVideo(ctx, a)
		if err != nil {
			slog.Error("orchestrator: create tasks for video failed", "asset_id", a.AssetID, "error", err)
			continue
		}
		total += len(created)
	}
	return total, nil
}

// BeginTask marks the asset processing once a non-hash task starts running.
// Called by the backend worker right after it claims a job, before
// forwarding to ml_jobs: this is what makes derivative/thumbnail kinds
// (ready only once the asset is processing or completed, per §4.5) ever
// become eligible. Hash tasks leave the asset alone — it only reaches
// hashed once the hash task itself completes.
func (o *Orchestrator) BeginTask(ctx context.Context, task models.Task) error {
	if task.Kind == models.TaskHash {
		return nil
	}
	return o.assets.SetStatus(ctx, task.AssetID, models.AssetProcessing)
}

// HandleTaskCompletion marks task completed; if it is the hash task, flips
// the asset to hashed and recursively unlocks ML kinds. For every other
// kind, re-runs task creation so any derivative/thumbnail kind unlocked by
// the asset's current status gets picked up, then flips the asset to
// completed once all tasks for it are terminal and none failed.
func (o *Orchestrator) HandleTaskCompletion(ctx context.Context, task models.Task) error {
	if err := o.tasks.UpdateStatus(ctx, task.TaskID, models.TaskCompleted, nil); err != nil {
		return err
	}

	if task.Kind == models.TaskHash {
		if err := o.assets.SetStatus(ctx, task.AssetID, models.AssetHashed); err != nil {
			return err
		}
		asset, err := o.assets.GetByID(ctx, task.AssetID)
		if err != nil {
			return err
		}
		if _, err := o.CreateTasksForVideo(ctx, asset); err != nil {
			return err
		}
		return nil
	}

	asset, err := o.assets.GetByID(ctx, task.AssetID)
	if err != nil {
		return err
	}
	if _, err := o.CreateTasksForVideo(ctx, asset); err != nil {
		return err
	}

	return o.maybeCompleteAsset(ctx, task.AssetID)
}

// maybeCompleteAsset flips the asset to completed once every task is
// terminal and none failed.
func (o *Orchestrator) maybeCompleteAsset(ctx context.Context, assetID string) error {
	tasks, err := o.tasks.FindByAsset(ctx, assetID)
	if err != nil {
		return err
	}

	allTerminal := true
	anyFailed := false
	for _, t := range tasks {
		switch t.Status {
		case models.TaskPending, models.TaskRunning:
			allTerminal = false
		case models.TaskFailed:
			anyFailed = true
		}
	}

	if allTerminal && !anyFailed {
		return o.assets.SetStatus(ctx, assetID, models.AssetCompleted)
	}
	return nil
}

// HandleTaskFailure marks task failed with error. For hash failures, flips
// the asset to failed; ML failures leave the asset in processing.
func (o *Orchestrator) HandleTaskFailure(ctx context.Context, task models.Task, taskErr error) error {
	msg := taskErr.Error()
	if err := o.tasks.UpdateStatus(ctx, task.TaskID, models.TaskFailed, &msg); err != nil {
		return err
	}

	if task.Kind == models.TaskHash {
		return o.assets.SetStatus(ctx, task.AssetID, models.AssetFailed)
	}
	return nil
}

// RetryFailedTasks resets each failed task to pending, clearing error,
// started_at, completed_at, and re-enqueues.
func (o *Orchestrator) RetryFailedTasks(ctx context.Context) (int, error) {
	failed, err := o.tasks.FindByStatus(ctx, models.TaskFailed)
	if err != nil {
		return 0, err
	}

	retried := 0
	for _, t := range failed {
		if err := o.tasks.ResetToPending(ctx, t.TaskID); err != nil {
			slog.Error("orchestrator: reset to pending failed", "task_id", t.TaskID, "error", err)
			continue
		}
		asset, err := o.assets.GetByID(ctx, t.AssetID)
		if err != nil {
			slog.Error("orchestrator: load asset for retry failed", "task_id", t.TaskID, "error", err)
			continue
		}
		if _, err := o.producer.EnqueueTask(ctx, t.TaskID, t.Kind, t.AssetID, asset.FilePath, nil); err != nil {
			slog.Error("orchestrator: re-enqueue failed", "task_id", t.TaskID, "error", err)
			continue
		}
		retried++
	}
	return retried, nil
}
