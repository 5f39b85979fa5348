// Package reconciler implements the reconciler (C11): a cron-scheduled pass
// that re-aligns database task state with the broker's queue contents,
// grounded on the teacher's orphan-detection loop (pkg/queue/orphan.go) —
// same periodic-ticker-plus-independent-passes shape, generalized from
// session heartbeat staleness to broker job existence.
package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/framewright/corpus/pkg/broker"
	"github.com/framewright/corpus/pkg/config"
	"github.com/framewright/corpus/pkg/jobproducer"
	"github.com/framewright/corpus/pkg/models"
	"github.com/framewright/corpus/pkg/taskrepo"
)

// AssetLookup is the subset of asset persistence the reconciler needs to
// re-enqueue tasks (a video path is required to build a job payload).
type AssetLookup interface {
	GetByID(ctx context.Context, assetID string) (models.Asset, error)
}

// Stats is the aggregated outcome of one reconciliation pass.
type Stats struct {
	PendingChecked   int
	PendingReenqueued int
	RunningChecked   int
	RunningReset      int
	RunningCompleted  int
	RunningFailed     int
	LongRunningAlerts int
	Errors            []error
}

// Reconciler periodically aligns task state with broker state.
type Reconciler struct {
	tasks    *taskrepo.Repository
	assets   AssetLookup
	producer *jobproducer.Producer
	b        broker.Broker
	jobsQueue string
	cfg      *config.ReconcilerConfig

	cr *cron.Cron
}

// New constructs a Reconciler.
func New(tasks *taskrepo.Repository, assets AssetLookup, producer *jobproducer.Producer, b broker.Broker, jobsQueue string, cfg *config.ReconcilerConfig) *Reconciler {
	return &Reconciler{tasks: tasks, assets: assets, producer: producer, b: b, jobsQueue: jobsQueue, cfg: cfg}
}

// Start schedules RunOnce on a fixed interval using robfig/cron, expressed
// as "@every <poll_interval>" per the configuration surface (poll_interval
// defaults to 60s). Runs inside the backend worker process, per spec §4.11.
func (r *Reconciler) Start(ctx context.Context) error {
	r.cr = cron.New()
	spec := "@every " + r.cfg.PollInterval.String()
	_, err := r.cr.AddFunc(spec, func() {
		stats := r.RunOnce(ctx)
		for _, e := range stats.Errors {
			slog.Error("reconciler: pass error", "error", e)
		}
		slog.Info("reconciler: pass complete",
			"pending_checked", stats.PendingChecked, "pending_reenqueued", stats.PendingReenqueued,
			"running_checked", stats.RunningChecked, "running_reset", stats.RunningReset,
			"running_completed", stats.RunningCompleted, "running_failed", stats.RunningFailed,
			"long_running_alerts", stats.LongRunningAlerts)
	})
	if err != nil {
		return err
	}
	r.cr.Start()
	return nil
}

// Stop halts the cron scheduler, waiting for any in-flight pass to finish.
func (r *Reconciler) Stop() {
	if r.cr != nil {
		stopCtx := r.cr.Stop()
		<-stopCtx.Done()
	}
}

// RunOnce runs the three-part pass. Each part is isolated: an error in one
// is appended to Stats.Errors and does not abort the others.
func (r *Reconciler) RunOnce(ctx context.Context) Stats {
	var stats Stats

	if err := r.syncPending(ctx, &stats); err != nil {
		stats.Errors = append(stats.Errors, err)
	}
	if err := r.syncRunning(ctx, &stats); err != nil {
		stats.Errors = append(stats.Errors, err)
	}
	if err := r.alertLongRunning(ctx, &stats); err != nil {
		stats.Errors = append(stats.Errors, err)
	}

	return stats
}

// syncPending re-enqueues any pending task whose job id is absent from the
// jobs queue's meta hash. Broker query errors default to "exists" to avoid
// double-enqueueing.
func (r *Reconciler) syncPending(ctx context.Context, stats *Stats) error {
	tasks, err := r.tasks.FindByStatus(ctx, models.TaskPending)
	if err != nil {
		return err
	}

	for _, t := range tasks {
		stats.PendingChecked++

		jobID := jobproducer.JobID(t.TaskID)
		exists, err := r.b.Exists(ctx, r.jobsQueue, jobID)
		if err != nil {
			slog.Warn("reconciler: pending existence check failed, assuming exists", "task_id", t.TaskID, "error", err)
			continue
		}
		if exists {
			continue
		}

		asset, err := r.assets.GetByID(ctx, t.AssetID)
		if err != nil {
			slog.Error("reconciler: asset lookup failed for pending re-enqueue", "task_id", t.TaskID, "error", err)
			continue
		}
		if _, err := r.producer.EnqueueTask(ctx, t.TaskID, t.Kind, t.AssetID, asset.FilePath, nil); err != nil {
			slog.Error("reconciler: pending re-enqueue failed", "task_id", t.TaskID, "error", err)
			continue
		}
		stats.PendingReenqueued++
	}
	return nil
}

// syncRunning reconciles running tasks against broker job state: missing
// jobs reset to pending and re-enqueue; known-done jobs complete the task;
// known-failed jobs fail the task. "Known-complete" is resolved via the
// broker meta-hash status field (broker.StatusDone/StatusFailed), never by
// scanning the relational task table's own status as a proxy — see the
// design note in DESIGN.md.
func (r *Reconciler) syncRunning(ctx context.Context, stats *Stats) error {
	tasks, err := r.tasks.FindByStatus(ctx, models.TaskRunning)
	if err != nil {
		return err
	}

	for _, t := range tasks {
		stats.RunningChecked++

		jobID := jobproducer.JobID(t.TaskID)
		status, err := r.b.Status(ctx, r.jobsQueue, jobID)
		if err != nil {
			if errors.Is(err, broker.ErrNotFound) {
				if resetErr := r.resetAndReenqueue(ctx, t); resetErr != nil {
					slog.Error("reconciler: running reset failed", "task_id", t.TaskID, "error", resetErr)
					continue
				}
				stats.RunningReset++
				continue
			}
			slog.Warn("reconciler: running status check failed", "task_id", t.TaskID, "error", err)
			continue
		}

		switch status {
		case broker.StatusDone:
			if err := r.tasks.UpdateStatus(ctx, t.TaskID, models.TaskCompleted, nil); err != nil {
				slog.Error("reconciler: running completion update failed", "task_id", t.TaskID, "error", err)
				continue
			}
			stats.RunningCompleted++
		case broker.StatusFailed:
			msg := "reconciler: broker reported job failure"
			if err := r.tasks.UpdateStatus(ctx, t.TaskID, models.TaskFailed, &msg); err != nil {
				slog.Error("reconciler: running failure update failed", "task_id", t.TaskID, "error", err)
				continue
			}
			stats.RunningFailed++
		}
	}
	return nil
}

func (r *Reconciler) resetAndReenqueue(ctx context.Context, t models.Task) error {
	if err := r.tasks.ResetToPending(ctx, t.TaskID); err != nil {
		return err
	}
	asset, err := r.assets.GetByID(ctx, t.AssetID)
	if err != nil {
		return err
	}
	_, err = r.producer.EnqueueTask(ctx, t.TaskID, t.Kind, t.AssetID, asset.FilePath, nil)
	return err
}

// alertLongRunning logs (never transitions) any running task whose
// started_at predates the configured threshold.
func (r *Reconciler) alertLongRunning(ctx context.Context, stats *Stats) error {
	tasks, err := r.tasks.FindByStatus(ctx, models.TaskRunning)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-r.cfg.LongRunningThreshold)
	for _, t := range tasks {
		if t.StartedAt != nil && t.StartedAt.Before(cutoff) {
			slog.Warn("reconciler: long-running task", "task_id", t.TaskID, "kind", t.Kind, "started_at", t.StartedAt)
			stats.LongRunningAlerts++
		}
	}
	return nil
}
