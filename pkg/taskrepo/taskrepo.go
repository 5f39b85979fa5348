// Package taskrepo implements the task repository (C6): CRUD over tasks
// plus the atomic dequeue operation workers use to claim pending work. The
// locking pattern (SELECT ... FOR UPDATE SKIP LOCKED inside one
// transaction) is carried over from the teacher's ent-based
// claimNextSession, translated to hand-written SQL over sqlx since ent's
// generated query builder isn't reproducible here.
package taskrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/models"
)

// ErrNoTaskAvailable indicates no pending task of the requested kind exists.
var ErrNoTaskAvailable = errors.New("taskrepo: no task available")

// Repository provides task CRUD and atomic dequeue over a Postgres pool.
type Repository struct {
	db *sqlx.DB
}

// New constructs a Repository over db.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new pending task. Returns a Duplicate apierr.Error if
// the (asset_id, kind, language) unique constraint is violated.
func (r *Repository) Create(ctx context.Context, t models.Task) error {
	const q = `
		INSERT INTO tasks (task_id, asset_id, kind, language, status, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, q, t.TaskID, t.AssetID, t.Kind, t.Language, t.Status, t.Priority, t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apierr.Wrap(apierr.KindValidation, apierr.CodeDuplicate,
				fmt.Sprintf("task already exists for asset=%s kind=%s", t.AssetID, t.Kind), err)
		}
		return fmt.Errorf("taskrepo: create: %w", err)
	}
	return nil
}

// GetByID loads one task by id.
func (r *Repository) GetByID(ctx context.Context, taskID string) (models.Task, error) {
	const q = `SELECT * FROM tasks WHERE task_id = $1`
	var t models.Task
	if err := r.db.GetContext(ctx, &t, q, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, apierr.New(apierr.KindNotFound, apierr.CodeArtifactNotFound, "task not found")
		}
		return models.Task{}, fmt.Errorf("taskrepo: get by id: %w", err)
	}
	return t, nil
}

// FindByVideoAndType finds a task for (asset_id, kind), if any. Language is
// not part of the match; when several rows match, which one is returned is
// not defined.
func (r *Repository) FindByVideoAndType(ctx context.Context, assetID string, kind models.TaskKind) (models.Task, bool, error) {
	const q = `SELECT * FROM tasks WHERE asset_id = $1 AND kind = $2 LIMIT 1`
	var t models.Task
	err := r.db.GetContext(ctx, &t, q, assetID, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, false, nil
	}
	if err != nil {
		return models.Task{}, false, fmt.Errorf("taskrepo: find by video and type: %w", err)
	}
	return t, true, nil
}

// FindByStatus lists all tasks in the given status.
func (r *Repository) FindByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	const q = `SELECT * FROM tasks WHERE status = $1 ORDER BY created_at ASC`
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, q, status); err != nil {
		return nil, fmt.Errorf("taskrepo: find by status: %w", err)
	}
	return tasks, nil
}

// FindByAsset lists every task for assetID, in any status.
func (r *Repository) FindByAsset(ctx context.Context, assetID string) ([]models.Task, error) {
	const q = `SELECT * FROM tasks WHERE asset_id = $1 ORDER BY created_at ASC`
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, q, assetID); err != nil {
		return nil, fmt.Errorf("taskrepo: find by asset: %w", err)
	}
	return tasks, nil
}

// ListAll returns every task, newest first. Used by the show-tasks
// maintenance command (§6).
func (r *Repository) ListAll(ctx context.Context) ([]models.Task, error) {
	const q = `SELECT * FROM tasks ORDER BY created_at DESC`
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, q); err != nil {
		return nil, fmt.Errorf("taskrepo: list all: %w", err)
	}
	return tasks, nil
}

// AtomicDequeuePending claims the highest-priority pending task of kind,
// tie-broken by oldest created_at, under FOR UPDATE SKIP LOCKED so
// concurrent workers never claim the same row. Returns ErrNoTaskAvailable
// when nothing is eligible.
func (r *Repository) AtomicDequeuePending(ctx context.Context, kind models.TaskKind) (models.Task, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Task{}, fmt.Errorf("taskrepo: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const selectQ = `
		SELECT * FROM tasks
		WHERE kind = $1 AND status = 'pending'
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	var t models.Task
	if err := tx.GetContext(ctx, &t, selectQ, kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, ErrNoTaskAvailable
		}
		return models.Task{}, fmt.Errorf("taskrepo: dequeue select: %w", err)
	}

	now := time.Now()
	const updateQ = `UPDATE tasks SET status = 'running', started_at = $2 WHERE task_id = $1`
	if _, err := tx.ExecContext(ctx, updateQ, t.TaskID, now); err != nil {
		return models.Task{}, fmt.Errorf("taskrepo: dequeue claim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Task{}, fmt.Errorf("taskrepo: dequeue commit: %w", err)
	}

	t.Status = models.TaskRunning
	t.StartedAt = &now
	return t, nil
}

// UpdateStatus transitions a task's status, stamping started_at/completed_at
// and error as applicable. Used by the orchestrator and reconciler for all
// non-dequeue transitions.
func (r *Repository) UpdateStatus(ctx context.Context, taskID string, status models.TaskStatus, taskErr *string) error {
	now := time.Now()
	var started, completed *time.Time
	switch status {
	case models.TaskRunning:
		started = &now
	case models.TaskCompleted, models.TaskFailed, models.TaskCancelled:
		completed = &now
	}

	const q = `
		UPDATE tasks SET
			status = $2,
			started_at = COALESCE($3, started_at),
			completed_at = COALESCE($4, completed_at),
			error = $5
		WHERE task_id = $1`

	if _, err := r.db.ExecContext(ctx, q, taskID, status, started, completed, taskErr); err != nil {
		return fmt.Errorf("taskrepo: update status: %w", err)
	}
	return nil
}

// ResetToPending clears a failed or drifted task back to pending, clearing
// error/started_at/completed_at, used by retry_failed_tasks and by the
// reconciler's running-sync when a job has disappeared from the broker.
func (r *Repository) ResetToPending(ctx context.Context, taskID string) error {
	const q = `
		UPDATE tasks SET
			status = 'pending', error = NULL, started_at = NULL, completed_at = NULL
		WHERE task_id = $1`
	if _, err := r.db.ExecContext(ctx, q, taskID); err != nil {
		return fmt.Errorf("taskrepo: reset to pending: %w", err)
	}
	return nil
}
