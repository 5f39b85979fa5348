// Package artifactstore implements the artifact store (C2): persists
// immutable envelopes, synchronously drives projection sync in the same
// transaction, and serves asset/kind/span queries filtered by selection
// policy. Grounded on the teacher's transactional-write pattern
// (pkg/queue/orphan.go's markSessionTimedOut — session+derived-state update
// inside one transaction), generalized to envelope+projection.
package artifactstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/models"
	"github.com/framewright/corpus/pkg/projection"
	"github.com/framewright/corpus/pkg/schema"
)

// Store persists artifact envelopes and their projections.
type Store struct {
	db       *sqlx.DB
	registry *schema.Registry
}

// New constructs a Store over db, validating envelope payloads against reg.
func New(db *sqlx.DB, reg *schema.Registry) *Store {
	return &Store{db: db, registry: reg}
}

// Create validates, inserts, and projects one envelope in a single
// transaction: either both the envelope row and its projection rows become
// visible, or neither does.
func (s *Store) Create(ctx context.Context, env models.ArtifactEnvelope) error {
	return s.BatchCreate(ctx, []models.ArtifactEnvelope{env})
}

// BatchCreate validates, inserts, and projects every envelope inside one
// transaction, committing once. A single failure rolls the whole batch
// back.
func (s *Store) BatchCreate(ctx context.Context, envs []models.ArtifactEnvelope) error {
	if len(envs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("artifactstore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, env := range envs {
		if env.SpanStartMs < 0 || env.SpanEndMs < 0 || env.SpanStartMs > env.SpanEndMs {
			return apierr.New(apierr.KindValidation, apierr.CodeInvalidValue,
				fmt.Sprintf("artifact %s has invalid span [%d, %d]", env.ArtifactID, env.SpanStartMs, env.SpanEndMs))
		}

		if _, err := s.registry.Validate(env.Kind, env.SchemaVersion, env.Payload); err != nil {
			return err
		}

		if err := s.insertEnvelope(ctx, tx, env); err != nil {
			return err
		}

		if err := projection.Sync(ctx, tx, s.registry, env); err != nil {
			return fmt.Errorf("artifactstore: projection sync for %s: %w", env.ArtifactID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("artifactstore: commit: %w", err)
	}
	return nil
}

func (s *Store) insertEnvelope(ctx context.Context, tx *sqlx.Tx, env models.ArtifactEnvelope) error {
	const q = `
		INSERT INTO artifacts (
			artifact_id, asset_id, kind, schema_version, created_at,
			span_start_ms, span_end_ms, payload,
			producer, producer_version, model_profile, config_hash, input_hash, run_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err := tx.ExecContext(ctx, q,
		env.ArtifactID, env.AssetID, env.Kind, env.SchemaVersion, env.CreatedAt,
		env.SpanStartMs, env.SpanEndMs, env.Payload,
		env.Producer, env.ProducerVersion, env.ModelProfile, env.ConfigHash, env.InputHash, env.RunID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return apierr.Wrap(apierr.KindValidation, apierr.CodeDuplicate,
					fmt.Sprintf("artifact %s already exists", env.ArtifactID), err)
			case "23503":
				return apierr.Wrap(apierr.KindNotFound, apierr.CodeAssetUnknown,
					fmt.Sprintf("asset %s unknown", env.AssetID), err)
			}
		}
		return fmt.Errorf("artifactstore: insert envelope: %w", err)
	}
	return nil
}

// GetByID loads one envelope by artifact id.
func (s *Store) GetByID(ctx context.Context, artifactID string) (models.ArtifactEnvelope, error) {
	const q = `SELECT * FROM artifacts WHERE artifact_id = $1`
	var env models.ArtifactEnvelope
	if err := s.db.GetContext(ctx, &env, q, artifactID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ArtifactEnvelope{}, apierr.New(apierr.KindNotFound, apierr.CodeArtifactNotFound, "artifact not found")
		}
		return models.ArtifactEnvelope{}, fmt.Errorf("artifactstore: get by id: %w", err)
	}
	return env, nil
}

// ListAll returns every persisted envelope, oldest first. Used by the
// resync-projections maintenance command (§6); not reachable from any
// read-path API since it ignores selection policy entirely.
func (s *Store) ListAll(ctx context.Context) ([]models.ArtifactEnvelope, error) {
	const q = `SELECT * FROM artifacts ORDER BY created_at ASC`
	var envs []models.ArtifactEnvelope
	if err := s.db.SelectContext(ctx, &envs, q); err != nil {
		return nil, fmt.Errorf("artifactstore: list all: %w", err)
	}
	return envs, nil
}

// ResyncProjection re-runs projection sync for one already-persisted
// envelope, in its own transaction. Used by the resync-projections
// maintenance command to rebuild projection rows after a schema or
// transformer change, grounded on original_source's
// commands/resync_projections.py (one session/transaction per artifact so a
// single failure doesn't abort the run).
func (s *Store) ResyncProjection(ctx context.Context, env models.ArtifactEnvelope) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("artifactstore: resync begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := projection.Sync(ctx, tx, s.registry, env); err != nil {
		return fmt.Errorf("artifactstore: resync projection for %s: %w", env.ArtifactID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("artifactstore: resync commit for %s: %w", env.ArtifactID, err)
	}
	return nil
}

// Query parameterizes GetByAsset/GetBySpan.
type Query struct {
	AssetID   string
	Kind      *models.ArtifactKind
	StartMs   *int64
	EndMs     *int64
	Overlap   bool // true for get_by_span (overlap), false for get_by_asset (containment)
	Selection models.SelectionPolicy
}

// GetByAsset returns envelopes for assetID, optionally filtered by kind and
// by full containment in [StartMs, EndMs], subject to Selection. Querying
// an unknown asset returns an empty slice, never an error.
func (s *Store) GetByAsset(ctx context.Context, q Query) ([]models.ArtifactEnvelope, error) {
	q.Overlap = false
	return s.query(ctx, q)
}

// GetBySpan returns envelopes for (assetID, kind) whose span overlaps
// [StartMs, EndMs], subject to Selection.
func (s *Store) GetBySpan(ctx context.Context, q Query) ([]models.ArtifactEnvelope, error) {
	q.Overlap = true
	return s.query(ctx, q)
}

func (s *Store) query(ctx context.Context, q Query) ([]models.ArtifactEnvelope, error) {
	sqlStr, args := compileQuery(q)
	var envs []models.ArtifactEnvelope
	if err := s.db.SelectContext(ctx, &envs, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("artifactstore: query: %w", err)
	}
	return envs, nil
}

// compileQuery builds the SQL for a Query, applying the selection filter
// table from §4.2. "latest" is expressed as a single window subquery over
// created_at rather than a client-side re-query-then-filter pass, per the
// design note on keeping selection O(result) not O(history).
func compileQuery(q Query) (string, []any) {
	where := []string{"asset_id = $1"}
	args := []any{q.AssetID}
	argN := 2
	kindArgIdx := 0

	if q.Kind != nil {
		kindArgIdx = argN
		where = append(where, fmt.Sprintf("kind = $%d", argN))
		args = append(args, *q.Kind)
		argN++
	}
	if q.StartMs != nil && q.EndMs != nil {
		if q.Overlap {
			where = append(where, fmt.Sprintf("span_start_ms <= $%d AND span_end_ms >= $%d", argN, argN+1))
			args = append(args, *q.EndMs, *q.StartMs)
			argN += 2
		} else {
			where = append(where, fmt.Sprintf("span_start_ms >= $%d AND span_end_ms <= $%d", argN, argN+1))
			args = append(args, *q.StartMs, *q.EndMs)
			argN += 2
		}
	}

	orderBy := "span_start_ms, artifact_id"

	switch q.Selection.Mode {
	case models.SelectionLatest:
		kindFilter := ""
		if kindArgIdx != 0 {
			kindFilter = fmt.Sprintf(" AND a2.kind = $%d", kindArgIdx)
		}
		where = append(where, fmt.Sprintf(`run_id = (
			SELECT run_id FROM artifacts a2
			WHERE a2.asset_id = $1%s
			ORDER BY a2.created_at DESC LIMIT 1
		)`, kindFilter))
	case models.SelectionProfile:
		if q.Selection.PreferredProfile != nil {
			where = append(where, fmt.Sprintf("model_profile = $%d", argN))
			args = append(args, *q.Selection.PreferredProfile)
			argN++
		}
	case models.SelectionPinned:
		if q.Selection.PinnedRunID != nil {
			where = append(where, fmt.Sprintf("run_id = $%d", argN))
			args = append(args, *q.Selection.PinnedRunID)
			argN++
		}
		if q.Selection.PinnedArtifactID != nil {
			where = append(where, fmt.Sprintf("artifact_id = $%d", argN))
			args = append(args, *q.Selection.PinnedArtifactID)
			argN++
		}
	case models.SelectionBestQuality:
		orderBy = `CASE model_profile
			WHEN 'high_quality' THEN 2 WHEN 'balanced' THEN 1 ELSE 0 END DESC, ` + orderBy
	}

	whereClause := ""
	for i, w := range where {
		if i == 0 {
			whereClause = w
		} else {
			whereClause += " AND " + w
		}
	}

	sqlStr := fmt.Sprintf("SELECT * FROM artifacts WHERE %s ORDER BY %s", whereClause, orderBy)
	return sqlStr, args
}

// Delete removes an envelope and its projection rows (explicit
// transformer-delete inside the same transaction as the envelope delete —
// see the open-question decision in DESIGN.md — rather than relying on a
// DB-level ON DELETE CASCADE).
func (s *Store) Delete(ctx context.Context, artifactID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("artifactstore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var kind models.ArtifactKind
	if err := tx.GetContext(ctx, &kind, `SELECT kind FROM artifacts WHERE artifact_id = $1`, artifactID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apierr.New(apierr.KindNotFound, apierr.CodeArtifactNotFound, "artifact not found")
		}
		return fmt.Errorf("artifactstore: delete lookup: %w", err)
	}

	if err := projection.Delete(ctx, tx, kind, artifactID); err != nil {
		return fmt.Errorf("artifactstore: delete projection: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE artifact_id = $1`, artifactID); err != nil {
		return fmt.Errorf("artifactstore: delete envelope: %w", err)
	}

	return tx.Commit()
}
