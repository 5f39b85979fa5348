// Package assetstore implements CRUD over the asset (video) table. Asset
// rows are core data per spec §3; the discovery process that notices new
// files on disk is the external collaborator (out of scope per spec §1) —
// this package only owns the row once discovery hands it an asset_id and
// file_path.
package assetstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/models"
)

// Repository provides asset CRUD over a Postgres pool.
type Repository struct {
	db *sqlx.DB
}

// New constructs a Repository over db.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new asset row with the status carried by a.
func (r *Repository) Create(ctx context.Context, a models.Asset) error {
	const q = `
		INSERT INTO assets (asset_id, file_path, content_hash, file_created_at, duration_ms, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())`

	_, err := r.db.ExecContext(ctx, q, a.AssetID, a.FilePath, a.ContentHash, a.FileCreatedAt, a.DurationMs, a.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apierr.Wrap(apierr.KindValidation, apierr.CodeDuplicate,
				fmt.Sprintf("asset %s already exists", a.AssetID), err)
		}
		return fmt.Errorf("assetstore: create: %w", err)
	}
	return nil
}

// GetByID loads one asset by id.
func (r *Repository) GetByID(ctx context.Context, assetID string) (models.Asset, error) {
	const q = `SELECT * FROM assets WHERE asset_id = $1`
	var a models.Asset
	if err := r.db.GetContext(ctx, &a, q, assetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Asset{}, apierr.New(apierr.KindNotFound, apierr.CodeVideoNotFound, "asset not found")
		}
		return models.Asset{}, fmt.Errorf("assetstore: get by id: %w", err)
	}
	return a, nil
}

// Exists reports whether assetID names a known asset, without loading the
// full row — used by read paths (C12) that only need to turn an unknown
// asset into VIDEO_NOT_FOUND.
func (r *Repository) Exists(ctx context.Context, assetID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM assets WHERE asset_id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, q, assetID); err != nil {
		return false, fmt.Errorf("assetstore: exists: %w", err)
	}
	return exists, nil
}

// ListByStatus lists every asset in the given status.
func (r *Repository) ListByStatus(ctx context.Context, status models.AssetStatus) ([]models.Asset, error) {
	const q = `SELECT * FROM assets WHERE status = $1 ORDER BY created_at ASC`
	var assets []models.Asset
	if err := r.db.SelectContext(ctx, &assets, q, status); err != nil {
		return nil, fmt.Errorf("assetstore: list by status: %w", err)
	}
	return assets, nil
}

// SetStatus transitions an asset's status, bumping updated_at.
func (r *Repository) SetStatus(ctx context.Context, assetID string, status models.AssetStatus) error {
	const q = `UPDATE assets SET status = $2, updated_at = now() WHERE asset_id = $1`
	if _, err := r.db.ExecContext(ctx, q, assetID, status); err != nil {
		return fmt.Errorf("assetstore: set status: %w", err)
	}
	return nil
}
