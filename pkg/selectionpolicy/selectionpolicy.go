// Package selectionpolicy implements the selection policy manager (C4):
// CRUD over per-(asset, kind) selection policies plus the implicit default
// used when no row is stored.
package selectionpolicy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/models"
)

// Manager provides CRUD over selection policies.
type Manager struct {
	db *sqlx.DB
}

// New constructs a Manager over db.
func New(db *sqlx.DB) *Manager {
	return &Manager{db: db}
}

// Get returns the stored policy for (assetID, kind), or false if none
// exists (callers wanting the implicit default should use GetDefaultPolicy).
func (m *Manager) Get(ctx context.Context, assetID string, kind models.ArtifactKind) (models.SelectionPolicy, bool, error) {
	const q = `SELECT * FROM selection_policies WHERE asset_id = $1 AND kind = $2`
	var p models.SelectionPolicy
	err := m.db.GetContext(ctx, &p, q, assetID, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SelectionPolicy{}, false, nil
	}
	if err != nil {
		return models.SelectionPolicy{}, false, fmt.Errorf("selectionpolicy: get: %w", err)
	}
	return p, true, nil
}

// GetDefaultPolicy returns the stored policy, or an implicit "latest"
// policy when none is stored.
func (m *Manager) GetDefaultPolicy(ctx context.Context, assetID string, kind models.ArtifactKind) (models.SelectionPolicy, error) {
	p, ok, err := m.Get(ctx, assetID, kind)
	if err != nil {
		return models.SelectionPolicy{}, err
	}
	if !ok {
		return models.DefaultSelectionPolicy(assetID, kind), nil
	}
	return p, nil
}

// Upsert validates and replaces the policy for (p.AssetID, p.Kind) in
// place, bumping updated_at. profile mode requires PreferredProfile;
// pinned mode requires PinnedRunID; unknown modes are rejected.
func (m *Manager) Upsert(ctx context.Context, p models.SelectionPolicy) error {
	if err := validate(p); err != nil {
		return err
	}

	const q = `
		INSERT INTO selection_policies (asset_id, kind, mode, preferred_profile, pinned_run_id, pinned_artifact_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (asset_id, kind) DO UPDATE SET
			mode = EXCLUDED.mode,
			preferred_profile = EXCLUDED.preferred_profile,
			pinned_run_id = EXCLUDED.pinned_run_id,
			pinned_artifact_id = EXCLUDED.pinned_artifact_id,
			updated_at = now()`

	_, err := m.db.ExecContext(ctx, q, p.AssetID, p.Kind, p.Mode, p.PreferredProfile, p.PinnedRunID, p.PinnedArtifactID)
	if err != nil {
		return fmt.Errorf("selectionpolicy: upsert: %w", err)
	}
	return nil
}

func validate(p models.SelectionPolicy) error {
	switch p.Mode {
	case models.SelectionDefault, models.SelectionLatest, models.SelectionBestQuality:
	case models.SelectionProfile:
		if p.PreferredProfile == nil {
			return apierr.New(apierr.KindValidation, apierr.CodeInvalidValue, "profile mode requires preferred_profile")
		}
	case models.SelectionPinned:
		if p.PinnedRunID == nil {
			return apierr.New(apierr.KindValidation, apierr.CodeInvalidValue, "pinned mode requires pinned_run_id")
		}
	default:
		return apierr.New(apierr.KindValidation, apierr.CodeInvalidValue, fmt.Sprintf("unknown selection mode %q", p.Mode))
	}
	return nil
}
