// Package jumpfind implements the jump/find read services (C12): within-
// video jump, within-video full-text find, and global (cross-asset) jump.
// All three are pure read paths over the artifact table, the FTS
// projections, and the selection policy engine (C4); none mutate state.
package jumpfind

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/models"
	"github.com/framewright/corpus/pkg/selectionpolicy"
)

// Direction is the navigation direction for a jump or find.
type Direction string

// Directions.
const (
	DirectionNext Direction = "next"
	DirectionPrev Direction = "prev"
)

// Source selects which FTS projection(s) find_within_video consults.
type Source string

// Sources.
const (
	SourceTranscript Source = "transcript"
	SourceOCR        Source = "ocr"
	SourceAll        Source = "all"
)

const maxLimit = 500

// AssetLookup is the subset of asset persistence jumpfind needs to turn an
// unknown asset_id into VIDEO_NOT_FOUND instead of an empty result.
type AssetLookup interface {
	Exists(ctx context.Context, assetID string) (bool, error)
}

// Target is one navigation result: an artifact id and its temporal span.
type Target struct {
	ArtifactID string
	AssetID    string
	Kind       models.ArtifactKind
	StartMs    int64
	EndMs      int64
}

// FindHit is one result of find_within_video, tagged by its source
// projection and carrying a text snippet.
type FindHit struct {
	Target
	SourceTag Source
	Snippet   string
}

// WithinVideoParams parameterizes JumpWithinVideo.
type WithinVideoParams struct {
	AssetID       string
	Kind          models.ArtifactKind
	Direction     Direction
	FromMs        int64
	Label         *string
	ClusterID     *string
	MinConfidence *float64
}

// FindParams parameterizes FindWithinVideo.
type FindParams struct {
	AssetID   string
	QueryText string
	FromMs    int64
	Direction Direction
	Source    Source
	Limit     int
}

// NavigateParams unifies the two within-video operations behind the single
// entry point §4.12 describes them as: Label selects jump-by-envelope
// semantics, QueryText selects find-by-text semantics. Supplying both is
// CONFLICTING_FILTERS.
type NavigateParams struct {
	AssetID       string
	Kind          models.ArtifactKind
	Direction     Direction
	FromMs        int64
	Label         *string
	ClusterID     *string
	MinConfidence *float64
	QueryText     *string
	Source        Source
	Limit         int
}

// GlobalParams parameterizes GlobalJump.
type GlobalParams struct {
	Kind          models.ArtifactKind
	Direction     Direction
	FromAssetID   string
	FromMs        int64
	Label         *string
	MinConfidence *float64
	Limit         int
}

// Service implements the C12 read operations.
type Service struct {
	db       *sqlx.DB
	assets   AssetLookup
	policies *selectionpolicy.Manager
}

// New constructs a Service.
func New(db *sqlx.DB, assets AssetLookup, policies *selectionpolicy.Manager) *Service {
	return &Service{db: db, assets: assets, policies: policies}
}

var knownArtifactKinds = map[models.ArtifactKind]bool{
	models.ArtifactTranscriptSegment:   true,
	models.ArtifactScene:               true,
	models.ArtifactObjectDetection:     true,
	models.ArtifactFaceDetection:       true,
	models.ArtifactPlaceClassification: true,
	models.ArtifactOCRText:             true,
	models.ArtifactVideoMetadata:       true,
}

func validateDirection(d Direction) error {
	if d != DirectionNext && d != DirectionPrev {
		return apierr.New(apierr.KindValidation, apierr.CodeInvalidDirection, fmt.Sprintf("invalid direction %q", d))
	}
	return nil
}

func validateKind(k models.ArtifactKind) error {
	if !knownArtifactKinds[k] {
		return apierr.New(apierr.KindValidation, apierr.CodeInvalidKind, fmt.Sprintf("invalid artifact kind %q", k))
	}
	return nil
}

func validateConfidence(c *float64) error {
	if c != nil && (*c < 0 || *c > 1) {
		return apierr.New(apierr.KindValidation, apierr.CodeInvalidConfidence, "min_confidence must be in [0,1]")
	}
	return nil
}

func validateLimit(limit int) error {
	if limit < 0 || limit > maxLimit {
		return apierr.New(apierr.KindValidation, apierr.CodeInvalidLimit, fmt.Sprintf("limit must be in [0,%d]", maxLimit))
	}
	return nil
}

func (s *Service) requireAsset(ctx context.Context, assetID string) error {
	ok, err := s.assets.Exists(ctx, assetID)
	if err != nil {
		return fmt.Errorf("jumpfind: asset existence check: %w", err)
	}
	if !ok {
		return apierr.New(apierr.KindNotFound, apierr.CodeVideoNotFound, fmt.Sprintf("asset %s not found", assetID))
	}
	return nil
}

// JumpWithinVideo finds the nearest envelope in direction from fromMs,
// filtered by the optional label/cluster_id/min_confidence filters. next
// selects min span_start_ms >= fromMs; prev selects max span_start_ms <
// fromMs. Of the asset's selection policy only the latest mode is applied
// (restricting to the most recently created run); under default, profile,
// pinned or best_quality no run, profile or quality filter is applied and
// envelopes of every run are candidates.
func (s *Service) JumpWithinVideo(ctx context.Context, p WithinVideoParams) (*Target, error) {
	if err := validateKind(p.Kind); err != nil {
		return nil, err
	}
	if err := validateDirection(p.Direction); err != nil {
		return nil, err
	}
	if err := validateConfidence(p.MinConfidence); err != nil {
		return nil, err
	}
	if err := s.requireAsset(ctx, p.AssetID); err != nil {
		return nil, err
	}

	policy, err := s.policies.GetDefaultPolicy(ctx, p.AssetID, p.Kind)
	if err != nil {
		return nil, err
	}

	sqlStr, args := compileJumpQuery(p, policy.Mode)
	var t Target
	err = s.db.GetContext(ctx, &t, sqlStr, args...)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jumpfind: within-video jump: %w", err)
	}
	return &t, nil
}

// Navigate dispatches to JumpWithinVideo or FindWithinVideo depending on
// which of Label/QueryText is set, rejecting requests that set both.
func (s *Service) Navigate(ctx context.Context, p NavigateParams) (*Target, []FindHit, error) {
	if p.Label != nil && p.QueryText != nil {
		return nil, nil, apierr.New(apierr.KindValidation, apierr.CodeConflictingFilters,
			"label and query filters are mutually exclusive")
	}

	if p.QueryText != nil {
		hits, err := s.FindWithinVideo(ctx, FindParams{
			AssetID:   p.AssetID,
			QueryText: *p.QueryText,
			FromMs:    p.FromMs,
			Direction: p.Direction,
			Source:    p.Source,
			Limit:     p.Limit,
		})
		return nil, hits, err
	}

	t, err := s.JumpWithinVideo(ctx, WithinVideoParams{
		AssetID:       p.AssetID,
		Kind:          p.Kind,
		Direction:     p.Direction,
		FromMs:        p.FromMs,
		Label:         p.Label,
		ClusterID:     p.ClusterID,
		MinConfidence: p.MinConfidence,
	})
	return t, nil, err
}

func compileJumpQuery(p WithinVideoParams, mode models.SelectionMode) (string, []any) {
	filterTable, joinSQL := filterJoinFor(p.Kind)

	where := []string{"a.asset_id = $1", "a.kind = $2"}
	args := []any{p.AssetID, p.Kind}
	argN := 3

	if p.Direction == DirectionNext {
		where = append(where, fmt.Sprintf("a.span_start_ms >= $%d", argN))
	} else {
		where = append(where, fmt.Sprintf("a.span_start_ms < $%d", argN))
	}
	args = append(args, p.FromMs)
	argN++

	if p.Label != nil && filterTable == "object_labels" {
		where = append(where, fmt.Sprintf("f.label = $%d", argN))
		args = append(args, *p.Label)
		argN++
	}
	if p.ClusterID != nil && filterTable == "face_clusters" {
		where = append(where, fmt.Sprintf("f.cluster_id = $%d", argN))
		args = append(args, *p.ClusterID)
		argN++
	}
	if p.MinConfidence != nil && filterTable != "" {
		where = append(where, fmt.Sprintf("f.confidence >= $%d", argN))
		args = append(args, *p.MinConfidence)
		argN++
	}

	if mode == models.SelectionLatest {
		where = append(where, fmt.Sprintf(`a.run_id = (
			SELECT run_id FROM artifacts a2
			WHERE a2.asset_id = $1 AND a2.kind = $2
			ORDER BY a2.created_at DESC LIMIT 1
		)`))
	}

	order := "a.span_start_ms ASC"
	if p.Direction == DirectionPrev {
		order = "a.span_start_ms DESC"
	}

	sqlStr := fmt.Sprintf(
		`SELECT a.artifact_id, a.asset_id, a.kind, a.span_start_ms AS start_ms, a.span_end_ms AS end_ms
		 FROM artifacts a%s
		 WHERE %s
		 ORDER BY %s
		 LIMIT 1`,
		joinSQL, strings.Join(where, " AND "), order)

	return sqlStr, args
}

func filterJoinFor(kind models.ArtifactKind) (table, join string) {
	switch kind {
	case models.ArtifactObjectDetection:
		return "object_labels", " JOIN object_labels f ON f.artifact_id = a.artifact_id"
	case models.ArtifactFaceDetection:
		return "face_clusters", " JOIN face_clusters f ON f.artifact_id = a.artifact_id"
	default:
		return "", ""
	}
}

// FindWithinVideo consults the FTS projection(s) named by source, merges
// hits across sources sorted by span_start_ms (ascending for next,
// descending for prev), and attaches a source tag plus a snippet.
func (s *Service) FindWithinVideo(ctx context.Context, p FindParams) ([]FindHit, error) {
	if err := validateDirection(p.Direction); err != nil {
		return nil, err
	}
	if err := validateLimit(p.Limit); err != nil {
		return nil, err
	}
	if p.Source != SourceTranscript && p.Source != SourceOCR && p.Source != SourceAll {
		return nil, apierr.New(apierr.KindValidation, apierr.CodeInvalidKind, fmt.Sprintf("invalid source %q", p.Source))
	}
	if err := s.requireAsset(ctx, p.AssetID); err != nil {
		return nil, err
	}

	var hits []FindHit
	if p.Source == SourceTranscript || p.Source == SourceAll {
		h, err := s.findInTable(ctx, "transcript_fts", SourceTranscript, p)
		if err != nil {
			return nil, err
		}
		hits = append(hits, h...)
	}
	if p.Source == SourceOCR || p.Source == SourceAll {
		h, err := s.findInTable(ctx, "ocr_fts", SourceOCR, p)
		if err != nil {
			return nil, err
		}
		hits = append(hits, h...)
	}

	if p.Direction == DirectionNext {
		sortHits(hits, true)
	} else {
		sortHits(hits, false)
	}

	if p.Limit > 0 && len(hits) > p.Limit {
		hits = hits[:p.Limit]
	}
	return hits, nil
}

func (s *Service) findInTable(ctx context.Context, table string, tag Source, p FindParams) ([]FindHit, error) {
	cmp := ">="
	order := "start_ms ASC"
	if p.Direction == DirectionPrev {
		cmp = "<"
		order = "start_ms DESC"
	}

	sqlStr := fmt.Sprintf(
		`SELECT artifact_id, asset_id, start_ms, end_ms, text
		 FROM %s
		 WHERE asset_id = $1 AND start_ms %s $2 AND to_tsvector('english', text) @@ plainto_tsquery('english', $3)
		 ORDER BY %s`,
		table, cmp, order)

	rows := []struct {
		ArtifactID string `db:"artifact_id"`
		AssetID    string `db:"asset_id"`
		StartMs    int64  `db:"start_ms"`
		EndMs      int64  `db:"end_ms"`
		Text       string `db:"text"`
	}{}

	if err := s.db.SelectContext(ctx, &rows, sqlStr, p.AssetID, p.FromMs, p.QueryText); err != nil {
		return nil, fmt.Errorf("jumpfind: find in %s: %w", table, err)
	}

	hits := make([]FindHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, FindHit{
			Target:    Target{ArtifactID: r.ArtifactID, AssetID: r.AssetID, StartMs: r.StartMs, EndMs: r.EndMs},
			SourceTag: tag,
			Snippet:   snippet(r.Text, 160),
		})
	}
	return hits, nil
}

func snippet(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "…"
}

func sortHits(hits []FindHit, ascending bool) {
	for i := 1; i < len(hits); i++ {
		j := i
		for j > 0 {
			less := hits[j].StartMs < hits[j-1].StartMs
			if !ascending {
				less = hits[j].StartMs > hits[j-1].StartMs
			}
			if !less {
				break
			}
			hits[j], hits[j-1] = hits[j-1], hits[j]
			j--
		}
	}
}

// GlobalJump runs the same jump as JumpWithinVideo but across every asset,
// ordered by (file_created_at NULLS LAST, asset_id, span_start_ms) — a
// deliberate choice so results read as a chronological browse across the
// whole corpus rather than an arbitrary artifact_id order.
func (s *Service) GlobalJump(ctx context.Context, p GlobalParams) ([]Target, error) {
	if err := validateKind(p.Kind); err != nil {
		return nil, err
	}
	if err := validateDirection(p.Direction); err != nil {
		return nil, err
	}
	if err := validateConfidence(p.MinConfidence); err != nil {
		return nil, err
	}
	if err := validateLimit(p.Limit); err != nil {
		return nil, err
	}

	filterTable, join := filterJoinFor(p.Kind)

	// file_created_at is nullable; NULLS LAST for ascending browse order
	// means a NULL sorts as "latest", so the row-value comparison below
	// coalesces both sides to the same sentinel rather than mixing NULL
	// into a row comparison (which Postgres treats as unknown, not
	// greater/less).
	const farFuture = "'294276-01-01'::timestamptz"
	fromCreatedAt := fmt.Sprintf(`COALESCE((SELECT file_created_at FROM assets WHERE asset_id = $2), %s)`, farFuture)
	cmpCol := fmt.Sprintf("(COALESCE(asset.file_created_at, %s), a.asset_id, a.span_start_ms)", farFuture)

	where := []string{"a.kind = $1"}
	args := []any{p.Kind}
	argN := 2

	if p.Direction == DirectionNext {
		where = append(where, fmt.Sprintf("%s >= (%s, $%d, $%d)", cmpCol, fromCreatedAt, argN, argN+1))
	} else {
		where = append(where, fmt.Sprintf("%s < (%s, $%d, $%d)", cmpCol, fromCreatedAt, argN, argN+1))
	}
	args = append(args, p.FromAssetID, p.FromMs)
	argN += 2

	if p.Label != nil && filterTable == "object_labels" {
		where = append(where, fmt.Sprintf("f.label = $%d", argN))
		args = append(args, *p.Label)
		argN++
	}
	if p.MinConfidence != nil && filterTable != "" {
		where = append(where, fmt.Sprintf("f.confidence >= $%d", argN))
		args = append(args, *p.MinConfidence)
		argN++
	}

	order := "asset.file_created_at ASC NULLS LAST, a.asset_id ASC, a.span_start_ms ASC"
	if p.Direction == DirectionPrev {
		order = "asset.file_created_at DESC NULLS FIRST, a.asset_id DESC, a.span_start_ms DESC"
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}

	sqlStr := fmt.Sprintf(
		`SELECT a.artifact_id, a.asset_id, a.kind, a.span_start_ms AS start_ms, a.span_end_ms AS end_ms
		 FROM artifacts a
		 JOIN assets asset ON asset.asset_id = a.asset_id%s
		 WHERE %s
		 ORDER BY %s
		 LIMIT %d`,
		join, strings.Join(where, " AND "), order, limit)

	var targets []Target
	if err := s.db.SelectContext(ctx, &targets, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("jumpfind: global jump: %w", err)
	}
	return targets, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
