// Package projection implements per-kind projection sync (C3): a pure,
// deterministic transformer table keyed by artifact kind, dispatched from
// inside the artifact store's write transaction. Per the design note on
// projection sync, dispatch is a table of functions, not a class hierarchy.
package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/models"
	"github.com/framewright/corpus/pkg/schema"
)

// Transformer writes 0..N projection rows for one envelope inside tx. It
// must be pure: given the same envelope + decoded payload it always
// produces the same rows, and it must not observe or mutate anything
// outside tx.
type Transformer func(ctx context.Context, tx *sqlx.Tx, env models.ArtifactEnvelope, decoded any) error

// Deleter removes any projection rows owned by artifactID, used when the
// artifact store deletes an envelope (resolves the open question on
// envelope-delete cascade semantics: an explicit delete call here inside
// the same transaction, not a DB-level ON DELETE CASCADE).
type Deleter func(ctx context.Context, tx *sqlx.Tx, artifactID string) error

var transformers = map[models.ArtifactKind]Transformer{
	models.ArtifactTranscriptSegment: syncTranscriptSegment,
	models.ArtifactOCRText:           syncOCRText,
	models.ArtifactObjectDetection:   syncObjectDetection,
	models.ArtifactFaceDetection:     syncFaceDetection,
	models.ArtifactScene:             syncScene,
	models.ArtifactVideoMetadata:     syncVideoMetadata,
}

var deleters = map[models.ArtifactKind]Deleter{
	models.ArtifactTranscriptSegment: deleteRow("transcript_fts"),
	models.ArtifactOCRText:           deleteRow("ocr_fts"),
	models.ArtifactObjectDetection:   deleteRow("object_labels"),
	models.ArtifactFaceDetection:     deleteRow("face_clusters"),
	models.ArtifactScene:             deleteRow("scene_ranges"),
	models.ArtifactVideoMetadata:     deleteRow("video_locations"),
}

// Sync decodes env's payload (already validated by C2) and routes it to the
// kind's transformer. Unknown kinds are silently skipped — they have no
// projection. Any transformer error propagates so the enclosing envelope
// transaction aborts.
func Sync(ctx context.Context, tx *sqlx.Tx, reg *schema.Registry, env models.ArtifactEnvelope) error {
	t, ok := transformers[env.Kind]
	if !ok {
		return nil
	}

	decoded, err := reg.Validate(env.Kind, env.SchemaVersion, env.Payload)
	if err != nil {
		return err
	}

	return t(ctx, tx, env, decoded)
}

// Delete removes every projection row owned by artifactID for kind. A
// no-op for kinds with no projection.
func Delete(ctx context.Context, tx *sqlx.Tx, kind models.ArtifactKind, artifactID string) error {
	d, ok := deleters[kind]
	if !ok {
		return nil
	}
	return d(ctx, tx, artifactID)
}

func deleteRow(table string) Deleter {
	return func(ctx context.Context, tx *sqlx.Tx, artifactID string) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE artifact_id = $1`, table), artifactID)
		if err != nil {
			return fmt.Errorf("projection: delete from %s: %w", table, err)
		}
		return nil
	}
}

func syncTranscriptSegment(ctx context.Context, tx *sqlx.Tx, env models.ArtifactEnvelope, decoded any) error {
	p, ok := decoded.(schema.TranscriptSegmentV1)
	if !ok {
		return fmt.Errorf("projection: unexpected payload type for transcript.segment")
	}
	const q = `
		INSERT INTO transcript_fts (artifact_id, asset_id, start_ms, end_ms, text)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := tx.ExecContext(ctx, q, env.ArtifactID, env.AssetID, env.SpanStartMs, env.SpanEndMs, p.Text)
	return err
}

func syncOCRText(ctx context.Context, tx *sqlx.Tx, env models.ArtifactEnvelope, decoded any) error {
	p, ok := decoded.(schema.OCRTextV1)
	if !ok {
		return fmt.Errorf("projection: unexpected payload type for ocr.text")
	}
	const q = `
		INSERT INTO ocr_fts (artifact_id, asset_id, start_ms, end_ms, text)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := tx.ExecContext(ctx, q, env.ArtifactID, env.AssetID, env.SpanStartMs, env.SpanEndMs, p.Text)
	return err
}

func syncObjectDetection(ctx context.Context, tx *sqlx.Tx, env models.ArtifactEnvelope, decoded any) error {
	p, ok := decoded.(schema.ObjectDetectionV1)
	if !ok {
		return fmt.Errorf("projection: unexpected payload type for object.detection")
	}
	const q = `
		INSERT INTO object_labels (artifact_id, asset_id, label, confidence, start_ms, end_ms)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := tx.ExecContext(ctx, q, env.ArtifactID, env.AssetID, p.Label, p.Confidence, env.SpanStartMs, env.SpanEndMs)
	return err
}

func syncFaceDetection(ctx context.Context, tx *sqlx.Tx, env models.ArtifactEnvelope, decoded any) error {
	p, ok := decoded.(schema.FaceDetectionV1)
	if !ok {
		return fmt.Errorf("projection: unexpected payload type for face.detection")
	}
	const q = `
		INSERT INTO face_clusters (artifact_id, asset_id, cluster_id, confidence, start_ms, end_ms)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := tx.ExecContext(ctx, q, env.ArtifactID, env.AssetID, p.ClusterID, p.Confidence, env.SpanStartMs, env.SpanEndMs)
	return err
}

func syncScene(ctx context.Context, tx *sqlx.Tx, env models.ArtifactEnvelope, decoded any) error {
	p, ok := decoded.(schema.SceneV1)
	if !ok {
		return fmt.Errorf("projection: unexpected payload type for scene")
	}
	const q = `
		INSERT INTO scene_ranges (artifact_id, asset_id, scene_index, start_ms, end_ms)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := tx.ExecContext(ctx, q, env.ArtifactID, env.AssetID, p.SceneIndex, env.SpanStartMs, env.SpanEndMs)
	return err
}

// syncVideoMetadata writes the geo index only when both lat and lon are
// present; invalid GPS is a hard error that aborts the envelope write (the
// payload's own lat/lon bounds are checked by schema validation before this
// runs, so this only guards presence).
func syncVideoMetadata(ctx context.Context, tx *sqlx.Tx, env models.ArtifactEnvelope, decoded any) error {
	p, ok := decoded.(schema.VideoMetadataV1)
	if !ok {
		return fmt.Errorf("projection: unexpected payload type for video.metadata")
	}

	if p.Lat == nil || p.Lon == nil {
		return nil
	}

	const q = `
		INSERT INTO video_locations (artifact_id, asset_id, lat, lon, alt, country, state, city)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := tx.ExecContext(ctx, q, env.ArtifactID, env.AssetID, p.Lat, p.Lon, p.Alt, p.Country, p.State, p.City)
	return err
}

// DecodeRaw returns the decoded payload outside of a Sync call, surfacing
// apierr.KindSchemaInvalid
// on failure for consistency with Sync's error shape.
func DecodeRaw(reg *schema.Registry, kind models.ArtifactKind, version int, payload []byte) (any, error) {
	decoded, err := reg.Validate(kind, version, payload)
	if err != nil {
		return nil, err
	}
	var probe json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, apierr.New(apierr.KindSchemaInvalid, apierr.CodeSchemaInvalid, "payload is not valid JSON")
	}
	return decoded, nil
}
