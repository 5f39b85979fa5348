package mlworker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/artifactstore"
	"github.com/framewright/corpus/pkg/broker"
	"github.com/framewright/corpus/pkg/models"
	"github.com/framewright/corpus/pkg/schema"
)

// Handler implements the C10 business logic for one ml_jobs entry.
//
// It also closes out the job's entry in the ml_jobs broker meta hash on
// every terminal outcome — nothing else observes ml_jobs job ids, so
// without this the hash grows without bound.
type Handler struct {
	assets      AssetLookup
	artifacts   *artifactstore.Store
	registry    *schema.Registry
	inferencers map[models.TaskKind]Inferencer
	b           broker.Broker
	mlJobsQueue string
}

// NewHandler constructs a Handler. inferencers maps each ML-capable task
// kind to its external inference collaborator; kinds absent from the map
// fail fast with INVALID_KIND. b/mlJobsQueue are the broker and queue the
// job was claimed from, used to close out its meta entry.
func NewHandler(assets AssetLookup, artifacts *artifactstore.Store, registry *schema.Registry, inferencers map[models.TaskKind]Inferencer, b broker.Broker, mlJobsQueue string) *Handler {
	return &Handler{assets: assets, artifacts: artifacts, registry: registry, inferencers: inferencers, b: b, mlJobsQueue: mlJobsQueue}
}

// Handle re-validates input provenance, runs inference, transforms the
// result into envelopes, and batch-persists them. It never writes to the
// task table; C9 observes completion by polling the artifact store.
func (h *Handler) Handle(ctx context.Context, job broker.Job) error {
	asset, err := h.assets.GetByID(ctx, job.AssetID)
	if err != nil {
		failErr := apierr.Wrap(apierr.KindFatal, apierr.CodeAssetUnknown,
			fmt.Sprintf("asset %s not found", job.AssetID), err)
		h.finishFailed(ctx, job.JobID, failErr.Error())
		return failErr
	}

	if err := h.validateInputHash(job, asset); err != nil {
		h.finishFailed(ctx, job.JobID, err.Error())
		return err
	}

	kind := models.TaskKind(job.TaskType)
	inferencer, ok := h.inferencers[kind]
	if !ok {
		failErr := apierr.New(apierr.KindFatal, apierr.CodeInvalidKind,
			fmt.Sprintf("no inference collaborator registered for kind %q", kind))
		h.finishFailed(ctx, job.JobID, failErr.Error())
		return failErr
	}

	result, err := inferencer.Infer(ctx, job)
	if err != nil {
		failErr := fmt.Errorf("mlworker: inference for task %s: %w", job.TaskID, err)
		h.finishFailed(ctx, job.JobID, failErr.Error())
		return failErr
	}

	if err := validateProvenance(result); err != nil {
		h.finishFailed(ctx, job.JobID, err.Error())
		return err
	}

	artifactKind, ok := models.ArtifactKindForTask(kind)
	if !ok {
		failErr := apierr.New(apierr.KindFatal, apierr.CodeInvalidKind,
			fmt.Sprintf("kind %q produces no artifact output", kind))
		h.finishFailed(ctx, job.JobID, failErr.Error())
		return failErr
	}

	version, ok := h.registry.CurrentVersion(artifactKind)
	if !ok {
		failErr := apierr.New(apierr.KindFatal, apierr.CodeSchemaInvalid,
			fmt.Sprintf("no schema registered for artifact kind %q", artifactKind))
		h.finishFailed(ctx, job.JobID, failErr.Error())
		return failErr
	}

	envs := transform(job.AssetID, kind, artifactKind, version, result)
	if len(envs) == 0 {
		slog.Warn("mlworker: inference produced no valid items", "task_id", job.TaskID, "kind", kind)
		h.finishDone(ctx, job.JobID)
		return nil
	}

	if err := h.artifacts.BatchCreate(ctx, envs); err != nil {
		failErr := fmt.Errorf("mlworker: batch create for task %s: %w", job.TaskID, err)
		h.finishFailed(ctx, job.JobID, failErr.Error())
		return failErr
	}

	slog.Info("mlworker: job complete", "task_id", job.TaskID, "kind", kind, "artifact_count", len(envs))
	h.finishDone(ctx, job.JobID)
	return nil
}

// finishDone marks jobID done and removes its meta entry on the ml_jobs
// queue. Broker bookkeeping errors are logged, not propagated: C9 learns the
// outcome by polling the artifact store, not from this meta entry.
func (h *Handler) finishDone(ctx context.Context, jobID string) {
	if err := h.b.MarkDone(ctx, h.mlJobsQueue, jobID); err != nil {
		slog.Warn("broker mark done failed", "job_id", jobID, "error", err)
	}
	if err := h.b.Remove(ctx, h.mlJobsQueue, jobID); err != nil {
		slog.Warn("broker remove failed", "job_id", jobID, "error", err)
	}
}

func (h *Handler) finishFailed(ctx context.Context, jobID, reason string) {
	if err := h.b.MarkFailed(ctx, h.mlJobsQueue, jobID, reason); err != nil {
		slog.Warn("broker mark failed failed", "job_id", jobID, "error", err)
	}
	if err := h.b.Remove(ctx, h.mlJobsQueue, jobID); err != nil {
		slog.Warn("broker remove failed", "job_id", jobID, "error", err)
	}
}

// validateInputHash re-validates that the content hash the task was
// enqueued against still matches the asset's current content hash. A job
// carrying no expected hash (Config unset) skips this check; there is
// nothing to compare against.
func (h *Handler) validateInputHash(job broker.Job, asset models.Asset) error {
	if len(job.Config) == 0 {
		return nil
	}

	var cfg jobConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return fmt.Errorf("mlworker: decoding job config: %w", err)
	}
	if cfg.InputHash == "" {
		return nil
	}
	if asset.ContentHash == nil || *asset.ContentHash != cfg.InputHash {
		return apierr.New(apierr.KindFatal, apierr.CodeInputHashMismatch,
			fmt.Sprintf("asset %s content hash no longer matches input_hash", asset.AssetID))
	}
	return nil
}

// validateProvenance enforces §4.10.1's "missing provenance = hard error".
func validateProvenance(r InferenceResult) error {
	if r.RunID == "" || r.ConfigHash == "" || r.InputHash == "" || r.Producer == "" || r.ProducerVersion == "" || r.ModelProfile == "" {
		return apierr.New(apierr.KindFatal, apierr.CodeMissingProvenance, "inference response missing required provenance fields")
	}
	return nil
}

// transform converts one InferenceResult into envelopes per §4.10.1: one
// envelope per item, skipping items with invalid spans (log and continue,
// never fail the batch).
func transform(assetID string, taskKind models.TaskKind, artifactKind models.ArtifactKind, schemaVersion int, r InferenceResult) []models.ArtifactEnvelope {
	envs := make([]models.ArtifactEnvelope, 0, len(r.Items))
	now := time.Now()

	for i, item := range r.Items {
		if item.StartMs < 0 || item.EndMs < 0 || item.StartMs > item.EndMs {
			slog.Warn("mlworker: skipping item with invalid span", "asset_id", assetID, "kind", taskKind, "index", i,
				"start_ms", item.StartMs, "end_ms", item.EndMs)
			continue
		}

		envs = append(envs, models.ArtifactEnvelope{
			ArtifactID:      fmt.Sprintf("%s_%s_%s_%d", assetID, taskKind, r.RunID, i),
			AssetID:         assetID,
			Kind:            artifactKind,
			SchemaVersion:   schemaVersion,
			CreatedAt:       now,
			SpanStartMs:     item.StartMs,
			SpanEndMs:       item.EndMs,
			Payload:         item.Payload,
			Producer:        r.Producer,
			ProducerVersion: r.ProducerVersion,
			ModelProfile:    r.ModelProfile,
			ConfigHash:      r.ConfigHash,
			InputHash:       r.InputHash,
			RunID:           r.RunID,
		})
	}

	return envs
}
