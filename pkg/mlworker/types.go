// Package mlworker implements the ML worker (C10): consumes ml_jobs,
// re-validates input provenance, invokes a kind-specific inference
// collaborator, transforms the result into artifact envelopes, and
// batch-persists them via the artifact store. No task-table writes happen
// here; the backend worker (C9) observes completion by polling C2.
package mlworker

import (
	"context"
	"encoding/json"

	"github.com/framewright/corpus/pkg/broker"
	"github.com/framewright/corpus/pkg/models"
)

// InferenceItem is one kind-specific result produced by a run: a temporal
// span plus an already kind-shaped JSON payload ready for schema
// validation.
type InferenceItem struct {
	StartMs int64
	EndMs   int64
	Payload json.RawMessage
}

// InferenceResult is the full response from one inference collaborator
// invocation: provenance fields shared by every item in the run, plus the
// items themselves.
type InferenceResult struct {
	RunID           string
	ConfigHash      string
	InputHash       string
	Producer        string
	ProducerVersion string
	ModelProfile    models.ModelProfile
	Items           []InferenceItem
}

// Inferencer is the external, kind-specific inference collaborator. Real
// model invocation lives outside the core per spec §1's non-goals; this
// interface is the seam a concrete ML backend plugs into.
type Inferencer interface {
	Infer(ctx context.Context, job broker.Job) (InferenceResult, error)
}

// AssetLookup is the subset of asset persistence the ML worker needs to
// re-validate input hash before running inference.
type AssetLookup interface {
	GetByID(ctx context.Context, assetID string) (models.Asset, error)
}

// jobConfig is the optional payload carried on broker.Job.Config, set by
// the backend worker when forwarding to ml_jobs.
type jobConfig struct {
	InputHash string `json:"input_hash,omitempty"`
}
