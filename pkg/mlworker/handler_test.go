package mlworker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/broker"
	"github.com/framewright/corpus/pkg/models"
)

func validResult() InferenceResult {
	return InferenceResult{
		RunID:           "run-1",
		ConfigHash:      "cfg-hash",
		InputHash:       "input-hash",
		Producer:        "whisper",
		ProducerVersion: "1.0.0",
		ModelProfile:    models.ProfileBalanced,
		Items: []InferenceItem{
			{StartMs: 0, EndMs: 1000, Payload: json.RawMessage(`{"text":"hi"}`)},
		},
	}
}

func TestValidateProvenance_Valid(t *testing.T) {
	assert.NoError(t, validateProvenance(validResult()))
}

func TestValidateProvenance_MissingField(t *testing.T) {
	cases := []func(*InferenceResult){
		func(r *InferenceResult) { r.RunID = "" },
		func(r *InferenceResult) { r.ConfigHash = "" },
		func(r *InferenceResult) { r.InputHash = "" },
		func(r *InferenceResult) { r.Producer = "" },
		func(r *InferenceResult) { r.ProducerVersion = "" },
		func(r *InferenceResult) { r.ModelProfile = "" },
	}
	for _, mutate := range cases {
		r := validResult()
		mutate(&r)
		err := validateProvenance(r)
		require.Error(t, err)
		var apiErr *apierr.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, apierr.CodeMissingProvenance, apiErr.Code)
	}
}

func TestTransform_SkipsInvalidSpans(t *testing.T) {
	r := InferenceResult{
		RunID:           "run-1",
		Producer:        "whisper",
		ProducerVersion: "1.0.0",
		ModelProfile:    models.ProfileBalanced,
		ConfigHash:      "cfg",
		InputHash:       "in",
		Items: []InferenceItem{
			{StartMs: 0, EndMs: 1000, Payload: json.RawMessage(`{}`)},
			{StartMs: -1, EndMs: 1000, Payload: json.RawMessage(`{}`)},
			{StartMs: 500, EndMs: 100, Payload: json.RawMessage(`{}`)},
			{StartMs: 1000, EndMs: 2000, Payload: json.RawMessage(`{}`)},
		},
	}

	envs := transform("asset-1", models.TaskTranscription, models.ArtifactTranscriptSegment, 1, r)

	require.Len(t, envs, 2)
	assert.Equal(t, int64(0), envs[0].SpanStartMs)
	assert.Equal(t, int64(1000), envs[1].SpanStartMs)
	for _, e := range envs {
		assert.Equal(t, "asset-1", e.AssetID)
		assert.Equal(t, models.ArtifactTranscriptSegment, e.Kind)
		assert.Equal(t, 1, e.SchemaVersion)
		assert.Equal(t, "run-1", e.RunID)
		assert.NotEmpty(t, e.ArtifactID)
	}
}

func TestTransform_EmptyItemsYieldsNoEnvelopes(t *testing.T) {
	r := InferenceResult{RunID: "run-1"}
	envs := transform("asset-1", models.TaskTranscription, models.ArtifactTranscriptSegment, 1, r)
	assert.Empty(t, envs)
}

func TestValidateInputHash_NoConfigSkipsCheck(t *testing.T) {
	h := &Handler{}
	asset := models.Asset{AssetID: "a1"}
	job := broker.Job{AssetID: "a1"}
	assert.NoError(t, h.validateInputHash(job, asset))
}

func TestValidateInputHash_MatchingHash(t *testing.T) {
	h := &Handler{}
	hash := "abc123"
	asset := models.Asset{AssetID: "a1", ContentHash: &hash}
	job := broker.Job{AssetID: "a1", Config: json.RawMessage(`{"input_hash":"abc123"}`)}
	assert.NoError(t, h.validateInputHash(job, asset))
}

func TestValidateInputHash_MismatchedHash(t *testing.T) {
	h := &Handler{}
	hash := "abc123"
	asset := models.Asset{AssetID: "a1", ContentHash: &hash}
	job := broker.Job{AssetID: "a1", Config: json.RawMessage(`{"input_hash":"different"}`)}

	err := h.validateInputHash(job, asset)
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeInputHashMismatch, apiErr.Code)
}

func TestValidateInputHash_NilContentHash(t *testing.T) {
	h := &Handler{}
	asset := models.Asset{AssetID: "a1", ContentHash: nil}
	job := broker.Job{AssetID: "a1", Config: json.RawMessage(`{"input_hash":"abc123"}`)}

	err := h.validateInputHash(job, asset)
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeInputHashMismatch, apiErr.Code)
}
