package mlworker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/framewright/corpus/pkg/broker"
)

// HTTPInferencer is the default Inferencer: it forwards a job to an
// external inference service over HTTP and decodes its response. The
// concrete model backing that service is out of scope per spec §1 — this
// type only owns the wire boundary.
type HTTPInferencer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPInferencer constructs an HTTPInferencer posting to baseURL +
// "/infer/{taskType}".
func NewHTTPInferencer(baseURL string, timeout time.Duration) *HTTPInferencer {
	return &HTTPInferencer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type inferRequest struct {
	TaskID    string          `json:"task_id"`
	AssetID   string          `json:"asset_id"`
	VideoPath string          `json:"video_path"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Infer implements Inferencer.
func (h *HTTPInferencer) Infer(ctx context.Context, job broker.Job) (InferenceResult, error) {
	body, err := json.Marshal(inferRequest{
		TaskID:    job.TaskID,
		AssetID:   job.AssetID,
		VideoPath: job.VideoPath,
		Config:    job.Config,
	})
	if err != nil {
		return InferenceResult{}, fmt.Errorf("mlworker: marshal inference request: %w", err)
	}

	url := fmt.Sprintf("%s/infer/%s", h.baseURL, job.TaskType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return InferenceResult{}, fmt.Errorf("mlworker: build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return InferenceResult{}, fmt.Errorf("mlworker: inference request for %s: %w", job.TaskID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return InferenceResult{}, fmt.Errorf("mlworker: inference service returned %d for %s: %s", resp.StatusCode, job.TaskID, respBody)
	}

	var result InferenceResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return InferenceResult{}, fmt.Errorf("mlworker: decode inference response for %s: %w", job.TaskID, err)
	}
	return result, nil
}
