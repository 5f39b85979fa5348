// Package thumbnail implements the thumbnail extractor (C13): an idempotent
// frame-extraction task driven by the union of artifact timestamps for an
// asset. Frame extraction itself (ffmpeg invocation) is an external
// collaborator per spec §1's non-goals; this package owns timestamp
// collection, filesystem diffing, and result bookkeeping, grounded on
// original_source/ml-service/src/workers/thumbnail_extractor.py.
package thumbnail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
)

// MaxWidthPx is the max thumbnail width in pixels (proportional height).
const MaxWidthPx = 320

// FrameExtractor is the external collaborator that pulls one frame from a
// video at timestampMs and writes it as a JPEG to outputPath.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoPath string, timestampMs int64, outputPath string, maxWidthPx int) error
}

// Stats summarizes the outcome of one extraction pass.
type Stats struct {
	Generated int
	Skipped   int
	Failed    int
	Total     int
}

// Extractor drives thumbnail generation for one asset.
type Extractor struct {
	db         *sqlx.DB
	extractor  FrameExtractor
	mediaRoot  string
	maxWidthPx int
}

// New constructs an Extractor. mediaRoot is the filesystem root thumbnails
// are written under, as {mediaRoot}/{asset_id}/{timestamp_ms}.jpg. A
// maxWidthPx of 0 falls back to MaxWidthPx.
func New(db *sqlx.DB, extractor FrameExtractor, mediaRoot string, maxWidthPx int) *Extractor {
	if maxWidthPx == 0 {
		maxWidthPx = MaxWidthPx
	}
	return &Extractor{db: db, extractor: extractor, mediaRoot: mediaRoot, maxWidthPx: maxWidthPx}
}

// Run collects the distinct span_start_ms values across every envelope of
// assetID, skips any timestamp whose thumbnail file already exists, and
// extracts the rest. Idempotent by construction: once the filesystem has
// caught up, re-running is a no-op. The task succeeds as a whole iff no
// extraction raised a fatal (non-per-timestamp) error.
func (e *Extractor) Run(ctx context.Context, assetID, videoPath string) (Stats, error) {
	timestamps, err := e.collectTimestamps(ctx, assetID)
	if err != nil {
		return Stats{}, fmt.Errorf("thumbnail: collect timestamps: %w", err)
	}

	stats := Stats{Total: len(timestamps)}

	outDir := filepath.Join(e.mediaRoot, assetID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return stats, fmt.Errorf("thumbnail: create output dir: %w", err)
	}

	for _, ms := range timestamps {
		outPath := filepath.Join(outDir, fmt.Sprintf("%d.jpg", ms))

		if _, err := os.Stat(outPath); err == nil {
			stats.Skipped++
			continue
		}

		if err := e.extractor.ExtractFrame(ctx, videoPath, ms, outPath, e.maxWidthPx); err != nil {
			slog.Warn("thumbnail: frame extraction failed", "asset_id", assetID, "timestamp_ms", ms, "error", err)
			stats.Failed++
			continue
		}
		stats.Generated++
	}

	return stats, nil
}

// collectTimestamps returns the distinct span_start_ms values across every
// envelope of assetID, in ascending order.
func (e *Extractor) collectTimestamps(ctx context.Context, assetID string) ([]int64, error) {
	const q = `SELECT DISTINCT span_start_ms FROM artifacts WHERE asset_id = $1 ORDER BY span_start_ms ASC`
	var ms []int64
	if err := e.db.SelectContext(ctx, &ms, q, assetID); err != nil {
		return nil, err
	}
	return ms, nil
}
