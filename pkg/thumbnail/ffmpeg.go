package thumbnail

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// FFmpegExtractor implements FrameExtractor by shelling out to the ffmpeg
// binary, grounded on original_source/ml-service/src/workers/
// thumbnail_extractor.py's extract_frame_with_ffmpeg: seek before input for
// fast seeking, pull one frame, scale to maxWidthPx preserving aspect
// ratio, encode at a fixed JPEG quality, overwrite existing output.
type FFmpegExtractor struct {
	// Quality is ffmpeg's -q:v value (2-31, lower is better). 5 targets
	// roughly 10-20KB per thumbnail.
	Quality int
}

// NewFFmpegExtractor constructs an FFmpegExtractor with the source's
// default quality setting.
func NewFFmpegExtractor() *FFmpegExtractor {
	return &FFmpegExtractor{Quality: 5}
}

// ExtractFrame runs ffmpeg to pull the frame at timestampMs and write it as
// a JPEG to outputPath.
func (f *FFmpegExtractor) ExtractFrame(ctx context.Context, videoPath string, timestampMs int64, outputPath string, maxWidthPx int) error {
	tsSeconds := strconv.FormatFloat(float64(timestampMs)/1000, 'f', 3, 64)
	quality := f.Quality
	if quality == 0 {
		quality = 5
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", tsSeconds,
		"-i", videoPath,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", maxWidthPx),
		"-q:v", strconv.Itoa(quality),
		"-y", outputPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("thumbnail: ffmpeg: %w: %s", err, out)
	}
	return nil
}
