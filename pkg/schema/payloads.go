package schema

import "github.com/framewright/corpus/pkg/models"

// TranscriptSegmentV1 is the payload for transcript.segment v1.
type TranscriptSegmentV1 struct {
	Text string `json:"text" validate:"required"`
}

// SceneV1 is the payload for scene v1.
type SceneV1 struct {
	SceneIndex int `json:"scene_index" validate:"gte=0"`
}

// ObjectDetectionV1 is the payload for object.detection v1.
type ObjectDetectionV1 struct {
	Label      string  `json:"label" validate:"required"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// FaceDetectionV1 is the payload for face.detection v1.
type FaceDetectionV1 struct {
	ClusterID  string  `json:"cluster_id" validate:"required"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// PlaceClassificationV1 is the payload for place.classification v1.
type PlaceClassificationV1 struct {
	Label      string  `json:"label" validate:"required"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// OCRTextV1 is the payload for ocr.text v1.
type OCRTextV1 struct {
	Text string `json:"text" validate:"required"`
}

// VideoMetadataV1 is the payload for video.metadata v1 (GPS subset). Lat/Lon
// are pointers because GPS is optional per item: an envelope with neither
// set carries no geo fix at all, and must not be confused with (0,0).
type VideoMetadataV1 struct {
	Lat     *float64 `json:"lat,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Lon     *float64 `json:"lon,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Alt     *float64 `json:"alt,omitempty"`
	Country *string  `json:"country,omitempty"`
	State   *string  `json:"state,omitempty"`
	City    *string  `json:"city,omitempty"`
}

// Init registers the six concrete payload shapes (schema version 1) that
// the source registers at startup via its own schema-initialization pass.
// Must be called exactly once before any Validate call.
func Init(r *Registry) error {
	registrations := []struct {
		kind models.ArtifactKind
		fn   Validator
	}{
		{models.ArtifactTranscriptSegment, func(p []byte) (any, error) { return jsonDecode[TranscriptSegmentV1](p) }},
		{models.ArtifactScene, func(p []byte) (any, error) { return jsonDecode[SceneV1](p) }},
		{models.ArtifactObjectDetection, func(p []byte) (any, error) { return jsonDecode[ObjectDetectionV1](p) }},
		{models.ArtifactFaceDetection, func(p []byte) (any, error) { return jsonDecode[FaceDetectionV1](p) }},
		{models.ArtifactPlaceClassification, func(p []byte) (any, error) { return jsonDecode[PlaceClassificationV1](p) }},
		{models.ArtifactOCRText, func(p []byte) (any, error) { return jsonDecode[OCRTextV1](p) }},
		{models.ArtifactVideoMetadata, func(p []byte) (any, error) { return jsonDecode[VideoMetadataV1](p) }},
	}

	for _, reg := range registrations {
		if err := r.Register(reg.kind, 1, reg.fn); err != nil {
			return err
		}
	}
	return nil
}
