// Package models defines the core domain types shared across the
// task-orchestration and artifact-provenance subsystem: assets, task kinds,
// tasks, runs, artifact envelopes, projection rows, and selection policies.
package models

import "time"

// AssetStatus is the lifecycle state of a discovered video.
type AssetStatus string

// Asset lifecycle states.
const (
	AssetDiscovered AssetStatus = "discovered"
	AssetHashed     AssetStatus = "hashed"
	AssetProcessing AssetStatus = "processing"
	AssetCompleted  AssetStatus = "completed"
	AssetFailed     AssetStatus = "failed"
)

// Asset is a single ingested video file, the unit over which all task and
// artifact bookkeeping is organized.
type Asset struct {
	AssetID          string     `db:"asset_id"`
	FilePath         string     `db:"file_path"`
	ContentHash      *string    `db:"content_hash"`
	FileCreatedAt    *time.Time `db:"file_created_at"`
	DurationMs       *int64     `db:"duration_ms"`
	Status           AssetStatus `db:"status"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// TaskKind is the closed set of task types the orchestrator can create.
// Values are the underscore form used in the task table and broker payloads;
// see ArtifactKindForTask/TaskKindForArtifact for the boundary translation to
// the dot-form artifact kind names used by the schema registry and
// projections.
type TaskKind string

// Task kinds.
const (
	TaskHash                TaskKind = "hash"
	TaskTranscription       TaskKind = "transcription"
	TaskSceneDetection      TaskKind = "scene_detection"
	TaskObjectDetection     TaskKind = "object_detection"
	TaskFaceDetection       TaskKind = "face_detection"
	TaskOCR                 TaskKind = "ocr"
	TaskPlaceDetection      TaskKind = "place_detection"
	TaskTopicExtraction     TaskKind = "topic_extraction"
	TaskEmbeddingGeneration TaskKind = "embedding_generation"
	TaskThumbnailExtraction TaskKind = "thumbnail_extraction"
)

// ResourceClass is the compute class a task kind requires.
type ResourceClass string

// Resource classes.
const (
	ResourceCPU ResourceClass = "cpu"
	ResourceGPU ResourceClass = "gpu"
)

// LanguageMode describes whether a task kind is parameterized by language.
type LanguageMode string

// Language modes.
const (
	LanguageNone     LanguageMode = "none"
	LanguageRequired LanguageMode = "required"
	LanguageOptional LanguageMode = "optional"
)

// TaskStatus is the lifecycle state of one task row.
type TaskStatus string

// Task statuses.
const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether status is one a task cannot leave on its own.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Task is one unit of work tracked against an asset and kind.
type Task struct {
	TaskID      string     `db:"task_id"`
	AssetID     string     `db:"asset_id"`
	Kind        TaskKind   `db:"kind"`
	Language    *string    `db:"language"`
	Status      TaskStatus `db:"status"`
	Priority    int        `db:"priority"`
	CreatedAt   time.Time  `db:"created_at"`
	StartedAt   *time.Time `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
	Error       *string    `db:"error"`
}

// LanguageKey returns the coalesced language discriminator used in the
// unique (asset_id, kind, language) constraint: "" when Language is nil.
func (t Task) LanguageKey() string {
	if t.Language == nil {
		return ""
	}
	return *t.Language
}

// ModelProfile is the quality class of a producing model.
type ModelProfile string

// Model profiles, ordered worst to best for best_quality selection.
const (
	ProfileFast         ModelProfile = "fast"
	ProfileBalanced     ModelProfile = "balanced"
	ProfileHighQuality  ModelProfile = "high_quality"
)

// profileRank gives best_quality selection its ordering preference.
var profileRank = map[ModelProfile]int{
	ProfileHighQuality: 2,
	ProfileBalanced:    1,
	ProfileFast:        0,
}

// ProfileRank returns a higher-is-better ordering value for p.
func ProfileRank(p ModelProfile) int {
	return profileRank[p]
}

// RunStatus is the lifecycle state of one inference run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run groups all envelopes produced by one logical execution of an ML kind
// over an asset.
type Run struct {
	RunID           string     `db:"run_id"`
	AssetID         string     `db:"asset_id"`
	PipelineProfile string     `db:"pipeline_profile"`
	StartedAt       time.Time  `db:"started_at"`
	FinishedAt      *time.Time `db:"finished_at"`
	Status          RunStatus  `db:"status"`
	Error           *string    `db:"error"`
}

// ArtifactKind is the closed set of artifact kinds produced by ML tasks, in
// canonical dot form (see the comment at the top of naming.go for why dot form was
// chosen as canonical over the underscore form used for TaskKind).
type ArtifactKind string

// Artifact kinds.
const (
	ArtifactTranscriptSegment   ArtifactKind = "transcript.segment"
	ArtifactScene               ArtifactKind = "scene"
	ArtifactObjectDetection     ArtifactKind = "object.detection"
	ArtifactFaceDetection       ArtifactKind = "face.detection"
	ArtifactPlaceClassification ArtifactKind = "place.classification"
	ArtifactOCRText             ArtifactKind = "ocr.text"
	ArtifactVideoMetadata       ArtifactKind = "video.metadata"
)

// ArtifactEnvelope is the central immutable record: one ML-produced item
// with temporal span, validated payload, and provenance. Envelopes are
// never updated after creation; Delete is the only state change.
type ArtifactEnvelope struct {
	ArtifactID     string       `db:"artifact_id"`
	AssetID        string       `db:"asset_id"`
	Kind           ArtifactKind `db:"kind"`
	SchemaVersion  int          `db:"schema_version"`
	CreatedAt      time.Time    `db:"created_at"`
	SpanStartMs    int64        `db:"span_start_ms"`
	SpanEndMs      int64        `db:"span_end_ms"`
	Payload        []byte       `db:"payload"`
	Producer       string       `db:"producer"`
	ProducerVersion string      `db:"producer_version"`
	ModelProfile   ModelProfile `db:"model_profile"`
	ConfigHash     string       `db:"config_hash"`
	InputHash      string       `db:"input_hash"`
	RunID          string       `db:"run_id"`
}

// SelectionMode names which subset of envelopes a selection policy presents.
type SelectionMode string

// Selection modes.
const (
	SelectionDefault     SelectionMode = "default"
	SelectionLatest      SelectionMode = "latest"
	SelectionProfile     SelectionMode = "profile"
	SelectionPinned      SelectionMode = "pinned"
	SelectionBestQuality SelectionMode = "best_quality"
)

// SelectionPolicy is the per-(asset, kind) rule governing which envelopes
// the read path presents. Mutable, never consulted at write time — only by
// the jump/find read path (C12).
type SelectionPolicy struct {
	AssetID           string        `db:"asset_id"`
	Kind              ArtifactKind  `db:"kind"`
	Mode              SelectionMode `db:"mode"`
	PreferredProfile  *ModelProfile `db:"preferred_profile"`
	PinnedRunID       *string       `db:"pinned_run_id"`
	PinnedArtifactID  *string       `db:"pinned_artifact_id"`
	UpdatedAt         time.Time     `db:"updated_at"`
}

// DefaultSelectionPolicy returns the implicit policy used when no row is
// stored for (assetID, kind): latest, per the configuration surface default.
func DefaultSelectionPolicy(assetID string, kind ArtifactKind) SelectionPolicy {
	return SelectionPolicy{
		AssetID: assetID,
		Kind:    kind,
		Mode:    SelectionLatest,
	}
}
