// Package taskgraph holds the static task-kind declarations (C5): the
// dependency DAG, resource class, language mode, priority, and per-asset
// readiness rules. Everything here is a value — no I/O, no registry to
// initialize, evaluated purely from an in-memory asset/task view.
package taskgraph

import "github.com/framewright/corpus/pkg/models"

// Priority tiers, highest first.
const (
	PriorityHash       = 100
	PriorityML         = 50
	PriorityDerivative = 10
)

// kindSpec is the static declaration for one task kind.
type kindSpec struct {
	Resource     models.ResourceClass
	Language     models.LanguageMode
	Priority     int
	Dependencies []models.TaskKind
}

// registry is the fixed DAG declaration: hash -> {ML kinds} -> {derivative
// kinds}. thumbnail_extraction depends on nothing explicit here; it is
// driven by the union of artifact timestamps (see pkg/thumbnail), not by
// the orchestrator's dependency walk.
var registry = map[models.TaskKind]kindSpec{
	models.TaskHash: {
		Resource: models.ResourceCPU,
		Language: models.LanguageNone,
		Priority: PriorityHash,
	},
	models.TaskTranscription: {
		Resource:     models.ResourceCPU,
		Language:     models.LanguageOptional,
		Priority:     PriorityML,
		Dependencies: []models.TaskKind{models.TaskHash},
	},
	models.TaskSceneDetection: {
		Resource:     models.ResourceGPU,
		Language:     models.LanguageNone,
		Priority:     PriorityML,
		Dependencies: []models.TaskKind{models.TaskHash},
	},
	models.TaskObjectDetection: {
		Resource:     models.ResourceGPU,
		Language:     models.LanguageNone,
		Priority:     PriorityML,
		Dependencies: []models.TaskKind{models.TaskHash},
	},
	models.TaskFaceDetection: {
		Resource:     models.ResourceGPU,
		Language:     models.LanguageNone,
		Priority:     PriorityML,
		Dependencies: []models.TaskKind{models.TaskHash},
	},
	models.TaskOCR: {
		Resource:     models.ResourceCPU,
		Language:     models.LanguageRequired,
		Priority:     PriorityML,
		Dependencies: []models.TaskKind{models.TaskHash},
	},
	models.TaskPlaceDetection: {
		Resource:     models.ResourceGPU,
		Language:     models.LanguageNone,
		Priority:     PriorityML,
		Dependencies: []models.TaskKind{models.TaskHash},
	},
	models.TaskTopicExtraction: {
		Resource: models.ResourceCPU,
		Language: models.LanguageNone,
		Priority: PriorityDerivative,
		Dependencies: []models.TaskKind{
			models.TaskTranscription, models.TaskSceneDetection, models.TaskObjectDetection,
			models.TaskFaceDetection, models.TaskOCR, models.TaskPlaceDetection,
		},
	},
	models.TaskEmbeddingGeneration: {
		Resource: models.ResourceCPU,
		Language: models.LanguageNone,
		Priority: PriorityDerivative,
		Dependencies: []models.TaskKind{
			models.TaskTranscription, models.TaskSceneDetection, models.TaskObjectDetection,
			models.TaskFaceDetection, models.TaskOCR, models.TaskPlaceDetection,
		},
	},
	models.TaskThumbnailExtraction: {
		Resource: models.ResourceCPU,
		Language: models.LanguageNone,
		Priority: PriorityDerivative,
	},
}

// AllKinds returns every declared task kind.
func AllKinds() []models.TaskKind {
	kinds := make([]models.TaskKind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	return kinds
}

// ResourceClassOf returns the resource class for kind.
func ResourceClassOf(kind models.TaskKind) models.ResourceClass {
	return registry[kind].Resource
}

// LanguageModeOf returns the language mode for kind.
func LanguageModeOf(kind models.TaskKind) models.LanguageMode {
	return registry[kind].Language
}

// PriorityOf returns the scheduling priority for kind.
func PriorityOf(kind models.TaskKind) int {
	return registry[kind].Priority
}

// DependenciesOf returns the task kinds that must complete before kind may
// run.
func DependenciesOf(kind models.TaskKind) []models.TaskKind {
	return registry[kind].Dependencies
}

// IsLanguageRequired reports whether kind must be parameterized by language.
func IsLanguageRequired(kind models.TaskKind) bool {
	return registry[kind].Language == models.LanguageRequired
}

// IsLanguageOptional reports whether kind may optionally carry a language.
func IsLanguageOptional(kind models.TaskKind) bool {
	return registry[kind].Language == models.LanguageOptional
}

// IsLanguageAgnostic reports whether kind never carries a language.
func IsLanguageAgnostic(kind models.TaskKind) bool {
	return registry[kind].Language == models.LanguageNone
}

// IsReady evaluates the readiness rule (§4.5) for kind given the current
// asset status:
//   - hash is ready iff the asset is discovered and has no hash yet.
//   - ML kinds are ready iff the asset has a hash (hashed/processing/completed).
//   - Derivative kinds are ready iff the asset is processing or completed.
func IsReady(kind models.TaskKind, asset models.Asset) bool {
	switch kind {
	case models.TaskHash:
		return asset.Status == models.AssetDiscovered && asset.ContentHash == nil
	case models.TaskTopicExtraction, models.TaskEmbeddingGeneration, models.TaskThumbnailExtraction:
		return asset.Status == models.AssetProcessing || asset.Status == models.AssetCompleted
	default:
		return asset.Status == models.AssetHashed || asset.Status == models.AssetProcessing || asset.Status == models.AssetCompleted
	}
}

// MLKinds returns the task kinds unlocked directly by a completed hash,
// excluding derivative and thumbnail kinds (the ml-worker command registers
// one inferencer per kind in this list; these are the "six ML kinds" of the
// end-to-end scenario).
func MLKinds() []models.TaskKind {
	return []models.TaskKind{
		models.TaskTranscription,
		models.TaskSceneDetection,
		models.TaskObjectDetection,
		models.TaskFaceDetection,
		models.TaskOCR,
		models.TaskPlaceDetection,
	}
}
