package models

// The source registers ML kinds under two independent naming schemes: the
// task registry uses underscore form ("object_detection"), the schema
// registry and projections use dot form ("object.detection"). This package
// picks dot form as the one canonical ArtifactKind and keeps a single
// boundary translation table here rather than letting both forms leak
// across the codebase.
var taskKindToArtifactKind = map[TaskKind]ArtifactKind{
	TaskTranscription:   ArtifactTranscriptSegment,
	TaskSceneDetection:  ArtifactScene,
	TaskObjectDetection: ArtifactObjectDetection,
	TaskFaceDetection:   ArtifactFaceDetection,
	TaskPlaceDetection:  ArtifactPlaceClassification,
	TaskOCR:             ArtifactOCRText,
}

var artifactKindToTaskKind map[ArtifactKind]TaskKind

func init() {
	artifactKindToTaskKind = make(map[ArtifactKind]TaskKind, len(taskKindToArtifactKind))
	for tk, ak := range taskKindToArtifactKind {
		artifactKindToTaskKind[ak] = tk
	}
}

// ArtifactKindForTask returns the canonical artifact kind an ML task kind
// produces, and false for task kinds with no artifact output (hash,
// thumbnail_extraction, topic_extraction, embedding_generation).
func ArtifactKindForTask(kind TaskKind) (ArtifactKind, bool) {
	ak, ok := taskKindToArtifactKind[kind]
	return ak, ok
}

// TaskKindForArtifact returns the task kind that produces a given artifact
// kind, the reverse of ArtifactKindForTask, and false for artifact kinds no
// task kind produces.
func TaskKindForArtifact(kind ArtifactKind) (TaskKind, bool) {
	tk, ok := artifactKindToTaskKind[kind]
	return tk, ok
}
