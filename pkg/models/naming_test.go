package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArtifactKindForTask_KnownMLKinds(t *testing.T) {
	cases := []struct {
		task TaskKind
		want ArtifactKind
	}{
		{TaskTranscription, ArtifactTranscriptSegment},
		{TaskSceneDetection, ArtifactScene},
		{TaskObjectDetection, ArtifactObjectDetection},
		{TaskFaceDetection, ArtifactFaceDetection},
		{TaskPlaceDetection, ArtifactPlaceClassification},
		{TaskOCR, ArtifactOCRText},
	}
	for _, c := range cases {
		got, ok := ArtifactKindForTask(c.task)
		assert.True(t, ok, "expected %s to map to an artifact kind", c.task)
		assert.Equal(t, c.want, got)
	}
}

func TestArtifactKindForTask_NonProducingKinds(t *testing.T) {
	for _, tk := range []TaskKind{TaskHash, TaskThumbnailExtraction, TaskTopicExtraction, TaskEmbeddingGeneration} {
		_, ok := ArtifactKindForTask(tk)
		assert.False(t, ok, "expected %s to have no artifact kind", tk)
	}
}

func TestTaskKindForArtifact_RoundTrip(t *testing.T) {
	for tk, ak := range taskKindToArtifactKind {
		got, ok := TaskKindForArtifact(ak)
		assert.True(t, ok)
		assert.Equal(t, tk, got)
	}
}

func TestTaskKindForArtifact_UnknownKind(t *testing.T) {
	_, ok := TaskKindForArtifact(ArtifactKind("not.a.kind"))
	assert.False(t, ok)
}
