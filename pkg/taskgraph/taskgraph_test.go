package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/framewright/corpus/pkg/models"
)

func TestAllKinds_IncludesEveryDeclaredKind(t *testing.T) {
	all := AllKinds()
	assert.Len(t, all, 10)
	assert.Contains(t, all, models.TaskHash)
	assert.Contains(t, all, models.TaskThumbnailExtraction)
}

func TestResourceClassOf(t *testing.T) {
	assert.Equal(t, models.ResourceCPU, ResourceClassOf(models.TaskHash))
	assert.Equal(t, models.ResourceGPU, ResourceClassOf(models.TaskSceneDetection))
	assert.Equal(t, models.ResourceCPU, ResourceClassOf(models.TaskOCR))
}

func TestLanguageModeOf(t *testing.T) {
	assert.Equal(t, models.LanguageRequired, LanguageModeOf(models.TaskOCR))
	assert.Equal(t, models.LanguageOptional, LanguageModeOf(models.TaskTranscription))
	assert.Equal(t, models.LanguageNone, LanguageModeOf(models.TaskSceneDetection))
}

func TestIsLanguageHelpers(t *testing.T) {
	assert.True(t, IsLanguageRequired(models.TaskOCR))
	assert.False(t, IsLanguageRequired(models.TaskTranscription))

	assert.True(t, IsLanguageOptional(models.TaskTranscription))
	assert.False(t, IsLanguageOptional(models.TaskOCR))

	assert.True(t, IsLanguageAgnostic(models.TaskSceneDetection))
	assert.False(t, IsLanguageAgnostic(models.TaskOCR))
}

func TestPriorityOf_OrderedTiers(t *testing.T) {
	assert.Equal(t, PriorityHash, PriorityOf(models.TaskHash))
	assert.Equal(t, PriorityML, PriorityOf(models.TaskTranscription))
	assert.Equal(t, PriorityDerivative, PriorityOf(models.TaskTopicExtraction))
	assert.Greater(t, PriorityOf(models.TaskHash), PriorityOf(models.TaskTranscription))
	assert.Greater(t, PriorityOf(models.TaskTranscription), PriorityOf(models.TaskTopicExtraction))
}

func TestDependenciesOf(t *testing.T) {
	assert.Equal(t, []models.TaskKind{models.TaskHash}, DependenciesOf(models.TaskTranscription))
	assert.Empty(t, DependenciesOf(models.TaskHash))
	assert.Empty(t, DependenciesOf(models.TaskThumbnailExtraction))
	assert.Len(t, DependenciesOf(models.TaskTopicExtraction), 6)
}

func TestIsReady_Hash(t *testing.T) {
	assert.True(t, IsReady(models.TaskHash, models.Asset{Status: models.AssetDiscovered, ContentHash: nil}))

	hash := "abc"
	assert.False(t, IsReady(models.TaskHash, models.Asset{Status: models.AssetDiscovered, ContentHash: &hash}))
	assert.False(t, IsReady(models.TaskHash, models.Asset{Status: models.AssetHashed}))
}

func TestIsReady_MLKinds(t *testing.T) {
	for _, status := range []models.AssetStatus{models.AssetHashed, models.AssetProcessing, models.AssetCompleted} {
		assert.True(t, IsReady(models.TaskTranscription, models.Asset{Status: status}), "status %s should unlock ML kinds", status)
	}
	assert.False(t, IsReady(models.TaskTranscription, models.Asset{Status: models.AssetDiscovered}))
	assert.False(t, IsReady(models.TaskTranscription, models.Asset{Status: models.AssetFailed}))
}

func TestIsReady_DerivativeKinds(t *testing.T) {
	for _, kind := range []models.TaskKind{models.TaskTopicExtraction, models.TaskEmbeddingGeneration, models.TaskThumbnailExtraction} {
		assert.True(t, IsReady(kind, models.Asset{Status: models.AssetProcessing}))
		assert.True(t, IsReady(kind, models.Asset{Status: models.AssetCompleted}))
		assert.False(t, IsReady(kind, models.Asset{Status: models.AssetHashed}))
		assert.False(t, IsReady(kind, models.Asset{Status: models.AssetDiscovered}))
	}
}

func TestMLKinds_MatchesSixMLKinds(t *testing.T) {
	kinds := MLKinds()
	assert.Len(t, kinds, 6)
	assert.Contains(t, kinds, models.TaskTranscription)
	assert.Contains(t, kinds, models.TaskOCR)
	assert.NotContains(t, kinds, models.TaskHash)
	assert.NotContains(t, kinds, models.TaskTopicExtraction)
}
