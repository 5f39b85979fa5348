package jumpfind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/models"
)

func TestValidateDirection(t *testing.T) {
	assert.NoError(t, validateDirection(DirectionNext))
	assert.NoError(t, validateDirection(DirectionPrev))

	err := validateDirection(Direction("sideways"))
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.KindValidation, apiErr.Kind)
	assert.Equal(t, apierr.CodeInvalidDirection, apiErr.Code)
}

func TestValidateKind(t *testing.T) {
	assert.NoError(t, validateKind(models.ArtifactTranscriptSegment))
	assert.NoError(t, validateKind(models.ArtifactOCRText))

	err := validateKind(models.ArtifactKind("not_a_kind"))
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeInvalidKind, apiErr.Code)
}

func TestValidateConfidence(t *testing.T) {
	assert.NoError(t, validateConfidence(nil))

	ok := 0.5
	assert.NoError(t, validateConfidence(&ok))

	zero := 0.0
	assert.NoError(t, validateConfidence(&zero))

	one := 1.0
	assert.NoError(t, validateConfidence(&one))

	tooLow := -0.01
	err := validateConfidence(&tooLow)
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeInvalidConfidence, apiErr.Code)

	tooHigh := 1.01
	err = validateConfidence(&tooHigh)
	require.Error(t, err)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeInvalidConfidence, apiErr.Code)
}

func TestValidateLimit(t *testing.T) {
	assert.NoError(t, validateLimit(0))
	assert.NoError(t, validateLimit(1))
	assert.NoError(t, validateLimit(maxLimit))

	err := validateLimit(-1)
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeInvalidLimit, apiErr.Code)

	err = validateLimit(maxLimit + 1)
	require.Error(t, err)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeInvalidLimit, apiErr.Code)
}

func TestFilterJoinFor(t *testing.T) {
	table, join := filterJoinFor(models.ArtifactObjectDetection)
	assert.Equal(t, "object_labels", table)
	assert.Contains(t, join, "object_labels")

	table, join = filterJoinFor(models.ArtifactFaceDetection)
	assert.Equal(t, "face_clusters", table)
	assert.Contains(t, join, "face_clusters")

	table, join = filterJoinFor(models.ArtifactTranscriptSegment)
	assert.Equal(t, "", table)
	assert.Equal(t, "", join)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("short", 160))

	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	got := snippet(long, 160)
	assert.Equal(t, 161, len([]rune(got))) // 160 chars + ellipsis rune
	assert.Equal(t, long[:160]+"…", got)
}

func TestSortHits(t *testing.T) {
	hits := []FindHit{
		{Target: Target{StartMs: 300}},
		{Target: Target{StartMs: 100}},
		{Target: Target{StartMs: 200}},
	}

	asc := append([]FindHit(nil), hits...)
	sortHits(asc, true)
	require.Len(t, asc, 3)
	assert.Equal(t, []int64{100, 200, 300}, []int64{asc[0].StartMs, asc[1].StartMs, asc[2].StartMs})

	desc := append([]FindHit(nil), hits...)
	sortHits(desc, false)
	assert.Equal(t, []int64{300, 200, 100}, []int64{desc[0].StartMs, desc[1].StartMs, desc[2].StartMs})
}

func TestCompileJumpQuery_NextIncludesLowerBound(t *testing.T) {
	p := WithinVideoParams{
		AssetID:   "asset-1",
		Kind:      models.ArtifactTranscriptSegment,
		Direction: DirectionNext,
		FromMs:    5000,
	}
	sqlStr, args := compileJumpQuery(p, models.SelectionLatest)

	assert.Contains(t, sqlStr, "a.span_start_ms >= $3")
	assert.Contains(t, sqlStr, "ORDER BY a.span_start_ms ASC")
	require.Len(t, args, 3)
	assert.Equal(t, "asset-1", args[0])
	assert.Equal(t, models.ArtifactTranscriptSegment, args[1])
	assert.Equal(t, int64(5000), args[2])
}

func TestCompileJumpQuery_PrevUsesDescendingOrder(t *testing.T) {
	p := WithinVideoParams{
		AssetID:   "asset-1",
		Kind:      models.ArtifactTranscriptSegment,
		Direction: DirectionPrev,
		FromMs:    5000,
	}
	sqlStr, _ := compileJumpQuery(p, models.SelectionLatest)

	assert.Contains(t, sqlStr, "a.span_start_ms < $3")
	assert.Contains(t, sqlStr, "ORDER BY a.span_start_ms DESC")
}

func TestCompileJumpQuery_LabelFilterOnlyAppliesToObjectLabels(t *testing.T) {
	label := "car"
	p := WithinVideoParams{
		AssetID:   "asset-1",
		Kind:      models.ArtifactObjectDetection,
		Direction: DirectionNext,
		FromMs:    0,
		Label:     &label,
	}
	sqlStr, args := compileJumpQuery(p, models.SelectionLatest)

	assert.Contains(t, sqlStr, "f.label = $4")
	require.Len(t, args, 4)
	assert.Equal(t, "car", args[3])

	// Label is ignored for a kind with no object_labels join.
	p.Kind = models.ArtifactTranscriptSegment
	sqlStr, args = compileJumpQuery(p, models.SelectionLatest)
	assert.NotContains(t, sqlStr, "f.label")
	require.Len(t, args, 3)
}
