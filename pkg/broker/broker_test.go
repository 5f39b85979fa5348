package broker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) *RedisBroker {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client)
}

func TestEnqueue_DedupsByJobID(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()
	job := Job{JobID: "job-1", TaskID: "task-1", TaskType: "hash", AssetID: "asset-1"}

	enqueued, err := b.Enqueue(ctx, "jobs", job)
	require.NoError(t, err)
	assert.True(t, enqueued)

	enqueued, err = b.Enqueue(ctx, "jobs", job)
	require.NoError(t, err)
	assert.False(t, enqueued, "re-enqueueing the same job id is a no-op")
}

func TestEnqueueThenPop_RoundTrips(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()
	job := Job{JobID: "job-1", TaskID: "task-1", TaskType: "hash", AssetID: "asset-1", VideoPath: "/videos/a.mp4"}

	_, err := b.Enqueue(ctx, "jobs", job)
	require.NoError(t, err)

	popped, err := b.Pop(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, job, popped)
}

func TestPop_EmptyQueueReturnsNotFound(t *testing.T) {
	b := newTestBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := b.Pop(ctx, "jobs")
	require.Error(t, err)
}

func TestExists(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	ok, err := b.Exists(ctx, "jobs", "job-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = b.Enqueue(ctx, "jobs", Job{JobID: "job-1"})
	require.NoError(t, err)

	ok, err = b.Exists(ctx, "jobs", "job-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStatus_UnknownJobReturnsErrNotFound(t *testing.T) {
	b := newTestBroker(t)
	_, err := b.Status(context.Background(), "jobs", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusTransitions(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()
	_, err := b.Enqueue(ctx, "jobs", Job{JobID: "job-1"})
	require.NoError(t, err)

	status, err := b.Status(ctx, "jobs", "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, status)

	require.NoError(t, b.MarkRunning(ctx, "jobs", "job-1"))
	status, err = b.Status(ctx, "jobs", "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status)

	require.NoError(t, b.MarkDone(ctx, "jobs", "job-1"))
	status, err = b.Status(ctx, "jobs", "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, status)
}

func TestMarkFailed_RecordsReason(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()
	_, err := b.Enqueue(ctx, "jobs", Job{JobID: "job-1"})
	require.NoError(t, err)

	require.NoError(t, b.MarkFailed(ctx, "jobs", "job-1", "inference timed out"))

	status, err := b.Status(ctx, "jobs", "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)

	reason, err := b.client.HGet(ctx, metaKey("jobs")+":errors", "job-1").Result()
	require.NoError(t, err)
	assert.Equal(t, "inference timed out", reason)
}

func TestRemove_ClearsMetaEntry(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()
	_, err := b.Enqueue(ctx, "jobs", Job{JobID: "job-1"})
	require.NoError(t, err)

	require.NoError(t, b.Remove(ctx, "jobs", "job-1"))

	ok, err := b.Exists(ctx, "jobs", "job-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnqueue_DistinctQueuesAreIndependent(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	enqueued, err := b.Enqueue(ctx, "jobs", Job{JobID: "job-1"})
	require.NoError(t, err)
	assert.True(t, enqueued)

	enqueued, err = b.Enqueue(ctx, "ml_jobs", Job{JobID: "job-1"})
	require.NoError(t, err)
	assert.True(t, enqueued, "the same job id may be enqueued on a different queue")
}
