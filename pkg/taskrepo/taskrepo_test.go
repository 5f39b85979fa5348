package taskrepo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/assetstore"
	"github.com/framewright/corpus/pkg/models"
	"github.com/framewright/corpus/pkg/taskrepo"
	testdb "github.com/framewright/corpus/test/database"
)

func TestTaskrepo_CreateAndGetByID(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()
	require.NoError(t, assetstore.New(client.DB).Create(ctx, models.Asset{AssetID: "asset-1", FilePath: "/videos/a.mp4", Status: models.AssetDiscovered}))

	repo := taskrepo.New(client.DB)
	task := models.Task{
		TaskID:    "task-1",
		AssetID:   "asset-1",
		Kind:      models.TaskHash,
		Status:    models.TaskPending,
		Priority:  100,
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, task))

	got, err := repo.GetByID(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, task.TaskID, got.TaskID)
	assert.Equal(t, models.TaskPending, got.Status)
}

func TestTaskrepo_Create_DuplicateAssetKindLanguageRejected(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()
	require.NoError(t, assetstore.New(client.DB).Create(ctx, models.Asset{AssetID: "asset-1", FilePath: "/videos/a.mp4", Status: models.AssetDiscovered}))

	repo := taskrepo.New(client.DB)
	task := models.Task{TaskID: "task-1", AssetID: "asset-1", Kind: models.TaskHash, Status: models.TaskPending, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, task))

	dup := task
	dup.TaskID = "task-2"
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeDuplicate, apiErr.Code)
}

func TestTaskrepo_AtomicDequeuePending_NoTaskAvailable(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := taskrepo.New(client.DB)

	_, err := repo.AtomicDequeuePending(context.Background(), models.TaskHash)
	assert.ErrorIs(t, err, taskrepo.ErrNoTaskAvailable)
}

func TestTaskrepo_AtomicDequeuePending_ClaimsHighestPriorityOldest(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()
	require.NoError(t, assetstore.New(client.DB).Create(ctx, models.Asset{AssetID: "asset-1", FilePath: "/videos/a.mp4", Status: models.AssetDiscovered}))

	repo := taskrepo.New(client.DB)
	older := models.Task{TaskID: "task-older", AssetID: "asset-1", Kind: models.TaskHash, Status: models.TaskPending, Priority: 100, CreatedAt: time.Now().Add(-time.Minute)}
	newer := models.Task{TaskID: "task-newer", AssetID: "asset-1", Kind: models.TaskHash, Status: models.TaskPending, Priority: 100, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, older))

	claimed, err := repo.AtomicDequeuePending(ctx, models.TaskHash)
	require.NoError(t, err)
	assert.Equal(t, "task-older", claimed.TaskID)
	assert.Equal(t, models.TaskRunning, claimed.Status)
}

// TestTaskrepo_AtomicDequeuePending_ConcurrentClaimsAreDisjoint exercises the
// FOR UPDATE SKIP LOCKED invariant: N pending tasks of one kind, dequeued
// concurrently by N goroutines, must each claim a distinct row.
func TestTaskrepo_AtomicDequeuePending_ConcurrentClaimsAreDisjoint(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()
	require.NoError(t, assetstore.New(client.DB).Create(ctx, models.Asset{AssetID: "asset-1", FilePath: "/videos/a.mp4", Status: models.AssetDiscovered}))

	repo := taskrepo.New(client.DB)
	const n = 8
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Create(ctx, models.Task{
			TaskID:    taskIDFor(i),
			AssetID:   "asset-1",
			Kind:      models.TaskHash,
			Status:    models.TaskPending,
			Priority:  100,
			CreatedAt: time.Now(),
		}))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := repo.AtomicDequeuePending(ctx, models.TaskHash)
			if err != nil {
				return
			}
			mu.Lock()
			claimed[task.TaskID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, n, "every concurrent dequeue must claim a distinct task")
}

func taskIDFor(i int) string {
	return "task-" + string(rune('a'+i))
}

func TestTaskrepo_UpdateStatus_CompletedStampsCompletedAt(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()
	require.NoError(t, assetstore.New(client.DB).Create(ctx, models.Asset{AssetID: "asset-1", FilePath: "/videos/a.mp4", Status: models.AssetDiscovered}))

	repo := taskrepo.New(client.DB)
	require.NoError(t, repo.Create(ctx, models.Task{TaskID: "task-1", AssetID: "asset-1", Kind: models.TaskHash, Status: models.TaskPending, CreatedAt: time.Now()}))

	require.NoError(t, repo.UpdateStatus(ctx, "task-1", models.TaskCompleted, nil))

	got, err := repo.GetByID(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestTaskrepo_ResetToPending_ClearsTerminalFields(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()
	require.NoError(t, assetstore.New(client.DB).Create(ctx, models.Asset{AssetID: "asset-1", FilePath: "/videos/a.mp4", Status: models.AssetDiscovered}))

	repo := taskrepo.New(client.DB)
	errMsg := "inference timed out"
	require.NoError(t, repo.Create(ctx, models.Task{TaskID: "task-1", AssetID: "asset-1", Kind: models.TaskHash, Status: models.TaskPending, CreatedAt: time.Now()}))
	require.NoError(t, repo.UpdateStatus(ctx, "task-1", models.TaskFailed, &errMsg))

	require.NoError(t, repo.ResetToPending(ctx, "task-1"))

	got, err := repo.GetByID(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskPending, got.Status)
	assert.Nil(t, got.Error)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
}
