package assetstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framewright/corpus/pkg/apierr"
	"github.com/framewright/corpus/pkg/assetstore"
	"github.com/framewright/corpus/pkg/models"
	testdb "github.com/framewright/corpus/test/database"
)

func TestAssetstore_CreateAndGetByID(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := assetstore.New(client.DB)
	ctx := context.Background()

	asset := models.Asset{
		AssetID:  "asset-1",
		FilePath: "/videos/a.mp4",
		Status:   models.AssetDiscovered,
	}
	require.NoError(t, repo.Create(ctx, asset))

	got, err := repo.GetByID(ctx, "asset-1")
	require.NoError(t, err)
	assert.Equal(t, asset.AssetID, got.AssetID)
	assert.Equal(t, asset.FilePath, got.FilePath)
	assert.Equal(t, models.AssetDiscovered, got.Status)
}

func TestAssetstore_GetByID_UnknownReturnsNotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := assetstore.New(client.DB)

	_, err := repo.GetByID(context.Background(), "does-not-exist")
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.KindNotFound, apiErr.Kind)
}

func TestAssetstore_Create_DuplicateAssetIDIsRejected(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := assetstore.New(client.DB)
	ctx := context.Background()

	asset := models.Asset{AssetID: "asset-1", FilePath: "/videos/a.mp4", Status: models.AssetDiscovered}
	require.NoError(t, repo.Create(ctx, asset))

	err := repo.Create(ctx, asset)
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeDuplicate, apiErr.Code)
}

func TestAssetstore_Exists(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := assetstore.New(client.DB)
	ctx := context.Background()

	ok, err := repo.Exists(ctx, "asset-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Create(ctx, models.Asset{AssetID: "asset-1", FilePath: "/videos/a.mp4", Status: models.AssetDiscovered}))

	ok, err = repo.Exists(ctx, "asset-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAssetstore_SetStatusAndListByStatus(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := assetstore.New(client.DB)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, models.Asset{AssetID: "asset-1", FilePath: "/videos/a.mp4", Status: models.AssetDiscovered}))
	require.NoError(t, repo.Create(ctx, models.Asset{AssetID: "asset-2", FilePath: "/videos/b.mp4", Status: models.AssetDiscovered}))

	require.NoError(t, repo.SetStatus(ctx, "asset-1", models.AssetHashed))

	hashed, err := repo.ListByStatus(ctx, models.AssetHashed)
	require.NoError(t, err)
	require.Len(t, hashed, 1)
	assert.Equal(t, "asset-1", hashed[0].AssetID)

	discovered, err := repo.ListByStatus(ctx, models.AssetDiscovered)
	require.NoError(t, err)
	require.Len(t, discovered, 1)
	assert.Equal(t, "asset-2", discovered[0].AssetID)
}
