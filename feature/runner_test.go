package feature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/datakiln/ai/mock"
	"github.com/poiesic/datakiln/blob"
	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/storage"
	"github.com/poiesic/datakiln/storage/badger"
)

func setupRunnerDeps(t *testing.T) (storage.AssetRepository, storage.FeatureRepository, *blob.MemoryStore) {
	assetRepo, featureRepo, labelRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		labelRepo.Close()
		featureRepo.Close()
		assetRepo.Close()
		backend.Close()
	})
	return assetRepo, featureRepo, blob.NewMemoryStore()
}

// seedAsset stores bytes in the blob store and inserts an ingested asset row.
func seedAsset(t *testing.T, assets storage.AssetRepository, blobs *blob.MemoryStore, url string, data []byte) *core.Asset {
	t.Helper()
	ctx := context.Background()

	checksum := core.Checksum(data)
	key := "raw/" + checksum[:16]
	require.NoError(t, blobs.Put(ctx, key, data))

	asset := &core.Asset{
		ID:         core.NewAssetID(),
		SourceURL:  url,
		Checksum:   checksum,
		StorageKey: key,
		Status:     core.StatusIngested,
	}
	require.NoError(t, assets.CreateAsset(ctx, asset))
	return asset
}

func TestExtractPending(t *testing.T) {
	assets, features, blobs := setupRunnerDeps(t)
	ctx := context.Background()

	img := seedAsset(t, assets, blobs, "http://src/img", testPNG(t, 0))
	txt := seedAsset(t, assets, blobs, "http://src/txt", []byte("two dogs playing fetch"))

	runner, err := NewRunner(assets, features, blobs, NewExtractor(mock.NewProvider()))
	require.NoError(t, err)
	defer runner.Release()

	report, err := runner.ExtractPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 0, report.Failed)

	for _, asset := range []*core.Asset{img, txt} {
		record, err := features.GetFeature(ctx, asset.ID)
		require.NoError(t, err)
		assert.True(t, record.HasEmbedding)

		row, err := assets.GetAsset(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, core.StatusProcessing, row.Status)
	}
}

func TestExtractPendingIsolatesFailures(t *testing.T) {
	assets, features, blobs := setupRunnerDeps(t)
	ctx := context.Background()

	good := seedAsset(t, assets, blobs, "http://src/good", testPNG(t, 0))
	corrupt := append([]byte("\x89PNG\r\n\x1a\n"), []byte("garbage")...)
	bad := seedAsset(t, assets, blobs, "http://src/bad", corrupt)

	runner, err := NewRunner(assets, features, blobs, NewExtractor(mock.NewProvider()))
	require.NoError(t, err)
	defer runner.Release()

	report, err := runner.ExtractPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, bad.ID, report.Failures[0].AssetID)

	goodRow, err := assets.GetAsset(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, goodRow.Status)

	badRow, err := assets.GetAsset(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, badRow.Status)

	_, err = features.GetFeature(ctx, bad.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExtractPendingCountsMissingEmbeddings(t *testing.T) {
	assets, features, blobs := setupRunnerDeps(t)
	ctx := context.Background()

	seedAsset(t, assets, blobs, "http://src/img", testPNG(t, 0))

	// No image model: record lands with the no-embedding marker
	provider := mock.NewProviderWithServices(mock.NewEmbedder(), nil)
	runner, err := NewRunner(assets, features, blobs, NewExtractor(provider))
	require.NoError(t, err)
	defer runner.Release()

	report, err := runner.ExtractPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.NoEmbedding)

	missing, err := features.ListFeaturesMissingEmbedding(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, missing, 1)
}

func TestExtractPendingEmptyStore(t *testing.T) {
	assets, features, blobs := setupRunnerDeps(t)

	runner, err := NewRunner(assets, features, blobs, nil)
	require.NoError(t, err)
	defer runner.Release()

	report, err := runner.ExtractPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 0, report.Failed)
}
