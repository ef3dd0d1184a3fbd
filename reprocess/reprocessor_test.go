package reprocess

import (
	"bytes"
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

type reproDeps struct {
	assets   storage.AssetRepository
	features storage.FeatureRepository
	blobs    *blob.MemoryStore
}

func setupDeps(t *testing.T) *reproDeps {
	t.Helper()
	assets, features, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		features.Close()
		assets.Close()
		backend.Close()
	})
	return &reproDeps{assets: assets, features: features, blobs: blob.NewMemoryStore()}
}

// seedUnembedded stores an asset, its raw bytes, and a feature record
// carrying the no-embedding marker.
func seedUnembedded(t *testing.T, d *reproDeps, id core.AssetID, modality core.Modality, content []byte) {
	t.Helper()
	ctx := context.Background()
	key := "raw/" + string(id)

	require.NoError(t, d.assets.CreateAsset(ctx, &core.Asset{
		ID:         id,
		SourceURL:  "https://example.com/" + string(id),
		Checksum:   core.Checksum(content),
		StorageKey: key,
		Status:     core.StatusIngested,
	}))
	require.NoError(t, d.blobs.Put(ctx, key, content))
	require.NoError(t, d.features.PutFeature(ctx, &core.FeatureRecord{
		AssetID:  id,
		Modality: modality,
	}))
}

func TestReprocessorFillsMissingEmbeddings(t *testing.T) {
	d := setupDeps(t)
	ctx := context.Background()

	seedUnembedded(t, d, "text-1", core.ModalityText, []byte("a short caption"))
	seedUnembedded(t, d, "image-1", core.ModalityImage, []byte("fake image bytes"))
	seedUnembedded(t, d, "audio-1", core.ModalityAudio, []byte("fake audio bytes"))

	var out bytes.Buffer
	r, err := NewReprocessor(d.assets, d.features, d.blobs, mock.NewProvider(), nil, &out)
	require.NoError(t, err)

	updated, skipped, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, 1, skipped, "audio has no embedding service")

	text, err := d.features.GetFeature(ctx, "text-1")
	require.NoError(t, err)
	assert.True(t, text.HasEmbedding)

	image, err := d.features.GetFeature(ctx, "image-1")
	require.NoError(t, err)
	assert.True(t, image.HasEmbedding)

	missing, err := d.features.ListFeaturesMissingEmbedding(ctx, 0)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, core.AssetID("audio-1"), missing[0].AssetID)
}

func TestReprocessorNoImageEncoder(t *testing.T) {
	d := setupDeps(t)
	ctx := context.Background()

	seedUnembedded(t, d, "image-1", core.ModalityImage, []byte("fake image bytes"))

	provider := mock.NewProviderWithServices(mock.NewEmbedder(), nil)
	var out bytes.Buffer
	r, err := NewReprocessor(d.assets, d.features, d.blobs, provider, nil, &out)
	require.NoError(t, err)

	updated, skipped, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Equal(t, 1, skipped)

	record, err := d.features.GetFeature(ctx, "image-1")
	require.NoError(t, err)
	assert.False(t, record.HasEmbedding)
}

func TestReprocessorMissingBlobSkips(t *testing.T) {
	d := setupDeps(t)
	ctx := context.Background()

	// Feature record without raw bytes in the blob store
	require.NoError(t, d.assets.CreateAsset(ctx, &core.Asset{
		ID:         "orphan",
		SourceURL:  "https://example.com/orphan",
		Checksum:   core.Checksum([]byte("orphan")),
		StorageKey: "raw/orphan",
		Status:     core.StatusIngested,
	}))
	require.NoError(t, d.features.PutFeature(ctx, &core.FeatureRecord{
		AssetID:  "orphan",
		Modality: core.ModalityText,
	}))

	var out bytes.Buffer
	r, err := NewReprocessor(d.assets, d.features, d.blobs, mock.NewProvider(), nil, &out)
	require.NoError(t, err)

	updated, skipped, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Equal(t, 1, skipped)
}

func TestReprocessorNothingToDo(t *testing.T) {
	d := setupDeps(t)

	var out bytes.Buffer
	r, err := NewReprocessor(d.assets, d.features, d.blobs, mock.NewProvider(), nil, &out)
	require.NoError(t, err)

	updated, skipped, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Zero(t, skipped)
	assert.Contains(t, out.String(), "No records missing embeddings")
}

func TestReprocessorRequiresProvider(t *testing.T) {
	d := setupDeps(t)
	_, err := NewReprocessor(d.assets, d.features, d.blobs, nil, nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrProviderRequired)
}

func TestReset(t *testing.T) {
	d := setupDeps(t)
	ctx := context.Background()

	seedUnembedded(t, d, "asset-1", core.ModalityText, []byte("content"))
	require.NoError(t, d.assets.UpdateAssetStatus(ctx, "asset-1", core.StatusProcessing))

	require.NoError(t, Reset(ctx, d.assets, d.features, "asset-1"))

	asset, err := d.assets.GetAsset(ctx, "asset-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusIngested, asset.Status)

	_, err = d.features.GetFeature(ctx, "asset-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Error(t, Reset(ctx, d.assets, d.features, "missing"))
}
