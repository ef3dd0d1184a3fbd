package neardup

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/storage"
	"github.com/poiesic/datakiln/storage/badger"
)

func setupFeatures(t *testing.T) storage.FeatureRepository {
	t.Helper()
	_, features, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		features.Close()
		backend.Close()
	})
	return features
}

func putFeature(t *testing.T, repo storage.FeatureRepository, id core.AssetID, fingerprint uint64, embedding []float32) {
	t.Helper()
	record := &core.FeatureRecord{
		AssetID:  id,
		Modality: core.ModalityImage,
	}
	if fingerprint != 0 {
		record.Fingerprint = fingerprint
		record.HasFingerprint = true
	}
	if embedding != nil {
		record.Embedding = core.NormalizeVector(embedding)
		record.HasEmbedding = true
	}
	require.NoError(t, repo.PutFeature(context.Background(), record))
}

func TestDetectorFingerprintMatch(t *testing.T) {
	repo := setupFeatures(t)
	base := uint64(0xabcdef0123456789)

	putFeature(t, repo, "query", base, nil)
	putFeature(t, repo, "near", base^0b111, nil)        // distance 3
	putFeature(t, repo, "far", ^base, nil)              // distance 64
	putFeature(t, repo, "exact-copy", base, nil)        // distance 0

	d, err := NewDetector(repo)
	require.NoError(t, err)

	matches, err := d.FindNearDuplicates(context.Background(), "query", 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, core.AssetID("exact-copy"), matches[0].Record.AssetID)
	assert.Equal(t, 0, matches[0].Hamming)
	assert.Equal(t, core.AssetID("near"), matches[1].Record.AssetID)
	assert.Equal(t, 3, matches[1].Hamming)
	assert.True(t, matches[1].ByFingerprint)
	assert.False(t, matches[1].ByEmbedding)
}

func TestDetectorEmbeddingMatch(t *testing.T) {
	repo := setupFeatures(t)

	putFeature(t, repo, "query", 0, []float32{1, 0, 0})
	putFeature(t, repo, "close", 0, []float32{0.99, 0.05, 0})
	putFeature(t, repo, "unrelated", 0, []float32{0, 1, 0})

	d, err := NewDetector(repo)
	require.NoError(t, err)

	matches, err := d.FindNearDuplicates(context.Background(), "query", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, core.AssetID("close"), matches[0].Record.AssetID)
	assert.True(t, matches[0].ByEmbedding)
	assert.GreaterOrEqual(t, matches[0].Similarity, float32(DefaultMinSimilarity))
}

func TestDetectorDualSignalRanksFirst(t *testing.T) {
	repo := setupFeatures(t)
	base := uint64(0x1111222233334444)

	putFeature(t, repo, "query", base, []float32{1, 0})
	putFeature(t, repo, "dual", base^0b1, []float32{0.999, 0.01})
	putFeature(t, repo, "embedding-only", 0, []float32{0.995, 0.02})
	putFeature(t, repo, "fingerprint-only", base^0b11, nil)

	d, err := NewDetector(repo)
	require.NoError(t, err)

	matches, err := d.FindNearDuplicates(context.Background(), "query", 0)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, core.AssetID("dual"), matches[0].Record.AssetID)
	assert.True(t, matches[0].ByFingerprint)
	assert.True(t, matches[0].ByEmbedding)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestDetectorLimitsAndSelfExclusion(t *testing.T) {
	repo := setupFeatures(t)
	base := uint64(0xf0f0f0f0f0f0f0f0)

	putFeature(t, repo, "query", base, nil)
	putFeature(t, repo, "a", base^0b1, nil)
	putFeature(t, repo, "b", base^0b11, nil)
	putFeature(t, repo, "c", base^0b111, nil)

	d, err := NewDetector(repo)
	require.NoError(t, err)

	matches, err := d.FindNearDuplicates(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.NotEqual(t, core.AssetID("query"), m.Record.AssetID)
	}
}

func TestDetectorNoSignal(t *testing.T) {
	repo := setupFeatures(t)
	putFeature(t, repo, "blank", 0, nil)

	d, err := NewDetector(repo)
	require.NoError(t, err)

	_, err = d.FindNearDuplicates(context.Background(), "blank", 0)
	assert.ErrorIs(t, err, ErrNoSignal)

	_, err = d.FindNearDuplicates(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDetectorThresholdOptions(t *testing.T) {
	repo := setupFeatures(t)
	base := uint64(0x5555aaaa5555aaaa)

	putFeature(t, repo, "query", base, nil)
	putFeature(t, repo, "distance-12", base^0xfff, nil)

	strict, err := NewDetector(repo, WithMaxHamming(4))
	require.NoError(t, err)
	matches, err := strict.FindNearDuplicates(context.Background(), "query", 0)
	require.NoError(t, err)
	assert.Empty(t, matches)

	loose, err := NewDetector(repo, WithMaxHamming(16))
	require.NoError(t, err)
	matches, err = loose.FindNearDuplicates(context.Background(), "query", 0)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestFormatMatches(t *testing.T) {
	assert.Contains(t, FormatMatches(nil), "no near-duplicates")

	out := FormatMatches([]*Match{
		{
			Record:        &core.FeatureRecord{AssetID: "asset-1"},
			Hamming:       2,
			ByFingerprint: true,
			Score:         0.97,
		},
	})
	assert.True(t, strings.Contains(out, "asset-1"))
	assert.True(t, strings.Contains(out, "2"))
}
