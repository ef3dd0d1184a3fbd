package reprocess

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/datakiln/ai"
	"github.com/poiesic/datakiln/blob"
	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/storage"
)

// BatchProcessor embeds batches of feature records that are missing
// embeddings and writes the filled records back to storage.
type BatchProcessor struct {
	assets         storage.AssetRepository
	features       storage.FeatureRepository
	blobs          blob.Store
	provider       ai.Provider
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of retry attempts for embedding calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(assets storage.AssetRepository, features storage.FeatureRepository, blobs blob.Store, provider ai.Provider, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		assets:         assets,
		features:       features,
		blobs:          blobs,
		provider:       provider,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         slog.Default().With("component", "reprocess"),
	}
}

// Process embeds one batch of records. Records whose modality has no
// available embedding service, or whose raw bytes cannot be loaded, are
// skipped and stay in the missing-embedding set. Returns the number of
// records updated and the number skipped.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.FeatureRecord) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	var texts []*core.FeatureRecord
	var images []*core.FeatureRecord
	skipped := 0

	for _, record := range records {
		switch record.Modality {
		case core.ModalityText:
			texts = append(texts, record)
		case core.ModalityImage:
			images = append(images, record)
		default:
			// No embedding service for this modality
			skipped++
		}
	}

	updated := 0
	n, sk, err := bp.processTexts(ctx, texts)
	updated += n
	skipped += sk
	if err != nil {
		return updated, skipped, err
	}

	n, sk, err = bp.processImages(ctx, images)
	updated += n
	skipped += sk
	return updated, skipped, err
}

// processTexts embeds text records in one batched embedder call.
func (bp *BatchProcessor) processTexts(ctx context.Context, records []*core.FeatureRecord) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	loaded := make([]*core.FeatureRecord, 0, len(records))
	contents := make([]string, 0, len(records))
	skipped := 0
	for _, record := range records {
		data, err := bp.loadContent(ctx, record.AssetID)
		if err != nil {
			bp.logger.Warn("skipping record, cannot load content",
				"asset_id", record.AssetID, "error", err)
			skipped++
			continue
		}
		loaded = append(loaded, record)
		contents = append(contents, string(data))
	}
	if len(loaded) == 0 {
		return 0, skipped, nil
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.provider.Embedder().EmbedTexts(ctx, contents)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return 0, skipped, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}
	if len(embeddings) != len(loaded) {
		return 0, skipped, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(loaded), len(embeddings))
	}

	updated := 0
	for i, record := range loaded {
		record.Embedding = core.NormalizeVector(embeddings[i])
		record.HasEmbedding = true
		if err := bp.features.UpdateFeature(ctx, record); err != nil {
			return updated, skipped, fmt.Errorf("failed to update record %s: %w", record.AssetID, err)
		}
		updated++
	}
	return updated, skipped, nil
}

// processImages embeds image records one at a time through the image
// encoder. An absent encoder skips the whole batch.
func (bp *BatchProcessor) processImages(ctx context.Context, records []*core.FeatureRecord) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	encoder := bp.provider.ImageEncoder()
	if encoder == nil {
		return 0, len(records), nil
	}

	updated := 0
	skipped := 0
	for _, record := range records {
		data, err := bp.loadContent(ctx, record.AssetID)
		if err != nil {
			bp.logger.Warn("skipping record, cannot load content",
				"asset_id", record.AssetID, "error", err)
			skipped++
			continue
		}

		var vector []float32
		err = RetryWithBackoff(ctx, func() error {
			var err error
			vector, err = encoder.EncodeImage(ctx, data)
			return err
		}, bp.maxRetries, bp.retryBaseDelay)
		if err != nil {
			return updated, skipped, fmt.Errorf("failed to encode image for %s after %d attempts: %w",
				record.AssetID, bp.maxRetries, err)
		}

		record.Embedding = core.NormalizeVector(vector)
		record.HasEmbedding = true
		if err := bp.features.UpdateFeature(ctx, record); err != nil {
			return updated, skipped, fmt.Errorf("failed to update record %s: %w", record.AssetID, err)
		}
		updated++
	}
	return updated, skipped, nil
}

// loadContent resolves an asset's storage key and reads its raw bytes.
func (bp *BatchProcessor) loadContent(ctx context.Context, id core.AssetID) ([]byte, error) {
	asset, err := bp.assets.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	return bp.blobs.Get(ctx, asset.StorageKey)
}
