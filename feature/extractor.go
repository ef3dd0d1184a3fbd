package feature

import (
	"context"
	"log/slog"

	"github.com/poiesic/datakiln/ai"
	"github.com/poiesic/datakiln/core"
)

// Extractor combines pure feature extraction with embedding computation
// through an ai.Provider. Safe for concurrent use.
type Extractor struct {
	provider   ai.Provider
	dimensions int
	logger     *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithDimensions sets the expected embedding width. Embeddings of a
// different width are discarded and the record keeps the no-embedding
// marker. Zero accepts any width.
func WithDimensions(dim int) ExtractorOption {
	return func(e *Extractor) {
		e.dimensions = dim
	}
}

// WithExtractorLogger sets a custom logger. Default is slog.Default().
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor creates an Extractor. A nil provider is allowed and yields
// records with the no-embedding marker for every modality.
func NewExtractor(provider ai.Provider, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		provider: provider,
		logger:   slog.Default().With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract sniffs the asset's modality, computes its feature record and
// fills in the embedding when a model is available. An unavailable model
// or a failed embedding call yields the no-embedding marker, never an
// error; corrupt content fails with *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, asset *core.Asset, data []byte) (*core.FeatureRecord, error) {
	modality, err := DetectModality(data)
	if err != nil {
		return nil, extractionErr(asset.ID, "", err)
	}

	record, err := Extract(asset.ID, data, modality)
	if err != nil {
		return nil, err
	}

	e.embed(ctx, record, data)
	return record, nil
}

// embed fills in the record's embedding when a model is available.
func (e *Extractor) embed(ctx context.Context, record *core.FeatureRecord, data []byte) {
	if e.provider == nil {
		return
	}

	var (
		vector []float32
		err    error
	)
	switch record.Modality {
	case core.ModalityImage:
		encoder := e.provider.ImageEncoder()
		if encoder == nil {
			e.logger.Debug("image model not loaded, recording no-embedding marker",
				"asset", record.AssetID)
			return
		}
		vector, err = encoder.EncodeImage(ctx, data)
	case core.ModalityText:
		embedder := e.provider.Embedder()
		if embedder == nil {
			return
		}
		vector, err = embedder.EmbedText(ctx, string(data))
	default:
		// No embedding model for this modality
		return
	}

	if err != nil {
		e.logger.Warn("embedding failed, recording no-embedding marker",
			"asset", record.AssetID, "err", err)
		return
	}
	if len(vector) == 0 {
		return
	}
	if e.dimensions > 0 && len(vector) != e.dimensions {
		e.logger.Warn("embedding width mismatch, discarding",
			"asset", record.AssetID, "got", len(vector), "want", e.dimensions)
		return
	}

	record.Embedding = core.NormalizeVector(vector)
	record.HasEmbedding = true
}
