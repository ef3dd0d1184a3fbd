package ai

import "context"

// Embedder generates vector embeddings from text, used for captions and text
// assets. Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ImageEncoder produces a fixed-dimensionality feature vector from raw image
// bytes. The encoder is an opaque feature-vector producer: the pipeline makes
// no assumptions about the model behind it.
// Implementations must be thread-safe for concurrent use.
type ImageEncoder interface {
	// EncodeImage generates a feature vector for one image.
	// Returns an error if the bytes cannot be encoded.
	EncodeImage(ctx context.Context, data []byte) ([]float32, error)
}

// Provider aggregates embedding services for convenient initialization and
// lifecycle management. A provider creates and manages Embedder and
// ImageEncoder instances, ensuring they share configuration and resources
// appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// ImageEncoder returns the image encoding service, or nil when no image
	// model is loaded. Callers treat nil as "model unavailable" and record
	// features with the no-embedding marker instead of failing.
	ImageEncoder() ImageEncoder

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
