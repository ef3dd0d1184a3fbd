// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.ImageEncoder,
// and ai.Provider for use in unit tests. The mocks allow tests to run without
// external embedding services and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	provider := mock.NewProvider()
//	embedding, err := provider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder := mock.NewEmbedder()
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
//
// # Default Behavior
//
// The mock implementations provide sensible defaults:
//
//   - Embedder: returns deterministic unit vectors based on text hash
//   - ImageEncoder: returns deterministic unit vectors based on content hash
//   - Provider: aggregates mock embedder and encoder
//
// The default vectors are stable across runs, so tests that compare
// similarity scores stay reproducible.
package mock
