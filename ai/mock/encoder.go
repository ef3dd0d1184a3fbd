package mock

import "context"

// ImageEncoder is a test double for ai.ImageEncoder.
// It allows custom behavior injection via function fields.
type ImageEncoder struct {
	// EncodeImageFunc is called by EncodeImage if set.
	// If nil, uses default deterministic behavior.
	EncodeImageFunc func(ctx context.Context, data []byte) ([]float32, error)

	callCount int
}

// NewImageEncoder creates a mock image encoder with default deterministic
// behavior.
// Note: Returns concrete type to allow test assertions.
func NewImageEncoder() *ImageEncoder {
	return &ImageEncoder{}
}

// EncodeImage generates a deterministic feature vector from the image bytes.
func (m *ImageEncoder) EncodeImage(ctx context.Context, data []byte) ([]float32, error) {
	m.callCount++

	if m.EncodeImageFunc != nil {
		return m.EncodeImageFunc(ctx, data)
	}

	// Default: generate deterministic vector from content hash
	return deterministicVector(data, DefaultDimensions), nil
}

// CallCount returns the number of times EncodeImage was called.
func (m *ImageEncoder) CallCount() int {
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *ImageEncoder) Reset() {
	m.callCount = 0
	m.EncodeImageFunc = nil
}
