// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package mock

import "github.com/poiesic/datakiln/ai"

// Provider is a test double for ai.Provider.
// It aggregates mock embedder and image encoder instances.
type Provider struct {
	embedder *Embedder
	encoder  *ImageEncoder
}

// NewProvider creates a new mock provider with default mock services.
//
// Returns ai.Provider interface for consistency with production constructors.
// Use GetEmbedder()/GetImageEncoder() to access concrete types for test assertions.
func NewProvider() ai.Provider {
	return &Provider{
		embedder: NewEmbedder(),
		encoder:  NewImageEncoder(),
	}
}

// NewProviderWithServices creates a mock provider with custom mock services.
// A nil encoder models the "image model not loaded" case: ImageEncoder
// returns nil and the extractor records the no-embedding marker.
func NewProviderWithServices(embedder *Embedder, encoder *ImageEncoder) ai.Provider {
	return &Provider{
		embedder: embedder,
		encoder:  encoder,
	}
}

// Embedder returns the mock text embedder.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// ImageEncoder returns the mock image encoder, or nil when the provider was
// built without one.
func (p *Provider) ImageEncoder() ai.ImageEncoder {
	if p.encoder == nil {
		return nil
	}
	return p.encoder
}

// Close is a no-op for mock provider.
func (p *Provider) Close() error {
	return nil
}

// GetEmbedder returns the underlying mock embedder for test assertions.
// This allows tests to check call counts and inject custom behavior.
func (p *Provider) GetEmbedder() *Embedder {
	return p.embedder
}

// GetImageEncoder returns the underlying mock image encoder for test assertions.
func (p *Provider) GetImageEncoder() *ImageEncoder {
	return p.encoder
}
