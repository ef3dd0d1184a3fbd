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


// Package ai provides abstractions for the embedding services used in
// datakiln.
//
// This package defines interfaces for embedding operations: text embeddings
// for captions and text assets, and image feature encoding. It follows the
// dependency inversion principle, allowing the feature extraction stage to
// depend on abstractions rather than concrete model clients.
//
// # Design Principles
//
// The package is designed around three key interfaces:
//
//   - Embedder: generates vector embeddings from text
//   - ImageEncoder: produces feature vectors from raw image bytes
//   - Provider: aggregates embedding services for convenient initialization
//
// # Implementation Packages
//
// The ai package includes two implementation sub-packages:
//
//   - ai/openai: production text embedding using OpenAI-compatible APIs
//   - ai/mock: test doubles that produce deterministic vectors without
//     external services
//
// # Model Availability
//
// An image encoding model is frequently not loaded in production (it is an
// opaque external collaborator). Provider.ImageEncoder returns nil in that
// case, and the feature extractor records the no-embedding marker rather
// than failing the asset.
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder) return
// INTERFACE types to enforce abstraction and prevent accidental coupling to
// concrete implementations. Test utility constructors (mock.NewEmbedder,
// mock.NewImageEncoder) return CONCRETE types to enable test assertions and
// behavior injection via the mock's public fields.
package ai
