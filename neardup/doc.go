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


// Package neardup finds near-duplicate assets that exact checksum
// deduplication cannot catch: re-encoded, resized or slightly edited
// copies of ingested content.
//
// The Detector combines two signals:
//   - Perceptual fingerprints: 64-bit image hashes compared by Hamming
//     distance, catching visual copies regardless of encoding.
//   - Embeddings: cosine similarity over unit-normalized vectors,
//     catching semantic copies across all modalities.
//
// Candidates found by both signals rank above single-signal hits. The
// detector is advisory: it reports matches for curation and never
// mutates the store.
package neardup
