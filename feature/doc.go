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


// Package feature implements the feature extraction stage of the pipeline.
//
// Extraction is a pure function from asset bytes and modality to a feature
// record: a perceptual fingerprint for near-duplicate detection (images), an
// embedding vector from an opaque model, and structural metadata. The
// function has no side effects; callers persist the record.
//
// The fingerprint is deliberately distinct from the ingestion checksum: the
// checksum detects byte-identical duplicates, the fingerprint tolerates
// resampling and minor perceptual edits.
//
// Embedding models are external collaborators that may not be loaded. In
// that case the record carries an explicit no-embedding marker instead of
// failing, so downstream consumers can skip it or treat it as
// missing-at-random. A later reprocessing run can fill the embedding in.
//
// Corrupt or unsupported input fails with *ExtractionError carrying the
// asset identifier. The batch Runner marks such assets failed and
// continues: one bad asset never aborts a run.
package feature
