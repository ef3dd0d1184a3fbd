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


// Package storage provides the metadata storage abstraction for datakiln.
//
// This package defines repository interfaces that decouple storage
// implementation from pipeline logic. Two backends implement them
// interchangeably:
//
//   - storage/badger: embedded BadgerDB key-value backend
//   - storage/sqlite: SQLite backend over database/sql
//
// # Checksum Uniqueness
//
// The checksum index is the pipeline's dedup authority and its only
// synchronization primitive. AssetRepository.CreateAsset must enforce a
// uniqueness constraint on the content checksum and surface a losing
// concurrent insert as ErrDuplicateChecksum (or ErrConflict for an
// optimistic transaction that lost a write race). Callers resolve either
// outcome with a compare-and-retry loop: re-read by checksum and adopt the
// winner's asset. No implementation may block on locks to serialize
// ingestion.
//
// # Constructor Return Type Pattern
//
// Public constructors return interface types to enforce abstraction:
//
//	repo, err := badger.NewAssetRepository(backend)  // returns storage.AssetRepository
//
// Internal constructors may return concrete types within a backend package.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation and
// timeout support. Pass context.Background() for operations without
// specific timeout requirements.
package storage
