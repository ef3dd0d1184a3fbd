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


// Package sqlite implements the storage repositories on a single SQLite
// database file using the pure-Go modernc.org/sqlite driver.
//
// The checksum uniqueness constraint lives in the schema: a UNIQUE index
// on assets.checksum makes concurrent inserts of the same content resolve
// through constraint violation, mirroring the BadgerDB backend's
// transaction-conflict semantics. Embeddings are stored as little-endian
// float32 blobs.
//
// SQLite is the single-file deployment option; BadgerDB remains the
// default backend for embedded key-value workloads.
package sqlite
