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


// Package blob provides the append-only asset store for raw content bytes.
//
// Assets are addressed by opaque string keys derived from their content
// checksum at ingestion time. The store is append-only: a key is written at
// most once and the bytes under it never change. Put must refuse to
// overwrite an existing key with different content, so a retried write of
// identical bytes stays idempotent while corruption is surfaced.
//
// Three implementations are provided:
//
//   - FSStore: local filesystem, one file per key
//   - MinioStore: S3-compatible object storage via minio-go
//   - MemoryStore: in-process map for tests
//
// During ingestion the blob write always precedes the metadata commit. A
// crash between the two leaves an orphan blob, never a checksum index entry
// pointing at missing bytes.
package blob
