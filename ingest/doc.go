// Package ingest implements the ingestion stage of the pipeline.
//
// The Ingestor fetches candidate content, computes its checksum, consults
// the checksum index, and writes blob bytes plus an asset row only on first
// occurrence. Re-ingesting identical bytes is a successful idempotent no-op
// that returns the existing asset.
//
// Write ordering is fixed: the blob store write always precedes the
// metadata commit. A crash between the two leaves an orphan blob, never a
// checksum index entry without stored bytes.
//
// Concurrent ingestions of the same content converge to exactly one asset
// through the checksum uniqueness constraint in the metadata store: the
// loser of the race re-reads and adopts the winner's asset. No locks are
// taken.
//
// IngestBatch runs requests across a worker pool; per-item failures are
// isolated into the returned Report and never abort the batch.
package ingest
