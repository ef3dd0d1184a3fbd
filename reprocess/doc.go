// Package reprocess fills in embeddings for feature records that were
// stored with the no-embedding marker, typically after an embedding
// model becomes available or an embedding service outage ends.
//
// The package supports batch processing of feature records, progress
// tracking, retry logic with exponential backoff, and an explicit
// per-asset reset that returns assets to the ingested status for full
// re-extraction.
package reprocess
