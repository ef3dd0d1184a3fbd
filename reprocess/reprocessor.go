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


package reprocess

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/datakiln/ai"
	"github.com/poiesic/datakiln/blob"
	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/storage"
)

// Config holds configuration for the reprocessing operation.
type Config struct {
	// BatchSize is the number of records to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reprocessor fills in the embeddings of every feature record stored
// with the no-embedding marker.
type Reprocessor struct {
	features  storage.FeatureRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
}

// NewReprocessor creates a new reprocessor.
// progress: where to write progress output (typically os.Stderr)
func NewReprocessor(assets storage.AssetRepository, features storage.FeatureRepository, blobs blob.Store, provider ai.Provider, config *Config, progress io.Writer) (*Reprocessor, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}

	return &Reprocessor{
		features:  features,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(assets, features, blobs, provider, config.MaxRetries, config.RetryDelay),
	}, nil
}

// Run embeds every record currently missing an embedding. Records whose
// modality has no embedding service stay marked and are reported as
// skipped. Returns the number of records updated and skipped.
func (r *Reprocessor) Run(ctx context.Context) (int, int, error) {
	records, err := r.features.ListFeaturesMissingEmbedding(ctx, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query records: %w", err)
	}

	total := len(records)
	if total == 0 {
		fmt.Fprintf(r.progress, "No records missing embeddings\n")
		return 0, 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reprocessing of %d records (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	updated, skipped, processed := 0, 0, 0
	for i := 0; i < total; i += r.config.BatchSize {
		select {
		case <-ctx.Done():
			return updated, skipped, ctx.Err()
		default:
		}

		end := i + r.config.BatchSize
		if end > total {
			end = total
		}

		n, sk, err := r.processor.Process(ctx, records[i:end])
		updated += n
		skipped += sk
		if err != nil {
			return updated, skipped, fmt.Errorf("failed to process batch: %w", err)
		}

		processed += end - i
		tracker.Update(processed)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reprocessing complete. Updated %d of %d records (%d skipped) in %v\n",
		updated, total, skipped, elapsed.Round(time.Second))
	return updated, skipped, nil
}

// Reset returns assets to the ingested status and deletes their feature
// records, forcing full re-extraction on the next pipeline run. This is
// the only sanctioned way to move an asset's lifecycle backwards.
func Reset(ctx context.Context, assets storage.AssetRepository, features storage.FeatureRepository, ids ...core.AssetID) error {
	for _, id := range ids {
		if err := assets.ResetAssetStatus(ctx, id, core.StatusIngested); err != nil {
			return fmt.Errorf("resetting asset %s: %w", id, err)
		}
		if err := features.DeleteFeature(ctx, id); err != nil {
			return fmt.Errorf("deleting feature record for %s: %w", id, err)
		}
	}
	return nil
}
