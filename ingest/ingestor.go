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


package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/datakiln/blob"
	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/fetch"
	"github.com/poiesic/datakiln/storage"
)

// raceRetries bounds the re-read loop after losing the checksum race.
const raceRetries = 5

// Request describes one candidate ingestion.
type Request struct {
	URL     string
	License string
	Source  string
}

// Ingestor performs content-addressed ingestion with global deduplication.
type Ingestor struct {
	assets  storage.AssetRepository
	blobs   blob.Store
	fetcher fetch.Fetcher
	pool    *ants.Pool
	logger  *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor) error

// WithPoolSize sets the worker pool size for batch ingestion.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(in *Ingestor) error {
		if size < 1 {
			size = 1
		}
		if in.pool != nil {
			in.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		in.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(in *Ingestor) error {
		if logger == nil {
			logger = slog.Default()
		}
		in.logger = logger
		return nil
	}
}

// New creates an Ingestor.
func New(assets storage.AssetRepository, blobs blob.Store, fetcher fetch.Fetcher, opts ...Option) (*Ingestor, error) {
	if assets == nil {
		return nil, ErrAssetRepositoryRequired
	}
	if blobs == nil {
		return nil, ErrBlobStoreRequired
	}
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	in := &Ingestor{
		assets:  assets,
		blobs:   blobs,
		fetcher: fetcher,
		pool:    pool,
		logger:  slog.Default().With("component", "ingestor"),
	}

	for _, opt := range opts {
		if optErr := opt(in); optErr != nil {
			in.Release()
			return nil, optErr
		}
	}
	return in, nil
}

// Ingest fetches the content at req.URL and registers it as an asset.
// The returned bool reports whether the content already existed: a
// duplicate is a successful no-op that returns the existing asset without
// touching the blob store.
func (in *Ingestor) Ingest(ctx context.Context, req Request) (*core.Asset, bool, error) {
	if req.URL == "" {
		return nil, false, ErrEmptyURL
	}

	result, err := in.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return nil, false, err
	}

	return in.IngestBytes(ctx, req, result.Data)
}

// IngestBytes registers already-fetched content bytes as an asset.
// Dedup and write-ordering semantics match Ingest.
func (in *Ingestor) IngestBytes(ctx context.Context, req Request, data []byte) (*core.Asset, bool, error) {
	if req.URL == "" {
		return nil, false, ErrEmptyURL
	}

	checksum := core.Checksum(data)

	// Fast path: content already known
	existing, err := in.assets.GetAssetByChecksum(ctx, checksum)
	if err == nil {
		in.logger.Debug("duplicate content", "url", req.URL, "asset", existing.ID)
		return existing, true, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("checksum lookup: %w", err)
	}

	// Blob write precedes the metadata commit. If we crash after this
	// point the orphan blob is harmless; a dangling checksum entry would
	// not be.
	key := storageKey(checksum)
	if err := in.blobs.Put(ctx, key, data); err != nil {
		return nil, false, fmt.Errorf("blob write: %w", err)
	}

	asset := &core.Asset{
		ID:         core.NewAssetID(),
		SourceURL:  req.URL,
		Checksum:   checksum,
		StorageKey: key,
		License:    req.License,
		Source:     req.Source,
		Status:     core.StatusIngested,
	}

	err = in.assets.CreateAsset(ctx, asset)
	if err == nil {
		in.logger.Debug("ingested asset", "url", req.URL, "asset", asset.ID)
		return asset, false, nil
	}

	// Lost the uniqueness race: adopt the winner's asset. The winner's row
	// may take a moment to become readable after our conflict surfaces.
	if errors.Is(err, storage.ErrDuplicateChecksum) || errors.Is(err, storage.ErrConflict) {
		for attempt := 0; attempt < raceRetries; attempt++ {
			winner, readErr := in.assets.GetAssetByChecksum(ctx, checksum)
			if readErr == nil {
				in.logger.Debug("lost checksum race, adopted winner",
					"url", req.URL, "asset", winner.ID)
				return winner, true, nil
			}
			if !errors.Is(readErr, storage.ErrNotFound) {
				return nil, false, fmt.Errorf("re-read after race: %w", readErr)
			}

			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
			}
		}
		return nil, false, fmt.Errorf("%w: checksum %s", ErrWinnerNotVisible, checksum)
	}

	return nil, false, fmt.Errorf("create asset: %w", err)
}

// IngestBatch runs requests across the worker pool. Per-item failures are
// recorded in the report; the batch itself never fails.
func (in *Ingestor) IngestBatch(ctx context.Context, reqs []Request) *Report {
	report := newReport(len(reqs))

	var wg sync.WaitGroup
	for i := range reqs {
		idx := i
		wg.Add(1)
		submitErr := in.pool.Submit(func() {
			defer wg.Done()
			asset, existed, err := in.Ingest(ctx, reqs[idx])
			report.record(idx, reqs[idx], asset, existed, err)
		})
		if submitErr != nil {
			report.record(idx, reqs[idx], nil, false, submitErr)
			wg.Done()
		}
	}
	wg.Wait()

	in.logger.Info("ingest batch complete",
		"total", report.Total,
		"succeeded", report.Succeeded,
		"duplicates", report.Duplicates,
		"failed", report.Failed)
	return report
}

// Release releases the worker pool. The ingestor should not be used after
// calling Release.
func (in *Ingestor) Release() {
	if in.pool != nil {
		in.pool.Release()
	}
}

// storageKey derives the blob key for content with the given checksum.
func storageKey(checksum string) string {
	return fmt.Sprintf("raw/%s_%d", checksum[:16], time.Now().Unix())
}
