package feature

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/datakiln/blob"
	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/storage"
)

// DefaultBatchSize is the number of pending assets fetched per round.
const DefaultBatchSize = 100

// ItemFailure records one asset that could not be processed.
type ItemFailure struct {
	AssetID core.AssetID
	Err     error
}

// Report summarizes an extraction run.
type Report struct {
	Processed   int
	Failed      int
	NoEmbedding int
	Failures    []ItemFailure

	mu sync.Mutex
}

func (r *Report) recordSuccess(hasEmbedding bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Processed++
	if !hasEmbedding {
		r.NoEmbedding++
	}
}

func (r *Report) recordFailure(id core.AssetID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed++
	r.Failures = append(r.Failures, ItemFailure{AssetID: id, Err: err})
}

// Runner drives extraction over all pending assets. Each asset's extraction
// is independent and stateless, so the runner fans out across a worker
// pool; per-asset failures mark the asset failed and never abort the run.
type Runner struct {
	assets    storage.AssetRepository
	features  storage.FeatureRepository
	blobs     blob.Store
	extractor *Extractor
	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner) error

// WithRunnerPoolSize sets the worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithRunnerPoolSize(size int) RunnerOption {
	return func(r *Runner) error {
		if size < 1 {
			size = 1
		}
		if r.pool != nil {
			r.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		r.pool = pool
		return nil
	}
}

// WithBatchSize sets how many pending assets are listed per round.
func WithBatchSize(size int) RunnerOption {
	return func(r *Runner) error {
		if size > 0 {
			r.batchSize = size
		}
		return nil
	}
}

// WithRunnerLogger sets a custom logger. Default is slog.Default().
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) error {
		if logger != nil {
			r.logger = logger
		}
		return nil
	}
}

// NewRunner creates a Runner.
func NewRunner(assets storage.AssetRepository, features storage.FeatureRepository, blobs blob.Store, extractor *Extractor, opts ...RunnerOption) (*Runner, error) {
	if assets == nil {
		return nil, ErrAssetRepositoryRequired
	}
	if features == nil {
		return nil, ErrFeatureRepositoryRequired
	}
	if blobs == nil {
		return nil, ErrBlobStoreRequired
	}
	if extractor == nil {
		extractor = NewExtractor(nil)
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		assets:    assets,
		features:  features,
		blobs:     blobs,
		extractor: extractor,
		pool:      pool,
		batchSize: DefaultBatchSize,
		logger:    slog.Default().With("component", "feature-runner"),
	}

	for _, opt := range opts {
		if optErr := opt(r); optErr != nil {
			r.Release()
			return nil, optErr
		}
	}
	return r, nil
}

// ExtractPending processes every asset in status ingested: loads its bytes,
// extracts the feature record, persists it and advances the asset to
// processing. Failed assets move to status failed and are counted in the
// report.
func (r *Runner) ExtractPending(ctx context.Context) (*Report, error) {
	report := &Report{}
	attempted := make(map[core.AssetID]bool)

	for {
		pending, err := r.assets.ListAssetsByStatus(ctx, core.StatusIngested, r.batchSize)
		if err != nil {
			return report, err
		}

		// Skip assets already attempted this run; if nothing new shows up
		// the round is over.
		batch := pending[:0]
		for _, asset := range pending {
			if !attempted[asset.ID] {
				attempted[asset.ID] = true
				batch = append(batch, asset)
			}
		}
		if len(batch) == 0 {
			break
		}

		var wg sync.WaitGroup
		for _, asset := range batch {
			asset := asset
			wg.Add(1)
			submitErr := r.pool.Submit(func() {
				defer wg.Done()
				r.processOne(ctx, asset, report)
			})
			if submitErr != nil {
				report.recordFailure(asset.ID, submitErr)
				wg.Done()
			}
		}
		wg.Wait()

		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}
	}

	r.logger.Info("extraction run complete",
		"processed", report.Processed,
		"failed", report.Failed,
		"no_embedding", report.NoEmbedding)
	return report, nil
}

// processOne extracts a single asset and persists the outcome.
func (r *Runner) processOne(ctx context.Context, asset *core.Asset, report *Report) {
	data, err := r.blobs.Get(ctx, asset.StorageKey)
	if err != nil {
		r.fail(ctx, asset, report, err)
		return
	}

	record, err := r.extractor.Extract(ctx, asset, data)
	if err != nil {
		r.fail(ctx, asset, report, err)
		return
	}

	if err := r.features.PutFeature(ctx, record); err != nil {
		// A record from a previous interrupted run is fine; everything else
		// marks the asset failed.
		if !errors.Is(err, storage.ErrDuplicateKey) {
			r.fail(ctx, asset, report, err)
			return
		}
	}

	if err := r.assets.UpdateAssetStatus(ctx, asset.ID, core.StatusProcessing); err != nil {
		r.fail(ctx, asset, report, err)
		return
	}

	report.recordSuccess(record.HasEmbedding)
}

// fail marks the asset failed and records the reason. One bad asset never
// aborts the run.
func (r *Runner) fail(ctx context.Context, asset *core.Asset, report *Report, cause error) {
	r.logger.Warn("asset extraction failed", "asset", asset.ID, "err", cause)
	report.recordFailure(asset.ID, cause)

	if err := r.assets.UpdateAssetStatus(ctx, asset.ID, core.StatusFailed); err != nil {
		r.logger.Error("could not mark asset failed", "asset", asset.ID, "err", err)
	}
}

// Release releases the worker pool. The runner should not be used after
// calling Release.
func (r *Runner) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}
