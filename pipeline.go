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


package datakiln

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/datakiln/ai"
	"github.com/poiesic/datakiln/ai/openai"
	"github.com/poiesic/datakiln/blob"
	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/feature"
	"github.com/poiesic/datakiln/fetch"
	"github.com/poiesic/datakiln/ingest"
	"github.com/poiesic/datakiln/label"
	"github.com/poiesic/datakiln/neardup"
	"github.com/poiesic/datakiln/reprocess"
	"github.com/poiesic/datakiln/shard"
	"github.com/poiesic/datakiln/storage"
	"github.com/poiesic/datakiln/storage/badger"
)

var (
	// ErrNoLabelingFunctions is returned by Run without labeling functions.
	ErrNoLabelingFunctions = errors.New("at least one labeling function required")

	// ErrNothingToLabel is returned when no assets are ready for the
	// labeling stage.
	ErrNothingToLabel = errors.New("no assets ready for labeling")

	// ErrShardDirRequired is returned by Run without a shard directory.
	ErrShardDirRequired = errors.New("shard output directory required")
)

// Pipeline owns the storage backend, the blob store and the embedding
// provider, and wires the processing stages together.
type Pipeline struct {
	backend  *badger.Backend
	assets   storage.AssetRepository
	features storage.FeatureRepository
	labels   storage.LabelRepository
	blobs    blob.Store
	provider ai.Provider
	logger   *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	aiConfig *ai.Config
	provider ai.Provider
	blobs    blob.Store
	inMemory bool
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(config *ai.Config) PipelineOption {
	return func(o *pipelineOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithProvider supplies an embedding provider directly, bypassing
// provider construction from configuration.
func WithProvider(provider ai.Provider) PipelineOption {
	return func(o *pipelineOptions) {
		o.provider = provider
	}
}

// WithBlobStore supplies a blob store. Default is a filesystem store in a
// "blobs" directory next to the database.
func WithBlobStore(store blob.Store) PipelineOption {
	return func(o *pipelineOptions) {
		o.blobs = store
	}
}

// WithInMemory keeps the database and blob store in memory. Nothing
// survives Close; intended for tests and the demo scenario.
func WithInMemory() PipelineOption {
	return func(o *pipelineOptions) {
		o.inMemory = true
	}
}

// NewPipeline opens the storage backend at filePath and assembles the
// repositories, blob store and embedding provider around it.
func NewPipeline(filePath string, opts ...PipelineOption) (*Pipeline, error) {
	options := &pipelineOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	assets, err := badger.NewAssetRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	features, err := badger.NewFeatureRepository(backend)
	if err != nil {
		assets.Close()
		backend.Close()
		return nil, err
	}

	labels, err := badger.NewLabelRepository(backend)
	if err != nil {
		features.Close()
		assets.Close()
		backend.Close()
		return nil, err
	}

	blobs := options.blobs
	if blobs == nil {
		if options.inMemory {
			blobs = blob.NewMemoryStore()
		} else {
			blobs, err = blob.NewFSStore(filepath.Join(filePath, "blobs"))
			if err != nil {
				labels.Close()
				features.Close()
				assets.Close()
				backend.Close()
				return nil, err
			}
		}
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			blobs.Close()
			labels.Close()
			features.Close()
			assets.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Pipeline{
		backend:  backend,
		assets:   assets,
		features: features,
		labels:   labels,
		blobs:    blobs,
		provider: provider,
		logger:   slog.Default().With("component", "pipeline"),
	}, nil
}

// Close releases the provider, repositories, blob store and backend.
func (p *Pipeline) Close() error {
	if err := p.provider.Close(); err != nil {
		p.logger.Error("error closing embedding provider", "err", err)
	}
	if err := p.blobs.Close(); err != nil {
		p.logger.Error("error closing blob store", "err", err)
	}

	if err := p.labels.Close(); err != nil {
		p.logger.Error("error closing label repository", "err", err)
		return err
	}
	if err := p.features.Close(); err != nil {
		p.logger.Error("error closing feature repository", "err", err)
		return err
	}
	if err := p.assets.Close(); err != nil {
		p.logger.Error("error closing asset repository", "err", err)
		return err
	}
	if err := p.backend.Close(); err != nil {
		p.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (p *Pipeline) AssetRepository() storage.AssetRepository {
	return p.assets
}

func (p *Pipeline) FeatureRepository() storage.FeatureRepository {
	return p.features
}

func (p *Pipeline) LabelRepository() storage.LabelRepository {
	return p.labels
}

func (p *Pipeline) BlobStore() blob.Store {
	return p.blobs
}

// NewIngestor creates an ingestor over the pipeline's storage. A nil
// fetcher gets the default HTTP fetcher.
func (p *Pipeline) NewIngestor(fetcher fetch.Fetcher, opts ...ingest.Option) (*ingest.Ingestor, error) {
	if fetcher == nil {
		fetcher = fetch.New()
	}
	return ingest.New(p.assets, p.blobs, fetcher, opts...)
}

// NewExtractionRunner creates a feature extraction runner over the
// pipeline's storage and embedding provider.
func (p *Pipeline) NewExtractionRunner(opts ...feature.RunnerOption) (*feature.Runner, error) {
	extractor := feature.NewExtractor(p.provider)
	return feature.NewRunner(p.assets, p.features, p.blobs, extractor, opts...)
}

// NewReprocessor creates a reprocessor that fills in missing embeddings.
// Progress lines go to progress; nil discards them.
func (p *Pipeline) NewReprocessor(config *reprocess.Config, progress io.Writer) (*reprocess.Reprocessor, error) {
	if progress == nil {
		progress = io.Discard
	}
	return reprocess.NewReprocessor(p.assets, p.features, p.blobs, p.provider, config, progress)
}

// NewNearDupDetector creates a near-duplicate detector over the stored
// feature records.
func (p *Pipeline) NewNearDupDetector(opts ...neardup.Option) (*neardup.Detector, error) {
	return neardup.NewDetector(p.features, opts...)
}

// LabelRequest describes one aggregation pass over assets awaiting labels.
type LabelRequest struct {
	// Funcs are the labeling functions to vote with. Required.
	Funcs []label.Func

	// RunID identifies the aggregation run. Empty gets a random UUID.
	RunID string

	// Seed seeds the label model initialization.
	Seed uint64

	// MajorityFallback falls back to majority voting when the model fit
	// is degenerate instead of failing the pass.
	MajorityFallback bool
}

// LabelReport summarizes one aggregation pass.
type LabelReport struct {
	RunID        string
	Labeled      int
	Model        *label.ModelParams
	UsedMajority bool

	// Assets are the labeled assets in matrix row order.
	Assets []*core.Asset
}

// Label votes on every asset in status processing, aggregates the vote
// matrix and advances the labeled assets.
func (p *Pipeline) Label(ctx context.Context, req *LabelRequest) (*LabelReport, error) {
	if len(req.Funcs) == 0 {
		return nil, ErrNoLabelingFunctions
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	assets, err := p.assets.ListAssetsByStatus(ctx, core.StatusProcessing, 0)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, ErrNothingToLabel
	}

	examples := make([]*label.Example, 0, len(assets))
	for _, asset := range assets {
		example := &label.Example{Asset: asset}

		record, err := p.features.GetFeature(ctx, asset.ID)
		if err == nil {
			example.Feature = record
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		caption, err := p.caption(ctx, asset, example.Feature)
		if err != nil {
			return nil, err
		}
		example.Caption = caption
		examples = append(examples, example)
	}

	matrix, err := label.Apply(req.Funcs, examples)
	if err != nil {
		return nil, err
	}

	report := &LabelReport{RunID: runID, Assets: assets}
	labels, params, err := label.Aggregate(matrix,
		label.WithRunID(runID),
		label.WithSeed(req.Seed),
		label.WithAggregateLogger(p.logger))
	if err != nil {
		var aggErr *label.AggregationError
		if !req.MajorityFallback || !errors.As(err, &aggErr) {
			return nil, err
		}
		p.logger.Warn("model fit degenerate, falling back to majority vote",
			"run", runID, "reason", aggErr.Reason)
		labels, err = label.MajorityVote(matrix, runID)
		if err != nil {
			return nil, err
		}
		report.UsedMajority = true
	}
	report.Model = params

	if err := p.labels.PutLabels(ctx, labels...); err != nil {
		return nil, err
	}
	for _, asset := range assets {
		if err := p.assets.UpdateAssetStatus(ctx, asset.ID, core.StatusLabeled); err != nil {
			return nil, err
		}
	}
	report.Labeled = len(labels)
	return report, nil
}

// ShardLabeled packs every asset in status labeled into shard archives in
// dir and advances everything the writer accepted to shipped.
func (p *Pipeline) ShardLabeled(ctx context.Context, dir string, capacity int) (*shard.Manifest, error) {
	if dir == "" {
		return nil, ErrShardDirRequired
	}
	if capacity <= 0 {
		return nil, shard.ErrInvalidCapacity
	}

	assets, err := p.assets.ListAssetsByStatus(ctx, core.StatusLabeled, 0)
	if err != nil {
		return nil, err
	}

	var streamErr error
	samples := func(yield func(*core.Sample) bool) {
		for _, asset := range assets {
			sample, err := p.buildSample(ctx, asset)
			if err != nil {
				streamErr = err
				return
			}
			if !yield(sample) {
				return
			}
		}
	}

	manifest, err := shard.Write(ctx, dir, capacity, samples,
		shard.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	if streamErr != nil {
		return nil, streamErr
	}

	rejected := make(map[core.AssetID]bool, len(manifest.Rejected))
	for _, rej := range manifest.Rejected {
		rejected[rej.AssetID] = true
	}
	for _, asset := range assets {
		if rejected[asset.ID] {
			continue
		}
		if err := p.assets.UpdateAssetStatus(ctx, asset.ID, core.StatusShipped); err != nil {
			return nil, err
		}
	}
	return manifest, nil
}

// RunRequest describes one end-to-end pipeline run.
type RunRequest struct {
	// Sources to ingest before processing. May be empty to process
	// already-ingested assets.
	Sources []ingest.Request

	// Fetcher retrieves source content. Nil gets the default HTTP fetcher.
	Fetcher fetch.Fetcher

	// Funcs are the labeling functions to vote with. Required.
	Funcs []label.Func

	// RunID identifies the aggregation run. Empty gets a random UUID.
	RunID string

	// Seed seeds the label model initialization.
	Seed uint64

	// MajorityFallback falls back to majority voting when the model fit
	// is degenerate instead of failing the run.
	MajorityFallback bool

	// ShardDir is the output directory for shard archives. Required.
	ShardDir string

	// Capacity is the fixed number of samples per shard. Required.
	Capacity int
}

// RunReport summarizes one end-to-end run, stage by stage.
type RunReport struct {
	RunID        string
	Ingested     *ingest.Report
	Extracted    *feature.Report
	Labeled      int
	Model        *label.ModelParams
	UsedMajority bool
	Manifest     *shard.Manifest
	Elapsed      time.Duration
}

// Run executes ingest, extraction, label aggregation and sharding as one
// sequential pass. Per-item failures stay inside their stage reports; only
// stage-fatal conditions fail the run.
func (p *Pipeline) Run(ctx context.Context, req *RunRequest) (*RunReport, error) {
	if len(req.Funcs) == 0 {
		return nil, ErrNoLabelingFunctions
	}
	if req.ShardDir == "" {
		return nil, ErrShardDirRequired
	}
	if req.Capacity <= 0 {
		return nil, shard.ErrInvalidCapacity
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	start := time.Now()
	report := &RunReport{RunID: runID}

	if len(req.Sources) > 0 {
		ingestor, err := p.NewIngestor(req.Fetcher)
		if err != nil {
			return nil, fmt.Errorf("ingest stage: %w", err)
		}
		report.Ingested = ingestor.IngestBatch(ctx, req.Sources)
		ingestor.Release()
	}

	runner, err := p.NewExtractionRunner()
	if err != nil {
		return nil, fmt.Errorf("extract stage: %w", err)
	}
	report.Extracted, err = runner.ExtractPending(ctx)
	runner.Release()
	if err != nil {
		return nil, fmt.Errorf("extract stage: %w", err)
	}

	labelReport, err := p.Label(ctx, &LabelRequest{
		Funcs:            req.Funcs,
		RunID:            runID,
		Seed:             req.Seed,
		MajorityFallback: req.MajorityFallback,
	})
	if err != nil {
		return nil, fmt.Errorf("label stage: %w", err)
	}
	report.Labeled = labelReport.Labeled
	report.Model = labelReport.Model
	report.UsedMajority = labelReport.UsedMajority

	report.Manifest, err = p.ShardLabeled(ctx, req.ShardDir, req.Capacity)
	if err != nil {
		return nil, fmt.Errorf("shard stage: %w", err)
	}

	report.Elapsed = time.Since(start)
	p.logger.Info("pipeline run complete",
		"run", runID,
		"labeled", report.Labeled,
		"shards", len(report.Manifest.Shards),
		"samples", report.Manifest.TotalSamples,
		"elapsed", report.Elapsed)
	return report, nil
}

// buildSample assembles the shard sample for one labeled asset.
func (p *Pipeline) buildSample(ctx context.Context, asset *core.Asset) (*core.Sample, error) {
	data, err := p.blobs.Get(ctx, asset.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("load blob for %s: %w", asset.ID, err)
	}

	sample := &core.Sample{
		AssetID: asset.ID,
		Data:    data,
		Format:  "bin",
	}

	record, err := p.features.GetFeature(ctx, asset.ID)
	if err == nil {
		sample.Meta = record.Meta
		sample.Format = payloadFormat(record)
		if record.Modality == core.ModalityText {
			sample.Caption = string(data)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	aggLabel, err := p.labels.GetLabel(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("load label for %s: %w", asset.ID, err)
	}
	sample.Label = aggLabel
	return sample, nil
}

// caption returns the text a labeling function inspects for an asset:
// the content itself for text assets, empty otherwise.
func (p *Pipeline) caption(ctx context.Context, asset *core.Asset, record *core.FeatureRecord) (string, error) {
	if record == nil || record.Modality != core.ModalityText {
		return "", nil
	}
	data, err := p.blobs.Get(ctx, asset.StorageKey)
	if err != nil {
		return "", fmt.Errorf("load caption for %s: %w", asset.ID, err)
	}
	return string(data), nil
}

// payloadFormat maps a feature record to the payload member extension.
func payloadFormat(record *core.FeatureRecord) string {
	switch record.Modality {
	case core.ModalityText:
		return "txt"
	case core.ModalityAudio:
		return "wav"
	case core.ModalityImage:
		switch record.Meta.Format {
		case "jpeg":
			return "jpg"
		case "":
			return "bin"
		default:
			return record.Meta.Format
		}
	}
	return "bin"
}
