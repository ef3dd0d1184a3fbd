package neardup

import (
	"context"
	"log/slog"
	"math/bits"
	"sort"

	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/storage"
)

const (
	// DefaultMaxHamming is the largest fingerprint Hamming distance
	// still considered a visual near-duplicate.
	DefaultMaxHamming = 8

	// DefaultMinSimilarity is the cosine similarity floor for embedding
	// candidates.
	DefaultMinSimilarity = 0.92
)

// Match is one near-duplicate candidate for the queried asset.
type Match struct {
	Record *core.FeatureRecord

	// Hamming is the fingerprint distance; valid only when ByFingerprint.
	Hamming       int
	ByFingerprint bool

	// Similarity is the embedding cosine similarity; valid only when ByEmbedding.
	Similarity  float32
	ByEmbedding bool

	// Score combines both signals for ranking.
	Score float32
}

// Detector scans the feature store for near-duplicates of an asset.
type Detector struct {
	features      storage.FeatureRepository
	maxHamming    int
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// WithMaxHamming sets the fingerprint distance threshold.
func WithMaxHamming(max int) Option {
	return func(d *Detector) error {
		d.maxHamming = max
		return nil
	}
}

// WithMinSimilarity sets the embedding similarity floor.
func WithMinSimilarity(min float32) Option {
	return func(d *Detector) error {
		d.minSimilarity = min
		return nil
	}
}

// NewDetector creates a new detector.
func NewDetector(features storage.FeatureRepository, opts ...Option) (*Detector, error) {
	if features == nil {
		return nil, ErrFeatureRepositoryRequired
	}

	d := &Detector{
		features:      features,
		maxHamming:    DefaultMaxHamming,
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// FindNearDuplicates returns up to maxHits near-duplicate candidates for
// the asset, ranked by combined score.
func (d *Detector) FindNearDuplicates(ctx context.Context, id core.AssetID, maxHits int) ([]*Match, error) {
	return d.FindNearDuplicatesWithMonitor(ctx, id, maxHits, nil)
}

// FindNearDuplicatesWithMonitor runs detection with monitoring hooks.
// The monitor receives callbacks at each stage of the scan.
func (d *Detector) FindNearDuplicatesWithMonitor(ctx context.Context, id core.AssetID, maxHits int, monitor Monitor) ([]*Match, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(string(id))

	query, err := d.features.GetFeature(ctx, id)
	if err != nil {
		return nil, err
	}
	if !query.HasFingerprint && !query.HasEmbedding {
		return nil, ErrNoSignal
	}

	byID := make(map[core.AssetID]*Match)

	// 1. Fingerprint pass: Hamming distance over 64-bit perceptual hashes
	if query.HasFingerprint {
		hits := 0
		err := d.features.ForEachFeature(ctx, func(record *core.FeatureRecord) error {
			if record.AssetID == id || !record.HasFingerprint {
				return nil
			}
			distance := bits.OnesCount64(query.Fingerprint ^ record.Fingerprint)
			if distance <= d.maxHamming {
				byID[record.AssetID] = &Match{
					Record:        record,
					Hamming:       distance,
					ByFingerprint: true,
				}
				hits++
			}
			return nil
		})
		if err != nil {
			d.logger.Error("fingerprint scan failed", "asset_id", id, "err", err)
			return nil, err
		}
		monitor.AfterFingerprintScan(hits)
	}

	// 2. Embedding pass: cosine similarity over unit-normalized vectors
	if query.HasEmbedding {
		matches, err := d.features.FindSimilarFeatures(ctx, query.Embedding, d.minSimilarity, 0)
		if err != nil {
			d.logger.Error("embedding search failed", "asset_id", id, "err", err)
			return nil, err
		}

		hits := 0
		for _, match := range matches {
			if match.Record.AssetID == id {
				continue
			}
			if existing, ok := byID[match.Record.AssetID]; ok {
				existing.Similarity = match.Score
				existing.ByEmbedding = true
			} else {
				byID[match.Record.AssetID] = &Match{
					Record:      match.Record,
					Similarity:  match.Score,
					ByEmbedding: true,
				}
			}
			hits++
		}
		monitor.AfterEmbeddingSearch(hits)
	}

	// 3. Score and rank: dual-signal candidates outrank either signal alone
	results := make([]*Match, 0, len(byID))
	for _, match := range byID {
		switch {
		case match.ByFingerprint && match.ByEmbedding:
			match.Score = 1.5 * match.Similarity
			monitor.DualHit(match)
		case match.ByFingerprint:
			match.Score = 1.0 - float32(match.Hamming)/64.0
			monitor.FingerprintHit(match)
		default:
			match.Score = match.Similarity
			monitor.EmbeddingHit(match)
		}
		results = append(results, match)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.AssetID < results[j].Record.AssetID
	})
	if maxHits > 0 && len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	return results, nil
}
