package storage

import (
	"context"

	"github.com/poiesic/datakiln/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close closes the storage backend and releases resources.
	Close() error
}

// AssetRepository provides operations for managing asset metadata rows and
// the checksum index. The checksum uniqueness constraint is the pipeline's
// only synchronization primitive: concurrent inserts of the same content
// are resolved by the constraint, never by locks.
type AssetRepository interface {
	Repository

	// CreateAsset inserts a new asset row and its checksum index entry.
	// Returns ErrDuplicateChecksum if an asset with the same checksum
	// already exists, and ErrConflict if a concurrent transaction won a
	// write race; callers handle both by re-reading the winner.
	// Sets CreatedAt/UpdatedAt if unset.
	CreateAsset(ctx context.Context, asset *core.Asset) error

	// GetAsset retrieves a single asset by ID.
	// Returns ErrNotFound if the asset doesn't exist.
	GetAsset(ctx context.Context, id core.AssetID) (*core.Asset, error)

	// GetAssetByChecksum retrieves the asset owning a content checksum.
	// Returns ErrNotFound if no asset has this checksum.
	GetAssetByChecksum(ctx context.Context, checksum string) (*core.Asset, error)

	// ListAssetsByStatus retrieves up to limit assets in the given lifecycle
	// status. A limit <= 0 means no limit.
	ListAssetsByStatus(ctx context.Context, status core.Status, limit int) ([]*core.Asset, error)

	// UpdateAssetStatus advances an asset's lifecycle status. The move must
	// be forward-only per core.ValidateTransition; invalid moves return
	// core.ErrInvalidTransition. Returns ErrNotFound for unknown assets.
	UpdateAssetStatus(ctx context.Context, id core.AssetID, status core.Status) error

	// ResetAssetStatus sets an asset's status without transition validation.
	// This is the explicit re-processing escape hatch; nothing else may
	// regress a status. Returns ErrNotFound for unknown assets.
	ResetAssetStatus(ctx context.Context, id core.AssetID, status core.Status) error

	// CountAssetsByStatus returns the number of assets per lifecycle status.
	CountAssetsByStatus(ctx context.Context) (map[core.Status]int, error)
}

// FeatureRepository provides operations for managing feature records.
type FeatureRepository interface {
	Repository

	// PutFeature inserts the feature record for an asset. Feature records
	// are one-to-one with assets; returns ErrDuplicateKey if a record
	// already exists for the asset.
	PutFeature(ctx context.Context, record *core.FeatureRecord) error

	// UpdateFeature replaces an existing feature record. Used by
	// reprocessing runs to fill in embeddings that were unavailable at
	// extraction time. Returns ErrNotFound if no record exists.
	UpdateFeature(ctx context.Context, record *core.FeatureRecord) error

	// GetFeature retrieves the feature record for an asset.
	// Returns ErrNotFound if the asset has not been processed.
	GetFeature(ctx context.Context, id core.AssetID) (*core.FeatureRecord, error)

	// DeleteFeature removes the feature record for an asset, if present.
	// Deleting a missing record is not an error.
	DeleteFeature(ctx context.Context, id core.AssetID) error

	// ListFeaturesMissingEmbedding retrieves up to limit records stored with
	// the "no embedding" marker. A limit <= 0 means no limit.
	ListFeaturesMissingEmbedding(ctx context.Context, limit int) ([]*core.FeatureRecord, error)

	// ForEachFeature calls fn for every stored feature record.
	// Iteration stops on the first error from fn.
	ForEachFeature(ctx context.Context, fn func(*core.FeatureRecord) error) error

	// FindSimilarFeatures finds feature records whose embeddings have
	// cosine similarity >= minSimilarity with the query vector, up to limit
	// results ordered by similarity (highest first). Records without
	// embeddings are skipped.
	FindSimilarFeatures(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*FeatureMatch, error)
}

// LabelRepository provides operations for managing aggregated labels.
type LabelRepository interface {
	Repository

	// PutLabels stores aggregated labels, replacing any label a previous
	// aggregation run produced for the same asset.
	PutLabels(ctx context.Context, labels ...*core.AggregatedLabel) error

	// GetLabel retrieves the aggregated label for an asset.
	// Returns ErrNotFound if no aggregation run has labeled the asset.
	GetLabel(ctx context.Context, id core.AssetID) (*core.AggregatedLabel, error)

	// ListLabelsByRun retrieves all labels produced by one aggregation run.
	ListLabelsByRun(ctx context.Context, runID string) ([]*core.AggregatedLabel, error)
}

// FeatureMatch is a feature record matched by vector similarity search.
type FeatureMatch struct {
	Record *core.FeatureRecord
	Score  float32
}
