package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/storage"
)

// FeatureRepository implements storage.FeatureRepository for BadgerDB.
type FeatureRepository struct {
	backend *Backend
}

var _ storage.FeatureRepository = (*FeatureRepository)(nil)

// NewFeatureRepository creates a new FeatureRepository.
func NewFeatureRepository(backend *Backend) (*FeatureRepository, error) {
	return &FeatureRepository{
		backend: backend,
	}, nil
}

// Close releases resources. FeatureRepository has no resources to release.
func (r *FeatureRepository) Close() error {
	return nil
}

// PutFeature inserts the feature record for an asset. Feature records are
// one-to-one with assets, so inserting over an existing record fails with
// storage.ErrDuplicateKey.
func (r *FeatureRepository) PutFeature(ctx context.Context, record *core.FeatureRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeFeatureKey(record.AssetID)
		_, err := tx.Get(key)
		if err == nil {
			return storage.ErrDuplicateKey
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		if err := tx.Set(key, storage.MarshalFeatureRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return mapTxnError(err)
}

// UpdateFeature replaces an existing feature record.
func (r *FeatureRepository) UpdateFeature(ctx context.Context, record *core.FeatureRecord) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeFeatureKey(record.AssetID)
		old, err := readFeature(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		if err := tx.Set(key, storage.MarshalFeatureRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return mapTxnError(err)
}

// GetFeature retrieves the feature record for an asset.
func (r *FeatureRepository) GetFeature(ctx context.Context, id core.AssetID) (*core.FeatureRecord, error) {
	var result *core.FeatureRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readFeature(tx, makeFeatureKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// DeleteFeature removes the feature record for an asset, if present.
func (r *FeatureRepository) DeleteFeature(ctx context.Context, id core.AssetID) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeFeatureKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return mapTxnError(err)
}

// ListFeaturesMissingEmbedding retrieves up to limit records stored with
// the "no embedding" marker.
func (r *FeatureRepository) ListFeaturesMissingEmbedding(ctx context.Context, limit int) ([]*core.FeatureRecord, error) {
	var results []*core.FeatureRecord
	err := r.ForEachFeature(ctx, func(record *core.FeatureRecord) error {
		if !record.HasEmbedding {
			results = append(results, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.FeatureRecord) int {
		if a.AssetID < b.AssetID {
			return -1
		}
		if a.AssetID > b.AssetID {
			return 1
		}
		return 0
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ForEachFeature calls fn for every stored feature record.
func (r *FeatureRepository) ForEachFeature(ctx context.Context, fn func(*core.FeatureRecord) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(featureRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.FeatureRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalFeatureRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if record == nil {
				continue
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// FindSimilarFeatures finds feature records similar to the given vector.
// Embeddings are unit-normalized, so the dot product is the cosine
// similarity. Records stored with the "no embedding" marker are skipped.
func (r *FeatureRepository) FindSimilarFeatures(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*storage.FeatureMatch, error) {
	var results []*storage.FeatureMatch

	err := r.ForEachFeature(ctx, func(record *core.FeatureRecord) error {
		if !record.HasEmbedding {
			return nil
		}

		similarity := core.DotProduct(vector, record.Embedding)
		if similarity >= minSimilarity {
			results = append(results, &storage.FeatureMatch{
				Record: record,
				Score:  similarity,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *storage.FeatureMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// readFeature reads a feature record from the transaction.
func readFeature(tx *badger.Txn, key []byte) (*core.FeatureRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.FeatureRecord
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalFeatureRecord(val)
		return err
	})
	return record, err
}
