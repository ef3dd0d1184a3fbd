package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/storage"
)

// AssetRepository implements storage.AssetRepository for BadgerDB.
type AssetRepository struct {
	backend *Backend
}

var _ storage.AssetRepository = (*AssetRepository)(nil)

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(backend *Backend) (*AssetRepository, error) {
	return &AssetRepository{
		backend: backend,
	}, nil
}

// Close releases resources. AssetRepository has no resources to release.
func (r *AssetRepository) Close() error {
	return nil
}

// CreateAsset inserts a new asset and claims its checksum index entry.
// The Get on the checksum key registers a read inside the transaction, so
// two inserts racing on the same checksum cannot both commit: the loser
// gets storage.ErrConflict, a later insert gets storage.ErrDuplicateChecksum.
func (r *AssetRepository) CreateAsset(ctx context.Context, asset *core.Asset) error {
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now().UTC()
	}
	if asset.UpdatedAt.IsZero() {
		asset.UpdatedAt = asset.CreatedAt
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		ckKey := makeChecksumKey(asset.Checksum)
		_, err := tx.Get(ckKey)
		if err == nil {
			return storage.ErrDuplicateChecksum
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		if err := tx.Set(makeAssetKey(asset.ID), storage.MarshalAsset(asset)); err != nil {
			return err
		}
		if err := tx.Set(ckKey, storage.MarshalAssetID(asset.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return mapTxnError(err)
}

// GetAsset retrieves a single asset by ID.
func (r *AssetRepository) GetAsset(ctx context.Context, id core.AssetID) (*core.Asset, error) {
	var result *core.Asset
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readAsset(tx, makeAssetKey(id))
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

// GetAssetByChecksum retrieves the asset owning a content checksum.
func (r *AssetRepository) GetAssetByChecksum(ctx context.Context, checksum string) (*core.Asset, error) {
	var result *core.Asset
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Look up the owning ID from the checksum index
		item, err := tx.Get(makeChecksumKey(checksum))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var assetID core.AssetID
		err = item.Value(func(val []byte) error {
			assetID, err = storage.UnmarshalAssetID(val)
			return err
		})
		if err != nil {
			return err
		}

		// Look up the full asset
		result, err = readAsset(tx, makeAssetKey(assetID))
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

// ListAssetsByStatus retrieves up to limit assets in the given status.
// Results are ordered by creation time, then ID, so repeated listings of
// an unchanged store walk assets in the same order.
func (r *AssetRepository) ListAssetsByStatus(ctx context.Context, status core.Status, limit int) ([]*core.Asset, error) {
	var results []*core.Asset
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(assetRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var asset *core.Asset
			err := iter.Item().Value(func(val []byte) error {
				var err error
				asset, err = storage.UnmarshalAsset(val)
				return err
			})
			if err != nil {
				return err
			}
			if asset != nil && asset.Status == status {
				results = append(results, asset)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.Asset) int {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return 1
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// UpdateAssetStatus advances an asset's lifecycle status. The move is
// checked against core.ValidateTransition; regressions are rejected.
func (r *AssetRepository) UpdateAssetStatus(ctx context.Context, id core.AssetID, status core.Status) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeAssetKey(id)
		asset, err := readAsset(tx, key)
		if err != nil {
			return err
		}
		if asset == nil {
			return storage.ErrNotFound
		}

		if err := core.ValidateTransition(asset.Status, status); err != nil {
			return err
		}

		asset.Status = status
		asset.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalAsset(asset)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return mapTxnError(err)
}

// ResetAssetStatus sets an asset's status without transition validation.
// Only re-processing runs call this; everything else goes through
// UpdateAssetStatus.
func (r *AssetRepository) ResetAssetStatus(ctx context.Context, id core.AssetID, status core.Status) error {
	if err := core.ValidateStatus(status); err != nil {
		return err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeAssetKey(id)
		asset, err := readAsset(tx, key)
		if err != nil {
			return err
		}
		if asset == nil {
			return storage.ErrNotFound
		}

		asset.Status = status
		asset.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalAsset(asset)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return mapTxnError(err)
}

// CountAssetsByStatus returns the number of assets per lifecycle status.
func (r *AssetRepository) CountAssetsByStatus(ctx context.Context) (map[core.Status]int, error) {
	counts := make(map[core.Status]int)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(assetRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var asset *core.Asset
			err := iter.Item().Value(func(val []byte) error {
				var err error
				asset, err = storage.UnmarshalAsset(val)
				return err
			})
			if err != nil {
				return err
			}
			if asset != nil {
				counts[asset.Status]++
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// readAsset reads an asset from the transaction.
func readAsset(tx *badger.Txn, key []byte) (*core.Asset, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var asset *core.Asset
	err = item.Value(func(val []byte) error {
		var err error
		asset, err = storage.UnmarshalAsset(val)
		return err
	})
	return asset, err
}
