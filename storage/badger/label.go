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


package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/storage"
)

// LabelRepository implements storage.LabelRepository for BadgerDB.
type LabelRepository struct {
	backend *Backend
}

var _ storage.LabelRepository = (*LabelRepository)(nil)

// NewLabelRepository creates a new LabelRepository.
func NewLabelRepository(backend *Backend) (*LabelRepository, error) {
	return &LabelRepository{
		backend: backend,
	}, nil
}

// Close releases resources. LabelRepository has no resources to release.
func (r *LabelRepository) Close() error {
	return nil
}

// PutLabels stores aggregated labels, replacing any label a previous run
// produced for the same asset. The run index entry for the previous run is
// removed so each asset appears under exactly one run.
func (r *LabelRepository) PutLabels(ctx context.Context, labels ...*core.AggregatedLabel) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, label := range labels {
			if label.CreatedAt.IsZero() {
				label.CreatedAt = time.Now().UTC()
			}

			key := makeLabelKey(label.AssetID)

			// Drop the previous run's index entry if the asset was
			// labeled before
			old, err := readLabel(tx, key)
			if err != nil {
				return err
			}
			if old != nil && old.RunID != label.RunID {
				if err := tx.Delete(makeLabelRunKey(old.RunID, old.AssetID)); err != nil {
					return err
				}
			}

			if err := tx.Set(key, storage.MarshalAggregatedLabel(label)); err != nil {
				return err
			}
			if err := tx.Set(makeLabelRunKey(label.RunID, label.AssetID), storage.MarshalAssetID(label.AssetID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	return mapTxnError(err)
}

// GetLabel retrieves the aggregated label for an asset.
func (r *LabelRepository) GetLabel(ctx context.Context, id core.AssetID) (*core.AggregatedLabel, error) {
	var result *core.AggregatedLabel
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readLabel(tx, makeLabelKey(id))
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

// ListLabelsByRun retrieves all labels produced by one aggregation run.
func (r *LabelRepository) ListLabelsByRun(ctx context.Context, runID string) ([]*core.AggregatedLabel, error) {
	var results []*core.AggregatedLabel
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialLabelRunKey(runID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var assetID core.AssetID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				assetID, err = storage.UnmarshalAssetID(val)
				return err
			})
			if err != nil {
				return err
			}

			label, err := readLabel(tx, makeLabelKey(assetID))
			if err != nil {
				return err
			}
			// Skip index entries whose label was replaced mid-scan
			if label == nil || label.RunID != runID {
				continue
			}
			results = append(results, label)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// readLabel reads an aggregated label from the transaction.
func readLabel(tx *badger.Txn, key []byte) (*core.AggregatedLabel, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var label *core.AggregatedLabel
	err = item.Value(func(val []byte) error {
		var err error
		label, err = storage.UnmarshalAggregatedLabel(val)
		return err
	})
	return label, err
}
