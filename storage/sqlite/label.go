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


package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/storage"
)

// LabelRepository implements storage.LabelRepository on SQLite.
type LabelRepository struct {
	backend *Backend
}

var _ storage.LabelRepository = (*LabelRepository)(nil)

// NewLabelRepository creates a new LabelRepository.
func NewLabelRepository(backend *Backend) (*LabelRepository, error) {
	return &LabelRepository{backend: backend}, nil
}

// Close releases resources. LabelRepository has no resources to release.
func (r *LabelRepository) Close() error {
	return nil
}

// PutLabels stores aggregated labels, replacing any label a previous run
// produced for the same asset.
func (r *LabelRepository) PutLabels(ctx context.Context, labels ...*core.AggregatedLabel) error {
	tx, err := r.backend.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLError(err)
	}
	defer tx.Rollback()

	for _, label := range labels {
		if label.CreatedAt.IsZero() {
			label.CreatedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO labels (asset_id, p_positive, vote_count, run_id, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (asset_id) DO UPDATE SET
				p_positive = excluded.p_positive,
				vote_count = excluded.vote_count,
				run_id = excluded.run_id,
				created_at = excluded.created_at`,
			string(label.AssetID), label.PPositive, label.VoteCount,
			label.RunID, label.CreatedAt.UnixNano())
		if err != nil {
			return mapSQLError(err)
		}
	}
	return mapSQLError(tx.Commit())
}

// GetLabel retrieves the aggregated label for an asset.
func (r *LabelRepository) GetLabel(ctx context.Context, id core.AssetID) (*core.AggregatedLabel, error) {
	row := r.backend.db.QueryRowContext(ctx,
		"SELECT asset_id, p_positive, vote_count, run_id, created_at FROM labels WHERE asset_id = ?",
		string(id))
	return scanLabel(row)
}

// ListLabelsByRun retrieves all labels produced by one aggregation run,
// ordered by asset ID.
func (r *LabelRepository) ListLabelsByRun(ctx context.Context, runID string) ([]*core.AggregatedLabel, error) {
	rows, err := r.backend.db.QueryContext(ctx,
		"SELECT asset_id, p_positive, vote_count, run_id, created_at FROM labels WHERE run_id = ? ORDER BY asset_id",
		runID)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var results []*core.AggregatedLabel
	for rows.Next() {
		label, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, label)
	}
	return results, rows.Err()
}

func scanLabel(row rowScanner) (*core.AggregatedLabel, error) {
	var (
		label     core.AggregatedLabel
		id        string
		createdNS int64
	)
	err := row.Scan(&id, &label.PPositive, &label.VoteCount, &label.RunID, &createdNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, mapSQLError(err)
	}

	label.AssetID = core.AssetID(id)
	label.CreatedAt = time.Unix(0, createdNS).UTC()
	return &label, nil
}
