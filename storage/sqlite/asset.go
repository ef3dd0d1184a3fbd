package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/storage"
)

// AssetRepository implements storage.AssetRepository on SQLite.
type AssetRepository struct {
	backend *Backend
}

var _ storage.AssetRepository = (*AssetRepository)(nil)

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(backend *Backend) (*AssetRepository, error) {
	return &AssetRepository{backend: backend}, nil
}

// Close releases resources. AssetRepository has no resources to release.
func (r *AssetRepository) Close() error {
	return nil
}

const assetColumns = "id, source_url, checksum, storage_key, license, source, status, created_at, updated_at"

// CreateAsset inserts a new asset row. The UNIQUE constraint on checksum
// resolves concurrent inserts of the same content: one insert wins, the
// rest get storage.ErrDuplicateChecksum and re-read the winner.
func (r *AssetRepository) CreateAsset(ctx context.Context, asset *core.Asset) error {
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now().UTC()
	}
	if asset.UpdatedAt.IsZero() {
		asset.UpdatedAt = asset.CreatedAt
	}

	_, err := r.backend.db.ExecContext(ctx,
		"INSERT INTO assets ("+assetColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		string(asset.ID), asset.SourceURL, asset.Checksum, asset.StorageKey,
		asset.License, asset.Source, int(asset.Status),
		asset.CreatedAt.UnixNano(), asset.UpdatedAt.UnixNano())
	return mapSQLError(err)
}

// GetAsset retrieves a single asset by ID.
func (r *AssetRepository) GetAsset(ctx context.Context, id core.AssetID) (*core.Asset, error) {
	row := r.backend.db.QueryRowContext(ctx,
		"SELECT "+assetColumns+" FROM assets WHERE id = ?", string(id))
	return scanAsset(row)
}

// GetAssetByChecksum retrieves the asset owning a content checksum.
func (r *AssetRepository) GetAssetByChecksum(ctx context.Context, checksum string) (*core.Asset, error) {
	row := r.backend.db.QueryRowContext(ctx,
		"SELECT "+assetColumns+" FROM assets WHERE checksum = ?", checksum)
	return scanAsset(row)
}

// ListAssetsByStatus retrieves up to limit assets in the given status,
// ordered by creation time then ID.
func (r *AssetRepository) ListAssetsByStatus(ctx context.Context, status core.Status, limit int) ([]*core.Asset, error) {
	query := "SELECT " + assetColumns + " FROM assets WHERE status = ? ORDER BY created_at, id"
	args := []any{int(status)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.backend.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var results []*core.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, asset)
	}
	return results, rows.Err()
}

// UpdateAssetStatus advances an asset's lifecycle status. The move is
// checked against core.ValidateTransition; regressions are rejected.
func (r *AssetRepository) UpdateAssetStatus(ctx context.Context, id core.AssetID, status core.Status) error {
	return r.setStatus(ctx, id, status, true)
}

// ResetAssetStatus sets an asset's status without transition validation.
// Only re-processing runs call this; everything else goes through
// UpdateAssetStatus.
func (r *AssetRepository) ResetAssetStatus(ctx context.Context, id core.AssetID, status core.Status) error {
	if err := core.ValidateStatus(status); err != nil {
		return err
	}
	return r.setStatus(ctx, id, status, false)
}

func (r *AssetRepository) setStatus(ctx context.Context, id core.AssetID, status core.Status, validate bool) error {
	tx, err := r.backend.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLError(err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM assets WHERE id = ?", string(id)).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return mapSQLError(err)
	}

	if validate {
		if err := core.ValidateTransition(core.Status(current), status); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE assets SET status = ?, updated_at = ? WHERE id = ?",
		int(status), time.Now().UTC().UnixNano(), string(id))
	if err != nil {
		return mapSQLError(err)
	}
	return mapSQLError(tx.Commit())
}

// CountAssetsByStatus returns the number of assets per lifecycle status.
func (r *AssetRepository) CountAssetsByStatus(ctx context.Context) (map[core.Status]int, error) {
	rows, err := r.backend.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM assets GROUP BY status")
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	counts := make(map[core.Status]int)
	for rows.Next() {
		var status, count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[core.Status(status)] = count
	}
	return counts, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*core.Asset, error) {
	var (
		asset              core.Asset
		id                 string
		status             int
		createdNS, updated int64
	)
	err := row.Scan(&id, &asset.SourceURL, &asset.Checksum, &asset.StorageKey,
		&asset.License, &asset.Source, &status, &createdNS, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, mapSQLError(err)
	}

	asset.ID = core.AssetID(id)
	asset.Status = core.Status(status)
	asset.CreatedAt = time.Unix(0, createdNS).UTC()
	asset.UpdatedAt = time.Unix(0, updated).UTC()
	return &asset, nil
}
