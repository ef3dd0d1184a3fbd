package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"github.com/poiesic/datakiln/core"
	"github.com/poiesic/datakiln/storage"
)

// FeatureRepository implements storage.FeatureRepository on SQLite.
type FeatureRepository struct {
	backend *Backend
}

var _ storage.FeatureRepository = (*FeatureRepository)(nil)

// NewFeatureRepository creates a new FeatureRepository.
func NewFeatureRepository(backend *Backend) (*FeatureRepository, error) {
	return &FeatureRepository{backend: backend}, nil
}

// Close releases resources. FeatureRepository has no resources to release.
func (r *FeatureRepository) Close() error {
	return nil
}

const featureColumns = `asset_id, modality, fingerprint, has_fingerprint,
	embedding, has_embedding, byte_size, width, height, format,
	word_count, lang, sample_rate, duration_ms, created_at`

// PutFeature inserts the feature record for an asset. Feature records are
// one-to-one with assets, so inserting over an existing record fails with
// storage.ErrDuplicateKey.
func (r *FeatureRepository) PutFeature(ctx context.Context, record *core.FeatureRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := r.backend.db.ExecContext(ctx,
		"INSERT INTO features ("+featureColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		featureArgs(record)...)
	return mapSQLError(err)
}

// UpdateFeature replaces an existing feature record.
func (r *FeatureRepository) UpdateFeature(ctx context.Context, record *core.FeatureRecord) error {
	res, err := r.backend.db.ExecContext(ctx,
		`UPDATE features SET modality = ?, fingerprint = ?, has_fingerprint = ?,
			embedding = ?, has_embedding = ?, byte_size = ?, width = ?, height = ?,
			format = ?, word_count = ?, lang = ?, sample_rate = ?, duration_ms = ?,
			created_at = ?
		WHERE asset_id = ?`,
		append(featureArgs(record)[1:], string(record.AssetID))...)
	if err != nil {
		return mapSQLError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetFeature retrieves the feature record for an asset.
func (r *FeatureRepository) GetFeature(ctx context.Context, id core.AssetID) (*core.FeatureRecord, error) {
	row := r.backend.db.QueryRowContext(ctx,
		"SELECT "+featureColumns+" FROM features WHERE asset_id = ?", string(id))
	return scanFeature(row)
}

// DeleteFeature removes the feature record for an asset, if present.
func (r *FeatureRepository) DeleteFeature(ctx context.Context, id core.AssetID) error {
	_, err := r.backend.db.ExecContext(ctx,
		"DELETE FROM features WHERE asset_id = ?", string(id))
	return mapSQLError(err)
}

// ListFeaturesMissingEmbedding retrieves up to limit records stored with
// the "no embedding" marker, ordered by asset ID.
func (r *FeatureRepository) ListFeaturesMissingEmbedding(ctx context.Context, limit int) ([]*core.FeatureRecord, error) {
	query := "SELECT " + featureColumns + " FROM features WHERE has_embedding = 0 ORDER BY asset_id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.backend.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var results []*core.FeatureRecord
	for rows.Next() {
		record, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, record)
	}
	return results, rows.Err()
}

// ForEachFeature calls fn for every stored feature record.
func (r *FeatureRepository) ForEachFeature(ctx context.Context, fn func(*core.FeatureRecord) error) error {
	rows, err := r.backend.db.QueryContext(ctx,
		"SELECT "+featureColumns+" FROM features ORDER BY asset_id")
	if err != nil {
		return mapSQLError(err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanFeature(rows)
		if err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return rows.Err()
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

func featureArgs(record *core.FeatureRecord) []any {
	return []any{
		string(record.AssetID), string(record.Modality),
		int64(record.Fingerprint), record.HasFingerprint,
		encodeVector(record.Embedding), record.HasEmbedding,
		record.Meta.ByteSize, record.Meta.Width, record.Meta.Height,
		record.Meta.Format, record.Meta.WordCount, record.Meta.Lang,
		record.Meta.SampleRate, record.Meta.DurationMS,
		record.CreatedAt.UnixNano(),
	}
}

func scanFeature(row rowScanner) (*core.FeatureRecord, error) {
	var (
		record      core.FeatureRecord
		id, mod     string
		fingerprint int64
		blob        []byte
		createdNS   int64
	)
	err := row.Scan(&id, &mod, &fingerprint, &record.HasFingerprint,
		&blob, &record.HasEmbedding, &record.Meta.ByteSize,
		&record.Meta.Width, &record.Meta.Height, &record.Meta.Format,
		&record.Meta.WordCount, &record.Meta.Lang, &record.Meta.SampleRate,
		&record.Meta.DurationMS, &createdNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, mapSQLError(err)
	}

	embedding, err := decodeVector(blob)
	if err != nil {
		return nil, err
	}

	record.AssetID = core.AssetID(id)
	record.Modality = core.Modality(mod)
	record.Fingerprint = uint64(fingerprint)
	record.Embedding = embedding
	record.CreatedAt = time.Unix(0, createdNS).UTC()
	return &record, nil
}
