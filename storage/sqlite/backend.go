package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/poiesic/datakiln/storage"
)

// Backend wraps a SQLite database handle shared by the repositories.
type Backend struct {
	db     *sql.DB
	logger *slog.Logger
}

// MemoryDSN opens a private in-memory database. The backend pins a
// single connection, so the database lives until the handle is closed.
const MemoryDSN = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS assets (
	id          TEXT PRIMARY KEY,
	source_url  TEXT NOT NULL,
	checksum    TEXT NOT NULL UNIQUE,
	storage_key TEXT NOT NULL,
	license     TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	status      INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status, created_at, id);

CREATE TABLE IF NOT EXISTS features (
	asset_id        TEXT PRIMARY KEY,
	modality        TEXT NOT NULL,
	fingerprint     INTEGER NOT NULL DEFAULT 0,
	has_fingerprint INTEGER NOT NULL DEFAULT 0,
	embedding       BLOB,
	has_embedding   INTEGER NOT NULL DEFAULT 0,
	byte_size       INTEGER NOT NULL DEFAULT 0,
	width           INTEGER NOT NULL DEFAULT 0,
	height          INTEGER NOT NULL DEFAULT 0,
	format          TEXT NOT NULL DEFAULT '',
	word_count      INTEGER NOT NULL DEFAULT 0,
	lang            TEXT NOT NULL DEFAULT '',
	sample_rate     INTEGER NOT NULL DEFAULT 0,
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_features_missing ON features(has_embedding, asset_id);

CREATE TABLE IF NOT EXISTS labels (
	asset_id   TEXT PRIMARY KEY,
	p_positive REAL NOT NULL,
	vote_count INTEGER NOT NULL,
	run_id     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_labels_run ON labels(run_id);
`

// OpenBackend opens (and if needed initializes) the database at dsn.
// Use MemoryDSN for an in-memory database.
func OpenBackend(dsn string) (*Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// The driver serializes writes per connection; a single pinned
	// connection avoids SQLITE_BUSY between pooled handles and keeps
	// in-memory databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Backend{
		db:     db,
		logger: slog.Default().With("component", "sqlite"),
	}, nil
}

// Close closes the underlying database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}

// mapSQLError translates driver errors into storage errors. A violation
// of the checksum UNIQUE constraint is the dedup signal.
func mapSQLError(err error) error {
	if err == nil {
		return nil
	}

	var se *sqlitedriver.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return storage.ErrDuplicateChecksum
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return storage.ErrDuplicateKey
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return storage.ErrConflict
		}
	}
	return err
}
