package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/udisondev/terrastream/internal/terrain"
)

// SQLiteHeightFieldStore implements terrain.HeightFieldStore in a single
// SQLite file, for running without a database server.
type SQLiteHeightFieldStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the store at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteHeightFieldStore, error) {
	if path == "" {
		return nil, errors.New("empty sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating sqlite dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// One writer; WAL lets readers proceed alongside it.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS height_fields (
			cache_key  TEXT PRIMARY KEY,
			width      INTEGER NOT NULL,
			height     INTEGER NOT NULL,
			min_value  REAL NOT NULL,
			max_value  REAL NOT NULL,
			payload    BLOB NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	} {
		if _, err := sqlDB.ExecContext(ctx, stmt); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("initializing sqlite %s: %w", path, err)
		}
	}

	return &SQLiteHeightFieldStore{db: sqlDB}, nil
}

// LoadHeightField returns the field stored under key, or terrain.ErrNotFound.
func (s *SQLiteHeightFieldStore) LoadHeightField(ctx context.Context, key string) (*terrain.HeightField, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM height_fields WHERE cache_key = ?`, key,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, terrain.ErrNotFound
		}
		return nil, fmt.Errorf("querying height field %s: %w", key, err)
	}

	hf, err := terrain.DecodeHeightField(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding height field %s: %w", key, err)
	}
	return hf, nil
}

// SaveHeightField stores hf under key. Saving an existing key is a no-op.
func (s *SQLiteHeightFieldStore) SaveHeightField(ctx context.Context, key string, hf *terrain.HeightField) error {
	payload, err := terrain.EncodeHeightField(hf)
	if err != nil {
		return fmt.Errorf("encoding height field %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO height_fields (cache_key, width, height, min_value, max_value, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key, hf.Width, hf.Height, hf.Min, hf.Max, payload,
	)
	if err != nil {
		return fmt.Errorf("saving height field %s: %w", key, err)
	}
	return nil
}

// Count returns the number of stored fields.
func (s *SQLiteHeightFieldStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM height_fields`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting height fields: %w", err)
	}
	return n, nil
}

// Close closes the database file.
func (s *SQLiteHeightFieldStore) Close() error {
	return s.db.Close()
}
