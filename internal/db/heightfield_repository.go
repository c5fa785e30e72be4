package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/terrastream/internal/terrain"
)

// PostgresHeightFieldRepository implements terrain.HeightFieldStore for PostgreSQL.
// Rows are write-once: a key always maps to the same field.
type PostgresHeightFieldRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresHeightFieldRepository creates a new PostgreSQL repository.
func NewPostgresHeightFieldRepository(pool *pgxpool.Pool) *PostgresHeightFieldRepository {
	return &PostgresHeightFieldRepository{pool: pool}
}

// LoadHeightField returns the field stored under key, or terrain.ErrNotFound.
func (r *PostgresHeightFieldRepository) LoadHeightField(ctx context.Context, key string) (*terrain.HeightField, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM height_fields WHERE cache_key = $1`, key,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
func (r *PostgresHeightFieldRepository) SaveHeightField(ctx context.Context, key string, hf *terrain.HeightField) error {
	payload, err := terrain.EncodeHeightField(hf)
	if err != nil {
		return fmt.Errorf("encoding height field %s: %w", key, err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO height_fields (cache_key, width, height, min_value, max_value, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (cache_key) DO NOTHING`,
		key, hf.Width, hf.Height, hf.Min, hf.Max, payload,
	)
	if err != nil {
		return fmt.Errorf("saving height field %s: %w", key, err)
	}
	return nil
}

// Count returns the number of stored fields.
func (r *PostgresHeightFieldRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM height_fields`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting height fields: %w", err)
	}
	return n, nil
}

// Delete removes the field stored under key.
func (r *PostgresHeightFieldRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM height_fields WHERE cache_key = $1`, key); err != nil {
		return fmt.Errorf("deleting height field %s: %w", key, err)
	}
	return nil
}
