// Package settings is a small key/value lookup backed by the settings
// table. Callers supply their own defaults for absent keys.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads and writes configuration values.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the raw value for a key; found is false when the key is absent.
func (r *Repository) Get(ctx context.Context, key string) (value string, found bool, err error) {
	err = r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("settings: get %q: %w", key, err)
	}
	return value, true, nil
}

// GetInt returns the integer value for a key, or found=false when the key is
// absent or not numeric.
func (r *Repository) GetInt(ctx context.Context, key string) (int, bool, error) {
	raw, found, err := r.Get(ctx, key)
	if err != nil || !found {
		return 0, false, err
	}
	n, convErr := strconv.Atoi(raw)
	if convErr != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// Set upserts a configuration value.
func (r *Repository) Set(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO settings (key, value)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`
	if _, err := r.pool.Exec(ctx, q, key, value); err != nil {
		return fmt.Errorf("settings: set %q: %w", key, err)
	}
	return nil
}
