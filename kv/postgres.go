package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PGStore)(nil)

// PGStore keeps the key space in a PostgreSQL table so several API processes
// can share one store. Writes are still last-write-wins per key.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wires a pgxpool-backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// InitSchema creates the kv_entries table when missing.
func (s *PGStore) InitSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS kv_entries (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("kv: init postgres schema: %w", err)
	}
	return nil
}

// Get retrieves a value by key.
func (s *PGStore) Get(ctx context.Context, key string) (string, bool, error) {
	const selectSQL = `SELECT value FROM kv_entries WHERE key = $1`

	var value string
	if err := s.pool.QueryRow(ctx, selectSQL, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("kv: postgres get %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the value for key.
func (s *PGStore) Set(ctx context.Context, key, value string) error {
	const upsertSQL = `
		INSERT INTO kv_entries (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, upsertSQL, key, value); err != nil {
		return fmt.Errorf("kv: postgres set %q: %w", key, err)
	}
	return nil
}

// Remove deletes the key if present.
func (s *PGStore) Remove(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("kv: postgres remove %q: %w", key, err)
	}
	return nil
}

// ScanKeys lists keys in order and filters them client side.
func (s *PGStore) ScanKeys(ctx context.Context, match func(string) bool) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key FROM kv_entries ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("kv: postgres scan: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0, 16)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("kv: postgres scan key: %w", err)
		}
		if match == nil || match(key) {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kv: postgres iterate keys: %w", err)
	}
	return keys, nil
}
