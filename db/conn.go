package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"househub/config"
	"househub/kv"
)

// NewPool constructs a pgx connection pool using the provided connection string.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	if connString == "" {
		return nil, fmt.Errorf("db: empty connection string")
	}

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("db: parse config: %w", err)
	}

	return pgxpool.NewWithConfig(ctx, cfg)
}

// OpenStore opens the key-value backend selected by cfg. The returned close
// function releases the backing connections and is never nil.
func OpenStore(ctx context.Context, cfg *config.Config) (kv.Store, func(), error) {
	switch cfg.Store {
	case config.StoreMemory, "":
		slog.Info("using in-memory store; data is lost on restart")
		return kv.NewMemoryStore(), func() {}, nil

	case config.StoreSQLite:
		store, err := kv.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using sqlite store", "path", cfg.SQLitePath)
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("close sqlite store", "error", err)
			}
		}, nil

	case config.StorePostgres:
		pool, err := NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("db: ping postgres: %w", err)
		}
		store := kv.NewPGStore(pool)
		if err := store.InitSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("using postgres store")
		return store, pool.Close, nil
	}
	return nil, nil, fmt.Errorf("db: unknown store %q", cfg.Store)
}
