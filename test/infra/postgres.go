package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Harness owns a Postgres database for store-level tests: either a container
// it started or a database reached through a caller-supplied DSN.
type Harness struct {
	container *PGContainer
	pool      *pgxpool.Pool
	dsn       string
}

// NewHarness connects to dsn, or boots a Postgres 16 container when dsn is
// empty. The kv schema is not created here; callers run the store's InitSchema.
func NewHarness(ctx context.Context, dsn string) (*Harness, error) {
	h := &Harness{container: &PGContainer{}, dsn: dsn}
	if dsn == "" {
		pgC, containerDSN, err := StartPostgres16(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("start postgres container: %w", err)
		}
		h.container = pgC
		h.dsn = containerDSN
	}

	cfg, err := pgxpool.ParseConfig(h.dsn)
	if err != nil {
		h.Close(ctx)
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	cfg.MaxConns = 32
	cfg.MaxConnIdleTime = 30 * time.Second
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		h.Close(ctx)
		return nil, fmt.Errorf("create pool: %w", err)
	}
	h.pool = pool
	return h, nil
}

// Pool exposes the configured pgx pool.
func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

// DSN returns the connection string for direct connections.
func (h *Harness) DSN() string {
	return h.dsn
}

// Reset empties the kv table for the next run.
func (h *Harness) Reset(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "TRUNCATE TABLE kv_entries"); err != nil {
		return fmt.Errorf("truncate kv_entries: %w", err)
	}
	return nil
}

// Close tears down resources.
func (h *Harness) Close(ctx context.Context) {
	if h.pool != nil {
		h.pool.Close()
	}
	_ = h.container.Terminate(ctx)
}
