package kv

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"househub/test/infra"
)

// TestPGStore_Integration runs the store contract against PostgreSQL. It uses
// DATABASE_URL when set, otherwise a throwaway container when Docker is up.
func TestPGStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		if !infra.DockerAvailable(ctx) {
			t.Skip("DATABASE_URL is empty and Docker is unavailable")
		}
		pgC, containerDSN, err := infra.StartPostgres16(ctx, "")
		if err != nil {
			t.Fatalf("start postgres: %v", err)
		}
		t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })
		dsn = containerDSN
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	s := NewPGStore(pool)
	if err := s.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE kv_entries`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	runStoreContract(t, s)
}
