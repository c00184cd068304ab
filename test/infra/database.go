package infra

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"

	"github.com/jackc/pgx/v5"
)

const (
	stressRole     = "househub"
	stressDatabase = "househub_stress"
)

// localAddr honours PGHOST/PGPORT so a non-default local server can be used.
func localAddr() (string, string) {
	host := os.Getenv("PGHOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("PGPORT")
	if port == "" {
		port = "5432"
	}
	return host, port
}

// InitLocalDatabase recreates the stress database on a locally running
// PostgreSQL server and returns a DSN owned by the househub role.
func InitLocalDatabase(ctx context.Context) (string, error) {
	host, port := localAddr()
	if err := exec.CommandContext(ctx, "pg_isready", "-h", host, "-p", port).Run(); err != nil {
		return "", fmt.Errorf("infra: no local postgres on %s: %w", net.JoinHostPort(host, port), err)
	}

	conn, err := connectAsSuperuser(ctx, host, port)
	if err != nil {
		return "", err
	}
	defer conn.Close(ctx)

	stmts := []string{
		fmt.Sprintf("DO $$ BEGIN CREATE ROLE %s WITH LOGIN PASSWORD '%s'; EXCEPTION WHEN duplicate_object THEN NULL; END $$;",
			pgx.Identifier{stressRole}.Sanitize(), stressRole),
		fmt.Sprintf("SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = '%s' AND pid <> pg_backend_pid()", stressDatabase),
		"DROP DATABASE IF EXISTS " + pgx.Identifier{stressDatabase}.Sanitize(),
		fmt.Sprintf("CREATE DATABASE %s OWNER %s", pgx.Identifier{stressDatabase}.Sanitize(), pgx.Identifier{stressRole}.Sanitize()),
	}
	for _, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return "", fmt.Errorf("infra: prepare %s: %w", stressDatabase, err)
		}
	}

	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		stressRole, stressRole, net.JoinHostPort(host, port), stressDatabase), nil
}

func connectAsSuperuser(ctx context.Context, host, port string) (*pgx.Conn, error) {
	addr := net.JoinHostPort(host, port)
	users := []string{"postgres", "postgres:postgres"}
	if u := os.Getenv("USER"); u != "" {
		users = append(users, u, u+":postgres")
	}

	var lastErr error
	for _, u := range users {
		conn, err := pgx.Connect(ctx, fmt.Sprintf("postgres://%s@%s/postgres?sslmode=disable", u, addr))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("infra: connect to local postgres: %w", lastErr)
}
