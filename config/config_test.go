package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HH_ADDR", "HH_STORE", "HH_SQLITE_PATH", "DATABASE_URL", "HH_PASSWORD_HASHER", "HH_JWT_SECRET", "HH_TOKEN_TTL", "HH_LOG_LEVEL", "HH_LOG_FORMAT", "HH_RESET_ON_START"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Addr != ":8080" || cfg.Store != StoreMemory || cfg.PasswordHasher != "plain" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TokenTTL != 12*time.Hour {
		t.Fatalf("expected 12h token ttl, got %s", cfg.TokenTTL)
	}
	if cfg.ResetOnStart {
		t.Fatal("reset on start must default to false")
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing JWT secret to fail validation")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HH_STORE", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/hh")
	t.Setenv("HH_PASSWORD_HASHER", "BCRYPT")
	t.Setenv("HH_JWT_SECRET", "secret")
	t.Setenv("HH_TOKEN_TTL", "30m")
	t.Setenv("HH_RESET_ON_START", "yes")

	cfg := Load()
	if cfg.Store != StorePostgres || cfg.PasswordHasher != "bcrypt" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.TokenTTL != 30*time.Minute || !cfg.ResetOnStart {
		t.Fatalf("unexpected ttl/reset: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoad_BadDurationFallsBack(t *testing.T) {
	t.Setenv("HH_TOKEN_TTL", "soon")
	if got := Load().TokenTTL; got != 12*time.Hour {
		t.Fatalf("expected fallback ttl, got %s", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory", Config{Store: StoreMemory, JWTSecret: "s"}, true},
		{"sqlite without path", Config{Store: StoreSQLite, JWTSecret: "s"}, false},
		{"postgres without url", Config{Store: StorePostgres, JWTSecret: "s"}, false},
		{"unknown store", Config{Store: "redis", JWTSecret: "s"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("validate ok=%v, got err=%v", tt.ok, err)
			}
		})
	}
}
