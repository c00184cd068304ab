package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Store backends accepted by HH_STORE.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	// Server
	Addr string

	// Storage
	Store       string
	SQLitePath  string
	DatabaseURL string

	// Auth
	PasswordHasher string
	JWTSecret      string
	TokenTTL       time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Error reporting
	SentryDSN   string
	Environment string

	ResetOnStart bool
}

func Load() *Config {
	return &Config{
		Addr: getEnv("HH_ADDR", ":8080"),

		Store:       strings.ToLower(getEnv("HH_STORE", StoreMemory)),
		SQLitePath:  getEnv("HH_SQLITE_PATH", "househub.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		PasswordHasher: strings.ToLower(getEnv("HH_PASSWORD_HASHER", "plain")),
		JWTSecret:      getEnv("HH_JWT_SECRET", ""),
		TokenTTL:       parseDuration(getEnv("HH_TOKEN_TTL", "12h")),

		LogLevel:  getEnv("HH_LOG_LEVEL", "info"),
		LogFormat: getEnv("HH_LOG_FORMAT", "json"),

		SentryDSN:   getEnv("SENTRY_DSN", ""),
		Environment: getEnv("APP_ENV", "development"),

		ResetOnStart: parseBool(getEnv("HH_RESET_ON_START", "false")),
	}
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("config: HH_SQLITE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown HH_STORE %q", c.Store)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: HH_JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 12 * time.Hour
	}
	return d
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
