//go:build !sqlite && !postgres

package main

import (
	"parley/internal/auth"
	"parley/internal/observability"
	"parley/internal/storage"
)

// selectStore returns the in-memory store when built without a database tag.
// If a database env var is set, we log a hint to rebuild with the right tag.
func selectStore(logger observability.Logger, cfg *Config) storage.Store {
	if cfg.SQLiteDSN != "" {
		logger.Warn("SQLITE_DSN set, but binary not built with -tags sqlite; using in-memory store")
	}
	if cfg.DatabaseURL != "" {
		logger.Warn("DATABASE_URL set, but binary not built with -tags postgres; using in-memory store")
	}
	return storage.NewMemoryStore()
}

func selectUserStore(logger observability.Logger, cfg *Config) auth.UserStore {
	return auth.NewMemoryUserStore()
}

func selectSessionStore(logger observability.Logger, cfg *Config) auth.SessionStore {
	return auth.NewMemorySessionStore()
}

func migrationStatus(_ *Config) string { return "" }
