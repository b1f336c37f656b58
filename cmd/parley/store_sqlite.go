//go:build sqlite && !postgres

package main

import (
	"parley/internal/auth"
	"parley/internal/observability"
	"parley/internal/storage"
	sqlitestore "parley/internal/storage/sqlite"
)

func sqliteDSN(cfg *Config) string {
	if cfg.SQLiteDSN != "" {
		return cfg.SQLiteDSN
	}
	return "file:parley.db?cache=shared&_fk=1"
}

// selectStore returns a SQLite-backed store when built with the 'sqlite' tag.
func selectStore(logger observability.Logger, cfg *Config) storage.Store {
	dsn := sqliteDSN(cfg)
	st, err := sqlitestore.New(dsn)
	if err != nil {
		logger.Error("sqlite init failed; falling back to memory store", "error", err)
		return storage.NewMemoryStore()
	}
	logger.Info("using sqlite store", "dsn", dsn)
	return st
}

func selectUserStore(logger observability.Logger, cfg *Config) auth.UserStore {
	us, err := auth.NewSQLiteUserStore(sqliteDSN(cfg))
	if err != nil {
		logger.Error("sqlite user store init failed; falling back to memory", "error", err)
		return auth.NewMemoryUserStore()
	}
	return us
}

func selectSessionStore(logger observability.Logger, cfg *Config) auth.SessionStore {
	ss, err := auth.NewSQLiteSessionStore(sqliteDSN(cfg))
	if err != nil {
		logger.Error("sqlite session store init failed; falling back to memory", "error", err)
		return auth.NewMemorySessionStore()
	}
	return ss
}

func migrationStatus(cfg *Config) string {
	s, err := sqlitestore.Status(sqliteDSN(cfg))
	if err != nil {
		return ""
	}
	return s
}
