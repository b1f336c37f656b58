// Package postgres embeds the PostgreSQL schema migration files.
package postgres

import "embed"

//go:embed *.sql
var Files embed.FS
