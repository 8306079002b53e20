// Package migrations embeds the PostgreSQL schema files applied by cmd/migrate.
package migrations

import "embed"

// FS holds NNN_*.up.sql files, applied in name order, and drop_all.sql.
//
//go:embed *.sql
var FS embed.FS
