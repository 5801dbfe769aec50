package db

import "embed"

// MigrationFS holds the SQL migrations applied by cmd/migrate and, when
// DB_AUTO_MIGRATE is set, by the API on startup.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
