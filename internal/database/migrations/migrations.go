package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds every schema migration, registered by file init funcs.
var Migrations = migrate.NewMigrations()
