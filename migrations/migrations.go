// Package migrations bundles the journal schema for each supported dialect.
package migrations

import "embed"

// SqliteMigrations holds the schema for sqlite:// journals.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

// PostgresMigrations holds the schema for postgres:// journals.
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS
