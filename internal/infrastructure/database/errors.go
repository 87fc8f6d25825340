package database

import "errors"

// Sentinel errors for the database package.
var (
	// ErrNoPath is returned by Open when Config.Path is empty.
	ErrNoPath = errors.New("database: path is required")

	// ErrSchemaAhead means the database has migrations this binary does not
	// know about, usually because a newer FlowBench version wrote it.
	ErrSchemaAhead = errors.New("database: schema is newer than this binary")

	// ErrNoDownMigration is returned by MigrateDown when the latest
	// migration cannot be reverted.
	ErrNoDownMigration = errors.New("database: migration has no down script")
)
