package db

import (
	"context"
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 1

// Schema SQL for version 1
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version     INTEGER PRIMARY KEY,
    applied_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Application settings, one row
CREATE TABLE IF NOT EXISTS settings (
    id                     INTEGER PRIMARY KEY CHECK (id = 1),
    receiver_host          TEXT NOT NULL DEFAULT '127.0.0.1',
    receiver_port          INTEGER NOT NULL DEFAULT 8765,
    listen_host            TEXT NOT NULL DEFAULT '0.0.0.0',
    listen_port            INTEGER NOT NULL DEFAULT 8765,
    polling_rate           INTEGER NOT NULL DEFAULT 60,
    dead_zone              REAL NOT NULL DEFAULT 0.1,
    retry_interval_ms      INTEGER NOT NULL DEFAULT 1000,
    max_retry_attempts     INTEGER NOT NULL DEFAULT 10,
    max_controllers        INTEGER NOT NULL DEFAULT 4,
    auto_create_virtual    INTEGER NOT NULL DEFAULT 1,
    virtual_driver         TEXT NOT NULL DEFAULT 'null',
    updated_at             TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Controller number assignments, keyed by hardware identity
CREATE TABLE IF NOT EXISTS controller_assignments (
    identifier       TEXT PRIMARY KEY,
    assigned_number  INTEGER NOT NULL UNIQUE,
    input_method     TEXT NOT NULL DEFAULT 'xinput',
    display_name     TEXT NOT NULL DEFAULT '',
    last_seen        TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_assignments_number ON controller_assignments(assigned_number);
`

// Migrate runs database migrations to bring the schema up to date.
func (db *DB) Migrate(ctx context.Context) error {
	version, err := db.getSchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version >= currentSchemaVersion {
		return nil // Already up to date
	}

	if version < 1 {
		if err := db.applySchemaV1(ctx); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version, or 0 if no schema exists.
func (db *DB) getSchemaVersion(ctx context.Context) (int, error) {
	// Check if schema_version table exists
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&count)
	if err != nil {
		return 0, err
	}

	if count == 0 {
		return 0, nil
	}

	var version int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

// applySchemaV1 applies the initial schema.
func (db *DB) applySchemaV1(ctx context.Context) error {
	return db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (1)`); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}

		return nil
	})
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	return db.getSchemaVersion(ctx)
}
