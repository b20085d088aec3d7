package database

import (
	"context"
	"fmt"
	"log/slog"
)

// catalogDDL creates the archive and entry tables. Entries are keyed by
// their archive and table index, the index being the entry's identity.
var catalogDDL = []string{
	`CREATE TABLE IF NOT EXISTS archives (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		prefix TEXT NOT NULL,
		size INTEGER NOT NULL,
		version INTEGER NOT NULL,
		num_files INTEGER NOT NULL,
		num_parts INTEGER NOT NULL,
		indexed_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		archive_id INTEGER NOT NULL REFERENCES archives(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		path TEXT NOT NULL,
		asset_key INTEGER NOT NULL,
		real_size INTEGER NOT NULL,
		num_parts INTEGER NOT NULL,
		first_part INTEGER NOT NULL,
		storage_type INTEGER NOT NULL,
		record_offset INTEGER NOT NULL,
		record_compressed_size INTEGER NOT NULL,
		is_texture INTEGER NOT NULL DEFAULT 0,
		checksum TEXT,
		PRIMARY KEY (archive_id, idx)
	)`,
	`CREATE INDEX IF NOT EXISTS entries_path ON entries(path COLLATE NOCASE)`,
	`CREATE INDEX IF NOT EXISTS entries_asset_key ON entries(asset_key)`,
}

// CreateSchema creates the catalog tables in one transaction. It is safe to
// call on a database that already has them.
func (d *Database) CreateSchema(ctx context.Context) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ddl := range catalogDDL {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema: %w", err)
	}

	slog.Debug("Catalog schema ready", "statements", len(catalogDDL))
	return nil
}
