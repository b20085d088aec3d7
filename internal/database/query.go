package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jchantrell/tqarc/internal/arc"
)

// CatalogEntry is an entry row with the name of its archive.
type CatalogEntry struct {
	Archive string
	EntryRow
}

const selectEntries = `SELECT a.name, e.idx, e.path, e.asset_key, e.real_size, e.num_parts,
	e.first_part, e.storage_type, e.record_offset, e.record_compressed_size,
	e.is_texture, e.checksum
FROM entries e JOIN archives a ON a.id = e.archive_id`

// FindEntries returns entries whose path contains substr, ignoring case and
// separator style, ordered by archive name and index. limit <= 0 means no
// limit.
func (d *Database) FindEntries(ctx context.Context, substr string, limit int) ([]CatalogEntry, error) {
	pattern := "%" + escapeLike(strings.ReplaceAll(substr, "/", `\`)) + "%"
	query := selectEntries + ` WHERE e.path LIKE ? ESCAPE '!' ORDER BY a.name, e.idx`
	args := []any{pattern}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return d.scanEntries(ctx, query, args...)
}

// LookupAsset returns the entries cataloged under the asset key of path.
func (d *Database) LookupAsset(ctx context.Context, path string) ([]CatalogEntry, error) {
	return d.scanEntries(ctx, selectEntries+` WHERE e.asset_key = ? ORDER BY a.name, e.idx`, arc.AssetKey(path))
}

func (d *Database) scanEntries(ctx context.Context, query string, args ...any) ([]CatalogEntry, error) {
	rows, err := d.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CatalogEntry
	for rows.Next() {
		var (
			e        CatalogEntry
			checksum sql.NullString
		)
		if err := rows.Scan(&e.Archive, &e.Index, &e.Path, &e.AssetKey, &e.RealSize, &e.NumParts,
			&e.FirstPart, &e.StorageType, &e.RecordOffset, &e.RecordCompressedSize,
			&e.Texture, &checksum); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.Checksum = checksum.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
