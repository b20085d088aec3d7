package database

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"

	"github.com/cespare/xxhash/v2"

	"github.com/jchantrell/tqarc/internal/arc"
	"github.com/jchantrell/tqarc/internal/texture"
)

// ArchiveRow describes one indexed container.
type ArchiveRow struct {
	Name     string
	Prefix   string
	Size     int64
	Version  uint32
	NumFiles uint32
	NumParts uint32
}

// EntryRow is one catalog entry.
type EntryRow struct {
	Index                int
	Path                 string
	AssetKey             uint32
	RealSize             uint32
	NumParts             uint32
	FirstPart            uint32
	StorageType          uint32
	RecordOffset         uint32
	RecordCompressedSize uint32
	Texture              bool

	// Checksum is the hex xxhash64 of the extracted bytes, empty when not
	// computed or when extraction failed.
	Checksum string
}

// Source is what the catalog reads from an archive.
type Source interface {
	Name() string
	Entries() iter.Seq2[int, arc.Entry]
	Extract(i int) ([]byte, error)
}

// ProgressCallback is called to report insertion progress
type ProgressCallback func(current int, total int, description string)

// Checksum returns the catalog checksum of data.
func Checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Rows builds catalog rows for every entry of src. Asset keys are computed
// from prefix plus the entry path. With checksums enabled each entry is
// extracted; an entry that fails to extract keeps an empty checksum and is
// logged.
func Rows(src Source, prefix string, checksums bool) []EntryRow {
	var rows []EntryRow
	for i, e := range src.Entries() {
		row := EntryRow{
			Index:                i,
			Path:                 e.Path,
			AssetKey:             arc.AssetKey(prefix + e.Path),
			RealSize:             e.RealSize,
			NumParts:             e.NumParts,
			FirstPart:            e.FirstPart,
			StorageType:          e.StorageType,
			RecordOffset:         e.Record.Offset,
			RecordCompressedSize: e.Record.CompressedSize,
			Texture:              texture.IsTexture(e.Path),
		}
		if checksums {
			data, err := src.Extract(i)
			if err != nil {
				slog.Warn("Skipping checksum", "archive", src.Name(), "path", e.Path, "error", err)
			} else {
				row.Checksum = Checksum(data)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

const insertEntrySQL = `INSERT INTO entries (
	archive_id, idx, path, asset_key, real_size, num_parts, first_part,
	storage_type, record_offset, record_compressed_size, is_texture, checksum
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertArchive replaces any earlier catalog of the same archive name with
// archive and its entries, in a single transaction. It returns the archive id.
func (d *Database) InsertArchive(ctx context.Context, archive ArchiveRow, entries []EntryRow, progress ProgressCallback) (int64, error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() // Safe to call even after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE archive_id IN (SELECT id FROM archives WHERE name = ?)`, archive.Name); err != nil {
		return 0, fmt.Errorf("removing previous entries of %s: %w", archive.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM archives WHERE name = ?`, archive.Name); err != nil {
		return 0, fmt.Errorf("removing previous archive %s: %w", archive.Name, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO archives (name, prefix, size, version, num_files, num_parts) VALUES (?, ?, ?, ?, ?, ?)`,
		archive.Name, archive.Prefix, archive.Size, archive.Version, archive.NumFiles, archive.NumParts)
	if err != nil {
		return 0, fmt.Errorf("inserting archive %s: %w", archive.Name, err)
	}
	archiveID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading archive id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertEntrySQL)
	if err != nil {
		return 0, fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for n, e := range entries {
		var checksum sql.NullString
		if e.Checksum != "" {
			checksum = sql.NullString{String: e.Checksum, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			archiveID, e.Index, e.Path, e.AssetKey, e.RealSize, e.NumParts, e.FirstPart,
			e.StorageType, e.RecordOffset, e.RecordCompressedSize, e.Texture, checksum,
		); err != nil {
			return 0, fmt.Errorf("inserting entry %d (%s): %w", e.Index, e.Path, err)
		}
		if progress != nil {
			progress(n+1, len(entries), e.Path)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	slog.Debug("Cataloged archive", "archive", archive.Name, "id", archiveID, "entries", len(entries))
	return archiveID, nil
}
