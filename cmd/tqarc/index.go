package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jchantrell/tqarc/internal/arc"
	"github.com/jchantrell/tqarc/internal/assets"
	"github.com/jchantrell/tqarc/internal/database"
	"github.com/jchantrell/tqarc/internal/utils"
)

type IndexStats struct {
	StartTime      time.Time
	EndTime        time.Time
	TotalArchives  int
	Indexed        int
	EntriesWritten int64
	Errors         int
}

var indexChecksums bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Catalog every archive of the game into SQLite",
	Long: `Index finds every .arc file under the game path and records its header and
entries in the catalog database, along with the asset key each entry is
looked up by. Re-indexing an archive replaces its earlier rows.

With --checksum every entry is also extracted and hashed, which takes
considerably longer.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.GamePath == "" {
			return fmt.Errorf("game path is required, set --game-path or game_path in the config")
		}
		ctx := cmd.Context()
		stats := &IndexStats{StartTime: time.Now()}

		archives, err := assets.Discover(cfg.GamePath)
		if err != nil {
			return fmt.Errorf("discovering archives: %w", err)
		}
		stats.TotalArchives = len(archives)
		if len(archives) == 0 {
			slog.Info("No archives found", "game_path", cfg.GamePath)
			return nil
		}

		db, err := database.NewDatabase(database.DefaultDatabaseOptions(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if err := db.CreateSchema(ctx); err != nil {
			return err
		}

		slog.Info("Starting index...", "archives", len(archives), "database", cfg.Database)

		progress := utils.NewProgress(len(archives), progressEnabled())
		for i, rel := range archives {
			if err := ctx.Err(); err != nil {
				progress.Finish()
				return err
			}
			progress.Update(i, rel)

			n, err := indexArchive(ctx, db, rel)
			if err != nil {
				slog.Warn("Failed to index archive", "archive", rel, "error", err)
				stats.Errors++
				continue
			}
			stats.Indexed++
			stats.EntriesWritten += n
		}
		progress.Update(len(archives), "done")
		progress.Finish()
		stats.EndTime = time.Now()

		duration := stats.EndTime.Sub(stats.StartTime)
		var entryRate float64
		if seconds := duration.Seconds(); seconds > 0 {
			entryRate = float64(stats.EntriesWritten) / seconds
		}

		fmt.Printf("Archives indexed: %d/%d\n", stats.Indexed, stats.TotalArchives)
		fmt.Printf("Entries cataloged: %s\n", utils.Number(stats.EntriesWritten))
		fmt.Printf("Errors: %d\n", stats.Errors)
		fmt.Printf("Duration: %s\n", utils.Duration(duration))
		fmt.Printf("Insertion rate: %s entries/sec\n", utils.Rate(entryRate))
		fmt.Println("Try running: tqarc query --find <name>")
		return nil
	},
}

func indexArchive(ctx context.Context, db *database.Database, rel string) (int64, error) {
	a, err := openArchive(filepath.Join(cfg.GamePath, filepath.FromSlash(rel)))
	if err != nil {
		return 0, err
	}
	defer a.Close()

	h := a.Header()
	row := database.ArchiveRow{
		Name:     rel,
		Prefix:   assets.Prefix(rel),
		Size:     a.Size(),
		Version:  h.Version,
		NumFiles: h.NumFiles,
		NumParts: h.NumParts,
	}
	entries := database.Rows(a, row.Prefix, indexChecksums)

	if _, err := db.InsertArchive(ctx, row, entries, nil); err != nil {
		return 0, err
	}
	slog.Debug("Indexed archive", "archive", rel, "entries", len(entries))
	return int64(len(entries)), nil
}

// compile-time check that archives satisfy the catalog source
var _ database.Source = (*arc.Archive)(nil)

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexChecksums, "checksum", false, "extract and hash every entry")
}
