package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/jchantrell/tqarc/internal/arc"
	"github.com/jchantrell/tqarc/internal/export"
	"github.com/jchantrell/tqarc/internal/utils"
)

type ExtractionStats struct {
	StartTime time.Time
	EndTime   time.Time
	Total     int
	Written   int
	Bytes     int64
	Failures  int
}

var extractCmd = &cobra.Command{
	Use:   "extract <archive.arc> [filter]",
	Short: "Extract archive entries to the output directory",
	Long: `Extract writes every entry of an archive, or those whose path contains the
optional filter, below the output directory. Stored paths are kept, with
backslashes turned into directories. Entries that fail to extract are
reported and skipped.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		filter := ""
		if len(args) > 1 {
			filter = args[1]
		}
		indices := selectEntries(a, filter, nil)

		exporter := export.NewExporter(a, cfg.OutputDir,
			export.WithWorkers(cfg.Workers),
			export.WithCodec(newCodec()),
			export.WithLogger(slog.Default()))

		slog.Info("Starting extract...", "archive", a.Name(), "output", cfg.OutputDir)
		return runExport(cmd.Context(), a.Name(), indices, exporter.ExportFiles)
	},
}

type exportRun func(ctx context.Context, indices []int, progress export.ProgressCallback) (*export.Report, error)

// selectEntries returns the indices of the entries whose path contains
// filter and that keep accepts. The result is never nil so an empty
// selection exports nothing.
func selectEntries(a *arc.Archive, filter string, keep func(string) bool) []int {
	indices := []int{}
	for _, i := range a.Match(filter) {
		e, err := a.Entry(i)
		if err != nil || (keep != nil && !keep(e.Path)) {
			continue
		}
		indices = append(indices, i)
	}
	return indices
}

// runExport drives an export with a progress bar and prints a summary.
func runExport(ctx context.Context, name string, indices []int, run exportRun) error {
	stats := &ExtractionStats{StartTime: time.Now()}

	progress := utils.NewProgress(len(indices), progressEnabled())
	report, err := run(ctx, indices, progress.Callback())
	progress.Finish()
	if err != nil {
		return fmt.Errorf("exporting %s: %w", name, err)
	}

	stats.EndTime = time.Now()
	stats.Total = report.Total
	stats.Written = report.Written
	stats.Bytes = report.Bytes
	stats.Failures = len(report.Failures)

	for _, f := range report.Failures {
		slog.Warn("Entry not exported", "index", f.Index, "path", f.Path, "error", f.Err)
	}
	printStats(stats)
	return nil
}

func printStats(stats *ExtractionStats) {
	duration := stats.EndTime.Sub(stats.StartTime)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var fileRate, byteRate float64
	if seconds := duration.Seconds(); seconds > 0 {
		fileRate = float64(stats.Written) / seconds
		byteRate = float64(stats.Bytes) / seconds
	}
	var successRate float64
	if stats.Total > 0 {
		successRate = float64(stats.Written) / float64(stats.Total) * 100
	}

	fmt.Printf("Files written: %s/%s (%.1f%%)\n", utils.Number(int64(stats.Written)), utils.Number(int64(stats.Total)), successRate)
	fmt.Printf("Bytes written: %s\n", utils.Bytes(stats.Bytes))
	fmt.Printf("Failures: %d\n", stats.Failures)
	fmt.Printf("Duration: %s\n", utils.Duration(duration))
	fmt.Printf("Rate: %s files/sec, %s/sec\n", utils.Rate(fileRate), utils.Bytes(int64(byteRate)))
	fmt.Printf("Memory usage: %s\n", utils.Bytes(int64(memStats.Alloc)))
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
