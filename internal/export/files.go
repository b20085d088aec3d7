package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jchantrell/tqarc/internal/arc"
	"github.com/jchantrell/tqarc/internal/texture"
)

// ErrUnsafePath is recorded for entries whose stored path is empty or would
// land outside the output directory.
var ErrUnsafePath = errors.New("export: unsafe entry path")

// ErrDuplicatePath is recorded for an entry whose output file, compared
// without case, is already written by a lower entry index.
var ErrDuplicatePath = errors.New("export: duplicate output path")

// Source is the archive surface the exporter reads from.
type Source interface {
	Name() string
	Len() int
	Entry(i int) (arc.Entry, error)
	Extract(i int) ([]byte, error)
}

// Exporter writes archive entries to disk
type Exporter struct {
	src       Source
	outputDir string
	workers   int
	codec     *texture.Codec
	logger    *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithWorkers sets how many entries are processed at once. Values below one
// use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Exporter) {
		e.workers = n
	}
}

// WithCodec sets the codec used by ExportTextures.
func WithCodec(c *texture.Codec) Option {
	return func(e *Exporter) {
		e.codec = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// NewExporter creates a new exporter writing under outputDir
func NewExporter(src Source, outputDir string, opts ...Option) *Exporter {
	e := &Exporter{
		src:       src,
		outputDir: outputDir,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	if e.codec == nil {
		e.codec = texture.NewCodec(texture.WithLogger(e.logger))
	}
	return e
}

// ProgressCallback is called to report export progress
type ProgressCallback func(current int, total int, description string)

// Failure is one entry that could not be exported.
type Failure struct {
	Index int
	Path  string
	Err   error
}

// Report summarizes an export run.
type Report struct {
	Total    int
	Written  int
	Bytes    int64
	Failures []Failure
}

// ExportFiles writes the raw bytes of the given entries, or of every entry
// when indices is nil. A failing entry is recorded in the report and does not
// stop the others; only context cancellation aborts the run. Entries that
// would write the same file keep the lowest index.
func (e *Exporter) ExportFiles(ctx context.Context, indices []int, progress ProgressCallback) (*Report, error) {
	if indices == nil {
		indices = e.all(nil)
	}
	return e.run(ctx, indices, progress, nil, e.exportFile)
}

// ExportTextures decodes the given entries as textures and saves them as
// PNG files next to where the raw entry would go, with the extension
// replaced. A nil indices selects every .tex entry.
func (e *Exporter) ExportTextures(ctx context.Context, indices []int, progress ProgressCallback) (*Report, error) {
	if indices == nil {
		indices = e.all(texture.IsTexture)
	}
	return e.run(ctx, indices, progress, pngPath, e.exportTexture)
}

func (e *Exporter) all(keep func(string) bool) []int {
	indices := make([]int, 0, e.src.Len())
	for i := range e.src.Len() {
		if keep != nil {
			entry, err := e.src.Entry(i)
			if err != nil || !keep(entry.Path) {
				continue
			}
		}
		indices = append(indices, i)
	}
	return indices
}

type exportFunc func(data []byte, dest string) (int64, error)

// job is one entry with its resolved output file.
type job struct {
	index int
	path  string
	dest  string
	err   error
}

// plan resolves the output file of every index. Destinations are claimed in
// index order, ignoring case, so two entries never write the same file: the
// lowest index keeps it and the others get ErrDuplicatePath.
func (e *Exporter) plan(indices []int, target func(string) string) []job {
	jobs := make([]job, len(indices))
	for n, i := range indices {
		jobs[n] = job{index: i}
		entry, err := e.src.Entry(i)
		if err != nil {
			jobs[n].err = err
			continue
		}
		jobs[n].path = entry.Path
		dest, err := e.destination(entry.Path)
		if err != nil {
			jobs[n].err = err
			continue
		}
		if target != nil {
			dest = target(dest)
		}
		jobs[n].dest = dest
	}

	order := make([]int, len(jobs))
	for n := range order {
		order[n] = n
	}
	slices.SortStableFunc(order, func(a, b int) int { return jobs[a].index - jobs[b].index })

	owner := make(map[string]int, len(jobs))
	for _, n := range order {
		j := &jobs[n]
		if j.err != nil {
			continue
		}
		key := strings.ToLower(j.dest)
		if first, taken := owner[key]; taken {
			j.err = fmt.Errorf("%s is written by entry %d: %w", j.dest, first, ErrDuplicatePath)
			continue
		}
		owner[key] = j.index
	}
	return jobs
}

func (e *Exporter) run(ctx context.Context, indices []int, progress ProgressCallback, target func(string) string, export exportFunc) (*Report, error) {
	report := &Report{Total: len(indices)}
	if len(indices) == 0 {
		return report, nil
	}

	// Create output directory
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var (
		mu        sync.Mutex
		processed int
	)
	finish := func(i int, name string, written int64, err error) {
		mu.Lock()
		defer mu.Unlock()

		processed++
		if err != nil {
			report.Failures = append(report.Failures, Failure{Index: i, Path: name, Err: err})
			e.logger.Warn("Failed to export entry", "archive", e.src.Name(), "index", i, "path", name, "error", err)
		} else {
			report.Written++
			report.Bytes += written
		}
		if progress != nil {
			progress(processed, report.Total, name)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, j := range e.plan(indices, target) {
		if gctx.Err() != nil {
			break
		}
		if j.err != nil {
			finish(j.index, j.path, 0, j.err)
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			written, err := e.exportOne(j, export)
			finish(j.index, j.path, written, err)
			return nil
		})
	}

	err := g.Wait()
	slices.SortFunc(report.Failures, func(a, b Failure) int { return a.Index - b.Index })
	if err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (e *Exporter) exportOne(j job, export exportFunc) (int64, error) {
	data, err := e.src.Extract(j.index)
	if err != nil {
		return 0, err
	}

	written, err := export(data, j.dest)
	if err != nil {
		return 0, err
	}

	e.logger.Debug("Exported entry", "path", j.path, "output", j.dest)
	return written, nil
}

// destination maps a stored path to a host path under the output directory.
func (e *Exporter) destination(stored string) (string, error) {
	rel, ok := arc.SlashPath(stored)
	if !ok {
		return "", fmt.Errorf("%q: %w", stored, ErrUnsafePath)
	}
	return filepath.Join(e.outputDir, filepath.FromSlash(rel)), nil
}

func (e *Exporter) exportFile(data []byte, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return 0, fmt.Errorf("writing file %s: %w", dest, err)
	}
	return int64(len(data)), nil
}

func (e *Exporter) exportTexture(data []byte, dest string) (int64, error) {
	pb, err := e.codec.Decode(data)
	if err != nil {
		return 0, err
	}

	if err := SavePNG(dest, pb.Image()); err != nil {
		return 0, err
	}
	return int64(len(pb.Pix)), nil
}

// pngPath swaps the file extension for .png, or appends it when there is none.
func pngPath(p string) string {
	return strings.TrimSuffix(p, filepath.Ext(p)) + ".png"
}
