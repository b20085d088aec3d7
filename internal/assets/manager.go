// Package assets resolves logical game asset paths, such as
// "Creatures\Monster\Boar\Boar.tex", to entries inside the many ARC
// containers of a game installation.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jchantrell/tqarc/internal/arc"
	"github.com/jchantrell/tqarc/internal/cache"
	"github.com/jchantrell/tqarc/internal/texture"
)

// Asset is where a logical path lives.
type Asset struct {
	// Path is the logical path: archive prefix plus entry path.
	Path string
	// Archive is the container path relative to the manager root.
	Archive  string
	Entry    int
	NumParts uint32
	Location arc.Location

	archive int
}

// Manager indexes every .arc under a game directory and reads assets from
// them. Archives are opened on first use and stay open until Close.
type Manager struct {
	root     string
	archives []string
	index    map[uint32]Asset

	mu   sync.Mutex
	open []*arc.Archive

	textures *cache.Textures
	codec    *texture.Codec
	logger   *slog.Logger
	trace    bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager and the archives it opens.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTrace enables per-read debug records.
func WithTrace(enabled bool) Option {
	return func(m *Manager) {
		m.trace = enabled
	}
}

// WithTextureCache sets the cache used by Texture.
func WithTextureCache(c *cache.Textures) Option {
	return func(m *Manager) {
		m.textures = c
	}
}

// WithCodec sets the texture codec used by Texture.
func WithCodec(c *texture.Codec) Option {
	return func(m *Manager) {
		m.codec = c
	}
}

// NewManager scans root for .arc files and indexes their entries.
func NewManager(root string, opts ...Option) (*Manager, error) {
	m := &Manager{
		root:   root,
		index:  make(map[uint32]Asset),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.codec == nil {
		m.codec = texture.NewCodec(texture.WithLogger(m.logger), texture.WithTrace(m.trace))
	}
	if m.textures == nil {
		textures, err := cache.NewTextures(cache.DefaultSize)
		if err != nil {
			return nil, err
		}
		m.textures = textures
	}

	archives, err := Discover(root)
	if err != nil {
		return nil, err
	}
	m.archives = archives
	m.open = make([]*arc.Archive, len(archives))

	for i, rel := range archives {
		if err := m.indexArchive(i, rel); err != nil {
			m.logger.Warn("Skipping unreadable archive", "archive", rel, "error", err)
		}
	}

	m.logger.Debug("Asset index built", "archives", len(m.archives), "assets", len(m.index))
	return m, nil
}

// Discover returns the slash separated paths, relative to root, of every
// .arc file under root in lexical order. Hidden files and directories are
// skipped.
func Discover(root string) ([]string, error) {
	var found []string
	err := fs.WalkDir(os.DirFS(root), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.EqualFold(path.Ext(p), ".arc") {
			found = append(found, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return found, nil
}

// Prefix derives the logical path prefix of an archive from its path
// relative to the game directory: "Resources/XPack/Creatures.arc" becomes
// "XPack\Creatures\".
func Prefix(rel string) string {
	p := filepath.ToSlash(rel)
	if len(p) >= len("Resources/") && strings.EqualFold(p[:len("Resources/")], "Resources/") {
		p = p[len("Resources/"):]
	}
	p = strings.TrimSuffix(p, path.Ext(p))
	p = strings.ReplaceAll(p, "/", `\`) + `\`
	if len(p) >= len(`xpack\`) && strings.EqualFold(p[:len(`xpack\`)], `xpack\`) {
		p = `XPack\` + p[len(`xpack\`):]
	}
	return p
}

func (m *Manager) indexArchive(id int, rel string) error {
	a, err := arc.Load(filepath.Join(m.root, filepath.FromSlash(rel)), arc.WithLogger(m.logger))
	if err != nil {
		return err
	}
	defer a.Close()

	prefix := Prefix(rel)
	for i, e := range a.Entries() {
		logical := prefix + e.Path
		m.index[arc.AssetKey(logical)] = Asset{
			Path:     logical,
			Archive:  rel,
			Entry:    i,
			NumParts: e.NumParts,
			Location: e.Record,
			archive:  id,
		}
	}

	if m.trace {
		m.logger.Debug("Indexed archive", "archive", rel, "prefix", prefix, "entries", a.Len())
	}
	return nil
}

// Len returns the number of indexed assets.
func (m *Manager) Len() int {
	return len(m.index)
}

// Archives returns the indexed container paths relative to the root.
func (m *Manager) Archives() []string {
	out := make([]string, len(m.archives))
	copy(out, m.archives)
	return out
}

// Lookup resolves a logical path, ignoring case and separator style.
func (m *Manager) Lookup(p string) (Asset, bool) {
	a, ok := m.index[arc.AssetKey(p)]
	return a, ok
}

func (m *Manager) archive(id int) (*arc.Archive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.open == nil {
		return nil, arc.ErrClosed
	}
	if a := m.open[id]; a != nil {
		return a, nil
	}

	a, err := arc.Load(filepath.Join(m.root, filepath.FromSlash(m.archives[id])),
		arc.WithLogger(m.logger), arc.WithTrace(m.trace))
	if err != nil {
		return nil, err
	}
	m.open[id] = a
	return a, nil
}

// Read returns the bytes of the asset at p. Single part entries are read
// straight from the record location; entries split into several parts are
// reassembled from the archive's part table.
func (m *Manager) Read(p string) ([]byte, error) {
	asset, ok := m.Lookup(p)
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", p, arc.ErrNotFound)
	}

	a, err := m.archive(asset.archive)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", asset.Archive, err)
	}

	if m.trace {
		m.logger.Debug("Reading asset", "path", asset.Path, "archive", asset.Archive, "parts", asset.NumParts)
	}

	var data []byte
	if asset.NumParts > 1 {
		data, err = a.Extract(asset.Entry)
	} else {
		loc := asset.Location
		data, err = a.ExtractAt(loc.Offset, loc.CompressedSize, loc.RealSize)
	}
	if err != nil {
		return nil, fmt.Errorf("reading asset %s: %w", asset.Path, err)
	}
	return data, nil
}

// Texture reads and decodes the texture at p, consulting the texture cache
// first.
func (m *Manager) Texture(p string) (*texture.PixelBuffer, error) {
	if pb, ok := m.textures.Get(p); ok {
		return pb, nil
	}

	raw, err := m.Read(p)
	if err != nil {
		return nil, err
	}
	pb, err := m.codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p, err)
	}

	m.textures.Add(p, pb)
	return pb, nil
}

// Close closes every archive opened by the manager.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, a := range m.open {
		if a != nil {
			errs = append(errs, a.Close())
		}
	}
	m.open = nil
	return errors.Join(errs...)
}
