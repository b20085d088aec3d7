// Package arc reads the ARC asset container: a header, a table of compressed
// parts, a filename table and a per-file record table anchored to the end of
// the file. Logical files are reassembled from one or more zlib parts.
package arc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
)

const (
	headerSize     = 28
	partRecordSize = 12
	fileRecordSize = 44
)

var magic = [4]byte{'A', 'R', 'C', 0}

// Header is the fixed 28-byte block at offset 0.
type Header struct {
	Magic     [4]byte
	Version   uint32
	NumFiles  uint32
	NumParts  uint32
	Reserved  [2]uint32
	TOCOffset uint32
}

// Part describes one independently compressed block.
type Part struct {
	FileOffset     uint32
	CompressedSize uint32
	RealSize       uint32
}

// Location is a single-part placement as found in a file record. It is what
// ExtractAt consumes.
type Location struct {
	Offset         uint32
	CompressedSize uint32
	RealSize       uint32
}

// Entry is one logical file. Entries are read-only after Load.
type Entry struct {
	Path      string
	RealSize  uint32
	NumParts  uint32
	FirstPart uint32

	// StorageType is parsed from the record but not interpreted.
	StorageType uint32
	Record      Location
}

// Archive is a loaded container. The part and entry tables are immutable, so
// Extract and ExtractAt may be called from several goroutines. Close must not
// overlap with them.
type Archive struct {
	name    string
	header  Header
	parts   []Part
	entries []Entry
	lookup  map[string]int
	src     *source
	logger  *slog.Logger
	trace   bool
	closed  atomic.Bool
}

// Option configures Load and LoadBytes.
type Option func(*Archive)

// WithLogger sets the logger used for load and extraction records.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithTrace emits a debug record for every part extracted.
func WithTrace(enabled bool) Option {
	return func(a *Archive) {
		a.trace = enabled
	}
}

// Load memory-maps the archive at path and parses its tables. No part is
// decompressed here.
func Load(path string, opts ...Option) (*Archive, error) {
	src, err := mapFile(path)
	if err != nil {
		return nil, &IOError{Name: path, Op: "map", Err: err}
	}

	a, err := parse(filepath.Base(path), src, opts)
	if err != nil {
		src.close()
		return nil, err
	}
	return a, nil
}

// LoadBytes parses an archive already held in memory.
func LoadBytes(name string, data []byte, opts ...Option) (*Archive, error) {
	return parse(name, memorySource(data), opts)
}

func parse(name string, src *source, opts []Option) (*Archive, error) {
	a := &Archive{
		name:   name,
		src:    src,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if src.size < headerSize {
		return nil, formatErrorf(name, "file too small for header (%d bytes)", src.size)
	}

	raw, err := src.read(0, headerSize)
	if err != nil {
		return nil, &IOError{Name: name, Op: "read header", Err: err}
	}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &a.header); err != nil {
		return nil, &IOError{Name: name, Op: "decode header", Err: err}
	}
	if a.header.Magic != magic {
		return nil, formatErrorf(name, "bad magic % x", a.header.Magic[:])
	}

	if err := a.readParts(); err != nil {
		return nil, err
	}
	if err := a.readEntries(); err != nil {
		return nil, err
	}

	a.lookup = make(map[string]int, len(a.entries))
	for i, e := range a.entries {
		key := NormalizePath(e.Path)
		if _, exists := a.lookup[key]; !exists {
			a.lookup[key] = i
		}
	}

	a.logger.Debug("Archive loaded",
		"archive", name,
		"version", a.header.Version,
		"files", a.header.NumFiles,
		"parts", a.header.NumParts,
		"size", src.size)

	return a, nil
}

func (a *Archive) readParts() error {
	h := a.header
	tableLen := int64(h.NumParts) * partRecordSize
	if !a.src.contains(int64(h.TOCOffset), tableLen) {
		return formatErrorf(a.name, "part table (%d parts at offset %d) exceeds file of %d bytes",
			h.NumParts, h.TOCOffset, a.src.size)
	}

	raw, err := a.src.read(int64(h.TOCOffset), tableLen)
	if err != nil {
		return &IOError{Name: a.name, Op: "read part table", Err: err}
	}

	a.parts = make([]Part, h.NumParts)
	for i := range a.parts {
		p := raw[i*partRecordSize:]
		a.parts[i] = Part{
			FileOffset:     binary.LittleEndian.Uint32(p[0:]),
			CompressedSize: binary.LittleEndian.Uint32(p[4:]),
			RealSize:       binary.LittleEndian.Uint32(p[8:]),
		}
	}
	return nil
}

func (a *Archive) readEntries() error {
	h := a.header
	namesStart := int64(h.TOCOffset) + int64(h.NumParts)*partRecordSize
	recordsStart := a.src.size - int64(h.NumFiles)*fileRecordSize
	if recordsStart < 0 {
		return formatErrorf(a.name, "record table for %d files larger than file of %d bytes",
			h.NumFiles, a.src.size)
	}
	if recordsStart < namesStart {
		return formatErrorf(a.name, "record table at %d overlaps filename table at %d",
			recordsStart, namesStart)
	}

	names, err := a.src.read(namesStart, recordsStart-namesStart)
	if err != nil {
		return &IOError{Name: a.name, Op: "read filename table", Err: err}
	}
	records, err := a.src.read(recordsStart, int64(h.NumFiles)*fileRecordSize)
	if err != nil {
		return &IOError{Name: a.name, Op: "read record table", Err: err}
	}

	a.entries = make([]Entry, h.NumFiles)
	p := 0
	for i := range a.entries {
		end := bytes.IndexByte(names[p:], 0)
		if end < 0 {
			return formatErrorf(a.name, "filename %d of %d not terminated before record table", i, h.NumFiles)
		}

		r := records[i*fileRecordSize:]
		a.entries[i] = Entry{
			Path:        string(names[p : p+end]),
			StorageType: binary.LittleEndian.Uint32(r[0:]),
			Record: Location{
				Offset:         binary.LittleEndian.Uint32(r[4:]),
				CompressedSize: binary.LittleEndian.Uint32(r[8:]),
				RealSize:       binary.LittleEndian.Uint32(r[12:]),
			},
			RealSize:  binary.LittleEndian.Uint32(r[12:]),
			NumParts:  binary.LittleEndian.Uint32(r[28:]),
			FirstPart: binary.LittleEndian.Uint32(r[32:]),
		}
		p += end + 1
	}
	return nil
}

// Name returns the base name the archive was loaded under.
func (a *Archive) Name() string {
	return a.name
}

// Header returns the parsed header.
func (a *Archive) Header() Header {
	return a.header
}

// Size returns the container file size in bytes.
func (a *Archive) Size() int64 {
	return a.src.size
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entry returns the entry at index i.
func (a *Archive) Entry(i int) (Entry, error) {
	if i < 0 || i >= len(a.entries) {
		return Entry{}, &RangeError{What: "entry", Index: i, Len: len(a.entries)}
	}
	return a.entries[i], nil
}

// Parts returns a copy of the part table.
func (a *Archive) Parts() []Part {
	parts := make([]Part, len(a.parts))
	copy(parts, a.parts)
	return parts
}

// Close releases the mapping. It is safe to call more than once; only the
// first call unmaps.
func (a *Archive) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	if err := a.src.close(); err != nil {
		return fmt.Errorf("closing archive %s: %w", a.name, err)
	}
	return nil
}
