// Package arctest builds ARC containers in memory for tests.
package arctest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
)

// Part is one physical block of a file. Stored parts are written verbatim
// with equal compressed and real sizes.
type Part struct {
	Data   []byte
	Stored bool

	// Raw, when set, is written as the part body instead of a zlib stream
	// of Data. RealSize then comes from len(Data).
	Raw []byte
}

// File is a logical entry.
type File struct {
	Path        string
	Parts       []Part
	StorageType uint32
}

// Builder accumulates files and produces a container.
type Builder struct {
	Version uint32
	Files   []File
}

// New returns a Builder for version 3 containers.
func New() *Builder {
	return &Builder{Version: 3}
}

// Add appends a file made of the given parts.
func (b *Builder) Add(path string, parts ...Part) *Builder {
	b.Files = append(b.Files, File{Path: path, Parts: parts})
	return b
}

// AddStored appends a single-part file stored uncompressed.
func (b *Builder) AddStored(path string, data []byte) *Builder {
	return b.Add(path, Part{Data: data, Stored: true})
}

// AddCompressed appends a single-part zlib compressed file.
func (b *Builder) AddCompressed(path string, data []byte) *Builder {
	return b.Add(path, Part{Data: data})
}

// Compress returns the zlib stream for data.
func Compress(tb testing.TB, data []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		tb.Fatalf("compressing: %v", err)
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("closing compressor: %v", err)
	}
	return buf.Bytes()
}

type partRecord struct {
	offset, compressed, real uint32
}

// Bytes serializes the container.
func (b *Builder) Bytes(tb testing.TB) []byte {
	tb.Helper()

	var body bytes.Buffer
	body.Write(make([]byte, 28))

	var parts []partRecord
	type fileRecord struct {
		storage, offset, compressed, real, numParts, firstPart uint32
	}
	records := make([]fileRecord, len(b.Files))

	for i, f := range b.Files {
		rec := fileRecord{storage: f.StorageType, firstPart: uint32(len(parts)), numParts: uint32(len(f.Parts))}
		for j, p := range f.Parts {
			var payload []byte
			switch {
			case p.Raw != nil:
				payload = p.Raw
			case p.Stored:
				payload = p.Data
			default:
				payload = Compress(tb, p.Data)
			}
			pr := partRecord{offset: uint32(body.Len()), compressed: uint32(len(payload)), real: uint32(len(p.Data))}
			if j == 0 {
				rec.offset = pr.offset
				rec.compressed = pr.compressed
			}
			rec.real += pr.real
			parts = append(parts, pr)
			body.Write(payload)
		}
		records[i] = rec
	}

	toc := uint32(body.Len())
	for _, p := range parts {
		binary.Write(&body, binary.LittleEndian, []uint32{p.offset, p.compressed, p.real})
	}
	for _, f := range b.Files {
		body.WriteString(f.Path)
		body.WriteByte(0)
	}
	for _, r := range records {
		binary.Write(&body, binary.LittleEndian, []uint32{
			r.storage, r.offset, r.compressed, r.real,
			0, 0, 0,
			r.numParts, r.firstPart,
			0, 0,
		})
	}

	out := body.Bytes()
	copy(out[0:], "ARC\x00")
	binary.LittleEndian.PutUint32(out[4:], b.Version)
	binary.LittleEndian.PutUint32(out[8:], uint32(len(b.Files)))
	binary.LittleEndian.PutUint32(out[12:], uint32(len(parts)))
	binary.LittleEndian.PutUint32(out[24:], toc)
	return out
}

// WriteFile serializes the container to dir/name and returns the path.
func (b *Builder) WriteFile(tb testing.TB, dir, name string) string {
	tb.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		tb.Fatalf("creating %s: %v", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, b.Bytes(tb), 0o644); err != nil {
		tb.Fatalf("writing %s: %v", p, err)
	}
	return p
}
