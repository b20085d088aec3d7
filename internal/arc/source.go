package arc

import (
	"fmt"
	"io"

	"golang.org/x/exp/mmap"
)

// source is a read-only, bounds-checked view of the whole container file.
// Every access is validated against size before touching the reader, so a
// corrupt offset surfaces as an error instead of a short or wild read.
type source struct {
	r      io.ReaderAt
	size   int64
	closer io.Closer
}

func mapFile(path string) (*source, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	return &source{r: m, size: int64(m.Len()), closer: m}, nil
}

// bytesReaderAt serves ReadAt from an in-memory buffer.
type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func memorySource(data []byte) *source {
	return &source{r: bytesReaderAt(data), size: int64(len(data))}
}

func (s *source) contains(off, n int64) bool {
	return off >= 0 && n >= 0 && off <= s.size && n <= s.size-off
}

// read returns n bytes starting at off.
func (s *source) read(off, n int64) ([]byte, error) {
	if !s.contains(off, n) {
		return nil, fmt.Errorf("range [%d,%d) outside file of %d bytes", off, off+n, s.size)
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := s.r.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func (s *source) close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
