package arc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// outcome tags how a part's bytes were produced.
type outcome int

const (
	decompressed outcome = iota
	storedRaw
	unrecoverable
)

func (o outcome) String() string {
	switch o {
	case decompressed:
		return "decompressed"
	case storedRaw:
		return "stored"
	default:
		return "unrecoverable"
	}
}

var (
	errSizeMismatch = errors.New("inflated size does not match declared size")
	errSizeTooLarge = errors.New("declared size exceeds what the stored bytes can inflate to")
)

// maxInflateRatio bounds DEFLATE output per input byte.
const maxInflateRatio = 1032

// plausible reports whether a part with the given sizes can be produced,
// either stored verbatim or by inflating compressedSize bytes.
func plausible(compressedSize, realSize uint32) bool {
	return compressedSize == realSize || uint64(realSize) <= uint64(compressedSize)*maxInflateRatio
}

// inflate decodes a zlib stream into dst, which must be filled exactly.
func inflate(dst, src []byte) error {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return err
	}
	defer zr.Close()

	if _, err := io.ReadFull(zr, dst); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return errSizeMismatch
		}
		return err
	}

	// Anything left over means the declared size was too small.
	var probe [1]byte
	n, err := zr.Read(probe[:])
	if n > 0 {
		return errSizeMismatch
	}
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

// decodePart fills dst from a part body. A body that does not inflate but
// whose compressed and real sizes agree is taken as stored verbatim.
func decodePart(dst, body []byte, compressedSize, realSize uint32) (outcome, error) {
	err := inflate(dst, body)
	if err == nil {
		return decompressed, nil
	}
	if compressedSize == realSize {
		copy(dst, body)
		return storedRaw, nil
	}
	return unrecoverable, err
}

// Extract reassembles the entry at index from its parts. Parts are placed at
// the running sum of their declared real sizes.
func (a *Archive) Extract(index int) ([]byte, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	if index < 0 || index >= len(a.entries) {
		return nil, &RangeError{What: "entry", Index: index, Len: len(a.entries)}
	}

	entry := a.entries[index]
	parts, err := a.entryParts(entry)
	if err != nil {
		return nil, err
	}

	out := make([]byte, entry.RealSize)
	var offset uint64
	for i, part := range parts {
		partIdx := int(entry.FirstPart) + i
		body, err := a.src.read(int64(part.FileOffset), int64(part.CompressedSize))
		if err != nil {
			return nil, &IOError{Name: a.name, Op: fmt.Sprintf("read part %d", partIdx), Err: err}
		}

		dst := out[offset : offset+uint64(part.RealSize)]
		result, err := decodePart(dst, body, part.CompressedSize, part.RealSize)
		if a.trace {
			a.logger.Debug("Extracted part",
				"archive", a.name,
				"entry", entry.Path,
				"part", partIdx,
				"offset", part.FileOffset,
				"compressed", part.CompressedSize,
				"real", part.RealSize,
				"outcome", result)
		}
		if result == unrecoverable {
			return nil, &DecompressError{
				Entry:          entry.Path,
				Part:           partIdx,
				CompressedSize: part.CompressedSize,
				RealSize:       part.RealSize,
				Err:            err,
			}
		}

		offset += uint64(part.RealSize)
	}

	return out, nil
}

// entryParts checks the part run of entry against the part table, the file
// and the entry size, so nothing is allocated for a record the parts cannot
// fill.
func (a *Archive) entryParts(entry Entry) ([]Part, error) {
	end := uint64(entry.FirstPart) + uint64(entry.NumParts)
	if end > uint64(len(a.parts)) {
		bad := max(uint64(entry.FirstPart), uint64(len(a.parts)))
		return nil, &RangeError{What: "part", Index: int(bad), Len: len(a.parts)}
	}
	parts := a.parts[entry.FirstPart:end]

	var total uint64
	for i, part := range parts {
		partIdx := int(entry.FirstPart) + i
		total += uint64(part.RealSize)
		if total > uint64(entry.RealSize) {
			return nil, formatErrorf(a.name, "%s: part %d overruns entry of %d bytes",
				entry.Path, partIdx, entry.RealSize)
		}
		if !a.src.contains(int64(part.FileOffset), int64(part.CompressedSize)) {
			return nil, formatErrorf(a.name, "%s: part %d at %d+%d exceeds file of %d bytes",
				entry.Path, partIdx, part.FileOffset, part.CompressedSize, a.src.size)
		}
		if !plausible(part.CompressedSize, part.RealSize) {
			return nil, &DecompressError{
				Entry:          entry.Path,
				Part:           partIdx,
				CompressedSize: part.CompressedSize,
				RealSize:       part.RealSize,
				Err:            errSizeTooLarge,
			}
		}
	}
	if total != uint64(entry.RealSize) {
		return nil, formatErrorf(a.name, "%s: parts cover %d of %d bytes", entry.Path, total, entry.RealSize)
	}
	return parts, nil
}

// ExtractAt reads a single part at an explicit location, bypassing the entry
// table. The location is not checked against any entry.
func (a *Archive) ExtractAt(offset, compressedSize, realSize uint32) ([]byte, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}

	body, err := a.src.read(int64(offset), int64(compressedSize))
	if err != nil {
		return nil, &IOError{Name: a.name, Op: fmt.Sprintf("read at %d", offset), Err: err}
	}
	if !plausible(compressedSize, realSize) {
		return nil, &DecompressError{
			Entry:          fmt.Sprintf("%s@%d", a.name, offset),
			CompressedSize: compressedSize,
			RealSize:       realSize,
			Err:            errSizeTooLarge,
		}
	}

	out := make([]byte, realSize)
	result, err := decodePart(out, body, compressedSize, realSize)
	if a.trace {
		a.logger.Debug("Extracted location",
			"archive", a.name,
			"offset", offset,
			"compressed", compressedSize,
			"real", realSize,
			"outcome", result)
	}
	if result == unrecoverable {
		return nil, &DecompressError{
			Entry:          fmt.Sprintf("%s@%d", a.name, offset),
			Part:           0,
			CompressedSize: compressedSize,
			RealSize:       realSize,
			Err:            err,
		}
	}
	return out, nil
}

// ExtractPath looks up path ignoring case and separator style, then extracts it.
func (a *Archive) ExtractPath(path string) ([]byte, error) {
	i, ok := a.Find(path)
	if !ok {
		return nil, fmt.Errorf("extracting %s from %s: %w", path, a.name, ErrNotFound)
	}
	return a.Extract(i)
}
