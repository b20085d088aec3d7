package arc

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrFormat     = errors.New("arc: malformed archive")
	ErrIO         = errors.New("arc: i/o failure")
	ErrRange      = errors.New("arc: index out of range")
	ErrDecompress = errors.New("arc: decompression failed")
	ErrClosed     = errors.New("arc: archive is closed")
)

// FormatError reports a structural problem with the container file.
type FormatError struct {
	Name   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("arc %s: %s", e.Name, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// IOError reports a failure to open, map or read the container file.
type IOError struct {
	Name string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("arc %s: %s: %v", e.Name, e.Op, e.Err)
}

func (e *IOError) Unwrap() []error { return []error{ErrIO, e.Err} }

// RangeError reports an entry or part index outside its table.
type RangeError struct {
	What  string
	Index int
	Len   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("arc: %s index %d out of range [0,%d)", e.What, e.Index, e.Len)
}

func (e *RangeError) Unwrap() error { return ErrRange }

// DecompressError reports a part that neither inflates nor qualifies as stored.
type DecompressError struct {
	Entry          string
	Part           int
	CompressedSize uint32
	RealSize       uint32
	Err            error
}

func (e *DecompressError) Error() string {
	return fmt.Sprintf("arc: %s part %d (compressed=%d, real=%d): %v",
		e.Entry, e.Part, e.CompressedSize, e.RealSize, e.Err)
}

func (e *DecompressError) Unwrap() []error { return []error{ErrDecompress, e.Err} }

func formatErrorf(name, format string, args ...any) error {
	return &FormatError{Name: name, Reason: fmt.Sprintf(format, args...)}
}
