// Package texture turns extracted .tex entries into RGBA pixels: it strips
// the game's TEX sub-header, repairs the embedded DDS header and hands the
// payload to the registered image decoders.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"log/slog"
	"strings"

	// registers the "dds" format with the image package
	_ "github.com/jchantrell/tqarc/internal/dds"
)

const (
	minTextureSize  = 13
	subHeaderSize   = 12
	subHeaderSizeV2 = 13
)

var (
	ErrFormat = errors.New("texture: malformed texture")
	ErrDecode = errors.New("texture: image decode failed")
)

// FormatError reports a texture too short or otherwise unusable before decode.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "texture: " + e.Reason }

func (e *FormatError) Unwrap() error { return ErrFormat }

// DecodeError carries the image decoder's own diagnostic.
type DecodeError struct {
	Message string
	Err     error
}

func (e *DecodeError) Error() string { return "texture: decode: " + e.Message }

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// PixelBuffer is a decoded image as non-premultiplied RGBA8, row-major with
// no padding.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []byte
}

// Image wraps the buffer without copying.
func (p *PixelBuffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    p.Pix,
		Stride: p.Width * 4,
		Rect:   image.Rect(0, 0, p.Width, p.Height),
	}
}

// DecodeFunc decodes an image stream; image.Decode is the default.
type DecodeFunc func(r io.Reader) (image.Image, string, error)

// Codec decodes textures. The zero value is not usable; use NewCodec.
type Codec struct {
	decode DecodeFunc
	logger *slog.Logger
	trace  bool
}

// Option configures a Codec.
type Option func(*Codec)

// WithLogger sets the logger for trace records.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		c.logger = logger
	}
}

// WithTrace emits a debug record for each decode step.
func WithTrace(enabled bool) Option {
	return func(c *Codec) {
		c.trace = enabled
	}
}

// WithDecoder replaces the image decoder.
func WithDecoder(fn DecodeFunc) Option {
	return func(c *Codec) {
		c.decode = fn
	}
}

// NewCodec creates a Codec.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		decode: image.Decode,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCodec = NewCodec()

// Decode decodes raw texture bytes with the default codec.
func Decode(raw []byte) (*PixelBuffer, error) {
	return defaultCodec.Decode(raw)
}

// Payload strips the TEX sub-header and returns a repaired copy of the
// embedded DDS payload. raw is not modified.
func Payload(raw []byte) ([]byte, error) {
	if len(raw) < minTextureSize {
		return nil, &FormatError{Reason: fmt.Sprintf("%d bytes is shorter than the %d byte minimum", len(raw), minTextureSize)}
	}

	headerSize := subHeaderSize
	if bytes.HasPrefix(raw, []byte("TEX")) && raw[3] == 2 {
		headerSize = subHeaderSizeV2
	}

	if len(raw)-headerSize < 4 {
		return nil, &FormatError{Reason: fmt.Sprintf("no image payload after %d byte header", headerSize)}
	}

	payload := bytes.Clone(raw[headerSize:])
	Repair(payload)
	return payload, nil
}

// Decode strips and repairs the texture, then decodes it to RGBA8.
func (c *Codec) Decode(raw []byte) (*PixelBuffer, error) {
	if c.trace {
		c.logger.Debug("Decoding texture", "size", len(raw))
	}

	payload, err := Payload(raw)
	if err != nil {
		return nil, err
	}

	img, format, err := c.decode(bytes.NewReader(payload))
	if err != nil {
		return nil, &DecodeError{Message: err.Error(), Err: err}
	}

	pb := toPixelBuffer(img)
	if c.trace {
		c.logger.Debug("Decoded texture", "format", format, "width", pb.Width, "height", pb.Height)
	}
	return pb, nil
}

func toPixelBuffer(img image.Image) *PixelBuffer {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) || nrgba.Stride != b.Dx()*4 {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	return &PixelBuffer{Width: b.Dx(), Height: b.Dy(), Pix: nrgba.Pix}
}

// IsTexture reports whether path names a .tex entry.
func IsTexture(path string) bool {
	return strings.EqualFold(pathExt(path), ".tex")
}

func pathExt(p string) string {
	for i := len(p) - 1; i >= 0 && p[i] != '/' && p[i] != '\\'; i-- {
		if p[i] == '.' {
			return p[i:]
		}
	}
	return ""
}
