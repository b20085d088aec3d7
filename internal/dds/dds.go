// Package dds decodes DirectDraw Surface images: uncompressed bit-mask
// layouts, 8-bit luminance, and DXT1/DXT3/DXT5 block compression. Only the
// top mip level is decoded. Importing the package registers the "dds" format
// with the image package.
package dds

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math/bits"
)

var (
	ErrUnsupported = errors.New("dds: unsupported pixel format")
	ErrTruncated   = errors.New("dds: truncated data")
	ErrHeader      = errors.New("dds: invalid header")
)

const (
	magic      = "DDS "
	headerSize = 124
	dataOffset = 4 + headerSize

	pfAlphaPixels = 0x1
	pfFourCC      = 0x4
	pfRGB         = 0x40
	pfLuminance   = 0x20000

	// refuse dimensions beyond what any texture could need
	maxDimension = 1 << 15
)

func init() {
	image.RegisterFormat("dds", magic, Decode, DecodeConfig)
}

// PixelFormat is the DDS_PIXELFORMAT block.
type PixelFormat struct {
	Size      uint32
	Flags     uint32
	FourCC    [4]byte
	BitCount  uint32
	RedMask   uint32
	GreenMask uint32
	BlueMask  uint32
	AlphaMask uint32
}

// Header is the DDS_HEADER block following the magic.
type Header struct {
	Size              uint32
	Flags             uint32
	Height            uint32
	Width             uint32
	PitchOrLinearSize uint32
	Depth             uint32
	MipMapCount       uint32
	Reserved1         [11]uint32
	PixelFormat       PixelFormat
	Caps              [4]uint32
	Reserved2         uint32
}

func readHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < dataOffset {
		return h, fmt.Errorf("header: %w", ErrTruncated)
	}
	if string(data[:4]) != magic {
		return h, fmt.Errorf("magic %q: %w", data[:4], ErrHeader)
	}

	b := data[4:dataOffset]
	le := binary.LittleEndian
	h.Size = le.Uint32(b[0:])
	h.Flags = le.Uint32(b[4:])
	h.Height = le.Uint32(b[8:])
	h.Width = le.Uint32(b[12:])
	h.PitchOrLinearSize = le.Uint32(b[16:])
	h.Depth = le.Uint32(b[20:])
	h.MipMapCount = le.Uint32(b[24:])
	for i := range h.Reserved1 {
		h.Reserved1[i] = le.Uint32(b[28+i*4:])
	}
	pf := b[72:104]
	h.PixelFormat = PixelFormat{
		Size:      le.Uint32(pf[0:]),
		Flags:     le.Uint32(pf[4:]),
		FourCC:    [4]byte(pf[8:12]),
		BitCount:  le.Uint32(pf[12:]),
		RedMask:   le.Uint32(pf[16:]),
		GreenMask: le.Uint32(pf[20:]),
		BlueMask:  le.Uint32(pf[24:]),
		AlphaMask: le.Uint32(pf[28:]),
	}
	for i := range h.Caps {
		h.Caps[i] = le.Uint32(b[104+i*4:])
	}
	h.Reserved2 = le.Uint32(b[120:])

	if h.Size != headerSize {
		return h, fmt.Errorf("header size %d: %w", h.Size, ErrHeader)
	}
	if h.Width == 0 || h.Height == 0 || h.Width > maxDimension || h.Height > maxDimension {
		return h, fmt.Errorf("dimensions %dx%d: %w", h.Width, h.Height, ErrHeader)
	}
	return h, nil
}

// DecodeConfig returns the dimensions without decoding pixels.
func DecodeConfig(r io.Reader) (image.Config, error) {
	buf := make([]byte, dataOffset)
	if _, err := io.ReadFull(r, buf); err != nil {
		return image.Config{}, fmt.Errorf("dds: reading header: %w", ErrTruncated)
	}
	h, err := readHeader(buf)
	if err != nil {
		return image.Config{}, fmt.Errorf("dds: %w", err)
	}
	return image.Config{
		ColorModel: color.NRGBAModel,
		Width:      int(h.Width),
		Height:     int(h.Height),
	}, nil
}

// Decode reads a DDS image and returns an *image.NRGBA.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("dds: reading: %w", err)
	}
	h, err := readHeader(data)
	if err != nil {
		return nil, fmt.Errorf("dds: %w", err)
	}

	w, hgt := int(h.Width), int(h.Height)
	pix := data[dataOffset:]
	pf := h.PixelFormat

	need, err := pixelBytes(pf, w, hgt)
	if err != nil {
		return nil, fmt.Errorf("dds: %w", err)
	}
	if len(pix) < need {
		return nil, fmt.Errorf("dds: need %d pixel bytes, have %d: %w", need, len(pix), ErrTruncated)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, hgt))
	if pf.Flags&pfFourCC != 0 {
		switch string(pf.FourCC[:]) {
		case "DXT1":
			err = decodeBlocks(img, pix, 8, decodeDXT1)
		case "DXT3":
			err = decodeBlocks(img, pix, 16, decodeDXT3)
		case "DXT5":
			err = decodeBlocks(img, pix, 16, decodeDXT5)
		}
	} else {
		err = decodeMasked(img, pix, pf)
	}
	if err != nil {
		return nil, fmt.Errorf("dds: %w", err)
	}
	return img, nil
}

// pixelBytes returns how many bytes of pixel data the first mip level of a
// w x h image in format pf occupies. The pixel buffer is only allocated once
// that much data is known to be present.
func pixelBytes(pf PixelFormat, w, h int) (int, error) {
	if pf.Flags&pfFourCC != 0 {
		var blockSize int
		switch string(pf.FourCC[:]) {
		case "DXT1":
			blockSize = 8
		case "DXT3", "DXT5":
			blockSize = 16
		default:
			return 0, fmt.Errorf("fourcc %q: %w", pf.FourCC[:], ErrUnsupported)
		}
		return ((w + 3) / 4) * ((h + 3) / 4) * blockSize, nil
	}
	if pf.Flags&(pfRGB|pfLuminance) == 0 && pf.BitCount == 0 {
		return 0, fmt.Errorf("flags %#x: %w", pf.Flags, ErrUnsupported)
	}
	bpp := int(pf.BitCount) / 8
	if pf.BitCount%8 != 0 || bpp < 1 || bpp > 4 {
		return 0, fmt.Errorf("bit count %d: %w", pf.BitCount, ErrUnsupported)
	}
	return w * bpp * h, nil
}

type channel struct {
	mask  uint32
	shift int
	max   uint32
}

func newChannel(mask uint32) channel {
	if mask == 0 {
		return channel{}
	}
	shift := bits.TrailingZeros32(mask)
	return channel{mask: mask, shift: shift, max: mask >> shift}
}

func (c channel) value(v uint32, absent uint8) uint8 {
	if c.mask == 0 {
		return absent
	}
	x := (v & c.mask) >> c.shift
	if c.max == 0xFF {
		return uint8(x)
	}
	return uint8((uint64(x)*255 + uint64(c.max)/2) / uint64(c.max))
}

func decodeMasked(img *image.NRGBA, data []byte, pf PixelFormat) error {
	bpp := int(pf.BitCount) / 8
	if pf.BitCount%8 != 0 || bpp < 1 || bpp > 4 {
		return fmt.Errorf("bit count %d: %w", pf.BitCount, ErrUnsupported)
	}

	w, h := img.Rect.Dx(), img.Rect.Dy()
	pitch := w * bpp
	if len(data) < pitch*h {
		return fmt.Errorf("need %d pixel bytes, have %d: %w", pitch*h, len(data), ErrTruncated)
	}

	r := newChannel(pf.RedMask)
	g := newChannel(pf.GreenMask)
	b := newChannel(pf.BlueMask)
	a := channel{}
	if pf.Flags&pfAlphaPixels != 0 {
		a = newChannel(pf.AlphaMask)
	}
	luminance := pf.Flags&pfLuminance != 0

	for y := 0; y < h; y++ {
		row := data[y*pitch:]
		out := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			var v uint32
			for i := 0; i < bpp; i++ {
				v |= uint32(row[x*bpp+i]) << (8 * i)
			}
			o := out[x*4 : x*4+4]
			if luminance {
				l := r.value(v, 0)
				o[0], o[1], o[2] = l, l, l
			} else {
				o[0] = r.value(v, 0)
				o[1] = g.value(v, 0)
				o[2] = b.value(v, 0)
			}
			o[3] = a.value(v, 0xFF)
		}
	}
	return nil
}

type blockFunc func(block []byte, out *[16][4]uint8)

func decodeBlocks(img *image.NRGBA, data []byte, blockSize int, decode blockFunc) error {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	bw, bh := (w+3)/4, (h+3)/4
	if need := bw * bh * blockSize; len(data) < need {
		return fmt.Errorf("need %d block bytes, have %d: %w", need, len(data), ErrTruncated)
	}

	var texels [16][4]uint8
	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			off := (by*bw + bx) * blockSize
			decode(data[off:off+blockSize], &texels)
			for ty := 0; ty < 4; ty++ {
				y := by*4 + ty
				if y >= h {
					break
				}
				for tx := 0; tx < 4; tx++ {
					x := bx*4 + tx
					if x >= w {
						break
					}
					i := img.PixOffset(x, y)
					copy(img.Pix[i:i+4], texels[ty*4+tx][:])
				}
			}
		}
	}
	return nil
}

func rgb565(c uint16) [4]uint8 {
	r := uint8(c >> 11 & 0x1F)
	g := uint8(c >> 5 & 0x3F)
	b := uint8(c & 0x1F)
	return [4]uint8{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2, 0xFF}
}

func lerp(a, b uint8, wa, wb, d int) uint8 {
	return uint8((int(a)*wa + int(b)*wb) / d)
}

// colorBlock decodes the 8-byte color half shared by all DXT variants.
// Three-color mode with transparent black is only honored for DXT1.
func colorBlock(block []byte, out *[16][4]uint8, dxt1 bool) {
	c0 := binary.LittleEndian.Uint16(block[0:])
	c1 := binary.LittleEndian.Uint16(block[2:])
	indices := binary.LittleEndian.Uint32(block[4:])

	var palette [4][4]uint8
	palette[0] = rgb565(c0)
	palette[1] = rgb565(c1)
	if c0 > c1 || !dxt1 {
		for ch := 0; ch < 3; ch++ {
			palette[2][ch] = lerp(palette[0][ch], palette[1][ch], 2, 1, 3)
			palette[3][ch] = lerp(palette[0][ch], palette[1][ch], 1, 2, 3)
		}
		palette[2][3], palette[3][3] = 0xFF, 0xFF
	} else {
		for ch := 0; ch < 3; ch++ {
			palette[2][ch] = lerp(palette[0][ch], palette[1][ch], 1, 1, 2)
		}
		palette[2][3] = 0xFF
		palette[3] = [4]uint8{0, 0, 0, 0}
	}

	for i := 0; i < 16; i++ {
		out[i] = palette[indices>>(2*i)&0x3]
	}
}

func decodeDXT1(block []byte, out *[16][4]uint8) {
	colorBlock(block, out, true)
}

func decodeDXT3(block []byte, out *[16][4]uint8) {
	colorBlock(block[8:], out, false)
	alpha := binary.LittleEndian.Uint64(block[0:])
	for i := 0; i < 16; i++ {
		a := uint8(alpha >> (4 * i) & 0xF)
		out[i][3] = a<<4 | a
	}
}

func decodeDXT5(block []byte, out *[16][4]uint8) {
	colorBlock(block[8:], out, false)

	a0, a1 := block[0], block[1]
	var alphas [8]uint8
	alphas[0], alphas[1] = a0, a1
	if a0 > a1 {
		for i := 1; i < 7; i++ {
			alphas[i+1] = lerp(a0, a1, 7-i, i, 7)
		}
	} else {
		for i := 1; i < 5; i++ {
			alphas[i+1] = lerp(a0, a1, 5-i, i, 5)
		}
		alphas[6], alphas[7] = 0, 0xFF
	}

	var idx uint64
	for i := 0; i < 6; i++ {
		idx |= uint64(block[2+i]) << (8 * i)
	}
	for i := 0; i < 16; i++ {
		out[i][3] = alphas[idx>>(3*i)&0x7]
	}
}
