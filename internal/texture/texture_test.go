package texture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gamePayload builds a DDS payload the way the game writes it: "DDSR" magic,
// 32-bit pixels, BGR masks and no alpha flag.
func gamePayload(w, h uint32, bitCount uint32, pixels []byte) []byte {
	p := make([]byte, 128)
	copy(p, "DDSR")
	le := binary.LittleEndian
	le.PutUint32(p[4:], 124)
	le.PutUint32(p[8:], 0x1007)
	le.PutUint32(p[12:], h)
	le.PutUint32(p[16:], w)
	le.PutUint32(p[76:], 32)
	le.PutUint32(p[80:], 0x40)
	le.PutUint32(p[88:], bitCount)
	le.PutUint32(p[92:], 0x000000FF)
	le.PutUint32(p[96:], 0x0000FF00)
	le.PutUint32(p[100:], 0x00FF0000)
	return append(p, pixels...)
}

func texFile(version byte, payload []byte) []byte {
	hdr := make([]byte, 12)
	copy(hdr, "TEX")
	hdr[3] = version
	if version == 2 {
		hdr = append(hdr, 0)
	}
	return append(hdr, payload...)
}

func TestRepair_FullHeader32(t *testing.T) {
	t.Parallel()

	p := gamePayload(1, 1, 32, nil)
	Repair(p)

	assert.Equal(t, []byte("DDS "), p[0:4])
	assert.Equal(t, []byte{
		0x00, 0x00, 0xFF, 0x00,
		0x00, 0xFF, 0x00, 0x00,
		0xFF, 0x00, 0x00, 0x00,
	}, p[92:104])
	assert.Equal(t, byte(1), p[80]&1)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0xFF}, p[104:108])
	assert.Equal(t, byte(0x10), p[109]&0x10)
}

func TestRepair_FullHeader24(t *testing.T) {
	t.Parallel()

	p := gamePayload(1, 1, 24, nil)
	Repair(p)

	assert.Equal(t, uint32(0x00FF0000), binary.LittleEndian.Uint32(p[92:]))
	assert.Equal(t, byte(0), p[80]&1, "alpha flag only for 32-bit")
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(p[104:]))
	assert.Equal(t, byte(0x10), p[109]&0x10)
}

func TestRepair_LowBitDepthKeepsMasks(t *testing.T) {
	t.Parallel()

	p := gamePayload(1, 1, 16, nil)
	Repair(p)

	assert.Equal(t, []byte("DDS "), p[0:4])
	assert.Equal(t, uint32(0x000000FF), binary.LittleEndian.Uint32(p[92:]))
	assert.Equal(t, byte(0x10), p[109]&0x10)
}

func TestRepair_NonStandardSizes(t *testing.T) {
	t.Parallel()

	p := gamePayload(1, 1, 32, nil)
	binary.LittleEndian.PutUint32(p[4:], 100)
	Repair(p)

	assert.Equal(t, []byte("DDS "), p[0:4], "magic is normalized regardless")
	assert.Equal(t, uint32(0x000000FF), binary.LittleEndian.Uint32(p[92:]))
	assert.Equal(t, byte(0), p[109])
}

func TestRepair_ShortReversedMagic(t *testing.T) {
	t.Parallel()

	p := []byte{0x44, 0x44, 0x53, 0x52, 1, 2, 3}
	Repair(p)
	assert.Equal(t, []byte{0x44, 0x44, 0x53, 0x20, 1, 2, 3}, p)

	p = []byte{0x52, 0x53, 0x44, 0x44, 1, 2, 3}
	Repair(p)
	assert.Equal(t, []byte{0x44, 0x44, 0x53, 0x20, 1, 2, 3}, p)
}

func TestRepair_BigEndianMagic(t *testing.T) {
	t.Parallel()

	p := gamePayload(1, 1, 32, make([]byte, 4))
	copy(p, []byte{0x52, 0x53, 0x44, 0x44})
	Repair(p)
	assert.Equal(t, []byte("DDS "), p[0:4])
	assert.Equal(t, uint32(0xFF000000), binary.LittleEndian.Uint32(p[104:]))
	assert.Equal(t, byte(0x10), p[109]&0x10)
}

func TestRepair_OtherMagicUntouched(t *testing.T) {
	t.Parallel()

	p := gamePayload(1, 1, 32, nil)
	copy(p, "PNG?")
	orig := bytes.Clone(p)
	Repair(p)
	assert.Equal(t, orig, p)

	short := []byte("DDS!")
	Repair(short)
	assert.Equal(t, []byte("DDS!"), short)
}

func TestRepair_Idempotent(t *testing.T) {
	t.Parallel()

	for _, bitCount := range []uint32{8, 16, 24, 32} {
		once := gamePayload(2, 2, bitCount, make([]byte, 16))
		Repair(once)
		twice := bytes.Clone(once)
		Repair(twice)
		assert.Equal(t, once, twice, "bit count %d", bitCount)
	}

	short := []byte("DDSR")
	Repair(short)
	again := bytes.Clone(short)
	Repair(again)
	assert.Equal(t, short, again)
}

func TestPayload_SubHeader(t *testing.T) {
	t.Parallel()

	body := []byte("DDS payload")

	tests := []struct {
		name string
		raw  []byte
		want []byte
	}{
		{"tex v1", texFile(1, body), body},
		{"tex v2", texFile(2, body), body},
		{"no tag", append(bytes.Repeat([]byte{'x'}, 12), body...), body},
		{"no tag with 2 at byte 3", append([]byte{'A', 'B', 'C', 2, 0, 0, 0, 0, 0, 0, 0, 0}, body...), body},
	}

	for _, tt := range tests {
		got, err := Payload(tt.raw)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestPayload_DoesNotModifyInput(t *testing.T) {
	t.Parallel()

	raw := texFile(1, gamePayload(1, 1, 32, make([]byte, 4)))
	orig := bytes.Clone(raw)

	payload, err := Payload(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte("DDS "), payload[:4])
	assert.Equal(t, orig, raw)
}

func TestPayload_Errors(t *testing.T) {
	t.Parallel()

	_, err := Payload(make([]byte, 12))
	assert.ErrorIs(t, err, ErrFormat)

	_, err = Payload(texFile(2, nil))
	var fe *FormatError
	assert.ErrorAs(t, err, &fe)

	_, err = Payload(texFile(1, []byte{1, 2, 3}))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestDecode_RestoresAlpha(t *testing.T) {
	t.Parallel()

	// BGRA on disk: one opaque red texel and one half-transparent green texel
	pixels := []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0xFF, 0x00, 0x80}
	raw := texFile(2, gamePayload(2, 1, 32, pixels))

	pb, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, pb.Width)
	assert.Equal(t, 1, pb.Height)
	assert.Equal(t, []byte{0xFF, 0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00, 0x80}, pb.Pix)

	img := pb.Image()
	assert.Equal(t, image.Rect(0, 0, 2, 1), img.Bounds())
	assert.Equal(t, uint8(0x80), img.NRGBAAt(1, 0).A)
}

func TestDecode_DecoderFailure(t *testing.T) {
	t.Parallel()

	_, err := Decode(texFile(1, []byte("not an image at all")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Message, "unknown format")
}

func TestCodec_CustomDecoder(t *testing.T) {
	t.Parallel()

	var seen []byte
	c := NewCodec(WithDecoder(func(r io.Reader) (image.Image, string, error) {
		seen, _ = io.ReadAll(r)
		img := image.NewRGBA(image.Rect(0, 0, 1, 1))
		img.Pix = []byte{10, 20, 30, 255}
		return img, "fake", nil
	}))

	pb, err := c.Decode(texFile(1, []byte("DDSR-short")))
	require.NoError(t, err)
	assert.Equal(t, []byte("DDS -short"), seen)
	assert.Equal(t, []byte{10, 20, 30, 255}, pb.Pix)

	failing := NewCodec(WithDecoder(func(io.Reader) (image.Image, string, error) {
		return nil, "", errors.New("corrupt blob")
	}))
	_, err = failing.Decode(texFile(1, []byte("DDS data")))
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "corrupt blob", de.Message)
}

func TestIsTexture(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTexture(`Items\Sword.TEX`))
	assert.True(t, IsTexture("a/b.tex"))
	assert.False(t, IsTexture(`Items\Sword.tex.txt`))
	assert.False(t, IsTexture(`Items.tex\readme`))
	assert.False(t, IsTexture("tex"))
}
