package texture

import "encoding/binary"

// DDS header field offsets, counted from the start of the payload including
// the 4-byte magic.
const (
	offHeaderSize  = 4
	offPFSize      = 76
	offPFFlags     = 80
	offBitCount    = 88
	offRedMask     = 92
	offGreenMask   = 96
	offBlueMask    = 100
	offAlphaMask   = 104
	offCapsFlagsB1 = 109

	ddsHeaderSize   = 124
	ddsPFSize       = 32
	ddsFullHeader   = 128
	pfAlphaPixels   = 0x01
	capsTextureBit1 = 0x10
)

var (
	magicDDS  = [4]byte{'D', 'D', 'S', ' '}
	magicDDSR = [4]byte{'D', 'D', 'S', 'R'}
	// DDSR as written by tools that store the magic as a big-endian word
	magicRSDD = [4]byte{'R', 'S', 'D', 'D'}
)

func isGameMagic(m [4]byte) bool {
	return m == magicDDSR || m == magicRSDD
}

// Repair rewrites the game's DDS header in place so that generic decoders read
// the pixel format as A8R8G8B8 with alpha instead of opaque BGR. It only
// touches payloads that carry a DDS or DDSR magic, in either byte order, and
// is idempotent.
func Repair(payload []byte) {
	if len(payload) >= ddsFullHeader {
		m := [4]byte(payload[:4])
		if m != magicDDS && !isGameMagic(m) {
			return
		}
		copy(payload, magicDDS[:])

		headerSize := binary.LittleEndian.Uint32(payload[offHeaderSize:])
		pfSize := binary.LittleEndian.Uint32(payload[offPFSize:])
		if headerSize != ddsHeaderSize || pfSize != ddsPFSize {
			return
		}

		bitCount := int32(binary.LittleEndian.Uint32(payload[offBitCount:]))
		if bitCount >= 24 {
			binary.LittleEndian.PutUint32(payload[offRedMask:], 0x00FF0000)
			binary.LittleEndian.PutUint32(payload[offGreenMask:], 0x0000FF00)
			binary.LittleEndian.PutUint32(payload[offBlueMask:], 0x000000FF)
			if bitCount == 32 {
				payload[offPFFlags] |= pfAlphaPixels
				binary.LittleEndian.PutUint32(payload[offAlphaMask:], 0xFF000000)
			}
		}
		payload[offCapsFlagsB1] |= capsTextureBit1
		return
	}

	if len(payload) >= 4 && isGameMagic([4]byte(payload[:4])) {
		copy(payload, magicDDS[:])
	}
}
