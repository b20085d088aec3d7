package assets

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchantrell/tqarc/internal/arc"
	"github.com/jchantrell/tqarc/internal/arc/arctest"
)

// tex1x1 is a TEX file holding a single opaque texel with the game's
// unrepaired 32-bit header.
func tex1x1(b, g, r, a byte) []byte {
	p := make([]byte, 12+128)
	copy(p, "TEX\x01")
	d := p[12:]
	copy(d, "DDSR")
	le := binary.LittleEndian
	le.PutUint32(d[4:], 124)
	le.PutUint32(d[12:], 1)
	le.PutUint32(d[16:], 1)
	le.PutUint32(d[76:], 32)
	le.PutUint32(d[80:], 0x40)
	le.PutUint32(d[88:], 32)
	return append(p, b, g, r, a)
}

func gameDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	arctest.New().
		AddCompressed(`Monster\Boar.tex`, tex1x1(0, 0, 0xFF, 0x80)).
		AddStored(`Monster\Boar.msh`, []byte("mesh")).
		Add(`Monster\Big.bin`,
			arctest.Part{Data: bytes.Repeat([]byte{1}, 40)},
			arctest.Part{Data: bytes.Repeat([]byte{2}, 60), Stored: true}).
		WriteFile(t, dir, "Resources/Creatures.arc")

	arctest.New().
		AddCompressed(`Monster\Boar.tex`, []byte("expansion")).
		WriteFile(t, dir, "Resources/XPack/Creatures.arc")

	arctest.New().
		AddStored(`readme.txt`, []byte("first")).
		WriteFile(t, dir, "Text.arc")
	arctest.New().
		AddStored(`readme.txt`, []byte("second")).
		WriteFile(t, dir, "Resources/Text.arc")

	arctest.New().
		AddStored(`hidden.txt`, []byte("x")).
		WriteFile(t, dir, ".backup/Hidden.arc")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Resources", "Broken.arc"), []byte("not an archive"), 0o644))
	return dir
}

func TestPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rel  string
		want string
	}{
		{"Resources/Creatures.arc", `Creatures\`},
		{"resources/Items/Gear.ARC", `Items\Gear\`},
		{"Resources/XPack/Creatures.arc", `XPack\Creatures\`},
		{"Resources/xpack/Levels.arc", `XPack\Levels\`},
		{"Text.arc", `Text\`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Prefix(tt.rel), tt.rel)
	}
}

func TestNewManager_Index(t *testing.T) {
	t.Parallel()

	m, err := NewManager(gameDir(t))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	assert.Equal(t, []string{
		"Resources/Broken.arc",
		"Resources/Creatures.arc",
		"Resources/Text.arc",
		"Resources/XPack/Creatures.arc",
		"Text.arc",
	}, m.Archives())

	// three creature entries, one expansion entry, one text key
	assert.Equal(t, 5, m.Len())

	a, ok := m.Lookup("creatures/monster/boar.TEX")
	require.True(t, ok)
	assert.Equal(t, `Creatures\Monster\Boar.tex`, a.Path)
	assert.Equal(t, "Resources/Creatures.arc", a.Archive)
	assert.Equal(t, 0, a.Entry)

	x, ok := m.Lookup(`XPack\Creatures\Monster\Boar.tex`)
	require.True(t, ok)
	assert.Equal(t, "Resources/XPack/Creatures.arc", x.Archive)

	_, ok = m.Lookup(`hidden\hidden.txt`)
	assert.False(t, ok)
}

func TestManager_LaterArchiveWins(t *testing.T) {
	t.Parallel()

	m, err := NewManager(gameDir(t))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	data, err := m.Read(`Text\readme.txt`)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data, "Text.arc sorts after Resources/Text.arc")
}

func TestManager_Read(t *testing.T) {
	t.Parallel()

	m, err := NewManager(gameDir(t))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	data, err := m.Read(`Creatures\Monster\Boar.msh`)
	require.NoError(t, err)
	assert.Equal(t, []byte("mesh"), data)

	data, err = m.Read(`XPack\Creatures\Monster\Boar.tex`)
	require.NoError(t, err)
	assert.Equal(t, []byte("expansion"), data)

	data, err = m.Read(`Creatures\Monster\Big.bin`)
	require.NoError(t, err)
	want := append(bytes.Repeat([]byte{1}, 40), bytes.Repeat([]byte{2}, 60)...)
	assert.Equal(t, want, data)

	_, err = m.Read(`Creatures\Missing.tex`)
	assert.ErrorIs(t, err, arc.ErrNotFound)
}

func TestManager_Texture(t *testing.T) {
	t.Parallel()

	m, err := NewManager(gameDir(t))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	pb, err := m.Texture(`Creatures\Monster\Boar.tex`)
	require.NoError(t, err)
	assert.Equal(t, 1, pb.Width)
	assert.Equal(t, []byte{0xFF, 0, 0, 0x80}, pb.Pix)

	again, err := m.Texture("CREATURES/MONSTER/BOAR.TEX")
	require.NoError(t, err)
	assert.Same(t, pb, again)

	_, err = m.Texture(`XPack\Creatures\Monster\Boar.tex`)
	assert.Error(t, err)
}

func TestManager_Close(t *testing.T) {
	t.Parallel()

	m, err := NewManager(gameDir(t))
	require.NoError(t, err)

	_, err = m.Read(`Creatures\Monster\Boar.msh`)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	_, err = m.Read(`Creatures\Monster\Boar.msh`)
	assert.ErrorIs(t, err, arc.ErrClosed)
}

func TestNewManager_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := NewManager(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
