package arc_test

import (
	"hash/crc32"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchantrell/tqarc/internal/arc"
	"github.com/jchantrell/tqarc/internal/arc/arctest"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `items\weapons\sword.tex`, arc.NormalizePath("Items/Weapons/Sword.TEX"))
	assert.Equal(t, `a\b`, arc.NormalizePath(`A\b`))
	assert.Equal(t, arc.AssetKey(`Items\Sword.tex`), arc.AssetKey("items/sword.TEX"))
	assert.Equal(t, crc32.ChecksumIEEE([]byte(`items\sword.tex`)), arc.AssetKey("Items/Sword.tex"))
}

func TestSlashPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`Items\Sword.tex`, "Items/Sword.tex", true},
		{`\Leading\x.txt`, "Leading/x.txt", true},
		{`a\.\b\..\c.txt`, "a/c.txt", true},
		{`..\escape.txt`, "", false},
		{`a\..\..\escape.txt`, "", false},
		{"", "", false},
		{`\`, "", false},
	}

	for _, tt := range tests {
		got, ok := arc.SlashPath(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	a := load(t, arctest.New().
		AddStored(`Items\Sword.tex`, []byte("sword")).
		AddStored(`Items\Shield.tex`, []byte("shield")).
		AddStored(`items\sword.tex`, []byte("duplicate")).
		Bytes(t))

	i, ok := a.Find("ITEMS/SWORD.TEX")
	require.True(t, ok)
	assert.Equal(t, 0, i)

	_, ok = a.Find("items/axe.tex")
	assert.False(t, ok)

	data, err := a.ExtractPath("items/shield.tex")
	require.NoError(t, err)
	assert.Equal(t, []byte("shield"), data)

	_, err = a.ExtractPath("missing.tex")
	assert.ErrorIs(t, err, arc.ErrNotFound)

	assert.Equal(t, []int{0, 2}, a.Match("sword"))
	assert.Len(t, a.Match(""), 3)
}

func TestEntries(t *testing.T) {
	t.Parallel()

	a := load(t, arctest.New().
		AddStored("one", []byte("1")).
		AddStored("two", []byte("22")).
		AddStored("three", []byte("333")).
		Bytes(t))

	var paths []string
	var sizes []uint32
	for i, e := range a.Entries() {
		assert.Equal(t, len(paths), i)
		paths = append(paths, e.Path)
		sizes = append(sizes, e.RealSize)
	}
	assert.Equal(t, []string{"one", "two", "three"}, paths)
	assert.Equal(t, []uint32{1, 2, 3}, sizes)

	for i := range a.Entries() {
		if i == 1 {
			break
		}
	}
}

func TestFS(t *testing.T) {
	t.Parallel()

	a := load(t, arctest.New().
		AddStored(`Items\Weapons\sword.tex`, []byte("sword")).
		AddCompressed(`Items\shield.tex`, []byte("shield shield shield")).
		AddStored(`Text\en.txt`, []byte("hello")).
		AddStored(`..\evil.txt`, []byte("nope")).
		Bytes(t))

	fsys := a.FS()

	data, err := fs.ReadFile(fsys, "Items/shield.tex")
	require.NoError(t, err)
	assert.Equal(t, []byte("shield shield shield"), data)

	entries, err := fs.ReadDir(fsys, "Items")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Weapons", entries[0].Name())
	assert.True(t, entries[0].IsDir())
	assert.Equal(t, "shield.tex", entries[1].Name())
	assert.False(t, entries[1].IsDir())

	var walked []string
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			walked = append(walked, p)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Items/Weapons/sword.tex", "Items/shield.tex", "Text/en.txt"}, walked)

	matches, err := fs.Glob(fsys, "Items/*.tex")
	require.NoError(t, err)
	assert.Equal(t, []string{"Items/shield.tex"}, matches)

	info, err := fs.Stat(fsys, "Text/en.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
	assert.Equal(t, 2, info.Sys())

	_, err = fsys.Open("Nope/x.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = fsys.Open("../evil.txt")
	assert.ErrorIs(t, err, fs.ErrInvalid)
}
