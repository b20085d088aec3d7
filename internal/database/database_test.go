package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchantrell/tqarc/internal/arc"
	"github.com/jchantrell/tqarc/internal/arc/arctest"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(DefaultDatabaseOptions(filepath.Join(t.TempDir(), "sub", "catalog.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.CreateSchema(context.Background()))
	return db
}

func testArchive(t *testing.T) *arc.Archive {
	t.Helper()
	data := arctest.New().
		AddCompressed(`Items\Sword.tex`, []byte("sword texture")).
		AddStored(`Items\Shield_1.msh`, []byte("shield mesh")).
		Add(`Items\Broken.bin`, arctest.Part{Data: make([]byte, 30), Raw: []byte("garbage")}).
		Bytes(t)
	a, err := arc.LoadBytes("Items.arc", data)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewDatabase_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewDatabase(nil)
	assert.Error(t, err)
	_, err = NewDatabase(&DatabaseOptions{})
	assert.Error(t, err)
}

func TestCreateSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)

	ok, err := db.HasCatalog(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// idempotent
	require.NoError(t, db.CreateSchema(ctx))

	tables, err := db.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"archives", "entries"}, tables)
}

func TestRows(t *testing.T) {
	t.Parallel()

	rows := Rows(testArchive(t), `Items\`, true)
	require.Len(t, rows, 3)

	assert.Equal(t, `Items\Sword.tex`, rows[0].Path)
	assert.True(t, rows[0].Texture)
	assert.Equal(t, arc.AssetKey(`Items\Items\Sword.tex`), rows[0].AssetKey)
	assert.Equal(t, Checksum([]byte("sword texture")), rows[0].Checksum)

	assert.False(t, rows[1].Texture)
	assert.Equal(t, uint32(len("shield mesh")), rows[1].RealSize)
	assert.Equal(t, uint32(0), rows[1].StorageType)

	assert.Empty(t, rows[2].Checksum, "failed extraction leaves no checksum")

	plain := Rows(testArchive(t), "", false)
	assert.Empty(t, plain[0].Checksum)
}

func TestInsertArchive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	a := testArchive(t)
	h := a.Header()
	row := ArchiveRow{Name: a.Name(), Prefix: `Items\`, Size: a.Size(), Version: h.Version, NumFiles: h.NumFiles, NumParts: h.NumParts}

	var calls int
	_, err := db.InsertArchive(ctx, row, Rows(a, row.Prefix, true), func(current, total int, _ string) {
		calls++
		assert.Equal(t, 3, total)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	// re-indexing replaces the previous rows
	_, err = db.InsertArchive(ctx, row, Rows(a, row.Prefix, false), nil)
	require.NoError(t, err)

	var archives, entries int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM archives`).Scan(&archives))
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM entries`).Scan(&entries))
	assert.Equal(t, 1, archives)
	assert.Equal(t, 3, entries)
}

func TestFindEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	a := testArchive(t)
	_, err := db.InsertArchive(ctx, ArchiveRow{Name: "Items.arc", Prefix: `Items\`}, Rows(a, `Items\`, true), nil)
	require.NoError(t, err)

	found, err := db.FindEntries(ctx, "items/SWORD", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Items.arc", found[0].Archive)
	assert.Equal(t, 0, found[0].Index)
	assert.True(t, found[0].Texture)
	assert.Equal(t, Checksum([]byte("sword texture")), found[0].Checksum)

	// LIKE wildcards in the needle are literal
	found, err = db.FindEntries(ctx, "_1", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, `Items\Shield_1.msh`, found[0].Path)

	found, err = db.FindEntries(ctx, "%", 0)
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = db.FindEntries(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = db.LookupAsset(ctx, "items/items/sword.tex")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, `Items\Sword.tex`, found[0].Path)
}

func TestClosed(t *testing.T) {
	t.Parallel()

	db, err := NewDatabase(DefaultDatabaseOptions(filepath.Join(t.TempDir(), "c.db")))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err = db.Tables(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.CreateSchema(context.Background()), ErrClosed)
}
