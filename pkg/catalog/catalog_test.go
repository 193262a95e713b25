package catalog

import (
	"context"
	"fmt"
	"testing"

	"hashdex/pkg/config"
	"hashdex/pkg/entry"
	"hashdex/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 每个测试一个独立的内存数据库
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	db := NewWithConn(conn)
	require.NoError(t, db.AutoMigrate())
	return db
}

func mockEntry(name string) *entry.IndexEntry {
	return &entry.IndexEntry{
		SchemaVersion: entry.SchemaVersion,
		ID:            types.NewID(types.TypeFile, "ABCDEF"),
		Type:          types.TypeFile,
		Name:          name,
		Extension:     "jpg",
		Path:          "/photos/" + name,
		Size:          42,
		Hashes:        map[string]string{"md5": "ABCDEF", "sha256": "0123"},
	}
}

const testHash = types.Hash("0123")

func TestRegistry_RegisterAndLookupAcrossRuns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := NewRegistry(db, "run-1")
	canonical := mockEntry("photo.jpg")
	require.NoError(t, first.Register(ctx, testHash, canonical))

	// 同一次运行返回树上的同一个指针
	got, ok, err := first.Lookup(ctx, testHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, canonical, got)

	// 新运行从数据库读出
	second := NewRegistry(db, "run-2")
	got, ok, err = second.Lookup(ctx, testHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "photo.jpg", got.Name)
	assert.Equal(t, canonical.ID, got.ID)
	assert.Equal(t, canonical.Hashes, got.Hashes)

	_, ok, err = second.Lookup(ctx, "FFFF")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_FirstWriteWins(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewRegistry(db, "run-1").Register(ctx, testHash, mockEntry("a.jpg")))
	require.NoError(t, NewRegistry(db, "run-2").Register(ctx, testHash, mockEntry("b.jpg")))

	var rows []CanonicalFile
	require.NoError(t, db.GetConn().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "a.jpg", rows[0].Name)
	assert.Equal(t, "run-1", rows[0].RunID)
}

func TestRegistry_RecordDuplicate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	reg := NewRegistry(db, "run-1")

	canonical := mockEntry("photo.jpg")
	require.NoError(t, reg.Register(ctx, testHash, canonical))
	require.NoError(t, reg.RecordDuplicate(ctx, testHash, entry.DuplicateRecord{Name: "photo_copy.jpg", Path: "/photos/photo_copy.jpg", Size: 42}))

	require.Len(t, canonical.Duplicates, 1)

	dups, err := reg.Duplicates(ctx, testHash)
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, "photo_copy.jpg", dups[0].Name)

	// 跨运行的重复只进数据库
	later := NewRegistry(db, "run-2")
	require.NoError(t, later.RecordDuplicate(ctx, testHash, entry.DuplicateRecord{Name: "again.jpg"}))

	c, d, err := later.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c)
	assert.Equal(t, int64(2), d)
}

func TestOpen_SqliteAndBadDriver(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, config.CatalogConfig{Enabled: true, Driver: "sqlite", DSN: "file:open_test?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = Open(ctx, config.CatalogConfig{Driver: "mysql", DSN: "x"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRegistry_AdoptAndRelocate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewRegistry(db, "run-1").Register(ctx, testHash, mockEntry("photo.jpg")))

	// 下一次运行再次遇到同一个文件
	later := NewRegistry(db, "run-2")
	prior, ok, err := later.Lookup(ctx, testHash)
	require.NoError(t, err)
	require.True(t, ok)

	current := mockEntry("photo.jpg")
	require.Equal(t, prior.Path, current.Path)
	require.NoError(t, later.Adopt(ctx, testHash, current))

	got, ok, err := later.Lookup(ctx, testHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, current, got)

	// 之后的重复文件挂到本次运行的条目上
	require.NoError(t, later.RecordDuplicate(ctx, testHash, entry.DuplicateRecord{Name: "copy.jpg"}))
	assert.Len(t, current.Duplicates, 1)

	// 重命名后写回新路径
	current.Path = "/photos/yABCDEF.jpg"
	root := &entry.IndexEntry{Type: types.TypeDirectory, Items: []*entry.IndexEntry{current}}
	require.NoError(t, later.Relocate(ctx, root))

	var row CanonicalFile
	require.NoError(t, db.GetConn().Where("hash = ?", testHash.String()).Take(&row).Error)
	assert.Equal(t, "/photos/yABCDEF.jpg", row.Path)
	assert.Equal(t, "run-2", row.RunID)
}

func TestRegistry_LookupMissIsNotAnError(t *testing.T) {
	db := setupTestDB(t)
	e, ok, err := NewRegistry(db, "run-1").Lookup(context.Background(), "FFFF")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, e)
}
