package service

import (
	"path/filepath"
	"testing"

	"line-feedback-bot/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore 用临时文件建一个干净的 sqlite 库
func setupTestStore(t *testing.T) *UserStoreService {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.InitDB(database.Config{Path: dbPath}))
	t.Cleanup(database.Close)

	store := NewUserStoreService()
	require.NoError(t, store.EnsureSchema())
	return store
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	store := setupTestStore(t)

	// 重复建表不报错
	require.NoError(t, store.EnsureSchema())
	require.NoError(t, store.EnsureSchema())
}

func TestCreateIfAbsentIdempotent(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.CreateIfAbsent("U1", "Alice"))
	// 第二次创建是无操作，不同的显示名被忽略
	require.NoError(t, store.CreateIfAbsent("U1", "Impostor"))

	records, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "U1", records[0].UserID)
	assert.Equal(t, "Alice", records[0].DisplayName)
	assert.Nil(t, records[0].LastRecordID)
}

func TestSetLastRecordID(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.CreateIfAbsent("U1", "Alice"))

	require.NoError(t, store.SetLastRecordID("U1", 123))

	records, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].LastRecordID)
	assert.Equal(t, int64(123), *records[0].LastRecordID)
}

func TestSetLastRecordIDMissingUserNoop(t *testing.T) {
	store := setupTestStore(t)

	// 不存在的用户：无操作，不报错
	require.NoError(t, store.SetLastRecordID("UX", 5))

	records, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoadAllReflectsCommittedState(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.CreateIfAbsent("U1", "Alice"))
	require.NoError(t, store.CreateIfAbsent("U2", "Bob"))
	require.NoError(t, store.SetLastRecordID("U2", 7))

	records, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := make(map[string]int64)
	for _, r := range records {
		if r.LastRecordID != nil {
			byID[r.UserID] = *r.LastRecordID
		}
	}
	assert.Equal(t, map[string]int64{"U2": 7}, byID)
}

func TestListAllOrdered(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.CreateIfAbsent("U2", "Bob"))
	require.NoError(t, store.CreateIfAbsent("U1", "Alice"))

	records, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "U1", records[0].UserID)
	assert.Equal(t, "U2", records[1].UserID)
}

func TestDeleteAll(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.CreateIfAbsent("U1", "Alice"))
	require.NoError(t, store.CreateIfAbsent("U2", "Bob"))

	require.NoError(t, store.DeleteAll())

	records, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}
