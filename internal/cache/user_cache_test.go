package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"line-feedback-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore 测试用的内存持久层
type stubStore struct {
	mu       sync.Mutex
	records  map[string]models.UserRecord
	loadErr  error
	loads    int
	creates  int
	setCalls int
}

func newStubStore() *stubStore {
	return &stubStore{records: make(map[string]models.UserRecord)}
}

func (s *stubStore) LoadAll() ([]models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make([]models.UserRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

func (s *stubStore) CreateIfAbsent(userID, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if _, exists := s.records[userID]; exists {
		return nil
	}
	s.records[userID] = models.UserRecord{UserID: userID, DisplayName: displayName}
	return nil
}

func (s *stubStore) SetLastRecordID(userID string, recordID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	r, exists := s.records[userID]
	if !exists {
		return nil
	}
	id := recordID
	r.LastRecordID = &id
	s.records[userID] = r
	return nil
}

func TestEnsureFreshReloadsWhenEmpty(t *testing.T) {
	store := newStubStore()
	id := int64(42)
	store.records["U1"] = models.UserRecord{UserID: "U1", DisplayName: "Alice", LastRecordID: &id}
	store.records["U2"] = models.UserRecord{UserID: "U2", DisplayName: "Bob"}

	c := NewUserCache(store)
	require.NoError(t, c.EnsureFresh())

	state, ok := c.Get("U1")
	require.True(t, ok)
	assert.Equal(t, "Alice", state.DisplayName)
	require.NotNil(t, state.LastRecordID)
	assert.Equal(t, int64(42), *state.LastRecordID)

	state, ok = c.Get("U2")
	require.True(t, ok)
	assert.Equal(t, "Bob", state.DisplayName)
	assert.Nil(t, state.LastRecordID)

	// 非空时不再触碰持久层
	require.NoError(t, c.EnsureFresh())
	assert.Equal(t, 1, store.loads)
}

func TestEnsureFreshAfterReset(t *testing.T) {
	store := newStubStore()
	store.records["U1"] = models.UserRecord{UserID: "U1", DisplayName: "Alice"}

	c := NewUserCache(store)
	require.NoError(t, c.EnsureFresh())
	require.Equal(t, 1, c.Size())

	// 模拟缓存被清空：任何一次读之前都必须先从持久层重建
	c.Reset()
	require.Equal(t, 0, c.Size())

	require.NoError(t, c.EnsureFresh())
	state, ok := c.Get("U1")
	require.True(t, ok)
	assert.Equal(t, "Alice", state.DisplayName)
}

func TestEnsureFreshPropagatesStoreError(t *testing.T) {
	store := newStubStore()
	store.loadErr = errors.New("database unreachable")

	c := NewUserCache(store)
	assert.Error(t, c.EnsureFresh())
}

func TestRecordNewUser(t *testing.T) {
	store := newStubStore()
	c := NewUserCache(store)

	c.RecordNewUser("U1", "Alice")

	// 缓存立即可见，LastRecordID 为空
	state, ok := c.Get("U1")
	require.True(t, ok)
	assert.Equal(t, "Alice", state.DisplayName)
	assert.Nil(t, state.LastRecordID)

	// 写穿透到持久层
	assert.Equal(t, 1, store.creates)
	assert.Equal(t, "Alice", store.records["U1"].DisplayName)
}

func TestRecordLastID(t *testing.T) {
	store := newStubStore()
	c := NewUserCache(store)
	c.RecordNewUser("U1", "Alice")

	c.RecordLastID("U1", 123)

	state, ok := c.Get("U1")
	require.True(t, ok)
	require.NotNil(t, state.LastRecordID)
	assert.Equal(t, int64(123), *state.LastRecordID)

	// 持久层同步更新
	require.NotNil(t, store.records["U1"].LastRecordID)
	assert.Equal(t, int64(123), *store.records["U1"].LastRecordID)
}

func TestRecordLastIDUnknownUserDropped(t *testing.T) {
	store := newStubStore()
	c := NewUserCache(store)

	// 从未见过的用户：不合成新用户，也不写持久层
	c.RecordLastID("UX", 9)

	_, ok := c.Get("UX")
	assert.False(t, ok)
	assert.Equal(t, 0, store.setCalls)
}

func TestConcurrentReloadAndWrites(t *testing.T) {
	store := newStubStore()
	for i := 0; i < 20; i++ {
		uid := fmt.Sprintf("U%02d", i)
		store.records[uid] = models.UserRecord{UserID: uid, DisplayName: uid}
	}

	c := NewUserCache(store)

	// 两个不同用户的事件同时触发重载和写入，状态不能互相污染
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = c.EnsureFresh()
			uid := fmt.Sprintf("N%02d", n)
			c.RecordNewUser(uid, uid)
			c.RecordLastID(uid, int64(n))
			_, _ = c.Get(uid)
		}(i)
	}
	wg.Wait()

	require.NoError(t, c.EnsureFresh())
	for i := 0; i < 8; i++ {
		uid := fmt.Sprintf("N%02d", i)
		state, ok := c.Get(uid)
		require.True(t, ok, "用户 %s 应该存在", uid)
		assert.Equal(t, uid, state.DisplayName)
		require.NotNil(t, state.LastRecordID)
		assert.Equal(t, int64(i), *state.LastRecordID)
	}
	for i := 0; i < 20; i++ {
		uid := fmt.Sprintf("U%02d", i)
		_, ok := c.Get(uid)
		assert.True(t, ok, "预加载用户 %s 不应被并发写覆盖", uid)
	}
}
