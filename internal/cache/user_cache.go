package cache

import (
	"fmt"
	"sync"
	"time"

	"line-feedback-bot/internal/models"

	"github.com/sirupsen/logrus"
)

// Store 缓存背后的持久层接口（由 service.UserStoreService 实现）
type Store interface {
	LoadAll() ([]models.UserRecord, error)
	CreateIfAbsent(userID, displayName string) error
	SetLastRecordID(userID string, recordID int64) error
}

// UserState 单个用户的缓存状态
type UserState struct {
	DisplayName  string // 显示名（创建后不变）
	LastRecordID *int64 // 最近一次反馈引用的记录ID（可能为空）
}

// UserCache 进程级用户状态缓存（以持久层为冷启动事实来源）
type UserCache struct {
	users      map[string]*UserState // 用户ID -> 状态
	mutex      sync.RWMutex          // 读写锁
	store      Store                 // 写穿透的持久层
	lastReload time.Time             // 最后一次从持久层重载的时间
}

// NewUserCache 创建用户状态缓存
func NewUserCache(store Store) *UserCache {
	return &UserCache{
		users: make(map[string]*UserState),
		store: store,
	}
}

// EnsureFresh 缓存为空时从持久层同步重载
// 进程冷启动后缓存为空，不能当作"没有用户"处理；每次消息处理前都会调用，
// 用于兜底任何原因导致的缓存清空。重载与写入互斥，不会覆盖并发写。
func (c *UserCache) EnsureFresh() error {
	c.mutex.RLock()
	empty := len(c.users) == 0
	c.mutex.RUnlock()

	if !empty {
		return nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	// 双重检查：拿到写锁之前可能已有其他请求完成了重载
	if len(c.users) != 0 {
		return nil
	}

	records, err := c.store.LoadAll()
	if err != nil {
		logrus.Errorf("❌ 缓存重载失败: %v", err)
		return fmt.Errorf("从持久层重载缓存失败: %w", err)
	}

	fresh := make(map[string]*UserState, len(records))
	for _, r := range records {
		fresh[r.UserID] = &UserState{
			DisplayName:  r.DisplayName,
			LastRecordID: r.LastRecordID,
		}
	}

	c.users = fresh
	c.lastReload = time.Now()

	logrus.WithField("用户数", len(fresh)).Info("✅ 缓存已从数据库重载")
	return nil
}

// Get 查询用户状态（纯缓存读取，不触发持久层）
func (c *UserCache) Get(userID string) (UserState, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	state, exists := c.users[userID]
	if !exists {
		return UserState{}, false
	}
	return *state, true
}

// RecordNewUser 记录新用户并写穿透到持久层
// 先更新缓存再写库：两步之间崩溃时用户会丢失，下次接触时重新创建
// （持久层才是事实来源，重载会还原一致状态）。写库失败只记日志，缓存继续服务。
func (c *UserCache) RecordNewUser(userID, displayName string) {
	c.mutex.Lock()
	c.users[userID] = &UserState{DisplayName: displayName}
	c.mutex.Unlock()

	if err := c.store.CreateIfAbsent(userID, displayName); err != nil {
		logrus.WithFields(logrus.Fields{
			"用户ID": userID,
		}).Errorf("❌ 用户持久化失败（缓存继续服务）: %v", err)
	}
}

// RecordLastID 更新用户最近引用的记录ID并写穿透到持久层
// 未知用户的更新直接丢弃：反馈协议里创建永远先于反馈，
// 没见过消息的用户发来的 Postback 不值得凭空合成用户。
func (c *UserCache) RecordLastID(userID string, recordID int64) {
	c.mutex.Lock()
	state, exists := c.users[userID]
	if exists {
		id := recordID
		state.LastRecordID = &id
	}
	c.mutex.Unlock()

	if !exists {
		logrus.WithFields(logrus.Fields{
			"用户ID": userID,
			"记录ID": recordID,
		}).Debug("缓存中不存在该用户，忽略记录ID更新")
		return
	}

	if err := c.store.SetLastRecordID(userID, recordID); err != nil {
		logrus.WithFields(logrus.Fields{
			"用户ID": userID,
			"记录ID": recordID,
		}).Errorf("❌ 记录ID持久化失败（缓存继续服务）: %v", err)
	}
}

// Reset 清空缓存（管理操作和测试用，下次读取时触发重载）
func (c *UserCache) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.users = make(map[string]*UserState)
	c.lastReload = time.Time{}

	logrus.Info("♻️ 用户缓存已清空，将在下次读取时重新加载")
}

// Size 获取缓存用户数量
func (c *UserCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.users)
}

// Status 获取缓存状态
func (c *UserCache) Status() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	lastReload := "从未"
	if !c.lastReload.IsZero() {
		lastReload = c.lastReload.Format("2006-01-02 15:04:05")
	}

	return map[string]interface{}{
		"缓存用户数": len(c.users),
		"最后重载":  lastReload,
	}
}
