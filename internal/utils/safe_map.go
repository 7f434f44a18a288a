package utils

import (
	"sync"
	"time"
)

// SafeMap 并发安全的去重 map，带自动清理功能
// 用于记录已处理过的 webhook 事件ID，吸收平台的重复投递。
type SafeMap struct {
	data      map[string]time.Time
	mutex     sync.RWMutex
	maxAge    time.Duration // 条目最大存活时间
	cleanupCh chan struct{}
}

// NewSafeMap 创建并发安全的去重 map
func NewSafeMap(maxAge time.Duration) *SafeMap {
	sm := &SafeMap{
		data:      make(map[string]time.Time),
		maxAge:    maxAge,
		cleanupCh: make(chan struct{}),
	}

	// 启动自动清理协程
	go sm.autoCleanup()

	return sm
}

// Seen 检查并标记：返回该 key 此前是否已出现过
func (sm *SafeMap) Seen(key string) bool {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	_, exists := sm.data[key]
	sm.data[key] = time.Now()
	return exists
}

// Has 检查是否存在
func (sm *SafeMap) Has(key string) bool {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	_, exists := sm.data[key]
	return exists
}

// Size 获取大小
func (sm *SafeMap) Size() int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	return len(sm.data)
}

// autoCleanup 自动清理过期条目
func (sm *SafeMap) autoCleanup() {
	ticker := time.NewTicker(5 * time.Minute) // 每5分钟清理一次
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.cleanup()
		case <-sm.cleanupCh:
			return
		}
	}
}

// cleanup 清理过期条目
func (sm *SafeMap) cleanup() {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	now := time.Now()
	for key, timestamp := range sm.data {
		if now.Sub(timestamp) > sm.maxAge {
			delete(sm.data, key)
		}
	}
}

// Stop 停止自动清理
func (sm *SafeMap) Stop() {
	close(sm.cleanupCh)
}
