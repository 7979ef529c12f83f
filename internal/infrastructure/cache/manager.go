package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// Manager 匯入結果的記憶體快取
// 同一份媒體重複匯入時直接重用抽取結果，省下 AI 呼叫
// 鍵由操作類型與媒體內容雜湊組成，內容一變鍵就不同
type Manager struct {
	config *config.CacheConfig
	mu     sync.RWMutex
	store  map[string]cacheEntry
	stats  cacheStats
	done   chan struct{}
}

// cacheEntry 快取條目
type cacheEntry struct {
	value       string
	expiresAt   time.Time
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int
}

// cacheStats 快取統計
type cacheStats struct {
	hits      int64
	misses    int64
	evictions int64
	errors    int64
}

// NewManager 創建匯入結果快取
func NewManager(cfg *config.CacheConfig) *Manager {
	if !cfg.Enabled {
		common.LogInfo("匯入結果快取未啟用")
		return nil
	}

	m := &Manager{
		config: cfg,
		store:  make(map[string]cacheEntry),
		done:   make(chan struct{}),
	}

	// 背景清理過期條目
	go m.startCleanup()

	common.LogInfo("匯入結果快取已初始化",
		zap.Int("最大容量", cfg.MaxSize),
		zap.Duration("存活時間", cfg.TTL),
		zap.Duration("清理間隔", cfg.CleanupInterval),
	)

	return m
}

// Key 組合快取鍵：操作類型 + 媒體內容雜湊
// 同一份檔案走不同匯入方式（文字 / 圖片 / 影片）各自獨立
func Key(kind string, payload []byte) string {
	return fmt.Sprintf("%s:%s", kind, common.HashBytes(payload))
}

// Get 查詢快取的匯入結果
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	if m == nil {
		return "", common.ErrCacheDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.store[key]
	if !exists {
		m.stats.misses++
		common.LogDebug("快取未命中", zap.String("鍵", key))
		return "", common.ErrCacheMiss
	}

	if time.Now().After(entry.expiresAt) {
		delete(m.store, key)
		m.stats.evictions++
		m.stats.misses++
		common.LogDebug("快取已過期", zap.String("鍵", key))
		return "", common.ErrCacheMiss
	}

	entry.lastAccess = time.Now()
	entry.accessCount++
	m.store[key] = entry
	m.stats.hits++

	common.LogInfo("快取命中", zap.String("鍵", key))
	return entry.value, nil
}

// Set 寫入匯入結果
func (m *Manager) Set(ctx context.Context, key, value string) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.store) >= m.config.MaxSize {
		evicted := m.cleanupLocked()
		common.LogInfo("快取清理執行", zap.Int("清理數量", evicted))

		if len(m.store) >= m.config.MaxSize {
			m.evictLRULocked()
		}
		if len(m.store) >= m.config.MaxSize {
			m.stats.errors++
			common.LogWarn("快取已滿", zap.Int("目前容量", len(m.store)))
			return common.ErrCacheFull
		}
	}

	now := time.Now()
	m.store[key] = cacheEntry{
		value:      value,
		expiresAt:  now.Add(m.config.TTL),
		createdAt:  now,
		lastAccess: now,
	}

	common.LogDebug("快取已儲存", zap.String("鍵", key))
	return nil
}

// startCleanup 背景清理過期條目
func (m *Manager) startCleanup() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.mu.Lock()
			m.cleanupLocked()
			m.mu.Unlock()
		}
	}
}

// cleanupLocked 清理過期條目，呼叫端必須持有寫鎖
func (m *Manager) cleanupLocked() int {
	now := time.Now()
	count := 0

	for key, entry := range m.store {
		if now.After(entry.expiresAt) {
			delete(m.store, key)
			count++
			m.stats.evictions++
		}
	}
	return count
}

// evictLRULocked 淘汰最少使用的條目，呼叫端必須持有寫鎖
func (m *Manager) evictLRULocked() {
	var oldestKey string
	var oldestAccess time.Time
	var lowestAccessCount int

	for key, entry := range m.store {
		if oldestKey == "" ||
			entry.accessCount < lowestAccessCount ||
			(entry.accessCount == lowestAccessCount && entry.lastAccess.Before(oldestAccess)) {
			oldestKey = key
			oldestAccess = entry.lastAccess
			lowestAccessCount = entry.accessCount
		}
	}

	if oldestKey != "" {
		delete(m.store, oldestKey)
		m.stats.evictions++
		common.LogInfo("快取已淘汰(LRU)", zap.String("鍵", oldestKey))
	}
}

// Stats 取得快取統計
func (m *Manager) Stats() map[string]interface{} {
	if m == nil {
		return map[string]interface{}{"enabled": false}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	total := m.stats.hits + m.stats.misses
	hitRatio := 0.0
	if total > 0 {
		hitRatio = float64(m.stats.hits) / float64(total)
	}
	return map[string]interface{}{
		"enabled":   true,
		"size":      len(m.store),
		"max_size":  m.config.MaxSize,
		"hits":      m.stats.hits,
		"misses":    m.stats.misses,
		"evictions": m.stats.evictions,
		"errors":    m.stats.errors,
		"hit_ratio": hitRatio,
	}
}

// Close 關閉快取
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	close(m.done)
	m.store = make(map[string]cacheEntry)
	common.LogInfo("匯入結果快取已關閉",
		zap.Int64("命中次數", m.stats.hits),
		zap.Int64("未命中次數", m.stats.misses),
		zap.Int64("淘汰次數", m.stats.evictions),
	)
	return nil
}
