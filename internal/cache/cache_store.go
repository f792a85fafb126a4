package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"telegram-group-scraper/internal/domain"
)

// CacheItem представляет кэшированный результат выгрузки
type CacheItem struct {
	Result    *domain.ScrapeResult
	ExpiresAt time.Time
}

// CacheStore управляет хранением и извлечением кэшированных результатов
type CacheStore struct {
	cache map[string]*CacheItem
	mutex sync.RWMutex
}

// NewCacheStore создает новый экземпляр CacheStore
func NewCacheStore() *CacheStore {
	return &CacheStore{
		cache: make(map[string]*CacheItem),
	}
}

// Get извлекает кэшированный элемент по его ключу (хешу)
func (cs *CacheStore) Get(key string) (*CacheItem, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	item, exists := cs.cache[key]
	if !exists || time.Now().After(item.ExpiresAt) {
		// Элемент не существует или срок его действия истек
		return nil, false
	}

	return item, true
}

// Put сохраняет элемент в кэш с указанным сроком действия
func (cs *CacheStore) Put(key string, result *domain.ScrapeResult, ttl time.Duration) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := time.Now()
	cs.cache[key] = &CacheItem{
		Result:    result,
		ExpiresAt: now.Add(ttl),
	}
}

// CleanupExpired удаляет просроченные элементы из кэша
func (cs *CacheStore) CleanupExpired() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := time.Now()
	for key, item := range cs.cache {
		if now.After(item.ExpiresAt) {
			delete(cs.cache, key)
		}
	}
}

// StartCleanupTicker запускает таймер для периодической очистки просроченных элементов
func (cs *CacheStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}

// RequestKey вычисляет ключ кэша для запроса выгрузки.
// Одинаковые по смыслу запросы дают одинаковый ключ независимо
// от порядка ключевых слов.
func RequestKey(req *domain.ScrapeRequest) string {
	keywords := make([]string, len(req.Keywords))
	for i, k := range req.Keywords {
		keywords[i] = strings.ToLower(k)
	}
	sort.Strings(keywords)

	canonical := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%t",
		strings.ToLower(strings.TrimSpace(req.Group)),
		req.Kind,
		req.Limit,
		req.Since,
		req.Until,
		strings.Join(keywords, ","),
		req.Chronological,
	)

	return fmt.Sprintf("%x", sha256.Sum256([]byte(canonical)))
}
