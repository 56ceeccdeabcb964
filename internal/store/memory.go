package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"maglens/internal/market"
)

// MemorySeriesCache 内存实现（默认后端）。
type MemorySeriesCache struct {
	mu   sync.RWMutex
	ttl  time.Duration
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	series   market.Series
	storedAt time.Time
}

func NewMemorySeriesCache(ttl time.Duration) *MemorySeriesCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemorySeriesCache{
		ttl:  ttl,
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// Get 命中时返回拷贝；超过 TTL 的条目按未命中处理（清理交给 Purge）。
func (c *MemorySeriesCache) Get(ctx context.Context, key Key) (market.Series, bool, error) {
	if !key.valid() {
		return market.Series{}, false, errors.New("ticker/interval 不能为空")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[key.String()]
	if !ok || c.now().Sub(e.storedAt) > c.ttl {
		return market.Series{}, false, nil
	}
	return e.series.Clone(), true, nil
}

// Put 存入拷贝并记录写入时间。
func (c *MemorySeriesCache) Put(ctx context.Context, key Key, s market.Series) error {
	if !key.valid() {
		return errors.New("ticker/interval 不能为空")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key.String()] = memoryEntry{series: s.Clone(), storedAt: c.now()}
	return nil
}

// Purge 删除过期条目。
func (c *MemorySeriesCache) Purge(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.data {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *MemorySeriesCache) Close() error { return nil }
