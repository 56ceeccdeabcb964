package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"maglens/internal/market"
)

// SQLiteSeriesCache 落盘实现：进程重启后缓存仍可命中，适合频繁重启
// 或受供应商限频的场景。TTL 语义与内存实现一致。
type SQLiteSeriesCache struct {
	mu  sync.Mutex
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLiteSeriesCache(path string, ttl time.Duration) (*SQLiteSeriesCache, error) {
	if path == "" {
		return nil, errors.New("sqlite 缓存路径不能为空")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite 失败: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 失败: %w", err)
	}
	c := &SQLiteSeriesCache{db: db, ttl: ttl, now: time.Now}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteSeriesCache) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS series_cache (
			cache_key TEXT PRIMARY KEY,
			stored_at INTEGER NOT NULL,
			payload   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_series_cache_stored_at ON series_cache(stored_at)`,
	}
	for _, q := range queries {
		if _, err := c.db.Exec(q); err != nil {
			return fmt.Errorf("初始化缓存表失败: %w", err)
		}
	}
	return nil
}

func (c *SQLiteSeriesCache) Get(ctx context.Context, key Key) (market.Series, bool, error) {
	if !key.valid() {
		return market.Series{}, false, errors.New("ticker/interval 不能为空")
	}
	var storedAt int64
	var payload string
	err := c.db.QueryRowContext(ctx,
		"SELECT stored_at, payload FROM series_cache WHERE cache_key = ?",
		key.String()).Scan(&storedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Series{}, false, nil
	}
	if err != nil {
		return market.Series{}, false, err
	}
	if c.now().Sub(time.Unix(storedAt, 0)) > c.ttl {
		return market.Series{}, false, nil
	}
	var s market.Series
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return market.Series{}, false, fmt.Errorf("缓存条目损坏: %w", err)
	}
	return s, true, nil
}

func (c *SQLiteSeriesCache) Put(ctx context.Context, key Key, s market.Series) error {
	if !key.valid() {
		return errors.New("ticker/interval 不能为空")
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO series_cache(cache_key, stored_at, payload) VALUES(?, ?, ?)",
		key.String(), c.now().Unix(), string(payload))
	return err
}

func (c *SQLiteSeriesCache) Purge(ctx context.Context) error {
	cutoff := c.now().Add(-c.ttl).Unix()
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.ExecContext(ctx, "DELETE FROM series_cache WHERE stored_at < ?", cutoff)
	return err
}

func (c *SQLiteSeriesCache) Close() error { return c.db.Close() }
