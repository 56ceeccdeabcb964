package store

import (
	"context"
	"fmt"

	"maglens/internal/market"
)

// Key 标识一次拉取结果：ticker + 区间 + 采样间隔。
type Key struct {
	Ticker   string
	Start    int64 // unix 秒
	End      int64
	Interval string
}

// KeyFor 从拉取请求构造缓存键。
func KeyFor(req market.FetchRequest) Key {
	return Key{
		Ticker:   req.Ticker,
		Start:    req.Range.Start.Unix(),
		End:      req.Range.End.Unix(),
		Interval: req.Interval,
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s:%d-%d", k.Ticker, k.Interval, k.Start, k.End)
}

func (k Key) valid() bool { return k.Ticker != "" && k.Interval != "" }

// SeriesCache 抽象：按键缓存行情序列，超过 TTL 的条目视为过期未命中。
// 过期条目直接重拉覆盖，没有失效协议。
type SeriesCache interface {
	Get(ctx context.Context, key Key) (market.Series, bool, error)
	Put(ctx context.Context, key Key, s market.Series) error
	// Purge 清理过期条目。
	Purge(ctx context.Context) error
	Close() error
}
