package market

import "context"

// FetchRequest 描述一次行情拉取：标的 + 区间 + 采样间隔。
type FetchRequest struct {
	Ticker   string
	Range    Range
	Interval string
}

// SourceStats 记录数据源运行期的一些指标。
type SourceStats struct {
	Requests  int
	Retries   int
	Failures  int
	LastError string
}

// Source 统一对接外部行情供应商。
type Source interface {
	// FetchSeries 拉取指定区间的调整后收盘价序列，按时间升序返回。
	// 无数据或供应商报错时返回错误，由调用方降级为空序列。
	FetchSeries(ctx context.Context, req FetchRequest) (Series, error)
	// Stats 返回当前运行状态（若 source 不支持则返回零值）。
	Stats() SourceStats
	// Close 释放底层资源。
	Close() error
}
