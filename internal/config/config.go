package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"maglens/internal/analysis"
	"maglens/internal/market"
)

// Settings 仪表盘全量配置。零值字段由 withDefaults 填充，
// 所有阶段都显式接收配置，不依赖包级常量。
type Settings struct {
	ListenAddr  string `toml:"listen_addr"`
	LogLevel    string `toml:"log_level"`
	DisplayZone string `toml:"display_zone"`
	// Interval 默认采样间隔；FallbackInterval 在盘中数据拿不到或区间过长时兜底。
	Interval         string `toml:"interval"`
	FallbackInterval string `toml:"fallback_interval"`
	// IntradayMaxDays 盘中粒度允许的最大区间天数，超过自动降级到 FallbackInterval。
	IntradayMaxDays  int `toml:"intraday_max_days"`
	DefaultRangeDays int `toml:"default_range_days"`
	// SmoothWindow 图表 SMA 平滑窗口；0 关闭。
	SmoothWindow  int `toml:"smooth_window"`
	HistogramBins int `toml:"histogram_bins"`
	// RenormalizeOnMissing 控制等权合成的分母口径：true 只数非空成员，
	// false 固定按成员总数。省略时默认 true。
	RenormalizeOnMissing *bool `toml:"renormalize_on_missing"`

	Provider ProviderSettings `toml:"provider"`
	Cache    CacheSettings    `toml:"cache"`
	Snapshot SnapshotSettings `toml:"snapshot"`
	Baskets  []BasketSettings `toml:"baskets"`
	Proxies  []ProxySettings  `toml:"proxies"`
}

// ProviderSettings 行情供应商接入参数。
type ProviderSettings struct {
	BaseURL        string `toml:"base_url"`
	ProxyURL       string `toml:"proxy_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
	// MaxParallel 并发拉取的 ticker 上限。
	MaxParallel int `toml:"max_parallel"`
}

// CacheSettings 行情缓存配置。
type CacheSettings struct {
	// Backend memory | sqlite
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	TTLMinutes int    `toml:"ttl_minutes"`
}

// SnapshotSettings 图表 PNG 截图（headless Chrome）配置。
type SnapshotSettings struct {
	Enabled        bool   `toml:"enabled"`
	ExecPath       string `toml:"exec_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// EntitySettings 一个标的：显示名 + 行情代码。
// Leverage 标注产品自带杠杆（如 3 倍 ETF），普通标的省略。
type EntitySettings struct {
	Name     string  `toml:"name"`
	Ticker   string  `toml:"ticker"`
	Leverage float64 `toml:"leverage"`
}

// BasketSettings 一个篮子及其交易时段窗口（显示时区时钟时间，含边界）。
// 窗口留空表示不过滤。
type BasketSettings struct {
	Name         string           `toml:"name"`
	SessionStart string           `toml:"session_start"`
	SessionEnd   string           `toml:"session_end"`
	Entities     []EntitySettings `toml:"entities"`
}

// SessionWindow 解析篮子时段窗口；两端都为空时 ok=false 表示不过滤。
func (b BasketSettings) SessionWindow() (start, end analysis.TimeOfDay, ok bool, err error) {
	if b.SessionStart == "" && b.SessionEnd == "" {
		return analysis.TimeOfDay{}, analysis.TimeOfDay{}, false, nil
	}
	start, err = analysis.ParseTimeOfDay(b.SessionStart)
	if err != nil {
		return analysis.TimeOfDay{}, analysis.TimeOfDay{}, false, err
	}
	end, err = analysis.ParseTimeOfDay(b.SessionEnd)
	if err != nil {
		return analysis.TimeOfDay{}, analysis.TimeOfDay{}, false, err
	}
	return start, end, true, nil
}

// ProxySettings 杠杆代理：Base 序列乘以 Factor 得到合成序列。
type ProxySettings struct {
	Name   string  `toml:"name"`
	Base   string  `toml:"base"`
	Factor float64 `toml:"factor"`
}

// Load 读取 TOML 配置并填默认值、做校验。文件不存在时原样返回
// os.ErrNotExist，调用方可回落到 Default()。
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := toml.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("解析配置失败: %w", err)
	}
	s = s.withDefaults()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Default 内置的 Mag 7 + ETF 宇宙，与上游仪表盘保持一致。
func Default() Settings {
	s := Settings{
		Baskets: []BasketSettings{
			{
				Name:         "Magnificent 7",
				SessionStart: "15:30",
				SessionEnd:   "22:00",
				Entities: []EntitySettings{
					{Name: "Apple", Ticker: "AAPL"},
					{Name: "Microsoft", Ticker: "MSFT"},
					{Name: "Alphabet", Ticker: "GOOGL"},
					{Name: "Amazon", Ticker: "AMZN"},
					{Name: "Meta", Ticker: "META"},
					{Name: "Tesla", Ticker: "TSLA"},
					{Name: "Nvidia", Ticker: "NVDA"},
				},
			},
			{
				Name:         "ETFs",
				SessionStart: "09:00",
				SessionEnd:   "17:30",
				Entities: []EntitySettings{
					{Name: "MAGS", Ticker: "MAGS"},
					{Name: "MAG7.MI", Ticker: "MAG7.MI", Leverage: 5},
					{Name: "QQQ3.MI", Ticker: "QQQ3.MI", Leverage: 3},
					{Name: "QQQ5.L", Ticker: "QQQ5.L", Leverage: 5},
					{Name: "QQQ", Ticker: "QQQ"},
				},
			},
		},
		Proxies: []ProxySettings{
			{Name: "QQQ x3", Base: "QQQ", Factor: 3},
			{Name: "QQQ x5", Base: "QQQ", Factor: 5},
		},
	}
	return s.withDefaults()
}

func (s Settings) withDefaults() Settings {
	out := s
	if out.ListenAddr == "" {
		out.ListenAddr = ":8930"
	}
	if out.LogLevel == "" {
		out.LogLevel = "info"
	}
	if out.DisplayZone == "" {
		out.DisplayZone = "Europe/Berlin"
	}
	if out.Interval == "" {
		out.Interval = "30m"
	}
	if out.FallbackInterval == "" {
		out.FallbackInterval = "1d"
	}
	if out.IntradayMaxDays <= 0 {
		out.IntradayMaxDays = 60
	}
	if out.DefaultRangeDays <= 0 {
		out.DefaultRangeDays = 30
	}
	if out.HistogramBins <= 0 {
		out.HistogramBins = 30
	}
	if out.RenormalizeOnMissing == nil {
		v := true
		out.RenormalizeOnMissing = &v
	}
	if out.Provider.TimeoutSeconds <= 0 {
		out.Provider.TimeoutSeconds = 20
	}
	if out.Provider.MaxRetries <= 0 {
		out.Provider.MaxRetries = 2
	}
	if out.Provider.MaxParallel <= 0 {
		out.Provider.MaxParallel = 4
	}
	if out.Cache.Backend == "" {
		out.Cache.Backend = "memory"
	}
	if out.Cache.TTLMinutes <= 0 {
		out.Cache.TTLMinutes = 30
	}
	if out.Snapshot.TimeoutSeconds <= 0 {
		out.Snapshot.TimeoutSeconds = 20
	}
	return out
}

// Validate 校验时区、间隔、时段窗口、篮子与代理引用。
func (s Settings) Validate() error {
	if _, err := time.LoadLocation(s.DisplayZone); err != nil {
		return fmt.Errorf("display_zone 非法: %w", err)
	}
	for _, iv := range []string{s.Interval, s.FallbackInterval} {
		if _, ok := market.IntervalDuration(iv); !ok {
			return fmt.Errorf("不支持的采样间隔: %q", iv)
		}
	}
	if len(s.Baskets) == 0 {
		return fmt.Errorf("至少需要一个篮子")
	}
	tickers := make(map[string]bool)
	for _, b := range s.Baskets {
		if b.Name == "" {
			return fmt.Errorf("篮子名不能为空")
		}
		if len(b.Entities) == 0 {
			return fmt.Errorf("篮子 %s 没有成员", b.Name)
		}
		if _, _, _, err := b.SessionWindow(); err != nil {
			return fmt.Errorf("篮子 %s 时段窗口非法: %w", b.Name, err)
		}
		for _, e := range b.Entities {
			if e.Ticker == "" {
				return fmt.Errorf("篮子 %s 存在空 ticker", b.Name)
			}
			tickers[e.Ticker] = true
		}
	}
	for _, p := range s.Proxies {
		if p.Name == "" || p.Base == "" {
			return fmt.Errorf("代理配置的 name/base 不能为空")
		}
		if p.Factor <= 0 {
			return fmt.Errorf("代理 %s 的 factor 必须为正", p.Name)
		}
		if !tickers[p.Base] {
			return fmt.Errorf("代理 %s 引用了未配置的 base ticker %q", p.Name, p.Base)
		}
	}
	switch s.Cache.Backend {
	case "memory":
	case "sqlite":
		if s.Cache.Path == "" {
			return fmt.Errorf("sqlite 缓存需要配置 cache.path")
		}
	default:
		return fmt.Errorf("不支持的缓存后端: %q", s.Cache.Backend)
	}
	return nil
}

// Renormalize 等权合成是否按非空成员重算分母。
func (s Settings) Renormalize() bool {
	return s.RenormalizeOnMissing == nil || *s.RenormalizeOnMissing
}

// CacheTTL 缓存存活时长。
func (s Settings) CacheTTL() time.Duration {
	return time.Duration(s.Cache.TTLMinutes) * time.Minute
}

// ProviderTimeout HTTP 超时时长。
func (s Settings) ProviderTimeout() time.Duration {
	return time.Duration(s.Provider.TimeoutSeconds) * time.Second
}

// SnapshotTimeout 截图超时时长。
func (s Settings) SnapshotTimeout() time.Duration {
	return time.Duration(s.Snapshot.TimeoutSeconds) * time.Second
}

// Tickers 去重后的全部行情代码（篮子顺序优先）。
func (s Settings) Tickers() []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, b := range s.Baskets {
		for _, e := range b.Entities {
			if !seen[e.Ticker] {
				seen[e.Ticker] = true
				out = append(out, e.Ticker)
			}
		}
	}
	return out
}
