package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"maglens/internal/analysis"
	"maglens/internal/basket"
	"maglens/internal/config"
	"maglens/internal/logger"
	"maglens/internal/market"
	"maglens/internal/store"
)

// refreshTimeout 后台刷新任务的总超时。
const refreshTimeout = 5 * time.Minute

// Service 串起整条流水线：拉取 → 时区换算 → 时段过滤 → 派生视图。
// 行情读写经过缓存，刷新任务在内存中跟踪。
type Service struct {
	cfg   config.Settings
	src   market.Source
	cache store.SeriesCache
	loc   *time.Location

	mu   sync.Mutex
	jobs map[string]*RefreshJob
}

func NewService(cfg config.Settings, src market.Source, cache store.SeriesCache) (*Service, error) {
	if src == nil {
		return nil, errors.New("source 不能为空")
	}
	if cache == nil {
		return nil, errors.New("cache 不能为空")
	}
	loc, err := time.LoadLocation(cfg.DisplayZone)
	if err != nil {
		return nil, fmt.Errorf("加载显示时区失败: %w", err)
	}
	return &Service{
		cfg:   cfg,
		src:   src,
		cache: cache,
		loc:   loc,
		jobs:  make(map[string]*RefreshJob),
	}, nil
}

// Settings 返回服务持有的配置。
func (s *Service) Settings() config.Settings { return s.cfg }

// Close 释放底层数据源与缓存。
func (s *Service) Close() error {
	if err := s.src.Close(); err != nil {
		logger.Warnf("[dashboard] 关闭数据源失败: %v", err)
	}
	return s.cache.Close()
}

// DefaultRange 最近 N 天、止于当前时刻。
func (s *Service) DefaultRange() market.Range {
	return market.LastDays(s.cfg.DefaultRangeDays)
}

// ParseRange 解析 YYYY-MM-DD 查询参数（显示时区语义，end 含当天）。
// 两端都留空时返回默认区间。
func (s *Service) ParseRange(startStr, endStr string) (market.Range, error) {
	end := time.Now().In(s.loc)
	if endStr != "" {
		d, err := time.ParseInLocation("2006-01-02", endStr, s.loc)
		if err != nil {
			return market.Range{}, fmt.Errorf("end 日期非法: %w", err)
		}
		// 区间含 end 当天的整个交易时段。
		end = d.AddDate(0, 0, 1)
	}
	start := end.AddDate(0, 0, -s.cfg.DefaultRangeDays)
	if startStr != "" {
		d, err := time.ParseInLocation("2006-01-02", startStr, s.loc)
		if err != nil {
			return market.Range{}, fmt.Errorf("start 日期非法: %w", err)
		}
		start = d
	}
	if !start.Before(end) {
		return market.Range{}, fmt.Errorf("start 必须早于 end")
	}
	return market.Range{Start: start, End: end}, nil
}

// fetched 单个 ticker 的拉取结果，interval 记录实际使用的粒度。
type fetched struct {
	series   market.Series
	interval string
}

type fetchResult struct {
	series   map[string]fetched
	warnings []string
	missing  []string
}

// fetchAll 并发拉取全部配置的 ticker，单个失败只记告警不拖垮整体。
// progress 在每个 ticker 结束时回调一次（无论成败）。
func (s *Service) fetchAll(ctx context.Context, rng market.Range, force bool, progress func()) fetchResult {
	tickers := s.cfg.Tickers()
	out := fetchResult{series: make(map[string]fetched, len(tickers))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Provider.MaxParallel)
	var mu sync.Mutex
	for _, ticker := range tickers {
		g.Go(func() error {
			ser, interval, warns, err := s.fetchOne(gctx, ticker, rng, force)
			mu.Lock()
			defer mu.Unlock()
			out.warnings = append(out.warnings, warns...)
			switch {
			case err != nil:
				out.warnings = append(out.warnings, fmt.Sprintf("%s: 拉取失败: %v", ticker, err))
				out.missing = append(out.missing, ticker)
			case ser.Empty():
				out.warnings = append(out.warnings, fmt.Sprintf("%s: 数据为空", ticker))
				out.missing = append(out.missing, ticker)
			default:
				out.series[ticker] = fetched{series: ser, interval: interval}
			}
			if progress != nil {
				progress()
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(out.missing)
	return out
}

// fetchOne 按首选粒度拉取，失败或为空时降级到 fallback 粒度再试一次。
func (s *Service) fetchOne(ctx context.Context, ticker string, rng market.Range, force bool) (market.Series, string, []string, error) {
	var warns []string
	interval := s.pickInterval(rng)
	ser, err := s.fetchInterval(ctx, ticker, rng, interval, force)
	if (err != nil || ser.Empty()) && interval != s.cfg.FallbackInterval {
		var note string
		if err != nil {
			note = fmt.Sprintf("%s: %s 拉取失败(%v)，改用 %s", ticker, interval, err, s.cfg.FallbackInterval)
		} else {
			note = fmt.Sprintf("%s: %s 数据为空，改用 %s", ticker, interval, s.cfg.FallbackInterval)
		}
		logger.Warnf("[dashboard] %s", note)
		warns = append(warns, note)
		interval = s.cfg.FallbackInterval
		ser, err = s.fetchInterval(ctx, ticker, rng, interval, force)
	}
	if err != nil {
		return market.Series{}, interval, warns, err
	}
	return ser, interval, warns, nil
}

// pickInterval 区间超出盘中数据深度时直接用 fallback 粒度。
func (s *Service) pickInterval(rng market.Range) string {
	if market.Intraday(s.cfg.Interval) && rng.Days() > s.cfg.IntradayMaxDays {
		logger.Debugf("[dashboard] 区间 %d 天超出盘中深度，改用 %s", rng.Days(), s.cfg.FallbackInterval)
		return s.cfg.FallbackInterval
	}
	return s.cfg.Interval
}

// fetchInterval 带缓存的单次拉取。force 跳过缓存读，但结果仍会写回。
func (s *Service) fetchInterval(ctx context.Context, ticker string, rng market.Range, interval string, force bool) (market.Series, error) {
	req := market.FetchRequest{Ticker: ticker, Range: rng, Interval: interval}
	key := store.KeyFor(req)
	if !force {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			logger.Warnf("[dashboard] 读缓存失败 %s: %v", key, err)
		} else if ok {
			logger.Debugf("[dashboard] 缓存命中 %s", key)
			return cached, nil
		}
	}
	ser, err := s.src.FetchSeries(ctx, req)
	if err != nil {
		return market.Series{}, err
	}
	if !ser.Empty() {
		if err := s.cache.Put(ctx, key, ser); err != nil {
			logger.Warnf("[dashboard] 写缓存失败 %s: %v", key, err)
		}
	}
	return ser, nil
}

// viewBundle 一次快照需要的全部中间产物。
type viewBundle struct {
	primary    market.Basket   // 第一个篮子（个股）
	composite  market.Series   // primary 的等权合成
	benchmarks []market.Series // 其余篮子的非杠杆成员
	leveraged  []market.Series // 其余篮子的杠杆成员
	proxies    []market.Series // 配置的倍数代理
	coverage   []market.CoverageReport
	warnings   []string
	missing    []string
}

// assemble 拉取并整理出所有视图的原料。序列统一换算到显示时区，
// 盘中数据按篮子的交易时段窗口过滤。
func (s *Service) assemble(ctx context.Context, rng market.Range, force bool) viewBundle {
	res := s.fetchAll(ctx, rng, force, nil)
	bundle := viewBundle{warnings: res.warnings, missing: res.missing}

	baskets := make([]market.Basket, 0, len(s.cfg.Baskets))
	for _, bc := range s.cfg.Baskets {
		winStart, winEnd, hasWindow, err := bc.SessionWindow()
		if err != nil {
			// 配置加载时已校验，这里只兜底。
			bundle.warnings = append(bundle.warnings, fmt.Sprintf("篮子 %s 时段窗口非法: %v", bc.Name, err))
			hasWindow = false
		}
		b := market.Basket{Name: bc.Name}
		for _, ec := range bc.Entities {
			ent := market.Entity{Name: ec.Name, Ticker: ec.Ticker, Leverage: ec.Leverage}
			ser := market.Series{Name: ec.Name, Zone: s.cfg.DisplayZone}
			if f, ok := res.series[ec.Ticker]; ok {
				norm, err := analysis.Normalize(f.series, s.cfg.DisplayZone)
				if err != nil {
					bundle.warnings = append(bundle.warnings, fmt.Sprintf("%s: 时区换算失败: %v", ec.Ticker, err))
				} else {
					// 日线时间戳落在开盘时刻附近，时段过滤只对盘中粒度有意义。
					if hasWindow && market.Intraday(f.interval) {
						norm = analysis.FilterSession(norm, winStart, winEnd)
					}
					rep := market.Coverage(norm, f.interval)
					bundle.coverage = append(bundle.coverage, rep)
					if !rep.Complete() {
						bundle.warnings = append(bundle.warnings,
							fmt.Sprintf("%s: %s 粒度有 %d 处盘中缺口", ec.Ticker, f.interval, len(rep.Gaps)))
					}
					ser = norm.Rename(ec.Name)
				}
			}
			b.Add(ent, ser)
		}
		baskets = append(baskets, b)
	}

	if len(baskets) > 0 {
		bundle.primary = baskets[0]
		bundle.composite = basket.Composite(baskets[0], basket.Options{
			Name:                 baskets[0].Name + " Composite",
			RenormalizeOnMissing: s.cfg.Renormalize(),
		})
	}
	if len(baskets) > 1 {
		for _, b := range baskets[1:] {
			for _, m := range b.Members {
				if m.Leveraged() {
					bundle.leveraged = append(bundle.leveraged, m.Series)
				} else {
					bundle.benchmarks = append(bundle.benchmarks, m.Series)
				}
			}
		}
	}
	for _, pc := range s.cfg.Proxies {
		base, ok := findMember(baskets, pc.Base)
		if !ok || base.Series.Empty() {
			bundle.warnings = append(bundle.warnings, fmt.Sprintf("代理 %s 缺少 base %s 的数据", pc.Name, pc.Base))
			bundle.proxies = append(bundle.proxies, market.Series{Name: pc.Name, Zone: s.cfg.DisplayZone})
			continue
		}
		bundle.proxies = append(bundle.proxies, analysis.Proxy(base.Series, pc.Factor).Rename(pc.Name))
	}
	return bundle
}

func findMember(baskets []market.Basket, ticker string) (market.Member, bool) {
	for _, b := range baskets {
		if m, ok := b.Member(ticker); ok {
			return m, true
		}
	}
	return market.Member{}, false
}

// SubmitRefresh 登记一个后台刷新任务并立即返回。
func (s *Service) SubmitRefresh(p RefreshParams) (RefreshJob, error) {
	rng, err := s.ParseRange(p.Start, p.End)
	if err != nil {
		return RefreshJob{}, err
	}
	now := time.Now()
	job := &RefreshJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Params:    p,
		Total:     len(s.cfg.Tickers()),
		StartedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go s.runRefresh(job.ID, rng, p.Force)
	logger.Infof("[dashboard] 刷新任务 %s 已提交", job.ID)
	return job.copy(), nil
}

func (s *Service) runRefresh(id string, rng market.Range, force bool) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	s.updateJob(id, func(j *RefreshJob) { j.Status = JobStatusRunning })
	if err := s.cache.Purge(ctx); err != nil {
		logger.Warnf("[dashboard] 清理过期缓存失败: %v", err)
	}
	res := s.fetchAll(ctx, rng, force, func() {
		s.updateJob(id, func(j *RefreshJob) { j.Completed++ })
	})
	s.updateJob(id, func(j *RefreshJob) {
		j.Warnings = append(j.Warnings, res.warnings...)
		j.Missing = res.missing
		switch {
		case len(res.series) == 0:
			j.Status = JobStatusFailed
			j.Message = "所有 ticker 拉取失败"
		case len(res.missing) > 0:
			j.Status = JobStatusPartial
			j.Message = fmt.Sprintf("%d/%d 个 ticker 就绪", len(res.series), j.Total)
		default:
			j.Status = JobStatusDone
			j.Message = "行情已刷新"
		}
	})
	st := s.src.Stats()
	logger.Infof("[dashboard] 刷新任务 %s 结束: 请求 %d 次, 重试 %d 次, 失败 %d 次",
		id, st.Requests, st.Retries, st.Failures)
}

func (s *Service) updateJob(id string, fn func(*RefreshJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
		j.UpdatedAt = time.Now()
	}
}

// JobSnapshot 查询单个任务的只读快照。
func (s *Service) JobSnapshot(id string) (RefreshJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return RefreshJob{}, false
	}
	return j.copy(), true
}

// JobsSnapshot 全部任务快照，按提交时间倒序。
func (s *Service) JobsSnapshot() []RefreshJob {
	s.mu.Lock()
	out := make([]RefreshJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.copy())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.After(out[k].StartedAt) })
	return out
}
