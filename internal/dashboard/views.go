package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"maglens/internal/analysis"
	"maglens/internal/market"
	"maglens/internal/table"
)

// 视图 ID，HTTP 路由与前端共用。
const (
	ViewMag7          = "mag7"
	ViewComposite     = "composite"
	ViewLeveraged     = "leveraged"
	ViewDistributions = "distributions"
)

const (
	ViewKindLine      = "line"
	ViewKindHistogram = "histogram"
)

// ErrUnknownView 请求了不存在的视图。
var ErrUnknownView = errors.New("未知视图")

// ViewIDs 固定的视图顺序。
func ViewIDs() []string {
	return []string{ViewMag7, ViewComposite, ViewLeveraged, ViewDistributions}
}

func knownView(id string) bool {
	for _, v := range ViewIDs() {
		if v == id {
			return true
		}
	}
	return false
}

// SeriesPayload 前端画图用的一条曲线，时间标签与数值等长对齐。
type SeriesPayload struct {
	Name   string    `json:"name"`
	Times  []string  `json:"times"`
	Values []float64 `json:"values"`
}

// TablePayload 渲染成字符串的组合表。
type TablePayload struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// View 单个仪表盘视图：折线或直方图，外加组合表。
// 数据全缺时 Empty=true，前端据此隐藏导出按钮。
type View struct {
	ID            string                  `json:"id"`
	Title         string                  `json:"title"`
	Kind          string                  `json:"kind"`
	Series        []SeriesPayload         `json:"series,omitempty"`
	Distributions []analysis.Distribution `json:"distributions,omitempty"`
	Table         *TablePayload           `json:"table,omitempty"`
	Empty         bool                    `json:"empty"`
}

// Snapshot 一次完整的仪表盘载荷。
type Snapshot struct {
	Start       string                  `json:"start"`
	End         string                  `json:"end"`
	Zone        string                  `json:"zone"`
	Interval    string                  `json:"interval"`
	GeneratedAt string                  `json:"generated_at"`
	Views       []View                  `json:"views"`
	Coverage    []market.CoverageReport `json:"coverage,omitempty"`
	Warnings    []string                `json:"warnings"`
	Missing     []string                `json:"missing"`
}

// Snapshot 计算全部视图。rng 无效时用默认区间。
// 拉取失败只体现为告警和空视图，不会失败整个快照。
func (s *Service) Snapshot(ctx context.Context, rng market.Range, force bool) Snapshot {
	if !rng.Valid() {
		rng = s.DefaultRange()
	}
	bundle := s.assemble(ctx, rng, force)
	snap := Snapshot{
		Start:       rng.Start.In(s.loc).Format("2006-01-02"),
		End:         rng.End.In(s.loc).Add(-time.Second).Format("2006-01-02"),
		Zone:        s.cfg.DisplayZone,
		Interval:    s.cfg.Interval,
		GeneratedAt: time.Now().In(s.loc).Format("2006-01-02 15:04:05"),
		Coverage:    bundle.coverage,
		Warnings:    bundle.warnings,
		Missing:     bundle.missing,
	}
	for _, id := range ViewIDs() {
		snap.Views = append(snap.Views, s.buildView(id, bundle))
	}
	return snap
}

// View 计算单个视图。
func (s *Service) View(ctx context.Context, id string, rng market.Range, force bool) (View, error) {
	if !knownView(id) {
		return View{}, fmt.Errorf("%w: %s", ErrUnknownView, id)
	}
	if !rng.Valid() {
		rng = s.DefaultRange()
	}
	bundle := s.assemble(ctx, rng, force)
	return s.buildView(id, bundle), nil
}

// ViewTable 返回某视图的组合表（导出用，未渲染成字符串）。
func (s *Service) ViewTable(ctx context.Context, id string, rng market.Range, force bool) (table.Table, error) {
	if !knownView(id) {
		return table.Table{}, fmt.Errorf("%w: %s", ErrUnknownView, id)
	}
	if !rng.Valid() {
		rng = s.DefaultRange()
	}
	bundle := s.assemble(ctx, rng, force)
	return table.Combine(seriesBasket(id, s.viewSeries(id, bundle))), nil
}

func (s *Service) buildView(id string, bundle viewBundle) View {
	series := s.viewSeries(id, bundle)
	switch id {
	case ViewMag7:
		return s.lineView(id, bundle.primary.Name, series)
	case ViewComposite:
		return s.lineView(id, "Composite vs Benchmarks", series)
	case ViewLeveraged:
		return s.lineView(id, "Leveraged ETFs vs Proxies", series)
	case ViewDistributions:
		return s.distributionView(id, "% Change Distributions", series)
	}
	return View{ID: id, Empty: true}
}

// viewSeries 该视图的原始（未 rebase）序列集合。
func (s *Service) viewSeries(id string, bundle viewBundle) []market.Series {
	switch id {
	case ViewMag7:
		out := make([]market.Series, 0, len(bundle.primary.Members))
		for _, m := range bundle.primary.Members {
			out = append(out, m.Series)
		}
		return out
	case ViewComposite:
		out := make([]market.Series, 0, 1+len(bundle.benchmarks))
		out = append(out, bundle.composite)
		out = append(out, bundle.benchmarks...)
		return out
	case ViewLeveraged:
		out := make([]market.Series, 0, len(bundle.leveraged)+len(bundle.proxies))
		out = append(out, bundle.leveraged...)
		out = append(out, bundle.proxies...)
		return out
	case ViewDistributions:
		return distinctSeries(
			s.viewSeries(ViewMag7, bundle),
			s.viewSeries(ViewComposite, bundle),
			s.viewSeries(ViewLeveraged, bundle),
		)
	}
	return nil
}

// lineView 把序列 rebase 到 100 画折线；表格列保留原始值。
func (s *Service) lineView(id, title string, raw []market.Series) View {
	v := View{ID: id, Title: title, Kind: ViewKindLine}
	for _, ser := range raw {
		rb := analysis.Rebase(ser)
		if rb.Empty() {
			continue
		}
		v.Series = append(v.Series, seriesPayload(rb))
		if s.cfg.SmoothWindow > 1 {
			if sm := analysis.Smooth(rb, s.cfg.SmoothWindow); !sm.Empty() {
				v.Series = append(v.Series, seriesPayload(sm))
			}
		}
	}
	v.Empty = len(v.Series) == 0
	if tb := table.Combine(seriesBasket(id, raw)); !tb.Empty() {
		v.Table = tablePayload(tb, s.renderOptions())
	}
	return v
}

// distributionView 每条序列的逐样本涨跌幅直方图。
func (s *Service) distributionView(id, title string, raw []market.Series) View {
	v := View{ID: id, Title: title, Kind: ViewKindHistogram}
	for _, ser := range raw {
		if ser.Empty() {
			continue
		}
		dist := analysis.Histogram(analysis.PctChange(ser), s.cfg.HistogramBins)
		if dist.Count == 0 {
			continue
		}
		v.Distributions = append(v.Distributions, dist)
	}
	v.Empty = len(v.Distributions) == 0
	if tb := table.Combine(seriesBasket(id, raw)); !tb.Empty() {
		v.Table = tablePayload(tb, s.renderOptions())
	}
	return v
}

func (s *Service) renderOptions() table.RenderOptions {
	return table.RenderOptions{DateOnly: !market.Intraday(s.cfg.Interval)}
}

// seriesBasket 把零散序列包成篮子供组合表使用，无名序列丢弃。
func seriesBasket(name string, series []market.Series) market.Basket {
	b := market.Basket{Name: name}
	for _, ser := range series {
		if ser.Name == "" {
			continue
		}
		b.Add(market.Entity{Name: ser.Name, Ticker: ser.Name}, ser)
	}
	return b
}

// distinctSeries 按名字去重后合并，保持先后顺序。
func distinctSeries(groups ...[]market.Series) []market.Series {
	seen := make(map[string]bool)
	var out []market.Series
	for _, g := range groups {
		for _, ser := range g {
			if ser.Name == "" || seen[ser.Name] {
				continue
			}
			seen[ser.Name] = true
			out = append(out, ser)
		}
	}
	return out
}

func seriesPayload(ser market.Series) SeriesPayload {
	p := SeriesPayload{
		Name:   ser.Name,
		Times:  make([]string, 0, ser.Len()),
		Values: make([]float64, 0, ser.Len()),
	}
	for _, pt := range ser.Points {
		p.Times = append(p.Times, pt.Time.Format("2006-01-02 15:04"))
		p.Values = append(p.Values, pt.Value)
	}
	return p
}

func tablePayload(tb table.Table, opts table.RenderOptions) *TablePayload {
	header, rows := tb.Strings(opts)
	return &TablePayload{Header: header, Rows: rows}
}
