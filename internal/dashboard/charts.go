package dashboard

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"maglens/internal/analysis"
)

// RenderChart 把视图渲染成独立的 go-echarts HTML 页面。
// 折线视图一张大图，直方图视图每条序列一张小图平铺。
func RenderChart(w io.Writer, v View) error {
	page := components.NewPage()
	page.PageTitle = v.Title
	switch v.Kind {
	case ViewKindHistogram:
		page.SetLayout(components.PageFlexLayout)
		for _, d := range v.Distributions {
			page.AddCharts(histogramChart(d))
		}
	default:
		page.SetLayout(components.PageCenterLayout)
		page.AddCharts(lineChart(v))
	}
	return page.Render(w)
}

func lineChart(v View) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1180px", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: v.Title, Subtitle: "rebased to 100 at first observation"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	axis := unionTimes(v.Series)
	line.SetXAxis(axis)
	for _, sp := range v.Series {
		byTime := make(map[string]float64, len(sp.Times))
		for i, t := range sp.Times {
			byTime[t] = sp.Values[i]
		}
		data := make([]opts.LineData, 0, len(axis))
		for _, t := range axis {
			if val, ok := byTime[t]; ok {
				data = append(data, opts.LineData{Value: val})
			} else {
				// null 让 echarts 在缺口处断线而不是连线。
				data = append(data, opts.LineData{Value: nil})
			}
		}
		line.AddSeries(sp.Name, data)
	}
	return line
}

func histogramChart(d analysis.Distribution) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "560px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    d.Name,
			Subtitle: fmt.Sprintf("n=%d  mean=%.2f%%  σ=%.2f%%", d.Count, d.Mean, d.StdDev),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	labels := make([]string, 0, len(d.Counts))
	data := make([]opts.BarData, 0, len(d.Counts))
	for i, c := range d.Counts {
		// 横轴标注桶的中点涨跌幅。
		mid := (d.Edges[i] + d.Edges[i+1]) / 2
		labels = append(labels, fmt.Sprintf("%.2f", mid))
		data = append(data, opts.BarData{Value: c})
	}
	bar.SetXAxis(labels).AddSeries(d.Name, data)
	return bar
}

// unionTimes 所有曲线时间标签的并集。标签格式 "2006-01-02 15:04"，
// 字典序即时间序。
func unionTimes(series []SeriesPayload) []string {
	seen := make(map[string]bool)
	var out []string
	for _, sp := range series {
		for _, t := range sp.Times {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}
