package dashboard

import (
	"bytes"
	"strings"
	"testing"

	"maglens/internal/analysis"
)

func TestRenderChartLine(t *testing.T) {
	v := View{
		ID:    ViewMag7,
		Title: "Tech",
		Kind:  ViewKindLine,
		Series: []SeriesPayload{
			{Name: "Apple", Times: []string{"2026-01-05 10:00", "2026-01-05 10:30"}, Values: []float64{100, 110}},
			{Name: "Nvidia", Times: []string{"2026-01-05 10:30"}, Values: []float64{100}},
		},
	}
	var buf bytes.Buffer
	if err := RenderChart(&buf, v); err != nil {
		t.Fatalf("渲染折线页失败: %v", err)
	}
	out := buf.String()
	for _, frag := range []string{"echarts", "Apple", "Nvidia"} {
		if !strings.Contains(out, frag) {
			t.Fatalf("页面应包含 %q", frag)
		}
	}
}

func TestRenderChartHistogram(t *testing.T) {
	v := View{
		ID:    ViewDistributions,
		Title: "% Change Distributions",
		Kind:  ViewKindHistogram,
		Distributions: []analysis.Distribution{{
			Name:   "Apple",
			Count:  3,
			Mean:   0.5,
			StdDev: 1.2,
			Edges:  []float64{-1, 0, 1},
			Counts: []float64{1, 2},
		}},
	}
	var buf bytes.Buffer
	if err := RenderChart(&buf, v); err != nil {
		t.Fatalf("渲染直方图页失败: %v", err)
	}
	if !strings.Contains(buf.String(), "Apple") {
		t.Fatalf("页面应包含序列名")
	}
}

// TestUnionTimes 标签并集去重且按时间排序，缺口由 null 数据点补齐。
func TestUnionTimes(t *testing.T) {
	got := unionTimes([]SeriesPayload{
		{Times: []string{"2026-01-05 10:30", "2026-01-05 10:00"}},
		{Times: []string{"2026-01-05 10:30", "2026-01-05 11:00"}},
	})
	want := []string{"2026-01-05 10:00", "2026-01-05 10:30", "2026-01-05 11:00"}
	if len(got) != len(want) {
		t.Fatalf("并集长度应为 %d, 实际=%v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("第 %d 个标签应为 %q, 实际=%q", i, want[i], got[i])
		}
	}
}
