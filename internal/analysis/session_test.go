package analysis

import (
	"testing"
	"time"

	"maglens/internal/market"
)

func clockPoint(day, h, m int, v float64) market.Point {
	return market.Point{Time: time.Date(2026, 1, day, h, m, 0, 0, time.UTC), Value: v}
}

func TestParseTimeOfDay(t *testing.T) {
	good := []struct {
		in   string
		want TimeOfDay
	}{
		{"09:00", TimeOfDay{9, 0}},
		{"15:30", TimeOfDay{15, 30}},
		{"23:59", TimeOfDay{23, 59}},
		{" 00:00 ", TimeOfDay{0, 0}},
	}
	for _, c := range good {
		got, err := ParseTimeOfDay(c.in)
		if err != nil || got != c.want {
			t.Fatalf("ParseTimeOfDay(%q) = (%v, %v), 期望 %v", c.in, got, err, c.want)
		}
	}
	for _, bad := range []string{"", "9am", "25:00", "12:60", "12", "12:3:4", "-1:00"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Fatalf("ParseTimeOfDay(%q) 应报错", bad)
		}
	}
	if (TimeOfDay{9, 5}).String() != "09:05" {
		t.Fatalf("String 应补零, 实际=%q", TimeOfDay{9, 5}.String())
	}
}

// TestFilterSessionInclusiveBounds 窗口两端都应保留，窗口外全部丢弃。
func TestFilterSessionInclusiveBounds(t *testing.T) {
	s := market.NewSeries("AAPL",
		clockPoint(5, 8, 59, 1),
		clockPoint(5, 9, 0, 2),
		clockPoint(5, 12, 0, 3),
		clockPoint(5, 17, 30, 4),
		clockPoint(5, 17, 31, 5),
		clockPoint(6, 9, 0, 6),
	)
	got := FilterSession(s, TimeOfDay{9, 0}, TimeOfDay{17, 30})
	if got.Len() != 4 {
		t.Fatalf("应保留 4 个点, 实际=%d", got.Len())
	}
	for _, p := range got.Points {
		tod := p.Time.Hour()*60 + p.Time.Minute()
		if tod < 9*60 || tod > 17*60+30 {
			t.Fatalf("%v 落在窗口外", p.Time)
		}
	}
	// 不同日期、时钟时间相同的点也应保留。
	if got.Points[3].Value != 6 {
		t.Fatalf("次日 09:00 应保留, 实际=%+v", got.Points)
	}
}

// TestFilterSessionWrapMidnight start > end 视为跨夜窗口。
func TestFilterSessionWrapMidnight(t *testing.T) {
	s := market.NewSeries("NI225",
		clockPoint(5, 21, 59, 1),
		clockPoint(5, 22, 0, 2),
		clockPoint(5, 23, 30, 3),
		clockPoint(6, 1, 0, 4),
		clockPoint(6, 2, 0, 5),
		clockPoint(6, 3, 0, 6),
	)
	got := FilterSession(s, TimeOfDay{22, 0}, TimeOfDay{2, 0})
	if got.Len() != 4 {
		t.Fatalf("跨夜窗口应保留 4 个点, 实际=%d", got.Len())
	}
	for i, want := range []float64{2, 3, 4, 5} {
		if got.Points[i].Value != want {
			t.Fatalf("第 %d 个点应为 %v, 实际=%v", i, want, got.Points[i].Value)
		}
	}
}

func TestFilterSessionEmpty(t *testing.T) {
	got := FilterSession(market.Series{Name: "AAPL", Zone: "UTC"}, TimeOfDay{9, 0}, TimeOfDay{17, 0})
	if !got.Empty() || got.Name != "AAPL" || got.Zone != "UTC" {
		t.Fatalf("空进应空出且保留序列头, 实际=%+v", got)
	}
}

// TestFilterSessionKeepsOrder 过滤不改变保留点的相对顺序与数值。
func TestFilterSessionKeepsOrder(t *testing.T) {
	s := market.NewSeries("QQQ",
		clockPoint(5, 10, 0, 1),
		clockPoint(5, 11, 0, 2),
		clockPoint(6, 10, 30, 3),
	)
	got := FilterSession(s, TimeOfDay{10, 0}, TimeOfDay{11, 0})
	if got.Len() != 3 {
		t.Fatalf("应全部保留, 实际=%d", got.Len())
	}
	for i := 1; i < got.Len(); i++ {
		if !got.Points[i-1].Time.Before(got.Points[i].Time) {
			t.Fatalf("过滤后应保持时间升序")
		}
	}
}
