package market

import (
	"sort"
	"time"
)

// Point 单个观测：时间戳 + 调整后收盘价。
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Series 按时间升序排列的价格序列。空序列（len==0）显式表示“无数据”，
// 绝不用 nil map 条目之类的隐式缺席。
type Series struct {
	Name string `json:"name"`
	// Zone 归一化后时间轴所在的 IANA 时区名；原始序列（UTC 瞬时值）为空。
	Zone   string  `json:"zone,omitempty"`
	Points []Point `json:"points"`
}

// NewSeries 构造命名序列。
func NewSeries(name string, pts ...Point) Series {
	out := Series{Name: name}
	if len(pts) > 0 {
		out.Points = append([]Point{}, pts...)
	}
	return out
}

func (s Series) Empty() bool { return len(s.Points) == 0 }
func (s Series) Len() int    { return len(s.Points) }

// Clone 深拷贝，避免跨阶段共享底层切片。
func (s Series) Clone() Series {
	out := s
	out.Points = append([]Point{}, s.Points...)
	return out
}

// Rename 返回改名后的副本（原序列不变）。
func (s Series) Rename(name string) Series {
	out := s.Clone()
	out.Name = name
	return out
}

func (s Series) First() (Point, bool) {
	if s.Empty() {
		return Point{}, false
	}
	return s.Points[0], true
}

func (s Series) Last() (Point, bool) {
	if s.Empty() {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Values 返回纯数值切片（与 Points 同序）。
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Sort 按时间升序稳定排序（就地）。
func (s *Series) Sort() {
	sort.SliceStable(s.Points, func(i, j int) bool {
		return s.Points[i].Time.Before(s.Points[j].Time)
	})
}

// Entity 一个可展示的标的：显示名 + 行情代码。
// Leverage 标注产品自带的杠杆倍数（普通标的为 0 或 1）。
type Entity struct {
	Name     string  `json:"name"`
	Ticker   string  `json:"ticker"`
	Leverage float64 `json:"leverage,omitempty"`
}

// Leveraged 是否为杠杆产品。
func (e Entity) Leveraged() bool { return e.Leverage > 1 }

// Member 篮子成员：实体及其（可能为空的）序列。
type Member struct {
	Entity
	Series Series `json:"series"`
}

// Basket 命名篮子。成员顺序决定展示/列顺序。
type Basket struct {
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

// Add 追加成员。
func (b *Basket) Add(e Entity, s Series) {
	b.Members = append(b.Members, Member{Entity: e, Series: s})
}

// Empty 所有成员都无数据时为 true。
func (b Basket) Empty() bool {
	for _, m := range b.Members {
		if !m.Series.Empty() {
			return false
		}
	}
	return true
}

// NonEmpty 返回有数据的成员（保持原顺序）。
func (b Basket) NonEmpty() []Member {
	out := make([]Member, 0, len(b.Members))
	for _, m := range b.Members {
		if !m.Series.Empty() {
			out = append(out, m)
		}
	}
	return out
}

// Member 按 ticker 查找成员。
func (b Basket) Member(ticker string) (Member, bool) {
	for _, m := range b.Members {
		if m.Ticker == ticker {
			return m, true
		}
	}
	return Member{}, false
}

// Range 闭区间日期范围（两端都包含）。
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r Range) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.End.Before(r.Start)
}

// Contains 判断 t 是否落在区间内（含边界）。
func (r Range) Contains(t time.Time) bool {
	if t.Before(r.Start) || t.After(r.End) {
		return false
	}
	return true
}

// Days 区间跨度（向上取整到天）。
func (r Range) Days() int {
	if !r.Valid() {
		return 0
	}
	d := r.End.Sub(r.Start)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// LastDays 构造“最近 n 天、止于当前时刻”的区间。
func LastDays(n int) Range {
	if n <= 0 {
		n = 30
	}
	end := time.Now().UTC()
	return Range{Start: end.AddDate(0, 0, -n), End: end}
}

// IntervalDuration 将 "30m"/"1h"/"1d"/"1wk" 之类的采样间隔换算为时长。
func IntervalDuration(interval string) (time.Duration, bool) {
	if interval == "" {
		return 0, false
	}
	unit := interval[len(interval)-1:]
	num := interval[:len(interval)-1]
	if interval == "1wk" {
		return 7 * 24 * time.Hour, true
	}
	n := 0
	for _, ch := range num {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		n = n*10 + int(ch-'0')
	}
	if n <= 0 {
		return 0, false
	}
	switch unit {
	case "m":
		return time.Duration(n) * time.Minute, true
	case "h":
		return time.Duration(n) * time.Hour, true
	case "d":
		return time.Duration(n) * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Intraday 采样间隔是否小于一天。
func Intraday(interval string) bool {
	d, ok := IntervalDuration(interval)
	return ok && d < 24*time.Hour
}
