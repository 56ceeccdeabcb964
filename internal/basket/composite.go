package basket

import (
	"sort"
	"time"

	"maglens/internal/market"
)

// Options 控制等权合成的行为。
type Options struct {
	// RenormalizeOnMissing 为 true 时权重分母只数非空成员（上游主行为）；
	// 为 false 时分母固定为篮子成员总数，空成员按零贡献摊薄整体。
	RenormalizeOnMissing bool
	// Name 覆盖输出序列名；为空时取篮子名。
	Name string
}

// Composite 把篮子内各成员按等权相加合成一条序列。时间戳取并集，
// 某成员在某时刻缺数据按 0 贡献处理，不丢行；删除不完整行的语义
// 属于 table 包，两个操作刻意分开。
// 篮子为空或所有成员为空时返回空序列，由调用方记告警。
func Composite(b market.Basket, opts Options) market.Series {
	name := opts.Name
	if name == "" {
		name = b.Name
	}
	if name == "" {
		name = "Weighted Portfolio"
	}
	out := market.Series{Name: name}
	avail := b.NonEmpty()
	if len(avail) == 0 {
		return out
	}
	denom := len(b.Members)
	if opts.RenormalizeOnMissing {
		denom = len(avail)
	}
	weight := 1 / float64(denom)

	sums := make(map[int64]float64)
	stamps := make(map[int64]time.Time)
	for _, m := range avail {
		if out.Zone == "" {
			out.Zone = m.Series.Zone
		}
		for _, p := range m.Series.Points {
			k := p.Time.UnixNano()
			sums[k] += p.Value * weight
			if _, ok := stamps[k]; !ok {
				stamps[k] = p.Time
			}
		}
	}
	keys := make([]int64, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out.Points = make([]market.Point, 0, len(keys))
	for _, k := range keys {
		out.Points = append(out.Points, market.Point{Time: stamps[k], Value: sums[k]})
	}
	return out
}
