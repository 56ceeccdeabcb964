package analysis

import (
	"math"

	"maglens/internal/market"
)

// Proxy approximates a leveraged instrument by multiplying every value of the
// base series with a constant factor. Timestamps are preserved; empty in,
// empty out.
func Proxy(s market.Series, factor float64) market.Series {
	out := market.Series{Name: s.Name, Zone: s.Zone}
	if s.Empty() {
		return out
	}
	out.Points = make([]market.Point, len(s.Points))
	for i, p := range s.Points {
		out.Points[i] = market.Point{Time: p.Time, Value: p.Value * factor}
	}
	return out
}

// Rebase indexes a series so that its first valid observation equals exactly
// 100. Observations before the first valid one are dropped, not kept as
// undefined. A series with no valid observation anywhere rebases to empty.
func Rebase(s market.Series) market.Series {
	out := market.Series{Name: s.Name, Zone: s.Zone}
	first := firstValidIndex(s.Points)
	if first < 0 {
		return out
	}
	base := s.Points[first].Value
	out.Points = make([]market.Point, 0, len(s.Points)-first)
	for _, p := range s.Points[first:] {
		out.Points = append(out.Points, market.Point{Time: p.Time, Value: p.Value / base * 100})
	}
	return out
}

// PctChange computes per-sample percentage change:
// (v[t]-v[t-1])/v[t-1]*100 stamped at t. The first sample produces no output,
// so a non-empty gap-free input of length n yields exactly n-1 samples and
// length <= 1 yields an empty series. Samples whose predecessor is invalid
// (zero/NaN/Inf) are skipped rather than emitted as infinities.
func PctChange(s market.Series) market.Series {
	out := market.Series{Name: s.Name, Zone: s.Zone}
	if s.Len() <= 1 {
		return out
	}
	out.Points = make([]market.Point, 0, s.Len()-1)
	for i := 1; i < len(s.Points); i++ {
		prev := s.Points[i-1].Value
		cur := s.Points[i].Value
		if !validValue(prev) || math.IsNaN(cur) || math.IsInf(cur, 0) {
			continue
		}
		out.Points = append(out.Points, market.Point{
			Time:  s.Points[i].Time,
			Value: (cur - prev) / prev * 100,
		})
	}
	return out
}

func firstValidIndex(pts []market.Point) int {
	for i, p := range pts {
		if validValue(p.Value) {
			return i
		}
	}
	return -1
}

// validValue reports whether v can serve as a price denominator.
func validValue(v float64) bool {
	return v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
