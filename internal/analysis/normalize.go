package analysis

import (
	"fmt"
	"sort"
	"time"

	"maglens/internal/market"
)

// NormalizationError 表示时区换算失败（未知时区名等）。
type NormalizationError struct {
	Zone string
	Err  error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize to %q: %v", e.Zone, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// Normalize 把序列换算到目标显示时区。原始序列（Zone 为空）的时间戳
// 视为 UTC 瞬时值；已归一化的序列只做时区换算，不重新解释挂钟时间。
// 同时按时间升序排序并去重（同一时刻后写覆盖先写），建立序列不变式。
// 失败时返回空序列 + *NormalizationError，由调用方记日志后继续。
func Normalize(s market.Series, zone string) (market.Series, error) {
	if s.Empty() {
		return market.Series{Name: s.Name, Zone: s.Zone}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return market.Series{Name: s.Name}, &NormalizationError{Zone: zone, Err: err}
	}
	pts := make([]market.Point, 0, len(s.Points))
	for _, p := range s.Points {
		pts = append(pts, market.Point{Time: p.Time.In(loc), Value: p.Value})
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Time.Before(pts[j].Time) })
	dedup := pts[:0]
	for _, p := range pts {
		n := len(dedup)
		if n > 0 && dedup[n-1].Time.Equal(p.Time) {
			// 同一时刻的重复观测，保留最后一个。
			dedup[n-1] = p
			continue
		}
		dedup = append(dedup, p)
	}
	return market.Series{Name: s.Name, Zone: zone, Points: dedup}, nil
}
