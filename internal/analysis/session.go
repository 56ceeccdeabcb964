package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"maglens/internal/market"
)

// TimeOfDay 一天内的时钟时间（显示时区下的挂钟）。
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay 解析 "HH:MM" 形式的时钟时间。
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("时间格式应为 HH:MM, 实际 %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("时间格式应为 HH:MM, 实际 %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("时间格式应为 HH:MM, 实际 %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("时钟时间越界: %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// Seconds 从零点起的秒数。
func (t TimeOfDay) Seconds() int { return t.Hour*3600 + t.Minute*60 }

// FilterSession 只保留时钟时间落在 [start, end]（含边界）内的观测，
// 日期部分不参与比较。start > end 视为跨夜窗口：保留 tod >= start 或
// tod <= end 的观测。输入应已归一化到显示时区；空进空出。
func FilterSession(s market.Series, start, end TimeOfDay) market.Series {
	out := market.Series{Name: s.Name, Zone: s.Zone}
	if s.Empty() {
		return out
	}
	lo, hi := start.Seconds(), end.Seconds()
	for _, p := range s.Points {
		tod := p.Time.Hour()*3600 + p.Time.Minute()*60 + p.Time.Second()
		var keep bool
		if lo <= hi {
			keep = tod >= lo && tod <= hi
		} else {
			keep = tod >= lo || tod <= hi
		}
		if keep {
			out.Points = append(out.Points, p)
		}
	}
	return out
}
