package market

import "time"

// Gap 表示同一交易日内连续缺失的采样槽区间（含两端）。
type Gap struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Count int       `json:"count"`
}

// CoverageReport 描述一条序列在给定采样粒度下的覆盖情况。
// 只统计同一自然日内的缺口：隔夜与周末的跳空属于正常休市，
// 不计入 Expected，也不会出现在 Gaps 里。
type CoverageReport struct {
	Ticker   string `json:"ticker"`
	Interval string `json:"interval"`
	Present  int    `json:"present"`
	Expected int    `json:"expected"`
	Gaps     []Gap  `json:"gaps,omitempty"`
}

func (r CoverageReport) Complete() bool { return len(r.Gaps) == 0 }

// Coverage 按采样间隔走查相邻观测，把同一自然日内超过一个步长的
// 空洞记为缺口。日线及以上粒度的相邻观测总是跨日，报告恒为完整。
// 序列应已归一化到显示时区，日界以观测自带时区的挂钟为准。
func Coverage(s Series, interval string) CoverageReport {
	report := CoverageReport{Ticker: s.Name, Interval: interval, Present: s.Len()}
	report.Expected = report.Present
	step, ok := IntervalDuration(interval)
	if !ok || s.Len() < 2 {
		return report
	}
	for i := 1; i < len(s.Points); i++ {
		prev, cur := s.Points[i-1].Time, s.Points[i].Time
		if prev.Year() != cur.Year() || prev.YearDay() != cur.YearDay() {
			continue
		}
		missing := int(cur.Sub(prev)/step) - 1
		if missing <= 0 {
			continue
		}
		report.Expected += missing
		report.Gaps = append(report.Gaps, Gap{
			From:  prev.Add(step),
			To:    prev.Add(time.Duration(missing) * step),
			Count: missing,
		})
	}
	return report
}
