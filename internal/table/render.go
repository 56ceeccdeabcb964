package table

import (
	"math"
	"strconv"
	"strings"
	"time"

	pretty "github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
)

// RenderOptions 控制表格文本/CSV 渲染的时间格式与数值精度。
type RenderOptions struct {
	// DateOnly 为 true 时只渲染日期（日线场景）。
	DateOnly bool
	// Precision 值列小数位；0 或 PrecisionAuto 时按表内量级自动选择。
	Precision int
}

const (
	// PrecisionAuto 根据表内价格量级自动决定精度。
	PrecisionAuto = math.MinInt32
	// PrecisionRaw 表示保留原始精度（等价于 strconv.FormatFloat(..., -1, 64)）
	PrecisionRaw = -1
)

// Strings 把表格展开成表头 + 字符串行，供 JSON 载荷与渲染共用。
// % Change 列固定两位小数加百分号，值列按精度设置渲染，缺口为空串。
func (t Table) Strings(opts RenderOptions) ([]string, [][]string) {
	if t.Empty() {
		return nil, nil
	}
	precision := opts.Precision
	if precision == 0 || precision == PrecisionAuto {
		precision = t.autoPrecision()
	}
	header := make([]string, 0, len(t.Columns)+1)
	header = append(header, "Time")
	for _, c := range t.Columns {
		header = append(header, c.Name)
	}
	rows := make([][]string, 0, len(t.Index))
	for i, ts := range t.Index {
		row := make([]string, 0, len(t.Columns)+1)
		row = append(row, timeLabel(ts, opts.DateOnly))
		for _, c := range t.Columns {
			cell := c.Cells[i]
			switch {
			case !cell.Valid:
				row = append(row, "")
			case isPercentColumn(c.Name):
				row = append(row, FormatPercent(cell.Float64))
			default:
				row = append(row, formatValue(cell.Float64, precision))
			}
		}
		rows = append(rows, row)
	}
	return header, rows
}

// Render 渲染为等宽文本表（控制台输出）。空表返回空串。
func (t Table) Render(opts RenderOptions) string {
	header, rows := t.Strings(opts)
	if header == nil {
		return ""
	}
	w := pretty.NewWriter()
	w.AppendHeader(toRow(header))
	for _, r := range rows {
		w.AppendRow(toRow(r))
	}
	return w.Render()
}

// RenderCSV 渲染为 CSV 文本（导出用）。空表返回空串。
func (t Table) RenderCSV(opts RenderOptions) string {
	header, rows := t.Strings(opts)
	if header == nil {
		return ""
	}
	w := pretty.NewWriter()
	w.AppendHeader(toRow(header))
	for _, r := range rows {
		w.AppendRow(toRow(r))
	}
	return w.RenderCSV()
}

func toRow(cells []string) pretty.Row {
	row := make(pretty.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

func timeLabel(ts time.Time, dateOnly bool) string {
	if dateOnly {
		return ts.Format("2006-01-02")
	}
	return ts.Format("2006-01-02 15:04")
}

func isPercentColumn(name string) bool {
	return strings.HasSuffix(name, "% Change")
}

// FormatPercent 百分比统一两位小数 + 百分号。
func FormatPercent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

func formatValue(v float64, precision int) string {
	if precision == PrecisionRaw {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(int32(precision))
}

// autoPrecision 按值列最大量级选精度：千元级 1 位，百元级 2 位，其余保留原始。
func (t Table) autoPrecision() int {
	maxVal := 0.0
	for _, c := range t.Columns {
		if isPercentColumn(c.Name) {
			continue
		}
		for _, cell := range c.Cells {
			if !cell.Valid {
				continue
			}
			abs := math.Abs(cell.Float64)
			if abs > maxVal {
				maxVal = abs
			}
		}
	}
	switch {
	case maxVal >= 1000:
		return 1
	case maxVal >= 100:
		return 2
	default:
		return PrecisionRaw
	}
}
