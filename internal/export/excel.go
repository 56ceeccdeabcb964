package export

import (
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"maglens/internal/table"
)

// ErrNoRows 表示表格里没有任何可导出的完整行。
var ErrNoRows = errors.New("没有可导出的数据")

// StripZone 保留展示时区下的钟面时间、去掉时区标签。
// 电子表格单元格没有时区概念，直接写带时区的时间会被换算回 UTC。
func StripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// Filename 导出附件名，如 maglens-mag7-20260105.xlsx。
func Filename(view, ext string, at time.Time) string {
	return fmt.Sprintf("maglens-%s-%s.%s", view, at.Format("20060102"), ext)
}

// Excel 把表格写成单 sheet 的 xlsx 工作簿。
// 时间列使用日期时间格式，缺口单元格留空。
func Excel(tb table.Table, sheet string) ([]byte, error) {
	if tb.Empty() {
		return nil, ErrNoRows
	}
	if sheet == "" {
		sheet = "Data"
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("重命名工作表失败: %w", err)
	}

	if err := f.SetCellValue(sheet, "A1", "Time"); err != nil {
		return nil, err
	}
	for c, col := range tb.Columns {
		cell, err := excelize.CoordinatesToCellName(c+2, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, col.Name); err != nil {
			return nil, err
		}
	}

	// NumFmt 22 = "m/d/yy h:mm"，让 Excel 按本地习惯显示时间。
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return nil, fmt.Errorf("创建时间样式失败: %w", err)
	}
	for r, ts := range tb.Index {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, StripZone(ts)); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, cell, cell, dateStyle); err != nil {
			return nil, err
		}
		for c, col := range tb.Columns {
			if !col.Cells[r].Valid {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+2, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, col.Cells[r].Float64); err != nil {
				return nil, err
			}
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 19); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("写出 xlsx 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// CSV 输出逗号分隔文本，格式与控制台表格一致。
func CSV(tb table.Table, opts table.RenderOptions) (string, error) {
	if tb.Empty() {
		return "", ErrNoRows
	}
	return tb.RenderCSV(opts), nil
}
