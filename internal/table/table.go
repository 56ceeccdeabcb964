package table

import (
	"sort"
	"time"

	"github.com/guregu/null/v6"

	"maglens/internal/analysis"
	"maglens/internal/market"
)

// Column 宽表中的一列；Cells 与 Table.Index 对齐，无效单元表示外连接缺口。
type Column struct {
	Name  string       `json:"name"`
	Cells []null.Float `json:"cells"`
}

// Table 以时间为索引的宽表。数值保持原始精度，格式化只发生在渲染/导出时。
type Table struct {
	Zone    string      `json:"zone,omitempty"`
	Index   []time.Time `json:"index"`
	Columns []Column    `json:"columns"`
}

func (t Table) Empty() bool { return len(t.Index) == 0 || len(t.Columns) == 0 }
func (t Table) Rows() int   { return len(t.Index) }

// Column 按列名查找。
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// FromBasket 对非空成员的时间戳取并集做外连接。每个成员生成
// "{Name} Value" 与 "{Name} % Change" 两列，列序为先全部 Value 列、
// 后全部 % Change 列（均按成员顺序）。缺口保留为无效单元，
// 交给 DropIncomplete 处理。没有非空成员时返回空表。
func FromBasket(b market.Basket) Table {
	members := b.NonEmpty()
	if len(members) == 0 {
		return Table{}
	}

	seen := make(map[int64]time.Time)
	for _, m := range members {
		for _, p := range m.Series.Points {
			k := p.Time.UnixNano()
			if _, ok := seen[k]; !ok {
				seen[k] = p.Time
			}
		}
	}
	keys := make([]int64, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	index := make([]time.Time, len(keys))
	pos := make(map[int64]int, len(keys))
	for i, k := range keys {
		index[i] = seen[k]
		pos[k] = i
	}

	tbl := Table{Zone: members[0].Series.Zone, Index: index}
	valueCols := make([]Column, 0, len(members))
	pctCols := make([]Column, 0, len(members))
	for _, m := range members {
		vc := Column{Name: m.Name + " Value", Cells: make([]null.Float, len(index))}
		for _, p := range m.Series.Points {
			vc.Cells[pos[p.Time.UnixNano()]] = null.NewFloat(p.Value, true)
		}
		valueCols = append(valueCols, vc)

		pc := Column{Name: m.Name + " % Change", Cells: make([]null.Float, len(index))}
		for _, p := range analysis.PctChange(m.Series).Points {
			pc.Cells[pos[p.Time.UnixNano()]] = null.NewFloat(p.Value, true)
		}
		pctCols = append(pctCols, pc)
	}
	tbl.Columns = append(valueCols, pctCols...)
	return tbl
}

// DropIncomplete 删除任一列存在缺口的行；留下的每一行对每个列都有观测。
func (t Table) DropIncomplete() Table {
	if t.Empty() {
		return t
	}
	keep := make([]int, 0, len(t.Index))
	for i := range t.Index {
		complete := true
		for _, c := range t.Columns {
			if !c.Cells[i].Valid {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}
	out := Table{Zone: t.Zone, Index: make([]time.Time, 0, len(keep))}
	out.Columns = make([]Column, len(t.Columns))
	for j, c := range t.Columns {
		out.Columns[j] = Column{Name: c.Name, Cells: make([]null.Float, 0, len(keep))}
	}
	for _, i := range keep {
		out.Index = append(out.Index, t.Index[i])
		for j, c := range t.Columns {
			out.Columns[j].Cells = append(out.Columns[j].Cells, c.Cells[i])
		}
	}
	return out
}

// Combine 先外连接再删除不完整行，是对比表的标准构建路径。
// 与 basket.Composite 的“缺口按 0 贡献”语义刻意分开。
func Combine(b market.Basket) Table {
	return FromBasket(b).DropIncomplete()
}
