package table

import (
	"math"
	"testing"
	"time"

	"github.com/guregu/null/v6"

	"maglens/internal/market"
)

func pt(h, m int, v float64) market.Point {
	return market.Point{Time: time.Date(2026, 1, 5, h, m, 0, 0, time.UTC), Value: v}
}

func pairBasket(a, b market.Series) market.Basket {
	out := market.Basket{Name: "pair"}
	out.Add(market.Entity{Name: a.Name, Ticker: a.Name}, a)
	out.Add(market.Entity{Name: b.Name, Ticker: b.Name}, b)
	return out
}

// TestFromBasketColumnOrder 先全部 Value 列、后全部 % Change 列，均按成员顺序。
func TestFromBasketColumnOrder(t *testing.T) {
	a := market.NewSeries("A", pt(10, 0, 100), pt(10, 30, 110))
	b := market.NewSeries("B", pt(10, 0, 50), pt(10, 30, 55))
	tb := FromBasket(pairBasket(a, b))

	want := []string{"A Value", "B Value", "A % Change", "B % Change"}
	if len(tb.Columns) != len(want) {
		t.Fatalf("应有 %d 列, 实际=%d", len(want), len(tb.Columns))
	}
	for i, name := range want {
		if tb.Columns[i].Name != name {
			t.Fatalf("第 %d 列应为 %q, 实际=%q", i, name, tb.Columns[i].Name)
		}
	}
	if tb.Rows() != 2 {
		t.Fatalf("并集应有 2 行, 实际=%d", tb.Rows())
	}
}

// TestFromBasketGapCells 外连接的缺口保留为无效单元，不是 0。
func TestFromBasketGapCells(t *testing.T) {
	a := market.NewSeries("A", pt(10, 0, 100), pt(10, 30, 110))
	b := market.NewSeries("B", pt(10, 30, 50))
	tb := FromBasket(pairBasket(a, b))

	if tb.Rows() != 2 {
		t.Fatalf("并集应有 2 行, 实际=%d", tb.Rows())
	}
	bCol, ok := tb.Column("B Value")
	if !ok {
		t.Fatalf("缺少 B Value 列")
	}
	if bCol.Cells[0].Valid {
		t.Fatalf("B 在 10:00 无观测, 单元应无效")
	}
	if !bCol.Cells[1].Valid || bCol.Cells[1].Float64 != 50 {
		t.Fatalf("B 在 10:30 应为 50, 实际=%+v", bCol.Cells[1])
	}
}

// TestCombineDisjointEmpty 规格化场景：两条完全错开的序列组合出空表。
func TestCombineDisjointEmpty(t *testing.T) {
	a := market.NewSeries("A", pt(10, 0, 100), pt(10, 30, 110))
	b := market.NewSeries("B", pt(14, 0, 50))
	got := Combine(pairBasket(a, b))
	if !got.Empty() {
		t.Fatalf("无公共时间戳时应得空表, 实际 %d 行", got.Rows())
	}
}

// TestCombineStrictCompleteness 只保留每一列都有观测的行。
func TestCombineStrictCompleteness(t *testing.T) {
	a := market.NewSeries("A", pt(10, 0, 100), pt(10, 30, 110), pt(11, 0, 121))
	b := market.NewSeries("B", pt(10, 30, 50), pt(11, 0, 55))
	got := Combine(pairBasket(a, b))

	if got.Rows() != 1 {
		t.Fatalf("只有 11:00 行是完整的, 实际=%d 行", got.Rows())
	}
	if !got.Index[0].Equal(pt(11, 0, 0).Time) {
		t.Fatalf("保留行应为 11:00, 实际=%v", got.Index[0])
	}
	cells := map[string]float64{
		"A Value":    121,
		"B Value":    55,
		"A % Change": 10,
		"B % Change": 10,
	}
	for name, wantVal := range cells {
		col, ok := got.Column(name)
		if !ok {
			t.Fatalf("缺少列 %q", name)
		}
		if !col.Cells[0].Valid {
			t.Fatalf("列 %q 单元应有效", name)
		}
		if math.Abs(col.Cells[0].Float64-wantVal) > 1e-9 {
			t.Fatalf("列 %q 应为 %v, 实际=%v", name, wantVal, col.Cells[0].Float64)
		}
	}
}

// TestCombineRoundTrip 用输出的 Value 列重算涨跌幅应复现 % Change 列
// （首行之后的行；首行的涨跌幅依赖被丢掉的前一行）。
func TestCombineRoundTrip(t *testing.T) {
	a := market.NewSeries("A", pt(10, 0, 100), pt(10, 30, 110), pt(11, 0, 121), pt(11, 30, 133.1))
	b := market.NewSeries("B", pt(10, 0, 50), pt(10, 30, 55), pt(11, 0, 60.5), pt(11, 30, 66.55))
	got := Combine(pairBasket(a, b))

	if got.Rows() != 3 {
		t.Fatalf("首行无涨跌幅应被丢弃, 剩 3 行, 实际=%d", got.Rows())
	}
	for _, name := range []string{"A", "B"} {
		val, _ := got.Column(name + " Value")
		pct, _ := got.Column(name + " % Change")
		for i := 1; i < got.Rows(); i++ {
			prev, cur := val.Cells[i-1].Float64, val.Cells[i].Float64
			want := (cur - prev) / prev * 100
			if math.Abs(pct.Cells[i].Float64-want) > 1e-9 {
				t.Fatalf("%s 第 %d 行涨跌幅应为 %v, 实际=%v", name, i, want, pct.Cells[i].Float64)
			}
		}
	}
}

func TestFromBasketNoMembers(t *testing.T) {
	if !FromBasket(market.Basket{Name: "x"}).Empty() {
		t.Fatalf("空篮子应得空表")
	}
	b := market.Basket{Name: "x"}
	b.Add(market.Entity{Name: "A", Ticker: "A"}, market.Series{Name: "A"})
	if !FromBasket(b).Empty() {
		t.Fatalf("全空成员应得空表")
	}
}

// TestDropIncomplete 手工构造的缺口行应被删除，保留行原样搬运。
func TestDropIncomplete(t *testing.T) {
	tb := Table{
		Index: []time.Time{pt(10, 0, 0).Time, pt(10, 30, 0).Time, pt(11, 0, 0).Time},
		Columns: []Column{
			{Name: "A Value", Cells: []null.Float{
				null.FloatFrom(1), null.FloatFrom(2), null.FloatFrom(3),
			}},
			{Name: "B Value", Cells: []null.Float{
				null.FloatFrom(4), {}, null.FloatFrom(6),
			}},
		},
	}
	got := tb.DropIncomplete()
	if got.Rows() != 2 {
		t.Fatalf("应剩 2 行, 实际=%d", got.Rows())
	}
	for _, col := range got.Columns {
		for i, c := range col.Cells {
			if !c.Valid {
				t.Fatalf("保留行不应再有缺口: 列 %q 第 %d 行", col.Name, i)
			}
		}
	}
	if got.Columns[0].Cells[1].Float64 != 3 || got.Columns[1].Cells[1].Float64 != 6 {
		t.Fatalf("保留行数据应原样搬运, 实际=%+v", got.Columns)
	}
	// 原表不应被改动。
	if tb.Rows() != 3 {
		t.Fatalf("DropIncomplete 不应改写输入")
	}
}
