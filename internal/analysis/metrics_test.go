package analysis

import (
	"math"
	"testing"

	"maglens/internal/market"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) <= eps }

// TestProxyTriples 规格化场景：S=[(t0,10),(t1,20)] 乘 3 得 [(t0,30),(t1,60)]。
func TestProxyTriples(t *testing.T) {
	s := market.NewSeries("QQQ", utcPoint(10, 0, 10), utcPoint(10, 30, 20))
	got := Proxy(s, 3)
	if got.Len() != 2 {
		t.Fatalf("点数应不变, 实际=%d", got.Len())
	}
	if got.Points[0].Value != 30 || got.Points[1].Value != 60 {
		t.Fatalf("3 倍代理应为 [30 60], 实际=[%v %v]", got.Points[0].Value, got.Points[1].Value)
	}
	for i := range got.Points {
		if !got.Points[i].Time.Equal(s.Points[i].Time) {
			t.Fatalf("时间戳应保留")
		}
	}
	// 原序列不应被改动。
	if s.Points[0].Value != 10 {
		t.Fatalf("Proxy 不应改写输入, 实际=%v", s.Points[0].Value)
	}
	if !Proxy(market.Series{Name: "QQQ"}, 3).Empty() {
		t.Fatalf("空进应空出")
	}
}

// TestRebaseFirstIs100 第一个有效观测恰好为 100，后续按比例缩放。
func TestRebaseFirstIs100(t *testing.T) {
	s := market.NewSeries("AAPL", utcPoint(10, 0, 50), utcPoint(10, 30, 55), utcPoint(11, 0, 60))
	got := Rebase(s)
	if got.Len() != 3 {
		t.Fatalf("点数应不变, 实际=%d", got.Len())
	}
	if got.Points[0].Value != 100 {
		t.Fatalf("首个观测应恰为 100, 实际=%v", got.Points[0].Value)
	}
	if !approx(got.Points[1].Value, 110) || !approx(got.Points[2].Value, 120) {
		t.Fatalf("缩放错误: [%v %v]", got.Points[1].Value, got.Points[2].Value)
	}
}

// TestRebaseDropsLeadingInvalid 首个有效观测之前的无效点应丢弃而不是保留为未定义。
func TestRebaseDropsLeadingInvalid(t *testing.T) {
	s := market.NewSeries("MSFT",
		market.Point{Time: utcPoint(10, 0, 0).Time, Value: math.NaN()},
		utcPoint(10, 30, 0),
		utcPoint(11, 0, 40),
		utcPoint(11, 30, 50),
	)
	got := Rebase(s)
	if got.Len() != 2 {
		t.Fatalf("前导无效点应丢弃, 实际=%d 个点", got.Len())
	}
	if !got.Points[0].Time.Equal(s.Points[2].Time) || got.Points[0].Value != 100 {
		t.Fatalf("应从首个有效观测起算: %+v", got.Points[0])
	}
	if !approx(got.Points[1].Value, 125) {
		t.Fatalf("第二点应为 125, 实际=%v", got.Points[1].Value)
	}
}

func TestRebaseAllInvalid(t *testing.T) {
	s := market.NewSeries("X",
		utcPoint(10, 0, 0),
		market.Point{Time: utcPoint(10, 30, 0).Time, Value: math.NaN()},
	)
	if !Rebase(s).Empty() {
		t.Fatalf("无任何有效观测时应返回空序列")
	}
	if !Rebase(market.Series{}).Empty() {
		t.Fatalf("空进应空出")
	}
}

// TestPctChangeLength 非空无缺口序列恰好产出 len-1 个样本，首样本丢弃。
func TestPctChangeLength(t *testing.T) {
	s := market.NewSeries("AAPL",
		utcPoint(10, 0, 100),
		utcPoint(10, 30, 110),
		utcPoint(11, 0, 99),
		utcPoint(11, 30, 132),
	)
	got := PctChange(s)
	if got.Len() != s.Len()-1 {
		t.Fatalf("应产出 len-1=%d 个样本, 实际=%d", s.Len()-1, got.Len())
	}
	want := []float64{10, -10, 100.0 / 3}
	for i, w := range want {
		if math.Abs(got.Points[i].Value-w) > 1e-6 {
			t.Fatalf("第 %d 个涨跌幅应为 %v, 实际=%v", i, w, got.Points[i].Value)
		}
		if !got.Points[i].Time.Equal(s.Points[i+1].Time) {
			t.Fatalf("涨跌幅应落在后一个时间戳上")
		}
	}
}

func TestPctChangeShortSeries(t *testing.T) {
	if !PctChange(market.Series{}).Empty() {
		t.Fatalf("空序列应得空结果")
	}
	one := market.NewSeries("X", utcPoint(10, 0, 5))
	if !PctChange(one).Empty() {
		t.Fatalf("单点序列应得空结果")
	}
}

// TestPctChangeSkipsInvalidDenominator 前值为 0/NaN 时跳过该样本而不是产出无穷。
func TestPctChangeSkipsInvalidDenominator(t *testing.T) {
	s := market.NewSeries("X",
		utcPoint(10, 0, 0),
		utcPoint(10, 30, 10),
		utcPoint(11, 0, 20),
	)
	got := PctChange(s)
	if got.Len() != 1 {
		t.Fatalf("除数为 0 的样本应跳过, 实际=%d 个", got.Len())
	}
	if !approx(got.Points[0].Value, 100) {
		t.Fatalf("10→20 应为 +100%%, 实际=%v", got.Points[0].Value)
	}
	for _, p := range got.Points {
		if math.IsInf(p.Value, 0) || math.IsNaN(p.Value) {
			t.Fatalf("不应产出无穷或 NaN: %v", p.Value)
		}
	}
}
