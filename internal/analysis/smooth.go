package analysis

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"maglens/internal/market"
)

// Smooth overlays a simple moving average on a price series. The warm-up
// samples (first window-1) are dropped; window <= 1 or a series shorter than
// the window yields an empty series.
func Smooth(s market.Series, window int) market.Series {
	name := s.Name
	if window > 1 {
		name = fmt.Sprintf("%s SMA%d", s.Name, window)
	}
	out := market.Series{Name: name, Zone: s.Zone}
	if window <= 1 || s.Len() < window {
		return out
	}
	sma := talib.Sma(s.Values(), window)
	out.Points = make([]market.Point, 0, len(sma)-window+1)
	for i := window - 1; i < len(sma); i++ {
		v := sma[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out.Points = append(out.Points, market.Point{Time: s.Points[i].Time, Value: round4(v)})
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
