package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"maglens/internal/market"
)

const defaultHistogramBins = 30

// Distribution describes the distribution of a series' values, typically the
// per-sample percentage changes of one instrument.
type Distribution struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	// Edges has len(Counts)+1 entries; Counts[i] covers [Edges[i], Edges[i+1]).
	Edges  []float64 `json:"edges"`
	Counts []float64 `json:"counts"`
}

// Histogram bins the series values into `bins` equal-width buckets.
// NaN/Inf samples are ignored; an all-invalid or empty series produces a
// zero-count distribution.
func Histogram(s market.Series, bins int) Distribution {
	if bins <= 0 {
		bins = defaultHistogramBins
	}
	values := make([]float64, 0, s.Len())
	for _, p := range s.Points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		values = append(values, p.Value)
	}
	dist := Distribution{Name: s.Name, Count: len(values)}
	if len(values) == 0 {
		return dist
	}
	sort.Float64s(values)
	dist.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		dist.StdDev = stat.StdDev(values, nil)
	}

	min, max := values[0], values[len(values)-1]
	upper := math.Nextafter(max, math.Inf(1))
	if min == max {
		upper = min + 1
	}
	dividers := make([]float64, bins+1)
	floats.Span(dividers, min, upper)
	dist.Counts = stat.Histogram(nil, dividers, values, nil)
	dist.Edges = dividers
	return dist
}
