package volume

import (
	"math"
	"sort"

	"SigPulse/internal/domain/models"
)

// computeBreakpoints sorts a copy of the window and extracts the cached
// quantiles. Called on the refresh timer, never per tick.
func computeBreakpoints(values []float64) models.PercentileSet {
	if len(values) == 0 {
		return models.PercentileSet{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return models.PercentileSet{
		P25: quantile(sorted, 0.25),
		P50: quantile(sorted, 0.50),
		P75: quantile(sorted, 0.75),
		P90: quantile(sorted, 0.90),
		P95: quantile(sorted, 0.95),
	}
}

// quantile linearly interpolates between adjacent order statistics.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// percentileRank estimates where v falls in the volume distribution by
// piecewise-linear interpolation between the cached breakpoints. No sort,
// no full scan.
func percentileRank(v float64, p models.PercentileSet) float64 {
	if p.P95 <= 0 {
		return 0
	}
	type bp struct {
		rank  float64
		value float64
	}
	pts := []bp{
		{25, p.P25},
		{50, p.P50},
		{75, p.P75},
		{90, p.P90},
		{95, p.P95},
	}

	if v <= pts[0].value {
		if pts[0].value <= 0 {
			return 0
		}
		return pts[0].rank * v / pts[0].value
	}
	for i := 1; i < len(pts); i++ {
		if v <= pts[i].value {
			lo, hi := pts[i-1], pts[i]
			if hi.value == lo.value {
				return hi.rank
			}
			frac := (v - lo.value) / (hi.value - lo.value)
			return lo.rank + frac*(hi.rank-lo.rank)
		}
	}
	// Above p95: extend the p90-p95 segment, capped at 100.
	last, prev := pts[len(pts)-1], pts[len(pts)-2]
	if last.value == prev.value {
		return 100
	}
	slope := (last.rank - prev.rank) / (last.value - prev.value)
	rank := last.rank + slope*(v-last.value)
	if rank > 100 {
		return 100
	}
	return rank
}
