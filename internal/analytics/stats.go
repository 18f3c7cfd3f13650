package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// minMaxScale maps values onto [0, scale]. A constant input maps to 0.
func minMaxScale(values []float64, scale float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / span * scale
	}
	return out
}

// percentileRanks returns rank/n*100 for each value, averaging the ranks of ties
func percentileRanks(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	for start := 0; start < n; {
		end := start + 1
		for end < n && values[idx[end]] == values[idx[start]] {
			end++
		}
		// ranks are 1-based; the tie group spans start+1..end
		avg := float64(start+1+end) / 2
		for k := start; k < end; k++ {
			out[idx[k]] = avg / float64(n) * 100
		}
		start = end
	}
	return out
}

// median of values, averaging the middle pair for even lengths
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func floatPtr(v float64) *float64 {
	return &v
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
