package pattern

import (
	"math"
	"sort"
)

// DefaultPriceFloor is the sample count below which ReasonablePrice skips
// outlier filtering and falls back to the second lowest price.
const DefaultPriceFloor = 10

// Percentile returns the p-th percentile (0..100) of sorted values using
// linear interpolation between closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// ReasonablePrice picks a representative low price from samples. Fewer than
// two samples give no price. Below floor samples it returns the second
// lowest price. Otherwise values outside Q1-1.5*IQR and Q3+1.5*IQR are
// discarded and the minimum of the rest is returned.
func ReasonablePrice(prices []int64, floor int) (int64, bool) {
	if len(prices) < 2 {
		return 0, false
	}
	sorted := make([]int64, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if len(sorted) < floor {
		return sorted[1], true
	}

	values := make([]float64, len(sorted))
	for i, p := range sorted {
		values[i] = float64(p)
	}
	q1 := Percentile(values, 25)
	q3 := Percentile(values, 75)
	iqr := q3 - q1
	lower, upper := q1-1.5*iqr, q3+1.5*iqr
	for _, p := range sorted {
		v := float64(p)
		if v >= lower && v <= upper {
			return p, true
		}
	}
	return 0, false
}
