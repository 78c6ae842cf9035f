package altimetry

import (
	"fmt"
	"math"
	"sort"
)

// Default percentile bounds.
const (
	DefaultLowerPercentile = 25.0
	DefaultUpperPercentile = 75.0
)

// PercentileFilter keeps rows whose elevation lies inside the closed
// interval between two dataset percentiles. It is the cheapest strategy and
// assumes a single dominant elevation mode with symmetric extreme tails.
type PercentileFilter struct {
	lower float64
	upper float64
}

// NewPercentileFilter validates bounds and builds the filter. Bounds must
// satisfy 0 <= lower < upper <= 100; inverted or out-of-range bounds are
// rejected, never swapped or clamped.
func NewPercentileFilter(lower, upper float64) (*PercentileFilter, error) {
	if lower < 0 || lower > 100 || upper < 0 || upper > 100 {
		return nil, fmt.Errorf("percentile filter: bounds must be within [0, 100], got %g and %g", lower, upper)
	}
	if lower >= upper {
		return nil, fmt.Errorf("percentile filter: lower_percentile %g must be below upper_percentile %g", lower, upper)
	}
	return &PercentileFilter{lower: lower, upper: upper}, nil
}

// Name implements Filter.
func (f *PercentileFilter) Name() string { return "percentile" }

// Apply implements Filter. Rows with a missing elevation are dropped, the
// two bounds are computed over the remaining elevations with the
// linear-interpolation percentile definition, and surviving rows keep
// their original input order.
func (f *PercentileFilter) Apply(d *Dataset) FilterResult {
	elev, degenerate, ok := filterGuard(d)
	if !ok {
		return degenerate
	}

	total := d.Len()
	heights := make([]float64, 0, total)
	for _, h := range elev.Floats {
		if !math.IsNaN(h) {
			heights = append(heights, h)
		}
	}
	if len(heights) == 0 {
		return emptyResult(d, total)
	}

	sort.Float64s(heights)
	qLower := percentileSorted(heights, f.lower)
	qUpper := percentileSorted(heights, f.upper)

	keep := make([]int, 0, total)
	for r, h := range elev.Floats {
		if !math.IsNaN(h) && h >= qLower && h <= qUpper {
			keep = append(keep, r)
		}
	}
	return FilterResult{Points: d.Select(keep), Total: total, Kept: len(keep)}
}

// percentileSorted returns the p-th percentile (0..100) of ascending sorted
// values using the linear-interpolation definition (type 7), matching the
// converter pipeline's reference implementation. gonum's stat.Quantile
// kinds follow different interpolation rules, hence the local helper.
func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p / 100
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if lo < 0 {
		return sorted[0]
	}
	if hi > n-1 {
		return sorted[n-1]
	}
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

var _ Filter = (*PercentileFilter)(nil)
