package altimetry

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Default sliding-window parameters.
const (
	DefaultWindowSize   = 50
	DefaultThresholdStd = 2.0
)

// SlidingWindowFilter keeps points close to the local central tendency of
// the elevation sequence. A centered window of medians tolerates slow trend
// changes along the track while rejecting local outliers, which a global
// cut cannot do on sloping reaches.
type SlidingWindowFilter struct {
	windowSize   int
	thresholdStd float64
}

// NewSlidingWindowFilter validates parameters and builds the filter.
func NewSlidingWindowFilter(windowSize int, thresholdStd float64) (*SlidingWindowFilter, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("sliding window filter: window_size must be at least 1, got %d", windowSize)
	}
	if thresholdStd <= 0 {
		return nil, fmt.Errorf("sliding window filter: threshold_std must be positive, got %g", thresholdStd)
	}
	return &SlidingWindowFilter{windowSize: windowSize, thresholdStd: thresholdStd}, nil
}

// Name implements Filter.
func (f *SlidingWindowFilter) Name() string { return "sliding_median" }

// Apply implements Filter.
//
// Points are ordered along track and a centered window of windowSize rows
// supplies the local median and sample standard deviation for each
// position. Windows truncate at the sequence boundaries rather than
// padding, so edge rows are judged against a smaller one-sided window
// instead of being dropped. A point survives iff its absolute deviation
// from the local median is within thresholdStd local deviations; a flat
// window has zero deviation, so only rows exactly at the median pass.
//
// With fewer rows than windowSize there is no meaningful local window and
// the filter falls back to a single global cut around the dataset median
// using the population standard deviation.
func (f *SlidingWindowFilter) Apply(d *Dataset) FilterResult {
	elev, degenerate, ok := filterGuard(d)
	if !ok {
		return degenerate
	}

	total := d.Len()
	valid := validElevationRows(elev, alongTrackOrder(d))
	if len(valid) == 0 {
		return emptyResult(d, total)
	}

	heights := make([]float64, len(valid))
	for i, r := range valid {
		heights[i] = elev.Floats[r]
	}

	var keep []int
	if len(heights) < f.windowSize {
		keep = f.globalCut(heights, valid)
	} else {
		keep = f.localCut(heights, valid)
	}
	return FilterResult{Points: d.Select(keep), Total: total, Kept: len(keep)}
}

func (f *SlidingWindowFilter) globalCut(heights []float64, valid []int) []int {
	median := medianOf(heights)
	std := stat.PopStdDev(heights, nil)

	keep := make([]int, 0, len(valid))
	for i, h := range heights {
		if math.Abs(h-median) <= f.thresholdStd*std {
			keep = append(keep, valid[i])
		}
	}
	return keep
}

func (f *SlidingWindowFilter) localCut(heights []float64, valid []int) []int {
	n := len(heights)
	// Centered window of width w at i spans [i-(w-1)/2, i+w/2], clamped to
	// the sequence bounds.
	lead := (f.windowSize - 1) / 2
	trail := f.windowSize / 2

	keep := make([]int, 0, n)
	window := make([]float64, 0, f.windowSize)
	for i := 0; i < n; i++ {
		lo := i - lead
		if lo < 0 {
			lo = 0
		}
		hi := i + trail
		if hi > n-1 {
			hi = n - 1
		}
		window = append(window[:0], heights[lo:hi+1]...)

		median := medianOf(window)
		var std float64
		if len(window) > 1 {
			std = stat.StdDev(window, nil)
		}
		if math.Abs(heights[i]-median) <= f.thresholdStd*std {
			keep = append(keep, valid[i])
		}
	}
	return keep
}

// medianOf returns the median of values without reordering the input.
func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return percentileSorted(sorted, 50)
}

var _ Filter = (*SlidingWindowFilter)(nil)
