package altimetry

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SurfaceStats summarises the non-missing elevations of a dataset. Middle50Mean
// is the mean of the middle 50% of elevations by rank, a robust central
// estimate that ignores both tails without re-filtering the dataset.
type SurfaceStats struct {
	Count        int     `json:"count"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	Std          float64 `json:"std"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Q25          float64 `json:"q25"`
	Q75          float64 `json:"q75"`
	IQR          float64 `json:"iqr"`
	Middle50Mean float64 `json:"middle_50_mean"`
}

// ComputeSurfaceStats calculates descriptive statistics over the elevations
// of a dataset. Returns nil when the elevation column is absent or carries
// no values, mirroring the filters' empty-result behaviour.
func ComputeSurfaceStats(d *Dataset) *SurfaceStats {
	if d == nil || d.Len() == 0 {
		return nil
	}
	elev := d.Column(ColElevation)
	if elev == nil || !elev.Numeric {
		return nil
	}

	heights := make([]float64, 0, len(elev.Floats))
	for _, h := range elev.Floats {
		if !math.IsNaN(h) {
			heights = append(heights, h)
		}
	}
	if len(heights) == 0 {
		return nil
	}

	sorted := make([]float64, len(heights))
	copy(sorted, heights)
	sort.Float64s(sorted)

	n := len(sorted)
	s := &SurfaceStats{
		Count:  n,
		Mean:   stat.Mean(heights, nil),
		Median: percentileSorted(sorted, 50),
		Min:    sorted[0],
		Max:    sorted[n-1],
		Q25:    percentileSorted(sorted, 25),
		Q75:    percentileSorted(sorted, 75),
	}
	s.IQR = s.Q75 - s.Q25
	// Sample standard deviation; zero for a single value so the record
	// stays JSON-encodable.
	if n > 1 {
		s.Std = stat.StdDev(heights, nil)
	}

	// Middle 50% by rank needs at least one value per quartile slice to
	// say anything the plain mean does not.
	if n >= 4 {
		lo := int(float64(n) * 0.25)
		hi := int(float64(n) * 0.75)
		s.Middle50Mean = stat.Mean(sorted[lo:hi], nil)
	} else {
		s.Middle50Mean = s.Mean
	}
	return s
}
