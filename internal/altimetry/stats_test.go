package altimetry

import (
	"math"
	"testing"
)

func floatNear(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestComputeSurfaceStatsKnownValues(t *testing.T) {
	ds := makeDataset([]float64{2, 4, 4, 4, 5, 5, 7, 9}, nil)
	s := ComputeSurfaceStats(ds)
	if s == nil {
		t.Fatal("stats = nil, want record")
	}

	if s.Count != 8 {
		t.Errorf("Count = %d, want 8", s.Count)
	}
	if !floatNear(s.Mean, 5.0, 1e-12) {
		t.Errorf("Mean = %g, want 5", s.Mean)
	}
	if !floatNear(s.Median, 4.5, 1e-12) {
		t.Errorf("Median = %g, want 4.5", s.Median)
	}
	// Sample standard deviation of the classic 2,4,4,4,5,5,7,9 series.
	if !floatNear(s.Std, math.Sqrt(32.0/7.0), 1e-12) {
		t.Errorf("Std = %g, want %g", s.Std, math.Sqrt(32.0/7.0))
	}
	if s.Min != 2 || s.Max != 9 {
		t.Errorf("Min/Max = %g/%g, want 2/9", s.Min, s.Max)
	}
	if !floatNear(s.Q25, 4.0, 1e-12) {
		t.Errorf("Q25 = %g, want 4", s.Q25)
	}
	if !floatNear(s.Q75, 5.5, 1e-12) {
		t.Errorf("Q75 = %g, want 5.5", s.Q75)
	}
	if !floatNear(s.IQR, 1.5, 1e-12) {
		t.Errorf("IQR = %g, want 1.5", s.IQR)
	}
	// Middle 50% by rank: sorted[2:6] = 4,4,5,5.
	if !floatNear(s.Middle50Mean, 4.5, 1e-12) {
		t.Errorf("Middle50Mean = %g, want 4.5", s.Middle50Mean)
	}
}

func TestComputeSurfaceStatsInvariants(t *testing.T) {
	heights := noisyHeights(500, 88)
	ds := makeDataset(heights, nil)
	s := ComputeSurfaceStats(ds)
	if s == nil {
		t.Fatal("stats = nil")
	}

	if s.Q25 > s.Median || s.Median > s.Q75 {
		t.Errorf("quartile order violated: q25=%g median=%g q75=%g", s.Q25, s.Median, s.Q75)
	}
	if s.IQR < 0 {
		t.Errorf("IQR = %g, want >= 0", s.IQR)
	}
	if !floatNear(s.IQR, s.Q75-s.Q25, 1e-12) {
		t.Errorf("IQR = %g, want q75-q25 = %g", s.IQR, s.Q75-s.Q25)
	}
	if s.Middle50Mean < s.Min || s.Middle50Mean > s.Max {
		t.Errorf("Middle50Mean = %g outside [%g, %g]", s.Middle50Mean, s.Min, s.Max)
	}
}

func TestComputeSurfaceStatsSmallSampleFallback(t *testing.T) {
	ds := makeDataset([]float64{1, 2, 3}, nil)
	s := ComputeSurfaceStats(ds)
	if s == nil {
		t.Fatal("stats = nil")
	}
	// Below 4 values the middle-50% mean falls back to the plain mean.
	if !floatNear(s.Middle50Mean, s.Mean, 1e-12) {
		t.Errorf("Middle50Mean = %g, want plain mean %g", s.Middle50Mean, s.Mean)
	}
}

func TestComputeSurfaceStatsIgnoresMissing(t *testing.T) {
	ds := makeDataset([]float64{10, math.NaN(), 12, math.NaN()}, nil)
	s := ComputeSurfaceStats(ds)
	if s == nil {
		t.Fatal("stats = nil")
	}
	if s.Count != 2 {
		t.Errorf("Count = %d, want 2", s.Count)
	}
	if !floatNear(s.Mean, 11, 1e-12) {
		t.Errorf("Mean = %g, want 11", s.Mean)
	}
}

func TestComputeSurfaceStatsEmpty(t *testing.T) {
	if s := ComputeSurfaceStats(&Dataset{}); s != nil {
		t.Errorf("empty dataset stats = %+v, want nil", s)
	}
	noElev := &Dataset{Columns: []Column{
		{Name: ColLatitude, Numeric: true, Floats: []float64{1, 2}},
	}}
	if s := ComputeSurfaceStats(noElev); s != nil {
		t.Errorf("missing column stats = %+v, want nil", s)
	}
	allMissing := makeDataset([]float64{math.NaN(), math.NaN()}, nil)
	if s := ComputeSurfaceStats(allMissing); s != nil {
		t.Errorf("all-missing stats = %+v, want nil", s)
	}
}
