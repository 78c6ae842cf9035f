package altimetry

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// passthroughFilter keeps every elevation-bearing row; handy for asserting
// aggregation mechanics separately from filter behaviour.
type passthroughFilter struct{}

func (passthroughFilter) Name() string { return "passthrough" }

func (passthroughFilter) Apply(d *Dataset) FilterResult {
	elev, degenerate, ok := filterGuard(d)
	if !ok {
		return degenerate
	}
	keep := validElevationRows(elev, alongTrackOrder(d))
	return FilterResult{Points: d.Select(keep), Total: d.Len(), Kept: len(keep)}
}

// rejectAllFilter loads fine but retains nothing.
type rejectAllFilter struct{}

func (rejectAllFilter) Name() string { return "reject" }

func (rejectAllFilter) Apply(d *Dataset) FilterResult {
	return emptyResult(d, d.Len())
}

func mapLoader(granules map[string]*Dataset) Loader {
	return func(path string) (*Dataset, error) {
		ds, ok := granules[path]
		if !ok {
			return nil, fmt.Errorf("unreadable granule %s", path)
		}
		ds.Source = path
		return ds, nil
	}
}

func TestAggregatorMergeOrderAndTotals(t *testing.T) {
	granules := map[string]*Dataset{
		"a.csv": makeDataset([]float64{1, 2}, []float64{0, 1}),
		"b.csv": makeDataset([]float64{3}, []float64{2}),
		"c.csv": makeDataset([]float64{4, 5, 6}, []float64{3, 4, 5}),
	}
	agg := &Aggregator{Filter: passthroughFilter{}, Load: mapLoader(granules)}

	res, err := agg.Run(context.Background(), []string{"a.csv", "b.csv", "c.csv"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Total != 6 || res.Kept != 6 {
		t.Errorf("totals = (%d, %d), want (6, 6)", res.Total, res.Kept)
	}
	if res.Merged.Len() != res.Kept {
		t.Errorf("merged len = %d, kept = %d", res.Merged.Len(), res.Kept)
	}
	got := res.Merged.Column(ColElevation).Floats
	want := []float64{1, 2, 3, 4, 5, 6}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merge order mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregatorSkipsFailingGranule(t *testing.T) {
	granules := map[string]*Dataset{
		"a.csv": makeDataset([]float64{1, 2}, nil),
		"c.csv": makeDataset([]float64{3, 4}, nil),
	}
	agg := &Aggregator{Filter: passthroughFilter{}, Load: mapLoader(granules)}

	// b.csv fails to load; the batch must complete with a+c only.
	res, err := agg.Run(context.Background(), []string{"a.csv", "b.csv", "c.csv"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 4 || res.Kept != 4 {
		t.Errorf("totals = (%d, %d), want (4, 4)", res.Total, res.Kept)
	}
	if res.Files != 3 || res.Skipped != 1 {
		t.Errorf("files/skipped = %d/%d, want 3/1", res.Files, res.Skipped)
	}
}

func TestAggregatorSkipsEmptyGranule(t *testing.T) {
	granules := map[string]*Dataset{
		"a.csv":     makeDataset([]float64{1}, nil),
		"empty.csv": {},
	}
	agg := &Aggregator{Filter: passthroughFilter{}, Load: mapLoader(granules)}
	res, err := agg.Run(context.Background(), []string{"a.csv", "empty.csv"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 1 || res.Skipped != 1 {
		t.Errorf("total=%d skipped=%d, want 1, 1", res.Total, res.Skipped)
	}
}

func TestAggregatorRejectedGranuleCountsTowardTotal(t *testing.T) {
	granules := map[string]*Dataset{
		"a.csv": makeDataset([]float64{1, 2, 3}, nil),
	}
	agg := &Aggregator{Filter: rejectAllFilter{}, Load: mapLoader(granules)}
	res, err := agg.Run(context.Background(), []string{"a.csv"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Fully rejected is distinct from "no usable input": the total is
	// reported so the retention rate reflects the rejection.
	if res.Total != 3 || res.Kept != 0 {
		t.Errorf("totals = (%d, %d), want (3, 0)", res.Total, res.Kept)
	}
	if res.RetentionRate() != 0 {
		t.Errorf("retention = %g, want 0", res.RetentionRate())
	}
	if res.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", res.Skipped)
	}
}

func TestAggregatorNoFiles(t *testing.T) {
	agg := &Aggregator{Filter: passthroughFilter{}, Load: mapLoader(nil)}
	res, err := agg.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 0 || res.Files != 0 {
		t.Errorf("total=%d files=%d, want 0, 0", res.Total, res.Files)
	}
	if res.Merged == nil || res.Merged.Len() != 0 {
		t.Errorf("merged = %v, want empty dataset", res.Merged)
	}
}

func TestAggregatorProgressMonotonic(t *testing.T) {
	granules := map[string]*Dataset{
		"a.csv": makeDataset([]float64{1}, nil),
		"b.csv": makeDataset([]float64{2}, nil),
		"c.csv": makeDataset([]float64{3}, nil),
	}
	var seen []int
	agg := &Aggregator{
		Filter: passthroughFilter{},
		Load:   mapLoader(granules),
		Progress: func(done, total int, file string) {
			if total != 3 {
				t.Errorf("progress total = %d, want 3", total)
			}
			seen = append(seen, done)
		},
	}
	if _, err := agg.Run(context.Background(), []string{"a.csv", "b.csv", "c.csv"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("progress calls = %d, want 3", len(seen))
	}
	for i, d := range seen {
		if d != i+1 {
			t.Fatalf("progress sequence = %v, want 1,2,3", seen)
		}
	}
}

func TestAggregatorConcurrentMatchesSequential(t *testing.T) {
	granules := make(map[string]*Dataset)
	var files []string
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("g%02d.csv", i)
		heights := make([]float64, 40)
		times := make([]float64, 40)
		for j := range heights {
			heights[j] = float64(i) + 0.01*float64(j%5)
			times[j] = float64(j)
		}
		granules[name] = makeDataset(heights, times)
		files = append(files, name)
	}

	filter, err := NewSlidingWindowFilter(10, 2.0)
	if err != nil {
		t.Fatalf("NewSlidingWindowFilter: %v", err)
	}

	seq := &Aggregator{Filter: filter, Load: mapLoader(granules)}
	seqRes, err := seq.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("sequential Run: %v", err)
	}

	conc := &Aggregator{Filter: filter, Load: mapLoader(granules), Workers: 4}
	concRes, err := conc.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("concurrent Run: %v", err)
	}

	if diff := cmp.Diff(seqRes, concRes); diff != "" {
		t.Errorf("concurrent result differs from sequential (-seq +conc):\n%s", diff)
	}
}

func TestAggregatorCancellation(t *testing.T) {
	granules := map[string]*Dataset{
		"a.csv": makeDataset([]float64{1}, nil),
		"b.csv": makeDataset([]float64{2}, nil),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := &Aggregator{Filter: passthroughFilter{}, Load: mapLoader(granules)}
	res, err := agg.Run(ctx, []string{"a.csv", "b.csv"})
	if err == nil {
		t.Fatal("expected context error after cancellation")
	}
	if res.Total != 0 {
		t.Errorf("cancelled run total = %d, want 0", res.Total)
	}
}

func TestAggregatorMissingConfiguration(t *testing.T) {
	if _, err := (&Aggregator{Load: mapLoader(nil)}).Run(context.Background(), nil); err == nil {
		t.Error("expected error without filter")
	}
	if _, err := (&Aggregator{Filter: passthroughFilter{}}).Run(context.Background(), nil); err == nil {
		t.Error("expected error without loader")
	}
}
