package altimetry

// FilterResult is the outcome of one noise-filter pass over a dataset.
// Points is a strict sub-sequence of the input rows with every column
// carried over untouched; Kept == Points.Len() <= Total always holds.
type FilterResult struct {
	Points *Dataset
	Total  int
	Kept   int
}

// Filter is a side-effect-free noise-rejection strategy applied to one
// dataset at a time. Implementations never mutate their input. Parameter
// validation happens at construction; Apply itself does not fail: missing
// or empty elevation data produces an empty result deterministically.
type Filter interface {
	// Name identifies the strategy ("dbscan", "sliding_median", "percentile").
	Name() string
	Apply(d *Dataset) FilterResult
}

// emptyResult builds a zero-kept result that preserves the input schema.
func emptyResult(d *Dataset, total int) FilterResult {
	if d == nil {
		return FilterResult{Points: &Dataset{}}
	}
	return FilterResult{Points: d.Select(nil), Total: total}
}

// filterGuard handles the shared degenerate cases of all three strategies:
// nil or empty input and a missing elevation column both yield an empty
// result with zero total. It returns the elevation column when filtering
// should proceed.
func filterGuard(d *Dataset) (*Column, FilterResult, bool) {
	if d == nil || d.Len() == 0 {
		return nil, emptyResult(d, 0), false
	}
	elev := d.Column(ColElevation)
	if elev == nil || !elev.Numeric {
		return nil, emptyResult(d, 0), false
	}
	return elev, FilterResult{}, true
}
