// Package altimetry implements the water-surface extraction engine: noise
// filters over laser-altimetry point tables, batch aggregation across
// granules, and robust surface statistics.
package altimetry

import (
	"fmt"
	"math"
	"sort"
)

// Well-known ATL13 column names produced by the granule converter.
const (
	ColLatitude  = "segment_lat"
	ColLongitude = "segment_lon"
	ColElevation = "ht_water_surf"
	ColDeltaTime = "delta_time"
)

// Column holds one named column of a granule table. A column is either
// numeric (Floats, with NaN marking a missing value) or textual (Strings,
// with "" marking a missing value).
type Column struct {
	Name    string
	Numeric bool
	Floats  []float64
	Strings []string
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Numeric {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// Dataset is an ordered table of altimetry returns from a single granule.
// All columns have the same row count. Datasets are immutable inputs to
// filters: filters derive new datasets via Select and never modify the
// source rows.
type Dataset struct {
	Source  string // originating file, informational only
	Columns []Column
}

// Len returns the number of rows in the dataset.
func (d *Dataset) Len() int {
	if d == nil || len(d.Columns) == 0 {
		return 0
	}
	return d.Columns[0].Len()
}

// Column returns the named column, or nil if absent.
func (d *Dataset) Column(name string) *Column {
	if d == nil {
		return nil
	}
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the column names in table order.
func (d *Dataset) ColumnNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, len(d.Columns))
	for i := range d.Columns {
		names[i] = d.Columns[i].Name
	}
	return names
}

// SameSchema reports whether two datasets have identical column names,
// order and kinds.
func (d *Dataset) SameSchema(other *Dataset) bool {
	if len(d.Columns) != len(other.Columns) {
		return false
	}
	for i := range d.Columns {
		if d.Columns[i].Name != other.Columns[i].Name ||
			d.Columns[i].Numeric != other.Columns[i].Numeric {
			return false
		}
	}
	return true
}

// Select builds a new dataset containing the given rows, in the given
// order, with every column carried over untouched. Row indices must be
// valid for the receiver.
func (d *Dataset) Select(rows []int) *Dataset {
	out := &Dataset{Source: d.Source, Columns: make([]Column, len(d.Columns))}
	for i := range d.Columns {
		src := &d.Columns[i]
		dst := &out.Columns[i]
		dst.Name = src.Name
		dst.Numeric = src.Numeric
		if src.Numeric {
			dst.Floats = make([]float64, len(rows))
			for j, r := range rows {
				dst.Floats[j] = src.Floats[r]
			}
		} else {
			dst.Strings = make([]string, len(rows))
			for j, r := range rows {
				dst.Strings[j] = src.Strings[r]
			}
		}
	}
	return out
}

// Concat concatenates datasets in the given order. All non-nil parts must
// share the schema of the first non-nil part. An empty input produces an
// empty dataset.
func Concat(parts []*Dataset) (*Dataset, error) {
	var first *Dataset
	for _, p := range parts {
		if p != nil && len(p.Columns) > 0 {
			first = p
			break
		}
	}
	if first == nil {
		return &Dataset{}, nil
	}

	out := &Dataset{Source: "merged", Columns: make([]Column, len(first.Columns))}
	for i := range first.Columns {
		out.Columns[i].Name = first.Columns[i].Name
		out.Columns[i].Numeric = first.Columns[i].Numeric
	}

	for _, p := range parts {
		if p == nil || len(p.Columns) == 0 {
			continue
		}
		if !first.SameSchema(p) {
			return nil, fmt.Errorf("concat: schema mismatch between %q and %q", first.Source, p.Source)
		}
		for i := range out.Columns {
			if out.Columns[i].Numeric {
				out.Columns[i].Floats = append(out.Columns[i].Floats, p.Columns[i].Floats...)
			} else {
				out.Columns[i].Strings = append(out.Columns[i].Strings, p.Columns[i].Strings...)
			}
		}
	}
	return out, nil
}

// alongTrackOrder returns row indices in acquisition order: ascending
// delta_time when the column is present, input order otherwise. The sort
// is stable and rows with a missing delta_time sort last, so equal or
// missing times keep their input order.
func alongTrackOrder(d *Dataset) []int {
	n := d.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	dt := d.Column(ColDeltaTime)
	if dt == nil || !dt.Numeric {
		return order
	}

	sort.SliceStable(order, func(a, b int) bool {
		va, vb := dt.Floats[order[a]], dt.Floats[order[b]]
		if math.IsNaN(va) {
			return false
		}
		if math.IsNaN(vb) {
			return true
		}
		return va < vb
	})
	return order
}

// validElevationRows filters an ordered index list down to rows that carry
// an elevation value.
func validElevationRows(elev *Column, order []int) []int {
	valid := make([]int, 0, len(order))
	for _, r := range order {
		if !math.IsNaN(elev.Floats[r]) {
			valid = append(valid, r)
		}
	}
	return valid
}
