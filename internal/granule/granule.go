// Package granule reads and writes the flat CSV tables produced by the
// ATL13 granule converter. Reading infers per-column types (numeric unless
// a non-empty value refuses to parse) and represents missing values as NaN
// or "" so downstream filters can distinguish them; writing restores the
// empty-field sentinel.
package granule

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/riverlab-data/waterline.report/internal/altimetry"
)

// ReadFile parses one converted granule CSV into a dataset.
func ReadFile(path string) (*altimetry.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open granule: %w", err)
	}
	defer f.Close()
	return Read(f, filepath.Base(path))
}

// Read parses granule CSV content. source names the origin for logs and
// merge diagnostics.
func Read(r io.Reader, source string) (*altimetry.Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerate ragged rows, validated below

	header, err := cr.Read()
	if err == io.EOF {
		return &altimetry.Dataset{Source: source}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read granule header: %w", err)
	}

	raw := make([][]string, len(header))
	rows := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read granule row %d: %w", rows+1, err)
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("granule row %d has %d fields, header has %d", rows+1, len(record), len(header))
		}
		for i, v := range record {
			raw[i] = append(raw[i], v)
		}
		rows++
	}

	ds := &altimetry.Dataset{Source: source, Columns: make([]altimetry.Column, len(header))}
	for i, name := range header {
		ds.Columns[i] = buildColumn(name, raw[i])
	}
	return ds, nil
}

// buildColumn decides a column's kind from its values: numeric when every
// non-empty value parses as a float and at least one does. A column of
// nothing but empty fields stays numeric (all missing).
func buildColumn(name string, values []string) altimetry.Column {
	numeric := true
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			numeric = false
			break
		}
	}

	col := altimetry.Column{Name: name, Numeric: numeric}
	if numeric {
		col.Floats = make([]float64, len(values))
		for i, v := range values {
			if v == "" {
				col.Floats[i] = math.NaN()
				continue
			}
			col.Floats[i], _ = strconv.ParseFloat(v, 64)
		}
	} else {
		col.Strings = append([]string(nil), values...)
	}
	return col
}

// WriteFile exports a dataset as CSV at path, creating parent directories
// as needed.
func WriteFile(path string, d *altimetry.Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := Write(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write serialises a dataset as CSV: a header row of column names followed
// by one row per point. Missing values become empty fields.
func Write(w io.Writer, d *altimetry.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.ColumnNames()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(d.Columns))
	for r := 0; r < d.Len(); r++ {
		for i := range d.Columns {
			col := &d.Columns[i]
			if col.Numeric {
				if math.IsNaN(col.Floats[r]) {
					record[i] = ""
				} else {
					record[i] = strconv.FormatFloat(col.Floats[r], 'g', -1, 64)
				}
			} else {
				record[i] = col.Strings[r]
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
