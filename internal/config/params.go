// Package config carries the filter parameter schema shared by the JSON
// defaults file, the CLI flags and the /api/process request body. Fields
// are pointers so an absent key can be told apart from a zero value and
// overrides can be merged field by field.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/riverlab-data/waterline.report/internal/altimetry"
)

// Method names accepted by the params schema.
const (
	MethodDBSCAN     = "dbscan"
	MethodSliding    = "sliding_median"
	MethodPercentile = "percentile"
)

// Params selects a filter strategy and its parameters. Unset fields fall
// back to engine defaults at build time; range validation stays with the
// filter constructors.
type Params struct {
	Method *string `json:"method,omitempty"`

	// Elliptical density clustering
	EpsAlong   *float64 `json:"eps_along,omitempty"`
	EpsHeight  *float64 `json:"eps_height,omitempty"`
	MinSamples *int     `json:"min_samples,omitempty"`

	// Sliding-window statistical filter
	WindowSize   *int     `json:"window_size,omitempty"`
	ThresholdStd *float64 `json:"threshold_std,omitempty"`

	// Middle-percentile filter
	LowerPercentile *float64 `json:"lower_percentile,omitempty"`
	UpperPercentile *float64 `json:"upper_percentile,omitempty"`
}

// Load reads a params JSON file. A missing file is not an error: it yields
// empty params so engine defaults apply.
func Load(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Params{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read params file: %w", err)
	}
	var p Params
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse params file %s: %w", path, err)
	}
	return &p, nil
}

// Merge overlays non-nil fields of override onto p and returns the result.
// Neither input is modified.
func (p *Params) Merge(override *Params) *Params {
	out := *p
	if override == nil {
		return &out
	}
	if override.Method != nil {
		out.Method = override.Method
	}
	if override.EpsAlong != nil {
		out.EpsAlong = override.EpsAlong
	}
	if override.EpsHeight != nil {
		out.EpsHeight = override.EpsHeight
	}
	if override.MinSamples != nil {
		out.MinSamples = override.MinSamples
	}
	if override.WindowSize != nil {
		out.WindowSize = override.WindowSize
	}
	if override.ThresholdStd != nil {
		out.ThresholdStd = override.ThresholdStd
	}
	if override.LowerPercentile != nil {
		out.LowerPercentile = override.LowerPercentile
	}
	if override.UpperPercentile != nil {
		out.UpperPercentile = override.UpperPercentile
	}
	return &out
}

// MethodName returns the selected method, defaulting to dbscan.
func (p *Params) MethodName() string {
	if p.Method == nil {
		return MethodDBSCAN
	}
	return *p.Method
}

// BuildFilter constructs the selected filter, applying engine defaults for
// unset fields. Out-of-range values surface as constructor errors.
func (p *Params) BuildFilter() (altimetry.Filter, error) {
	switch p.MethodName() {
	case MethodDBSCAN:
		return altimetry.NewEllipticalFilter(
			floatOr(p.EpsAlong, altimetry.DefaultEpsAlong),
			floatOr(p.EpsHeight, altimetry.DefaultEpsHeight),
			intOr(p.MinSamples, altimetry.DefaultMinSamples))
	case MethodSliding:
		return altimetry.NewSlidingWindowFilter(
			intOr(p.WindowSize, altimetry.DefaultWindowSize),
			floatOr(p.ThresholdStd, altimetry.DefaultThresholdStd))
	case MethodPercentile:
		return altimetry.NewPercentileFilter(
			floatOr(p.LowerPercentile, altimetry.DefaultLowerPercentile),
			floatOr(p.UpperPercentile, altimetry.DefaultUpperPercentile))
	default:
		return nil, fmt.Errorf("unknown filter method %q", p.MethodName())
	}
}

// JSON renders the effective parameters for run records.
func (p *Params) JSON() string {
	data, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func floatOr(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func intOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}
