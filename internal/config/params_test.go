package config

import (
	"os"
	"path/filepath"
	"testing"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }
func ptrS(v string) *string   { return &v }

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.MethodName() != MethodDBSCAN {
		t.Errorf("default method = %q, want dbscan", p.MethodName())
	}
}

func TestLoadAndMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	body := `{"method":"percentile","lower_percentile":10,"upper_percentile":90}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	base, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if base.MethodName() != MethodPercentile {
		t.Fatalf("method = %q, want percentile", base.MethodName())
	}

	merged := base.Merge(&Params{UpperPercentile: ptrF(75)})
	if *merged.UpperPercentile != 75 {
		t.Errorf("merged upper = %g, want 75", *merged.UpperPercentile)
	}
	if *merged.LowerPercentile != 10 {
		t.Errorf("merge clobbered lower = %g, want 10", *merged.LowerPercentile)
	}
	// Base untouched.
	if *base.UpperPercentile != 90 {
		t.Errorf("base mutated: upper = %g", *base.UpperPercentile)
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBuildFilterDefaults(t *testing.T) {
	f, err := (&Params{}).BuildFilter()
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}
	if f.Name() != "dbscan" {
		t.Errorf("default filter = %q, want dbscan", f.Name())
	}
}

func TestBuildFilterPerMethod(t *testing.T) {
	cases := []struct {
		method string
		want   string
	}{
		{MethodDBSCAN, "dbscan"},
		{MethodSliding, "sliding_median"},
		{MethodPercentile, "percentile"},
	}
	for _, tc := range cases {
		f, err := (&Params{Method: ptrS(tc.method)}).BuildFilter()
		if err != nil {
			t.Fatalf("BuildFilter(%s): %v", tc.method, err)
		}
		if f.Name() != tc.want {
			t.Errorf("filter name = %q, want %q", f.Name(), tc.want)
		}
	}
}

func TestBuildFilterRejectsInvalid(t *testing.T) {
	if _, err := (&Params{Method: ptrS("kalman")}).BuildFilter(); err == nil {
		t.Error("unknown method accepted")
	}
	bad := &Params{Method: ptrS(MethodPercentile), LowerPercentile: ptrF(90), UpperPercentile: ptrF(10)}
	if _, err := bad.BuildFilter(); err == nil {
		t.Error("inverted percentile bounds accepted")
	}
	if _, err := (&Params{MinSamples: ptrI(0)}).BuildFilter(); err == nil {
		t.Error("zero min_samples accepted")
	}
}
