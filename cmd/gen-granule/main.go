// Command gen-granule generates synthetic converted ATL13 granule CSVs for
// testing the filters without real satellite data. Points follow a gently
// sloping water surface with Gaussian jitter; a fraction are replaced by
// large-offset noise the filters should reject.
package main

import (
	"flag"
	"log"
	"math"
	"math/rand"

	"github.com/riverlab-data/waterline.report/internal/altimetry"
	"github.com/riverlab-data/waterline.report/internal/granule"
)

func main() {
	output := flag.String("o", "granule.csv", "output path")
	points := flag.Int("n", 500, "number of points")
	baseElev := flag.Float64("elev", 240.0, "base water surface elevation (m)")
	slope := flag.Float64("slope", -0.001, "elevation change per point (m)")
	jitter := flag.Float64("jitter", 0.08, "surface noise sigma (m)")
	noiseFrac := flag.Float64("noise", 0.1, "fraction of points replaced by outliers")
	noiseSpread := flag.Float64("noise-spread", 30.0, "outlier offset range (m)")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	lat := make([]float64, *points)
	lon := make([]float64, *points)
	elev := make([]float64, *points)
	dt := make([]float64, *points)
	outliers := 0
	for i := 0; i < *points; i++ {
		t := float64(i)
		lat[i] = 45.0 + t*1e-5
		lon[i] = 7.0 + t*0.3e-5
		dt[i] = t * 0.05

		elev[i] = *baseElev + *slope*t + rng.NormFloat64()**jitter
		if rng.Float64() < *noiseFrac {
			// Offset away from the surface in either direction.
			offset := (2 + rng.Float64()) * *noiseSpread / 3
			elev[i] += math.Copysign(offset, rng.Float64()-0.5)
			outliers++
		}
	}

	ds := &altimetry.Dataset{
		Source: *output,
		Columns: []altimetry.Column{
			{Name: altimetry.ColLatitude, Numeric: true, Floats: lat},
			{Name: altimetry.ColLongitude, Numeric: true, Floats: lon},
			{Name: altimetry.ColElevation, Numeric: true, Floats: elev},
			{Name: altimetry.ColDeltaTime, Numeric: true, Floats: dt},
		},
	}
	if err := granule.WriteFile(*output, ds); err != nil {
		log.Fatalf("write granule: %v", err)
	}
	log.Printf("✓ Created: %s (%d points, %d outliers)", *output, *points, outliers)
}
