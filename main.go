// Command waterline extracts water surface elevations from converted
// ICESat-2 ATL13 granules. The default mode filters a directory of granule
// CSVs and prints surface statistics; -serve runs the HTTP API instead.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/riverlab-data/waterline.report/api"
	"github.com/riverlab-data/waterline.report/internal/altimetry"
	"github.com/riverlab-data/waterline.report/internal/config"
	"github.com/riverlab-data/waterline.report/internal/db"
	"github.com/riverlab-data/waterline.report/internal/granule"
	"github.com/riverlab-data/waterline.report/internal/storage"
	"github.com/riverlab-data/waterline.report/internal/version"
)

var (
	serve  = flag.Bool("serve", false, "Run the HTTP API server instead of a one-shot batch")
	listen = flag.String("listen", ":8080", "Listen address for -serve")
	dbFile = flag.String("db", "waterline.db", "Path to the runs database (serve mode)")

	dataDir = flag.String("data", "data", "Base directory for session storage (serve mode)")
	session = flag.String("session", "", "Session id to reattach to; empty creates a new session")

	input      = flag.String("input", "", "Directory of converted granule CSVs (batch mode)")
	export     = flag.String("export", "", "Path for the merged filtered CSV (batch mode, optional)")
	paramsFile = flag.String("params", "", "Filter parameters JSON file")
	workers    = flag.Int("workers", 1, "Concurrent granule workers")

	method       = flag.String("method", "", "Filter method: dbscan, sliding_median or percentile")
	epsAlong     = flag.Float64("eps-along", altimetry.DefaultEpsAlong, "DBSCAN along-track radius (points)")
	epsHeight    = flag.Float64("eps-height", altimetry.DefaultEpsHeight, "DBSCAN elevation radius (m)")
	minSamples   = flag.Int("min-samples", altimetry.DefaultMinSamples, "DBSCAN core point threshold")
	windowSize   = flag.Int("window", altimetry.DefaultWindowSize, "Sliding window size (points)")
	thresholdStd = flag.Float64("threshold-std", altimetry.DefaultThresholdStd, "Sliding window deviation threshold")
	lowerPct     = flag.Float64("lower", altimetry.DefaultLowerPercentile, "Percentile filter lower bound")
	upperPct     = flag.Float64("upper", altimetry.DefaultUpperPercentile, "Percentile filter upper bound")
)

// cliOverrides collects explicitly-set parameter flags so unset flags never
// clobber values from the params file.
func cliOverrides() *config.Params {
	p := &config.Params{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "method":
			p.Method = method
		case "eps-along":
			p.EpsAlong = epsAlong
		case "eps-height":
			p.EpsHeight = epsHeight
		case "min-samples":
			p.MinSamples = minSamples
		case "window":
			p.WindowSize = windowSize
		case "threshold-std":
			p.ThresholdStd = thresholdStd
		case "lower":
			p.LowerPercentile = lowerPct
		case "upper":
			p.UpperPercentile = upperPct
		}
	})
	return p
}

func loadParams() *config.Params {
	params := &config.Params{}
	if *paramsFile != "" {
		var err error
		params, err = config.Load(*paramsFile)
		if err != nil {
			log.Fatalf("Failed to load params: %v", err)
		}
	}
	return params.Merge(cliOverrides())
}

// granuleFiles lists the CSVs under dir in name order.
func granuleFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func runBatch(ctx context.Context, params *config.Params) {
	if *input == "" {
		log.Fatal("Batch mode requires -input (or use -serve)")
	}

	filter, err := params.BuildFilter()
	if err != nil {
		log.Fatalf("Invalid params: %v", err)
	}

	files, err := granuleFiles(*input)
	if err != nil {
		log.Fatalf("Failed to list granules: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("No granule CSVs under %s", *input)
	}

	agg := altimetry.Aggregator{
		Filter:  filter,
		Load:    granule.ReadFile,
		Workers: *workers,
		Progress: func(done, total int, file string) {
			log.Printf("processed %d/%d: %s", done, total, filepath.Base(file))
		},
	}
	result, err := agg.Run(ctx, files)
	if err != nil {
		log.Fatalf("Batch interrupted: %v", err)
	}

	log.Printf("%s: %d/%d points retained (%.1f%%) across %d granules, %d skipped",
		filter.Name(), result.Kept, result.Total, result.RetentionRate(),
		result.Files, result.Skipped)

	if result.Total == 0 {
		log.Fatal("No usable points in any granule")
	}

	if *export != "" && result.Kept > 0 {
		if err := granule.WriteFile(*export, result.Merged); err != nil {
			log.Fatalf("Failed to export points: %v", err)
		}
		log.Printf("exported %d points to %s", result.Kept, *export)
	}

	stats := altimetry.ComputeSurfaceStats(result.Merged)
	if stats == nil {
		log.Print("every point rejected; no surface statistics")
		return
	}
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode stats: %v", err)
	}
	fmt.Println(string(out))
}

func runServer(ctx context.Context, params *config.Params) {
	database, err := db.Open(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	var store *storage.Manager
	if *session != "" {
		store, err = storage.OpenSession(*dataDir, *session, nil)
	} else {
		store, err = storage.NewSession(*dataDir, nil)
	}
	if err != nil {
		log.Fatalf("Failed to open session storage: %v", err)
	}
	log.Printf("session %s at %s", store.SessionID(), store.Root())

	server := &http.Server{
		Addr:    *listen,
		Handler: api.NewServer(database, store, params, *workers).Handler(),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Print("Graceful shutdown complete")
}

func main() {
	flag.Parse()
	log.Print(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	params := loadParams()
	if *serve {
		runServer(ctx, params)
		return
	}
	runBatch(ctx, params)
}
