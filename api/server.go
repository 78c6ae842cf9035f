// Package api exposes batch processing over HTTP: trigger a filter run on
// the session's granules, inspect recorded runs, and render profile charts
// from a run's exported points.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/riverlab-data/waterline.report/internal/altimetry"
	"github.com/riverlab-data/waterline.report/internal/config"
	"github.com/riverlab-data/waterline.report/internal/db"
	"github.com/riverlab-data/waterline.report/internal/granule"
	"github.com/riverlab-data/waterline.report/internal/security"
	"github.com/riverlab-data/waterline.report/internal/storage"
	"github.com/riverlab-data/waterline.report/internal/version"
	"github.com/riverlab-data/waterline.report/internal/viz"
)

const (
	maxRequestBody = 1 << 20
	maxGranuleBody = 64 << 20
)

type Server struct {
	db       *db.DB
	store    *storage.Manager
	defaults *config.Params
	workers  int
}

func NewServer(database *db.DB, store *storage.Manager, defaults *config.Params, workers int) *Server {
	if defaults == nil {
		defaults = &config.Params{}
	}
	return &Server{
		db:       database,
		store:    store,
		defaults: defaults,
		workers:  workers,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/granules", s.granulesHandler)
	mux.HandleFunc("/api/process", s.processHandler)
	mux.HandleFunc("/api/runs", s.listRunsHandler)
	mux.HandleFunc("/api/runs/", s.getRunHandler)
	mux.HandleFunc("/api/charts/profile", s.profileHTMLHandler)
	mux.HandleFunc("/api/charts/profile.png", s.profilePNGHandler)
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

// Handler wraps the mux with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.ServeMux())
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("http: %s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Microsecond))
	})
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	io.WriteString(w, "waterline.report: POST /api/process, GET /api/runs, GET /api/charts/profile\n")
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		http.Error(w, fmt.Sprintf("db unavailable: %v", err), http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintf(w, "ok %s\n", version.String())
}

// granulesHandler lists the session's granules (GET) or accepts a raw CSV
// upload into the session (POST with the file body and a ?name= parameter).
func (s *Server) granulesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		files, err := s.store.ListGranules()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to list granules: %v", err), http.StatusInternalServerError)
			return
		}
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = filepath.Base(f)
		}
		writeJSON(w, http.StatusOK, names)

	case http.MethodPost:
		name := security.SafeFilename(r.URL.Query().Get("name"))
		if !strings.HasSuffix(name, ".csv") {
			name += ".csv"
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxGranuleBody))
		if err != nil {
			http.Error(w, "Failed to read upload", http.StatusBadRequest)
			return
		}
		if len(body) == 0 {
			http.Error(w, "Empty upload", http.StatusBadRequest)
			return
		}
		// Reject uploads the filters could never parse before storing them.
		if _, err := granule.Read(bytes.NewReader(body), name); err != nil {
			http.Error(w, fmt.Sprintf("Invalid granule CSV: %v", err), http.StatusBadRequest)
			return
		}
		path, err := s.store.AddGranule(name, body)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to store granule: %v", err), http.StatusInternalServerError)
			return
		}
		log.Printf("granule: stored %s (%d bytes)", filepath.Base(path), len(body))
		writeJSON(w, http.StatusCreated, map[string]string{"name": filepath.Base(path)})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// processResponse is the /api/process reply: the recorded run plus the
// surface statistics of the merged points (absent when nothing survived).
type processResponse struct {
	Run   *db.Run                 `json:"run"`
	Stats *altimetry.SurfaceStats `json:"stats,omitempty"`
}

// processHandler runs the configured filter over every granule in the
// session, exports the survivors as CSV and records the run. The request
// body, when present, carries parameter overrides in the params JSON schema.
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var override config.Params
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &override); err != nil {
			http.Error(w, fmt.Sprintf("Invalid params: %v", err), http.StatusBadRequest)
			return
		}
	}

	params := s.defaults.Merge(&override)
	filter, err := params.BuildFilter()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid params: %v", err), http.StatusBadRequest)
		return
	}

	files, err := s.store.ListGranules()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list granules: %v", err), http.StatusInternalServerError)
		return
	}
	if len(files) == 0 {
		http.Error(w, "No granules in session", http.StatusBadRequest)
		return
	}

	agg := altimetry.Aggregator{
		Filter:  filter,
		Load:    granule.ReadFile,
		Workers: s.workers,
		Progress: func(done, total int, file string) {
			log.Printf("process: %d/%d %s", done, total, filepath.Base(file))
		},
	}
	result, err := agg.Run(r.Context(), files)
	if err != nil {
		// Client went away mid-batch; nothing useful to record.
		log.Printf("process: aborted: %v", err)
		http.Error(w, "Processing cancelled", http.StatusServiceUnavailable)
		return
	}

	exportPath := ""
	if result.Kept > 0 {
		dir, err := s.store.Dir(storage.KindProcessed)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to create export dir: %v", err), http.StatusInternalServerError)
			return
		}
		exportPath = filepath.Join(dir, "run-"+uuid.NewString()+".csv")
		if err := granule.WriteFile(exportPath, result.Merged); err != nil {
			http.Error(w, fmt.Sprintf("Failed to export points: %v", err), http.StatusInternalServerError)
			return
		}
	}

	stats := altimetry.ComputeSurfaceStats(result.Merged)
	statsJSON := ""
	if stats != nil {
		if data, err := json.Marshal(stats); err == nil {
			statsJSON = string(data)
		}
	}

	id, err := s.db.RecordRun(&db.Run{
		SessionID:    s.store.SessionID(),
		Method:       params.MethodName(),
		ParamsJSON:   params.JSON(),
		Files:        result.Files,
		Skipped:      result.Skipped,
		TotalPoints:  result.Total,
		KeptPoints:   result.Kept,
		RetentionPct: result.RetentionRate(),
		StatsJSON:    statsJSON,
		ExportPath:   exportPath,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to record run: %v", err), http.StatusInternalServerError)
		return
	}

	run, err := s.db.GetRun(id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to load run: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{Run: run, Stats: stats})
}

func (s *Server) listRunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list runs: %v", err), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRunHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	run, err := s.db.GetRun(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// runExport resolves the chart source for a request: the run named by the
// ?run= query parameter, or the most recent run with exported points.
func (s *Server) runExport(r *http.Request) (*db.Run, *altimetry.Dataset, error) {
	var run *db.Run
	if v := r.URL.Query().Get("run"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid run id %q", v)
		}
		run, err = s.db.GetRun(id)
		if err != nil {
			return nil, nil, err
		}
	} else {
		runs, err := s.db.ListRuns(0)
		if err != nil {
			return nil, nil, err
		}
		for i := range runs {
			if runs[i].ExportPath != "" {
				run = &runs[i]
				break
			}
		}
		if run == nil {
			return nil, nil, errors.New("no runs with exported points")
		}
	}

	if run.ExportPath == "" {
		return nil, nil, fmt.Errorf("run %d retained no points", run.ID)
	}
	// Run records may span sessions; only serve exports from our tree.
	if err := security.WithinDirectory(run.ExportPath, s.store.Root()); err != nil {
		return nil, nil, fmt.Errorf("export for run %d: %w", run.ID, err)
	}
	ds, err := granule.ReadFile(run.ExportPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load export for run %d: %w", run.ID, err)
	}
	return run, ds, nil
}

func chartTitle(run *db.Run) string {
	return fmt.Sprintf("Water surface profile, run %d (%s)", run.ID, run.Method)
}

func (s *Server) profileHTMLHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	run, ds, err := s.runExport(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	subtitle := fmt.Sprintf("%d of %d points retained (%.1f%%)",
		run.KeptPoints, run.TotalPoints, run.RetentionPct)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viz.ProfileHTML(w, ds, chartTitle(run), subtitle); err != nil {
		log.Printf("chart: render html for run %d: %v", run.ID, err)
	}
}

func (s *Server) profilePNGHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	run, ds, err := s.runExport(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := viz.ProfilePNG(w, ds, chartTitle(run)); err != nil {
		log.Printf("chart: render png for run %d: %v", run.ID, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}
