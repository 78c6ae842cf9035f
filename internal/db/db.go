// Package db persists processing run records in SQLite. Every batch run,
// including fully-rejected ones, leaves a row with its retention rate so
// operators can compare filter settings across sessions.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the runs database.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the runs database at path and applies
// pending migrations.
func Open(path string) (*DB, error) {
	sdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open runs db: %w", err)
	}
	// modernc sqlite serialises writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	sdb.SetMaxOpenConns(1)

	db := &DB{sdb}
	if err := db.MigrateUp(); err != nil {
		sdb.Close()
		return nil, err
	}
	return db, nil
}

// Run is one recorded batch processing run.
type Run struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Method       string    `json:"method"`
	ParamsJSON   string    `json:"params"`
	Files        int       `json:"files"`
	Skipped      int       `json:"skipped"`
	TotalPoints  int       `json:"total_points"`
	KeptPoints   int       `json:"kept_points"`
	RetentionPct float64   `json:"retention_pct"`
	StatsJSON    string    `json:"stats,omitempty"`
	ExportPath   string    `json:"export_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecordRun inserts a run and returns its id.
func (db *DB) RecordRun(r *Run) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO runs (session_id, method, params_json, files, skipped,
			total_points, kept_points, retention_pct, stats_json, export_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Method, r.ParamsJSON, r.Files, r.Skipped,
		r.TotalPoints, r.KeptPoints, r.RetentionPct, r.StatsJSON, r.ExportPath)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}
	return id, nil
}

// GetRun fetches one run by id.
func (db *DB) GetRun(id int64) (*Run, error) {
	row := db.QueryRow(`
		SELECT run_id, session_id, method, params_json, files, skipped,
			total_points, kept_points, retention_pct,
			COALESCE(stats_json, ''), COALESCE(export_path, ''), created_at
		FROM runs WHERE run_id = ?`, id)

	var r Run
	err := row.Scan(&r.ID, &r.SessionID, &r.Method, &r.ParamsJSON, &r.Files,
		&r.Skipped, &r.TotalPoints, &r.KeptPoints, &r.RetentionPct,
		&r.StatsJSON, &r.ExportPath, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT run_id, session_id, method, params_json, files, skipped,
			total_points, kept_points, retention_pct,
			COALESCE(stats_json, ''), COALESCE(export_path, ''), created_at
		FROM runs ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Method, &r.ParamsJSON,
			&r.Files, &r.Skipped, &r.TotalPoints, &r.KeptPoints,
			&r.RetentionPct, &r.StatsJSON, &r.ExportPath, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
