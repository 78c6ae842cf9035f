package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)
}

func TestRecordAndGetRun(t *testing.T) {
	db := openTestDB(t)

	id, err := db.RecordRun(&Run{
		SessionID:    "s1",
		Method:       "dbscan",
		ParamsJSON:   `{"eps_along":50}`,
		Files:        3,
		Skipped:      1,
		TotalPoints:  300,
		KeptPoints:   270,
		RetentionPct: 90,
		StatsJSON:    `{"count":270}`,
		ExportPath:   "processed/run-1.csv",
	})
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := db.GetRun(id)
	require.NoError(t, err)
	require.Equal(t, "s1", got.SessionID)
	require.Equal(t, "dbscan", got.Method)
	require.Equal(t, 270, got.KeptPoints)
	require.Equal(t, 90.0, got.RetentionPct)
	require.False(t, got.CreatedAt.IsZero())
}

func TestGetRunMissing(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetRun(12345)
	require.Error(t, err)
}

func TestListRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)

	for i, method := range []string{"dbscan", "percentile", "sliding_median"} {
		_, err := db.RecordRun(&Run{SessionID: "s1", Method: method, TotalPoints: i})
		require.NoError(t, err)
	}

	runs, err := db.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "sliding_median", runs[0].Method)
	require.Equal(t, "percentile", runs[1].Method)
}
