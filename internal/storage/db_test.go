package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donorprep/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInsertAndListRuns(t *testing.T) {
	db := openTestDB(t)

	first := internal.RunRow{
		TraceID:    "trace-1",
		Status:     RunStatusOK,
		DatasetOut: "/tmp/dataset.xlsx",
		GeoOut:     "/tmp/adm3.json",
		Timings:    map[string]float64{"totalMs": 12},
		Counts:     map[string]int{"rows": 3, "features": 2},
	}
	second := internal.RunRow{
		TraceID: "trace-2",
		Status:  RunStatusFailed,
		Timings: map[string]float64{},
		Counts:  map[string]int{},
		Error:   "source missing",
	}
	require.NoError(t, db.InsertRun(first))
	require.NoError(t, db.InsertRun(second))

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "trace-2", runs[0].TraceID)
	assert.Equal(t, "source missing", runs[0].Error)
	assert.Equal(t, 3, runs[1].Counts["rows"])
	assert.Equal(t, 12.0, runs[1].Timings["totalMs"])
	assert.NotEmpty(t, runs[1].CreatedAt)

	got, err := db.GetRun("trace-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "/tmp/adm3.json", got.GeoOut)

	missing, err := db.GetRun("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.Error(t, db.InsertRun(first), "trace ids are unique")
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)

	v, err := db.GetMetadata(MetaLastSuccess)
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, db.SetMetadata(MetaLastSuccess, "2026-10-16T08:00:00Z"))
	require.NoError(t, db.SetMetadata(MetaLastSuccess, "2026-10-16T09:00:00Z"))

	v, err = db.GetMetadata(MetaLastSuccess)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "2026-10-16T09:00:00Z", *v)
}
