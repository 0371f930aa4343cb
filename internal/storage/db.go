package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"donorprep/internal"
)

const (
	RunStatusOK      = "ok"
	RunStatusSkipped = "skipped"
	RunStatusFailed  = "failed"

	MetaLastSuccess = "pipeline.last_success"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL,
  datasetOut TEXT NOT NULL,
  geoOut TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  error TEXT NOT NULL DEFAULT '',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) InsertRun(run internal.RunRow) error {
	timingsJSON, err := json.Marshal(run.Timings)
	if err != nil {
		return err
	}
	countsJSON, err := json.Marshal(run.Counts)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO runs (traceId, status, datasetOut, geoOut, timingsJson, countsJson, error)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, run.TraceID, run.Status, run.DatasetOut, run.GeoOut, string(timingsJSON), string(countsJSON), run.Error)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.TraceID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT id, traceId, status, datasetOut, geoOut, timingsJson, countsJson, error, createdAt
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		row, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) GetRun(traceID string) (*internal.RunRow, error) {
	row, err := scanRun(d.conn.QueryRow(`
SELECT id, traceId, status, datasetOut, geoOut, timingsJson, countsJson, error, createdAt
FROM runs WHERE traceId = ?
`, traceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (internal.RunRow, error) {
	var (
		row                     internal.RunRow
		timingsJSON, countsJSON string
	)
	if err := s.Scan(&row.ID, &row.TraceID, &row.Status, &row.DatasetOut, &row.GeoOut, &timingsJSON, &countsJSON, &row.Error, &row.CreatedAt); err != nil {
		return internal.RunRow{}, err
	}
	if err := json.Unmarshal([]byte(timingsJSON), &row.Timings); err != nil {
		return internal.RunRow{}, fmt.Errorf("run %s timings: %w", row.TraceID, err)
	}
	if err := json.Unmarshal([]byte(countsJSON), &row.Counts); err != nil {
		return internal.RunRow{}, fmt.Errorf("run %s counts: %w", row.TraceID, err)
	}
	return row, nil
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
