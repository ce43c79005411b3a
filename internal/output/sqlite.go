package output

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/titan-sim/titan/internal/model"
)

// SchemaVersion is the current report database schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    rseed INTEGER NOT NULL,
    pseed INTEGER NOT NULL,
    nseed INTEGER NOT NULL,
    classes TEXT NOT NULL,  -- JSON array
    created_at TEXT NOT NULL
);

-- One row per step, stratum and counter
CREATE TABLE IF NOT EXISTS report (
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    t INTEGER NOT NULL,
    stratum TEXT NOT NULL,  -- JSON object of class values
    stat TEXT NOT NULL,
    value INTEGER NOT NULL,
    PRIMARY KEY (run_id, t, stratum, stat)
);
CREATE INDEX IF NOT EXISTS idx_report_stat ON report(stat, t);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// SQLiteReport stores every counter of every reported step in a SQLite
// database.
type SQLiteReport struct {
	db      *sql.DB
	c       *collector
	started bool
}

// NewSQLiteReport opens (creating if needed) the database at path.
func NewSQLiteReport(path string) (*SQLiteReport, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteReport{db: db, c: &collector{}}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err == nil {
		if version > SchemaVersion {
			return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
		}
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// Report implements model.Reporter.
func (r *SQLiteReport) Report(m *model.Model) error {
	s, err := r.c.collect(m)
	if err != nil {
		return err
	}
	ctx := context.Background()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if !r.started {
		classes, err := json.Marshal(s.Classes)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO runs (run_id, rseed, pseed, nseed, classes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			m.RunID, m.Seed, m.Pop.Seed, m.Pop.NetSeed, string(classes), time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO report (run_id, t, stratum, stat, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, st := range s.Strata {
		key := make(map[string]string, len(s.Classes))
		for i, c := range s.Classes {
			key[c] = st.Values[i]
		}
		stratum, err := json.Marshal(key)
		if err != nil {
			return err
		}
		for _, stat := range s.Keys {
			if _, err := stmt.ExecContext(ctx, m.RunID, s.T, string(stratum), stat, st.Counts[stat]); err != nil {
				return fmt.Errorf("failed to insert %s: %w", stat, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	r.started = true
	return nil
}

// Close implements model.Reporter.
func (r *SQLiteReport) Close() error { return r.db.Close() }

// Point is one step of a counter summed over strata.
type Point struct {
	RunID string `json:"run_id"`
	T     int    `json:"t"`
	Value int    `json:"value"`
}

// ReadTotals returns stat summed over strata for every run and step stored
// in the database at path, ordered by run and step.
func ReadTotals(ctx context.Context, path, stat string) ([]Point, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT run_id, t, SUM(value) FROM report WHERE stat = ? GROUP BY run_id, t ORDER BY run_id, t`, stat)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", stat, err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.RunID, &p.T, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
