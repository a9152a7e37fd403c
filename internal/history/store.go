// Package history records prediction runs in SQLite and exports them to
// Parquet.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/passes"
)

const (
	runsTable   = "flyby_runs"
	passesTable = "flyby_passes"

	// Fixed width so that text order is time order.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Run is one recorded prediction.
type Run struct {
	ID              string           `json:"id"`
	CreatedAt       time.Time        `json:"created_at"`
	Location        string           `json:"location"`
	Spacecraft      string           `json:"spacecraft"`
	NORADID         int              `json:"norad_id"`
	Mode            string           `json:"mode"`
	Days            float64          `json:"days"`
	MinElevationDeg float64          `json:"min_elevation_deg"`
	Status          string           `json:"status"`
	DurationMs      int64            `json:"duration_ms"`
	Passes          []passes.Summary `json:"passes"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Store is a SQLite-backed run history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path and its tables.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database at %q: %w", path, err)
	}
	// Limit SQLite to a single open connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database %q: %w", path, err)
	}

	for _, q := range []string{createRunsQuery, createPassesQuery} {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create history tables: %w", err)
		}
	}

	logger.Info("history store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

var createRunsQuery = fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		run_id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		location TEXT NOT NULL,
		spacecraft TEXT NOT NULL,
		norad_id INTEGER NOT NULL,
		mode TEXT NOT NULL,
		days REAL NOT NULL,
		min_elevation_deg REAL NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL
	);
`, runsTable)

var createPassesQuery = fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		run_id TEXT NOT NULL REFERENCES %s(run_id),
		pass_index INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		peak_time TEXT NOT NULL,
		peak_elevation_deg REAL NOT NULL,
		peak_azimuth_deg REAL NOT NULL,
		direction_sign INTEGER NOT NULL,
		PRIMARY KEY (run_id, pass_index)
	);
`, passesTable, runsTable)

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Record stores a run and its passes in one transaction.
func (s *Store) Record(ctx context.Context, r Run) error {
	if r.ID == "" {
		return errors.New("run has no ID")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s
		(run_id, created_at, location, spacecraft, norad_id, mode, days, min_elevation_deg, status, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, runsTable),
		r.ID, formatTime(r.CreatedAt), r.Location, r.Spacecraft, r.NORADID, r.Mode,
		r.Days, r.MinElevationDeg, r.Status, r.DurationMs)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	for i, p := range r.Passes {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s
			(run_id, pass_index, start_time, end_time, peak_time, peak_elevation_deg, peak_azimuth_deg, direction_sign)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, passesTable),
			r.ID, i+1, formatTime(p.StartTime), formatTime(p.EndTime), formatTime(p.PeakTime),
			p.PeakElevationDeg, p.PeakAzimuthDeg, p.DirectionSign)
		if err != nil {
			return fmt.Errorf("insert pass %d of run %s: %w", i+1, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns the newest runs first, with their passes. limit <= 0
// returns every run.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	query := fmt.Sprintf(`SELECT run_id, created_at, location, spacecraft, norad_id, mode, days,
		min_elevation_deg, status, duration_ms FROM %s ORDER BY created_at DESC, run_id`, runsTable)
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created string
		if err := rows.Scan(&r.ID, &created, &r.Location, &r.Spacecraft, &r.NORADID, &r.Mode,
			&r.Days, &r.MinElevationDeg, &r.Status, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("run %s created_at: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	// Release the single connection before the per-run pass queries.
	rows.Close()

	for i := range runs {
		if runs[i].Passes, err = s.passes(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) passes(ctx context.Context, runID string) ([]passes.Summary, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT start_time, end_time, peak_time,
		peak_elevation_deg, peak_azimuth_deg, direction_sign FROM %s WHERE run_id = ? ORDER BY pass_index`, passesTable), runID)
	if err != nil {
		return nil, fmt.Errorf("query passes of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []passes.Summary
	for rows.Next() {
		var p passes.Summary
		var start, end, peak string
		if err := rows.Scan(&start, &end, &peak, &p.PeakElevationDeg, &p.PeakAzimuthDeg, &p.DirectionSign); err != nil {
			return nil, fmt.Errorf("scan pass of run %s: %w", runID, err)
		}
		for _, f := range []struct {
			dst *time.Time
			src string
		}{{&p.StartTime, start}, {&p.EndTime, end}, {&p.PeakTime, peak}} {
			if *f.dst, err = time.Parse(timeLayout, f.src); err != nil {
				return nil, fmt.Errorf("pass of run %s: %w", runID, err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
