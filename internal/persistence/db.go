// Package persistence provides SQLite storage for simulation run output:
// per-step location counts, arrival statistics and scenario events. It does
// not store simulation state; a run cannot be resumed from it.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/exodus/internal/config"
	"github.com/talgya/exodus/internal/engine"
)

// DB wraps a SQLite connection for run output.
type DB struct {
	conn *sqlx.DB
}

// Run describes one recorded simulation run.
type Run struct {
	ID        string `db:"id"`
	Seed      string `db:"seed"`
	Scenario  string `db:"scenario"`
	StartedAt string `db:"started_at"` // RFC 3339, UTC
	Config    string `db:"config_json"`
}

// StepRow is one step's aggregate output.
type StepRow struct {
	Step           int     `db:"step"`
	Total          int     `db:"total"`
	Arrivals       int     `db:"arrivals"`
	AvgTravelSteps float64 `db:"avg_travel_steps"`
	AvgTravelDays  float64 `db:"avg_travel_days"`
}

// EventRow is a scenario event such as a conflict starting.
type EventRow struct {
	Step     int    `db:"step"`
	Location string `db:"location"`
	Kind     string `db:"kind"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		scenario TEXT NOT NULL,
		started_at TEXT NOT NULL,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS location_counts (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		location TEXT NOT NULL,
		agents INTEGER NOT NULL,
		population INTEGER NOT NULL,
		PRIMARY KEY (run_id, step, location)
	);

	CREATE TABLE IF NOT EXISTS step_stats (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		total INTEGER NOT NULL,
		arrivals INTEGER NOT NULL,
		avg_travel_steps REAL NOT NULL,
		avg_travel_days REAL NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		location TEXT NOT NULL,
		kind TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, step);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// StartRun registers a new run and returns its ID.
func (db *DB) StartRun(seed uint64, scenario string, cfg config.Config) (string, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	id := uuid.NewString()
	_, err = db.conn.Exec(
		"INSERT INTO runs (id, seed, scenario, started_at, config_json) VALUES (?, ?, ?, ?, ?)",
		id, strconv.FormatUint(seed, 10), scenario, time.Now().UTC().Format(time.RFC3339), string(cfgJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	slog.Info("run registered", "run", id, "seed", seed, "scenario", scenario)
	return id, nil
}

// SaveStep writes one step's location counts and aggregates.
func (db *DB) SaveStep(runID string, snap engine.StepSnapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO location_counts
		(run_id, step, location, agents, population) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range snap.Locations {
		if _, err := stmt.Exec(runID, snap.Step, l.Name, l.Agents, l.Population); err != nil {
			return fmt.Errorf("insert count %s@%d: %w", l.Name, snap.Step, err)
		}
	}

	var arrivals int
	var avgSteps, avgDays float64
	if snap.Arrivals != nil {
		arrivals = snap.Arrivals.Arrivals
		avgSteps = snap.Arrivals.AvgTravelSteps
		avgDays = snap.Arrivals.AvgTravelDays
	}
	_, err = tx.Exec(`INSERT OR REPLACE INTO step_stats
		(run_id, step, total, arrivals, avg_travel_steps, avg_travel_days) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, snap.Step, snap.Total, arrivals, avgSteps, avgDays,
	)
	if err != nil {
		return fmt.Errorf("insert step %d: %w", snap.Step, err)
	}

	return tx.Commit()
}

// SaveEvent appends a scenario event.
func (db *DB) SaveEvent(runID string, step int, location, kind string) error {
	_, err := db.conn.Exec(
		"INSERT INTO events (run_id, step, location, kind) VALUES (?, ?, ?, ?)",
		runID, step, location, kind,
	)
	return err
}

// GetRun loads a run's metadata.
func (db *DB) GetRun(runID string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT id, seed, scenario, started_at, config_json FROM runs WHERE id = ?", runID)
	return r, err
}

// LocationSeries returns a location's agent count for every recorded step.
func (db *DB) LocationSeries(runID, location string) ([]int, error) {
	var counts []int
	err := db.conn.Select(&counts,
		"SELECT agents FROM location_counts WHERE run_id = ? AND location = ? ORDER BY step",
		runID, location,
	)
	return counts, err
}

// Steps returns a run's per-step aggregates in step order.
func (db *DB) Steps(runID string) ([]StepRow, error) {
	var rows []StepRow
	err := db.conn.Select(&rows,
		`SELECT step, total, arrivals, avg_travel_steps, avg_travel_days
		 FROM step_stats WHERE run_id = ? ORDER BY step`,
		runID,
	)
	return rows, err
}

// Events returns a run's scenario events in order.
func (db *DB) Events(runID string) ([]EventRow, error) {
	var rows []EventRow
	err := db.conn.Select(&rows,
		"SELECT step, location, kind FROM events WHERE run_id = ? ORDER BY id",
		runID,
	)
	return rows, err
}
