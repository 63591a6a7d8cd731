package net

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	loss       TEXT NOT NULL,
	layers     INTEGER NOT NULL,
	params     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS batches (
	run_id TEXT NOT NULL,
	epoch  INTEGER NOT NULL,
	batch  INTEGER NOT NULL,
	loss   REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS epochs (
	run_id  TEXT NOT NULL,
	epoch   INTEGER NOT NULL,
	loss    REAL NOT NULL,
	seconds REAL NOT NULL
);
`

// SQLiteLogger records per-batch and per-epoch loss history in a SQLite
// database. Every Fit call is a new run tagged with a fresh RunID.
type SQLiteLogger struct {
	BaseCallback
	Path  string
	RunID string

	db    *sql.DB
	epoch int
	start time.Time
	err   error
}

// NewSQLiteLogger creates a logger writing to the database at path.
func NewSQLiteLogger(path string) *SQLiteLogger {
	return &SQLiteLogger{Path: path}
}

// Err returns the first error hit while logging.
func (c *SQLiteLogger) Err() error { return c.err }

func (c *SQLiteLogger) fail(m *Sequential, err error) {
	if c.err == nil {
		c.err = err
	}
	fmt.Fprintf(m.Output(), "SQLiteLogger: %v\n", err)
}

func (c *SQLiteLogger) OnTrainBegin(m *Sequential) {
	c.err = nil
	db, err := sql.Open("sqlite", c.Path)
	if err != nil {
		c.fail(m, fmt.Errorf("failed to open %s: %w", c.Path, err))
		return
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		c.fail(m, fmt.Errorf("failed to create schema: %w", err))
		return
	}

	c.RunID = uuid.NewString()
	c.start = time.Now()
	_, err = db.Exec(`INSERT INTO runs (run_id, started_at, loss, layers, params) VALUES (?, ?, ?, ?, ?)`,
		c.RunID, c.start.UTC().Format(time.RFC3339Nano), m.lossName, len(m.Layers()), m.ParameterCount())
	if err != nil {
		db.Close()
		c.fail(m, fmt.Errorf("failed to record run: %w", err))
		return
	}
	c.db = db
}

func (c *SQLiteLogger) OnEpochBegin(epoch int, m *Sequential) {
	c.epoch = epoch
}

func (c *SQLiteLogger) OnBatchEnd(batch int, loss float64, m *Sequential) {
	if c.db == nil {
		return
	}
	if _, err := c.db.Exec(`INSERT INTO batches (run_id, epoch, batch, loss) VALUES (?, ?, ?, ?)`,
		c.RunID, c.epoch, batch, loss); err != nil {
		c.fail(m, fmt.Errorf("failed to write batch: %w", err))
	}
}

func (c *SQLiteLogger) OnEpochEnd(epoch int, loss float64, m *Sequential) {
	if c.db == nil {
		return
	}
	if _, err := c.db.Exec(`INSERT INTO epochs (run_id, epoch, loss, seconds) VALUES (?, ?, ?, ?)`,
		c.RunID, epoch, loss, time.Since(c.start).Seconds()); err != nil {
		c.fail(m, fmt.Errorf("failed to write epoch: %w", err))
	}
}

func (c *SQLiteLogger) OnTrainEnd(m *Sequential) {
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.fail(m, fmt.Errorf("failed to close: %w", err))
		}
		c.db = nil
	}
}

// EpochRecord is one row of recorded epoch history.
type EpochRecord struct {
	Epoch   int
	Loss    float64
	Seconds float64
}

// ReadEpochHistory returns the epoch history of runID from the database at
// path, in epoch order.
func ReadEpochHistory(path, runID string) ([]EpochRecord, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT epoch, loss, seconds FROM epochs WHERE run_id = ? ORDER BY epoch`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query epochs: %w", err)
	}
	defer rows.Close()

	var out []EpochRecord
	for rows.Next() {
		var r EpochRecord
		if err := rows.Scan(&r.Epoch, &r.Loss, &r.Seconds); err != nil {
			return nil, fmt.Errorf("failed to scan epoch: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountBatches returns the number of batch rows recorded for runID.
func CountBatches(path, runID string) (int, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM batches WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count batches: %w", err)
	}
	return n, nil
}
