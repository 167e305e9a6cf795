// Package runlog records pipeline runs and their per-stage events in a
// SQLite ledger kept inside the shared Intermediate workspace. The ledger is
// observability only: writes are best effort and never fail a run.
package runlog

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// FileName is the ledger database file inside the Intermediate workspace.
const FileName = "runlog.db"

// Stage event kinds.
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

//go:embed schema.sql
var schemaSQL string

// Log is an open run ledger.
type Log struct {
	db *sql.DB
}

// Open opens (creating if necessary) the ledger at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize run ledger schema: %w", err)
	}
	return &Log{db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// StartRun records a new run for the named dataset and returns its ID.
func (l *Log) StartRun(dataset string) (string, error) {
	if l == nil {
		return uuid.NewString(), nil
	}
	runID := uuid.NewString()
	_, err := l.db.Exec("INSERT INTO runs (run_id, dataset) VALUES (?, ?)", runID, dataset)
	if err != nil {
		return runID, fmt.Errorf("record run start: %w", err)
	}
	return runID, nil
}

// StageEvent appends one stage event to a run's trail.
func (l *Log) StageEvent(runID, stage, event, detail string) error {
	if l == nil {
		return nil
	}
	_, err := l.db.Exec(
		"INSERT INTO stage_events (run_id, stage, event, detail) VALUES (?, ?, ?, ?)",
		runID, stage, event, detail,
	)
	if err != nil {
		return fmt.Errorf("record stage event: %w", err)
	}
	return nil
}

// FinishRun marks a run's terminal status.
func (l *Log) FinishRun(runID string, ok bool, failedStage string) error {
	if l == nil {
		return nil
	}
	status := "succeeded"
	if !ok {
		status = "failed"
	}
	_, err := l.db.Exec(
		"UPDATE runs SET status = ?, failed_stage = ?, finished_at = CURRENT_TIMESTAMP WHERE run_id = ?",
		status, failedStage, runID,
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// Event is one ledger row, read back for inspection.
type Event struct {
	Stage  string
	Event  string
	Detail string
}

// RunEvents returns a run's stage events in insertion order.
func (l *Log) RunEvents(runID string) ([]Event, error) {
	rows, err := l.db.Query(
		"SELECT stage, event, COALESCE(detail, '') FROM stage_events WHERE run_id = ? ORDER BY event_id",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Stage, &e.Event, &e.Detail); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// RunStatus returns a run's terminal status and failed stage, if any.
func (l *Log) RunStatus(runID string) (status, failedStage string, err error) {
	row := l.db.QueryRow("SELECT status, COALESCE(failed_stage, '') FROM runs WHERE run_id = ?", runID)
	if err := row.Scan(&status, &failedStage); err != nil {
		return "", "", err
	}
	return status, failedStage, nil
}
