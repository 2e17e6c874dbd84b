// Package history persists analysis runs in a local SQLite database so
// past results can be listed and reopened from the CLI.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dstriage/dstriage/internal/common"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at DATETIME NOT NULL,
	session_id TEXT NOT NULL,
	analysis_type TEXT NOT NULL,
	target TEXT NOT NULL,
	status TEXT NOT NULL,
	severity TEXT NOT NULL,
	summary TEXT NOT NULL,
	envelope_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_analysis_type ON runs(analysis_type);
CREATE INDEX IF NOT EXISTS idx_runs_severity ON runs(severity);
`

// Run is one stored analysis run. Target is what was analyzed, usually a
// file or bundle path. Envelope is the full standardized result.
type Run struct {
	ID           int64
	CreatedAt    time.Time
	SessionID    string
	AnalysisType string
	Target       string
	Status       string
	Severity     string
	Summary      string
	Envelope     *common.StandardizedOutput
}

// Store is a SQLite-backed run archive.
type Store struct {
	conn *sql.DB
}

// Open opens (creating if needed) the run database at dbPath and applies
// the schema. WAL mode keeps concurrent readers off the writer's back.
func Open(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Save stores one run and returns its row ID. A nil envelope is rejected;
// degraded results should be saved as error envelopes, not dropped rows.
func (s *Store) Save(run *Run) (int64, error) {
	if run == nil || run.Envelope == nil {
		return 0, errors.New("history: run has no envelope")
	}

	envelopeJSON, err := json.Marshal(run.Envelope)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.conn.Exec(`
		INSERT INTO runs (
			created_at, session_id, analysis_type, target,
			status, severity, summary, envelope_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		createdAt,
		run.SessionID,
		run.AnalysisType,
		run.Target,
		run.Status,
		run.Severity,
		run.Summary,
		string(envelopeJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return res.LastInsertId()
}

// Get retrieves a single run by ID. A missing ID returns (nil, nil).
func (s *Store) Get(id int64) (*Run, error) {
	row := s.conn.QueryRow(`
		SELECT id, created_at, session_id, analysis_type, target,
		       status, severity, summary, envelope_json
		FROM runs
		WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// List returns runs newest first. analysisType narrows the listing when
// non-empty; limit <= 0 means 50.
func (s *Store) List(analysisType string, limit, offset int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, created_at, session_id, analysis_type, target,
		       status, severity, summary, envelope_json
		FROM runs`
	args := make([]any, 0, 3)
	if analysisType != "" {
		query += " WHERE analysis_type = ?"
		args = append(args, analysisType)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Count returns the total number of stored runs.
func (s *Store) Count() (int, error) {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}

// Delete removes one run. It reports whether a row existed.
func (s *Store) Delete(id int64) (bool, error) {
	res, err := s.conn.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Prune deletes everything but the newest keep runs and returns how many
// rows went away.
func (s *Store) Prune(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.conn.Exec(`
		DELETE FROM runs
		WHERE id NOT IN (
			SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var envelopeJSON string

	err := row.Scan(
		&run.ID,
		&run.CreatedAt,
		&run.SessionID,
		&run.AnalysisType,
		&run.Target,
		&run.Status,
		&run.Severity,
		&run.Summary,
		&envelopeJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(envelopeJSON), &run.Envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return &run, nil
}
