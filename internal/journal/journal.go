// Package journal keeps a SQLite history of every step attempt. The
// completion record under the state root is authoritative for resumption;
// the journal exists for the status and history views, so writes are best
// effort and a nil journal is a valid no-op.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Step kinds recorded per attempt.
const (
	KindRunCommand = "run-command"
	KindManualStep = "manual-step"
)

// Journal provides SQLite-backed attempt history.
type Journal struct {
	db *sql.DB
}

// Open creates the journal database at the given path, creating parent
// directories and the schema as needed.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

// Attempt is one recorded step execution.
type Attempt struct {
	ID         string
	Task       string
	TargetIdx  int
	StepIdx    int
	StepKind   string
	Detail     string
	Outcome    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Record inserts one attempt. The ID is assigned here. Recording into a
// nil journal is a no-op.
func (j *Journal) Record(a Attempt) error {
	if j == nil {
		return nil
	}
	_, err := j.db.Exec(`
		INSERT INTO attempts (id, task, target_idx, step_idx, step_kind, detail, outcome, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.NewString(),
		a.Task,
		a.TargetIdx,
		a.StepIdx,
		a.StepKind,
		a.Detail,
		a.Outcome,
		a.StartedAt,
		a.FinishedAt,
	)
	return err
}

// ListAttempts returns the most recent attempts for a task, newest first.
// A limit of 0 returns everything.
func (j *Journal) ListAttempts(task string, limit int) ([]Attempt, error) {
	if j == nil {
		return nil, nil
	}
	query := `
		SELECT id, task, target_idx, step_idx, step_kind, detail, outcome, started_at, finished_at
		FROM attempts
		WHERE task = ?
		ORDER BY started_at DESC, id
	`
	args := []any{task}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.Task, &a.TargetIdx, &a.StepIdx, &a.StepKind,
			&a.Detail, &a.Outcome, &a.StartedAt, &a.FinishedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
