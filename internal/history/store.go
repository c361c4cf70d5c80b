// Package history keeps a SQLite ledger of run, launch and aggregate
// invocations so earlier outcomes can be compared without the artifacts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/josephgoksu/taskfleet/internal/task"
)

// Run kinds.
const (
	KindRun       = "run"
	KindLaunch    = "launch"
	KindAggregate = "aggregate"
)

// Run is one recorded invocation.
type Run struct {
	ID         string
	Kind       string
	Detail     string // strategy/engine, terminal flavor, report path
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     task.Counts
	ExitCode   int
}

// ItemRecord is one item outcome of a recorded run.
type ItemRecord struct {
	RunID    string
	TaskID   string
	Status   task.Status
	Engine   string
	Duration time.Duration
	Notes    string
}

// Store is the SQLite-backed ledger.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path. ":memory:" gives a
// private in-memory ledger.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// one connection: an in-memory database is per connection, and file
	// writers serialize anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		blocked INTEGER NOT NULL DEFAULT 0,
		exit_code INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS run_items (
		run_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		status TEXT NOT NULL,
		engine TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, task_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores r and its per-item results in one transaction. An empty ID is
// filled with a fresh UUID, which is returned.
func (s *Store) Record(ctx context.Context, r Run, results []task.TaskResult) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, detail, started_at, finished_at, total, completed, failed, blocked, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.Detail,
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Counts.Total, r.Counts.Completed, r.Counts.Failed, r.Counts.Blocked, r.ExitCode)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, res := range results {
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO run_items (run_id, task_id, status, engine, duration_ms, notes)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, res.TaskID, string(res.Status), res.Engine, res.Duration.Milliseconds(), res.Notes)
		if err != nil {
			return "", fmt.Errorf("insert item %s: %w", res.TaskID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return r.ID, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, detail, started_at, finished_at, total, completed, failed, blocked, exit_code
		FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Kind, &r.Detail, &started, &finished,
			&r.Counts.Total, &r.Counts.Completed, &r.Counts.Failed, &r.Counts.Blocked, &r.ExitCode); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		r.Counts.Pending = r.Counts.Total - r.Counts.Finished()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Items returns the recorded item outcomes of run id, ordered by task id.
func (s *Store) Items(ctx context.Context, runID string) ([]ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, task_id, status, engine, duration_ms, notes
		FROM run_items WHERE run_id = ? ORDER BY task_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []ItemRecord
	for rows.Next() {
		var rec ItemRecord
		var status string
		var ms int64
		if err := rows.Scan(&rec.RunID, &rec.TaskID, &status, &rec.Engine, &ms, &rec.Notes); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		rec.Status = task.Status(status)
		rec.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}
