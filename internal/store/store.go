// Package store persists task configurations in SQLite. Each task owns one
// document; writes replace the whole document and the last writer wins.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/goliatone/go-formscript/pkg/taskconfig"
)

// ErrNotFound reports a task without a saved configuration.
var ErrNotFound = errors.New("store: task config not found")

// Record is a stored configuration with its bookkeeping.
type Record struct {
	TaskID    string                `json:"taskId"`
	Config    taskconfig.TaskConfig `json:"config"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Store reads and writes task configurations.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to dsn and creates the schema when missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS task_configs (
			task_id    TEXT PRIMARY KEY,
			document   TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the configuration saved for taskID.
func (s *Store) Get(ctx context.Context, taskID string) (Record, error) {
	var document, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT document, updated_at FROM task_configs WHERE task_id = ?`, taskID,
	).Scan(&document, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: get %s: %w", taskID, err)
	}
	return decodeRecord(taskID, document, updated)
}

// Put saves cfg for taskID, replacing any previous document.
func (s *Store) Put(ctx context.Context, taskID string, cfg taskconfig.TaskConfig) (Record, error) {
	if taskID == "" {
		return Record{}, errors.New("store: task id is required")
	}
	document, err := taskconfig.Marshal(cfg)
	if err != nil {
		return Record{}, err
	}
	updated := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_configs (task_id, document, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		taskID, string(document), updated.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, fmt.Errorf("store: put %s: %w", taskID, err)
	}
	return Record{TaskID: taskID, Config: cfg, UpdatedAt: updated}, nil
}

// Delete removes the configuration of taskID.
func (s *Store) Delete(ctx context.Context, taskID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_configs WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", taskID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	return nil
}

// List returns every stored configuration ordered by task id.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, document, updated_at FROM task_configs ORDER BY task_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var taskID, document, updated string
		if err := rows.Scan(&taskID, &document, &updated); err != nil {
			return nil, fmt.Errorf("store: list: %w", err)
		}
		record, err := decodeRecord(taskID, document, updated)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return out, nil
}

func decodeRecord(taskID, document, updated string) (Record, error) {
	cfg, err := taskconfig.Unmarshal([]byte(document))
	if err != nil {
		return Record{}, fmt.Errorf("store: task %s: %w", taskID, err)
	}
	at, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return Record{}, fmt.Errorf("store: task %s: updated_at: %w", taskID, err)
	}
	return Record{TaskID: taskID, Config: cfg, UpdatedAt: at}, nil
}
