// Package state persists replsnip's local state in SQLite.
//
// It remembers the last snippet picked for each save-as key so the picker can
// preselect it, and keeps a journal of finished evaluations.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/replsnip/internal/repl"

	_ "modernc.org/sqlite" // sqlite driver (pure Go)
)

// Store is the SQLite backed state store.
type Store struct {
	db   *sql.DB
	path string
}

var _ repl.Journal = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// In-memory databases exist per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the path the store was opened with.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SavePick remembers label as the last pick for saveAs.
func (s *Store) SavePick(ctx context.Context, saveAs, label string) error {
	if saveAs == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO picks (save_as, label, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(save_as) DO UPDATE SET label = excluded.label, updated_at = excluded.updated_at`,
		saveAs, label, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save pick: %w", err)
	}
	return nil
}

// LastPick returns the last label picked for saveAs, or "" if there is none.
func (s *Store) LastPick(ctx context.Context, saveAs string) (string, error) {
	var label string
	err := s.db.QueryRowContext(ctx, `SELECT label FROM picks WHERE save_as = ?`, saveAs).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load pick: %w", err)
	}
	return label, nil
}

// EvaluationRecord is a journaled evaluation.
type EvaluationRecord struct {
	ID        string        `json:"id"`
	Target    string        `json:"target"`
	NS        string        `json:"ns"`
	Code      string        `json:"code"`
	Value     string        `json:"value,omitempty"`
	Err       string        `json:"err,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// RecordEvaluation appends a finished evaluation to the journal.
func (s *Store) RecordEvaluation(ctx context.Context, e repl.Evaluation) error {
	var value, errText string
	if e.Result != nil {
		value = e.Result.Value
		errText = e.Result.Err
	}
	if e.Err != nil && errText == "" {
		errText = e.Err.Error()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (id, target, ns, code, value, err, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), e.Target, e.NS, e.Code, value, errText,
		e.Duration.Milliseconds(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record evaluation: %w", err)
	}
	return nil
}

// RecentEvaluations returns up to limit evaluations, newest first.
func (s *Store) RecentEvaluations(ctx context.Context, limit int) ([]EvaluationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target, ns, code, value, err, duration_ms, created_at
		 FROM evaluations ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []EvaluationRecord
	for rows.Next() {
		var r EvaluationRecord
		var ms int64
		if err := rows.Scan(&r.ID, &r.Target, &r.NS, &r.Code, &r.Value, &r.Err, &ms, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		records = append(records, r)
	}
	return records, rows.Err()
}
