// Package journal keeps a local record of tool invocations in SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// OutcomeOK marks a successful call. Failed calls store their error kind.
const OutcomeOK = "ok"

const defaultLimit = 50

// timeLayout has fixed-width fractions so that created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one recorded tool call.
type Entry struct {
	ID          string    `json:"id" yaml:"id"`
	Tool        string    `json:"tool" yaml:"tool"`
	Args        string    `json:"args" yaml:"args"`
	Outcome     string    `json:"outcome" yaml:"outcome"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
	ResultCount int       `json:"result_count" yaml:"result_count"`
	DurationMs  int64     `json:"duration_ms" yaml:"duration_ms"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Query filters Recent.
type Query struct {
	Tool  string // empty = all tools
	Limit int    // 0 = default 50
}

// Recorder is what the tool registry writes to.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Store is the SQLite-backed journal.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal db: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends e. ID and CreatedAt are filled when empty.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate id: %w", err)
		}
		e.ID = id.String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeOK
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (id, tool, args, outcome, error, result_count, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Tool, e.Args, e.Outcome, e.Error, e.ResultCount, e.DurationMs,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tool, args, outcome, error, result_count, duration_ms, created_at
		 FROM calls
		 WHERE ? = '' OR tool = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		q.Tool, q.Tool, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.ID, &e.Tool, &e.Args, &e.Outcome, &e.Error, &e.ResultCount, &e.DurationMs, &created); err != nil {
			return nil, err
		}
		e.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
