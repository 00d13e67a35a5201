// Package journal records one row per flushed mail batch in a SQLite database.
//
// The journal is write-mostly: the engine never reads it back, the history
// command does.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome is what happened to a flushed batch.
type Outcome string

// Outcomes.
const (
	OutcomeShown     Outcome = "shown"
	OutcomeInhibited Outcome = "inhibited"
	OutcomeFailed    Outcome = "failed"
)

// FileName is the journal database name inside the state directory.
const FileName = "journal.db"

// DefaultMaxRows bounds the journal when no limit is configured.
const DefaultMaxRows = 1000

// ErrInvalidEntry indicates an entry that cannot be recorded.
var ErrInvalidEntry = errors.New("invalid journal entry")

var validOutcomes = map[Outcome]bool{
	OutcomeShown:     true,
	OutcomeInhibited: true,
	OutcomeFailed:    true,
}

// Entry is one journal row.
type Entry struct {
	ID           string
	Maildir      string
	RelativePath string
	MessageCount int
	Unseen       int
	Outcome      Outcome
	CreatedAt    time.Time
}

// Recorder is implemented by Journal. The engine depends on this so it can
// run without a journal.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Journal is a SQLite-backed batch journal.
type Journal struct {
	db      *sql.DB
	maxRows int
}

// Open opens or creates the journal at dbPath, keeping at most maxRows rows.
func Open(dbPath string, maxRows int) (*Journal, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("journal: db path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	j := &Journal{db: db, maxRows: maxRows}
	if err := j.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	if _, err := j.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("journal: set busy timeout: %w", err)
	}
	if _, err := j.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("journal: create schema: %w", err)
	}
	return nil
}

// Close closes the underlying SQLite connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends e and trims the journal to its row limit.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if err := validateEntry(e); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, insertBatchSQL,
		e.ID, e.Maildir, e.RelativePath, e.MessageCount, e.Unseen, string(e.Outcome),
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("journal: record batch: %w", err)
	}
	if _, err := j.db.ExecContext(ctx, trimBatchesSQL, j.maxRows); err != nil {
		return fmt.Errorf("journal: trim: %w", err)
	}
	return nil
}

// List returns up to limit rows, newest first. A non-empty maildir filters by
// absolute maildir path.
func (j *Journal) List(ctx context.Context, limit int, maildir string) ([]Entry, error) {
	if limit <= 0 {
		limit = j.maxRows
	}
	var (
		rows *sql.Rows
		err  error
	)
	if maildir != "" {
		rows, err = j.db.QueryContext(ctx, listBatchesForMaildirSQL, maildir, limit)
	} else {
		rows, err = j.db.QueryContext(ctx, listBatchesSQL, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			outcome string
			created string
		)
		if err := rows.Scan(&e.ID, &e.Maildir, &e.RelativePath, &e.MessageCount, &e.Unseen, &outcome, &created); err != nil {
			return nil, fmt.Errorf("journal: scan row: %w", err)
		}
		e.Outcome = Outcome(outcome)
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("journal: parse created_at %q: %w", created, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	return entries, nil
}

// Count returns the number of rows.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, countBatchesSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal: count: %w", err)
	}
	return n, nil
}

func validateEntry(e Entry) error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.Maildir) == "" {
		return fmt.Errorf("%w: maildir cannot be empty", ErrInvalidEntry)
	}
	if e.MessageCount <= 0 {
		return fmt.Errorf("%w: message count must be positive", ErrInvalidEntry)
	}
	if !validOutcomes[e.Outcome] {
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidEntry, e.Outcome)
	}
	return nil
}
