// Package history keeps an audit trail of dispatches in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sipeed/dispatchkit/pkg/hooks"
	"github.com/sipeed/dispatchkit/pkg/logger"
)

const schema = `CREATE TABLE IF NOT EXISTS dispatches (
	id          TEXT PRIMARY KEY,
	commander   TEXT NOT NULL,
	line        TEXT NOT NULL,
	pattern     TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	error       TEXT NOT NULL,
	actions     INTEGER NOT NULL,
	failures    TEXT NOT NULL,
	duration_ns INTEGER NOT NULL,
	at_ns       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS dispatches_at ON dispatches (at_ns);`

// Entry is one recorded dispatch.
type Entry struct {
	ID        string
	Commander string
	Line      string
	Pattern   string
	Outcome   string
	Error     string
	Actions   int
	Failures  []string
	Duration  time.Duration
	At        time.Time
}

type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; in-memory databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, e Entry) error {
	failures, err := json.Marshal(e.Failures)
	if err != nil {
		return err
	}
	if e.Failures == nil {
		failures = []byte("[]")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO dispatches VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Commander, e.Line, e.Pattern, e.Outcome, e.Error, e.Actions,
		string(failures), int64(e.Duration), e.At.UnixNano())
	return err
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, commander, line, pattern, outcome, error, actions, failures, duration_ns, at_ns
		 FROM dispatches ORDER BY at_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Entry
	for rows.Next() {
		var (
			e          Entry
			failures   string
			durationNs int64
			atNs       int64
		)
		if err := rows.Scan(&e.ID, &e.Commander, &e.Line, &e.Pattern, &e.Outcome, &e.Error,
			&e.Actions, &failures, &durationNs, &atNs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(failures), &e.Failures); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		e.Duration = time.Duration(durationNs)
		e.At = time.Unix(0, atNs)
		list = append(list, e)
	}
	return list, rows.Err()
}

// Count returns the number of entries per outcome.
func (s *Store) Count(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM dispatches GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// Prune deletes entries older than before.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dispatches WHERE at_ns < ?`, before.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Subscribe records every dispatch reported through r.
func (s *Store) Subscribe(r *hooks.HookRegistry) {
	r.OnDispatched("history", 100, func(ctx context.Context, e *hooks.DispatchedEvent) error {
		err := s.Record(ctx, Entry{
			ID:        e.DispatchID,
			Commander: e.Commander,
			Line:      strings.Join(e.Tokens, " "),
			Pattern:   e.Pattern,
			Outcome:   e.Outcome,
			Error:     e.Error,
			Actions:   e.Actions,
			Failures:  e.Failures,
			Duration:  e.Duration,
			At:        e.At,
		})
		if err != nil {
			logger.WarnCF("history", "Failed to record dispatch",
				map[string]any{"id": e.DispatchID, "error": err.Error()})
		}
		return err
	})
}
