package deadletter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists dead letters to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) a dead letter database.
// The path should be a file path (e.g., "./deadletters.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// :memory: databases are per-connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dead_letters (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			event_name TEXT NOT NULL,
			listener_id INTEGER NOT NULL,
			once INTEGER NOT NULL,
			payload BLOB NOT NULL,
			error TEXT NOT NULL,
			panicked INTEGER NOT NULL,
			failed_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_dead_letters_event
		ON dead_letters(event_name)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	payload := rec.Payload
	if payload == nil {
		payload = []byte{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dead_letters (id, event_name, listener_id, once, payload, error, panicked, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			event_name = excluded.event_name,
			listener_id = excluded.listener_id,
			once = excluded.once,
			payload = excluded.payload,
			error = excluded.error,
			panicked = excluded.panicked,
			failed_at = excluded.failed_at
	`, rec.ID, rec.EventName, int64(rec.ListenerID), boolToInt(rec.Once), payload,
		rec.Error, boolToInt(rec.Panicked), rec.FailedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save dead letter: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, event_name, listener_id, once, payload, error, panicked, failed_at
		FROM dead_letters WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load dead letter: %w", err)
	}
	return rec, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, q Query) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT id, event_name, listener_id, once, payload, error, panicked, failed_at FROM dead_letters`)
	if q.EventName != "" {
		sb.WriteString(` WHERE event_name = ?`)
		args = append(args, q.EventName)
	}
	sb.WriteString(` ORDER BY seq`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return out, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete dead letter: %w", err)
	}
	return nil
}

// Purge implements Store.
func (s *SQLiteStore) Purge(ctx context.Context, event string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var (
		res sql.Result
		err error
	)
	if event == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM dead_letters`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE event_name = ?`, event)
	}
	if err != nil {
		return 0, fmt.Errorf("purge dead letters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge dead letters: %w", err)
	}
	return int(n), nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		rec      Record
		listener int64
		once     int
		panicked int
		failedAt string
	)
	if err := sc.Scan(&rec.ID, &rec.EventName, &listener, &once, &rec.Payload, &rec.Error, &panicked, &failedAt); err != nil {
		return nil, err
	}
	rec.ListenerID = uint64(listener)
	rec.Once = once != 0
	rec.Panicked = panicked != 0
	rec.FailedAt, _ = time.Parse(time.RFC3339Nano, failedAt)
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
