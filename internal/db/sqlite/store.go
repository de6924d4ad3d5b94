// Package sqlite implements db.Store on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kailas-cloud/vecsnap/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

const ddl = `
CREATE TABLE IF NOT EXISTS images (
	id        TEXT PRIMARY KEY,
	data      BLOB,
	timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_images_timestamp ON images(timestamp);

CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`

// Store implements db.Store backed by SQLite in WAL mode.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewStore opens (or creates) the database file at path.
// The schema is not created until EnsureSchema runs.
func NewStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return &Store{db: conn}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.check(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// EnsureSchema creates the images and kv tables if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.check(); err != nil {
		return &db.Error{Op: db.OpEnsureSchema, Err: err}
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return &db.Error{Op: db.OpEnsureSchema, Err: err}
	}
	return nil
}

// PutRecord inserts or replaces one image row.
func (s *Store) PutRecord(ctx context.Context, rec db.Record) error {
	if err := s.check(); err != nil {
		return &db.Error{Op: db.OpPut, Err: err}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (id, data, timestamp) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, timestamp = excluded.timestamp
	`, rec.Key, rec.Data, formatTime(rec.Timestamp))
	if err != nil {
		return &db.Error{Op: db.OpPut, Err: err}
	}
	return nil
}

// GetRecord reads one image row. A missing row is db.ErrKeyNotFound.
func (s *Store) GetRecord(ctx context.Context, key string) (db.Record, error) {
	if err := s.check(); err != nil {
		return db.Record{}, &db.Error{Op: db.OpGet, Err: err}
	}

	var (
		data []byte
		ts   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, timestamp FROM images WHERE id = ?`, key,
	).Scan(&data, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Record{}, db.ErrKeyNotFound
	}
	if err != nil {
		return db.Record{}, &db.Error{Op: db.OpGet, Err: err}
	}

	t, err := parseTime(ts)
	if err != nil {
		return db.Record{}, &db.Error{Op: db.OpGet, Err: fmt.Errorf("row %s: %w", key, err)}
	}
	return db.Record{Key: key, Data: data, Timestamp: t}, nil
}

// ListRecords returns every image row, newest first.
func (s *Store) ListRecords(ctx context.Context) ([]db.Record, error) {
	if err := s.check(); err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, timestamp FROM images ORDER BY timestamp DESC`)
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}
	defer rows.Close()

	var out []db.Record
	for rows.Next() {
		var (
			rec db.Record
			ts  string
		)
		if err := rows.Scan(&rec.Key, &rec.Data, &ts); err != nil {
			return nil, &db.Error{Op: db.OpList, Err: err}
		}
		if rec.Timestamp, err = parseTime(ts); err != nil {
			return nil, &db.Error{Op: db.OpList, Err: fmt.Errorf("row %s: %w", rec.Key, err)}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}
	return out, nil
}

// DeleteRecord removes one image row. Deleting a missing row is not an error.
func (s *Store) DeleteRecord(ctx context.Context, key string) error {
	if err := s.check(); err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, key); err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	return nil
}

// ClearRecords removes every image row.
func (s *Store) ClearRecords(ctx context.Context) error {
	if err := s.check(); err != nil {
		return &db.Error{Op: db.OpClear, Err: err}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM images`); err != nil {
		return &db.Error{Op: db.OpClear, Err: err}
	}
	return nil
}

// Get reads a kv entry.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return value, nil
}

// Set writes a kv entry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.check(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Close closes the database. Subsequent calls fail with db.ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) check() error {
	if s.closed.Load() {
		return db.ErrClosed
	}
	return nil
}

// Fixed-width UTC layout so lexical ORDER BY matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
