package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loykin/focuspilot/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the SQLite database file. Use ":memory:" for in-memory.
type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases coherent and serializes writers
	d.SetMaxOpenConns(1)
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS focus_records(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts_ms INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			productive BOOLEAN NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_focus_records_ts ON focus_records(ts_ms);`,
		`CREATE TABLE IF NOT EXISTS kv(
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return store.Wrap("schema", err)
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) Append(ctx context.Context, rec store.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO focus_records(ts_ms, duration_ms, productive)
		VALUES(?, ?, ?);`,
		store.ToMillis(rec.Timestamp), rec.DurationMs, rec.Productive)
	return store.Wrap("append", err)
}

func (s *DB) Query(ctx context.Context, since time.Time) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts_ms, duration_ms, productive
		FROM focus_records
		WHERE ts_ms >= ?
		ORDER BY id ASC;`, store.ToMillis(since))
	if err != nil {
		return nil, store.Wrap("query", err)
	}
	defer func() { _ = rows.Close() }()
	out, err := scanRecords(rows)
	return out, store.Wrap("query", err)
}

func (s *DB) ResetAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap("reset", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM focus_records;`); err != nil {
		_ = tx.Rollback()
		return store.Wrap("reset", err)
	}
	return store.Wrap("reset", tx.Commit())
}

func (s *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?;`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, store.Wrap("get", err)
	}
	return v, true, nil
}

func (s *DB) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv(key, value, updated_at)
		VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at;`,
		key, value, time.Now().UTC())
	return store.Wrap("set", err)
}

func scanRecords(rows *sql.Rows) ([]store.Record, error) {
	out := make([]store.Record, 0)
	for rows.Next() {
		var (
			ts int64
			r  store.Record
		)
		if err := rows.Scan(&ts, &r.DurationMs, &r.Productive); err != nil {
			return nil, err
		}
		r.Timestamp = store.FromMillis(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}
