package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/focuspilot/internal/store"
)

// DB implements store.Store on PostgreSQL through the pgx stdlib driver.
type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS focus_records(
			id BIGSERIAL PRIMARY KEY,
			ts_ms BIGINT NOT NULL,
			duration_ms BIGINT NOT NULL,
			productive BOOLEAN NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_focus_records_ts ON focus_records(ts_ms);`,
		`CREATE TABLE IF NOT EXISTS focus_kv(
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return store.Wrap("schema", err)
		}
	}
	return nil
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) Append(ctx context.Context, rec store.Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO focus_records(ts_ms, duration_ms, productive)
		VALUES($1,$2,$3);`,
		store.ToMillis(rec.Timestamp), rec.DurationMs, rec.Productive)
	return store.Wrap("append", err)
}

func (p *DB) Query(ctx context.Context, since time.Time) ([]store.Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT ts_ms, duration_ms, productive
		FROM focus_records
		WHERE ts_ms >= $1
		ORDER BY id ASC;`, store.ToMillis(since))
	if err != nil {
		return nil, store.Wrap("query", err)
	}
	defer func() { _ = rows.Close() }()
	out := make([]store.Record, 0)
	for rows.Next() {
		var (
			ts int64
			r  store.Record
		)
		if err := rows.Scan(&ts, &r.DurationMs, &r.Productive); err != nil {
			return nil, store.Wrap("query", err)
		}
		r.Timestamp = store.FromMillis(ts)
		out = append(out, r)
	}
	return out, store.Wrap("query", rows.Err())
}

// ResetAll uses TRUNCATE inside a transaction so concurrent readers see
// either the full log or an empty one.
func (p *DB) ResetAll(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap("reset", err)
	}
	if _, err := tx.ExecContext(ctx, `TRUNCATE focus_records;`); err != nil {
		_ = tx.Rollback()
		return store.Wrap("reset", err)
	}
	return store.Wrap("reset", tx.Commit())
}

func (p *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM focus_kv WHERE key=$1;`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, store.Wrap("get", err)
	}
	return v, true, nil
}

func (p *DB) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO focus_kv(key, value, updated_at)
		VALUES($1,$2,$3)
		ON CONFLICT(key) DO UPDATE SET
			value=EXCLUDED.value,
			updated_at=EXCLUDED.updated_at;`,
		key, value, time.Now().UTC())
	return store.Wrap("set", err)
}
