package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/focuspilot/internal/store"
	"github.com/loykin/focuspilot/internal/store/storetest"
)

func TestSQLiteContract(t *testing.T) {
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	storetest.Run(t, db)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.db")
	ctx := context.Background()

	db, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	ts := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	if err := db.Append(ctx, store.Record{Timestamp: ts, DurationMs: 12000, Productive: true}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := db.Set(ctx, store.KeyLastReminder, []byte("1700000000000")); err != nil {
		t.Fatalf("set: %v", err)
	}
	_ = db.Close()

	db2, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = db2.Close() })
	if err := db2.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema again: %v", err)
	}
	got, err := db2.Query(ctx, ts)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].DurationMs != 12000 || !got[0].Productive || !got[0].Timestamp.Equal(ts) {
		t.Fatalf("unexpected records: %+v", got)
	}
	v, ok, err := db2.Get(ctx, store.KeyLastReminder)
	if err != nil || !ok || string(v) != "1700000000000" {
		t.Fatalf("kv lost: %q %v %v", v, ok, err)
	}
}

func TestSQLiteErrorsAreStoreErrors(t *testing.T) {
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// no schema: every operation fails with a store error
	err = db.Append(context.Background(), store.Record{Timestamp: time.Now()})
	var se *store.Error
	if !errors.As(err, &se) || se.Op != "append" {
		t.Fatalf("expected append store error, got %v", err)
	}
	_ = db.Close()
	_, err = db.Query(context.Background(), time.Time{})
	if !errors.As(err, &se) {
		t.Fatalf("expected store error after close, got %v", err)
	}
}

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
