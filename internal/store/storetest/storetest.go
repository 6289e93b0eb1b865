// Package storetest holds behaviour checks shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/loykin/focuspilot/internal/store"
)

// Run exercises s against the Log and KV contracts. s must be empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	recs := []store.Record{
		{Timestamp: base, DurationMs: 1000, Productive: true},
		{Timestamp: base.Add(2 * time.Minute), DurationMs: 5000, Productive: false},
		// out of timestamp order on purpose: insertion order must win
		{Timestamp: base.Add(1 * time.Minute), DurationMs: 7000, Productive: true},
		{Timestamp: base.Add(1 * time.Minute), DurationMs: 7000, Productive: true},
	}
	for i, r := range recs {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	all, err := s.Query(ctx, time.Time{})
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != len(recs) {
		t.Fatalf("expected %d records (no dedup), got %d", len(recs), len(all))
	}
	for i := range recs {
		if !all[i].Timestamp.Equal(recs[i].Timestamp) || all[i].DurationMs != recs[i].DurationMs || all[i].Productive != recs[i].Productive {
			t.Fatalf("record %d mismatch: got %+v want %+v", i, all[i], recs[i])
		}
	}

	since, err := s.Query(ctx, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("query since: %v", err)
	}
	if len(since) != 3 {
		t.Fatalf("expected 3 records at or after the cutoff, got %d", len(since))
	}
	if since[0].DurationMs != 5000 {
		t.Fatalf("insertion order not kept: %+v", since)
	}

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("get missing: ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, store.KeyConfig, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, store.KeyConfig, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := s.Get(ctx, store.KeyConfig)
	if err != nil || !ok || string(v) != `{"a":2}` {
		t.Fatalf("get: %q ok=%v err=%v", v, ok, err)
	}

	if err := s.ResetAll(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	after, err := s.Query(ctx, time.Time{})
	if err != nil {
		t.Fatalf("query after reset: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("expected empty log after reset, got %d", len(after))
	}
	// bookkeeping keys survive a log reset
	if _, ok, _ := s.Get(ctx, store.KeyConfig); !ok {
		t.Fatalf("reset must only clear the record log")
	}
	if err := s.Append(ctx, store.Record{Timestamp: base, DurationMs: 1}); err != nil {
		t.Fatalf("append after reset: %v", err)
	}
}
