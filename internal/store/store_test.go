package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/loykin/focuspilot/internal/store"
	"github.com/loykin/focuspilot/internal/store/storetest"
)

func TestMemoryContract(t *testing.T) {
	storetest.Run(t, store.NewMemory())
}

func TestMemoryClosed(t *testing.T) {
	m := store.NewMemory()
	_ = m.Close()
	err := m.Append(context.Background(), store.Record{Timestamp: time.Now()})
	var se *store.Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *store.Error, got %v", err)
	}
	if se.Op != "append" || !errors.Is(err, store.ErrClosed) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWrap(t *testing.T) {
	if store.Wrap("append", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
	base := fmt.Errorf("disk full")
	err := store.Wrap("append", base)
	if err.Error() != "store append: disk full" {
		t.Fatalf("unexpected message: %s", err)
	}
	// already wrapped errors keep their original op
	again := store.Wrap("query", err)
	var se *store.Error
	if !errors.As(again, &se) || se.Op != "append" {
		t.Fatalf("double wrap changed op: %v", again)
	}
	if !errors.Is(again, base) {
		t.Fatalf("cause lost")
	}
}

func TestMillisRoundTrip(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	if got := store.FromMillis(store.ToMillis(ts)); !got.Equal(ts) {
		t.Fatalf("got %v want %v", got, ts)
	}
}
