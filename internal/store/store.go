package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Keys of the abstract persisted layout besides the record log itself.
const (
	KeyConfig       = "config"
	KeyLastReminder = "lastReminderTimestamp"
	KeyFocusTimer   = "focusTimerEnd"
	KeySnoozeUntil  = "snoozeUntil"
	KeyOptionsTab   = "optionsTab"
)

// Record is one closed-out interval of attention. Records are immutable and
// only ever removed all at once by ResetAll.
type Record struct {
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"durationMs"`
	Productive bool      `json:"productive"`
}

// Log is the append-only focus record log.
type Log interface {
	// Append adds rec to the end of the log. It never reorders or deduplicates.
	Append(ctx context.Context, rec Record) error
	// Query returns records with Timestamp >= since in insertion order.
	Query(ctx context.Context, since time.Time) ([]Record, error)
	// ResetAll atomically clears the log.
	ResetAll(ctx context.Context) error
}

// KV holds small bookkeeping values (settings override, UI timestamps).
type KV interface {
	// Get returns ok=false when the key has never been set.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Store is the full persistence surface used by the engine.
type Store interface {
	Log
	KV
	EnsureSchema(ctx context.Context) error
	Close() error
}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Error is returned for any persistence failure. Callers treat it as
// best-effort: the in-memory transition proceeds and the record may be lost.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err, otherwise an *Error for op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// ToMillis and FromMillis convert timestamps to the millisecond epoch used in
// the SQL schemas and the persisted bookkeeping keys.
func ToMillis(t time.Time) int64 { return t.UnixMilli() }

func FromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
