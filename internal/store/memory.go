package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store. It is used for tests and for the "memory"
// DSN when nothing should survive a restart.
type Memory struct {
	mu      sync.RWMutex
	records []Record
	kv      map[string][]byte
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{kv: make(map[string][]byte)}
}

func (m *Memory) EnsureSchema(context.Context) error { return nil }

func (m *Memory) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return &Error{Op: "append", Err: ErrClosed}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) Query(_ context.Context, since time.Time) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, &Error{Op: "query", Err: ErrClosed}
	}
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) ResetAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return &Error{Op: "reset", Err: ErrClosed}
	}
	m.records = nil
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, &Error{Op: "get", Err: ErrClosed}
	}
	v, ok := m.kv[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return &Error{Op: "set", Err: ErrClosed}
	}
	m.kv[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
