// Package tabs keeps the last known URL of every browser tab the activity
// source has reported, independent of which tab is being tracked.
package tabs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var ErrUnknownTab = errors.New("unknown tab")

type Tab struct {
	ID        int       `json:"id"`
	WindowID  int       `json:"windowId"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Registry struct {
	mu   sync.RWMutex
	tabs map[int]Tab
	now  func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{tabs: make(map[int]Tab), now: time.Now}
}

// SetClock replaces the time source used for UpdatedAt.
func (r *Registry) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Upsert records the tab's window and URL. An empty url keeps the previous
// URL so that activation events without a URL do not erase knowledge.
func (r *Registry) Upsert(id, windowID int, url string) Tab {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tabs[id]
	if !ok {
		t = Tab{ID: id}
	}
	if windowID != 0 || !ok {
		t.WindowID = windowID
	}
	if url != "" {
		t.URL = url
	}
	t.UpdatedAt = r.now()
	r.tabs[id] = t
	return t
}

func (r *Registry) Remove(id int) {
	r.mu.Lock()
	delete(r.tabs, id)
	r.mu.Unlock()
}

func (r *Registry) Get(id int) (Tab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tabs[id]
	return t, ok
}

// TabURL resolves a tab's URL for the notification guard.
func (r *Registry) TabURL(ctx context.Context, id int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t, ok := r.Get(id)
	if !ok {
		return "", fmt.Errorf("tab %d: %w", id, ErrUnknownTab)
	}
	return t.URL, nil
}

// List returns all known tabs ordered by ID.
func (r *Registry) List() []Tab {
	r.mu.RLock()
	out := make([]Tab, 0, len(r.tabs))
	for _, t := range r.tabs {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
