package notify

import (
	"context"
	"sync"
	"time"
)

// InlineReminder is the reduced payload of the fallback channel.
type InlineReminder struct {
	ID      string    `json:"id"`
	Reason  Reason    `json:"reason"`
	Score   int       `json:"score"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

const DefaultMailboxSize = 8

// Mailbox queues inline reminders per tab until the tab polls them.
type Mailbox struct {
	mu    sync.Mutex
	size  int
	boxes map[int][]InlineReminder
}

func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	return &Mailbox{size: size, boxes: make(map[int][]InlineReminder)}
}

func (m *Mailbox) Inject(ctx context.Context, tabID int, r InlineReminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.boxes[tabID]) >= m.size {
		return ErrMailboxFull
	}
	m.boxes[tabID] = append(m.boxes[tabID], r)
	return nil
}

// Drain returns and clears the pending reminders of tabID, oldest first.
func (m *Mailbox) Drain(tabID int) []InlineReminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.boxes[tabID]
	delete(m.boxes, tabID)
	if out == nil {
		out = []InlineReminder{}
	}
	return out
}

// Forget drops anything queued for a closed tab.
func (m *Mailbox) Forget(tabID int) {
	m.mu.Lock()
	delete(m.boxes, tabID)
	m.mu.Unlock()
}
