package notify

import (
	"context"
	"errors"
	"sync"
)

// ErrListenerGone is returned when the listener went away before acknowledging.
var ErrListenerGone = errors.New("listener closed before ack")

// Delivery is one reminder handed to a listener. The listener must call Ack
// once the reminder is shown.
type Delivery struct {
	Msg  ShowReminder
	ack  chan struct{}
	once sync.Once
}

func (d *Delivery) Ack() {
	d.once.Do(func() { close(d.ack) })
}

// Subscription is a listener registered for one tab.
type Subscription struct {
	TabID int
	C     <-chan *Delivery

	c      chan *Delivery
	done   chan struct{}
	once   sync.Once
	hub    *Hub
	serial uint64
}

// Close unregisters the listener. Pending deliveries fail with ErrListenerGone.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.hub.remove(s)
	})
}

// Hub is the primary channel: reminders go to the most recent listener of a tab.
type Hub struct {
	mu     sync.Mutex
	subs   map[int][]*Subscription
	serial uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int][]*Subscription)}
}

func (h *Hub) Subscribe(tabID int) *Subscription {
	c := make(chan *Delivery, 1)
	h.mu.Lock()
	h.serial++
	s := &Subscription{TabID: tabID, C: c, c: c, done: make(chan struct{}), hub: h, serial: h.serial}
	h.subs[tabID] = append(h.subs[tabID], s)
	h.mu.Unlock()
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[s.TabID]
	for i, x := range list {
		if x.serial == s.serial {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(h.subs, s.TabID)
		return
	}
	h.subs[s.TabID] = list
}

// Listeners returns the number of listeners registered for tabID.
func (h *Hub) Listeners(tabID int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[tabID])
}

// Deliver hands msg to the newest listener of tabID and waits for its ack.
func (h *Hub) Deliver(ctx context.Context, tabID int, msg ShowReminder) error {
	h.mu.Lock()
	list := h.subs[tabID]
	var s *Subscription
	if len(list) > 0 {
		s = list[len(list)-1]
	}
	h.mu.Unlock()
	if s == nil {
		return ErrNoListener
	}

	d := &Delivery{Msg: msg, ack: make(chan struct{})}
	select {
	case s.c <- d:
	case <-s.done:
		return ErrListenerGone
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-d.ack:
		return nil
	case <-s.done:
		return ErrListenerGone
	case <-ctx.Done():
		return ctx.Err()
	}
}
