// Package tracker owns the activity state machine. Every event is applied by
// a single control goroutine, which finishes the event (store writes and
// reminder dispatch included) before reading the next one.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/focuspilot/internal/assess"
	"github.com/loykin/focuspilot/internal/classify"
	"github.com/loykin/focuspilot/internal/history"
	"github.com/loykin/focuspilot/internal/metrics"
	"github.com/loykin/focuspilot/internal/notify"
	"github.com/loykin/focuspilot/internal/store"
)

// NoTab marks that no tab is being tracked.
const NoTab = -1

var ErrClosed = errors.New("tracker closed")

// State is the tracker's view of what the user is looking at.
type State struct {
	CurrentTabID     int       `json:"currentTabId"`
	CurrentWindowID  int       `json:"currentWindowId"`
	CurrentURL       string    `json:"currentUrl"`
	LastFocus        time.Time `json:"lastFocusTimestamp"`
	LastReminder     time.Time `json:"lastReminderTimestamp"`
	QuickSwitchCount int       `json:"quickSwitchCount"`
	Idle             bool      `json:"idle"`
}

// Settings are the live-tunable knobs of the state machine.
type Settings struct {
	SwitchThreshold int
	Cooldown        time.Duration
}

type Dispatcher interface {
	Dispatch(ctx context.Context, ev notify.Event) notify.Result
}

type Recorder interface {
	Record(e history.Event)
}

type nopRecorder struct{}

func (nopRecorder) Record(history.Event) {}

type Config struct {
	Log        store.Log
	KV         store.KV
	Classifier *classify.Classifier
	Dispatcher Dispatcher
	History    Recorder
	Settings   Settings
	Now        func() time.Time
	Logger     *slog.Logger
}

type ctrlType int

const (
	ctrlSwitch ctrlType = iota
	ctrlNavigate
	ctrlIdle
	ctrlResume
	ctrlAssess
	ctrlSettings
	ctrlReset
	ctrlShutdown
)

type ctrlMsg struct {
	typ      ctrlType
	tabID    int
	windowID int
	url      string
	settings Settings
	reply    chan ctrlReply
}

type ctrlReply struct {
	decision assess.Decision
	err      error
}

type Tracker struct {
	mu       sync.RWMutex
	state    State
	settings Settings

	log        store.Log
	kv         store.KV
	classifier *classify.Classifier
	dispatcher Dispatcher
	history    Recorder
	now        func() time.Time
	logger     *slog.Logger

	ctrl      chan ctrlMsg
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

func New(cfg Config) *Tracker {
	t := &Tracker{
		settings:   cfg.Settings,
		log:        cfg.Log,
		kv:         cfg.KV,
		classifier: cfg.Classifier,
		dispatcher: cfg.Dispatcher,
		history:    cfg.History,
		now:        cfg.Now,
		logger:     cfg.Logger,
		ctrl:       make(chan ctrlMsg, 16),
		done:       make(chan struct{}),
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.classifier == nil {
		t.classifier = classify.New(nil)
	}
	if t.dispatcher == nil {
		t.dispatcher = notify.NewDispatcher(notify.Config{Logger: t.logger})
	}
	if t.history == nil {
		t.history = nopRecorder{}
	}
	if t.settings.SwitchThreshold < 1 {
		t.settings.SwitchThreshold = 1
	}
	t.state = State{CurrentTabID: NoTab, CurrentWindowID: NoTab, LastFocus: t.now()}
	return t
}

// Start launches the control goroutine. It stops when ctx is done or Close is called.
func (t *Tracker) Start(ctx context.Context) {
	t.startOnce.Do(func() { go t.run(ctx) })
}

// Close stops the control goroutine after the message in flight.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		// never started: mark done so Start becomes a no-op
		t.startOnce.Do(func() { close(t.done) })
		reply := make(chan ctrlReply, 1)
		select {
		case t.ctrl <- ctrlMsg{typ: ctrlShutdown, reply: reply}:
			select {
			case <-reply:
			case <-t.done:
			}
		case <-t.done:
		}
	})
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Tracker) Settings() Settings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.settings
}

// Switch reports that the active tab or window changed.
func (t *Tracker) Switch(ctx context.Context, tabID, windowID int, url string) error {
	_, err := t.send(ctx, ctrlMsg{typ: ctrlSwitch, tabID: tabID, windowID: windowID, url: url})
	return err
}

// Navigate reports a URL change inside tabID. Only the tracked tab matters.
func (t *Tracker) Navigate(ctx context.Context, tabID int, url string) error {
	_, err := t.send(ctx, ctrlMsg{typ: ctrlNavigate, tabID: tabID, url: url})
	return err
}

func (t *Tracker) Idle(ctx context.Context) error {
	_, err := t.send(ctx, ctrlMsg{typ: ctrlIdle})
	return err
}

func (t *Tracker) Resume(ctx context.Context) error {
	_, err := t.send(ctx, ctrlMsg{typ: ctrlResume})
	return err
}

// Assess runs one periodic assessment through the control goroutine.
func (t *Tracker) Assess(ctx context.Context) (assess.Decision, error) {
	return t.send(ctx, ctrlMsg{typ: ctrlAssess})
}

func (t *Tracker) UpdateSettings(ctx context.Context, s Settings) error {
	_, err := t.send(ctx, ctrlMsg{typ: ctrlSettings, settings: s})
	return err
}

// ResetLog clears the event log in order with pending events.
func (t *Tracker) ResetLog(ctx context.Context) error {
	_, err := t.send(ctx, ctrlMsg{typ: ctrlReset})
	return err
}

func (t *Tracker) send(ctx context.Context, msg ctrlMsg) (assess.Decision, error) {
	msg.reply = make(chan ctrlReply, 1)
	select {
	case t.ctrl <- msg:
	case <-t.done:
		return assess.Decision{}, ErrClosed
	case <-ctx.Done():
		return assess.Decision{}, ctx.Err()
	}
	select {
	case r := <-msg.reply:
		return r.decision, r.err
	case <-t.done:
		return assess.Decision{}, ErrClosed
	case <-ctx.Done():
		return assess.Decision{}, ctx.Err()
	}
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-t.ctrl:
			var r ctrlReply
			switch msg.typ {
			case ctrlSwitch:
				t.handleSwitch(ctx, msg.tabID, msg.windowID, msg.url)
			case ctrlNavigate:
				t.handleNavigate(ctx, msg.tabID, msg.url)
			case ctrlIdle:
				t.handleIdle(ctx)
			case ctrlResume:
				t.handleResume()
			case ctrlAssess:
				r.decision, r.err = t.handleAssess(ctx)
			case ctrlSettings:
				t.handleSettings(msg.settings)
			case ctrlReset:
				r.err = t.log.ResetAll(ctx)
				if r.err != nil {
					metrics.IncStoreError("reset")
				}
			case ctrlShutdown:
				msg.reply <- r
				return
			}
			msg.reply <- r
		}
	}
}
