package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/focuspilot/internal/config"
	"github.com/loykin/focuspilot/internal/history"
	"github.com/loykin/focuspilot/internal/notify"
	"github.com/loykin/focuspilot/internal/stats"
	"github.com/loykin/focuspilot/internal/store"
)

var t0 = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeLauncher struct {
	mu      sync.Mutex
	targets []string
	err     error
}

func (l *fakeLauncher) Open(_ context.Context, target string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.targets = append(l.targets, target)
	return l.err
}

func (l *fakeLauncher) opened() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.targets...)
}

type memorySink struct {
	mu     sync.Mutex
	events []history.Event
}

func (s *memorySink) Send(_ context.Context, e history.Event) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *memorySink) all() []history.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]history.Event(nil), s.events...)
}

type harness struct {
	eng      *Engine
	store    *store.Memory
	clock    *fakeClock
	launcher *fakeLauncher
	sink     *memorySink
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	h := &harness{
		store:    store.NewMemory(),
		clock:    &fakeClock{now: t0},
		launcher: &fakeLauncher{},
		sink:     &memorySink{},
	}
	eng, err := New(cfg,
		WithStore(h.store),
		WithClock(h.clock.Now),
		WithLauncher(h.launcher),
		WithHistorySinks(h.sink),
		WithoutScheduler(),
	)
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Close() })
	h.eng = eng
	return h
}

func TestEngine_StatsAndInlineFallback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.eng.TabActivated(ctx, 1, 1, "https://github.com/loykin"))
	h.clock.Advance(10 * time.Minute)
	require.NoError(t, h.eng.TabActivated(ctx, 2, 1, "https://www.youtube.com/watch?v=x"))

	st, err := h.eng.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Stats{TotalFocusedMs: 600000, DistractionCount: 0, Samples: 1}, st)

	inline := h.eng.DrainInline(2)
	require.Len(t, inline, 1)
	assert.Equal(t, notify.ReasonSite, inline[0].Reason)
	assert.Equal(t, notify.SiteScore, inline[0].Score)
	assert.NotEmpty(t, inline[0].Message)
	assert.Empty(t, h.eng.DrainInline(2), "drain clears the mailbox")

	snap := h.eng.Snapshot()
	assert.Equal(t, t0.Add(10*time.Minute), snap.LastReminder)
	assert.Equal(t, 0, snap.QuickSwitchCount)

	h.clock.Advance(time.Minute)
	require.NoError(t, h.eng.TabActivated(ctx, 1, 1, "https://github.com/loykin"))
	st, err = h.eng.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Stats{TotalFocusedMs: 600000, DistractionCount: 1, Samples: 2}, st)
}

func TestEngine_PrimaryDelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sub := h.eng.Subscribe(5)
	defer sub.Close()
	got := make(chan notify.ShowReminder, 1)
	go func() {
		d := <-sub.C
		got <- d.Msg
		d.Ack()
	}()

	require.NoError(t, h.eng.TabActivated(ctx, 5, 1, "https://reddit.com/r/all"))
	select {
	case msg := <-got:
		assert.Equal(t, "SHOW_REMINDER", msg.Type)
		assert.Equal(t, notify.ReasonSite, msg.Reason)
		assert.Equal(t, 99, msg.Score)
	case <-time.After(2 * time.Second):
		t.Fatal("reminder not delivered to listener")
	}
	assert.Empty(t, h.eng.DrainInline(5), "primary delivery skips the fallback")
	assert.Equal(t, t0, h.eng.Snapshot().LastReminder)
}

func TestEngine_FallbackNoneLeavesReminderUndelivered(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Notify.Fallback = config.FallbackNone })
	ctx := context.Background()

	require.NoError(t, h.eng.TabActivated(ctx, 1, 1, "https://a.example"))
	require.NoError(t, h.eng.TabActivated(ctx, 2, 1, "https://tiktok.com"))
	snap := h.eng.Snapshot()
	assert.True(t, snap.LastReminder.IsZero())
	assert.Equal(t, 1, snap.QuickSwitchCount)
	assert.Empty(t, h.eng.DrainInline(2))
}

func TestEngine_PatternReminderSkipsNeutralTab(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, h.store.Append(ctx, store.Record{Timestamp: t0.Add(-time.Minute), DurationMs: 5000}))
	}

	sub := h.eng.Subscribe(7)
	defer sub.Close()
	require.NoError(t, h.eng.TabActivated(ctx, 7, 1, "https://news.example.org/a"))

	d, err := h.eng.Assess(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, d.Score)
	assert.True(t, d.ShouldRemind)

	select {
	case got := <-sub.C:
		t.Fatalf("unexpected reminder on neutral tab: %+v", got.Msg)
	default:
	}
	assert.Empty(t, h.eng.DrainInline(7))
	assert.True(t, h.eng.Snapshot().LastReminder.IsZero())

	require.NoError(t, h.eng.TabActivated(ctx, 8, 1, "https://reddit.com/r/all"))
	inline := h.eng.DrainInline(8)
	require.Len(t, inline, 1)
	assert.Equal(t, notify.ReasonSite, inline[0].Reason)
}

func TestEngine_TabUpdatedAndRemoved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.eng.TabActivated(ctx, 1, 1, "https://github.com"))
	require.NoError(t, h.eng.TabUpdated(ctx, 7, "https://reddit.com"))
	require.NoError(t, h.eng.TabUpdated(ctx, 1, ""))

	assert.Equal(t, "https://github.com", h.eng.Snapshot().CurrentURL)
	tabs := h.eng.Tabs()
	require.Len(t, tabs, 2)
	assert.Equal(t, "https://reddit.com", tabs[1].URL)

	require.NoError(t, h.eng.TabRemoved(ctx, 7))
	assert.Len(t, h.eng.Tabs(), 1)
}

func TestEngine_IdleStateChanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.eng.TabActivated(ctx, 1, 1, "https://github.com"))
	for _, s := range []string{IdleStateIdle, IdleStateLocked} {
		require.NoError(t, h.eng.IdleStateChanged(ctx, s))
		assert.True(t, h.eng.Snapshot().Idle, s)
	}
	require.NoError(t, h.eng.IdleStateChanged(ctx, IdleStateActive))
	assert.False(t, h.eng.Snapshot().Idle)

	err := h.eng.IdleStateChanged(ctx, "asleep")
	assert.ErrorIs(t, err, ErrUnknownIdleState)
}

func TestEngine_ResetData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.eng.TabActivated(ctx, 1, 1, "https://github.com"))
	h.clock.Advance(time.Minute)
	require.NoError(t, h.eng.TabActivated(ctx, 2, 1, "https://a.example"))

	ack, err := h.eng.ResetData(ctx)
	require.NoError(t, err)
	assert.True(t, ack.OK)

	st, err := h.eng.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Stats{}, st)
	assert.Equal(t, 2, h.eng.Snapshot().CurrentTabID, "reset keeps the activity state")
}

func TestEngine_OpenSurfaces(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.UI.Dashboard = "http://localhost/dash"
		c.UI.Settings = "http://localhost/settings"
	})
	ctx := context.Background()

	ack, err := h.eng.OpenDashboard(ctx)
	require.NoError(t, err)
	assert.True(t, ack.OK)

	_, err = h.eng.OpenSettings(ctx, SettingsTabSites)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost/dash", "http://localhost/settings?tab=sites"}, h.launcher.opened())

	v, ok, err := h.store.Get(ctx, store.KeyOptionsTab)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sites", string(v))

	h.launcher.err = errors.New("no display")
	ack, err = h.eng.OpenSettings(ctx, "")
	require.NoError(t, err)
	assert.True(t, ack.OK, "launcher failures are logged, not returned")
}

func TestEngine_FocusSessionAndSnooze(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.eng.StartFocusSession(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidMinutes)

	fs, err := h.eng.StartFocusSession(ctx, 25)
	require.NoError(t, err)
	assert.True(t, fs.OK)
	assert.Equal(t, store.ToMillis(t0.Add(25*time.Minute)), fs.EndsAt)
	v, ok, err := h.store.Get(ctx, store.KeyFocusTimer)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(fs.EndsAt, 10), string(v))

	sn, err := h.eng.Snooze(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, store.ToMillis(t0.Add(DefaultSnooze)), sn.Until)

	sn, err = h.eng.Snooze(ctx, 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, store.ToMillis(t0.Add(90*time.Second)), sn.Until)
}

func TestEngine_UpdateConfigAppliesAndPersists(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	f, err := h.eng.UpdateConfig(ctx, []byte(`{"productiveDomains":["example.org"],"distractionSwitchThreshold":5}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"example.org"}, f.ProductiveDomains)
	assert.Equal(t, int64(60000), f.ReminderCooldownMs, "absent fields keep their value")
	assert.Equal(t, f, h.eng.Focus())

	_, ok, err := h.store.Get(ctx, store.KeyConfig)
	require.NoError(t, err)
	assert.True(t, ok)

	// github.com is no longer productive
	require.NoError(t, h.eng.TabActivated(ctx, 1, 1, "https://github.com"))
	h.clock.Advance(time.Minute)
	require.NoError(t, h.eng.TabActivated(ctx, 2, 1, "https://docs.example.org"))
	st, err := h.eng.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.DistractionCount)

	_, err = h.eng.UpdateConfig(ctx, []byte(`{"distractionSwitchThreshold":0}`))
	require.Error(t, err)
	assert.Equal(t, 5, h.eng.Focus().DistractionSwitchThreshold)
}

func TestEngine_StoredConfigOverridesFileAtStart(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, store.KeyConfig, []byte(`{"reminderCooldownMs": 1000}`)))

	cfg := config.Default()
	cfg.Focus.DistractionSwitchThreshold = 4
	eng, err := New(cfg, WithStore(mem), WithLauncher(&fakeLauncher{}), WithoutScheduler())
	require.NoError(t, err)
	require.NoError(t, eng.Start(ctx))
	defer func() { _ = eng.Close() }()

	f := eng.Focus()
	assert.Equal(t, int64(1000), f.ReminderCooldownMs)
	assert.Equal(t, 4, f.DistractionSwitchThreshold)
}

func TestEngine_HandleMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.eng.HandleMessage(ctx, Message{Type: MsgGetStats})
	require.NoError(t, err)
	assert.IsType(t, stats.Stats{}, out)

	out, err = h.eng.HandleMessage(ctx, Message{Type: MsgStartFocusSession, Payload: MessagePayload{Minutes: 10}})
	require.NoError(t, err)
	assert.Equal(t, store.ToMillis(t0.Add(10*time.Minute)), out.(FocusSession).EndsAt)

	out, err = h.eng.HandleMessage(ctx, Message{Type: MsgSnooze, Duration: 60000})
	require.NoError(t, err)
	assert.Equal(t, store.ToMillis(t0.Add(time.Minute)), out.(Snoozed).Until)

	_, err = h.eng.HandleMessage(ctx, Message{Type: MsgOpenOptions, Tab: "sites"})
	require.NoError(t, err)
	_, err = h.eng.HandleMessage(ctx, Message{Type: MsgOpenPopup})
	require.NoError(t, err)
	assert.Len(t, h.launcher.opened(), 2)

	out, err = h.eng.HandleMessage(ctx, Message{Type: MsgResetData})
	require.NoError(t, err)
	assert.Equal(t, Ack{OK: true}, out)

	_, err = h.eng.HandleMessage(ctx, Message{Type: "PING"})
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestEngine_HistoryExport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.eng.TabActivated(ctx, 1, 1, "https://github.com"))
	h.clock.Advance(30 * time.Second)
	require.NoError(t, h.eng.TabActivated(ctx, 2, 1, "https://netflix.com"))
	require.NoError(t, h.eng.Close())

	var focus, reminders int
	for _, e := range h.sink.all() {
		switch e.Type {
		case history.EventFocus:
			focus++
			assert.EqualValues(t, 30000, e.DurationMs)
		case history.EventReminder:
			reminders++
			assert.True(t, e.Delivered)
		}
	}
	assert.Equal(t, 1, focus)
	assert.Equal(t, 1, reminders)
}

func TestEngine_SQLiteStorePersistsAcrossRestarts(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "focus.db")
	clock := &fakeClock{now: t0}
	ctx := context.Background()

	open := func() *Engine {
		cfg := config.Default()
		cfg.Store.DSN = dsn
		eng, err := New(cfg, WithClock(clock.Now), WithLauncher(&fakeLauncher{}), WithoutScheduler())
		require.NoError(t, err)
		require.NoError(t, eng.Start(ctx))
		return eng
	}

	eng := open()
	require.NoError(t, eng.TabActivated(ctx, 1, 1, "https://github.com"))
	clock.Advance(2 * time.Minute)
	require.NoError(t, eng.TabActivated(ctx, 2, 1, "https://a.example"))
	_, err := eng.UpdateConfig(ctx, []byte(`{"distractionSwitchThreshold": 6}`))
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	eng = open()
	defer func() { _ = eng.Close() }()
	st, err := eng.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(120000), st.TotalFocusedMs)
	assert.Equal(t, 6, eng.Focus().DistractionSwitchThreshold)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Notify.Fallback = "pager"
	_, err := New(cfg, WithStore(store.NewMemory()))
	require.Error(t, err)
}

func TestEngine_CloseWithoutStart(t *testing.T) {
	eng, err := New(config.Default(), WithStore(store.NewMemory()), WithoutScheduler())
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		_ = eng.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on an engine that never started")
	}
}

func TestEngine_StartLogDescribesInjectedStore(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	eng, err := New(cfg,
		WithStore(store.NewMemory()),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
		WithoutScheduler(),
	)
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Close() })

	assert.Contains(t, buf.String(), "store=injected")
	if cfg.Store.DSN != "" {
		assert.NotContains(t, buf.String(), cfg.Store.DSN)
	}
}
