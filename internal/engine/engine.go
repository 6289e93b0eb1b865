// Package engine assembles the daemon: store, classifier, tab registry,
// notification channels, tracker, assessment scheduler and history export.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/focuspilot/internal/assess"
	"github.com/loykin/focuspilot/internal/classify"
	"github.com/loykin/focuspilot/internal/config"
	"github.com/loykin/focuspilot/internal/history"
	hfactory "github.com/loykin/focuspilot/internal/history/factory"
	"github.com/loykin/focuspilot/internal/metrics"
	"github.com/loykin/focuspilot/internal/notify"
	"github.com/loykin/focuspilot/internal/stats"
	"github.com/loykin/focuspilot/internal/store"
	sfactory "github.com/loykin/focuspilot/internal/store/factory"
	"github.com/loykin/focuspilot/internal/surface"
	"github.com/loykin/focuspilot/internal/tabs"
	"github.com/loykin/focuspilot/internal/tracker"
	"github.com/prometheus/client_golang/prometheus"
)

const startupTimeout = 10 * time.Second

type Option func(*options)

type options struct {
	store    store.Store
	now      func() time.Time
	launcher surface.Launcher
	fallback notify.Fallback
	sinks    []history.Sink
	logger   *slog.Logger
	noTicker bool
}

// WithStore uses s instead of opening store.dsn. The caller keeps ownership.
func WithStore(s store.Store) Option { return func(o *options) { o.store = s } }

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func WithLauncher(l surface.Launcher) Option { return func(o *options) { o.launcher = l } }

// WithFallback replaces the configured fallback channel.
func WithFallback(f notify.Fallback) Option { return func(o *options) { o.fallback = f } }

// WithHistorySinks adds sinks next to the ones listed in the config.
func WithHistorySinks(sinks ...history.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithoutScheduler disables the periodic assessment ticker; Assess still works.
func WithoutScheduler() Option { return func(o *options) { o.noTicker = true } }

type Engine struct {
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time

	focusMu sync.RWMutex
	focus   config.Focus

	store      store.Store
	ownsStore  bool
	classifier *classify.Classifier
	tabs       *tabs.Registry
	hub        *notify.Hub
	mailbox    *notify.Mailbox
	dispatcher *notify.Dispatcher
	recorder   *history.Recorder
	tracker    *tracker.Tracker
	scheduler  *assess.Scheduler
	stats      *stats.Aggregator
	launcher   surface.Launcher
	pages      surface.Pages
	self       *metrics.SelfCollector

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	startErr  error
	closeOnce sync.Once
}

// New builds an engine from cfg. Nothing runs until Start.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.launcher == nil {
		o.launcher = surface.OSLauncher{}
	}
	interval, err := cfg.Interval()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		logger:   o.logger,
		now:      o.now,
		focus:    cfg.Focus,
		launcher: o.launcher,
		pages:    surface.Pages{Dashboard: cfg.UI.Dashboard, Settings: cfg.UI.Settings},
		self:     metrics.NewSelfCollector(cfg.Metrics.Self),
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.store = o.store
	if e.store == nil {
		st, err := sfactory.NewFromDSN(cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		e.store = st
		e.ownsStore = true
	}

	sinks, err := hfactory.NewSinks(cfg.History)
	if err != nil {
		e.closeStore()
		return nil, fmt.Errorf("history sinks: %w", err)
	}
	sinks = append(sinks, o.sinks...)
	e.recorder = history.NewRecorder(sinks, cfg.HistoryQueueSize, e.logger.With("component", "history"))

	e.classifier = classify.New(cfg.Focus.ProductiveDomains)
	e.tabs = tabs.NewRegistry()
	e.tabs.SetClock(e.now)
	e.hub = notify.NewHub()

	fallback := o.fallback
	if fallback == nil {
		switch cfg.Notify.Fallback {
		case config.FallbackMailbox:
			e.mailbox = notify.NewMailbox(cfg.Notify.MailboxSize)
			fallback = e.mailbox
		case config.FallbackWebhook:
			fallback = &notify.Webhook{URL: cfg.Notify.WebhookURL}
		}
	}
	e.dispatcher = notify.NewDispatcher(notify.Config{
		Primary:  e.hub,
		Fallback: fallback,
		Resolver: e.tabs,
		Checker:  e.classifier,
		Timeout:  cfg.Notify.DispatchTimeout,
		Logger:   e.logger.With("component", "notify"),
		Now:      e.now,
	})

	e.tracker = tracker.New(tracker.Config{
		Log:        e.store,
		KV:         e.store,
		Classifier: e.classifier,
		Dispatcher: e.dispatcher,
		History:    e.recorder,
		Settings:   settingsOf(cfg.Focus),
		Now:        e.now,
		Logger:     e.logger.With("component", "tracker"),
	})
	if !o.noTicker {
		e.scheduler = assess.NewScheduler(e.tracker, interval, e.logger.With("component", "assess"))
	}
	e.stats = stats.NewAggregator(e.store, e.now)
	return e, nil
}

func settingsOf(f config.Focus) tracker.Settings {
	return tracker.Settings{SwitchThreshold: f.DistractionSwitchThreshold, Cooldown: f.Cooldown()}
}

// Start prepares the store, applies persisted settings and launches the
// tracker, the assessment ticker and self metrics. Calling it again
// returns the first result.
func (e *Engine) Start(ctx context.Context) error {
	e.startOnce.Do(func() { e.startErr = e.start(ctx) })
	return e.startErr
}

func (e *Engine) start(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := e.store.EnsureSchema(sctx); err != nil {
		return fmt.Errorf("prepare store: %w", err)
	}
	e.tracker.Start(e.ctx)
	if err := e.loadStoredFocus(sctx); err != nil {
		e.logger.Warn("stored settings ignored", "error", err)
	}
	if e.scheduler != nil {
		if err := e.scheduler.Start(); err != nil {
			return err
		}
	}
	e.self.Start(e.ctx)
	f := e.Focus()
	storeDesc := "injected"
	if e.ownsStore {
		storeDesc = e.cfg.Store.DSN
	}
	e.logger.Info("engine started",
		"store", storeDesc,
		"switch_threshold", f.DistractionSwitchThreshold,
		"cooldown", f.Cooldown(),
		"productive_domains", f.ProductiveDomains)
	return nil
}

func (e *Engine) loadStoredFocus(ctx context.Context) error {
	raw, ok, err := e.store.Get(ctx, store.KeyConfig)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	merged, err := e.cfg.Focus.MergeJSON(raw)
	if err != nil {
		return err
	}
	return e.applyFocus(ctx, merged)
}

func (e *Engine) applyFocus(ctx context.Context, f config.Focus) error {
	e.classifier.SetProductiveDomains(f.ProductiveDomains)
	if err := e.tracker.UpdateSettings(ctx, settingsOf(f)); err != nil {
		return err
	}
	e.focusMu.Lock()
	e.focus = f
	e.focusMu.Unlock()
	return nil
}

// RegisterMetrics registers the engine collectors and, when enabled, the
// daemon self metrics with r.
func (e *Engine) RegisterMetrics(r prometheus.Registerer) error {
	if err := metrics.Register(r); err != nil {
		return err
	}
	return e.self.RegisterMetrics(r)
}

// Close stops background work, flushes history and closes an owned store.
func (e *Engine) Close() error {
	var errs []error
	e.closeOnce.Do(func() {
		if e.scheduler != nil {
			e.scheduler.Stop()
		}
		e.tracker.Close()
		e.self.Stop()
		e.cancel()
		if err := e.recorder.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := e.closeStore(); err != nil {
			errs = append(errs, err)
		}
		e.logger.Info("engine stopped")
	})
	return errors.Join(errs...)
}

func (e *Engine) closeStore() error {
	if !e.ownsStore {
		return nil
	}
	return e.store.Close()
}

// Focus returns the effective focus settings.
func (e *Engine) Focus() config.Focus {
	e.focusMu.RLock()
	defer e.focusMu.RUnlock()
	f := e.focus
	f.ProductiveDomains = append([]string(nil), f.ProductiveDomains...)
	return f
}

func (e *Engine) Config() *config.Config { return e.cfg }

func (e *Engine) Snapshot() tracker.State { return e.tracker.Snapshot() }

func (e *Engine) Tabs() []tabs.Tab { return e.tabs.List() }

// Assess runs one assessment immediately.
func (e *Engine) Assess(ctx context.Context) (assess.Decision, error) {
	return e.tracker.Assess(ctx)
}

// Subscribe registers a primary-channel listener for tabID.
func (e *Engine) Subscribe(tabID int) *notify.Subscription { return e.hub.Subscribe(tabID) }

// DrainInline returns the queued fallback reminders of tabID. Without a
// mailbox fallback the result is always empty.
func (e *Engine) DrainInline(tabID int) []notify.InlineReminder {
	if e.mailbox == nil {
		return []notify.InlineReminder{}
	}
	return e.mailbox.Drain(tabID)
}
