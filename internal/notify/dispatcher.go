package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/loykin/focuspilot/internal/metrics"
)

const DefaultTimeout = 2 * time.Second

// Primary delivers a reminder to a listener in the tab and waits for its ack.
type Primary interface {
	Deliver(ctx context.Context, tabID int, msg ShowReminder) error
}

// Fallback injects a minimal inline reminder into the tab.
type Fallback interface {
	Inject(ctx context.Context, tabID int, r InlineReminder) error
}

type TabResolver interface {
	TabURL(ctx context.Context, tabID int) (string, error)
}

type SiteChecker interface {
	IsDistraction(url string) bool
}

type Config struct {
	Primary  Primary
	Fallback Fallback
	Resolver TabResolver
	Checker  SiteChecker
	Timeout  time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

type Dispatcher struct {
	primary  Primary
	fallback Fallback
	resolver TabResolver
	checker  SiteChecker
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		primary:  cfg.Primary,
		fallback: cfg.Fallback,
		resolver: cfg.Resolver,
		checker:  cfg.Checker,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Dispatch runs the guard, then the primary channel, then the fallback.
// Every attempt is bounded by the dispatcher timeout. Each reminder is
// re-validated against the tab's current URL and dropped unless the tab
// still shows a distraction site.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) Result {
	log := d.logger.With("reminder", ev.ID, "reason", string(ev.Reason), "tab", ev.TabID)

	if d.resolver != nil && d.checker != nil {
		url, err := d.attemptURL(ctx, ev.TabID)
		if err != nil {
			log.Debug("tab lookup failed, dispatching anyway", "error", err)
		} else if !d.checker.IsDistraction(url) {
			log.Debug("reminder suppressed, tab no longer on a distraction site", "url", url)
			metrics.IncSuppressed(string(ev.Reason), "not_distraction")
			return Result{Suppressed: true}
		}
	}

	var primaryErr error = ErrNoListener
	if d.primary != nil {
		primaryErr = d.attempt(ctx, func(actx context.Context) error {
			return d.primary.Deliver(actx, ev.TabID, ev.Message())
		})
		if primaryErr == nil {
			metrics.IncReminder(string(ev.Reason), string(ChannelPrimary))
			log.Info("reminder delivered", "channel", ChannelPrimary, "score", ev.Score)
			return Result{Delivered: true, Channel: ChannelPrimary}
		}
		log.Debug("primary delivery failed", "error", primaryErr)
	}

	fallbackErr := errors.New("no fallback configured")
	if d.fallback != nil {
		inline := InlineReminder{
			ID:      ev.ID,
			Reason:  ev.Reason,
			Score:   ev.Score,
			Message: MessageFor(ev.Reason),
			At:      d.now(),
		}
		fallbackErr = d.attempt(ctx, func(actx context.Context) error {
			return d.fallback.Inject(actx, ev.TabID, inline)
		})
		if fallbackErr == nil {
			metrics.IncReminder(string(ev.Reason), string(ChannelFallback))
			log.Info("reminder delivered", "channel", ChannelFallback, "score", ev.Score)
			return Result{Delivered: true, Channel: ChannelFallback}
		}
	}

	err := &DeliveryError{TabID: ev.TabID, Primary: primaryErr, Fallback: fallbackErr}
	metrics.IncSuppressed(string(ev.Reason), "delivery_failed")
	log.Warn("reminder not delivered", "error", err)
	return Result{Err: err}
}

func (d *Dispatcher) attemptURL(ctx context.Context, tabID int) (string, error) {
	actx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	url, err := d.resolver.TabURL(actx, tabID)
	if err != nil {
		return "", &TabLookupError{TabID: tabID, Err: err}
	}
	return url, nil
}

func (d *Dispatcher) attempt(ctx context.Context, fn func(context.Context) error) error {
	actx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return fn(actx)
}
