package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/loykin/focuspilot/internal/config"
	"github.com/loykin/focuspilot/internal/stats"
	"github.com/loykin/focuspilot/internal/store"
)

// DefaultSnooze is used when Snooze is called without a duration.
const DefaultSnooze = 5 * time.Minute

// SettingsTabSites is the settings page tab listing the productive sites.
const SettingsTabSites = "sites"

var (
	ErrInvalidMinutes   = errors.New("minutes must be >= 1")
	ErrUnknownIdleState = errors.New("unknown idle state")
	ErrUnknownMessage   = errors.New("unknown message type")
)

// Idle states reported by the activity source.
const (
	IdleStateActive = "active"
	IdleStateIdle   = "idle"
	IdleStateLocked = "locked"
)

type Ack struct {
	OK bool `json:"ok"`
}

type FocusSession struct {
	OK     bool  `json:"ok"`
	EndsAt int64 `json:"endsAt"`
}

type Snoozed struct {
	OK    bool  `json:"ok"`
	Until int64 `json:"until"`
}

// TabActivated reports that tabID in windowID became the active tab.
func (e *Engine) TabActivated(ctx context.Context, tabID, windowID int, url string) error {
	e.tabs.Upsert(tabID, windowID, url)
	return e.tracker.Switch(ctx, tabID, windowID, url)
}

// TabUpdated reports a URL change of any tab. Only the tracked tab affects
// the activity state.
func (e *Engine) TabUpdated(ctx context.Context, tabID int, url string) error {
	if url == "" {
		return nil
	}
	e.tabs.Upsert(tabID, 0, url)
	return e.tracker.Navigate(ctx, tabID, url)
}

func (e *Engine) TabRemoved(_ context.Context, tabID int) error {
	e.tabs.Remove(tabID)
	if e.mailbox != nil {
		e.mailbox.Forget(tabID)
	}
	return nil
}

// IdleStateChanged maps "idle" and "locked" to going idle and "active" to
// resuming.
func (e *Engine) IdleStateChanged(ctx context.Context, state string) error {
	switch state {
	case IdleStateIdle, IdleStateLocked:
		return e.tracker.Idle(ctx)
	case IdleStateActive:
		return e.tracker.Resume(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownIdleState, state)
	}
}

// GetStats summarizes the last 24 hours. It never writes.
func (e *Engine) GetStats(ctx context.Context) (stats.Stats, error) {
	return e.stats.Get(ctx)
}

// ResetData clears the focus record log. Settings and the activity state
// are untouched.
func (e *Engine) ResetData(ctx context.Context) (Ack, error) {
	if err := e.tracker.ResetLog(ctx); err != nil {
		return Ack{}, err
	}
	e.logger.Info("focus records reset")
	return Ack{OK: true}, nil
}

func (e *Engine) OpenDashboard(ctx context.Context) (Ack, error) {
	if err := e.launcher.Open(ctx, e.pages.Dashboard); err != nil {
		e.logger.Warn("open dashboard failed", "url", e.pages.Dashboard, "error", err)
	}
	return Ack{OK: true}, nil
}

// OpenSettings opens the settings page. The "sites" hint is remembered for
// the page to pick up.
func (e *Engine) OpenSettings(ctx context.Context, hint string) (Ack, error) {
	if hint == SettingsTabSites {
		if err := e.store.Set(ctx, store.KeyOptionsTab, []byte(hint)); err != nil {
			e.logger.Warn("persist settings tab failed", "error", err)
		}
	}
	target := e.pages.SettingsURL(hint)
	if err := e.launcher.Open(ctx, target); err != nil {
		e.logger.Warn("open settings failed", "url", target, "error", err)
	}
	return Ack{OK: true}, nil
}

// StartFocusSession records when a focus countdown of the given length ends.
// The countdown itself belongs to the UI.
func (e *Engine) StartFocusSession(ctx context.Context, minutes int) (FocusSession, error) {
	if minutes < 1 {
		return FocusSession{}, ErrInvalidMinutes
	}
	end := e.now().Add(time.Duration(minutes) * time.Minute)
	if err := e.setMillis(ctx, store.KeyFocusTimer, end); err != nil {
		return FocusSession{}, err
	}
	return FocusSession{OK: true, EndsAt: store.ToMillis(end)}, nil
}

// Snooze records a snooze deadline for the UI. The engine does not enforce it.
func (e *Engine) Snooze(ctx context.Context, d time.Duration) (Snoozed, error) {
	if d <= 0 {
		d = DefaultSnooze
	}
	until := e.now().Add(d)
	if err := e.setMillis(ctx, store.KeySnoozeUntil, until); err != nil {
		return Snoozed{}, err
	}
	return Snoozed{OK: true, Until: store.ToMillis(until)}, nil
}

func (e *Engine) setMillis(ctx context.Context, key string, t time.Time) error {
	return e.store.Set(ctx, key, []byte(strconv.FormatInt(store.ToMillis(t), 10)))
}

// UpdateConfig merges a settings object over the effective settings,
// persists the result and applies it to the running tracker.
func (e *Engine) UpdateConfig(ctx context.Context, raw []byte) (config.Focus, error) {
	merged, err := e.Focus().MergeJSON(raw)
	if err != nil {
		return config.Focus{}, err
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return config.Focus{}, err
	}
	if err := e.store.Set(ctx, store.KeyConfig, b); err != nil {
		return config.Focus{}, err
	}
	if err := e.applyFocus(ctx, merged); err != nil {
		return config.Focus{}, err
	}
	e.logger.Info("settings updated",
		"switch_threshold", merged.DistractionSwitchThreshold,
		"cooldown", merged.Cooldown(),
		"productive_domains", merged.ProductiveDomains)
	return merged, nil
}
