package tracker

import (
	"context"
	"strconv"
	"time"

	"github.com/loykin/focuspilot/internal/assess"
	"github.com/loykin/focuspilot/internal/history"
	"github.com/loykin/focuspilot/internal/metrics"
	"github.com/loykin/focuspilot/internal/notify"
	"github.com/loykin/focuspilot/internal/store"
)

func (t *Tracker) handleSwitch(ctx context.Context, tabID, windowID int, url string) {
	now := t.now()
	st := t.Snapshot()

	if st.CurrentTabID != NoTab && st.CurrentTabID != tabID {
		st.QuickSwitchCount++
	}
	t.closeOut(ctx, &st, now)
	st.CurrentTabID = tabID
	st.CurrentWindowID = windowID
	st.CurrentURL = url
	st.LastFocus = now
	st.Idle = false
	t.commit(st)

	if t.classifier.IsDistraction(url) {
		t.remind(ctx, now, notify.ReasonSite, notify.SiteScore, tabID)
	}
}

func (t *Tracker) handleNavigate(ctx context.Context, tabID int, url string) {
	st := t.Snapshot()
	if st.CurrentTabID == NoTab || st.CurrentTabID != tabID {
		return
	}
	now := t.now()
	t.closeOut(ctx, &st, now)
	st.CurrentURL = url
	st.LastFocus = now
	st.Idle = false
	t.commit(st)

	if t.classifier.IsDistraction(url) {
		t.remind(ctx, now, notify.ReasonSite, notify.SiteScore, tabID)
	}
}

func (t *Tracker) handleIdle(ctx context.Context) {
	now := t.now()
	st := t.Snapshot()
	t.closeOut(ctx, &st, now)
	st.LastFocus = now
	st.Idle = true
	t.commit(st)
}

func (t *Tracker) handleResume() {
	st := t.Snapshot()
	st.QuickSwitchCount = 0
	st.LastFocus = t.now()
	st.Idle = false
	t.commit(st)
}

func (t *Tracker) handleSettings(s Settings) {
	if s.SwitchThreshold < 1 {
		s.SwitchThreshold = 1
	}
	if s.Cooldown < 0 {
		s.Cooldown = 0
	}
	t.mu.Lock()
	t.settings = s
	t.mu.Unlock()
}

func (t *Tracker) handleAssess(ctx context.Context) (assess.Decision, error) {
	now := t.now()
	recent, err := t.log.Query(ctx, assess.Since(now))
	if err != nil {
		metrics.IncStoreError("query")
		t.logger.Warn("assessment skipped, log unavailable", "error", err)
		return assess.Decision{}, err
	}
	st := t.Snapshot()
	cfg := t.Settings()
	d := assess.Evaluate(assess.Input{
		Now:             now,
		Recent:          recent,
		QuickSwitches:   st.QuickSwitchCount,
		SwitchThreshold: cfg.SwitchThreshold,
		LastReminder:    st.LastReminder,
		Cooldown:        cfg.Cooldown,
	})
	metrics.SetDistractionScore(d.Score)

	if !d.ShouldRemind || st.CurrentTabID == NoTab {
		return d, nil
	}
	if st.CurrentURL != "" && t.classifier.IsProductive(st.CurrentURL) {
		return d, nil
	}
	t.remind(ctx, now, notify.ReasonPattern, d.Score, st.CurrentTabID)
	return d, nil
}

// closeOut appends the interval since LastFocus for the current URL. Idle
// time and unknown URLs produce no record. A failed append is logged and
// the transition proceeds.
func (t *Tracker) closeOut(ctx context.Context, st *State, now time.Time) {
	if st.Idle || st.CurrentURL == "" {
		return
	}
	delta := now.Sub(st.LastFocus).Milliseconds()
	if delta <= 0 {
		return
	}
	rec := store.Record{Timestamp: now, DurationMs: delta, Productive: t.classifier.IsProductive(st.CurrentURL)}
	if err := t.log.Append(ctx, rec); err != nil {
		metrics.IncStoreError("append")
		t.logger.Warn("focus record lost", "duration_ms", delta, "error", err)
		return
	}
	metrics.ObserveFocusRecord(rec.Productive, rec.DurationMs)
	t.history.Record(history.Event{
		Type:       history.EventFocus,
		OccurredAt: now,
		DurationMs: rec.DurationMs,
		Productive: rec.Productive,
	})
}

// remind dispatches a reminder when the cooldown allows it. Bookkeeping
// happens only when the dispatcher reports delivery.
func (t *Tracker) remind(ctx context.Context, now time.Time, reason notify.Reason, score, tabID int) {
	st := t.Snapshot()
	cfg := t.Settings()
	if !assess.CooldownElapsed(now, st.LastReminder, cfg.Cooldown) {
		metrics.IncSuppressed(string(reason), "cooldown")
		t.logger.Debug("reminder suppressed by cooldown", "reason", string(reason), "tab", tabID)
		return
	}

	ev := notify.NewEvent(reason, score, tabID)
	res := t.dispatcher.Dispatch(ctx, ev)
	t.history.Record(history.Event{
		Type:       history.EventReminder,
		OccurredAt: now,
		ReminderID: ev.ID,
		Reason:     string(reason),
		Score:      score,
		TabID:      tabID,
		Delivered:  res.Delivered,
		Suppressed: res.Suppressed,
		Channel:    string(res.Channel),
	})
	if !res.Delivered {
		return
	}

	st = t.Snapshot()
	st.LastReminder = now
	st.QuickSwitchCount = 0
	t.commit(st)

	if t.kv != nil {
		v := []byte(strconv.FormatInt(store.ToMillis(now), 10))
		if err := t.kv.Set(ctx, store.KeyLastReminder, v); err != nil {
			metrics.IncStoreError("set")
			t.logger.Warn("persist last reminder failed", "error", err)
		}
	}
}

func (t *Tracker) commit(st State) {
	t.mu.Lock()
	t.state = st
	t.mu.Unlock()
	metrics.SetQuickSwitchCount(st.QuickSwitchCount)
}
