// Package assess computes the periodic distraction score over the recent
// focus log and decides whether a pattern reminder is due.
package assess

import (
	"time"

	"github.com/loykin/focuspilot/internal/store"
)

const (
	Window          = 2 * time.Minute
	ShortEvent      = 30 * time.Second
	ScoreThreshold  = 3
	DefaultInterval = 30 * time.Second
)

// Input is everything Evaluate needs; it holds no references to live state.
type Input struct {
	Now             time.Time
	Recent          []store.Record
	QuickSwitches   int
	SwitchThreshold int
	LastReminder    time.Time
	Cooldown        time.Duration
}

type Decision struct {
	ShortEvents      int  `json:"shortEvents"`
	NonProductive    int  `json:"nonProductive"`
	DistractionScore int  `json:"distractionScore"`
	QuickSwitch      int  `json:"quickSwitchSignal"`
	Score            int  `json:"score"`
	CooldownElapsed  bool `json:"cooldownElapsed"`
	ShouldRemind     bool `json:"shouldRemind"`
}

// Since returns the lower bound of the assessment window ending at now.
func Since(now time.Time) time.Time { return now.Add(-Window) }

// Evaluate scores the records of in.Recent that fall inside the window.
func Evaluate(in Input) Decision {
	since := Since(in.Now)
	var d Decision
	for _, r := range in.Recent {
		if r.Timestamp.Before(since) {
			continue
		}
		if r.DurationMs < ShortEvent.Milliseconds() {
			d.ShortEvents++
		}
		if !r.Productive {
			d.NonProductive++
		}
	}
	d.DistractionScore = d.ShortEvents + d.NonProductive
	if in.SwitchThreshold > 0 && in.QuickSwitches >= in.SwitchThreshold {
		d.QuickSwitch = 1
	}
	d.Score = d.DistractionScore + d.QuickSwitch
	d.CooldownElapsed = CooldownElapsed(in.Now, in.LastReminder, in.Cooldown)
	d.ShouldRemind = d.Score >= ScoreThreshold && d.CooldownElapsed
	return d
}

// CooldownElapsed reports whether strictly more than cooldown has passed
// since last. A zero last means no reminder was ever sent.
func CooldownElapsed(now, last time.Time, cooldown time.Duration) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) > cooldown
}
