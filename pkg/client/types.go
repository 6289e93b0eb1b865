package client

import "time"

// Stats is the 24 hour focus summary.
type Stats struct {
	TotalFocusedMs   int64 `json:"totalFocusedMs"`
	DistractionCount int   `json:"distractionCount"`
	Samples          int   `json:"samples"`
}

// Ack is the reply of commands that carry no data.
type Ack struct {
	OK bool `json:"ok"`
}

// FocusSession reports when a started focus session ends (epoch ms).
type FocusSession struct {
	OK     bool  `json:"ok"`
	EndsAt int64 `json:"endsAt"`
}

// Snoozed reports until when reminders are snoozed (epoch ms).
type Snoozed struct {
	OK    bool  `json:"ok"`
	Until int64 `json:"until"`
}

// FocusConfig mirrors the settings object edited by the settings page.
type FocusConfig struct {
	IdleThresholdSeconds       int      `json:"idleThresholdSeconds"`
	DistractionSwitchThreshold int      `json:"distractionSwitchThreshold"`
	ProductiveDomains          []string `json:"productiveDomains"`
	ReminderCooldownMs         int64    `json:"reminderCooldownMs"`
}

// ActivityState is the daemon's view of the current tab.
type ActivityState struct {
	CurrentTabID          int       `json:"currentTabId"`
	CurrentWindowID       int       `json:"currentWindowId"`
	CurrentURL            string    `json:"currentUrl"`
	LastFocusTimestamp    time.Time `json:"lastFocusTimestamp"`
	LastReminderTimestamp time.Time `json:"lastReminderTimestamp"`
	QuickSwitchCount      int       `json:"quickSwitchCount"`
	Idle                  bool      `json:"idle"`
}

// Tab is a tab known to the daemon.
type Tab struct {
	ID        int       `json:"id"`
	WindowID  int       `json:"windowId"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// State is the response of GET /state.
type State struct {
	State ActivityState `json:"state"`
	Tabs  []Tab         `json:"tabs"`
}

// Assessment is the outcome of one distraction assessment.
type Assessment struct {
	ShortEvents      int  `json:"shortEvents"`
	NonProductive    int  `json:"nonProductive"`
	DistractionScore int  `json:"distractionScore"`
	QuickSwitch      int  `json:"quickSwitchSignal"`
	Score            int  `json:"score"`
	CooldownElapsed  bool `json:"cooldownElapsed"`
	ShouldRemind     bool `json:"shouldRemind"`
}

// InlineReminder is a reminder queued for a tab by the fallback channel.
type InlineReminder struct {
	ID      string    `json:"id"`
	Reason  string    `json:"reason"`
	Score   int       `json:"score"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Idle states accepted by IdleState.
const (
	IdleActive = "active"
	IdleIdle   = "idle"
	IdleLocked = "locked"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

type activatedRequest struct {
	TabID    int    `json:"tabId"`
	WindowID int    `json:"windowId"`
	URL      string `json:"url"`
}

type updatedRequest struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url"`
}

type removedRequest struct {
	TabID int `json:"tabId"`
}

type idleRequest struct {
	State string `json:"state"`
}

type focusSessionRequest struct {
	Minutes int `json:"minutes"`
}

type snoozeRequest struct {
	DurationMs int64 `json:"durationMs"`
}
