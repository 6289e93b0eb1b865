// Package notify delivers reminders to the tab the user is looking at.
//
// A reminder first goes through a guard that re-checks the target tab's
// URL, then to the primary channel (a listener registered for the tab that
// must acknowledge), and finally to a fallback injector that only carries
// the reason and score. Nothing is retried.
package notify

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Reason string

const (
	ReasonSite    Reason = "distraction-site"
	ReasonPattern Reason = "distraction-pattern"
)

// SiteScore is the score attached to instant distraction-site reminders.
const SiteScore = 99

type Channel string

const (
	ChannelPrimary  Channel = "primary"
	ChannelFallback Channel = "fallback"
)

// Event is a request to show one reminder on one tab.
type Event struct {
	ID     string `json:"id"`
	Reason Reason `json:"reason"`
	Score  int    `json:"score"`
	TabID  int    `json:"tabId"`
}

func NewEvent(reason Reason, score, tabID int) Event {
	return Event{ID: uuid.NewString(), Reason: reason, Score: score, TabID: tabID}
}

// ShowReminder is the message pushed on the primary channel.
type ShowReminder struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Reason Reason `json:"reason"`
	Score  int    `json:"score"`
}

const ShowReminderType = "SHOW_REMINDER"

func (e Event) Message() ShowReminder {
	return ShowReminder{Type: ShowReminderType, ID: e.ID, Reason: e.Reason, Score: e.Score}
}

// Result reports the outcome of a single dispatch.
type Result struct {
	Delivered  bool    `json:"delivered"`
	Channel    Channel `json:"channel,omitempty"`
	Suppressed bool    `json:"suppressed"`
	Err        error   `json:"-"`
}

var (
	ErrNoListener  = errors.New("no listener for tab")
	ErrMailboxFull = errors.New("inline mailbox full")
)

// DeliveryError is returned when both the primary and the fallback channel failed.
type DeliveryError struct {
	TabID    int
	Primary  error
	Fallback error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver reminder to tab %d: primary: %v; fallback: %v", e.TabID, e.Primary, e.Fallback)
}

func (e *DeliveryError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Primary != nil {
		out = append(out, e.Primary)
	}
	if e.Fallback != nil {
		out = append(out, e.Fallback)
	}
	return out
}

// TabLookupError means the target tab's URL could not be resolved.
type TabLookupError struct {
	TabID int
	Err   error
}

func (e *TabLookupError) Error() string {
	return fmt.Sprintf("lookup tab %d: %v", e.TabID, e.Err)
}

func (e *TabLookupError) Unwrap() error { return e.Err }

// MessageFor returns the inline text shown when only the fallback reached the tab.
func MessageFor(r Reason) string {
	switch r {
	case ReasonSite:
		return "You're on a distracting site. Refocus!"
	case ReasonPattern:
		return "Rapid tab switching detected. Take a breath."
	default:
		return "Stay focused!"
	}
}
