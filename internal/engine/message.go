package engine

import (
	"context"
	"fmt"
	"time"
)

// Message types accepted by HandleMessage.
const (
	MsgGetStats          = "GET_STATS"
	MsgResetData         = "RESET_DATA"
	MsgOpenPopup         = "OPEN_POPUP"
	MsgOpenOptions       = "OPEN_OPTIONS"
	MsgStartFocusSession = "START_FOCUS_SESSION"
	MsgSnooze            = "SNOOZE"
)

// Message is the runtime message envelope used by the browser UI.
// Minutes may arrive at the top level or inside Payload; Duration is in
// milliseconds.
type Message struct {
	Type     string         `json:"type"`
	Tab      string         `json:"tab,omitempty"`
	Minutes  int            `json:"minutes,omitempty"`
	Duration int64          `json:"duration,omitempty"`
	Payload  MessagePayload `json:"payload,omitempty"`
}

type MessagePayload struct {
	Minutes int `json:"minutes,omitempty"`
}

// HandleMessage routes a runtime message to the matching command and
// returns its response object.
func (e *Engine) HandleMessage(ctx context.Context, m Message) (any, error) {
	switch m.Type {
	case MsgGetStats:
		return e.GetStats(ctx)
	case MsgResetData:
		return e.ResetData(ctx)
	case MsgOpenPopup:
		return e.OpenDashboard(ctx)
	case MsgOpenOptions:
		return e.OpenSettings(ctx, m.Tab)
	case MsgStartFocusSession:
		minutes := m.Payload.Minutes
		if minutes == 0 {
			minutes = m.Minutes
		}
		return e.StartFocusSession(ctx, minutes)
	case MsgSnooze:
		return e.Snooze(ctx, time.Duration(m.Duration)*time.Millisecond)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
	}
}
