package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Webhook posts inline reminders to an external injector (for example a
// native messaging host that executes the inline script in the tab).
type Webhook struct {
	URL    string
	Client *http.Client
}

type webhookPayload struct {
	TabID    int            `json:"tabId"`
	Reminder InlineReminder `json:"reminder"`
}

func (w *Webhook) Inject(ctx context.Context, tabID int, r InlineReminder) error {
	body, err := json.Marshal(webhookPayload{TabID: tabID, Reminder: r})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	cl := w.Client
	if cl == nil {
		cl = http.DefaultClient
	}
	resp, err := cl.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
