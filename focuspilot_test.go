package focuspilot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newFacadeEngine(t *testing.T) *Engine {
	t.Helper()
	c := DefaultConfig()
	c.Store.DSN = "memory"
	e, err := New(c, WithLauncher(NoopLauncher), WithoutScheduler())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestDefaults(t *testing.T) {
	f := DefaultFocus()
	if f.DistractionSwitchThreshold != 3 || f.ReminderCooldownMs != 60000 {
		t.Fatalf("unexpected default focus: %+v", f)
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestHTTPHandlerDistractionFlow(t *testing.T) {
	e := newFacadeEngine(t)
	srv := httptest.NewServer(NewHTTPHandler(e, "/fp"))
	defer srv.Close()

	post := func(path, body string) {
		resp, err := http.Post(srv.URL+path, "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("post %s: %v", path, err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			t.Fatalf("post %s: status %d body=%s", path, resp.StatusCode, b)
		}
	}
	post("/fp/events/activated", `{"tabId":4,"windowId":1,"url":"https://www.reddit.com/r/golang"}`)

	resp, err := http.Get(srv.URL + "/fp/tabs/4/inline")
	if err != nil {
		t.Fatalf("inline: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var inline []InlineReminder
	if err := json.NewDecoder(resp.Body).Decode(&inline); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(inline) != 1 {
		t.Fatalf("expected one inline reminder, got %d", len(inline))
	}
	if e.Snapshot().LastReminder.IsZero() {
		t.Fatalf("delivered reminder should update lastReminderTimestamp")
	}
}

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := RegisterMetrics(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := RegisterMetrics(reg); err != nil {
		t.Fatalf("second register should be a no-op: %v", err)
	}

	rr := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("default registry output missing runtime metrics")
	}
}
