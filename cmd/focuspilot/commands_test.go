package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/loykin/focuspilot/internal/config"
	"github.com/loykin/focuspilot/internal/engine"
	"github.com/loykin/focuspilot/internal/server"
	"github.com/loykin/focuspilot/internal/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDaemon(t *testing.T) (string, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Store.DSN = "memory"
	eng, err := engine.New(cfg, engine.WithLauncher(surface.Noop{}), engine.WithoutScheduler())
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	srv := httptest.NewServer(server.NewRouter(eng, "/api").Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = eng.Close()
	})
	return srv.URL + "/api", eng
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHelp(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "focuspilot")
	for _, sub := range []string{"serve", "stats", "focus", "snooze", "event", "config"} {
		assert.Contains(t, out, sub)
	}
}

func TestDaemonNotReachable(t *testing.T) {
	_, err := run(t, "stats", "--api-url", "http://127.0.0.1:1/api", "--api-timeout", "200ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon not reachable")
}

func TestEventsThenStatsJSON(t *testing.T) {
	api, eng := newDaemon(t)

	_, err := run(t, "event", "activated", "--api-url", api, "--tab", "3", "--window", "1", "--url", "https://github.com/golang/go")
	require.NoError(t, err)
	assert.Equal(t, 3, eng.Snapshot().CurrentTabID)

	_, err = run(t, "event", "updated", "--api-url", api, "--tab", "3", "--url", "https://www.youtube.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/", eng.Snapshot().CurrentURL)

	out, err := run(t, "stats", "--json", "--api-url", api)
	require.NoError(t, err)
	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Contains(t, st, "totalFocusedMs")
	assert.Contains(t, st, "distractionCount")
}

func TestStatsRendered(t *testing.T) {
	api, _ := newDaemon(t)
	out, err := run(t, "stats", "--api-url", api)
	require.NoError(t, err)
	assert.Contains(t, out, "Last 24 hours")
	assert.Contains(t, out, "Distractions")
}

func TestEventIdle(t *testing.T) {
	api, eng := newDaemon(t)

	_, err := run(t, "event", "idle", "locked", "--api-url", api)
	require.NoError(t, err)
	assert.True(t, eng.Snapshot().Idle)

	_, err = run(t, "event", "idle", "active", "--api-url", api)
	require.NoError(t, err)
	assert.False(t, eng.Snapshot().Idle)

	_, err = run(t, "event", "idle", "asleep", "--api-url", api)
	require.Error(t, err)
}

func TestEventRemovedRequiresTab(t *testing.T) {
	_, err := run(t, "event", "removed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tab")
}

func TestFocusAndSnooze(t *testing.T) {
	api, _ := newDaemon(t)

	out, err := run(t, "focus", "--minutes", "25", "--api-url", api)
	require.NoError(t, err)
	assert.Contains(t, out, "focus session started")

	out, err = run(t, "snooze", "--duration", "10m", "--api-url", api)
	require.NoError(t, err)
	assert.Contains(t, out, "snoozed until")

	_, err = run(t, "focus", "--minutes", "0", "--api-url", api)
	require.Error(t, err)
}

func TestResetDashboardSettings(t *testing.T) {
	api, _ := newDaemon(t)

	out, err := run(t, "reset", "--api-url", api)
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")

	out, err = run(t, "dashboard", "--api-url", api)
	require.NoError(t, err)
	assert.Contains(t, out, `"ok": true`)

	out, err = run(t, "settings", "--sites", "--api-url", api)
	require.NoError(t, err)
	assert.Contains(t, out, `"ok": true`)
}

func TestConfigSetAndGet(t *testing.T) {
	api, eng := newDaemon(t)

	out, err := run(t, "config", "set", `{"distractionSwitchThreshold":7}`, "--api-url", api)
	require.NoError(t, err)
	assert.Contains(t, out, `"distractionSwitchThreshold": 7`)
	assert.Equal(t, 7, eng.Focus().DistractionSwitchThreshold)

	out, err = run(t, "config", "get", "--api-url", api)
	require.NoError(t, err)
	assert.Contains(t, out, "productiveDomains")

	_, err = run(t, "config", "set", `not json`, "--api-url", api)
	require.Error(t, err)

	_, err = run(t, "config", "set", `{"distractionSwitchThreshold":0}`, "--api-url", api)
	require.Error(t, err)
	assert.Equal(t, 7, eng.Focus().DistractionSwitchThreshold)
}

func TestStateAndAssess(t *testing.T) {
	api, _ := newDaemon(t)
	_, err := run(t, "event", "activated", "--api-url", api, "--tab", "1", "--url", "https://example.com")
	require.NoError(t, err)

	out, err := run(t, "state", "--api-url", api)
	require.NoError(t, err)
	assert.Contains(t, out, "https://example.com")

	out, err = run(t, "assess", "--api-url", api)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "shouldRemind"))
}

func TestConfigShowYAML(t *testing.T) {
	out, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "assess_interval")
	assert.Contains(t, out, "distractionSwitchThreshold")
}
