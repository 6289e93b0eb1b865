package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/loykin/focuspilot/internal/engine"
	"github.com/loykin/focuspilot/internal/store"
	"github.com/loykin/focuspilot/internal/tracker"
)

func TestSanitizeBase(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"api", "/api"},
		{"/api", "/api"},
		{"/api/", "/api"},
		{" api ", "/api"},
	}
	for _, c := range cases {
		if got := sanitizeBase(c.in); got != c.want {
			t.Fatalf("sanitizeBase(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestParseTabID(t *testing.T) {
	valid := map[string]int{"0": 0, "7": 7, "1234": 1234}
	invalid := []string{"", "-1", "x", "1.5"}
	for in, want := range valid {
		got, ok := parseTabID(in)
		if !ok || got != want {
			t.Fatalf("parseTabID(%q) = %d, %v", in, got, ok)
		}
	}
	for _, in := range invalid {
		if _, ok := parseTabID(in); ok {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", engine.ErrInvalidMinutes), http.StatusBadRequest},
		{engine.ErrUnknownIdleState, http.StatusBadRequest},
		{tracker.ErrClosed, http.StatusServiceUnavailable},
		{fmt.Errorf("switch: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{context.Canceled, http.StatusServiceUnavailable},
		{store.Wrap("append", errors.New("disk full")), http.StatusInternalServerError},
		{errors.New("bad settings"), http.StatusBadRequest},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Fatalf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { writeJSON(c, 201, map[string]any{"a": 1}) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/x", nil))
	if rec.Code != 201 {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type: %s", ct)
	}
}
