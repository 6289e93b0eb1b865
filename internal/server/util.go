package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/loykin/focuspilot/internal/engine"
	"github.com/loykin/focuspilot/internal/store"
	"github.com/loykin/focuspilot/internal/tracker"
)

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	bp = strings.TrimRight(bp, "/")
	return bp
}

// parseTabID reads the :id path parameter. Browser tab IDs are non-negative.
func parseTabID(s string) (int, bool) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	var se *store.Error
	switch {
	case errors.Is(err, engine.ErrInvalidMinutes),
		errors.Is(err, engine.ErrUnknownIdleState),
		errors.Is(err, engine.ErrUnknownMessage):
		return http.StatusBadRequest
	case errors.Is(err, tracker.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.As(err, &se):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(c *gin.Context, code int, v any) {
	c.Header("Content-Type", "application/json")
	c.Status(code)
	_ = json.NewEncoder(c.Writer).Encode(v)
}

func writeError(c *gin.Context, err error) {
	writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
}
