package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// handleReminderStream registers the client as the primary listener of a
// tab and streams reminders as "reminder" events. By default a reminder is
// acknowledged once it is flushed to the client; with ack=manual the client
// must POST the ack within the dispatch timeout.
func (r *Router) handleReminderStream(c *gin.Context) {
	tabID, ok := parseTabID(c.Param("id"))
	if !ok {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid tab id"})
		return
	}
	manual := c.Query("ack") == "manual"

	sub := r.eng.Subscribe(tabID)
	defer sub.Close()
	defer r.dropPending(tabID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ping := time.NewTicker(r.keepAlive)
	defer ping.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if _, err := c.Writer.WriteString(": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case d := <-sub.C:
			c.SSEvent("reminder", d.Msg)
			c.Writer.Flush()
			if manual {
				r.mu.Lock()
				r.pending[pendingKey(tabID, d.Msg.ID)] = d
				r.mu.Unlock()
				continue
			}
			d.Ack()
		}
	}
}

func (r *Router) handleAck(c *gin.Context) {
	tabID, ok := parseTabID(c.Param("id"))
	if !ok {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid tab id"})
		return
	}
	key := pendingKey(tabID, c.Param("rid"))
	r.mu.Lock()
	d, found := r.pending[key]
	delete(r.pending, key)
	r.mu.Unlock()
	if !found {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "no pending reminder " + c.Param("rid")})
		return
	}
	d.Ack()
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) dropPending(tabID int) {
	prefix := pendingKey(tabID, "")
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.pending {
		if strings.HasPrefix(k, prefix) {
			delete(r.pending, k)
		}
	}
}

type okResp struct {
	OK bool `json:"ok"`
}
