package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/focuspilot/internal/config"
	"github.com/loykin/focuspilot/internal/engine"
	"github.com/loykin/focuspilot/internal/metrics"
	"github.com/loykin/focuspilot/internal/notify"
	"github.com/loykin/focuspilot/internal/tabs"
	itls "github.com/loykin/focuspilot/internal/tls"
	"github.com/loykin/focuspilot/internal/tracker"
)

// Router exposes the engine over HTTP.
// Endpoints (relative to basePath):
//
//	POST /events/activated      {tabId, windowId, url}
//	POST /events/updated        {tabId, url}
//	POST /events/removed        {tabId}
//	POST /events/idle           {state: idle|locked|active}
//	GET  /stats                 last 24h summary
//	POST /reset                 clear focus records
//	POST /dashboard             open the dashboard page
//	POST /settings              open the settings page, query tab=sites optional
//	POST /focus-session         {minutes}
//	POST /snooze                {durationMs} optional
//	GET  /config, PUT /config   effective focus settings
//	GET  /state                 activity state and known tabs
//	POST /assess                run one assessment now
//	POST /message               runtime message envelope
//	GET  /tabs/:id/reminders    SSE stream of reminders, ack=manual optional
//	POST /tabs/:id/reminders/:rid/ack
//	GET  /tabs/:id/inline       drain fallback reminders
//
// With metrics enabled, GET /metrics is served outside basePath.
type Router struct {
	eng       *engine.Engine
	basePath  string
	metrics   bool
	keepAlive time.Duration

	mu      sync.Mutex
	pending map[string]*notify.Delivery
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/api" results in /api/stats, /api/events/activated, ...
func NewRouter(eng *engine.Engine, basePath string) *Router {
	return &Router{
		eng:       eng,
		basePath:  sanitizeBase(basePath),
		keepAlive: 15 * time.Second,
		pending:   make(map[string]*notify.Delivery),
	}
}

// WithMetrics mounts the Prometheus handler at /metrics.
func (r *Router) WithMetrics() *Router {
	r.metrics = true
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	if r.metrics {
		g.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	group := g.Group(r.basePath)
	group.POST("/events/activated", r.handleActivated)
	group.POST("/events/updated", r.handleUpdated)
	group.POST("/events/removed", r.handleRemoved)
	group.POST("/events/idle", r.handleIdle)
	group.GET("/stats", r.handleStats)
	group.POST("/reset", r.handleReset)
	group.POST("/dashboard", r.handleDashboard)
	group.POST("/settings", r.handleSettings)
	group.POST("/focus-session", r.handleFocusSession)
	group.POST("/snooze", r.handleSnooze)
	group.GET("/config", r.handleGetConfig)
	group.PUT("/config", r.handlePutConfig)
	group.GET("/state", r.handleState)
	group.POST("/assess", r.handleAssess)
	group.POST("/message", r.handleMessage)
	group.GET("/tabs/:id/reminders", r.handleReminderStream)
	group.POST("/tabs/:id/reminders/:rid/ack", r.handleAck)
	group.GET("/tabs/:id/inline", r.handleInline)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// The listener is bound before returning so address errors surface here.
// Reminder streams are long-lived, so no write timeout is set.
func NewServer(addr, basePath string, eng *engine.Engine, withMetrics bool) (*http.Server, error) {
	return serve(addr, basePath, eng, withMetrics, nil)
}

// NewTLSServer is NewServer with the TLS settings of cfg applied. It falls
// back to plain HTTP when cfg.TLS is disabled.
func NewTLSServer(cfg config.ServerConfig, eng *engine.Engine, withMetrics bool) (*http.Server, error) {
	tlsCfg, err := itls.Setup(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}
	return serve(cfg.Listen, cfg.BasePath, eng, withMetrics, tlsCfg)
}

func serve(addr, basePath string, eng *engine.Engine, withMetrics bool, tlsCfg *tls.Config) (*http.Server, error) {
	r := NewRouter(eng, basePath)
	if withMetrics {
		r.WithMetrics()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           r.Handler(),
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if tlsCfg != nil {
		go func() { _ = server.ServeTLS(ln, "", "") }()
	} else {
		go func() { _ = server.Serve(ln) }()
	}
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type activatedReq struct {
	TabID    *int   `json:"tabId"`
	WindowID int    `json:"windowId"`
	URL      string `json:"url"`
}

type updatedReq struct {
	TabID *int   `json:"tabId"`
	URL   string `json:"url"`
}

type removedReq struct {
	TabID *int `json:"tabId"`
}

type idleReq struct {
	State string `json:"state"`
}

type focusSessionReq struct {
	Minutes int `json:"minutes"`
}

type snoozeReq struct {
	DurationMs int64 `json:"durationMs"`
}

type stateResp struct {
	State tracker.State `json:"state"`
	Tabs  []tabs.Tab    `json:"tabs"`
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func requireTab(c *gin.Context, id *int) (int, bool) {
	if id == nil || *id < 0 {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "tabId required"})
		return 0, false
	}
	return *id, true
}

func (r *Router) handleActivated(c *gin.Context) {
	var req activatedReq
	if !bindJSON(c, &req) {
		return
	}
	id, ok := requireTab(c, req.TabID)
	if !ok {
		return
	}
	if err := r.eng.TabActivated(c.Request.Context(), id, req.WindowID, req.URL); err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, engine.Ack{OK: true})
}

func (r *Router) handleUpdated(c *gin.Context) {
	var req updatedReq
	if !bindJSON(c, &req) {
		return
	}
	id, ok := requireTab(c, req.TabID)
	if !ok {
		return
	}
	if err := r.eng.TabUpdated(c.Request.Context(), id, req.URL); err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, engine.Ack{OK: true})
}

func (r *Router) handleRemoved(c *gin.Context) {
	var req removedReq
	if !bindJSON(c, &req) {
		return
	}
	id, ok := requireTab(c, req.TabID)
	if !ok {
		return
	}
	if err := r.eng.TabRemoved(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, engine.Ack{OK: true})
}

func (r *Router) handleIdle(c *gin.Context) {
	var req idleReq
	if !bindJSON(c, &req) {
		return
	}
	if err := r.eng.IdleStateChanged(c.Request.Context(), req.State); err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, engine.Ack{OK: true})
}

func (r *Router) handleStats(c *gin.Context) {
	st, err := r.eng.GetStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleReset(c *gin.Context) {
	ack, err := r.eng.ResetData(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, ack)
}

func (r *Router) handleDashboard(c *gin.Context) {
	ack, _ := r.eng.OpenDashboard(c.Request.Context())
	writeJSON(c, http.StatusOK, ack)
}

func (r *Router) handleSettings(c *gin.Context) {
	ack, _ := r.eng.OpenSettings(c.Request.Context(), c.Query("tab"))
	writeJSON(c, http.StatusOK, ack)
}

func (r *Router) handleFocusSession(c *gin.Context) {
	var req focusSessionReq
	if !bindJSON(c, &req) {
		return
	}
	out, err := r.eng.StartFocusSession(c.Request.Context(), req.Minutes)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleSnooze(c *gin.Context) {
	var req snoozeReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	out, err := r.eng.Snooze(c.Request.Context(), time.Duration(req.DurationMs)*time.Millisecond)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleGetConfig(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.eng.Focus())
}

func (r *Router) handlePutConfig(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	f, err := r.eng.UpdateConfig(c.Request.Context(), raw)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, f)
}

func (r *Router) handleState(c *gin.Context) {
	writeJSON(c, http.StatusOK, stateResp{State: r.eng.Snapshot(), Tabs: r.eng.Tabs()})
}

func (r *Router) handleAssess(c *gin.Context) {
	d, err := r.eng.Assess(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (r *Router) handleMessage(c *gin.Context) {
	var m engine.Message
	if !bindJSON(c, &m) {
		return
	}
	out, err := r.eng.HandleMessage(c.Request.Context(), m)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleInline(c *gin.Context) {
	id, ok := parseTabID(c.Param("id"))
	if !ok {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid tab id"})
		return
	}
	writeJSON(c, http.StatusOK, r.eng.DrainInline(id))
}

func pendingKey(tabID int, reminderID string) string {
	return strconv.Itoa(tabID) + "/" + reminderID
}
