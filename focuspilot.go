// Package focuspilot is the public facade for embedding the FocusPilot
// engine and its HTTP API in another program.
package focuspilot

import (
	"net/http"
	"time"

	cfg "github.com/loykin/focuspilot/internal/config"
	"github.com/loykin/focuspilot/internal/engine"
	"github.com/loykin/focuspilot/internal/history"
	"github.com/loykin/focuspilot/internal/metrics"
	"github.com/loykin/focuspilot/internal/notify"
	iapi "github.com/loykin/focuspilot/internal/server"
	"github.com/loykin/focuspilot/internal/store"
	"github.com/loykin/focuspilot/internal/surface"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Focus = cfg.Focus

type Engine = engine.Engine

type Option = engine.Option

type Message = engine.Message

type Store = store.Store

type HistorySink = history.Sink

type HistoryEvent = history.Event

type Launcher = surface.Launcher

type Fallback = notify.Fallback

type InlineReminder = notify.InlineReminder

func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

func DefaultConfig() *Config { return cfg.Default() }

func DefaultFocus() Focus { return cfg.DefaultFocus() }

// New builds an engine from c. Call Start before feeding events and Close
// when done.
func New(c *Config, opts ...Option) (*Engine, error) { return engine.New(c, opts...) }

func WithStore(s Store) Option                 { return engine.WithStore(s) }
func WithClock(now func() time.Time) Option    { return engine.WithClock(now) }
func WithLauncher(l Launcher) Option           { return engine.WithLauncher(l) }
func WithFallback(f Fallback) Option           { return engine.WithFallback(f) }
func WithHistorySinks(s ...HistorySink) Option { return engine.WithHistorySinks(s...) }
func WithoutScheduler() Option                 { return engine.WithoutScheduler() }

// NoopLauncher ignores OpenDashboard and OpenSettings requests.
var NoopLauncher Launcher = surface.Noop{}

// NewHTTPHandler returns the API handler for e, mounted under basePath.
func NewHTTPHandler(e *Engine, basePath string) http.Handler {
	return iapi.NewRouter(e, basePath).Handler()
}

// NewHTTPServer starts an HTTP server exposing the API of e.
func NewHTTPServer(addr, basePath string, e *Engine) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, e, false)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler { return metrics.Handler() }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
