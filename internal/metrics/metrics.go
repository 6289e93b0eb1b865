package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	focusRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "focuspilot",
			Subsystem: "focus",
			Name:      "records_total",
			Help:      "Number of focus records appended to the event log.",
		}, []string{"productive"},
	)
	focusDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "focuspilot",
			Subsystem: "focus",
			Name:      "record_duration_seconds",
			Help:      "Duration of closed focus intervals.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 900, 1800, 3600},
		}, []string{"productive"},
	)
	remindersDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "focuspilot",
			Subsystem: "notify",
			Name:      "reminders_total",
			Help:      "Reminders delivered by reason and channel.",
		}, []string{"reason", "channel"},
	)
	remindersSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "focuspilot",
			Subsystem: "notify",
			Name:      "suppressed_total",
			Help:      "Reminders not delivered, by reason and cause.",
		}, []string{"reason", "cause"},
	)
	storeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "focuspilot",
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Event log and key/value failures by operation.",
		}, []string{"op"},
	)
	distractionScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "focuspilot",
			Subsystem: "assess",
			Name:      "distraction_score",
			Help:      "Distraction score computed by the most recent assessment.",
		},
	)
	quickSwitches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "focuspilot",
			Subsystem: "tracker",
			Name:      "quick_switch_count",
			Help:      "Current quick switch counter.",
		},
	)
	historyDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "focuspilot",
			Subsystem: "history",
			Name:      "dropped_total",
			Help:      "History events dropped because the export queue was full or a sink failed.",
		}, []string{"cause"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{focusRecords, focusDuration, remindersDelivered, remindersSuppressed, storeErrors, distractionScore, quickSwitches, historyDropped}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func ObserveFocusRecord(productive bool, durationMs int64) {
	if regOK.Load() {
		l := boolLabel(productive)
		focusRecords.WithLabelValues(l).Inc()
		focusDuration.WithLabelValues(l).Observe(float64(durationMs) / 1000)
	}
}

func IncReminder(reason, channel string) {
	if regOK.Load() {
		remindersDelivered.WithLabelValues(reason, channel).Inc()
	}
}

func IncSuppressed(reason, cause string) {
	if regOK.Load() {
		remindersSuppressed.WithLabelValues(reason, cause).Inc()
	}
}

func IncStoreError(op string) {
	if regOK.Load() {
		storeErrors.WithLabelValues(op).Inc()
	}
}

func SetDistractionScore(score int) {
	if regOK.Load() {
		distractionScore.Set(float64(score))
	}
}

func SetQuickSwitchCount(n int) {
	if regOK.Load() {
		quickSwitches.Set(float64(n))
	}
}

func IncHistoryDropped(cause string) {
	if regOK.Load() {
		historyDropped.WithLabelValues(cause).Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
