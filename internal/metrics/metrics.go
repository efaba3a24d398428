// Package metrics exposes relay counters and gauges to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "modrelay"

// Metrics holds the relay's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	feedEvents       *prometheus.CounterVec
	feedSessions     *prometheus.CounterVec
	feedConnected    prometheus.Gauge
	feedCursor       prometheus.Gauge
	decisions        *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	queueDepth       prometheus.Gauge
	intake           *prometheus.CounterVec
	submissions      *prometheus.GaugeVec
}

// New registers the relay collectors, plus Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegisterer(registry, registry)
}

// NewWithRegisterer registers the relay collectors on registerer. registry
// backs Handler and may be nil when the caller serves metrics itself.
func NewWithRegisterer(registerer prometheus.Registerer, registry *prometheus.Registry) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: registry,
		feedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_events_total",
				Help:      "Change events received from the submission feed.",
			},
			[]string{"type", "replay"},
		),
		feedSessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_sessions_total",
				Help:      "Change feed sessions by result.",
			},
			[]string{"result"}, // started | failed
		),
		feedConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_connected",
			Help:      "1 while a change feed session is open.",
		}),
		feedCursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_cursor",
			Help:      "Last change log sequence consumed.",
		}),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifier_decisions_total",
				Help:      "Classifier decisions by kind.",
			},
			[]string{"decision"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification delivery outcomes.",
			},
			[]string{"outcome", "status"},
		),
		deliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_duration_seconds",
				Help:      "Time spent per delivery attempt, including marker claim.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Jobs waiting for a dispatcher worker.",
		}),
		intake: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intake_messages_total",
				Help:      "Bot messages handled by the intake poller.",
			},
			[]string{"result"}, // submitted | start | history | ignored | failed
		),
		submissions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "submissions",
				Help:      "Submissions in the store by status.",
			},
			[]string{"status"},
		),
	}

	registerer.MustRegister(
		m.feedEvents,
		m.feedSessions,
		m.feedConnected,
		m.feedCursor,
		m.decisions,
		m.deliveries,
		m.deliveryDuration,
		m.queueDepth,
		m.intake,
		m.submissions,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveFeedEvent(changeType string, replay bool) {
	if m == nil {
		return
	}
	r := "false"
	if replay {
		r = "true"
	}
	m.feedEvents.WithLabelValues(changeType, r).Inc()
}

func (m *Metrics) SessionStarted(cursor int64) {
	if m == nil {
		return
	}
	m.feedSessions.WithLabelValues("started").Inc()
	m.feedConnected.Set(1)
	m.feedCursor.Set(float64(cursor))
}

func (m *Metrics) SessionEnded(failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.feedSessions.WithLabelValues("failed").Inc()
	}
	m.feedConnected.Set(0)
}

func (m *Metrics) SetCursor(cursor int64) {
	if m == nil {
		return
	}
	m.feedCursor.Set(float64(cursor))
}

func (m *Metrics) ObserveDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) ObserveDelivery(outcome, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome, status).Inc()
	m.deliveryDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) ObserveIntake(result string) {
	if m == nil {
		return
	}
	m.intake.WithLabelValues(result).Inc()
}

// SetSubmissionCounts replaces the per-status submission gauges.
func (m *Metrics) SetSubmissionCounts(counts map[string]int) {
	if m == nil {
		return
	}
	m.submissions.Reset()
	for status, count := range counts {
		m.submissions.WithLabelValues(status).Set(float64(count))
	}
}
