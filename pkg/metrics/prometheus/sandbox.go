// Package prometheus implements metrics.SandboxMetrics on Prometheus.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/sandboxd/pkg/metrics"
)

const namespace = "sandboxd"

// sandboxMetrics is the Prometheus implementation of metrics.SandboxMetrics.
// All methods are nil-safe.
type sandboxMetrics struct {
	sessionsStarted   prometheus.Counter
	sessionsEnded     *prometheus.CounterVec
	sessionDuration   prometheus.Histogram
	authAttempts      *prometheus.CounterVec
	commands          *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	bytesSent         prometheus.Counter
	frameErrors       *prometheus.CounterVec
	connsAccepted     prometheus.Counter
	connsClosed       prometheus.Counter
	connsForceClosed  prometheus.Counter
	activeConnections prometheus.Gauge
}

// NewSandboxMetrics creates metrics on the global registry.
//
// Returns metrics.NopSandboxMetrics if metrics are not enabled
// (metrics.InitRegistry not called).
func NewSandboxMetrics() metrics.SandboxMetrics {
	if !metrics.IsEnabled() {
		return metrics.NopSandboxMetrics{}
	}
	return NewSandboxMetricsWith(metrics.GetRegistry())
}

// NewSandboxMetricsWith creates metrics registered on reg.
func NewSandboxMetricsWith(reg prometheus.Registerer) metrics.SandboxMetrics {
	f := promauto.With(reg)

	return &sandboxMetrics{
		sessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of sessions that reached the handshake",
		}),
		sessionsEnded: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_ended_total",
				Help:      "Total number of ended sessions by reason",
			},
			[]string{"reason"},
		),
		sessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Session lifetime in seconds",
			Buckets:   []float64{0.01, 0.1, 1, 10, 60, 300, 1800, 3600},
		}),
		authAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Total number of handshakes by result",
			},
			[]string{"success"},
		),
		commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of executed commands by verb and outcome",
			},
			[]string{"verb", "outcome"},
		),
		commandDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Command execution time in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100us .. ~26s
			},
			[]string{"verb"},
		),
		bytesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_bytes_total",
			Help:      "Total reply payload bytes sent to clients",
		}),
		frameErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frame_errors_total",
				Help:      "Total number of frames that could not be read by reason",
			},
			[]string{"reason"},
		),
		connsAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted TCP connections",
		}),
		connsClosed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of closed TCP connections",
		}),
		connsForceClosed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_force_closed_total",
			Help:      "Total number of connections closed after the shutdown timeout",
		}),
		activeConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Current number of open connections",
		}),
	}
}

func (m *sandboxMetrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

func (m *sandboxMetrics) RecordSessionEnd(reason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sessionsEnded.WithLabelValues(reason).Inc()
	m.sessionDuration.Observe(duration.Seconds())
}

func (m *sandboxMetrics) RecordAuthAttempt(ok bool) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func (m *sandboxMetrics) RecordCommand(verb, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(verb, outcome).Inc()
	m.commandDuration.WithLabelValues(verb).Observe(duration.Seconds())
}

func (m *sandboxMetrics) RecordBytesSent(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesSent.Add(float64(n))
}

func (m *sandboxMetrics) RecordFrameError(reason string) {
	if m == nil {
		return
	}
	m.frameErrors.WithLabelValues(reason).Inc()
}

func (m *sandboxMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connsAccepted.Inc()
}

func (m *sandboxMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connsClosed.Inc()
}

func (m *sandboxMetrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connsForceClosed.Inc()
}

func (m *sandboxMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}
