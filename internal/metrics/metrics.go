// Package metrics exposes Prometheus instrumentation for API calls and
// session activity.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Gateway request metrics
	Requests       *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
	RequestErrors  *prometheus.CounterVec

	// Session metrics
	SessionTransitions *prometheus.CounterVec
	AuthOperations     *prometheus.CounterVec

	// Local alert feed
	AlertsRecorded *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nauru_api_requests_total",
				Help: "Total number of API requests by outcome",
			},
			[]string{"method", "route", "status"},
		),
		RequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nauru_api_request_duration_seconds",
				Help:    "API request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
			[]string{"method", "route"},
		),
		RequestErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nauru_api_request_errors_total",
				Help: "Total number of failed API requests by error kind",
			},
			[]string{"method", "route", "kind"},
		),
		SessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nauru_session_transitions_total",
				Help: "Session state transitions",
			},
			[]string{"from", "to"},
		),
		AuthOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nauru_auth_operations_total",
				Help: "Session operations by result",
			},
			[]string{"operation", "success"},
		),
		AlertsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nauru_alerts_recorded_total",
				Help: "Alerts added to the local feed",
			},
			[]string{"severity", "source"},
		),
	}
}

// ObserveRequest records a completed request. status is 0 when no response arrived.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveRequestError records a failed request by error kind.
func (m *Metrics) ObserveRequestError(method, route, kind string) {
	if m == nil {
		return
	}
	m.RequestErrors.WithLabelValues(method, route, kind).Inc()
}

// ObserveTransition records a session state change.
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.SessionTransitions.WithLabelValues(from, to).Inc()
}

// ObserveAuth records the result of a session operation.
func (m *Metrics) ObserveAuth(operation string, success bool) {
	if m == nil {
		return
	}
	m.AuthOperations.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
}

// ObserveAlert records an alert added to the local feed.
func (m *Metrics) ObserveAlert(severity, source string) {
	if m == nil {
		return
	}
	m.AlertsRecorded.WithLabelValues(severity, source).Inc()
}
