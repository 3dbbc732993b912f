package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the Prometheus collectors shared by the chat client and the simulator
type Metrics struct {
	SubmissionsTotal   *prometheus.CounterVec
	InFlight           prometheus.Gauge
	BackendConnected   prometheus.Gauge
	GatewayDuration    *prometheus.HistogramVec
	HTTPRequestsTotal  *prometheus.CounterVec
	RepliesByAgent     *prometheus.CounterVec
	ClassifierCacheHit *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "submissions_total",
			Help:      "Message submissions by outcome.",
		}, []string{"outcome"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "submissions_in_flight",
			Help:      "Submissions awaiting the backend.",
		}),
		BackendConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "backend_connected",
			Help:      "1 when the last health probe succeeded.",
		}),
		GatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chat",
			Name:      "gateway_request_duration_seconds",
			Help:      "Backend call latency by endpoint and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "outcome"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_backend",
			Name:      "http_requests_total",
			Help:      "Simulator HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		RepliesByAgent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_backend",
			Name:      "replies_total",
			Help:      "Assistant replies by agent.",
		}, []string{"agent"}),
		ClassifierCacheHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_backend",
			Name:      "classifier_cache_total",
			Help:      "Classifier cache lookups by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.SubmissionsTotal,
			m.InFlight,
			m.BackendConnected,
			m.GatewayDuration,
			m.HTTPRequestsTotal,
			m.RepliesByAgent,
			m.ClassifierCacheHit,
		)
	}
	return m
}

// ObserveGateway records one backend call
func (m *Metrics) ObserveGateway(endpoint, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.GatewayDuration.WithLabelValues(endpoint, outcome).Observe(time.Since(started).Seconds())
}

// RecordSubmission counts a settled or rejected submission
func (m *Metrics) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// IncInFlight marks a submission as waiting for the backend
func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

// DecInFlight marks a submission as settled
func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}

// SetConnected mirrors the connection flag
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.BackendConnected.Set(1)
		return
	}
	m.BackendConnected.Set(0)
}

// ObserveHTTP counts one simulator request
func (m *Metrics) ObserveHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// ObserveReply counts one assistant reply produced by agent
func (m *Metrics) ObserveReply(agent string) {
	if m == nil {
		return
	}
	m.RepliesByAgent.WithLabelValues(agent).Inc()
}

// ObserveClassifierCache counts a classifier cache lookup ("hit" or "miss")
func (m *Metrics) ObserveClassifierCache(result string) {
	if m == nil {
		return
	}
	m.ClassifierCacheHit.WithLabelValues(result).Inc()
}
