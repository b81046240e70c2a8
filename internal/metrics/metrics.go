// Package metrics holds the Prometheus collectors for the interviewer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "interviewer"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	snapshots       *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
	avatarStarts    *prometheus.CounterVec
	activeSessions  prometheus.Gauge
}

// New registers the collectors on a fresh registry, along with Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// NewWithRegistry registers only the interviewer collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_snapshots_total",
			Help:      "Transcript snapshots forwarded to the frontend.",
		}, []string{"kind"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_publish_failures_total",
			Help:      "Transcript snapshots that could not be published.",
		}, []string{"reason"}),
		avatarStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "avatar_start_total",
			Help:      "Avatar provider start attempts by outcome and failure category.",
		}, []string{"outcome", "category"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Agent sessions currently running.",
		}),
	}
	reg.MustRegister(m.snapshots, m.publishFailures, m.avatarStarts, m.activeSessions)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SnapshotSent counts a forwarded snapshot; final marks the terminal flush.
func (m *Metrics) SnapshotSent(final bool) {
	if m == nil {
		return
	}
	kind := "incremental"
	if final {
		kind = "final"
	}
	m.snapshots.WithLabelValues(kind).Inc()
}

// PublishFailed counts a failed publish.
func (m *Metrics) PublishFailed(reason string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(reason).Inc()
}

// AvatarStart counts an avatar start attempt. category is empty on success.
func (m *Metrics) AvatarStart(success bool, category string) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
		category = "none"
	}
	m.avatarStarts.WithLabelValues(outcome, category).Inc()
}

// SessionStarted increments the active session gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionEnded decrements the active session gauge.
func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
