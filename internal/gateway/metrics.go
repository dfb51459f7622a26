// ABOUTME: Prometheus metrics for the gateway
// ABOUTME: Tracks connection counts, handshake rejections, and reaper activity

package gateway

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/innovexlabs/quickfix-gateway/internal/registry"
)

// Metrics holds all Prometheus metrics for quickfix-gateway.
// Pass to components that need to record metrics.
type Metrics struct {
	ConnectionsTotal         prometheus.Gauge
	ConnectionsAuthenticated prometheus.Gauge
	ConnectionsByRole        *prometheus.GaugeVec
	HandshakeRejects         *prometheus.CounterVec
	ReapedTotal              prometheus.Counter

	mu sync.Mutex
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "quickfix",
				Name:      "connections_total",
				Help:      "Number of registered websocket connections",
			},
		),
		ConnectionsAuthenticated: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "quickfix",
				Name:      "connections_authenticated",
				Help:      "Number of authenticated websocket connections",
			},
		),
		ConnectionsByRole: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "quickfix",
				Name:      "connections_by_role",
				Help:      "Authenticated connections grouped by role",
			},
			[]string{"role"},
		),
		HandshakeRejects: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quickfix",
				Name:      "handshake_rejects_total",
				Help:      "Rejected connection handshakes by reason",
			},
			[]string{"reason"},
		),
		ReapedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "quickfix",
				Name:      "connections_reaped_total",
				Help:      "Idle connections removed by the reaper",
			},
		),
	}
}

// RecordConnectionStats updates the connection gauges from a stats snapshot.
func (m *Metrics) RecordConnectionStats(stats registry.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConnectionsTotal.Set(float64(stats.Total))
	m.ConnectionsAuthenticated.Set(float64(stats.Authenticated))
	m.ConnectionsByRole.Reset()
	for role, n := range stats.ByRole {
		m.ConnectionsByRole.WithLabelValues(role).Set(float64(n))
	}
}

// RecordReaped counts idle connections removed by a sweep.
func (m *Metrics) RecordReaped(n int) {
	m.ReapedTotal.Add(float64(n))
}

// RecordHandshakeReject counts a rejected handshake by reason.
func (m *Metrics) RecordHandshakeReject(reason string) {
	m.HandshakeRejects.WithLabelValues(reason).Inc()
}
