package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"strategist/pkg/logger"
)

// SessionCounter reports the number of live sessions.
type SessionCounter interface {
	Len() int
}

// HealthChecker is satisfied by the storage clients.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// StateCollector reports session and backend state on every scrape
type StateCollector struct {
	log      *logger.Logger
	sessions SessionCounter
	backends map[string]HealthChecker

	sessionsActive *prometheus.Desc
	backendUp      *prometheus.Desc
}

// NewStateCollector creates a collector. backends maps a name (postgres, redis, ...) to its client.
func NewStateCollector(log *logger.Logger, sessions SessionCounter, backends map[string]HealthChecker) *StateCollector {
	return &StateCollector{
		log:      log,
		sessions: sessions,
		backends: backends,

		sessionsActive: prometheus.NewDesc(
			"strategist_sessions_active",
			"Conversation sessions currently held in memory",
			nil, nil,
		),
		backendUp: prometheus.NewDesc(
			"strategist_backend_up",
			"Backend health (1=up, 0=down)",
			[]string{"backend"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *StateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessionsActive
	ch <- c.backendUp
}

// Collect implements prometheus.Collector
func (c *StateCollector) Collect(ch chan<- prometheus.Metric) {
	if c.sessions != nil {
		ch <- prometheus.MustNewConstMetric(c.sessionsActive, prometheus.GaugeValue, float64(c.sessions.Len()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for name, backend := range c.backends {
		up := 1.0
		if err := backend.Health(ctx); err != nil {
			c.log.Debugw("backend health check failed", "backend", name, "error", err)
			up = 0
		}
		ch <- prometheus.MustNewConstMetric(c.backendUp, prometheus.GaugeValue, up, name)
	}
}

// RegisterStateCollector registers the collector with the default registry
func RegisterStateCollector(collector *StateCollector) error {
	return prometheus.Register(collector)
}
