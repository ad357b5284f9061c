package dbmanager

import (
	"github.com/prometheus/client_golang/prometheus"
)

var reconnectAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dbmanager_reconnect_attempts_total",
		Help: "Total number of reconnection attempts",
	},
	[]string{"name", "engine", "result"},
)

func recordReconnect(conn *Connection, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	reconnectAttempts.WithLabelValues(conn.Name(), string(conn.Engine()), result).Inc()
}

var (
	statusDesc = prometheus.NewDesc("dbmanager_connection_status",
		"Connection status (1=healthy, 0=unhealthy)", []string{"name", "engine"}, nil)
	poolDesc = prometheus.NewDesc("dbmanager_connection_pool_size",
		"Current connection pool size", []string{"name", "engine", "state"}, nil)
	waitCountDesc = prometheus.NewDesc("dbmanager_connection_wait_count",
		"Number of times connections had to wait for availability", []string{"name", "engine"}, nil)
	waitDurationDesc = prometheus.NewDesc("dbmanager_connection_wait_duration_seconds",
		"Total time connections spent waiting for availability", []string{"name", "engine"}, nil)
)

// collector reports the pool statistics of a Manager at scrape time.
type collector struct {
	m *Manager
}

// Collector returns a prometheus.Collector exposing the connection pools
// of m and its reconnect attempts.
func (m *Manager) Collector() prometheus.Collector {
	return collector{m: m}
}

func (c collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- statusDesc
	ch <- poolDesc
	ch <- waitCountDesc
	ch <- waitDurationDesc
	reconnectAttempts.Describe(ch)
}

func (c collector) Collect(ch chan<- prometheus.Metric) {
	for name, s := range c.m.Stats().ConnectionStats {
		engine := string(s.Engine)
		status := 0.0
		if s.Connected && s.HealthCheckStatus == "healthy" {
			status = 1
		}
		ch <- prometheus.MustNewConstMetric(statusDesc, prometheus.GaugeValue, status, name, engine)
		ch <- prometheus.MustNewConstMetric(poolDesc, prometheus.GaugeValue, float64(s.OpenConnections), name, engine, "open")
		ch <- prometheus.MustNewConstMetric(poolDesc, prometheus.GaugeValue, float64(s.Idle), name, engine, "idle")
		ch <- prometheus.MustNewConstMetric(poolDesc, prometheus.GaugeValue, float64(s.InUse), name, engine, "in_use")
		ch <- prometheus.MustNewConstMetric(waitCountDesc, prometheus.CounterValue, float64(s.WaitCount), name, engine)
		ch <- prometheus.MustNewConstMetric(waitDurationDesc, prometheus.CounterValue, s.WaitDuration.Seconds(), name, engine)
	}
	reconnectAttempts.Collect(ch)
}
