// Package dbmanager opens the named database connections resources read from
// and write to, watches their health and exposes them as common.Database.
package dbmanager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/config"
	"github.com/bitechdev/SimplifySpec/pkg/logger"
)

// Manager owns every configured connection.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	configs     map[string]ConnectionConfig
	defaultName string

	healthInterval time.Duration
	stop           chan struct{}
	wg             sync.WaitGroup
}

// ManagerStats summarises the health of every connection
type ManagerStats struct {
	TotalConnections int
	HealthyCount     int
	UnhealthyCount   int
	ConnectionStats  map[string]*ConnectionStats
}

// NewManager resolves the configured connections without opening them.
func NewManager(cfg config.DatabaseConfig) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigurationError("database", fmt.Errorf("%w: %v", ErrInvalidConfiguration, err))
	}
	m := &Manager{
		connections:    make(map[string]*Connection),
		configs:        make(map[string]ConnectionConfig, len(cfg.Connections)),
		defaultName:    cfg.Default,
		healthInterval: cfg.HealthCheckInterval,
	}
	for name, c := range cfg.Connections {
		cc, err := resolve(name, cfg, c)
		if err != nil {
			return nil, err
		}
		m.configs[name] = cc
	}
	if m.defaultName == "" && len(m.configs) == 1 {
		for name := range m.configs {
			m.defaultName = name
		}
	}
	return m, nil
}

// Add registers an open connection, replacing any connection of that name.
func (m *Manager) Add(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[conn.Name()] = conn
	if m.defaultName == "" {
		m.defaultName = conn.Name()
	}
}

// Connect opens every configured connection and starts the health checker.
// Connections opened before a failure are closed again.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		conn := newConnection(m.configs[name])
		if err := conn.Connect(ctx); err != nil {
			for _, open := range m.connections {
				_ = open.Close()
			}
			m.connections = make(map[string]*Connection)
			return err
		}
		m.connections[name] = conn
	}
	if m.healthInterval > 0 && m.stop == nil {
		m.stop = make(chan struct{})
		m.wg.Add(1)
		go m.healthLoop(m.stop)
	}
	logger.Info("Database manager initialized: connections=%d, default=%s", len(m.connections), m.defaultName)
	return nil
}

// Get returns the named connection
func (m *Manager) Get(name string) (*Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name == "" {
		name = m.defaultName
		if name == "" {
			return nil, ErrNoDefaultConnection
		}
	}
	conn, ok := m.connections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, name)
	}
	return conn, nil
}

// Database returns the storage adapter of the named connection; an empty
// name selects the default connection.
func (m *Manager) Database(name string) (common.Database, error) {
	conn, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return conn.Database()
}

// Names lists the open connections, sorted
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.connections))
	for name := range m.connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close stops the health checker and closes every connection
func (m *Manager) Close() error {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()
	if stop != nil {
		close(stop)
		m.wg.Wait()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for name, conn := range m.connections {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
			logger.Error("Failed to close connection %s: %v", name, err)
		}
	}
	m.connections = make(map[string]*Connection)
	return errors.Join(errs...)
}

// HealthCheck pings every connection
func (m *Manager) HealthCheck(ctx context.Context) error {
	var errs []error
	for _, conn := range m.snapshot() {
		if err := conn.HealthCheck(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns the statistics of every connection
func (m *Manager) Stats() *ManagerStats {
	conns := m.snapshot()
	stats := &ManagerStats{
		TotalConnections: len(conns),
		ConnectionStats:  make(map[string]*ConnectionStats, len(conns)),
	}
	for _, conn := range conns {
		s := conn.Stats()
		stats.ConnectionStats[conn.Name()] = s
		if s.Connected && s.HealthCheckStatus == "healthy" {
			stats.HealthyCount++
		} else {
			stats.UnhealthyCount++
		}
	}
	return stats
}

func (m *Manager) snapshot() []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		out = append(out, conn)
	}
	return out
}

func (m *Manager) healthLoop(stop <-chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkAndReconnect()
		case <-stop:
			return
		}
	}
}

func (m *Manager) checkAndReconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, conn := range m.snapshot() {
		err := conn.HealthCheck(ctx)
		if err == nil {
			continue
		}
		logger.Warn("Health check of %s failed: %v", conn.Name(), err)
		err = conn.Reconnect(ctx)
		recordReconnect(conn, err == nil)
		if err != nil {
			logger.Error("Reconnecting %s failed: %v", conn.Name(), err)
		} else {
			logger.Info("Reconnected %s", conn.Name())
		}
	}
}
