package dbmanager

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/sqlite"       // registers the pure Go "sqlite" driver
	_ "github.com/jackc/pgx/v5/stdlib"   // registers "pgx"
	_ "github.com/microsoft/go-mssqldb" // registers "sqlserver"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/common/adapters/database"
	"github.com/bitechdev/SimplifySpec/pkg/dialect"
	"github.com/bitechdev/SimplifySpec/pkg/logger"
)

// Connection is one named database connection. The Bun and GORM handles
// share its *sql.DB and are created on first use.
type Connection struct {
	cfg ConnectionConfig

	mu        sync.RWMutex
	native    *sql.DB
	owned     bool
	bunDB     *bun.DB
	gormDB    *gorm.DB
	adapter   common.Database
	connected bool

	lastHealthCheck   time.Time
	healthCheckStatus string
}

// ConnectionStats contains statistics about a database connection
type ConnectionStats struct {
	Name              string
	Engine            dialect.Engine
	Connected         bool
	LastHealthCheck   time.Time
	HealthCheckStatus string
	sql.DBStats
}

func newConnection(cfg ConnectionConfig) *Connection {
	return &Connection{cfg: cfg, owned: true}
}

// NewConnectionFromDB wraps an already open database. Close leaves db open.
func NewConnectionFromDB(name string, engine dialect.Engine, orm ORMType, db *sql.DB) *Connection {
	if orm == "" {
		orm = ORMTypeBun
	}
	return &Connection{
		cfg:       ConnectionConfig{Name: name, Engine: engine, ORM: orm},
		native:    db,
		connected: true,
	}
}

// Name returns the connection name
func (c *Connection) Name() string { return c.cfg.Name }

// Engine returns the storage engine of the connection
func (c *Connection) Engine() dialect.Engine { return c.cfg.Engine }

// Connect opens and pings the database, retrying with exponential backoff.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return ErrAlreadyConnected
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt, c.cfg.RetryDelay, c.cfg.RetryMaxDelay)
			logger.Info("Retrying %s connection %s: attempt=%d/%d, delay=%v", c.cfg.Engine, c.cfg.Name, attempt+1, c.cfg.RetryAttempts, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return NewConnectionError(c.cfg.Name, "connect", ctx.Err())
			}
		}
		db, err := c.open(ctx)
		if err == nil {
			c.native = db
			c.connected = true
			if c.cfg.EnableLogging {
				logger.Info("Database connection established: name=%s, engine=%s", c.cfg.Name, c.cfg.Engine)
			}
			return nil
		}
		lastErr = err
		logger.Warn("Failed to connect %s: %v", c.cfg.Name, err)
	}
	return NewConnectionError(c.cfg.Name, "connect", fmt.Errorf("after %d attempts: %w", c.cfg.RetryAttempts, lastErr))
}

func (c *Connection) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(c.cfg.driverName(), c.cfg.BuildDSN())
	if err != nil {
		return nil, err
	}
	if c.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.cfg.MaxOpenConns)
	}
	if c.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(c.cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(c.cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func backoff(attempt int, initial, maxDelay time.Duration) time.Duration {
	delay := initial << uint(attempt-1)
	if delay <= 0 || delay > maxDelay {
		return maxDelay
	}
	return delay
}

// Close closes the database unless it was handed to NewConnectionFromDB.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	native := c.native
	c.native, c.bunDB, c.gormDB, c.adapter = nil, nil, nil, nil
	if !c.owned {
		return nil
	}
	if err := native.Close(); err != nil {
		return NewConnectionError(c.cfg.Name, "close", err)
	}
	return nil
}

// HealthCheck pings the database and records the outcome for Stats.
func (c *Connection) HealthCheck(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastHealthCheck = time.Now()
	if !c.connected {
		c.healthCheckStatus = "disconnected"
		return ErrConnectionClosed
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.native.PingContext(pingCtx); err != nil {
		c.healthCheckStatus = "unhealthy: " + err.Error()
		return NewConnectionError(c.cfg.Name, "health check", err)
	}
	c.healthCheckStatus = "healthy"
	return nil
}

// Reconnect closes and reopens an owned connection.
func (c *Connection) Reconnect(ctx context.Context) error {
	if !c.owned {
		return c.HealthCheck(ctx)
	}
	if err := c.Close(); err != nil {
		return err
	}
	return c.Connect(ctx)
}

// Native returns the underlying *sql.DB
func (c *Connection) Native() (*sql.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return nil, ErrConnectionClosed
	}
	return c.native, nil
}

// Bun returns a Bun handle over the connection
func (c *Connection) Bun() (*bun.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bunLocked()
}

func (c *Connection) bunLocked() (*bun.DB, error) {
	if !c.connected {
		return nil, ErrConnectionClosed
	}
	if c.bunDB == nil {
		c.bunDB = bun.NewDB(c.native, c.bunDialect())
	}
	return c.bunDB, nil
}

// GORM returns a GORM handle over the connection
func (c *Connection) GORM() (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gormLocked()
}

func (c *Connection) gormLocked() (*gorm.DB, error) {
	if !c.connected {
		return nil, ErrConnectionClosed
	}
	if c.gormDB == nil {
		level := gormlogger.Silent
		if c.cfg.EnableLogging {
			level = gormlogger.Warn
		}
		db, err := gorm.Open(c.gormDialector(), &gorm.Config{Logger: gormlogger.Default.LogMode(level)})
		if err != nil {
			return nil, NewConnectionError(c.cfg.Name, "initialize gorm", err)
		}
		c.gormDB = db
	}
	return c.gormDB, nil
}

// Database returns the storage adapter selected by the connection's ORM.
func (c *Connection) Database() (common.Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.adapter != nil {
		return c.adapter, nil
	}
	switch c.cfg.ORM {
	case ORMTypeGORM:
		db, err := c.gormLocked()
		if err != nil {
			return nil, err
		}
		c.adapter = database.NewGormAdapter(db)
	default:
		db, err := c.bunLocked()
		if err != nil {
			return nil, err
		}
		adapter := database.NewBunAdapter(db)
		if c.cfg.EnableMetrics {
			adapter.EnableQueryDebug()
		}
		c.adapter = adapter
	}
	return c.adapter, nil
}

// Stats returns the pool statistics and the last health check outcome
func (c *Connection) Stats() *ConnectionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := &ConnectionStats{
		Name:              c.cfg.Name,
		Engine:            c.cfg.Engine,
		Connected:         c.connected,
		LastHealthCheck:   c.lastHealthCheck,
		HealthCheckStatus: c.healthCheckStatus,
	}
	if c.connected {
		stats.DBStats = c.native.Stats()
	}
	return stats
}

func (c *Connection) bunDialect() schema.Dialect {
	switch c.cfg.Engine {
	case dialect.SQLServer:
		return database.GetMSSQLDialect()
	case dialect.SQLite:
		return database.GetSQLiteDialect()
	default:
		return database.GetPostgresDialect()
	}
}

func (c *Connection) gormDialector() gorm.Dialector {
	switch c.cfg.Engine {
	case dialect.SQLServer:
		return database.GetMSSQLDialector(c.native)
	case dialect.SQLite:
		return database.GetSQLiteDialector(c.native)
	default:
		return database.GetPostgresDialector(c.native)
	}
}
