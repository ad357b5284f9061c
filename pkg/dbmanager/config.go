package dbmanager

import (
	"fmt"
	"strings"
	"time"

	"github.com/bitechdev/SimplifySpec/pkg/config"
	"github.com/bitechdev/SimplifySpec/pkg/dialect"
)

// ORMType selects the storage adapter a connection exposes
type ORMType string

const (
	ORMTypeBun  ORMType = "bun"
	ORMTypeGORM ORMType = "gorm"
)

// ConnectionConfig is the resolved configuration of one connection
type ConnectionConfig struct {
	Name   string
	Engine dialect.Engine
	ORM    ORMType
	DSN    string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Schema   string
	FilePath string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	ConnectTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	RetryMaxDelay  time.Duration

	EnableLogging bool
	EnableMetrics bool
}

// resolve merges a configured connection with the pool and retry defaults
// of its section.
func resolve(name string, section config.DatabaseConfig, c config.ConnectionConfig) (ConnectionConfig, error) {
	engine, err := dialect.ParseEngine(c.Type)
	if err != nil {
		return ConnectionConfig{}, NewConfigurationError(name+".type", err)
	}
	orm := ORMType(strings.ToLower(c.ORM))
	switch orm {
	case "":
		orm = ORMTypeBun
	case ORMTypeBun, ORMTypeGORM:
	default:
		return ConnectionConfig{}, NewConfigurationError(name+".orm", fmt.Errorf("%w: %s", ErrInvalidConfiguration, c.ORM))
	}

	cc := ConnectionConfig{
		Name: name, Engine: engine, ORM: orm, DSN: c.DSN,
		Host: c.Host, Port: c.Port, User: c.User, Password: c.Password,
		Database: c.Database, SSLMode: c.SSLMode, Schema: c.Schema, FilePath: c.FilePath,
		MaxOpenConns:    pick(c.MaxOpenConns, section.MaxOpenConns),
		MaxIdleConns:    pick(c.MaxIdleConns, section.MaxIdleConns),
		ConnMaxLifetime: pick(c.ConnMaxLifetime, section.ConnMaxLifetime),
		ConnMaxIdleTime: pick(c.ConnMaxIdleTime, section.ConnMaxIdleTime),
		ConnectTimeout:  c.ConnectTimeout,
		RetryAttempts:   section.RetryAttempts,
		RetryDelay:      section.RetryDelay,
		RetryMaxDelay:   section.RetryMaxDelay,
		EnableLogging:   c.EnableLogging,
		EnableMetrics:   c.EnableMetrics,
	}
	cc.applyDefaults()
	return cc, nil
}

func pick[T any](override *T, def T) T {
	if override != nil {
		return *override
	}
	return def
}

func (cc *ConnectionConfig) applyDefaults() {
	if cc.ConnectTimeout == 0 {
		cc.ConnectTimeout = 10 * time.Second
	}
	if cc.RetryAttempts <= 0 {
		cc.RetryAttempts = 1
	}
	if cc.RetryDelay == 0 {
		cc.RetryDelay = time.Second
	}
	if cc.RetryMaxDelay == 0 {
		cc.RetryMaxDelay = 10 * time.Second
	}
	switch cc.Engine {
	case dialect.Postgres:
		if cc.Port == 0 {
			cc.Port = 5432
		}
	case dialect.SQLServer:
		if cc.Port == 0 {
			cc.Port = 1433
		}
	case dialect.SQLite:
		// every connection to an in-memory database opens a new database
		if cc.inMemory() {
			cc.MaxOpenConns = 1
			cc.MaxIdleConns = 1
			cc.ConnMaxLifetime = 0
			cc.ConnMaxIdleTime = 0
		}
	}
}

func (cc *ConnectionConfig) inMemory() bool {
	dsn := cc.BuildDSN()
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// BuildDSN returns the DSN, or builds one from the connection parameters.
func (cc *ConnectionConfig) BuildDSN() string {
	if cc.DSN != "" {
		return cc.DSN
	}
	switch cc.Engine {
	case dialect.Postgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
			cc.Host, cc.Port, cc.User, cc.Password, cc.Database)
		if cc.SSLMode != "" {
			dsn += " sslmode=" + cc.SSLMode
		} else {
			dsn += " sslmode=disable"
		}
		if cc.Schema != "" {
			dsn += " search_path=" + cc.Schema
		}
		return dsn
	case dialect.SQLServer:
		return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
			cc.User, cc.Password, cc.Host, cc.Port, cc.Database)
	default:
		if cc.FilePath != "" {
			return cc.FilePath
		}
		return ":memory:"
	}
}

// driverName is the database/sql driver registered for the engine.
func (cc *ConnectionConfig) driverName() string {
	switch cc.Engine {
	case dialect.Postgres:
		return "pgx"
	case dialect.SQLServer:
		return "sqlserver"
	default:
		return "sqlite"
	}
}
