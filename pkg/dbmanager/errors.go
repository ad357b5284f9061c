package dbmanager

import (
	"errors"
	"fmt"
)

var (
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrConnectionClosed     = errors.New("connection is closed")
	ErrNoDefaultConnection  = errors.New("no default connection configured")
	ErrAlreadyConnected     = errors.New("already connected")
)

// ConnectionError reports a failed step on one named connection.
type ConnectionError struct {
	Name      string
	Operation string // connect, close, health check, initialize gorm
	Err       error
}

// NewConnectionError creates a new ConnectionError
func NewConnectionError(name, operation string, err error) *ConnectionError {
	return &ConnectionError{Name: name, Operation: operation, Err: err}
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database %q: %s: %v", e.Name, e.Operation, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ConfigurationError points at the offending key of the database section,
// e.g. "main.type".
type ConfigurationError struct {
	Field string
	Err   error
}

func NewConfigurationError(field string, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Err: err}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "database config: " + e.Err.Error()
	}
	return fmt.Sprintf("database config %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
