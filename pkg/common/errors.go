package common

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Generic messages returned to callers. Internal detail stays in the server log.
const (
	MsgParseError         = "There was a problem parsing the request"
	MsgNotFound           = "The requested item was not found"
	MsgUnsupportedMethod  = "This method is not supported for this resource"
	MsgInternalError      = "An internal error occurred"
	MsgUnsupportedConfig  = "The request references an unsupported configuration"
	MsgUnknownRequestFail = "The request could not be completed"
)

// ParseError reports malformed or invalid input. Fields maps storage field
// names to the validation message for that field.
type ParseError struct {
	Message string
	Fields  map[string]string
	Err     error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(parts, "; "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format string, args ...interface{}) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...)}
}

// WrapParseError prefixes a nested failure with the field it happened under.
// Field messages of a nested ParseError are re-keyed as "field.sub".
func WrapParseError(field string, err error) *ParseError {
	var pe *ParseError
	if errors.As(err, &pe) {
		out := &ParseError{Message: field + ": " + pe.Message, Err: pe.Err}
		if len(pe.Fields) > 0 {
			out.Fields = make(map[string]string, len(pe.Fields))
			for k, v := range pe.Fields {
				out.Fields[field+"."+k] = v
			}
		}
		return out
	}
	return &ParseError{Message: field, Err: err}
}

// NotFoundError is returned when a primary key or sub-resource lookup misses.
type NotFoundError struct {
	Entity string
	Key    interface{}
}

func (e *NotFoundError) Error() string {
	if e.Key == nil {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s with key %v not found", e.Entity, e.Key)
}

// UnsupportedOperationError is returned when a method is not enabled for a
// resource or sub-resource.
type UnsupportedOperationError struct {
	Operation string
	Resource  string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("operation %s is not supported on %s", e.Operation, e.Resource)
}

// InternalConsistencyError signals a violated invariant, such as two
// identical rows for one primary key.
type InternalConsistencyError struct {
	Message string
	Key     interface{}
}

func (e *InternalConsistencyError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Key)
	}
	return e.Message
}

// UnsupportedConfigurationError is returned when a request or registration
// references an engine, relation or model the configuration does not know.
type UnsupportedConfigurationError struct {
	Subject string
	Err     error
}

func (e *UnsupportedConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unsupported configuration %s: %v", e.Subject, e.Err)
	}
	return fmt.Sprintf("unsupported configuration %s", e.Subject)
}

func (e *UnsupportedConfigurationError) Unwrap() error {
	return e.Err
}

// StatusCode maps an error to the HTTP status reported to the caller.
// Errors outside the taxonomy are reported as 400.
func StatusCode(err error) int {
	var (
		parseErr  *ParseError
		notFound  *NotFoundError
		unsupOp   *UnsupportedOperationError
		consist   *InternalConsistencyError
		unsupConf *UnsupportedConfigurationError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &unsupOp):
		return http.StatusMethodNotAllowed
	case errors.As(err, &consist):
		return http.StatusInternalServerError
	case errors.As(err, &unsupConf):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// PublicMessage returns the non-leaking message for err.
func PublicMessage(err error) string {
	var (
		parseErr  *ParseError
		notFound  *NotFoundError
		unsupOp   *UnsupportedOperationError
		consist   *InternalConsistencyError
		unsupConf *UnsupportedConfigurationError
	)
	switch {
	case errors.As(err, &parseErr):
		return MsgParseError
	case errors.As(err, &notFound):
		return MsgNotFound
	case errors.As(err, &unsupOp):
		return MsgUnsupportedMethod
	case errors.As(err, &consist):
		return MsgInternalError
	case errors.As(err, &unsupConf):
		return MsgUnsupportedConfig
	default:
		return MsgUnknownRequestFail
	}
}
