// Package errortracking forwards failed requests, error logs and recovered
// panics to an external tracker such as Sentry.
package errortracking

import (
	"context"
	"net/http"
	"time"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityDebug   Severity = "debug"
)

// Extra keys a provider may index as tags instead of free-form data.
var TagKeys = []string{"resource", "operation", "request_id", "rq_method", "rs_status_code"}

// Provider defines the interface for error tracking providers
type Provider interface {
	CaptureError(ctx context.Context, err error, severity Severity, extra map[string]interface{})
	CaptureMessage(ctx context.Context, message string, severity Severity, extra map[string]interface{})
	// CapturePanic reports a recovered value with the stack it was raised on.
	CapturePanic(ctx context.Context, recovered interface{}, stackTrace []byte, extra map[string]interface{})

	// Flush waits up to timeout for pending events and reports whether all
	// were sent.
	Flush(timeout time.Duration) bool
	Close() error
}

// SeverityForStatus maps a response status to the severity it is tracked
// with. Client errors are warnings, server errors are errors.
func SeverityForStatus(status int) Severity {
	switch {
	case status >= http.StatusInternalServerError:
		return SeverityError
	case status >= http.StatusBadRequest:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// splitTags moves the TagKeys present in extra into a string map.
func splitTags(extra map[string]interface{}) (tags map[string]string, rest map[string]interface{}) {
	tags = make(map[string]string)
	rest = make(map[string]interface{}, len(extra))
	for k, v := range extra {
		rest[k] = v
	}
	for _, k := range TagKeys {
		if v, ok := rest[k]; ok && v != nil {
			tags[k] = toString(v)
			delete(rest, k)
		}
	}
	return tags, rest
}
