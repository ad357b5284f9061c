package errortracking

import (
	"context"
	"time"
)

// NoOpProvider drops every event. It is used while tracking is disabled.
type NoOpProvider struct{}

// NewNoOpProvider creates a new NoOp provider
func NewNoOpProvider() *NoOpProvider {
	return &NoOpProvider{}
}

func (NoOpProvider) CaptureError(context.Context, error, Severity, map[string]interface{}) {}

func (NoOpProvider) CaptureMessage(context.Context, string, Severity, map[string]interface{}) {}

func (NoOpProvider) CapturePanic(context.Context, interface{}, []byte, map[string]interface{}) {}

func (NoOpProvider) Flush(time.Duration) bool { return true }

func (NoOpProvider) Close() error { return nil }
