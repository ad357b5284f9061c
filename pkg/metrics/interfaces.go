// Package metrics records request, query, cache and plan metrics through a
// process-wide Provider. Without SetProvider every call is a no-op.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"
)

// Provider defines the interface for metric collection
type Provider interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
	IncRequestsInFlight()
	DecRequestsInFlight()

	// RecordDBQuery records one statement; a non-nil err counts as a failure
	RecordDBQuery(operation, table string, duration time.Duration, err error)

	RecordCacheHit(provider string)
	RecordCacheMiss(provider string)
	UpdateCacheSize(provider string, size int64)

	// RecordPlanPath counts a read plan executed on the flat or graph path
	RecordPlanPath(entity, path string)

	// RecordPanic counts a recovered panic
	RecordPanic(location string)

	// Handler exposes the metrics, e.g. on /metrics
	Handler() http.Handler
}

var global atomic.Value

type holder struct{ p Provider }

// SetProvider sets the global metrics provider
func SetProvider(p Provider) {
	global.Store(holder{p})
}

// GetProvider returns the global provider, or a NoOpProvider
func GetProvider() Provider {
	if h, ok := global.Load().(holder); ok && h.p != nil {
		return h.p
	}
	return NoOpProvider{}
}

// NoOpProvider discards every metric
type NoOpProvider struct{}

func (NoOpProvider) RecordHTTPRequest(string, string, string, time.Duration)     {}
func (NoOpProvider) IncRequestsInFlight()                                        {}
func (NoOpProvider) DecRequestsInFlight()                                        {}
func (NoOpProvider) RecordDBQuery(string, string, time.Duration, error)          {}
func (NoOpProvider) RecordCacheHit(string)                                       {}
func (NoOpProvider) RecordCacheMiss(string)                                      {}
func (NoOpProvider) UpdateCacheSize(string, int64)                               {}
func (NoOpProvider) RecordPlanPath(string, string)                               {}
func (NoOpProvider) RecordPanic(string)                                          {}
func (NoOpProvider) Handler() http.Handler                                       { return http.NotFoundHandler() }
