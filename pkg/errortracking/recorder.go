package errortracking

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Event is one captured report.
type Event struct {
	Message  string
	Severity Severity
	Err      error
	Panic    bool
	Stack    []byte
	Tags     map[string]string
	Extra    map[string]interface{}
}

// Recorder keeps every captured event in memory. It backs tests and local
// debugging.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(e Event) {
	e.Tags, e.Extra = splitTags(e.Extra)
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.events = append(r.events, e)
	}
}

func (r *Recorder) CaptureError(_ context.Context, err error, severity Severity, extra map[string]interface{}) {
	if err == nil {
		return
	}
	r.add(Event{Message: err.Error(), Severity: severity, Err: err, Extra: extra})
}

func (r *Recorder) CaptureMessage(_ context.Context, message string, severity Severity, extra map[string]interface{}) {
	if message == "" {
		return
	}
	r.add(Event{Message: message, Severity: severity, Extra: extra})
}

func (r *Recorder) CapturePanic(_ context.Context, recovered interface{}, stackTrace []byte, extra map[string]interface{}) {
	if recovered == nil {
		return
	}
	r.add(Event{Message: fmt.Sprintf("Panic: %v", recovered), Severity: SeverityError, Panic: true, Stack: stackTrace, Extra: extra})
}

func (r *Recorder) Flush(time.Duration) bool { return true }

// Close stops recording. Events already captured stay readable.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the captured events in capture order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
