package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/SimplifySpec/pkg/logger"
	"github.com/bitechdev/SimplifySpec/pkg/metrics"
)

type panicCounter struct {
	metrics.NoOpProvider
	locations []string
}

func (p *panicCounter) RecordPanic(location string) {
	p.locations = append(p.locations, location)
}

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestPanicRecovery(t *testing.T) {
	logger.Init(true)
	counter := &panicCounter{}
	metrics.SetProvider(counter)
	t.Cleanup(func() { metrics.SetProvider(nil) })

	h := PanicRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("secret detail")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/people", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"errorMessage":"internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")
	assert.Equal(t, []string{panicLocation}, counter.locations)

	rec = httptest.NewRecorder()
	PanicRecovery(http.HandlerFunc(ok)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, counter.locations, 1)
}

func TestPanicRecoveryRepanicsAbort(t *testing.T) {
	h := PanicRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestSizeLimit(t *testing.T) {
	h := RequestSizeLimit(1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		size   int
		stream bool
		want   int
	}{
		{"small", 512, false, http.StatusOK},
		{"declared too large", 2048, false, http.StatusRequestEntityTooLarge},
		{"streamed too large", 2048, true, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, tt.size)))
			if tt.stream {
				req.ContentLength = -1
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "1024", rec.Header().Get(MaxRequestSizeHeader))
		})
	}
}

func TestRequestSizeLimitDefault(t *testing.T) {
	rec := httptest.NewRecorder()
	RequestSizeLimit(0)(http.HandlerFunc(ok)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "10485760", rec.Header().Get(MaxRequestSizeHeader))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }
	h := rl.Middleware(http.HandlerFunc(ok))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:2"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:3"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1"), "other clients keep their own bucket")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:4"))
	assert.Equal(t, 2, rl.Tracked())

	now = now.Add(10 * time.Minute)
	assert.Equal(t, http.StatusOK, call("10.0.0.3:1"))
	assert.Equal(t, 1, rl.Tracked(), "idle limiters are dropped")
}

func TestRateLimiterKeyFunc(t *testing.T) {
	rl := NewRateLimiter(1, 1).WithKeyFunc(func(r *http.Request) string {
		return r.Header.Get("X-API-Key")
	})
	h := rl.Middleware(http.HandlerFunc(ok))

	for _, tt := range []struct {
		key  string
		want int
	}{{"a", 200}, {"a", 429}, {"b", 200}} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Key", tt.key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, tt.want, rec.Code, tt.key)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", strings.NewReader(""))
	req.RemoteAddr = "192.0.2.1:5000"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Real-IP", " 198.51.100.2 ")
	assert.Equal(t, "198.51.100.2", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", ClientIP(req))
}
