package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresHandler(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestServeAndShutdown(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		<-release
		_, _ = w.Write([]byte("done"))
	})

	s, err := New(Config{Addr: "127.0.0.1:0", Handler: mux, DrainTimeout: 2 * time.Second})
	require.NoError(t, err)
	var closed []string
	s.OnShutdown(func(context.Context) error { closed = append(closed, "db"); return nil })
	s.OnShutdown(func(context.Context) error { closed = append(closed, "cache"); return nil })
	require.NoError(t, s.Start())

	body := make(chan string, 1)
	go func() {
		resp, err := http.Get("http://" + s.Addr() + "/slow")
		if err != nil {
			body <- err.Error()
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body <- string(b)
	}()
	<-started
	assert.Equal(t, int64(1), s.InFlightRequests())

	shutdown := make(chan error, 1)
	go func() { shutdown <- s.Shutdown(context.Background()) }()
	assert.Eventually(t, s.IsShuttingDown, time.Second, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "new requests are refused while draining")

	close(release)
	assert.Equal(t, "done", <-body)
	require.NoError(t, <-shutdown)
	s.Wait()
	assert.Equal(t, []string{"db", "cache"}, closed)
}

func TestDrainTimeout(t *testing.T) {
	s, err := New(Config{Handler: http.NotFoundHandler(), DrainTimeout: 20 * time.Millisecond})
	require.NoError(t, err)
	s.inFlight.Add(1)
	err = s.Shutdown(context.Background())
	assert.ErrorContains(t, err, "drain timeout")
	assert.Equal(t, err, s.Shutdown(context.Background()), "later calls return the first result")
}

func TestRunStopsOnContext(t *testing.T) {
	s, err := New(Config{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestGzipAndPanicRecovery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":"` + strings.Repeat("x", 4096) + `"}`))
	})
	mux.HandleFunc("/panic", func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	s, err := New(Config{Handler: mux, GZIP: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Less(t, rec.Body.Len(), 4096)

	rec = httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthHandlers(t *testing.T) {
	s, err := New(Config{Handler: http.NotFoundHandler()})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	s.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.JSONEq(t, `{"ready":true,"in_flight_requests":0}`, rec.Body.String())

	require.NoError(t, s.Shutdown(context.Background()))
	rec = httptest.NewRecorder()
	s.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
