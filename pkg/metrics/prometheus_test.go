package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProviderDefaultsToNoOp(t *testing.T) {
	SetProvider(nil)
	assert.IsType(t, NoOpProvider{}, GetProvider())

	p := NewPrometheusProvider(nil)
	SetProvider(p)
	t.Cleanup(func() { SetProvider(nil) })
	assert.Same(t, p, GetProvider())
}

func TestPrometheusCounters(t *testing.T) {
	p := NewPrometheusProvider(&Config{Namespace: "test"})

	p.RecordCacheHit("response")
	p.RecordCacheHit("response")
	p.RecordCacheMiss("response")
	p.RecordPlanPath("Person", "flat")
	p.RecordPanic("handler")
	p.RecordDBQuery("SELECT", "people", time.Millisecond, nil)
	p.RecordDBQuery("SELECT", "people", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(p.cacheHits.WithLabelValues("response")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.cacheMisses.WithLabelValues("response")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.planExecutions.WithLabelValues("Person", "flat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.panics.WithLabelValues("handler")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.dbQueryTotal.WithLabelValues("SELECT", "people", "error")))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	p := NewPrometheusProvider(nil)
	r := mux.NewRouter()
	r.Use(p.Middleware)
	r.HandleFunc("/people/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/people/7", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.requestTotal.WithLabelValues(http.MethodGet, "/people/{id}", "418")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.requestsInFlight))
}

func TestHandlerAndRegister(t *testing.T) {
	p := NewPrometheusProvider(&Config{Namespace: "test"})
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "extra_gauge", Help: "extra"})
	require.NoError(t, p.Register(gauge))
	assert.Error(t, p.Register(gauge))
	gauge.Set(3)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "extra_gauge 3"))
}
