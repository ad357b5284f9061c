package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bunrouter"

	"github.com/bitechdev/SimplifySpec/pkg/common"
)

func echo(w common.ResponseWriter, r common.Request) {
	w.SetHeader("X-Id", r.PathParam("id"))
	w.SetHeader("X-Q", r.QueryParam("q"))
	w.WriteHeader(http.StatusNoContent)
}

func TestBunPattern(t *testing.T) {
	assert.Equal(t, "/a/:parentId/b/:id", BunPattern("/a/{parentId}/b/{id}"))
	assert.Equal(t, "/plain", BunPattern("/plain"))
}

func TestMuxAdapter(t *testing.T) {
	var order []string
	mw := func(name string) mux.MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	r := mux.NewRouter()
	NewMuxAdapter(r, mw("outer"), mw("inner")).HandleFunc("/things/{id}", echo).Methods(http.MethodGet)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/7?q=x", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "7", rec.Header().Get("X-Id"))
	assert.Equal(t, "x", rec.Header().Get("X-Q"))
	assert.Equal(t, []string{"outer", "inner"}, order)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/things/7", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBunRouterAdapter(t *testing.T) {
	r := bunrouter.New()
	NewBunRouterAdapter(r).HandleFunc("/things/{id}", echo).Methods(http.MethodGet, http.MethodDelete)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, "/things/abc", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "abc", rec.Header().Get("X-Id"))
	}
}
