package router

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bitechdev/SimplifySpec/pkg/common"
)

// MuxAdapter registers routes on a Gorilla Mux router.
type MuxAdapter struct {
	router     *mux.Router
	middleware []mux.MiddlewareFunc
}

// NewMuxAdapter creates a mux adapter. Middleware wraps every route it
// registers, outermost first.
func NewMuxAdapter(router *mux.Router, middleware ...mux.MiddlewareFunc) *MuxAdapter {
	return &MuxAdapter{router: router, middleware: middleware}
}

// Router returns the underlying mux router.
func (m *MuxAdapter) Router() *mux.Router {
	return m.router
}

func (m *MuxAdapter) HandleFunc(pattern string, handler common.HTTPHandlerFunc) common.RouteRegistration {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		handler(NewHTTPResponseWriter(w), NewHTTPRequest(r, func(k string) string { return vars[k] }))
	})
	for i := len(m.middleware) - 1; i >= 0; i-- {
		h = m.middleware[i](h)
	}
	return &muxRoute{route: m.router.Handle(pattern, h)}
}

type muxRoute struct {
	route *mux.Route
}

func (r *muxRoute) Methods(methods ...string) common.RouteRegistration {
	r.route.Methods(methods...)
	return r
}
