package router

import (
	"net/http"
	"regexp"

	"github.com/uptrace/bunrouter"

	"github.com/bitechdev/SimplifySpec/pkg/common"
)

var placeholder = regexp.MustCompile(`\{([^}/]+)\}`)

// BunRouterAdapter registers routes on a bunrouter router. {name}
// placeholders are rewritten to bunrouter's :name form.
type BunRouterAdapter struct {
	router *bunrouter.Router
}

// NewBunRouterAdapter creates a bunrouter adapter.
func NewBunRouterAdapter(router *bunrouter.Router) *BunRouterAdapter {
	return &BunRouterAdapter{router: router}
}

// Router returns the underlying bunrouter router.
func (b *BunRouterAdapter) Router() *bunrouter.Router {
	return b.router
}

func (b *BunRouterAdapter) HandleFunc(pattern string, handler common.HTTPHandlerFunc) common.RouteRegistration {
	return &bunRoute{router: b.router, pattern: BunPattern(pattern), handler: handler}
}

// BunPattern converts {name} placeholders into :name parameters.
func BunPattern(pattern string) string {
	return placeholder.ReplaceAllString(pattern, ":$1")
}

type bunRoute struct {
	router  *bunrouter.Router
	pattern string
	handler common.HTTPHandlerFunc
}

func (b *bunRoute) Methods(methods ...string) common.RouteRegistration {
	for _, method := range methods {
		b.router.Handle(method, b.pattern, func(w http.ResponseWriter, req bunrouter.Request) error {
			b.handler(NewHTTPResponseWriter(w), NewHTTPRequest(req.Request, req.Param))
			return nil
		})
	}
	return b
}
