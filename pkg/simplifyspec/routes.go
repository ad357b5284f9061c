package simplifyspec

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/uptrace/bunrouter"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/common/adapters/router"
	"github.com/bitechdev/SimplifySpec/pkg/logger"
	"github.com/bitechdev/SimplifySpec/pkg/naming"
)

// ProceduresPath is the route of stored procedure calls.
const ProceduresPath = "/procedures"

// Path parameters of the registered routes. A parent key shares the name of
// the parent's own key so routers that require consistent parameter names
// accept both routes.
const (
	paramID    = "id"
	paramSubID = "subId"
)

// MiddlewareFunc wraps the handler of every registered route.
type MiddlewareFunc = mux.MiddlewareFunc

// SetupMuxRoutes registers every resource on a Gorilla Mux router. A non-nil
// authMiddleware wraps every route.
func SetupMuxRoutes(r *mux.Router, h *Handler, authMiddleware MiddlewareFunc) {
	var mw []mux.MiddlewareFunc
	if authMiddleware != nil {
		mw = append(mw, authMiddleware)
	}
	RegisterRoutes(router.NewMuxAdapter(r, mw...), h)
}

// SetupBunRouterRoutes registers every resource on a bunrouter router.
func SetupBunRouterRoutes(r *bunrouter.Router, h *Handler) {
	RegisterRoutes(router.NewBunRouterAdapter(r), h)
}

// RegisterRoutes registers the routes of every resource known to h. Resources
// registered afterwards are not routed.
func RegisterRoutes(r common.Router, h *Handler) {
	if h.procedures != nil {
		h.route(r, ProceduresPath, h.serveProcedure, http.MethodPost)
	}
	for _, name := range h.Resources() {
		res, _ := h.lookup(name)
		base := "/" + name
		h.route(r, base, h.serveResource(Request{Resource: name}), http.MethodGet, http.MethodPost)
		h.route(r, base+"/{"+paramID+"}", h.serveResource(Request{Resource: name}), http.MethodGet, http.MethodPut, http.MethodDelete)

		for _, lo := range res.linked {
			parent := "/" + lo.ParentResource + "/{" + paramID + "}"
			if lo.LivesOnParent {
				tail := naming.ToWireName(lo.SubResourceName)
				h.route(r, parent+"/"+tail, h.serveSub(name, lo.ParentResource, tail), http.MethodGet, http.MethodPost)
				continue
			}
			h.route(r, parent+"/"+name, h.serveSub(name, lo.ParentResource, name), http.MethodGet, http.MethodPost)
			h.route(r, parent+"/"+name+"/{"+paramSubID+"}", h.serveSub(name, lo.ParentResource, name), http.MethodGet, http.MethodDelete)
		}
	}
}

func (h *Handler) route(r common.Router, pattern string, fn common.HTTPHandlerFunc, methods ...string) {
	if h.cors != nil {
		methods = append(methods, http.MethodOptions)
	}
	r.HandleFunc(pattern, fn).Methods(methods...)
	logger.Debug("Route %s %v", pattern, methods)
}

// SetCORS adds CORS headers to every response and answers OPTIONS requests.
func (h *Handler) SetCORS(cfg common.CORSConfig) {
	h.cors = &cfg
}

func (h *Handler) serveResource(base Request) common.HTTPHandlerFunc {
	return func(w common.ResponseWriter, r common.Request) {
		req := base
		req.PK = r.PathParam(paramID)
		h.serve(w, r, req)
	}
}

func (h *Handler) serveSub(name, parent, tail string) common.HTTPHandlerFunc {
	return func(w common.ResponseWriter, r common.Request) {
		h.serve(w, r, Request{
			Resource:       name,
			ParentResource: parent,
			ParentPK:       r.PathParam(paramID),
			PK:             r.PathParam(paramSubID),
			SubResource:    tail,
		})
	}
}

func (h *Handler) serve(w common.ResponseWriter, r common.Request, req Request) {
	if h.cors != nil {
		common.SetCORSHeaders(w, *h.cors)
		if r.Method() == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	op, ok := operationForMethod(r.Method())
	if !ok {
		h.write(w, h.failure(req, "", &common.UnsupportedOperationError{Operation: r.Method(), Resource: req.Resource}))
		return
	}
	req.Operation = op
	req.Query = r.AllQueryParams()
	req.Context = h.requestContext(r)

	if op == OpPost || op == OpPut {
		body, err := decodeBody(r)
		if err != nil {
			h.write(w, h.failure(req, "", err))
			return
		}
		req.Body = body
	}
	h.write(w, h.Handle(r.UnderlyingRequest().Context(), req))
}

func (h *Handler) requestContext(r common.Request) *RequestContext {
	if h.contextFn != nil {
		if rc := h.contextFn(r.UnderlyingRequest()); rc != nil {
			if rc.Path == "" {
				rc.Path = r.URL()
			}
			if rc.Method == "" {
				rc.Method = r.Method()
			}
			return rc
		}
	}
	return &RequestContext{Method: r.Method(), Path: r.URL(), Anonymous: true}
}

func decodeBody(r common.Request) (interface{}, error) {
	raw, err := r.Body()
	if err != nil {
		return nil, &common.ParseError{Message: "could not read body", Err: err}
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, common.NewParseError("no data or data is not a mapping")
	}
	var body interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &common.ParseError{Message: "invalid json body", Err: err}
	}
	return body, nil
}

func (h *Handler) write(w common.ResponseWriter, resp Response) {
	if resp.CacheHit {
		w.SetHeader("Hit", "1")
	}
	if resp.Body == nil {
		w.WriteHeader(resp.Status)
		return
	}
	w.SetHeader("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	if err := json.NewEncoder(w.UnderlyingResponseWriter()).Encode(resp.Body); err != nil {
		logger.Warn("Failed to write response: %v", err)
	}
}

// serveProcedure calls the procedure named by spName with the remaining body
// fields as parameters.
func (h *Handler) serveProcedure(w common.ResponseWriter, r common.Request) {
	req := Request{Resource: "procedures", Operation: OpPost, Context: h.requestContext(r)}
	if h.cors != nil {
		common.SetCORSHeaders(w, *h.cors)
		if r.Method() == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	body, err := decodeBody(r)
	if err != nil {
		h.write(w, h.failure(req, "", err))
		return
	}
	req.Body = body
	params, ok := body.(map[string]interface{})
	if !ok {
		h.write(w, h.failure(req, "", common.NewParseError("no data or data is not a mapping")))
		return
	}
	name, _ := params["spName"].(string)
	if name == "" {
		h.write(w, h.failure(req, "", &common.ParseError{Message: "missing procedure name", Fields: map[string]string{"sp_name": "required"}}))
		return
	}
	args := make(map[string]interface{}, len(params))
	for k, v := range params {
		if k != "spName" {
			args[k] = v
		}
	}
	rows, err := h.procedures.Call(r.UnderlyingRequest().Context(), name, args)
	if err != nil {
		h.write(w, h.failure(req, "", err))
		return
	}
	h.write(w, Response{Status: http.StatusOK, Body: naming.TitleWireKeys(rows)})
}

// requestPath rebuilds the URL of a request made without HTTP context. Query
// parameters are sorted.
func requestPath(req Request) string {
	var b strings.Builder
	if req.HasParent() {
		b.WriteString("/" + req.ParentResource + "/" + req.ParentPK + "/" + req.SubResource)
	} else {
		b.WriteString("/" + req.Resource)
	}
	if req.PK != "" {
		b.WriteString("/" + req.PK)
	}
	if len(req.Query) > 0 {
		q := url.Values{}
		for k, v := range req.Query {
			q.Set(k, v)
		}
		b.WriteString("?" + q.Encode())
	}
	return b.String()
}
