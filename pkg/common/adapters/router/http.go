// Package router connects common.Router to concrete HTTP routers.
package router

import (
	"io"
	"net/http"

	"github.com/bitechdev/SimplifySpec/pkg/common"
)

// HTTPRequest adapts *http.Request to common.Request. Path parameters come
// from the router that matched the request.
type HTTPRequest struct {
	req    *http.Request
	params func(string) string
	body   []byte
}

// NewHTTPRequest wraps r. A nil params function reports no path parameters.
func NewHTTPRequest(r *http.Request, params func(string) string) *HTTPRequest {
	if params == nil {
		params = func(string) string { return "" }
	}
	return &HTTPRequest{req: r, params: params}
}

func (h *HTTPRequest) Method() string { return h.req.Method }

func (h *HTTPRequest) URL() string { return h.req.URL.String() }

func (h *HTTPRequest) Header(key string) string { return h.req.Header.Get(key) }

// Body reads the request body once.
func (h *HTTPRequest) Body() ([]byte, error) {
	if h.body != nil || h.req.Body == nil {
		return h.body, nil
	}
	defer h.req.Body.Close()
	body, err := io.ReadAll(h.req.Body)
	if err != nil {
		return nil, err
	}
	h.body = body
	return body, nil
}

func (h *HTTPRequest) PathParam(key string) string { return h.params(key) }

func (h *HTTPRequest) QueryParam(key string) string { return h.req.URL.Query().Get(key) }

// AllQueryParams returns the first value of every query parameter.
func (h *HTTPRequest) AllQueryParams() map[string]string {
	params := make(map[string]string)
	for key, values := range h.req.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func (h *HTTPRequest) UnderlyingRequest() *http.Request { return h.req }

// HTTPResponseWriter adapts http.ResponseWriter to common.ResponseWriter.
type HTTPResponseWriter struct {
	w http.ResponseWriter
}

// NewHTTPResponseWriter adapts w to common.ResponseWriter.
func NewHTTPResponseWriter(w http.ResponseWriter) common.ResponseWriter {
	return &HTTPResponseWriter{w: w}
}

func (h *HTTPResponseWriter) SetHeader(key, value string) { h.w.Header().Set(key, value) }

func (h *HTTPResponseWriter) WriteHeader(statusCode int) { h.w.WriteHeader(statusCode) }

func (h *HTTPResponseWriter) Write(data []byte) (int, error) { return h.w.Write(data) }

func (h *HTTPResponseWriter) UnderlyingResponseWriter() http.ResponseWriter { return h.w }
