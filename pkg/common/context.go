package common

import "strings"

// RequestContext carries the acting principal and request facts the parser
// can copy into entities.
type RequestContext struct {
	Method    string
	Path      string
	User      string
	Anonymous bool
	Values    map[string]interface{}
}

// Lookup returns the context value for key. The keys method, path and user
// map to the request facts; any other key is read from Values.
func (c *RequestContext) Lookup(key string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	switch strings.ToLower(key) {
	case "method":
		return c.Method, c.Method != ""
	case "path":
		return c.Path, c.Path != ""
	case "user":
		return c.User, c.User != ""
	}
	v, ok := c.Values[key]
	return v, ok
}
