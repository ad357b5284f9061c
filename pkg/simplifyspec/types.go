package simplifyspec

import (
	"net/http"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
	"github.com/bitechdev/SimplifySpec/pkg/naming"
)

// Operation names a request kind. The plain verbs are what callers pass in a
// Request; the sub-resource and list variants are what a Resource enables in
// SupportedMethods.
type Operation string

const (
	OpGet        Operation = "GET"
	OpGetList    Operation = "GET_LIST"
	OpGetSub     Operation = "GET_SUB"
	OpGetListSub Operation = "GET_LIST_SUB"
	OpPost       Operation = "POST"
	OpPostSub    Operation = "POST_SUB"
	OpPut        Operation = "PUT"
	OpDelete     Operation = "DELETE"
	OpDeleteSub  Operation = "DELETE_SUB"
)

// AllOperations enables every operation on a resource.
var AllOperations = []Operation{
	OpGet, OpGetList, OpGetSub, OpGetListSub,
	OpPost, OpPostSub, OpPut, OpDelete, OpDeleteSub,
}

// verb reduces an operation to the HTTP verb that carries it.
func (o Operation) verb() Operation {
	switch o {
	case OpGetList, OpGetSub, OpGetListSub:
		return OpGet
	case OpPostSub:
		return OpPost
	case OpDeleteSub:
		return OpDelete
	}
	return o
}

// operationForMethod maps an HTTP method onto its operation.
func operationForMethod(method string) (Operation, bool) {
	switch method {
	case http.MethodGet:
		return OpGet, true
	case http.MethodPost:
		return OpPost, true
	case http.MethodPut:
		return OpPut, true
	case http.MethodDelete:
		return OpDelete, true
	}
	return "", false
}

// RequestContext is the acting principal passed to the parser.
type RequestContext = common.RequestContext

// LinkedObject declares how a resource is reached below a parent resource.
//
// ParentName names the field that references the parent: on LinkingModel when
// one is set, otherwise on the resource itself. Without a ParentModel it is a
// plain column holding the parent key. SubResourceName names the field of
// LinkingModel that references the resource, or, for LivesOnParent links,
// the field of ParentModel that references it.
type LinkedObject struct {
	ParentResource  string
	ParentModel     interface{}
	ParentName      string
	LinkingModel    interface{}
	SubResourceName string
	LivesOnParent   bool
}

// Resource is one REST resource served by the handler.
type Resource struct {
	// Name is the URL segment, e.g. "basicClasses".
	Name             string
	Model            interface{}
	SupportedMethods []Operation
	LinkedObjects    []LinkedObject
	// ReadDB and WriteDB name connections of the DatabaseResolver. Empty
	// names use the handler's default database.
	ReadDB  string
	WriteDB string
}

// Request is one call into the handler. PK and ParentPK are raw path
// values. SubResource is the last path segment of sub-resource calls.
type Request struct {
	Operation      Operation
	Resource       string
	PK             string
	ParentResource string
	ParentPK       string
	SubResource    string
	Query          map[string]string
	Body           interface{}
	Context        *RequestContext
}

// HasParent reports whether the request addresses a sub-resource.
func (r Request) HasParent() bool {
	return r.ParentResource != "" && r.ParentPK != ""
}

// Response is the outcome of Handle. Body is nil for responses without
// content.
type Response struct {
	Status   int
	Body     interface{}
	CacheHit bool
}

// resource is a registered Resource with its metadata resolved.
type resource struct {
	Resource
	entity    *metadata.EntityType
	supported map[Operation]bool
	linked    []*linkedObject
}

func (r *resource) allows(op Operation) error {
	if r.supported[op] {
		return nil
	}
	return &common.UnsupportedOperationError{Operation: string(op), Resource: r.Name}
}

// linkedTo returns the link a sub-resource request travels. A link living
// on the parent matches only requests ending in its sub resource name.
func (r *resource) linkedTo(req Request) (*linkedObject, error) {
	tail := naming.ToStorageName(req.SubResource)
	var found *linkedObject
	for _, lo := range r.linked {
		if lo.ParentResource != req.ParentResource {
			continue
		}
		if lo.livesOn(tail) {
			return lo, nil
		}
		if !lo.LivesOnParent && found == nil {
			found = lo
		}
	}
	if found == nil {
		return nil, &common.UnsupportedOperationError{Operation: "sub-resource of " + req.ParentResource, Resource: r.Name}
	}
	return found, nil
}

// linkedObject is a LinkedObject with its models resolved.
type linkedObject struct {
	LinkedObject
	parent  *metadata.EntityType
	linking *metadata.EntityType
}

// livesOn reports whether a request ending in tail reads the child stored on
// the parent.
func (lo *linkedObject) livesOn(tail string) bool {
	return lo.LivesOnParent && lo.SubResourceName == tail
}
