// Package simplifyspec serves registered models as REST resources. One
// Handler compiles query parameters into plans for reads and parses bodies
// into entity graphs for writes.
package simplifyspec

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/bitechdev/SimplifySpec/pkg/cache"
	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/common/adapters/database"
	"github.com/bitechdev/SimplifySpec/pkg/dialect"
	"github.com/bitechdev/SimplifySpec/pkg/logger"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
	"github.com/bitechdev/SimplifySpec/pkg/naming"
	"github.com/bitechdev/SimplifySpec/pkg/tracing"
)

// DatabaseResolver returns the named connection.
type DatabaseResolver func(name string) (common.Database, error)

// ProcedureRunner executes stored procedures for the /procedures route.
type ProcedureRunner interface {
	Call(ctx context.Context, name string, params map[string]interface{}) ([]map[string]interface{}, error)
}

// Handler serves every registered resource.
type Handler struct {
	db         common.Database
	provider   *metadata.Provider
	databases  DatabaseResolver
	cache      *cache.Cache
	procedures ProcedureRunner
	contextFn  func(*http.Request) *RequestContext
	cors       *common.CORSConfig

	mu        sync.RWMutex
	resources map[string]*resource
	names     []string
}

// NewHandler creates a handler over db. A nil provider uses
// metadata.Default().
func NewHandler(db common.Database, provider *metadata.Provider) *Handler {
	if provider == nil {
		provider = metadata.Default()
	}
	return &Handler{
		db:        db,
		provider:  provider,
		resources: make(map[string]*resource),
	}
}

// NewHandlerWithBun creates a handler with the Bun adapter.
func NewHandlerWithBun(db *bun.DB, provider *metadata.Provider) *Handler {
	return NewHandler(database.NewBunAdapter(db), provider)
}

// NewHandlerWithGORM creates a handler with the GORM adapter.
func NewHandlerWithGORM(db *gorm.DB, provider *metadata.Provider) *Handler {
	return NewHandler(database.NewGormAdapter(db), provider)
}

// SetDatabaseResolver resolves the ReadDB and WriteDB names of resources.
func (h *Handler) SetDatabaseResolver(r DatabaseResolver) {
	h.databases = r
}

// SetCache enables response caching for entities with a CacheTTL.
func (h *Handler) SetCache(c *cache.Cache) {
	h.cache = c
}

// SetProcedureRunner enables the /procedures route.
func (h *Handler) SetProcedureRunner(r ProcedureRunner) {
	h.procedures = r
}

// SetContextFunc builds the request context for HTTP requests. Without one
// every HTTP caller is anonymous.
func (h *Handler) SetContextFunc(fn func(*http.Request) *RequestContext) {
	h.contextFn = fn
}

// Register adds a resource. Its model and the models of its linked objects
// are described through the handler's metadata provider.
func (h *Handler) Register(res Resource) error {
	if res.Name == "" {
		return &common.UnsupportedConfigurationError{Subject: "resource without name"}
	}
	et, err := h.provider.Describe(res.Model)
	if err != nil {
		return fmt.Errorf("resource %s: %w", res.Name, err)
	}

	r := &resource{Resource: res, entity: et, supported: make(map[Operation]bool, len(res.SupportedMethods))}
	for _, op := range res.SupportedMethods {
		r.supported[op] = true
	}
	for _, lo := range res.LinkedObjects {
		linked, err := h.resolveLink(res.Name, lo)
		if err != nil {
			return err
		}
		r.linked = append(r.linked, linked)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.resources[res.Name]; ok {
		return &common.UnsupportedConfigurationError{Subject: "resource " + res.Name, Err: errors.New("already registered")}
	}
	h.resources[res.Name] = r
	h.names = append(h.names, res.Name)
	logger.Info("Registered resource %s for entity %s", res.Name, et.Name)
	return nil
}

func (h *Handler) resolveLink(name string, lo LinkedObject) (*linkedObject, error) {
	out := &linkedObject{LinkedObject: lo}
	subject := fmt.Sprintf("linked object %s of %s", lo.ParentResource, name)
	if lo.ParentResource == "" || (lo.ParentName == "" && !lo.LivesOnParent) {
		return nil, &common.UnsupportedConfigurationError{Subject: subject, Err: errors.New("parent resource and parent name are required")}
	}
	var err error
	if lo.ParentModel != nil {
		if out.parent, err = h.provider.Describe(lo.ParentModel); err != nil {
			return nil, fmt.Errorf("%s: %w", subject, err)
		}
	}
	if lo.LinkingModel != nil {
		if out.linking, err = h.provider.Describe(lo.LinkingModel); err != nil {
			return nil, fmt.Errorf("%s: %w", subject, err)
		}
		if lo.SubResourceName == "" {
			return nil, &common.UnsupportedConfigurationError{Subject: subject, Err: errors.New("linking model without sub resource name")}
		}
	}
	if lo.LivesOnParent && (out.parent == nil || lo.SubResourceName == "") {
		return nil, &common.UnsupportedConfigurationError{Subject: subject, Err: errors.New("lives on parent requires a parent model and sub resource name")}
	}
	return out, nil
}

// Resources returns the registered resource names in registration order.
func (h *Handler) Resources() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.names...)
}

func (h *Handler) lookup(name string) (*resource, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.resources[name]
	return r, ok
}

func (h *Handler) database(name string) (common.Database, error) {
	if name != "" && h.databases != nil {
		db, err := h.databases(name)
		if err != nil {
			return nil, &common.UnsupportedConfigurationError{Subject: "database " + name, Err: err}
		}
		return db, nil
	}
	if h.db == nil {
		return nil, &common.UnsupportedConfigurationError{Subject: "database", Err: errors.New("no default database")}
	}
	return h.db, nil
}

// call carries one request through the operation handlers.
type call struct {
	h   *Handler
	res *resource
	req Request
	db  common.Database
	s   dialect.Strategy
}

func (h *Handler) newCall(res *resource, req Request, dbName string) (*call, error) {
	db, err := h.database(dbName)
	if err != nil {
		return nil, err
	}
	s, err := dialect.ForDatabase(db)
	if err != nil {
		return nil, err
	}
	return &call{h: h, res: res, req: req, db: db, s: s}, nil
}

// Handle runs one request. Failures are returned as responses carrying the
// mapped status and a generic message.
func (h *Handler) Handle(ctx context.Context, req Request) (resp Response) {
	requestID := uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			err := logger.HandlePanic("simplifyspec.Handle", r)
			resp = h.failure(req, requestID, &common.InternalConsistencyError{Message: err.Error()})
		}
	}()

	ctx, span := tracing.StartSpan(ctx, "simplifyspec.handle",
		attribute.String("resource", req.Resource),
		attribute.String("operation", string(req.Operation)),
		attribute.String("request_id", requestID),
	)
	defer span.End()

	logger.Info("Handling %s on %s", req.Operation, req.Resource)
	resp, err := h.handle(ctx, req)
	if err != nil {
		tracing.RecordError(ctx, err)
		return h.failure(req, requestID, err)
	}
	span.SetAttributes(attribute.Int("status", resp.Status), attribute.Bool("cache_hit", resp.CacheHit))
	return resp
}

func (h *Handler) handle(ctx context.Context, req Request) (Response, error) {
	res, ok := h.lookup(req.Resource)
	if !ok {
		return Response{}, &common.NotFoundError{Entity: "resource", Key: req.Resource}
	}
	switch req.Operation.verb() {
	case OpGet:
		return h.get(ctx, res, req)
	case OpPost:
		return h.post(ctx, res, req)
	case OpPut:
		return h.put(ctx, res, req)
	case OpDelete:
		return h.delete(ctx, res, req)
	}
	return Response{}, &common.UnsupportedOperationError{Operation: string(req.Operation), Resource: res.Name}
}

// failure logs err with the request facts and builds the error response.
func (h *Handler) failure(req Request, requestID string, err error) Response {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	status := common.StatusCode(err)
	body := map[string]interface{}{"errorMessage": common.PublicMessage(err)}
	var pe *common.ParseError
	if errors.As(err, &pe) && len(pe.Fields) > 0 {
		body["fieldErrors"] = wireFieldErrors(pe.Fields)
	}

	method, path := string(req.Operation), req.Resource
	if req.Context != nil {
		if req.Context.Method != "" {
			method = req.Context.Method
		}
		if req.Context.Path != "" {
			path = req.Context.Path
		}
	}
	fields := []interface{}{
		"resource", req.Resource,
		"operation", string(req.Operation),
		"rq_query_params", req.Query,
		"rq_data", req.Body,
		"rq_method", method,
		"rq_path", path,
		"rs_status_code", status,
		"request_id", requestID,
	}
	if status >= http.StatusInternalServerError {
		logger.Errorw(err.Error(), fields...)
	} else {
		logger.Warnw(err.Error(), fields...)
	}
	return Response{Status: status, Body: body}
}

// wireFieldErrors converts dotted storage paths into wire names.
func wireFieldErrors(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		parts := strings.Split(k, ".")
		for i, p := range parts {
			parts[i] = naming.ToWireName(p)
		}
		out[strings.Join(parts, ".")] = v
	}
	return out
}
