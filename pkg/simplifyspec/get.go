package simplifyspec

import (
	"context"
	"errors"
	"net/http"

	"github.com/bitechdev/SimplifySpec/pkg/cache"
	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/engine"
	"github.com/bitechdev/SimplifySpec/pkg/logger"
	"github.com/bitechdev/SimplifySpec/pkg/metrics"
	"github.com/bitechdev/SimplifySpec/pkg/naming"
	"github.com/bitechdev/SimplifySpec/pkg/plan"
)

func (h *Handler) get(ctx context.Context, res *resource, req Request) (Response, error) {
	if plan.Flag(req.Query[plan.ParamMeta]) {
		return Response{Status: http.StatusOK, Body: res.entity.Meta()}, nil
	}

	op, lo, err := readOperation(res, req)
	if err != nil {
		return Response{}, err
	}
	if err := res.allows(op); err != nil {
		return Response{}, err
	}

	key, cached := h.cacheKey(res, req)
	if cached {
		var body interface{}
		switch err := h.cache.Get(ctx, key, &body); {
		case err == nil:
			metrics.GetProvider().RecordCacheHit("response")
			return Response{Status: http.StatusOK, Body: body, CacheHit: true}, nil
		case errors.Is(err, cache.ErrNotFound):
			metrics.GetProvider().RecordCacheMiss("response")
		default:
			return Response{}, err
		}
	}

	c, err := h.newCall(res, req, res.ReadDB)
	if err != nil {
		return Response{}, err
	}
	scope, done, err := c.readScope(ctx, lo)
	if err != nil {
		return Response{}, err
	}
	if done {
		return Response{Status: http.StatusOK, Body: map[string]interface{}{}}, nil
	}

	p, err := plan.Compile(res.entity, req.Query)
	if err != nil {
		return Response{}, err
	}
	result, err := engine.NewWithStrategy(c.db, c.s).Execute(ctx, p, scope)
	if err != nil {
		return Response{}, err
	}

	var body interface{}
	if scope.Single {
		body = naming.WireKeys(result.Item)
	} else {
		body = naming.WireKeys(result.Items)
		if p.Enveloped() {
			var count interface{}
			if result.Count != nil {
				count = *result.Count
			}
			body = map[string]interface{}{"count": count, "data": body}
		}
	}

	if cached {
		ttl := res.entity.Config.CacheTTL
		if err := h.cache.Set(ctx, key, body, ttl, cache.ResourceTag(res.Name)); err != nil {
			return Response{}, err
		}
	}
	return Response{Status: http.StatusOK, Body: body}, nil
}

// readOperation picks the read a request performs: a child stored on the
// parent and a keyed child are single reads, everything else lists.
func readOperation(res *resource, req Request) (Operation, *linkedObject, error) {
	if !req.HasParent() {
		if req.PK != "" {
			return OpGet, nil, nil
		}
		return OpGetList, nil, nil
	}
	lo, err := res.linkedTo(req)
	if err != nil {
		return "", nil, err
	}
	if req.PK != "" || lo.livesOn(naming.ToStorageName(req.SubResource)) {
		return OpGetSub, lo, nil
	}
	return OpGetListSub, lo, nil
}

// readScope narrows the read to the request's key and parent. done is set
// when the parent holds no child, which reads as an empty object.
func (c *call) readScope(ctx context.Context, lo *linkedObject) (scope engine.Scope, done bool, err error) {
	et := c.res.entity
	if c.req.PK != "" {
		pk, err := engine.CoerceKey(et.PrimaryKey(), c.req.PK)
		if err != nil {
			return scope, false, err
		}
		scope = engine.Scope{Single: true, PK: pk, EmptyIsError: true}
		if lo == nil {
			return scope, false, nil
		}
		if lo.linking != nil {
			ok, err := c.linkExists(ctx, lo, pk)
			if err != nil {
				return scope, false, err
			}
			if !ok {
				return scope, false, &common.NotFoundError{Entity: et.Name, Key: pk}
			}
			return scope, false, nil
		}
		cond, err := c.parentCondition(lo)
		if err != nil {
			return scope, false, err
		}
		scope.Conditions = append(scope.Conditions, cond)
		return scope, false, nil
	}

	if lo == nil {
		return scope, false, nil
	}
	if lo.livesOn(naming.ToStorageName(c.req.SubResource)) {
		child, err := c.childOfParent(ctx, lo)
		if err != nil {
			return scope, false, err
		}
		if child == nil {
			return scope, true, nil
		}
		return engine.Scope{Single: true, PK: child}, false, nil
	}
	cond, err := c.parentCondition(lo)
	if err != nil {
		return scope, false, err
	}
	scope.Conditions = append(scope.Conditions, cond)
	return scope, false, nil
}

// cacheKey reports whether the read is cacheable and the key it caches
// under.
func (h *Handler) cacheKey(res *resource, req Request) (string, bool) {
	if h.cache == nil || res.entity.Config.CacheTTL <= 0 {
		return "", false
	}
	path := ""
	if req.Context != nil {
		path = req.Context.Path
	}
	if path == "" {
		path = requestPath(req)
	}
	return cache.ResponseKey(res.Name, path), true
}

// invalidate drops every cached response of the named resources.
func (h *Handler) invalidate(ctx context.Context, names ...string) {
	if h.cache == nil {
		return
	}
	for _, name := range names {
		if err := h.cache.DeleteByTag(ctx, cache.ResourceTag(name)); err != nil {
			logger.Warn("Failed to invalidate cache of %s: %v", name, err)
		}
	}
}
