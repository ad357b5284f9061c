package simplifyspec

import (
	"context"
	"net/http"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/engine"
	"github.com/bitechdev/SimplifySpec/pkg/logger"
	"github.com/bitechdev/SimplifySpec/pkg/naming"
	"github.com/bitechdev/SimplifySpec/pkg/parser"
	"github.com/bitechdev/SimplifySpec/pkg/persist"
	"github.com/bitechdev/SimplifySpec/pkg/plan"
)

// payload copies the request body into a fresh mapping.
func payload(body interface{}) (map[string]interface{}, error) {
	if n, ok := body.(naming.Node); ok {
		body = n.Value()
	}
	m, ok := body.(map[string]interface{})
	if !ok {
		return nil, common.NewParseError("no data or data is not a mapping")
	}
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

// bodyKey returns the primary key sent in data, under its wire or storage
// name.
func bodyKey(c *call, data map[string]interface{}) (interface{}, bool) {
	pk := c.res.entity.PrimaryKey().Name
	for _, k := range []string{naming.ToWireName(pk), pk} {
		if v, ok := data[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (h *Handler) post(ctx context.Context, res *resource, req Request) (Response, error) {
	op := OpPost
	var lo *linkedObject
	if req.HasParent() {
		op = OpPostSub
		var err error
		if lo, err = res.linkedTo(req); err != nil {
			return Response{}, err
		}
	}
	if err := res.allows(op); err != nil {
		return Response{}, err
	}

	c, err := h.newCall(res, req, res.WriteDB)
	if err != nil {
		return Response{}, err
	}
	data, err := payload(req.Body)
	if err != nil {
		return Response{}, err
	}

	opts := parser.Options{Request: req.Context}
	if lo != nil {
		ppk, err := c.parentKey(lo)
		if err != nil {
			return Response{}, err
		}
		if field, ok := res.entity.Config.ResourceMapping[req.ParentResource]; ok {
			opts.ReferenceFields = map[string]interface{}{field: ppk}
		} else if lo.linking == nil && !lo.LivesOnParent {
			column, err := linkColumn(res.entity, lo.ParentName)
			if err != nil {
				return Response{}, err
			}
			data[column] = ppk
		}
	}
	if id, ok := bodyKey(c, data); ok {
		if lo == nil || lo.linking == nil {
			return Response{}, common.NewParseError("id given for a new %s", res.Name)
		}
		opts.ExistingID = id
	}

	var saved interface{}
	err = c.db.RunInTransaction(ctx, func(tx common.Database) error {
		g, err := parser.New(tx, c.s).Parse(ctx, res.entity, data, opts)
		if err != nil {
			return err
		}
		if err := persist.CascadeSave(ctx, tx, g); err != nil {
			return err
		}
		saved = g.Model()
		key, err := primaryKey(res.entity, saved)
		if err != nil {
			return err
		}
		if lo != nil {
			if err := c.linkToParent(ctx, tx, lo, key); err != nil {
				return err
			}
		}
		if links := req.Query[plan.ParamLinks]; links != "" {
			if err := c.saveLinks(ctx, tx, key, links); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	if lo != nil && lo.LivesOnParent {
		h.invalidate(ctx, res.Name, lo.ParentResource)
	} else {
		h.invalidate(ctx, res.Name)
	}

	body, err := engine.Serialize(res.entity, saved, nil)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusCreated, Body: naming.WireKeys(body)}, nil
}

func (h *Handler) put(ctx context.Context, res *resource, req Request) (Response, error) {
	if err := res.allows(OpPut); err != nil {
		return Response{}, err
	}
	if req.PK == "" {
		return Response{}, common.NewParseError("update without id")
	}
	c, err := h.newCall(res, req, res.WriteDB)
	if err != nil {
		return Response{}, err
	}
	pk, err := engine.CoerceKey(res.entity.PrimaryKey(), req.PK)
	if err != nil {
		return Response{}, err
	}
	data, err := payload(req.Body)
	if err != nil {
		return Response{}, err
	}

	var saved interface{}
	err = c.db.RunInTransaction(ctx, func(tx common.Database) error {
		g, err := parser.New(tx, c.s).Parse(ctx, res.entity, data, parser.Options{ExistingID: pk, Request: req.Context})
		if err != nil {
			return err
		}
		if err := persist.CascadeSave(ctx, tx, g); err != nil {
			return err
		}
		saved = g.Model()
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	h.invalidate(ctx, res.Name)

	body, err := engine.Serialize(res.entity, saved, nil)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusOK, Body: naming.WireKeys(body)}, nil
}

// delete removes the entity and every linker row referencing it. A
// deleteLinkOnly request below a parent removes only the linker rows.
func (h *Handler) delete(ctx context.Context, res *resource, req Request) (Response, error) {
	op := OpDelete
	if req.HasParent() {
		op = OpDeleteSub
		if _, err := res.linkedTo(req); err != nil {
			return Response{}, err
		}
	}
	if err := res.allows(op); err != nil {
		return Response{}, err
	}
	if req.PK == "" {
		return Response{}, common.NewParseError("delete without id")
	}
	c, err := h.newCall(res, req, res.WriteDB)
	if err != nil {
		return Response{}, err
	}
	et := res.entity
	pk, err := engine.CoerceKey(et.PrimaryKey(), req.PK)
	if err != nil {
		return Response{}, err
	}
	found, err := engine.LoadByKeys(ctx, c.db, c.s, et, et.PrimaryKey().Column, []interface{}{pk})
	if err != nil {
		return Response{}, err
	}
	if len(found) == 0 {
		return Response{}, &common.NotFoundError{Entity: et.Name, Key: pk}
	}
	if req.HasParent() && plan.Flag(req.Query[plan.ParamDeleteLinkOnly]) {
		return h.unlink(ctx, c, pk)
	}

	err = c.db.RunInTransaction(ctx, func(tx common.Database) error {
		for _, lo := range res.linked {
			if lo.linking == nil {
				continue
			}
			subCol, err := linkColumn(lo.linking, lo.SubResourceName)
			if err != nil {
				return err
			}
			if _, err := tx.NewDelete().Model(lo.linking.New().Interface()).Where(c.s.Quote(subCol)+" = ?", pk).Exec(ctx); err != nil {
				return err
			}
		}
		_, err := tx.NewDelete().Model(found[0].Interface()).Where(c.s.Quote(et.PrimaryKey().Column)+" = ?", pk).Exec(ctx)
		return err
	})
	if err != nil {
		return Response{}, err
	}
	names := []string{res.Name}
	for _, lo := range res.linked {
		names = append(names, lo.ParentResource)
	}
	h.invalidate(ctx, names...)
	logger.Info("Deleted %s %v", et.Name, pk)
	return Response{Status: http.StatusOK}, nil
}

// unlink removes the linker row joining the request's parent to pk and keeps
// the entity.
func (h *Handler) unlink(ctx context.Context, c *call, pk interface{}) (Response, error) {
	lo, err := c.res.linkedTo(c.req)
	if err != nil {
		return Response{}, err
	}
	if lo.linking == nil {
		return Response{}, common.NewParseError("%s has no link to %s to delete", c.res.Name, lo.ParentResource)
	}
	ppk, err := c.parentKey(lo)
	if err != nil {
		return Response{}, err
	}
	parentCol, err := linkColumn(lo.linking, lo.ParentName)
	if err != nil {
		return Response{}, err
	}
	subCol, err := linkColumn(lo.linking, lo.SubResourceName)
	if err != nil {
		return Response{}, err
	}
	res, err := c.db.NewDelete().Model(lo.linking.New().Interface()).
		Where(c.s.Quote(parentCol)+" = ?", ppk).
		Where(c.s.Quote(subCol)+" = ?", pk).
		Exec(ctx)
	if err != nil {
		return Response{}, err
	}
	if res.RowsAffected() == 0 {
		return Response{}, &common.NotFoundError{Entity: lo.linking.Name, Key: pk}
	}
	h.invalidate(ctx, c.res.Name, lo.ParentResource)
	return Response{Status: http.StatusOK}, nil
}
