package engine

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/dialect"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
	"github.com/bitechdev/SimplifySpec/pkg/plan"
	"github.com/bitechdev/SimplifySpec/pkg/reflection"
)

// graph hydrates live entities for keys, loads every include path and
// serializes the result.
func (e *Engine) graph(ctx context.Context, p *plan.Plan, keys []interface{}) ([]map[string]interface{}, error) {
	if len(keys) == 0 {
		return []map[string]interface{}{}, nil
	}
	et := p.Entity
	roots, err := LoadByKeys(ctx, e.db, e.strategy, et, et.PrimaryKey().Column, keys)
	if err != nil {
		return nil, err
	}
	pos := positions(keys)
	sort.SliceStable(roots, func(i, j int) bool {
		return pos[keyOf(columnValue(et, roots[i], et.PrimaryKey().Column))] <
			pos[keyOf(columnValue(et, roots[j], et.PrimaryKey().Column))]
	})

	if err := e.loadIncludes(ctx, et, roots, p.Includes); err != nil {
		return nil, err
	}

	tree := includeTree(p.Includes)
	out := make([]map[string]interface{}, 0, len(roots))
	for _, root := range roots {
		obj, err := serialize(et, root, p.RequestedFields, tree)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// LoadByKeys returns pointers to every entity of et whose column holds one of
// keys. Keys are bound in batches.
func LoadByKeys(ctx context.Context, db common.Database, s dialect.Strategy, et *metadata.EntityType, column string, keys []interface{}) ([]reflect.Value, error) {
	unique := make([]interface{}, 0, len(keys))
	seen := map[string]bool{}
	for _, k := range keys {
		if k = deref(k); k == nil {
			continue
		}
		if id := keyOf(k); !seen[id] {
			seen[id] = true
			unique = append(unique, k)
		}
	}

	var out []reflect.Value
	for _, batch := range chunks(unique) {
		dest := reflect.New(reflect.SliceOf(reflect.PointerTo(et.GoType)))
		model := dest.Interface()
		err := db.NewSelect().Model(model).
			Where(s.Quote(column)+" IN ("+dialect.Placeholders(len(batch))+")", batch...).
			OrderExpr(s.Quote(et.PrimaryKey().Column) + " ASC").
			Scan(ctx, model)
		if err != nil {
			return nil, fmt.Errorf("load %s by %s: %w", et.Name, column, err)
		}
		list := dest.Elem()
		for i := 0; i < list.Len(); i++ {
			out = append(out, list.Index(i))
		}
	}
	return out, nil
}

// loadIncludes walks every include path level by level. Objects loaded for a
// path prefix are shared by every include starting with it.
func (e *Engine) loadIncludes(ctx context.Context, et *metadata.EntityType, roots []reflect.Value, includes []plan.Include) error {
	type level struct {
		entity  *metadata.EntityType
		objects []reflect.Value
	}
	loaded := map[string]level{"": {entity: et, objects: roots}}

	for _, inc := range includes {
		if !inc.Resolved() {
			continue
		}
		prefix := ""
		for i, f := range inc.Chain {
			if !f.IsRelation() {
				break
			}
			path := strings.Join(inc.Segments[:i+1], ".")
			if _, done := loaded[path]; done {
				prefix = path
				continue
			}
			parent := loaded[prefix]
			related, err := parent.entity.Related(f)
			if err != nil {
				return err
			}
			children, err := e.loadRelation(ctx, parent.entity, related, f, parent.objects)
			if err != nil {
				return err
			}
			loaded[path] = level{entity: related, objects: children}
			prefix = path
		}
	}
	return nil
}

// loadRelation loads f for every parent, attaches the related objects and
// returns them.
func (e *Engine) loadRelation(ctx context.Context, et, related *metadata.EntityType, f *metadata.Field, parents []reflect.Value) ([]reflect.Value, error) {
	if len(parents) == 0 {
		return nil, nil
	}
	switch {
	case f.IsForward():
		column := relatedColumn(f, related)
		keys := make([]interface{}, 0, len(parents))
		for _, p := range parents {
			keys = append(keys, columnValue(et, p, f.Column))
		}
		children, err := LoadByKeys(ctx, e.db, e.strategy, related, column, keys)
		if err != nil {
			return nil, err
		}
		byKey := map[string]reflect.Value{}
		for _, c := range children {
			byKey[keyOf(columnValue(related, c, column))] = c
		}
		var out attached
		for _, p := range parents {
			if c, ok := byKey[keyOf(columnValue(et, p, f.Column))]; ok {
				stored, err := attach(p, f, []reflect.Value{c})
				if err != nil {
					return nil, err
				}
				out.add(stored)
			}
		}
		return out.list, nil

	case f.Relation == metadata.RelManyToMany:
		return e.loadManyToMany(ctx, et, related, f, parents)

	default:
		keys := make([]interface{}, 0, len(parents))
		for _, p := range parents {
			keys = append(keys, columnValue(et, p, f.RelatedColumn))
		}
		children, err := LoadByKeys(ctx, e.db, e.strategy, related, f.RemoteColumn, keys)
		if err != nil {
			return nil, err
		}
		groups := map[string][]reflect.Value{}
		for _, c := range children {
			k := keyOf(columnValue(related, c, f.RemoteColumn))
			groups[k] = append(groups[k], c)
		}
		var out attached
		for _, p := range parents {
			stored, err := attach(p, f, groups[keyOf(columnValue(et, p, f.RelatedColumn))])
			if err != nil {
				return nil, err
			}
			out.add(stored)
		}
		return out.list, nil
	}
}

func (e *Engine) loadManyToMany(ctx context.Context, et, related *metadata.EntityType, f *metadata.Field, parents []reflect.Value) ([]reflect.Value, error) {
	pk := et.PrimaryKey()
	keys := make([]interface{}, 0, len(parents))
	for _, p := range parents {
		keys = append(keys, columnValue(et, p, pk.Column))
	}

	links := map[string][]string{}
	var relatedKeys []interface{}
	for _, batch := range chunks(keys) {
		var rows []map[string]interface{}
		err := e.db.NewSelect().
			Table(e.strategy.QuoteTable(f.JoinTable)).
			ColumnExpr(e.strategy.Quote(f.JoinOwnColumn)+" AS "+e.strategy.Quote("own")).
			ColumnExpr(e.strategy.Quote(f.JoinRelatedColumn)+" AS "+e.strategy.Quote("related")).
			Where(e.strategy.Quote(f.JoinOwnColumn)+" IN ("+dialect.Placeholders(len(batch))+")", batch...).
			OrderExpr(e.strategy.Quote(f.JoinRelatedColumn) + " ASC").
			Scan(ctx, &rows)
		if err != nil {
			return nil, fmt.Errorf("load links %s: %w", f.JoinTable, err)
		}
		for _, r := range rows {
			own := keyOf(r["own"])
			links[own] = append(links[own], keyOf(r["related"]))
			relatedKeys = append(relatedKeys, r["related"])
		}
	}

	relPK := related.PrimaryKey()
	children, err := LoadByKeys(ctx, e.db, e.strategy, related, relPK.Column, relatedKeys)
	if err != nil {
		return nil, err
	}
	byKey := map[string]reflect.Value{}
	for _, c := range children {
		byKey[keyOf(columnValue(related, c, relPK.Column))] = c
	}
	var out attached
	for _, p := range parents {
		var list []reflect.Value
		for _, k := range links[keyOf(columnValue(et, p, pk.Column))] {
			if c, ok := byKey[k]; ok {
				list = append(list, c)
			}
		}
		stored, err := attach(p, f, list)
		if err != nil {
			return nil, err
		}
		out.add(stored)
	}
	return out.list, nil
}

// columnValue reads the value stored in column from an entity pointer.
func columnValue(et *metadata.EntityType, obj reflect.Value, column string) interface{} {
	f, ok := et.FieldByColumn(column)
	if !ok {
		return nil
	}
	index := f.Index
	if f.IsForward() {
		index = f.ColumnIndex
	}
	v, err := reflection.FieldValue(obj, index)
	if err != nil {
		return nil
	}
	v = reflection.Indirect(v)
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

// attach stores children on the relation field of parent, as a pointer for
// single relations and as a slice for multi-valued ones. It returns pointers
// to the children as stored, so value fields are loaded further in place.
func attach(parent reflect.Value, f *metadata.Field, children []reflect.Value) ([]reflect.Value, error) {
	fv, err := reflection.FieldValue(parent, f.Index)
	if err != nil {
		return nil, err
	}
	t := fv.Type()
	if t.Kind() == reflect.Slice {
		byPtr := t.Elem().Kind() == reflect.Ptr
		list := reflect.MakeSlice(t, 0, len(children))
		for _, c := range children {
			if byPtr {
				list = reflect.Append(list, c)
			} else {
				list = reflect.Append(list, c.Elem())
			}
		}
		fv.Set(list)
		if byPtr {
			return children, nil
		}
		stored := make([]reflect.Value, fv.Len())
		for i := range stored {
			stored[i] = fv.Index(i).Addr()
		}
		return stored, nil
	}
	if len(children) == 0 {
		return nil, nil
	}
	c := children[0]
	if t.Kind() == reflect.Ptr {
		fv.Set(c)
		return []reflect.Value{c}, nil
	}
	fv.Set(c.Elem())
	return []reflect.Value{fv.Addr()}, nil
}

// attached collects the children stored on parents, each pointer once.
type attached struct {
	seen map[uintptr]bool
	list []reflect.Value
}

func (a *attached) add(stored []reflect.Value) {
	if a.seen == nil {
		a.seen = map[uintptr]bool{}
	}
	for _, v := range stored {
		if p := v.Pointer(); !a.seen[p] {
			a.seen[p] = true
			a.list = append(a.list, v)
		}
	}
}
