package engine

import (
	"fmt"
	"reflect"

	"github.com/bitechdev/SimplifySpec/pkg/metadata"
	"github.com/bitechdev/SimplifySpec/pkg/plan"
	"github.com/bitechdev/SimplifySpec/pkg/reflection"
)

// node is one level of the include tree keyed by storage segment.
type node map[string]node

func includeTree(includes []plan.Include) node {
	root := node{}
	for _, inc := range includes {
		if !inc.Resolved() {
			continue
		}
		n := root
		for _, seg := range inc.Segments {
			child, ok := n[seg]
			if !ok {
				child = node{}
				n[seg] = child
			}
			n = child
		}
	}
	return root
}

// Serialize converts a loaded entity into its view object. Forward
// references appear under their id column, excluded fields are dropped at
// every level and the loaded relations named in includes are nested.
func Serialize(et *metadata.EntityType, obj interface{}, includes []plan.Include) (map[string]interface{}, error) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr {
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		v = p
	}
	return serialize(et, v, nil, includeTree(includes))
}

func serialize(et *metadata.EntityType, obj reflect.Value, fieldsFilter []string, tree node) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	for _, name := range et.Describe().AllFields {
		f, ok := et.Field(name)
		if !ok {
			continue
		}
		key := f.Column
		if key == "" {
			key = f.Name
		}
		val, err := storedValue(et, f, obj)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}

	requested := map[string]bool{}
	for _, name := range fieldsFilter {
		requested[name] = true
	}
	if len(requested) > 0 {
		keep := map[string]bool{}
		for name := range requested {
			keep[name] = true
			if f, ok := et.Field(name); ok && f.Column != "" {
				keep[f.Column] = true
			}
		}
		for k := range out {
			if !keep[k] {
				delete(out, k)
			}
		}
	}

	for name, sub := range tree {
		if len(requested) > 0 && !requested[name] {
			continue
		}
		f, ok := et.Field(name)
		if !ok {
			continue
		}
		if !f.IsRelation() {
			val, err := storedValue(et, f, obj)
			if err != nil {
				return nil, err
			}
			out[name] = val
			continue
		}
		related, err := et.Related(f)
		if err != nil {
			return nil, err
		}
		fv, err := reflection.FieldValue(obj, f.Index)
		if err != nil {
			return nil, err
		}
		nested, err := serializeRelation(related, f, fv, sub)
		if err != nil {
			return nil, err
		}
		out[name] = nested
	}

	for _, x := range et.Excludes() {
		delete(out, x)
	}
	return out, nil
}

func serializeRelation(related *metadata.EntityType, f *metadata.Field, fv reflect.Value, sub node) (interface{}, error) {
	if fv.Kind() == reflect.Slice {
		list := make([]interface{}, 0, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			item := fv.Index(i)
			if item.Kind() != reflect.Ptr {
				item = item.Addr()
			} else if item.IsNil() {
				continue
			}
			obj, err := serialize(related, item, nil, sub)
			if err != nil {
				return nil, err
			}
			list = append(list, obj)
		}
		return list, nil
	}
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			if f.Multiple {
				return []interface{}{}, nil
			}
			return nil, nil
		}
		return serialize(related, fv, nil, sub)
	}
	if fv.CanAddr() {
		return serialize(related, fv.Addr(), nil, sub)
	}
	return nil, fmt.Errorf("relation %s is not addressable", f.Name)
}

// storedValue reads the view value of a concrete field, the id column for
// forward references.
func storedValue(et *metadata.EntityType, f *metadata.Field, obj reflect.Value) (interface{}, error) {
	index := f.Index
	if f.IsForward() {
		index = f.ColumnIndex
	}
	fv, err := reflection.FieldValue(obj, index)
	if err != nil {
		return nil, err
	}
	if !fv.IsValid() || !fv.CanInterface() {
		return nil, nil
	}
	val, err := viewValue(valueField(et, f), fv.Interface())
	if err != nil {
		return nil, fmt.Errorf("read %s.%s: %w", et.Name, f.Name, err)
	}
	return val, nil
}
