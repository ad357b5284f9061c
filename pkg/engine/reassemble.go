package engine

import (
	"reflect"
	"sort"
	"strings"

	"github.com/bitechdev/SimplifySpec/pkg/common"
)

// FlatRow is one projected row. Sub-fields of an included relation are keyed
// "relation.field".
type FlatRow map[string]interface{}

// Shape tells Reassemble how flat rows fold back into objects.
type Shape struct {
	// PrimaryKey is the row key holding the entity's primary key.
	PrimaryKey string
	// Includes maps every included relation name to whether it is
	// multi-valued.
	Includes map[string]bool
	// Multiple lists the other multi-valued keys, such as projected
	// many-to-many id columns.
	Multiple []string
	// Excludes are removed from every object.
	Excludes []string
}

func (s Shape) multiple(key string) bool {
	if many, ok := s.Includes[key]; ok {
		return many
	}
	for _, m := range s.Multiple {
		if m == key {
			return true
		}
	}
	return false
}

// Reassemble groups rows by primary key in first-seen order and folds every
// group into one object. Columns that differ inside a group become arrays;
// nested objects are deduplicated by structural equality. A group of
// identical rows is an InternalConsistencyError.
func Reassemble(rows []FlatRow, shape Shape) ([]map[string]interface{}, error) {
	var order []string
	groups := map[string][]map[string]interface{}{}
	for _, row := range rows {
		obj := fold(row, shape)
		key := keyOf(obj[shape.PrimaryKey])
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], obj)
	}

	out := make([]map[string]interface{}, 0, len(order))
	for _, key := range order {
		obj, err := merge(groups[key], shape)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// fold nests the dotted sub-fields of every include. An include whose
// sub-fields are all null is nil.
func fold(row FlatRow, shape Shape) map[string]interface{} {
	obj := make(map[string]interface{}, len(row))
	nested := map[string]map[string]interface{}{}
	for k, v := range row {
		rel, sub, ok := strings.Cut(k, ".")
		if _, included := shape.Includes[rel]; ok && included {
			m := nested[rel]
			if m == nil {
				m = map[string]interface{}{}
				nested[rel] = m
			}
			m[sub] = v
			continue
		}
		obj[k] = v
	}
	for rel := range shape.Includes {
		m := nested[rel]
		allNull := true
		for _, v := range m {
			if v != nil {
				allNull = false
				break
			}
		}
		if allNull {
			obj[rel] = nil
		} else {
			obj[rel] = m
		}
	}
	return obj
}

func merge(objs []map[string]interface{}, shape Shape) (map[string]interface{}, error) {
	first := objs[0]
	out := make(map[string]interface{}, len(first))
	for k, v := range first {
		out[k] = v
	}

	fanned := map[string]bool{}
	if len(objs) > 1 {
		for _, k := range differing(objs) {
			fanned[k] = true
			out[k] = collect(objs, k, shape.multiple(k))
		}
		if len(fanned) == 0 {
			return nil, &common.InternalConsistencyError{Message: "duplicate object for key", Key: first[shape.PrimaryKey]}
		}
	}

	for k := range out {
		if fanned[k] || !shape.multiple(k) {
			continue
		}
		out[k] = asArray(out[k])
	}
	for _, x := range shape.Excludes {
		delete(out, x)
	}
	return out, nil
}

// differing returns the sorted keys whose values are not equal across objs.
func differing(objs []map[string]interface{}) []string {
	keys := map[string]bool{}
	for _, o := range objs {
		for k := range o {
			keys[k] = true
		}
	}
	var out []string
	for k := range keys {
		first := objs[0][k]
		for _, o := range objs[1:] {
			if !reflect.DeepEqual(first, o[k]) {
				out = append(out, k)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// collect gathers the values of key across objs. Nested objects and the
// values of multi-valued keys are deduplicated and nulls dropped; other
// scalars are kept as the raw list.
func collect(objs []map[string]interface{}, key string, multiple bool) []interface{} {
	nested := false
	for _, o := range objs {
		if _, ok := o[key].(map[string]interface{}); ok {
			nested = true
			break
		}
	}
	out := make([]interface{}, 0, len(objs))
	for _, o := range objs {
		v := o[key]
		if !nested && !multiple {
			out = append(out, v)
			continue
		}
		if v == nil || contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func contains(list []interface{}, v interface{}) bool {
	for _, x := range list {
		if reflect.DeepEqual(x, v) {
			return true
		}
	}
	return false
}

func asArray(v interface{}) []interface{} {
	switch x := v.(type) {
	case nil:
		return []interface{}{}
	case []interface{}:
		return x
	default:
		return []interface{}{v}
	}
}
