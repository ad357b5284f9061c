package parser

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/bitechdev/SimplifySpec/pkg/fields"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
	"github.com/bitechdev/SimplifySpec/pkg/naming"
	"github.com/bitechdev/SimplifySpec/pkg/reflection"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	decimalType  = reflect.TypeOf(decimal.Decimal{})
	jsonTextType = reflect.TypeOf(fields.JSONText(nil))
)

// asMapping coerces a payload into a string keyed map. JSON text is decoded.
func asMapping(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case map[string]interface{}:
		return t, true
	case naming.Mapping:
		return t.Value().(map[string]interface{}), true
	case naming.Node:
		return asMapping(t.Value())
	case []byte:
		v = string(t)
	}
	if s, ok := v.(string); ok && !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return nil, false
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, false
	}
	return m, true
}

// lookup reads a payload value, preferring the wire key when it holds a
// non-nil value.
func lookup(data map[string]interface{}, wire, storage string) (interface{}, bool) {
	wv, wok := data[wire]
	if wok && wv != nil {
		return wv, true
	}
	sv, sok := data[storage]
	if sok {
		return sv, true
	}
	return wv, wok
}

// hasKey reports whether an existing id was supplied. Zero values do not
// count.
func hasKey(v interface{}) bool {
	return !reflection.IsZeroValue(reflect.ValueOf(v))
}

func truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map:
		return rv.Len() > 0
	}
	return !reflection.IsZeroValue(rv)
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}

// assign stores val into dst, converting between payload and field types.
// A nil val resets dst to its zero value.
func assign(dst reflect.Value, val interface{}) error {
	if val == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Ptr {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), val); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	rv := reflect.ValueOf(val)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		return assign(dst, rv.Elem().Interface())
	}
	if rv.Type().AssignableTo(dst.Type()) {
		dst.Set(rv)
		return nil
	}

	switch dst.Type() {
	case timeType:
		t, err := cast.ToTimeE(val)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	case decimalType:
		d, err := toDecimal(val)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(d))
		return nil
	case jsonTextType:
		j, err := fields.NewJSONText(val)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(j))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(val)
		if err != nil {
			return err
		}
		dst.SetString(s)
		return nil
	case reflect.Bool:
		b, err := cast.ToBoolE(val)
		if err != nil {
			return err
		}
		dst.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(val)
		if err != nil {
			return err
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(val)
		if err != nil {
			return err
		}
		dst.SetUint(n)
		return nil
	case reflect.Float32, reflect.Float64:
		n, err := cast.ToFloat64E(val)
		if err != nil {
			return err
		}
		dst.SetFloat(n)
		return nil
	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 {
			s, err := cast.ToStringE(val)
			if err != nil {
				return err
			}
			dst.SetBytes([]byte(s))
			return nil
		}
	}
	if rv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(rv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot use %T as %s", val, dst.Type())
}

// setColumn writes the shadow id column of a forward relation.
func setColumn(entity reflect.Value, f *metadata.Field, id interface{}) error {
	if len(f.ColumnIndex) == 0 {
		return fmt.Errorf("relation %s has no id column", f.Name)
	}
	fv, err := reflection.FieldValue(entity, f.ColumnIndex)
	if err != nil {
		return err
	}
	return assign(fv, id)
}

// link attaches a loaded related entity to a forward relation and copies its
// key into the shadow column.
func link(entity reflect.Value, f *metadata.Field, related *metadata.EntityType, obj reflect.Value) error {
	fv, err := reflection.FieldValue(entity, f.Index)
	if err != nil {
		return err
	}
	setObject(fv, obj)

	column := f.RelatedColumn
	if column == "" {
		column = related.PrimaryKey().Column
	}
	rf, ok := related.FieldByColumn(column)
	if !ok {
		return fmt.Errorf("relation %s references unknown column %s", f.Name, column)
	}
	index := rf.Index
	if rf.IsForward() {
		index = rf.ColumnIndex
	}
	key, err := reflection.FieldValue(obj, index)
	if err != nil {
		return err
	}
	return setColumn(entity, f, key.Interface())
}

// setObject stores the struct pointer obj into a pointer or struct field.
func setObject(fv reflect.Value, obj reflect.Value) {
	if fv.Kind() == reflect.Ptr {
		fv.Set(obj)
		return
	}
	fv.Set(obj.Elem())
}
