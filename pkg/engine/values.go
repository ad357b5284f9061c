package engine

import (
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/fields"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
)

// viewValue normalizes a stored value of f into its view form: booleans,
// int64, float64 for floats and decimals, base64 for binary, time.Time for
// datetimes and decoded values for encrypted and JSON text fields.
func viewValue(f *metadata.Field, v interface{}) (interface{}, error) {
	v = deref(v)
	if v == nil {
		return nil, nil
	}

	switch f.Type {
	case metadata.TypeEncrypted:
		if s, ok := v.(fields.EncryptedString); ok {
			return string(s), nil
		}
		return fields.DecryptStored(v)
	case metadata.TypeJSON:
		switch x := v.(type) {
		case fields.JSONText:
			return fields.Decode(x), nil
		case json.RawMessage:
			return fields.Decode([]byte(x)), nil
		case string, []byte:
			return fields.Decode(x), nil
		}
		return v, nil
	case metadata.TypeDecimal:
		return decimalValue(v)
	}

	if valuer, ok := v.(driver.Valuer); ok {
		raw, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, nil
		}
		v = raw
	}

	switch f.Type {
	case metadata.TypeBoolean:
		return cast.ToBoolE(stringish(v))
	case metadata.TypeInteger:
		return cast.ToInt64E(stringish(v))
	case metadata.TypeFloat:
		return cast.ToFloat64E(stringish(v))
	case metadata.TypeBinary:
		switch x := v.(type) {
		case []byte:
			return base64.StdEncoding.EncodeToString(x), nil
		case string:
			return base64.StdEncoding.EncodeToString([]byte(x)), nil
		}
		return v, nil
	case metadata.TypeDateTime:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
		return cast.ToTimeE(stringish(v))
	case metadata.TypeString:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return v, nil
	}
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return v, nil
}

func decimalValue(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.InexactFloat64(), nil
	case decimal.NullDecimal:
		if !x.Valid {
			return nil, nil
		}
		return x.Decimal.InexactFloat64(), nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return nil, err
		}
		return d.InexactFloat64(), nil
	case []byte:
		d, err := decimal.NewFromString(string(x))
		if err != nil {
			return nil, err
		}
		return d.InexactFloat64(), nil
	}
	return cast.ToFloat64E(v)
}

// stringish turns driver byte slices into strings so cast can read them.
func stringish(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func deref(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	// A nil slice or map is a NULL column, as scanned rows report it.
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map) && rv.IsNil() {
		return nil
	}
	return rv.Interface()
}

// keyOf returns a comparable grouping key for a primary or foreign key value.
func keyOf(v interface{}) string {
	v = deref(v)
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case []byte:
		return string(x)
	case driver.Valuer:
		if raw, err := x.Value(); err == nil {
			return keyOf(raw)
		}
	}
	return fmt.Sprint(v)
}

// valueField returns the field whose type governs the values stored for f:
// the related primary key for references, f itself otherwise.
func valueField(et *metadata.EntityType, f *metadata.Field) *metadata.Field {
	if !f.IsRelation() {
		return f
	}
	related, err := et.Related(f)
	if err != nil {
		return f
	}
	if f.IsForward() && f.RelatedColumn != "" {
		if rf, ok := related.FieldByColumn(f.RelatedColumn); ok && !rf.IsRelation() {
			return rf
		}
	}
	return related.PrimaryKey()
}

// CoerceKey converts a raw path value into the type of the primary key f.
func CoerceKey(f *metadata.Field, raw string) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, common.NewParseError("missing key for %s", f.Name)
	}
	switch f.Type {
	case metadata.TypeInteger:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return nil, &common.ParseError{Message: "could not parse key " + f.Name, Err: err}
		}
		return n, nil
	case metadata.TypeFloat, metadata.TypeDecimal:
		n, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, &common.ParseError{Message: "could not parse key " + f.Name, Err: err}
		}
		return n, nil
	}
	return raw, nil
}
