package reflection

import (
	"fmt"
	"reflect"
	"strings"
)

// BunTag is a parsed `bun:"..."` struct tag.
// Example: "child_one_id,unique,nullzero" -> Name "child_one_id", Flags unique and nullzero.
// Example: "rel:belongs-to,join:child_one_id=id" -> Options rel and join.
type BunTag struct {
	Name    string
	Options map[string]string
	Flags   map[string]bool
}

// ParseBunTag parses a bun struct tag. Commas inside parentheses, as in
// "type:decimal(10,2)", do not split options.
func ParseBunTag(tag string) BunTag {
	out := BunTag{Options: map[string]string{}, Flags: map[string]bool{}}
	if tag == "" || tag == "-" {
		return out
	}
	for i, part := range splitOutsideParens(tag, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if key, value, found := strings.Cut(part, ":"); found {
			out.Options[key] = value
			continue
		}
		if i == 0 {
			out.Name = part
			continue
		}
		out.Flags[part] = true
	}
	return out
}

// Has reports whether the tag carries the flag.
func (t BunTag) Has(flag string) bool {
	return t.Flags[flag]
}

// GormTag is a parsed `gorm:"..."` struct tag. Keys are kept as written.
type GormTag map[string]string

// ParseGormTag parses a gorm struct tag such as "column:id;primaryKey".
// Flags without a value map to the empty string.
func ParseGormTag(tag string) GormTag {
	out := GormTag{}
	if tag == "" || tag == "-" {
		return out
	}
	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, ":")
		out[key] = value
	}
	return out
}

// Get returns the value of key, matching keys case-insensitively as GORM does.
func (t GormTag) Get(key string) (string, bool) {
	for k, v := range t {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (t GormTag) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// ExtractColumnFromGormTag extracts the column name from a gorm tag
// Example: "column:id;primaryKey" -> "id"
func ExtractColumnFromGormTag(tag string) string {
	v, _ := ParseGormTag(tag).Get("column")
	return v
}

// ExtractColumnFromBunTag extracts the column name from a bun tag
// Example: "id,pk" -> "id"
// Example: ",pk" -> ""
func ExtractColumnFromBunTag(tag string) string {
	lower := strings.ToLower(tag)
	if strings.HasPrefix(lower, "table:") || strings.HasPrefix(lower, "rel:") ||
		strings.HasPrefix(lower, "join:") || strings.HasPrefix(lower, "m2m:") {
		return ""
	}
	return ParseBunTag(tag).Name
}

// IsBunFieldScanOnly checks if a bun tag indicates the field is scan-only
func IsBunFieldScanOnly(tag string) bool {
	return ParseBunTag(tag).Has("scanonly")
}

// IsGormFieldReadOnly checks if a gorm tag indicates the field is read-only
// Examples:
//   - "<-:false" -> true
//   - "->" -> true
//   - "<-:create" -> false
func IsGormFieldReadOnly(tag string) bool {
	parts := strings.Split(tag, ";")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "->" {
			return true
		}
		if value, found := strings.CutPrefix(part, "<-:"); found && value == "false" {
			return true
		}
	}
	return false
}

// StructFields returns the exported fields of typ, flattening embedded
// structs the way both ORMs do. bun.BaseModel and gorm.Model style embeds
// are walked like any other anonymous struct.
func StructFields(typ reflect.Type) []reflect.StructField {
	typ = IndirectType(typ)
	if typ.Kind() != reflect.Struct {
		return nil
	}
	var out []reflect.StructField
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Anonymous {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				for _, inner := range StructFields(ft) {
					inner.Index = append([]int{i}, inner.Index...)
					out = append(out, inner)
				}
			}
			continue
		}
		if !field.IsExported() {
			continue
		}
		out = append(out, field)
	}
	return out
}

// FindTableTag returns the table option of the bun tag on an embedded
// bun.BaseModel, if any.
func FindTableTag(typ reflect.Type) (table string, alias string) {
	typ = IndirectType(typ)
	if typ.Kind() != reflect.Struct {
		return "", ""
	}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.Anonymous {
			continue
		}
		tag := ParseBunTag(field.Tag.Get("bun"))
		if name, ok := tag.Options["table"]; ok {
			return name, tag.Options["alias"]
		}
	}
	return "", ""
}

// FieldValue returns the addressable field value at index on a struct or
// struct pointer, allocating nil embedded pointers along the way.
func FieldValue(v reflect.Value, index []int) (reflect.Value, error) {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("nil pointer")
		}
		v = v.Elem()
	}
	for i, idx := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, fmt.Errorf("cannot allocate embedded pointer")
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("expected struct, got %s", v.Kind())
		}
		v = v.Field(idx)
	}
	return v, nil
}

// Indirect derefences pointers until a non-pointer value, returning the zero
// Value for a nil pointer.
func Indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// IsZeroValue reports whether v is unset: an invalid value, a nil pointer,
// or the zero value of its type.
func IsZeroValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	}
	return v.IsZero()
}

func splitOutsideParens(s string, sep rune) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
