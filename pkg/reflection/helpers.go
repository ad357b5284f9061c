package reflection

import (
	"reflect"
	"strings"
)

// BareTableName strips any schema qualifiers from a table reference and
// cuts it at the first whitespace or comma: "dbo.orders AS o" gives "orders".
func BareTableName(ref string) string {
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		ref = ref[i+1:]
	}
	if i := strings.IndexAny(ref, ", \t\n"); i >= 0 {
		ref = ref[:i]
	}
	return ref
}

// IndirectType unwraps pointers and slices until it reaches an element type.
func IndirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	return t
}
