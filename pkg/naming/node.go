package naming

// Node is a value in a payload tree: a Scalar, a Mapping or a Sequence.
type Node interface {
	// Value returns the plain Go value for the node.
	Value() interface{}
	isNode()
}

// Scalar is a leaf value. Its content is never rewritten.
type Scalar struct {
	V interface{}
}

// Mapping is a keyed container whose keys are field names.
type Mapping map[string]Node

// Sequence is an ordered container.
type Sequence []Node

func (Scalar) isNode()   {}
func (Mapping) isNode()  {}
func (Sequence) isNode() {}

func (s Scalar) Value() interface{} { return s.V }

func (m Mapping) Value() interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v.Value()
	}
	return out
}

func (s Sequence) Value() interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v.Value()
	}
	return out
}

// FromValue builds a Node tree from decoded JSON-like data. Maps keyed by
// string become Mappings, slices of maps or interfaces become Sequences and
// everything else is a Scalar.
func FromValue(v interface{}) Node {
	switch t := v.(type) {
	case Node:
		return t
	case map[string]interface{}:
		m := make(Mapping, len(t))
		for k, val := range t {
			m[k] = FromValue(val)
		}
		return m
	case []map[string]interface{}:
		s := make(Sequence, len(t))
		for i, val := range t {
			s[i] = FromValue(val)
		}
		return s
	case []interface{}:
		s := make(Sequence, len(t))
		for i, val := range t {
			s[i] = FromValue(val)
		}
		return s
	default:
		return Scalar{V: v}
	}
}

// Rename rewrites every Mapping key in the tree with fn and leaves scalars
// untouched.
func Rename(n Node, fn func(string) string) Node {
	switch t := n.(type) {
	case Mapping:
		out := make(Mapping, len(t))
		for k, v := range t {
			out[fn(k)] = Rename(v, fn)
		}
		return out
	case Sequence:
		out := make(Sequence, len(t))
		for i, v := range t {
			out[i] = Rename(v, fn)
		}
		return out
	default:
		return n
	}
}

// ToWire converts every key in the tree from storage to wire convention.
func ToWire(n Node) Node { return Rename(n, ToWireName) }

// ToStorage converts every key in the tree from wire to storage convention.
func ToStorage(n Node) Node { return Rename(n, ToStorageName) }

// TitleToWire converts every title-case key in the tree to wire convention.
func TitleToWire(n Node) Node { return Rename(n, TitleCaseToWire) }

// WireKeys is ToWire over plain Go values.
func WireKeys(v interface{}) interface{} {
	return ToWire(FromValue(v)).Value()
}

// StorageKeys is ToStorage over plain Go values.
func StorageKeys(v interface{}) interface{} {
	return ToStorage(FromValue(v)).Value()
}

// TitleWireKeys is TitleToWire over plain Go values.
func TitleWireKeys(v interface{}) interface{} {
	return TitleToWire(FromValue(v)).Value()
}
