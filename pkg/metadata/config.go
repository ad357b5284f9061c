package metadata

import "time"

// FilterType is the declared value type of a filter.
type FilterType string

const (
	FilterString   FilterType = "string"
	FilterBool     FilterType = "bool"
	FilterInt      FilterType = "int"
	FilterFloat    FilterType = "float"
	FilterDecimal  FilterType = "decimal"
	FilterDateTime FilterType = "datetime"
)

// FilterSpec declares one accepted filter name.
type FilterSpec struct {
	ValueType          FilterType
	IsList             bool
	IsComputedProperty bool
}

// FilterableProperty is a boolean SQL expression evaluated against the base
// table alias "t". An optional '?' in Expr is bound to the filter value.
type FilterableProperty struct {
	Expr string
}

// RequestField copies a value from the request context into an empty field
// while parsing.
type RequestField struct {
	ContextKey string
	Field      string
}

// EntityConfig is the declarative per-entity policy. Every field defaults
// to empty.
type EntityConfig struct {
	Excludes             []string
	IncludablePaths      []string
	Filters              map[string]FilterSpec
	FilterableProperties map[string]FilterableProperty
	CacheTTL             time.Duration
	ParseableRelations   []string
	MaxDepth             int
	RequestFieldsToSave  []RequestField
	ResourceMapping      map[string]string
}

func (c EntityConfig) normalized() EntityConfig {
	if c.Filters == nil {
		c.Filters = map[string]FilterSpec{}
	}
	if c.FilterableProperties == nil {
		c.FilterableProperties = map[string]FilterableProperty{}
	}
	if c.ResourceMapping == nil {
		c.ResourceMapping = map[string]string{}
	}
	if c.Excludes == nil {
		c.Excludes = []string{}
	}
	if c.IncludablePaths == nil {
		c.IncludablePaths = []string{}
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 1
	}
	return c
}
