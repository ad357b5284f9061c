package metadata

import (
	"reflect"
	"sort"
)

// SemanticType is the value category of a field.
type SemanticType string

const (
	TypeBoolean   SemanticType = "boolean"
	TypeInteger   SemanticType = "integer"
	TypeFloat     SemanticType = "float"
	TypeDecimal   SemanticType = "decimal"
	TypeString    SemanticType = "string"
	TypeDateTime  SemanticType = "datetime"
	TypeBinary    SemanticType = "binary"
	TypeEncrypted SemanticType = "encrypted-string"
	TypeJSON      SemanticType = "opaque-json"
	TypeRelation  SemanticType = "relation"
)

// RelationKind is the relationship a field has with another entity.
type RelationKind string

const (
	RelNone             RelationKind = "none"
	RelForeignKey       RelationKind = "foreign-key"
	RelOneToOne         RelationKind = "one-to-one"
	RelManyToMany       RelationKind = "many-to-many"
	RelReverseOneToMany RelationKind = "reverse-one-to-many"
)

// Field describes one persisted field or relation of an entity.
//
// Name is the storage name. For a forward reference it is the relation name
// ("child_one") and Column holds the shadow column ("child_one_id"). Index
// addresses the Go struct field holding the value, or the related object for
// relations; ColumnIndex addresses the id field of a forward reference.
//
// RelatedColumn is the referenced column: on the related table for a forward
// reference, on this table for a reverse relation. RemoteColumn is the key
// column on the related table of a reverse relation. Reverse marks relations
// whose key lives on the related table. Scale is the declared number of
// decimal places, -1 when unknown.
type Field struct {
	Name   string
	Column string
	GoName string

	Index       []int
	ColumnIndex []int
	GoType      reflect.Type

	Type          SemanticType
	Relation      RelationKind
	PrimaryKey    bool
	AutoIncrement bool
	Multiple      bool
	Reverse       bool
	AutoCreated   bool
	Nullable      bool
	ReadOnly      bool
	Unique        bool
	Scale         int
	Choices       []string

	RelatedGoType     reflect.Type
	RelatedColumn     string
	RemoteColumn      string
	JoinTable         string
	JoinOwnColumn     string
	JoinRelatedColumn string
}

// IsRelation reports whether the field references another entity.
func (f *Field) IsRelation() bool {
	return f.Relation != RelNone
}

// IsForward reports whether the field is a foreign key or one-to-one
// reference stored on this entity's table.
func (f *Field) IsForward() bool {
	return (f.Relation == RelForeignKey || f.Relation == RelOneToOne) && !f.Reverse
}

// IsConcrete reports whether the field maps to a column of this entity's
// table, including forward references through their shadow column.
func (f *Field) IsConcrete() bool {
	return f.Column != "" && !f.AutoCreated
}

// Description is the memoized field breakdown of an entity.
type Description struct {
	ForeignKeyFields []string
	DecimalFields    []string
	BinaryFields     []string
	AllFields        []string
}

// EntityType is the registered schema of one model.
type EntityType struct {
	Name   string
	Table  string
	Alias  string
	GoType reflect.Type
	Fields []*Field
	Config EntityConfig

	provider    *Provider
	byName      map[string]*Field
	byColumn    map[string]*Field
	pk          *Field
	description Description
}

// PrimaryKey returns the primary key field.
func (e *EntityType) PrimaryKey() *Field {
	return e.pk
}

// Field returns the field with the given storage name.
func (e *EntityType) Field(name string) (*Field, bool) {
	f, ok := e.byName[name]
	return f, ok
}

// FieldByColumn returns the field stored in column.
func (e *EntityType) FieldByColumn(column string) (*Field, bool) {
	f, ok := e.byColumn[column]
	return f, ok
}

// Describe returns the cached field breakdown.
func (e *EntityType) Describe() Description {
	return e.description
}

// Excludes returns the names never exposed in view models.
func (e *EntityType) Excludes() []string {
	return e.Config.Excludes
}

// IsExcluded reports whether name is excluded from view models.
func (e *EntityType) IsExcluded(name string) bool {
	for _, x := range e.Config.Excludes {
		if x == name {
			return true
		}
	}
	return false
}

// IncludablePaths returns the whitelisted include paths.
func (e *EntityType) IncludablePaths() []string {
	return e.Config.IncludablePaths
}

// Filters returns the declared filters.
func (e *EntityType) Filters() map[string]FilterSpec {
	return e.Config.Filters
}

// FilterableProperties returns the declared computed filters.
func (e *EntityType) FilterableProperties() map[string]FilterableProperty {
	return e.Config.FilterableProperties
}

// Related resolves the entity a relation field points to.
func (e *EntityType) Related(f *Field) (*EntityType, error) {
	return e.provider.Related(f)
}

// IsParseable reports whether the relation may be parsed recursively.
func (e *EntityType) IsParseable(name string) bool {
	for _, n := range e.Config.ParseableRelations {
		if n == name {
			return true
		}
	}
	return false
}

// ConcreteColumns returns the default projection: stored names of concrete
// fields plus the names of many-to-many fields, in declaration order. Forward
// references are projected by their shadow column.
func (e *EntityType) ConcreteColumns() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		switch {
		case f.IsForward():
			out = append(out, f.Column)
		case f.Relation == RelManyToMany && !f.Reverse:
			out = append(out, f.Name)
		case f.IsConcrete() && !f.IsRelation():
			out = append(out, f.Column)
		}
	}
	return out
}

// New allocates a new zero instance and returns a pointer to it.
func (e *EntityType) New() reflect.Value {
	return reflect.New(e.GoType)
}

// Meta describes the fields of the entity for client introspection.
func (e *EntityType) Meta() map[string]interface{} {
	fields := make([]map[string]interface{}, 0, len(e.Fields))
	for _, f := range e.Fields {
		entry := map[string]interface{}{
			"name": f.Name,
			"type": string(f.Type),
		}
		if f.IsRelation() {
			entry["type"] = string(f.Relation)
			if rel, err := e.Related(f); err == nil {
				entry["related_model"] = rel.Name
			}
		}
		if len(f.Choices) > 0 {
			choices := make([]interface{}, len(f.Choices))
			for i, c := range f.Choices {
				choices[i] = c
			}
			entry["choices"] = choices
		}
		fields = append(fields, entry)
	}
	return map[string]interface{}{"fields": fields}
}

func (e *EntityType) index() {
	e.byName = make(map[string]*Field, len(e.Fields))
	e.byColumn = make(map[string]*Field, len(e.Fields))
	var desc Description
	for _, f := range e.Fields {
		e.byName[f.Name] = f
		if f.Column != "" {
			e.byColumn[f.Column] = f
		}
		if f.PrimaryKey {
			e.pk = f
		}
		if f.AutoCreated || f.Relation == RelManyToMany {
			continue
		}
		desc.AllFields = append(desc.AllFields, f.Name)
		if f.IsForward() {
			desc.ForeignKeyFields = append(desc.ForeignKeyFields, f.Name)
		}
		switch f.Type {
		case TypeDecimal:
			desc.DecimalFields = append(desc.DecimalFields, f.Name)
		case TypeBinary:
			desc.BinaryFields = append(desc.BinaryFields, f.Name)
		}
	}
	sort.Strings(desc.ForeignKeyFields)
	sort.Strings(desc.DecimalFields)
	sort.Strings(desc.BinaryFields)
	e.description = desc
}
