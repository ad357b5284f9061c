package metadata

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/fields"
	"github.com/bitechdev/SimplifySpec/pkg/modelregistry"
	"github.com/bitechdev/SimplifySpec/pkg/naming"
	"github.com/bitechdev/SimplifySpec/pkg/reflection"
)

var (
	timeType        = reflect.TypeOf(time.Time{})
	decimalType     = reflect.TypeOf(decimal.Decimal{})
	nullDecimalType = reflect.TypeOf(decimal.NullDecimal{})
	encryptedType   = reflect.TypeOf(fields.EncryptedString(""))
	jsonTextType    = reflect.TypeOf(fields.JSONText(nil))
	rawMessageType  = reflect.TypeOf(json.RawMessage(nil))
	nullBoolType    = reflect.TypeOf(sql.NullBool{})
	nullIntType     = reflect.TypeOf(sql.NullInt64{})
	nullInt32Type   = reflect.TypeOf(sql.NullInt32{})
	nullInt16Type   = reflect.TypeOf(sql.NullInt16{})
	nullFloatType   = reflect.TypeOf(sql.NullFloat64{})
	nullStringType  = reflect.TypeOf(sql.NullString{})
	nullTimeType    = reflect.TypeOf(sql.NullTime{})
	scannerType     = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType      = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// Provider builds and memoizes EntityTypes. It is safe for concurrent use.
type Provider struct {
	dialect  TagDialect
	entities *modelregistry.Registry[*EntityType]
	configs  *modelregistry.Registry[EntityConfig]
}

// NewProvider creates a provider reading tags with dialect.
func NewProvider(dialect TagDialect) *Provider {
	if dialect == nil {
		dialect = AutoTags{}
	}
	return &Provider{
		dialect:  dialect,
		entities: modelregistry.New[*EntityType](),
		configs:  modelregistry.New[EntityConfig](),
	}
}

var defaultProvider = NewProvider(AutoTags{})

// Default returns the process-wide provider.
func Default() *Provider {
	return defaultProvider
}

// Register declares model with its config and builds its EntityType.
// A model can be registered once, before it is described.
func (p *Provider) Register(model any, cfg EntityConfig) (*EntityType, error) {
	typ, err := structType(model)
	if err != nil {
		return nil, err
	}
	name, _, err := p.tableOf(typ)
	if err != nil {
		return nil, err
	}
	if _, ok := p.entities.Get(name); ok {
		return nil, &common.UnsupportedConfigurationError{Subject: fmt.Sprintf("entity %s", name), Err: fmt.Errorf("already registered")}
	}
	if err := p.configs.Register(name, cfg.normalized()); err != nil {
		return nil, &common.UnsupportedConfigurationError{Subject: fmt.Sprintf("entity %s", name), Err: err}
	}
	return p.describeType(typ)
}

// Describe returns the EntityType of model, building it on first use.
// Unregistered models get an empty EntityConfig.
func (p *Provider) Describe(model any) (*EntityType, error) {
	typ, err := structType(model)
	if err != nil {
		return nil, err
	}
	return p.describeType(typ)
}

// Lookup returns the entity registered under the stable name.
func (p *Provider) Lookup(name string) (*EntityType, bool) {
	return p.entities.Get(name)
}

// All returns every described entity ordered by name.
func (p *Provider) All() []*EntityType {
	names := p.entities.Names()
	out := make([]*EntityType, 0, len(names))
	for _, n := range names {
		if e, ok := p.entities.Get(n); ok {
			out = append(out, e)
		}
	}
	return out
}

// Related resolves the related entity of a relation field.
func (p *Provider) Related(f *Field) (*EntityType, error) {
	if f == nil || f.RelatedGoType == nil {
		return nil, &common.UnsupportedConfigurationError{Subject: "relation without related type"}
	}
	return p.describeType(f.RelatedGoType)
}

// Excludes returns the excluded names of model.
func (p *Provider) Excludes(model any) ([]string, error) {
	e, err := p.Describe(model)
	if err != nil {
		return nil, err
	}
	return e.Excludes(), nil
}

// IncludablePaths returns the includable paths of model.
func (p *Provider) IncludablePaths(model any) ([]string, error) {
	e, err := p.Describe(model)
	if err != nil {
		return nil, err
	}
	return e.IncludablePaths(), nil
}

// Filters returns the declared filters of model.
func (p *Provider) Filters(model any) (map[string]FilterSpec, error) {
	e, err := p.Describe(model)
	if err != nil {
		return nil, err
	}
	return e.Filters(), nil
}

// FilterableProperties returns the computed filters of model.
func (p *Provider) FilterableProperties(model any) (map[string]FilterableProperty, error) {
	e, err := p.Describe(model)
	if err != nil {
		return nil, err
	}
	return e.FilterableProperties(), nil
}

func (p *Provider) describeType(typ reflect.Type) (*EntityType, error) {
	name, alias, err := p.tableOf(typ)
	if err != nil {
		return nil, err
	}
	e, err := p.entities.GetOrCreate(name, func() (*EntityType, error) {
		return p.build(typ, name, alias)
	})
	if err != nil {
		return nil, err
	}
	if e.GoType != typ {
		return nil, &common.UnsupportedConfigurationError{
			Subject: fmt.Sprintf("entity %s", name),
			Err:     fmt.Errorf("table already mapped by %s", e.GoType),
		}
	}
	return e, nil
}

func (p *Provider) tableOf(typ reflect.Type) (string, string, error) {
	if table, alias, ok := p.dialect.Table(typ); ok {
		return table, alias, nil
	}
	name := naming.ToStorageName(typ.Name())
	if name == "" {
		return "", "", &common.UnsupportedConfigurationError{Subject: fmt.Sprintf("model %s", typ), Err: fmt.Errorf("no table name")}
	}
	return name, name, nil
}

func (p *Provider) build(typ reflect.Type, table, alias string) (*EntityType, error) {
	cfg, ok := p.configs.Get(table)
	if !ok {
		cfg = EntityConfig{}.normalized()
	}
	e := &EntityType{
		Name:     table,
		Table:    table,
		Alias:    alias,
		GoType:   typ,
		Config:   cfg,
		provider: p,
	}

	var columns []*Field
	var relations []*Field
	for _, sf := range reflection.StructFields(typ) {
		if rel, ok := p.dialect.Relation(typ, sf); ok {
			relations = append(relations, relationField(sf, rel))
			continue
		}
		info, ok := p.dialect.Column(typ, sf)
		if !ok {
			continue
		}
		columns = append(columns, columnField(sf, info))
	}

	// Forward references absorb their shadow id column.
	claimed := map[string]*Field{}
	for _, r := range relations {
		if r.IsForward() {
			claimed[r.Column] = r
		}
	}
	for _, c := range columns {
		if r, ok := claimed[c.Column]; ok {
			r.ColumnIndex = c.Index
			r.Nullable = c.Nullable
			r.Unique = c.Unique
			if r.Unique {
				r.Relation = RelOneToOne
			}
			// Keep declaration order of the id column.
			e.Fields = append(e.Fields, r)
			continue
		}
		e.Fields = append(e.Fields, c)
	}
	for _, r := range relations {
		if r.IsForward() {
			if r.ColumnIndex == nil {
				return nil, &common.UnsupportedConfigurationError{
					Subject: fmt.Sprintf("relation %s.%s", table, r.Name),
					Err:     fmt.Errorf("column %s is not declared", r.Column),
				}
			}
			continue
		}
		e.Fields = append(e.Fields, r)
	}

	pks := 0
	for _, f := range e.Fields {
		if f.PrimaryKey {
			pks++
		}
	}
	if pks != 1 {
		return nil, &common.UnsupportedConfigurationError{
			Subject: fmt.Sprintf("entity %s", table),
			Err:     fmt.Errorf("expected exactly one primary key, found %d", pks),
		}
	}
	e.index()
	return e, nil
}

func columnField(sf reflect.StructField, info ColumnInfo) *Field {
	return &Field{
		Name:          info.Column,
		Column:        info.Column,
		GoName:        sf.Name,
		Index:         sf.Index,
		GoType:        sf.Type,
		Type:          semanticType(sf.Type),
		Relation:      RelNone,
		PrimaryKey:    info.PrimaryKey,
		AutoIncrement: info.AutoIncrement,
		Nullable:      isNullable(sf.Type) && !info.NotNull,
		ReadOnly:      info.ReadOnly,
		Unique:        info.Unique,
		Scale:         info.Scale,
		Choices:       choicesOf(sf),
	}
}

func relationField(sf reflect.StructField, rel RelationInfo) *Field {
	f := &Field{
		Name:          naming.ToStorageName(sf.Name),
		GoName:        sf.Name,
		Index:         sf.Index,
		GoType:        sf.Type,
		Type:          TypeRelation,
		RelatedGoType: elemStruct(sf.Type),
		Scale:         -1,
	}
	switch rel.Kind {
	case tagBelongsTo:
		f.Relation = RelForeignKey
		f.Column = rel.OwnColumn
		f.RelatedColumn = rel.RelatedColumn
	case tagHasOne:
		f.Relation = RelOneToOne
		f.Reverse = true
		f.AutoCreated = true
		f.RemoteColumn = rel.RelatedColumn
		f.RelatedColumn = rel.OwnColumn
	case tagHasMany:
		f.Relation = RelReverseOneToMany
		f.Reverse = true
		f.AutoCreated = true
		f.Multiple = true
		f.RemoteColumn = rel.RelatedColumn
		f.RelatedColumn = rel.OwnColumn
	case tagManyToMany:
		f.Relation = RelManyToMany
		f.Multiple = true
		f.JoinTable = rel.JoinTable
		f.JoinOwnColumn = rel.JoinOwnColumn
		f.JoinRelatedColumn = rel.JoinRelatedColumn
	}
	return f
}

func semanticType(t reflect.Type) SemanticType {
	switch t {
	case encryptedType, reflect.PointerTo(encryptedType):
		return TypeEncrypted
	case jsonTextType, rawMessageType:
		return TypeJSON
	case decimalType, nullDecimalType, reflect.PointerTo(decimalType):
		return TypeDecimal
	case timeType, nullTimeType, reflect.PointerTo(timeType):
		return TypeDateTime
	case nullBoolType:
		return TypeBoolean
	case nullIntType, nullInt32Type, nullInt16Type:
		return TypeInteger
	case nullFloatType:
		return TypeFloat
	case nullStringType:
		return TypeString
	}
	if t.Kind() == reflect.Ptr {
		return semanticType(t.Elem())
	}
	switch t.Kind() {
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.String:
		return TypeString
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return TypeBinary
		}
	}
	return TypeJSON
}

func isNullable(t reflect.Type) bool {
	switch t {
	case nullBoolType, nullIntType, nullInt32Type, nullInt16Type, nullFloatType,
		nullStringType, nullTimeType, nullDecimalType:
		return true
	}
	switch t.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}

func choicesOf(sf reflect.StructField) []string {
	for _, rule := range strings.Split(sf.Tag.Get("validate"), ",") {
		if values, ok := strings.CutPrefix(rule, "oneof="); ok {
			return strings.Fields(values)
		}
	}
	return nil
}

// elemStruct returns the struct type behind pointers and slices, or nil.
func elemStruct(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice {
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

// isRelationType reports whether values of t are related entities rather
// than column values.
func isRelationType(t reflect.Type) bool {
	elem := elemStruct(t)
	if elem == nil {
		return false
	}
	switch elem {
	case timeType, decimalType, nullDecimalType:
		return false
	}
	ptr := reflect.PointerTo(elem)
	if elem.Implements(scannerType) || ptr.Implements(scannerType) ||
		elem.Implements(valuerType) || ptr.Implements(valuerType) {
		return false
	}
	return true
}

func structType(model any) (reflect.Type, error) {
	var typ reflect.Type
	switch m := model.(type) {
	case nil:
		return nil, &common.UnsupportedConfigurationError{Subject: "nil model"}
	case reflect.Type:
		typ = m
	default:
		typ = reflect.TypeOf(model)
	}
	for typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Slice {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, &common.UnsupportedConfigurationError{Subject: fmt.Sprintf("model %s", typ), Err: fmt.Errorf("not a struct")}
	}
	return typ, nil
}
