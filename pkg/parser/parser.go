// Package parser turns request payloads into entity graphs ready for a
// cascading save. Payload keys may be wire (camel case) or storage names.
package parser

import (
	"context"
	"encoding/base64"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/dialect"
	"github.com/bitechdev/SimplifySpec/pkg/engine"
	"github.com/bitechdev/SimplifySpec/pkg/logger"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
	"github.com/bitechdev/SimplifySpec/pkg/naming"
	"github.com/bitechdev/SimplifySpec/pkg/reflection"
	"github.com/bitechdev/SimplifySpec/pkg/tracing"
)

// Graph is a parsed entity plus the nested entities that must be saved
// before it.
type Graph struct {
	Type *metadata.EntityType
	// Entity is a pointer to the populated struct.
	Entity reflect.Value
	// Pending names the relations parsed recursively, in field order.
	Pending []string
	Nested  map[string]*Graph
	// Encrypted names fields left to the field codec.
	Encrypted []string
	IsNew     bool
}

// Model returns the struct pointer held by the graph.
func (g *Graph) Model() interface{} {
	return g.Entity.Interface()
}

// Attach re-links the nested graph saved under relation name, copying its
// key into the shadow id column.
func (g *Graph) Attach(name string) error {
	child, ok := g.Nested[name]
	if !ok {
		return fmt.Errorf("%s has no nested %s", g.Type.Name, name)
	}
	f, ok := g.Type.Field(name)
	if !ok || !f.IsForward() {
		return fmt.Errorf("%s is not a forward relation of %s", name, g.Type.Name)
	}
	return link(g.Entity, f, child.Type, child.Entity)
}

// Options tunes one Parse call.
type Options struct {
	// ExistingID loads the stored row and updates it instead of creating a
	// new entity.
	ExistingID interface{}
	// ReferenceFields maps forward relation names to ids taken from the URL.
	ReferenceFields map[string]interface{}
	// MaxDepth bounds recursive parsing. Zero uses the entity's MaxDepth.
	MaxDepth int
	// Depth is the current nesting level. Zero means the root level.
	Depth   int
	Request *common.RequestContext
}

// Parser parses payloads for entities stored in one database.
type Parser struct {
	db       common.Database
	strategy dialect.Strategy
	validate *validator.Validate
}

// New creates a parser reading referenced rows from db.
func New(db common.Database, s dialect.Strategy) *Parser {
	return &Parser{db: db, strategy: s, validate: validator.New()}
}

// Parse builds a graph for et from payload.
func (p *Parser) Parse(ctx context.Context, et *metadata.EntityType, payload interface{}, opts Options) (g *Graph, err error) {
	ctx, span := tracing.StartSpan(ctx, "parser.parse", attribute.String("entity", nameOf(et)))
	defer func() { tracing.EndSpan(span, err) }()
	if opts.Depth <= 0 {
		opts.Depth = 1
	}
	return p.parse(ctx, et, payload, opts)
}

func (p *Parser) parse(ctx context.Context, et *metadata.EntityType, payload interface{}, opts Options) (*Graph, error) {
	data, ok := asMapping(payload)
	if !ok {
		return nil, common.NewParseError("no data or data is not a mapping")
	}
	if et == nil || et.PrimaryKey() == nil || len(et.Fields) == 0 {
		return nil, common.NewParseError("field info missing for %s", nameOf(et))
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = et.Config.MaxDepth
	}

	g := &Graph{Type: et, Nested: map[string]*Graph{}}
	if hasKey(opts.ExistingID) {
		obj, err := p.load(ctx, et, et.PrimaryKey(), et.PrimaryKey().Column, opts.ExistingID)
		if err != nil {
			return nil, err
		}
		if !obj.IsValid() {
			return nil, common.NewParseError("update with non-existent id")
		}
		g.Entity = obj
	} else {
		g.Entity = et.New()
		g.IsNew = true
	}

	for _, f := range et.Fields {
		if skip(f) {
			continue
		}
		value, present := lookup(data, naming.ToWireName(f.Name), f.Name)

		if f.IsForward() {
			if err := p.parseReference(ctx, g, f, data, value, opts, maxDepth); err != nil {
				return nil, err
			}
			continue
		}
		if !present {
			continue
		}
		if err := p.setPlain(g, f, value); err != nil {
			return nil, err
		}
	}

	if err := saveRequestFields(g, opts.Request); err != nil {
		return nil, err
	}
	if err := p.check(g); err != nil {
		return nil, err
	}
	logger.Debug("Parsed %s (new=%t, pending=%v)", et.Name, g.IsNew, g.Pending)
	return g, nil
}

// skip reports fields that are never set from a payload.
func skip(f *metadata.Field) bool {
	switch {
	case f.PrimaryKey && (f.AutoIncrement || f.Name == "id"):
		return true
	case f.ReadOnly:
		return true
	case f.IsRelation() && !f.IsForward():
		return true
	}
	return f.Column == "" && !f.IsRelation()
}

func (p *Parser) parseReference(ctx context.Context, g *Graph, f *metadata.Field, data map[string]interface{}, value interface{}, opts Options, maxDepth int) error {
	et := g.Type
	related, err := et.Related(f)
	if err != nil {
		return err
	}

	if id, ok := opts.ReferenceFields[f.Name]; ok {
		column := f.RelatedColumn
		if column == "" {
			column = related.PrimaryKey().Column
		}
		keyField := related.PrimaryKey()
		if kf, ok := related.FieldByColumn(column); ok {
			keyField = kf
		}
		obj, err := p.load(ctx, related, keyField, column, id)
		if err != nil {
			return err
		}
		if !obj.IsValid() {
			return common.NewParseError("related item does not exist: %s", f.Name)
		}
		return link(g.Entity, f, related, obj)
	}

	idKey := f.Name + "_id"
	if id, ok := lookup(data, naming.ToWireName(idKey), idKey); ok {
		if err := setColumn(g.Entity, f, id); err != nil {
			return invalidValue(idKey, err)
		}
		return nil
	}

	if !et.IsParseable(f.Name) {
		return nil
	}
	nested, isMapping := asMapping(value)
	if !isMapping {
		return nil
	}
	if opts.Depth > maxDepth {
		return common.NewParseError("nested too deep: %s", f.Name)
	}
	pk := related.PrimaryKey()
	nestedID, _ := lookup(nested, naming.ToWireName(pk.Name), pk.Name)
	child, err := p.parse(ctx, related, nested, Options{
		ExistingID: nestedID,
		MaxDepth:   opts.MaxDepth,
		Depth:      opts.Depth + 1,
		Request:    opts.Request,
	})
	if err != nil {
		return common.WrapParseError(f.Name, err)
	}
	fv, err := reflection.FieldValue(g.Entity, f.Index)
	if err != nil {
		return err
	}
	setObject(fv, child.Entity)
	g.Pending = append(g.Pending, f.Name)
	g.Nested[f.Name] = child
	return nil
}

func (p *Parser) setPlain(g *Graph, f *metadata.Field, value interface{}) error {
	var err error
	if truthy(value) {
		switch f.Type {
		case metadata.TypeDateTime:
			if value, err = cast.ToTimeE(value); err != nil {
				return common.NewParseError("could not parse date field %s", f.Name)
			}
		case metadata.TypeBinary:
			if value, err = decodeBinary(value); err != nil {
				return common.NewParseError("could not parse binary field %s", f.Name)
			}
		case metadata.TypeEncrypted:
			g.Encrypted = append(g.Encrypted, f.Name)
		case metadata.TypeDecimal:
			d, err := toDecimal(value)
			if err != nil {
				return common.NewParseError("could not parse decimal field %s", f.Name)
			}
			if f.Scale >= 0 {
				d = d.Round(int32(f.Scale))
			}
			value = d
		}
	}
	fv, err := reflection.FieldValue(g.Entity, f.Index)
	if err != nil {
		return err
	}
	if err := assign(fv, value); err != nil {
		return invalidValue(f.Name, err)
	}
	return nil
}

// load returns the entity of et whose column equals key, or the zero Value.
func (p *Parser) load(ctx context.Context, et *metadata.EntityType, keyField *metadata.Field, column string, key interface{}) (reflect.Value, error) {
	k, err := coerceKey(keyField, key)
	if err != nil {
		return reflect.Value{}, common.NewParseError("invalid key for %s: %v", et.Name, key)
	}
	found, err := engine.LoadByKeys(ctx, p.db, p.strategy, et, column, []interface{}{k})
	if err != nil {
		return reflect.Value{}, err
	}
	if len(found) == 0 {
		return reflect.Value{}, nil
	}
	return found[0], nil
}

func coerceKey(f *metadata.Field, key interface{}) (interface{}, error) {
	switch f.Type {
	case metadata.TypeInteger:
		return cast.ToInt64E(key)
	case metadata.TypeString:
		return cast.ToStringE(key)
	}
	return key, nil
}

func saveRequestFields(g *Graph, rc *common.RequestContext) error {
	if rc == nil {
		return nil
	}
	for _, rf := range g.Type.Config.RequestFieldsToSave {
		f, ok := g.Type.Field(rf.Field)
		if !ok {
			return fmt.Errorf("request field %s is not a field of %s", rf.Field, g.Type.Name)
		}
		if rc.Anonymous && strings.EqualFold(rf.ContextKey, "user") {
			continue
		}
		val, ok := rc.Lookup(rf.ContextKey)
		if !ok {
			continue
		}
		fv, err := reflection.FieldValue(g.Entity, f.Index)
		if err != nil {
			return err
		}
		if !reflection.IsZeroValue(fv) {
			continue
		}
		if err := assign(fv, val); err != nil {
			return invalidValue(f.Name, err)
		}
	}
	return nil
}

// check validates the entity, skipping the primary key, pending relations
// and encrypted fields.
func (p *Parser) check(g *Graph) error {
	et := g.Type
	except := []string{et.PrimaryKey().GoName}
	for _, name := range append(append([]string{}, g.Pending...), g.Encrypted...) {
		f, _ := et.Field(name)
		except = append(except, f.GoName)
		if f.IsForward() && len(f.ColumnIndex) > 0 {
			except = append(except, et.GoType.FieldByIndex(f.ColumnIndex).Name)
		}
	}

	err := p.validate.StructExcept(g.Model(), except...)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate %s: %w", et.Name, err)
	}
	pe := &common.ParseError{Message: "validation failed for " + et.Name, Fields: map[string]string{}}
	for _, fe := range verrs {
		pe.Fields[fieldPath(et, fe.StructNamespace())] = message(fe)
	}
	return pe
}

// fieldPath converts a validator namespace such as "Order.Customer.Name"
// into storage names ("customer.name").
func fieldPath(et *metadata.EntityType, ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	out := make([]string, len(parts))
	for i, part := range parts {
		out[i] = naming.ToStorageName(part)
		if i == 0 {
			if f := fieldByGoName(et, part); f != nil {
				out[i] = f.Name
			}
		}
	}
	return strings.Join(out, ".")
}

func fieldByGoName(et *metadata.EntityType, name string) *metadata.Field {
	for _, f := range et.Fields {
		if f.GoName == name {
			return f
		}
		if f.IsForward() && len(f.ColumnIndex) > 0 && et.GoType.FieldByIndex(f.ColumnIndex).Name == name {
			return f
		}
	}
	return nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "oneof":
		return fmt.Sprintf("Value %v is not a valid choice.", fe.Value())
	}
	return fmt.Sprintf("Failed on the %s rule.", fe.Tag())
}

func invalidValue(name string, err error) error {
	return &common.ParseError{
		Message: "invalid value for field " + name,
		Fields:  map[string]string{name: err.Error()},
		Err:     err,
	}
}

func decodeBinary(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return base64.StdEncoding.DecodeString(t)
	}
	return nil, fmt.Errorf("unsupported binary value %T", v)
}

func nameOf(et *metadata.EntityType) string {
	if et == nil {
		return "<nil>"
	}
	return et.Name
}
