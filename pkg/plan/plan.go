// Package plan compiles wire-format query parameters into an immutable
// request Plan: predicate buckets, includes, projection, ordering and
// paging, plus the decision between the flat and the object graph engine.
package plan

import (
	"strconv"
	"strings"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
	"github.com/bitechdev/SimplifySpec/pkg/naming"
)

// Query parameter names.
const (
	ParamFilters        = "filters"
	ParamInclude        = "include"
	ParamFields         = "fields"
	ParamOrderBy        = "orderBy"
	ParamPage           = "page"
	ParamPageSize       = "pageSize"
	ParamCountOnly      = "countOnly"
	ParamNoCount        = "noCount"
	ParamDistinct       = "distinct"
	ParamLinks          = "links"
	ParamMeta           = "meta"
	ParamDeleteLinkOnly = "deleteLinkOnly"
)

// Include is one requested relation path in storage convention.
type Include struct {
	// Path is the dotted storage path, e.g. "child_one.nested_child".
	Path     string
	Segments []string
	// Chain holds the resolved field of every segment. It is nil when the
	// path does not resolve through the entity metadata.
	Chain []*metadata.Field
}

// Depth returns the number of segments.
func (i Include) Depth() int {
	return len(i.Segments)
}

// Resolved reports whether every segment resolved.
func (i Include) Resolved() bool {
	return i.Chain != nil
}

// Relation returns the first segment's field when it is a relation.
func (i Include) Relation() *metadata.Field {
	if len(i.Chain) == 0 || !i.Chain[0].IsRelation() {
		return nil
	}
	return i.Chain[0]
}

// Order is one ORDER BY term.
type Order struct {
	Field *metadata.Field
	Desc  bool
}

// Column returns the stored column the term sorts on.
func (o Order) Column() string {
	return o.Field.Column
}

// Plan is the compiled form of one list or detail request.
type Plan struct {
	Entity *metadata.EntityType

	Inclusive  []Predicate
	Exclusive  []Predicate
	Isolated   []Predicate
	Properties []Predicate

	Includes        []Include
	Fields          []string
	RequestedFields []string
	OrderBy         []Order
	Ordered         bool

	Page      int
	PageSize  int
	Paginated bool
	CountOnly bool
	NoCount   bool
	Distinct  bool

	Simple       bool
	SimpleReason string
}

// Offset returns the zero-based row offset of the page.
func (p *Plan) Offset() int {
	if !p.Paginated {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// WantsCount reports whether a total count has to be computed.
func (p *Plan) WantsCount() bool {
	return p.CountOnly || (p.Paginated && !p.NoCount)
}

// Enveloped reports whether the response carries {count, data}.
func (p *Plan) Enveloped() bool {
	return p.CountOnly || p.Paginated
}

// IncludePaths returns the dotted paths of every include.
func (p *Plan) IncludePaths() []string {
	out := make([]string, 0, len(p.Includes))
	for _, inc := range p.Includes {
		out = append(out, inc.Path)
	}
	return out
}

// HasInclude reports whether path, dotted or double-underscored, is
// included.
func (p *Plan) HasInclude(path string) bool {
	key := strings.Join(splitPath(path), ".")
	for _, inc := range p.Includes {
		if inc.Path == key {
			return true
		}
	}
	return false
}

// Compile builds the plan for et from raw query parameters in wire
// convention.
func Compile(et *metadata.EntityType, params map[string]string) (*Plan, error) {
	p := &Plan{Entity: et, Simple: true}

	p.compileIncludes(params[ParamInclude])
	p.compileFields(params[ParamFields])
	if err := p.compileFilters(params[ParamFilters]); err != nil {
		return nil, err
	}
	p.compileOrder(params[ParamOrderBy])
	if err := p.compilePaging(params); err != nil {
		return nil, err
	}
	p.Distinct = Flag(params[ParamDistinct])
	return p, nil
}

func (p *Plan) notSimple(reason string) {
	if p.Simple {
		p.Simple = false
		p.SimpleReason = reason
	}
}

func (p *Plan) compileIncludes(raw string) {
	if raw == "" {
		return
	}
	allowed := map[string]bool{}
	for _, path := range p.Entity.IncludablePaths() {
		allowed[strings.Join(splitPath(path), ".")] = true
	}
	seen := map[string]bool{}
	for _, token := range strings.Split(raw, ",") {
		segments := splitPath(token)
		if len(segments) == 0 {
			continue
		}
		path := strings.Join(segments, ".")
		if !allowed[path] || seen[path] {
			continue
		}
		seen[path] = true

		inc := Include{Path: path, Segments: segments}
		chain, err := resolvePath(p.Entity, segments)
		switch {
		case err != nil:
			p.notSimple("include " + path + " does not resolve")
		case len(segments) > 1:
			inc.Chain = chain
			p.notSimple("include " + path + " is nested")
		case !chain[0].IsRelation():
			inc.Chain = chain
			p.notSimple("include " + path + " is not a relation")
		default:
			inc.Chain = chain
		}
		p.Includes = append(p.Includes, inc)
	}
}

func (p *Plan) compileFields(raw string) {
	var requested []string
	if raw != "" {
		for _, token := range strings.Split(raw, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			name := naming.ToStorageName(token)
			_, isField := p.Entity.Field(name)
			_, isColumn := p.Entity.FieldByColumn(name)
			if isField || isColumn || p.HasInclude(name) {
				requested = append(requested, name)
			}
		}
	}
	p.RequestedFields = requested

	if len(requested) > 0 {
		pk := p.Entity.PrimaryKey()
		hasPK := false
		for _, name := range requested {
			if name == pk.Name || name == pk.Column {
				hasPK = true
				break
			}
		}
		if !hasPK {
			p.notSimple("requested fields omit the primary key")
		}
		p.Fields = p.projectable(requested)
		return
	}
	p.Fields = p.projectable(p.Entity.ConcreteColumns())
}

// projectable keeps names the flat engine can select, mapping forward
// relation names to their id column and dropping excluded names.
func (p *Plan) projectable(names []string) []string {
	out := make([]string, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		if p.Entity.IsExcluded(name) {
			continue
		}
		f, ok := p.Entity.Field(name)
		if !ok {
			f, ok = p.Entity.FieldByColumn(name)
		}
		if !ok {
			continue
		}
		var key string
		switch {
		case f.IsForward():
			key = f.Column
		case f.Relation == metadata.RelManyToMany:
			key = f.Name
		case f.IsRelation():
			continue
		default:
			key = f.Column
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

func (p *Plan) compileOrder(raw string) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		desc := false
		if strings.HasPrefix(raw, "-") {
			desc = true
			raw = raw[1:]
		}
		name := naming.ToStorageName(raw)
		f, ok := p.Entity.Field(name)
		if !ok {
			f, ok = p.Entity.FieldByColumn(name)
		}
		if ok && f.IsConcrete() && (f.IsForward() || !f.IsRelation()) {
			p.OrderBy = append(p.OrderBy, Order{Field: f, Desc: desc})
			p.Ordered = true
		}
	}
	pk := p.Entity.PrimaryKey()
	if len(p.OrderBy) == 0 || p.OrderBy[0].Field != pk {
		p.OrderBy = append(p.OrderBy, Order{Field: pk})
	}
}

func (p *Plan) compilePaging(params map[string]string) error {
	page, hasPage, err := intParam(params, ParamPage)
	if err != nil {
		return err
	}
	size, hasSize, err := intParam(params, ParamPageSize)
	if err != nil {
		return err
	}
	if hasPage && page < 1 {
		return common.NewParseError("page must be a positive integer")
	}
	if hasSize && size < 0 {
		return common.NewParseError("pageSize must not be negative")
	}
	p.CountOnly = Flag(params[ParamCountOnly]) || (hasSize && size == 0)
	p.NoCount = Flag(params[ParamNoCount])
	if hasPage && hasSize && size > 0 {
		p.Page = page
		p.PageSize = size
		p.Paginated = true
	}
	return nil
}

func intParam(params map[string]string, key string) (int, bool, error) {
	raw, ok := params[key]
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, &common.ParseError{Message: "could not parse " + key, Err: err}
	}
	return n, true, nil
}

// Flag reads a presence flag. Any value except false and 0 turns it on.
func Flag(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	switch strings.ToLower(raw) {
	case "false", "0":
		return false
	}
	return true
}

// splitPath splits an include or filter path on "." or "__" and converts
// every segment to storage convention.
func splitPath(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, ".", "__")
	parts := strings.Split(raw, "__")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = naming.ToStorageName(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolvePath resolves every segment to a field, following relations.
func resolvePath(et *metadata.EntityType, segments []string) ([]*metadata.Field, error) {
	chain := make([]*metadata.Field, 0, len(segments))
	current := et
	for i, seg := range segments {
		if current == nil {
			return nil, &common.UnsupportedConfigurationError{Subject: "path " + strings.Join(segments, ".")}
		}
		f, ok := current.Field(seg)
		if !ok {
			f, ok = current.FieldByColumn(seg)
		}
		if !ok {
			return nil, &common.UnsupportedConfigurationError{Subject: "path " + strings.Join(segments[:i+1], ".")}
		}
		chain = append(chain, f)
		if f.IsRelation() {
			related, err := current.Related(f)
			if err != nil {
				return nil, err
			}
			current = related
		} else {
			current = nil
		}
	}
	return chain, nil
}
