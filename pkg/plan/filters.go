package plan

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
)

// Lookup is the comparison a filter applies, named after its "__" suffix.
type Lookup string

const (
	LookupExact        Lookup = "exact"
	LookupIExact       Lookup = "iexact"
	LookupContains     Lookup = "contains"
	LookupIContains    Lookup = "icontains"
	LookupIn           Lookup = "in"
	LookupGT           Lookup = "gt"
	LookupGTE          Lookup = "gte"
	LookupLT           Lookup = "lt"
	LookupLTE          Lookup = "lte"
	LookupStartsWith   Lookup = "startswith"
	LookupIStartsWith  Lookup = "istartswith"
	LookupEndsWith     Lookup = "endswith"
	LookupIEndsWith    Lookup = "iendswith"
	LookupIsNull       Lookup = "isnull"
	LookupRevIContains Lookup = "revicontains"
	LookupContainsAll  Lookup = "contains_all"
)

var lookups = map[string]Lookup{
	string(LookupExact):        LookupExact,
	string(LookupIExact):       LookupIExact,
	string(LookupContains):     LookupContains,
	string(LookupIContains):    LookupIContains,
	string(LookupIn):           LookupIn,
	string(LookupGT):           LookupGT,
	string(LookupGTE):          LookupGTE,
	string(LookupLT):           LookupLT,
	string(LookupLTE):          LookupLTE,
	string(LookupStartsWith):   LookupStartsWith,
	string(LookupIStartsWith):  LookupIStartsWith,
	string(LookupEndsWith):     LookupEndsWith,
	string(LookupIEndsWith):    LookupIEndsWith,
	string(LookupIsNull):       LookupIsNull,
	string(LookupRevIContains): LookupRevIContains,
	string(LookupContainsAll):  LookupContainsAll,
}

// Predicate is one compiled filter condition.
type Predicate struct {
	// Name is the declared filter name in storage convention.
	Name string
	// Path is the field chain the filter walks; the last field is compared.
	// It is empty for computed properties.
	Path   []*metadata.Field
	Lookup Lookup
	// Value is the coerced value, a []interface{} for list lookups and nil
	// for a missing value.
	Value interface{}
	// Expr is the SQL of a computed property.
	Expr string
}

// Computed reports whether the predicate is a computed property.
func (p Predicate) Computed() bool {
	return p.Expr != ""
}

func (p *Plan) compileFilters(raw string) error {
	if raw == "" {
		return nil
	}
	declared := p.Entity.Filters()
	for _, token := range strings.Split(raw, "|") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		name, value, hasValue := strings.Cut(token, "=")
		exclude := false
		if strings.HasPrefix(name, "!") {
			name = name[1:]
			exclude = hasValue && value != ""
		}
		segments := splitPath(name)
		if len(segments) == 0 {
			continue
		}
		key := strings.Join(segments, "__")
		spec, ok := declared[key]
		if !ok {
			continue
		}

		if spec.IsComputedProperty {
			prop, ok := p.Entity.FilterableProperties()[key]
			if !ok || prop.Expr == "" {
				continue
			}
			v, err := coerce(key, spec.ValueType, value, hasValue)
			if err != nil {
				return err
			}
			p.Properties = append(p.Properties, Predicate{Name: key, Lookup: LookupExact, Value: v, Expr: prop.Expr})
			continue
		}

		lookup := LookupExact
		if l, ok := lookups[segments[len(segments)-1]]; ok && len(segments) > 1 {
			lookup = l
			segments = segments[:len(segments)-1]
		}
		chain, err := resolvePath(p.Entity, segments)
		if err != nil {
			return err
		}

		values, err := coerceAll(key, spec, lookup, value, hasValue)
		if err != nil {
			return err
		}

		// contains_all needs one predicate per value. Excluded, they join
		// the exclusion bucket so only rows matching every value drop out.
		if lookup == LookupContainsAll {
			list, _ := values.([]interface{})
			for _, v := range list {
				pred := Predicate{Name: key, Path: chain, Lookup: LookupExact, Value: v}
				if exclude {
					p.Exclusive = append(p.Exclusive, pred)
				} else {
					p.Isolated = append(p.Isolated, pred)
				}
			}
			continue
		}
		pred := Predicate{Name: key, Path: chain, Lookup: lookup, Value: values}
		if exclude {
			p.Exclusive = append(p.Exclusive, pred)
		} else {
			p.Inclusive = append(p.Inclusive, pred)
		}
	}
	return nil
}

// coerceAll coerces a raw filter value for the lookup. List filters and the
// in and contains_all lookups split on commas.
func coerceAll(name string, spec metadata.FilterSpec, lookup Lookup, raw string, hasValue bool) (interface{}, error) {
	if lookup == LookupIsNull {
		if !hasValue {
			return true, nil
		}
		return strings.EqualFold(strings.TrimSpace(raw), "true"), nil
	}
	list := spec.IsList || lookup == LookupIn || lookup == LookupContainsAll
	if !list {
		return coerce(name, spec.ValueType, raw, hasValue)
	}
	if !hasValue || raw == "" {
		return []interface{}{}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]interface{}, 0, len(parts))
	for _, part := range parts {
		v, err := coerce(name, spec.ValueType, strings.TrimSpace(part), true)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// coerce converts one raw value to the declared filter type. A missing or
// empty value is nil.
func coerce(name string, typ metadata.FilterType, raw string, hasValue bool) (interface{}, error) {
	if !hasValue || raw == "" {
		return nil, nil
	}
	switch typ {
	case metadata.FilterBool:
		return strings.EqualFold(raw, "true"), nil
	case metadata.FilterInt:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return nil, &common.ParseError{Message: "could not parse filter " + name, Err: err}
		}
		return n, nil
	case metadata.FilterFloat:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, &common.ParseError{Message: "could not parse filter " + name, Err: err}
		}
		return f, nil
	case metadata.FilterDecimal:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, &common.ParseError{Message: "could not parse filter " + name, Err: err}
		}
		return d, nil
	case metadata.FilterDateTime:
		t, err := cast.ToTimeE(raw)
		if err != nil {
			return nil, &common.ParseError{Message: "could not parse filter " + name, Err: err}
		}
		return t, nil
	default:
		return raw, nil
	}
}
