package plan

import (
	"fmt"
	"strings"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/dialect"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
)

// BaseAlias is the table alias of the queried entity in every statement.
const BaseAlias = "t"

// Condition is a WHERE fragment with its bound arguments.
type Condition struct {
	SQL  string
	Args []interface{}
}

// Conditions compiles every predicate bucket into WHERE fragments over
// BaseAlias. Relation paths become IN subqueries so a filter never
// multiplies base rows.
func (p *Plan) Conditions(s dialect.Strategy) ([]Condition, error) {
	b := &sqlBuilder{s: s}
	var out []Condition

	for _, pred := range p.Inclusive {
		c, err := b.predicate(BaseAlias, p.Entity, pred, false)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	for _, pred := range p.Properties {
		out = append(out, b.property(pred))
	}
	for _, pred := range p.Isolated {
		c, err := b.predicate(BaseAlias, p.Entity, pred, false)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if len(p.Exclusive) > 0 {
		parts := make([]string, 0, len(p.Exclusive))
		var args []interface{}
		for _, pred := range p.Exclusive {
			c, err := b.predicate(BaseAlias, p.Entity, pred, true)
			if err != nil {
				return nil, err
			}
			parts = append(parts, c.SQL)
			args = append(args, c.Args...)
		}
		out = append(out, Condition{SQL: "NOT (" + strings.Join(parts, " AND ") + ")", Args: args})
	}
	return out, nil
}

// OrderExprs returns the ORDER BY terms over alias.
func (p *Plan) OrderExprs(s dialect.Strategy, alias string) []string {
	out := make([]string, 0, len(p.OrderBy))
	for _, o := range p.OrderBy {
		expr := s.Quote(alias) + "." + s.Quote(o.Column())
		if o.Desc {
			expr += " DESC"
		} else {
			expr += " ASC"
		}
		out = append(out, expr)
	}
	return out
}

type sqlBuilder struct {
	s     dialect.Strategy
	alias int
}

func (b *sqlBuilder) next(prefix string) string {
	b.alias++
	return fmt.Sprintf("%s%d", prefix, b.alias)
}

func (b *sqlBuilder) col(alias, column string) string {
	return b.s.Quote(alias) + "." + b.s.Quote(column)
}

func (b *sqlBuilder) property(pred Predicate) Condition {
	if strings.Contains(pred.Expr, "?") {
		return Condition{SQL: "(" + pred.Expr + ")", Args: []interface{}{pred.Value}}
	}
	return Condition{SQL: "(" + pred.Expr + ")"}
}

// predicate walks pred.Path from the entity aliased as alias.
func (b *sqlBuilder) predicate(alias string, et *metadata.EntityType, pred Predicate, excluded bool) (Condition, error) {
	if len(pred.Path) == 0 {
		return Condition{}, &common.UnsupportedConfigurationError{Subject: "filter " + pred.Name}
	}
	f := pred.Path[0]
	rest := pred.Path[1:]

	if !f.IsRelation() {
		return b.compare(b.col(alias, f.Column), f, pred, excluded), nil
	}

	related, err := et.Related(f)
	if err != nil {
		return Condition{}, err
	}
	relPK := related.PrimaryKey()

	// A path ending on a relation compares the related primary key.
	if len(rest) == 0 {
		switch {
		case f.IsForward():
			return b.compare(b.col(alias, f.Column), f, pred, excluded), nil
		case f.Relation == metadata.RelManyToMany:
			j := b.next("j")
			inner := b.compare(b.col(j, f.JoinRelatedColumn), relPK, pred, false)
			return b.in(b.col(alias, et.PrimaryKey().Column), f.JoinOwnColumn, f.JoinTable, j, inner, excluded), nil
		default:
			s := b.next("s")
			inner := b.compare(b.col(s, relPK.Column), relPK, pred, false)
			return b.in(b.col(alias, f.RelatedColumn), f.RemoteColumn, related.Table, s, inner, excluded), nil
		}
	}

	s := b.next("s")
	inner, err := b.predicate(s, related, Predicate{Name: pred.Name, Path: rest, Lookup: pred.Lookup, Value: pred.Value}, false)
	if err != nil {
		return Condition{}, err
	}
	switch {
	case f.IsForward():
		return b.in(b.col(alias, f.Column), relatedColumn(f, relPK), related.Table, s, inner, excluded), nil
	case f.Relation == metadata.RelManyToMany:
		j := b.next("j")
		sub := b.in(b.col(j, f.JoinRelatedColumn), relPK.Column, related.Table, s, inner, false)
		return b.in(b.col(alias, et.PrimaryKey().Column), f.JoinOwnColumn, f.JoinTable, j, sub, excluded), nil
	default:
		return b.in(b.col(alias, f.RelatedColumn), f.RemoteColumn, related.Table, s, inner, excluded), nil
	}
}

func relatedColumn(f *metadata.Field, relPK *metadata.Field) string {
	if f.RelatedColumn != "" {
		return f.RelatedColumn
	}
	return relPK.Column
}

// in renders "outer IN (SELECT alias.column FROM table AS alias WHERE inner)".
// Inside an exclusion neither side may be null, otherwise NOT (...) turns
// unknown and drops rows whose key is null.
func (b *sqlBuilder) in(outer, column, table, alias string, inner Condition, excluded bool) Condition {
	selected := b.col(alias, column)
	where := inner.SQL
	if excluded {
		where = "(" + where + ") AND " + selected + " IS NOT NULL"
	}
	sql := fmt.Sprintf("%s IN (SELECT %s FROM %s AS %s WHERE %s)",
		outer, selected, b.s.QuoteTable(table), b.s.Quote(alias), where)
	if excluded {
		sql = "(" + sql + " AND " + outer + " IS NOT NULL)"
	}
	return Condition{SQL: sql, Args: inner.Args}
}

// compare renders the lookup against expr. Inside an exclusion a nullable
// column is also required to be non-null, so NOT (...) keeps null rows.
func (b *sqlBuilder) compare(expr string, f *metadata.Field, pred Predicate, excluded bool) Condition {
	c := b.lookup(expr, pred)
	if excluded && f.Nullable && pred.Lookup != LookupIsNull && pred.Value != nil {
		c.SQL = "(" + c.SQL + " AND " + expr + " IS NOT NULL)"
	}
	return c
}

func (b *sqlBuilder) lookup(expr string, pred Predicate) Condition {
	v := pred.Value
	switch pred.Lookup {
	case LookupIsNull:
		if isNull, _ := v.(bool); isNull {
			return Condition{SQL: expr + " IS NULL"}
		}
		return Condition{SQL: expr + " IS NOT NULL"}
	case LookupIn:
		list := asList(v)
		if len(list) == 0 {
			return Condition{SQL: "1 = 0"}
		}
		return Condition{SQL: expr + " IN (" + dialect.Placeholders(len(list)) + ")", Args: list}
	}

	if v == nil {
		return Condition{SQL: expr + " IS NULL"}
	}
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return Condition{SQL: "1 = 0"}
		}
		return Condition{SQL: expr + " IN (" + dialect.Placeholders(len(list)) + ")", Args: list}
	}

	text := fmt.Sprint(v)
	switch pred.Lookup {
	case LookupIExact:
		return Condition{SQL: "LOWER(" + expr + ") = LOWER(?)", Args: []interface{}{text}}
	case LookupContains:
		return Condition{SQL: expr + " LIKE ?", Args: []interface{}{"%" + text + "%"}}
	case LookupIContains:
		return Condition{SQL: b.s.ILike(expr), Args: []interface{}{"%" + text + "%"}}
	case LookupStartsWith:
		return Condition{SQL: expr + " LIKE ?", Args: []interface{}{text + "%"}}
	case LookupIStartsWith:
		return Condition{SQL: b.s.ILike(expr), Args: []interface{}{text + "%"}}
	case LookupEndsWith:
		return Condition{SQL: expr + " LIKE ?", Args: []interface{}{"%" + text}}
	case LookupIEndsWith:
		return Condition{SQL: b.s.ILike(expr), Args: []interface{}{"%" + text}}
	case LookupRevIContains:
		return Condition{
			SQL:  "LOWER(?) LIKE LOWER(" + b.s.Concat("'%'", expr, "'%'") + ")",
			Args: []interface{}{text},
		}
	case LookupGT:
		return Condition{SQL: expr + " > ?", Args: []interface{}{v}}
	case LookupGTE:
		return Condition{SQL: expr + " >= ?", Args: []interface{}{v}}
	case LookupLT:
		return Condition{SQL: expr + " < ?", Args: []interface{}{v}}
	case LookupLTE:
		return Condition{SQL: expr + " <= ?", Args: []interface{}{v}}
	default:
		return Condition{SQL: expr + " = ?", Args: []interface{}{v}}
	}
}

func asList(v interface{}) []interface{} {
	switch list := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return list
	default:
		return []interface{}{v}
	}
}
