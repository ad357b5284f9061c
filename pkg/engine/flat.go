package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/dialect"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
	"github.com/bitechdev/SimplifySpec/pkg/plan"
)

// projection is the compiled SELECT list and joins of a flat query.
type projection struct {
	columns []string
	joins   []string
	// fields maps every result column to the field typing its values and
	// names the include it belongs to, if any.
	fields map[string]projected
	shape  Shape
}

type projected struct {
	field   *metadata.Field
	entity  *metadata.EntityType
	include string
	sub     string
}

// flat loads keys through one projected query and reassembles the rows.
func (e *Engine) flat(ctx context.Context, p *plan.Plan, keys []interface{}) ([]map[string]interface{}, error) {
	if len(keys) == 0 {
		return []map[string]interface{}{}, nil
	}
	proj, err := e.project(p)
	if err != nil {
		return nil, err
	}

	et := p.Entity
	pk := et.PrimaryKey()
	var rows []FlatRow
	for _, batch := range chunks(keys) {
		q := e.db.NewSelect().Table(e.from(et.Table, plan.BaseAlias))
		for _, c := range proj.columns {
			q = q.ColumnExpr(c)
		}
		for _, j := range proj.joins {
			q = q.LeftJoin(j)
		}
		if p.Distinct {
			q = q.Distinct()
		}
		q = q.Where(e.col(plan.BaseAlias, pk.Column)+" IN ("+dialect.Placeholders(len(batch))+")", batch...).
			OrderExpr(e.col(plan.BaseAlias, pk.Column) + " ASC")

		var raw []map[string]interface{}
		if err := q.Scan(ctx, &raw); err != nil {
			return nil, fmt.Errorf("select %s rows: %w", et.Name, err)
		}
		for _, r := range raw {
			row, err := proj.row(r)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}

	pos := positions(keys)
	sort.SliceStable(rows, func(i, j int) bool {
		return pos[keyOf(rows[i][proj.shape.PrimaryKey])] < pos[keyOf(rows[j][proj.shape.PrimaryKey])]
	})
	return Reassemble(rows, proj.shape)
}

// project builds the SELECT list: the plan fields of the base entity, the
// ids of projected many-to-many fields and every column of depth-1 includes
// under "relation__column".
func (e *Engine) project(p *plan.Plan) (*projection, error) {
	et := p.Entity
	pk := et.PrimaryKey()
	proj := &projection{
		fields: map[string]projected{},
		shape: Shape{
			PrimaryKey: pk.Column,
			Includes:   map[string]bool{},
			Excludes:   et.Excludes(),
		},
	}

	included := map[string]bool{}
	for _, inc := range p.Includes {
		included[inc.Segments[0]] = true
	}

	hasPK := false
	joinN := 0
	for _, name := range p.Fields {
		f, ok := et.FieldByColumn(name)
		if !ok || f.Relation == metadata.RelManyToMany {
			f, ok = et.Field(name)
		}
		if !ok {
			continue
		}
		if f.Relation == metadata.RelManyToMany {
			if included[f.Name] {
				continue
			}
			joinN++
			alias := fmt.Sprintf("m%d", joinN)
			proj.joins = append(proj.joins, fmt.Sprintf("%s ON %s = %s",
				e.from(f.JoinTable, alias),
				e.col(alias, f.JoinOwnColumn),
				e.col(plan.BaseAlias, pk.Column)))
			proj.columns = append(proj.columns, e.col(alias, f.JoinRelatedColumn)+" AS "+e.strategy.Quote(f.Name))
			proj.fields[f.Name] = projected{field: valueField(et, f), entity: et}
			proj.shape.Multiple = append(proj.shape.Multiple, f.Name)
			continue
		}
		if f == pk {
			hasPK = true
		}
		proj.columns = append(proj.columns, e.col(plan.BaseAlias, f.Column)+" AS "+e.strategy.Quote(f.Column))
		proj.fields[f.Column] = projected{field: valueField(et, f), entity: et}
	}
	// Rows are grouped by primary key, so it is always selected.
	if !hasPK {
		proj.columns = append(proj.columns, e.col(plan.BaseAlias, pk.Column)+" AS "+e.strategy.Quote(pk.Column))
		proj.fields[pk.Column] = projected{field: pk, entity: et}
	}

	for i, inc := range p.Includes {
		f := inc.Relation()
		if f == nil {
			return nil, &common.UnsupportedConfigurationError{Subject: "include " + inc.Path}
		}
		related, err := et.Related(f)
		if err != nil {
			return nil, err
		}
		alias := fmt.Sprintf("i%d", i+1)
		switch {
		case f.IsForward():
			proj.joins = append(proj.joins, fmt.Sprintf("%s ON %s = %s",
				e.from(related.Table, alias),
				e.col(alias, relatedColumn(f, related)),
				e.col(plan.BaseAlias, f.Column)))
		case f.Relation == metadata.RelManyToMany:
			through := alias + "j"
			proj.joins = append(proj.joins,
				fmt.Sprintf("%s ON %s = %s",
					e.from(f.JoinTable, through),
					e.col(through, f.JoinOwnColumn),
					e.col(plan.BaseAlias, pk.Column)),
				fmt.Sprintf("%s ON %s = %s",
					e.from(related.Table, alias),
					e.col(alias, related.PrimaryKey().Column),
					e.col(through, f.JoinRelatedColumn)))
		default:
			proj.joins = append(proj.joins, fmt.Sprintf("%s ON %s = %s",
				e.from(related.Table, alias),
				e.col(alias, f.RemoteColumn),
				e.col(plan.BaseAlias, f.RelatedColumn)))
		}

		proj.shape.Includes[f.Name] = f.Multiple
		for _, rf := range subFields(related) {
			key := f.Name + "__" + rf.Column
			proj.columns = append(proj.columns, e.col(alias, rf.Column)+" AS "+e.strategy.Quote(key))
			proj.fields[key] = projected{field: valueField(related, rf), entity: related, include: f.Name, sub: rf.Column}
		}
	}
	return proj, nil
}

// subFields returns the columns selected for an included entity: its
// concrete fields that are not excluded.
func subFields(et *metadata.EntityType) []*metadata.Field {
	var out []*metadata.Field
	for _, f := range et.Fields {
		if !f.IsConcrete() || f.Relation == metadata.RelManyToMany {
			continue
		}
		if f.IsRelation() && !f.IsForward() {
			continue
		}
		if et.IsExcluded(f.Name) || et.IsExcluded(f.Column) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func relatedColumn(f *metadata.Field, related *metadata.EntityType) string {
	if f.RelatedColumn != "" {
		return f.RelatedColumn
	}
	return related.PrimaryKey().Column
}

// row normalizes one scanned row and renames include columns to
// "relation.column".
func (proj *projection) row(raw map[string]interface{}) (FlatRow, error) {
	out := make(FlatRow, len(raw))
	for k, v := range raw {
		pf, ok := proj.fields[k]
		if !ok {
			// Drivers may fold the case of unquoted aliases.
			pf, ok = proj.fields[strings.ToLower(k)]
		}
		if !ok {
			continue
		}
		val, err := viewValue(pf.field, v)
		if err != nil {
			return nil, fmt.Errorf("read %s.%s: %w", pf.entity.Name, pf.field.Name, err)
		}
		if pf.include != "" {
			out[pf.include+"."+pf.sub] = val
			continue
		}
		out[k] = val
	}
	return out, nil
}
