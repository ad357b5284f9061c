package simplifyspec

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/engine"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
	"github.com/bitechdev/SimplifySpec/pkg/naming"
	"github.com/bitechdev/SimplifySpec/pkg/plan"
	"github.com/bitechdev/SimplifySpec/pkg/reflection"
)

// linkColumn resolves name, a field or column of et, into its stored column.
// Forward references resolve to their id column.
func linkColumn(et *metadata.EntityType, name string) (string, error) {
	if f, ok := et.Field(name); ok && f.Column != "" {
		return f.Column, nil
	}
	if f, ok := et.FieldByColumn(name); ok {
		return f.Column, nil
	}
	if f, ok := et.Field(strings.TrimSuffix(name, "_id")); ok && f.IsForward() {
		return f.Column, nil
	}
	return "", &common.UnsupportedConfigurationError{Subject: fmt.Sprintf("field %s of %s", name, et.Name)}
}

// keyField returns the field whose type the values of column take.
func keyField(et *metadata.EntityType, column string) *metadata.Field {
	f, ok := et.FieldByColumn(column)
	if !ok {
		return et.PrimaryKey()
	}
	if f.IsForward() {
		if related, err := et.Related(f); err == nil {
			return related.PrimaryKey()
		}
	}
	return f
}

func (c *call) col(alias, column string) string {
	return c.s.Quote(alias) + "." + c.s.Quote(column)
}

// parentKey coerces the parent key of the request.
func (c *call) parentKey(lo *linkedObject) (interface{}, error) {
	switch {
	case lo.parent != nil:
		return engine.CoerceKey(lo.parent.PrimaryKey(), c.req.ParentPK)
	case lo.linking != nil:
		column, err := linkColumn(lo.linking, lo.ParentName)
		if err != nil {
			return nil, err
		}
		return engine.CoerceKey(keyField(lo.linking, column), c.req.ParentPK)
	}
	column, err := linkColumn(c.res.entity, lo.ParentName)
	if err != nil {
		return nil, err
	}
	return engine.CoerceKey(keyField(c.res.entity, column), c.req.ParentPK)
}

// parentCondition restricts the resource to the children of the request's
// parent.
func (c *call) parentCondition(lo *linkedObject) (plan.Condition, error) {
	et := c.res.entity
	ppk, err := c.parentKey(lo)
	if err != nil {
		return plan.Condition{}, err
	}
	pk := c.col(plan.BaseAlias, et.PrimaryKey().Column)

	if lo.linking != nil {
		parentCol, err := linkColumn(lo.linking, lo.ParentName)
		if err != nil {
			return plan.Condition{}, err
		}
		subCol, err := linkColumn(lo.linking, lo.SubResourceName)
		if err != nil {
			return plan.Condition{}, err
		}
		return plan.Condition{
			SQL: fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE %s = ?)",
				pk, c.s.Quote(subCol), c.s.QuoteTable(lo.linking.Table), c.s.Quote(parentCol)),
			Args: []interface{}{ppk},
		}, nil
	}

	if lo.parent != nil {
		f, ok := et.Field(strings.TrimSuffix(lo.ParentName, "_id"))
		if ok && f.Relation == metadata.RelManyToMany {
			return plan.Condition{
				SQL: fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE %s = ?)",
					pk, c.s.Quote(f.JoinOwnColumn), c.s.QuoteTable(f.JoinTable), c.s.Quote(f.JoinRelatedColumn)),
				Args: []interface{}{ppk},
			}, nil
		}
	}
	column, err := linkColumn(et, lo.ParentName)
	if err != nil {
		return plan.Condition{}, err
	}
	return plan.Condition{SQL: c.col(plan.BaseAlias, column) + " = ?", Args: []interface{}{ppk}}, nil
}

// linkExists reports whether the linking model joins the parent to pk.
func (c *call) linkExists(ctx context.Context, lo *linkedObject, pk interface{}) (bool, error) {
	ppk, err := c.parentKey(lo)
	if err != nil {
		return false, err
	}
	parentCol, err := linkColumn(lo.linking, lo.ParentName)
	if err != nil {
		return false, err
	}
	subCol, err := linkColumn(lo.linking, lo.SubResourceName)
	if err != nil {
		return false, err
	}
	ok, err := c.db.NewSelect().
		Table(c.s.QuoteTable(lo.linking.Table)+" AS "+c.s.Quote("l")).
		ColumnExpr(c.col("l", subCol)).
		Where(c.col("l", parentCol)+" = ?", ppk).
		Where(c.col("l", subCol)+" = ?", pk).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check %s link: %w", lo.linking.Name, err)
	}
	return ok, nil
}

// childOfParent reads the key of the child stored on the parent. A nil key
// means the parent has no child set.
func (c *call) childOfParent(ctx context.Context, lo *linkedObject) (interface{}, error) {
	ppk, err := engine.CoerceKey(lo.parent.PrimaryKey(), c.req.ParentPK)
	if err != nil {
		return nil, err
	}
	column, err := linkColumn(lo.parent, lo.SubResourceName)
	if err != nil {
		return nil, err
	}
	var rows []map[string]interface{}
	err = c.db.NewSelect().
		Table(c.s.QuoteTable(lo.parent.Table)+" AS "+c.s.Quote("p")).
		ColumnExpr(c.col("p", column)+" AS "+c.s.Quote("child")).
		Where(c.col("p", lo.parent.PrimaryKey().Column)+" = ?", ppk).
		Limit(1).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("load %s of %s: %w", column, lo.parent.Name, err)
	}
	if len(rows) == 0 {
		return nil, &common.NotFoundError{Entity: lo.parent.Name, Key: ppk}
	}
	return rows[0]["child"], nil
}

// linkToParent records a created child under the parent of the request:
// lives-on-parent links store the child key on the parent, linking models
// get a new row.
func (c *call) linkToParent(ctx context.Context, db common.Database, lo *linkedObject, childKey interface{}) error {
	ppk, err := c.parentKey(lo)
	if err != nil {
		return err
	}
	if lo.livesOn(naming.ToStorageName(c.req.SubResource)) {
		column, err := linkColumn(lo.parent, lo.SubResourceName)
		if err != nil {
			return err
		}
		res, err := db.NewUpdate().
			Table(lo.parent.Table).
			Set(column, childKey).
			Where(c.s.Quote(lo.parent.PrimaryKey().Column)+" = ?", ppk).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update %s: %w", lo.parent.Name, err)
		}
		if res.RowsAffected() == 0 {
			return &common.NotFoundError{Entity: lo.parent.Name, Key: ppk}
		}
		return nil
	}
	if lo.linking == nil {
		return nil
	}
	parentCol, err := linkColumn(lo.linking, lo.ParentName)
	if err != nil {
		return err
	}
	subCol, err := linkColumn(lo.linking, lo.SubResourceName)
	if err != nil {
		return err
	}
	if _, err := db.NewInsert().Table(lo.linking.Table).Value(parentCol, ppk).Value(subCol, childKey).Exec(ctx); err != nil {
		return fmt.Errorf("insert %s: %w", lo.linking.Name, err)
	}
	return nil
}

// saveLinks inserts the linker rows requested with the links parameter.
// Every link has the form relation__field=id, links are separated by '|'.
// The relation is a reverse relation of the created entity; the new row
// references the entity and stores id under field.
func (c *call) saveLinks(ctx context.Context, db common.Database, key interface{}, links string) error {
	et := c.res.entity
	for _, link := range strings.Split(links, "|") {
		ref, id, ok := strings.Cut(link, "=")
		if !ok {
			return common.NewParseError("invalid link %q", link)
		}
		rel, field, ok := strings.Cut(ref, "__")
		if !ok {
			return common.NewParseError("invalid link %q", link)
		}
		f, ok := et.Field(naming.ToStorageName(rel))
		if !ok || !f.IsRelation() {
			return common.NewParseError("unknown link relation %s", rel)
		}
		linkType, err := et.Related(f)
		if err != nil {
			return err
		}
		backCol, err := backReference(linkType, et)
		if err != nil {
			return err
		}
		column, err := linkColumn(linkType, naming.ToStorageName(field))
		if err != nil {
			return common.NewParseError("unknown link field %s", field)
		}
		value, err := engine.CoerceKey(keyField(linkType, column), id)
		if err != nil {
			return err
		}
		if _, err := db.NewInsert().Table(linkType.Table).Value(backCol, key).Value(column, value).Exec(ctx); err != nil {
			return fmt.Errorf("insert %s link: %w", linkType.Name, err)
		}
	}
	return nil
}

// backReference returns the column of the first forward reference from
// linkType to target.
func backReference(linkType, target *metadata.EntityType) (string, error) {
	for _, f := range linkType.Fields {
		if f.IsForward() && f.RelatedGoType == target.GoType {
			return f.Column, nil
		}
	}
	return "", &common.UnsupportedConfigurationError{Subject: fmt.Sprintf("%s has no reference to %s", linkType.Name, target.Name)}
}

// primaryKey reads the primary key value of a saved entity.
func primaryKey(et *metadata.EntityType, obj interface{}) (interface{}, error) {
	v := reflect.ValueOf(obj)
	fv, err := reflection.FieldValue(v, et.PrimaryKey().Index)
	if err != nil {
		return nil, err
	}
	return fv.Interface(), nil
}
