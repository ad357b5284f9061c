package database

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/logger"
)

// GormAdapter adapts GORM to the Database interface
type GormAdapter struct {
	db *gorm.DB
}

// NewGormAdapter creates a new GORM adapter
func NewGormAdapter(db *gorm.DB) *GormAdapter {
	return &GormAdapter{db: db}
}

// EnableQueryDebug logs every SQL statement GORM issues
func (g *GormAdapter) EnableQueryDebug() *GormAdapter {
	g.db = g.db.Debug()
	logger.Info("GORM query debug mode enabled - all SQL queries will be logged")
	return g
}

func (g *GormAdapter) fresh() *gorm.DB {
	return g.db.Session(&gorm.Session{NewDB: true})
}

func (g *GormAdapter) NewSelect() common.SelectQuery {
	return &GormSelectQuery{db: g.fresh(), root: g.db}
}

func (g *GormAdapter) NewInsert() common.InsertQuery {
	return &GormInsertQuery{db: g.fresh()}
}

func (g *GormAdapter) NewUpdate() common.UpdateQuery {
	return &GormUpdateQuery{db: g.fresh()}
}

func (g *GormAdapter) NewDelete() common.DeleteQuery {
	return &GormDeleteQuery{db: g.fresh()}
}

func (g *GormAdapter) Exec(ctx context.Context, query string, args ...interface{}) (res common.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("GormAdapter.Exec", r)
		}
	}()
	result := g.fresh().WithContext(ctx).Exec(query, args...)
	return &GormResult{result: result}, result.Error
}

func (g *GormAdapter) Query(ctx context.Context, dest interface{}, query string, args ...interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("GormAdapter.Query", r)
		}
	}()
	return g.fresh().WithContext(ctx).Raw(query, args...).Scan(dest).Error
}

func (g *GormAdapter) RunInTransaction(ctx context.Context, fn func(common.Database) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("GormAdapter.RunInTransaction", r)
		}
	}()
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormAdapter{db: tx})
	})
}

func (g *GormAdapter) GetUnderlyingDB() interface{} {
	return g.db
}

func (g *GormAdapter) DriverName() string {
	if g.db.Dialector == nil {
		return ""
	}
	return normalizeDriverName(g.db.Dialector.Name())
}

// GormSelectQuery implements SelectQuery for GORM. Column expressions are
// collected and applied at execution time because gorm.DB.Select replaces
// earlier selections.
type GormSelectQuery struct {
	db       *gorm.DB
	root     *gorm.DB
	columns  []string
	colArgs  []interface{}
	model    interface{}
	distinct bool
}

func (g *GormSelectQuery) Model(model interface{}) common.SelectQuery {
	g.db = g.db.Model(model)
	g.model = model
	return g
}

func (g *GormSelectQuery) Table(expr string, args ...interface{}) common.SelectQuery {
	g.db = g.db.Table(expr, args...)
	return g
}

func (g *GormSelectQuery) ColumnExpr(query string, args ...interface{}) common.SelectQuery {
	g.columns = append(g.columns, query)
	g.colArgs = append(g.colArgs, args...)
	return g
}

func (g *GormSelectQuery) Where(query string, args ...interface{}) common.SelectQuery {
	g.db = g.db.Where(query, args...)
	return g
}

func (g *GormSelectQuery) LeftJoin(query string, args ...interface{}) common.SelectQuery {
	g.db = g.db.Joins("LEFT JOIN "+query, args...)
	return g
}

func (g *GormSelectQuery) OrderExpr(order string, args ...interface{}) common.SelectQuery {
	if len(args) > 0 {
		g.db = g.db.Order(clause.Expr{SQL: order, Vars: args})
	} else {
		g.db = g.db.Order(order)
	}
	return g
}

func (g *GormSelectQuery) Limit(n int) common.SelectQuery {
	g.db = g.db.Limit(n)
	return g
}

func (g *GormSelectQuery) Offset(n int) common.SelectQuery {
	g.db = g.db.Offset(n)
	return g
}

func (g *GormSelectQuery) Distinct() common.SelectQuery {
	g.distinct = true
	return g
}

// build applies the collected columns and the distinct flag.
func (g *GormSelectQuery) build(ctx context.Context) *gorm.DB {
	tx := g.db.WithContext(ctx)
	if len(g.columns) > 0 {
		tx = tx.Select(strings.Join(g.columns, ", "), g.colArgs...)
	}
	if g.distinct {
		tx = tx.Distinct()
	}
	return tx
}

func (g *GormSelectQuery) Scan(ctx context.Context, dest interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("GormSelectQuery.Scan", r)
		}
	}()
	tx := g.build(ctx)
	if g.model != nil {
		err = tx.Find(dest).Error
	} else {
		err = tx.Scan(dest).Error
	}
	if err != nil {
		sqlStr := tx.ToSQL(func(t *gorm.DB) *gorm.DB {
			return t.Find(dest)
		})
		logger.Error("GormSelectQuery.Scan failed. SQL: %s. Error: %v", sqlStr, err)
	}
	return err
}

func (g *GormSelectQuery) Count(ctx context.Context) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("GormSelectQuery.Count", r)
			count = 0
		}
	}()
	var count64 int64
	sub := g.build(ctx)
	err = g.root.Session(&gorm.Session{NewDB: true}).WithContext(ctx).
		Table("(?) AS subquery", sub).
		Count(&count64).Error
	if err != nil {
		logger.Error("GormSelectQuery.Count failed. Error: %v", err)
	}
	return int(count64), err
}

func (g *GormSelectQuery) Exists(ctx context.Context) (exists bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("GormSelectQuery.Exists", r)
			exists = false
		}
	}()
	rows := make([]map[string]interface{}, 0, 1)
	tx := g.build(ctx).Limit(1)
	if g.model != nil {
		err = tx.Find(&rows).Error
	} else {
		err = tx.Scan(&rows).Error
	}
	if err != nil {
		logger.Error("GormSelectQuery.Exists failed. Error: %v", err)
	}
	return len(rows) > 0, err
}

// GormInsertQuery implements InsertQuery for GORM
type GormInsertQuery struct {
	db     *gorm.DB
	model  interface{}
	values map[string]interface{}
}

func (g *GormInsertQuery) Model(model interface{}) common.InsertQuery {
	g.model = model
	g.db = g.db.Model(model)
	return g
}

func (g *GormInsertQuery) Table(table string) common.InsertQuery {
	g.db = g.db.Table(table)
	return g
}

func (g *GormInsertQuery) Value(column string, value interface{}) common.InsertQuery {
	if g.values == nil {
		g.values = make(map[string]interface{})
	}
	g.values[column] = value
	return g
}

func (g *GormInsertQuery) Exec(ctx context.Context) (res common.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("GormInsertQuery.Exec", r)
		}
	}()
	var result *gorm.DB
	switch {
	case g.model != nil:
		// Nested entities are saved by the caller, never by GORM.
		result = g.db.WithContext(ctx).Omit(clause.Associations).Create(g.model)
	case g.values != nil:
		result = g.db.WithContext(ctx).Create(g.values)
	default:
		return nil, fmt.Errorf("insert requires a model or values")
	}
	return &GormResult{result: result}, result.Error
}

// GormUpdateQuery implements UpdateQuery for GORM
type GormUpdateQuery struct {
	db      *gorm.DB
	model   interface{}
	updates map[string]interface{}
	byPK    bool
}

func (g *GormUpdateQuery) Model(model interface{}) common.UpdateQuery {
	g.model = model
	g.db = g.db.Model(model)
	return g
}

func (g *GormUpdateQuery) Table(table string) common.UpdateQuery {
	g.db = g.db.Table(table)
	return g
}

func (g *GormUpdateQuery) Set(column string, value interface{}) common.UpdateQuery {
	if g.updates == nil {
		g.updates = make(map[string]interface{})
	}
	g.updates[column] = value
	return g
}

func (g *GormUpdateQuery) Where(query string, args ...interface{}) common.UpdateQuery {
	g.db = g.db.Where(query, args...)
	return g
}

func (g *GormUpdateQuery) WherePK() common.UpdateQuery {
	g.byPK = true
	return g
}

func (g *GormUpdateQuery) Exec(ctx context.Context) (res common.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("GormUpdateQuery.Exec", r)
		}
	}()
	var result *gorm.DB
	if g.byPK && g.updates == nil {
		result = g.db.WithContext(ctx).Omit(clause.Associations).Save(g.model)
	} else {
		result = g.db.WithContext(ctx).Updates(g.updates)
	}
	if result.Error != nil {
		logger.Error("GormUpdateQuery.Exec failed. Error: %v", result.Error)
	}
	return &GormResult{result: result}, result.Error
}

// GormDeleteQuery implements DeleteQuery for GORM
type GormDeleteQuery struct {
	db    *gorm.DB
	model interface{}
}

func (g *GormDeleteQuery) Model(model interface{}) common.DeleteQuery {
	g.model = model
	g.db = g.db.Model(model)
	return g
}

func (g *GormDeleteQuery) Where(query string, args ...interface{}) common.DeleteQuery {
	g.db = g.db.Where(query, args...)
	return g
}

func (g *GormDeleteQuery) Exec(ctx context.Context) (res common.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("GormDeleteQuery.Exec", r)
		}
	}()
	result := g.db.WithContext(ctx).Delete(g.model)
	if result.Error != nil {
		logger.Error("GormDeleteQuery.Exec failed. Error: %v", result.Error)
	}
	return &GormResult{result: result}, result.Error
}

// GormResult implements Result for GORM
type GormResult struct {
	result *gorm.DB
}

func (g *GormResult) RowsAffected() int64 {
	if g.result == nil {
		return 0
	}
	return g.result.RowsAffected
}

func (g *GormResult) LastInsertId() (int64, error) {
	// GORM writes the generated key back into the model instead.
	return 0, nil
}
