// Package engine executes compiled plans. Simple plans run as one projected
// query whose flat rows are reassembled into objects; every other plan runs
// against live structs whose includes are loaded level by level.
package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/dialect"
	"github.com/bitechdev/SimplifySpec/pkg/logger"
	"github.com/bitechdev/SimplifySpec/pkg/metrics"
	"github.com/bitechdev/SimplifySpec/pkg/plan"
	"github.com/bitechdev/SimplifySpec/pkg/tracing"
)

// Execution paths reported to metrics.
const (
	PathFlat  = "flat"
	PathGraph = "graph"
)

// chunkSize bounds the number of keys bound in one IN list.
const chunkSize = 500

// Engine runs plans against one database.
type Engine struct {
	db       common.Database
	strategy dialect.Strategy
}

// New creates an engine with the dialect matching db's driver.
func New(db common.Database) (*Engine, error) {
	s, err := dialect.ForDatabase(db)
	if err != nil {
		return nil, err
	}
	return &Engine{db: db, strategy: s}, nil
}

// NewWithStrategy creates an engine with an explicit dialect.
func NewWithStrategy(db common.Database, s dialect.Strategy) *Engine {
	return &Engine{db: db, strategy: s}
}

// Strategy returns the dialect of the engine.
func (e *Engine) Strategy() dialect.Strategy {
	return e.strategy
}

// Scope narrows a plan to a sub-resource or a single entity.
type Scope struct {
	// Conditions are extra WHERE fragments over plan.BaseAlias.
	Conditions []plan.Condition
	// Single selects the entity with primary key PK.
	Single bool
	PK     interface{}
	// EmptyIsError turns a missing single entity into a NotFoundError.
	// Otherwise an empty object is returned.
	EmptyIsError bool
}

// Result is the outcome of Execute. Count is set when the plan asked for a
// total. Item is set instead of Items for single lookups.
type Result struct {
	Items []map[string]interface{}
	Item  map[string]interface{}
	Count *int
	Path  string
}

// Execute runs p within scope.
func (e *Engine) Execute(ctx context.Context, p *plan.Plan, scope Scope) (res *Result, err error) {
	ctx, span := tracing.StartSpan(ctx, "engine.execute",
		attribute.String("entity", p.Entity.Name),
		attribute.Bool("simple", p.Simple),
	)
	defer func() { tracing.EndSpan(span, err) }()

	conds, err := p.Conditions(e.strategy)
	if err != nil {
		return nil, err
	}
	conds = append(conds, scope.Conditions...)
	if scope.Single {
		pk := p.Entity.PrimaryKey()
		conds = append(conds, plan.Condition{
			SQL:  e.col(plan.BaseAlias, pk.Column) + " = ?",
			Args: []interface{}{scope.PK},
		})
	}

	res = &Result{}
	if !scope.Single && p.WantsCount() {
		n, err := e.count(ctx, p, conds)
		if err != nil {
			return nil, err
		}
		res.Count = &n
	}
	if !scope.Single && p.CountOnly {
		res.Items = []map[string]interface{}{}
		return res, nil
	}

	keys, err := e.pageKeys(ctx, p, conds, !scope.Single)
	if err != nil {
		return nil, err
	}

	var items []map[string]interface{}
	if p.Simple {
		res.Path = PathFlat
		items, err = e.flat(ctx, p, keys)
	} else {
		res.Path = PathGraph
		logger.Debug("Using object graph for %s: %s", p.Entity.Name, p.SimpleReason)
		items, err = e.graph(ctx, p, keys)
	}
	if err != nil {
		return nil, err
	}
	metrics.GetProvider().RecordPlanPath(p.Entity.Name, res.Path)

	if !scope.Single {
		res.Items = items
		return res, nil
	}
	switch len(items) {
	case 0:
		if scope.EmptyIsError {
			return nil, &common.NotFoundError{Entity: p.Entity.Name, Key: scope.PK}
		}
		res.Item = map[string]interface{}{}
	case 1:
		res.Item = items[0]
	default:
		return nil, &common.InternalConsistencyError{Message: "duplicate object for key", Key: scope.PK}
	}
	return res, nil
}

func (e *Engine) col(alias, column string) string {
	return e.strategy.Quote(alias) + "." + e.strategy.Quote(column)
}

func (e *Engine) from(table, alias string) string {
	return e.strategy.QuoteTable(table) + " AS " + e.strategy.Quote(alias)
}

func (e *Engine) base(p *plan.Plan, conds []plan.Condition) common.SelectQuery {
	q := e.db.NewSelect().Table(e.from(p.Entity.Table, plan.BaseAlias))
	for _, c := range conds {
		q = q.Where(c.SQL, c.Args...)
	}
	return q
}

func (e *Engine) count(ctx context.Context, p *plan.Plan, conds []plan.Condition) (int, error) {
	pk := p.Entity.PrimaryKey()
	q := e.base(p, conds).ColumnExpr(e.col(plan.BaseAlias, pk.Column))
	if p.Distinct {
		q = q.Distinct()
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", p.Entity.Name, err)
	}
	return n, nil
}

// pageKeys returns the primary keys of the requested page in order.
func (e *Engine) pageKeys(ctx context.Context, p *plan.Plan, conds []plan.Condition, paged bool) ([]interface{}, error) {
	pk := p.Entity.PrimaryKey()
	q := e.base(p, conds).ColumnExpr(e.col(plan.BaseAlias, pk.Column) + " AS " + e.strategy.Quote("pk"))
	if p.Distinct {
		q = q.Distinct()
		// Order terms have to be selected for DISTINCT.
		for i, o := range p.OrderBy {
			if o.Field == pk {
				continue
			}
			q = q.ColumnExpr(fmt.Sprintf("%s AS %s", e.col(plan.BaseAlias, o.Column()), e.strategy.Quote(fmt.Sprintf("o%d", i))))
		}
	}
	for _, expr := range p.OrderExprs(e.strategy, plan.BaseAlias) {
		q = q.OrderExpr(expr)
	}
	if paged && p.Paginated {
		q = q.Limit(p.PageSize).Offset(p.Offset())
	}

	var rows []map[string]interface{}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("select %s keys: %w", p.Entity.Name, err)
	}
	keys := make([]interface{}, 0, len(rows))
	seen := map[string]bool{}
	for _, row := range rows {
		k := row["pk"]
		if id := keyOf(k); !seen[id] {
			seen[id] = true
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// chunks splits keys into IN-list sized batches.
func chunks(keys []interface{}) [][]interface{} {
	var out [][]interface{}
	for len(keys) > chunkSize {
		out = append(out, keys[:chunkSize])
		keys = keys[chunkSize:]
	}
	if len(keys) > 0 {
		out = append(out, keys)
	}
	return out
}

// positions maps every key to its index in keys.
func positions(keys []interface{}) map[string]int {
	out := make(map[string]int, len(keys))
	for i, k := range keys {
		out[keyOf(k)] = i
	}
	return out
}
