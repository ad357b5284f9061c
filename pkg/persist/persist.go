// Package persist saves parsed entity graphs.
package persist

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/logger"
	"github.com/bitechdev/SimplifySpec/pkg/parser"
	"github.com/bitechdev/SimplifySpec/pkg/tracing"
)

// CascadeSave saves every pending nested entity of g depth first, links the
// saved keys back onto their parents and then saves g itself. All writes
// happen in one transaction.
func CascadeSave(ctx context.Context, db common.Database, g *parser.Graph) (err error) {
	ctx, span := tracing.StartSpan(ctx, "persist.cascade_save", attribute.String("entity", g.Type.Name))
	defer func() { tracing.EndSpan(span, err) }()

	return db.RunInTransaction(ctx, func(tx common.Database) error {
		return save(ctx, tx, g)
	})
}

func save(ctx context.Context, db common.Database, g *parser.Graph) error {
	for _, name := range g.Pending {
		child, ok := g.Nested[name]
		if !ok {
			return &common.InternalConsistencyError{Message: "pending relation without parsed entity", Key: name}
		}
		if err := save(ctx, db, child); err != nil {
			return fmt.Errorf("save %s.%s: %w", g.Type.Name, name, err)
		}
		if err := g.Attach(name); err != nil {
			return err
		}
	}

	model := g.Model()
	if g.IsNew {
		if _, err := db.NewInsert().Model(model).Exec(ctx); err != nil {
			return fmt.Errorf("insert %s: %w", g.Type.Name, err)
		}
		logger.Debug("Inserted %s", g.Type.Name)
		return nil
	}
	if _, err := db.NewUpdate().Model(model).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("update %s: %w", g.Type.Name, err)
	}
	logger.Debug("Updated %s", g.Type.Name)
	return nil
}
