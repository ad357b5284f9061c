package testmodels

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/glebarez/sqlite" // registers the pure Go "sqlite" driver
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// DriverName is the database/sql driver the fixtures open.
const DriverName = "sqlite"

// OpenSQLite opens a private in-memory SQLite database with every test
// table created. The pool holds one connection so the schema survives.
func OpenSQLite(ctx context.Context) (*bun.DB, error) {
	sqldb, err := sql.Open(DriverName, "file::memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	RegisterBun(db)
	for _, stmt := range SQLiteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return db, nil
}
