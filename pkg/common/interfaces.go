package common

import (
	"context"
	"net/http"
)

// Database is the storage collaborator. Bun and GORM both implement it.
//
// Query fragments use '?' placeholders with scalar arguments. Identifiers
// inside fragments are expected to be quoted already (see pkg/dialect).
type Database interface {
	NewSelect() SelectQuery
	NewInsert() InsertQuery
	NewUpdate() UpdateQuery
	NewDelete() DeleteQuery

	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	Query(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// RunInTransaction runs fn inside a transaction. Calling it on a
	// transaction-scoped Database reuses the open transaction.
	RunInTransaction(ctx context.Context, fn func(Database) error) error

	// GetUnderlyingDB returns the underlying *bun.DB, bun.Tx or *gorm.DB.
	GetUnderlyingDB() interface{}

	// DriverName returns the canonical name of the underlying driver:
	// "postgres", "sqlite" or "mssql".
	DriverName() string
}

// SelectQuery builds SELECT statements. Scan accepts either a pointer to a
// slice of structs (when Model was given) or *[]map[string]interface{}.
type SelectQuery interface {
	Model(model interface{}) SelectQuery
	Table(expr string, args ...interface{}) SelectQuery
	ColumnExpr(query string, args ...interface{}) SelectQuery
	Where(query string, args ...interface{}) SelectQuery
	LeftJoin(query string, args ...interface{}) SelectQuery
	OrderExpr(order string, args ...interface{}) SelectQuery
	Limit(n int) SelectQuery
	Offset(n int) SelectQuery
	Distinct() SelectQuery

	Scan(ctx context.Context, dest interface{}) error
	Count(ctx context.Context) (int, error)
	Exists(ctx context.Context) (bool, error)
}

// InsertQuery inserts a model and fills its primary key back.
type InsertQuery interface {
	Model(model interface{}) InsertQuery
	Table(table string) InsertQuery
	Value(column string, value interface{}) InsertQuery

	Exec(ctx context.Context) (Result, error)
}

// UpdateQuery updates a model. WherePK updates every column of the model by
// its primary key.
type UpdateQuery interface {
	Model(model interface{}) UpdateQuery
	Table(table string) UpdateQuery
	Set(column string, value interface{}) UpdateQuery
	Where(query string, args ...interface{}) UpdateQuery
	WherePK() UpdateQuery

	Exec(ctx context.Context) (Result, error)
}

// DeleteQuery deletes rows of a model.
type DeleteQuery interface {
	Model(model interface{}) DeleteQuery
	Where(query string, args ...interface{}) DeleteQuery

	Exec(ctx context.Context) (Result, error)
}

// Result reports the outcome of a write.
type Result interface {
	RowsAffected() int64
	LastInsertId() (int64, error)
}

// Router registers handlers on a concrete HTTP router. Patterns use
// {name} placeholders for path parameters.
type Router interface {
	HandleFunc(pattern string, handler HTTPHandlerFunc) RouteRegistration
}

// RouteRegistration binds a registered pattern to HTTP methods.
type RouteRegistration interface {
	Methods(methods ...string) RouteRegistration
}

// Request is an incoming request as seen through a router adapter.
type Request interface {
	Method() string
	URL() string
	Header(key string) string
	Body() ([]byte, error)
	PathParam(key string) string
	QueryParam(key string) string
	AllQueryParams() map[string]string
	UnderlyingRequest() *http.Request
}

type ResponseWriter interface {
	SetHeader(key, value string)
	WriteHeader(statusCode int)
	Write(data []byte) (int, error)
	UnderlyingResponseWriter() http.ResponseWriter
}

// HTTPHandlerFunc handles one request through the router-neutral wrappers.
type HTTPHandlerFunc func(ResponseWriter, Request)
