// Package dialect holds the per-engine SQL differences used when building
// queries and procedure calls. A Strategy is chosen once with New.
package dialect

import (
	"fmt"
	"strings"

	"github.com/bitechdev/SimplifySpec/pkg/common"
)

// Engine names a supported storage engine.
type Engine string

const (
	Postgres  Engine = "postgres"
	SQLServer Engine = "mssql"
	SQLite    Engine = "sqlite"
)

// Strategy is the capability set that differs between engines.
type Strategy interface {
	Engine() Engine

	// Quote quotes a single identifier.
	Quote(ident string) string

	// QuoteTable quotes a table name that may carry a schema ("schema.table").
	QuoteTable(name string) string

	// ILike returns a case-insensitive LIKE predicate comparing expr with a
	// '?' placeholder.
	ILike(expr string) string

	// Concat joins SQL expressions as a string concatenation.
	Concat(parts ...string) string

	// ProcedureCall returns the statement calling a stored procedure with
	// one '?' placeholder per parameter.
	ProcedureCall(name string, params []string) (string, error)

	// ProcedureParams returns the query and arguments that list the input
	// parameter names of a procedure, in call order.
	ProcedureParams(name string) (string, []interface{}, error)
}

// ParseEngine maps a configured engine or driver name to an Engine.
func ParseEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg", "pgx":
		return Postgres, nil
	case "mssql", "sqlserver":
		return SQLServer, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	subject := name
	if subject == "" {
		subject = "<none>"
	}
	return "", &common.UnsupportedConfigurationError{Subject: "engine " + subject}
}

// New returns the Strategy for engine.
func New(engine Engine) (Strategy, error) {
	switch engine {
	case Postgres:
		return postgresStrategy{}, nil
	case SQLServer:
		return sqlServerStrategy{}, nil
	case SQLite:
		return sqliteStrategy{}, nil
	default:
		return nil, &common.UnsupportedConfigurationError{Subject: fmt.Sprintf("engine %q", string(engine))}
	}
}

// ForDatabase picks the Strategy matching db's driver.
func ForDatabase(db common.Database) (Strategy, error) {
	engine, err := ParseEngine(db.DriverName())
	if err != nil {
		return nil, err
	}
	return New(engine)
}

func quoteWith(ident, open, close string) string {
	escaped := strings.ReplaceAll(ident, close, close+close)
	return open + escaped + close
}

func quoteTableWith(s Strategy, name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = s.Quote(p)
	}
	return strings.Join(parts, ".")
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type postgresStrategy struct{}

func (postgresStrategy) Engine() Engine { return Postgres }

func (postgresStrategy) Quote(ident string) string { return quoteWith(ident, `"`, `"`) }

func (s postgresStrategy) QuoteTable(name string) string { return quoteTableWith(s, name) }

func (postgresStrategy) ILike(expr string) string { return expr + " ILIKE ?" }

func (postgresStrategy) Concat(parts ...string) string {
	return "(" + strings.Join(parts, " || ") + ")"
}

func (postgresStrategy) ProcedureCall(name string, params []string) (string, error) {
	return fmt.Sprintf("SELECT * FROM %s(%s)", name, placeholders(len(params))), nil
}

func (postgresStrategy) ProcedureParams(name string) (string, []interface{}, error) {
	q := `SELECT pg_catalog.pg_get_function_arguments(p.oid) AS arguments
FROM pg_catalog.pg_proc p
WHERE p.proname = ? AND pg_catalog.pg_function_is_visible(p.oid)
LIMIT 1`
	return q, []interface{}{strings.ToLower(name)}, nil
}

type sqlServerStrategy struct{}

func (sqlServerStrategy) Engine() Engine { return SQLServer }

func (sqlServerStrategy) Quote(ident string) string { return quoteWith(ident, "[", "]") }

func (s sqlServerStrategy) QuoteTable(name string) string { return quoteTableWith(s, name) }

func (sqlServerStrategy) ILike(expr string) string { return "LOWER(" + expr + ") LIKE LOWER(?)" }

func (sqlServerStrategy) Concat(parts ...string) string {
	return "(" + strings.Join(parts, " + ") + ")"
}

func (sqlServerStrategy) ProcedureCall(name string, params []string) (string, error) {
	var b strings.Builder
	b.WriteString("EXEC ")
	b.WriteString(name)
	for i, p := range params {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(" ")
		if !strings.HasPrefix(p, "@") {
			p = "@" + p
		}
		b.WriteString(p)
		b.WriteString(" = ?")
	}
	return b.String(), nil
}

func (sqlServerStrategy) ProcedureParams(name string) (string, []interface{}, error) {
	q := `SELECT PARAMETER_NAME AS parameter_name FROM INFORMATION_SCHEMA.PARAMETERS
WHERE SPECIFIC_NAME = ? AND PARAMETER_MODE = ?
ORDER BY ORDINAL_POSITION`
	return q, []interface{}{name, "IN"}, nil
}

type sqliteStrategy struct{}

func (sqliteStrategy) Engine() Engine { return SQLite }

func (sqliteStrategy) Quote(ident string) string { return quoteWith(ident, `"`, `"`) }

func (s sqliteStrategy) QuoteTable(name string) string { return quoteTableWith(s, name) }

func (sqliteStrategy) ILike(expr string) string { return "LOWER(" + expr + ") LIKE LOWER(?)" }

func (sqliteStrategy) Concat(parts ...string) string {
	return "(" + strings.Join(parts, " || ") + ")"
}

func (sqliteStrategy) ProcedureCall(string, []string) (string, error) {
	return "", &common.UnsupportedConfigurationError{Subject: "stored procedures on sqlite"}
}

func (sqliteStrategy) ProcedureParams(string) (string, []interface{}, error) {
	return "", nil, &common.UnsupportedConfigurationError{Subject: "stored procedures on sqlite"}
}

// Placeholders returns n comma separated '?' placeholders, for IN lists.
func Placeholders(n int) string {
	return placeholders(n)
}
