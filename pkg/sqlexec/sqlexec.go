// Package sqlexec calls stored procedures with parameters taken from a
// request body. Parameter names are discovered from the engine catalog and
// matched to body keys ignoring case, underscores and '@' or 'p_' prefixes.
package sqlexec

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/dialect"
	"github.com/bitechdev/SimplifySpec/pkg/logger"
	"github.com/bitechdev/SimplifySpec/pkg/tracing"
)

var procedureName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Executor runs stored procedures on one database.
type Executor struct {
	db      common.Database
	s       dialect.Strategy
	allowed map[string]bool
}

// New creates an executor with the dialect of db's driver.
func New(db common.Database) (*Executor, error) {
	s, err := dialect.ForDatabase(db)
	if err != nil {
		return nil, err
	}
	return NewWithStrategy(db, s), nil
}

// NewWithStrategy creates an executor with an explicit dialect.
func NewWithStrategy(db common.Database, s dialect.Strategy) *Executor {
	return &Executor{db: db, s: s}
}

// Allow restricts the callable procedures to names. Without a call to Allow
// every procedure can be called.
func (e *Executor) Allow(names ...string) *Executor {
	if e.allowed == nil {
		e.allowed = make(map[string]bool, len(names))
	}
	for _, n := range names {
		e.allowed[strings.ToLower(n)] = true
	}
	return e
}

// Call executes name with params and returns its result rows. Parameters
// the procedure declares but params lacks are passed as NULL on positional
// engines and omitted on engines with named arguments.
func (e *Executor) Call(ctx context.Context, name string, params map[string]interface{}) (rows []map[string]interface{}, err error) {
	ctx, span := tracing.StartSpan(ctx, "sqlexec.call", attribute.String("procedure", name))
	defer func() { tracing.EndSpan(span, err) }()

	if !procedureName.MatchString(name) {
		return nil, common.NewParseError("invalid procedure name %q", name)
	}
	if e.allowed != nil && !e.allowed[strings.ToLower(name)] {
		return nil, common.NewParseError("unknown procedure %s", name)
	}

	declared, err := e.parameters(ctx, name)
	if err != nil {
		return nil, err
	}
	names, values := bind(declared, params, e.s.Engine() == dialect.Postgres)

	stmt, err := e.s.ProcedureCall(name, names)
	if err != nil {
		return nil, err
	}
	logger.Debug("Calling procedure %s with %d parameters", name, len(values))
	if err := e.db.Query(ctx, &rows, stmt, values...); err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	return rows, nil
}

// parameters lists the input parameters of name in call order.
func (e *Executor) parameters(ctx context.Context, name string) ([]string, error) {
	q, args, err := e.s.ProcedureParams(name)
	if err != nil {
		return nil, err
	}
	var found []map[string]interface{}
	if err := e.db.Query(ctx, &found, q, args...); err != nil {
		return nil, fmt.Errorf("parameters of %s: %w", name, err)
	}
	if len(found) == 0 {
		if e.s.Engine() == dialect.Postgres {
			return nil, common.NewParseError("unknown procedure %s", name)
		}
		return nil, nil
	}
	if e.s.Engine() == dialect.Postgres {
		return postgresArguments(cast.ToString(found[0]["arguments"])), nil
	}
	out := make([]string, 0, len(found))
	for _, row := range found {
		if n := cast.ToString(row["parameter_name"]); n != "" {
			out = append(out, n)
		}
	}
	return out, nil
}

// postgresArguments extracts the input argument names from the output of
// pg_get_function_arguments, e.g. "p_id integer, OUT total bigint".
func postgresArguments(list string) []string {
	var out []string
	for _, arg := range splitTopLevel(list) {
		fields := strings.Fields(arg)
		if len(fields) == 0 {
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "OUT", "TABLE":
			continue
		case "IN", "INOUT", "VARIADIC":
			fields = fields[1:]
		}
		if len(fields) < 2 {
			continue
		}
		out = append(out, fields[0])
	}
	return out
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// normalize reduces a parameter or body key to its comparable form.
func normalize(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, "@"))
	name = strings.TrimPrefix(name, "p_")
	return strings.ReplaceAll(name, "_", "")
}

// bind orders params by the declared parameters. positional keeps every
// declared parameter, binding NULL for missing ones.
func bind(declared []string, params map[string]interface{}, positional bool) ([]string, []interface{}) {
	byKey := make(map[string]interface{}, len(params))
	for k, v := range params {
		byKey[normalize(k)] = v
	}
	var names []string
	var values []interface{}
	for _, d := range declared {
		v, ok := byKey[normalize(d)]
		if !ok && !positional {
			continue
		}
		names = append(names, d)
		values = append(values, v)
	}
	return names, values
}
