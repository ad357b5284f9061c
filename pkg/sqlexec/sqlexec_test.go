package sqlexec

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/cast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mssqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/schema"

	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/common/adapters/database"
	"github.com/bitechdev/SimplifySpec/pkg/dialect"
)

func newMock(t *testing.T, d schema.Dialect) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	e, err := New(database.NewBunAdapter(bun.NewDB(sqldb, d)))
	require.NoError(t, err)
	return e, mock
}

func TestPostgresArguments(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"p_id integer", []string{"p_id"}},
		{"p_id integer, OUT total bigint, INOUT p_flag boolean", []string{"p_id", "p_flag"}},
		{"VARIADIC p_ids integer[], p_amount numeric(10,2) DEFAULT 0", []string{"p_ids", "p_amount"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, postgresArguments(tt.in))
		})
	}
}

func TestBind(t *testing.T) {
	params := map[string]interface{}{"userId": 3, "Name": "ann"}

	names, values := bind([]string{"p_user_id", "p_name", "p_extra"}, params, true)
	assert.Equal(t, []string{"p_user_id", "p_name", "p_extra"}, names)
	assert.Equal(t, []interface{}{3, "ann", nil}, values)

	names, values = bind([]string{"@UserID", "@Extra"}, params, false)
	assert.Equal(t, []string{"@UserID"}, names)
	assert.Equal(t, []interface{}{3}, values)
}

func TestCallPostgres(t *testing.T) {
	e, mock := newMock(t, pgdialect.New())
	mock.ExpectQuery(`pg_get_function_arguments`).
		WillReturnRows(sqlmock.NewRows([]string{"arguments"}).AddRow("p_id integer, p_name text"))
	mock.ExpectQuery(`SELECT \* FROM list_people\(7, 'x'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "ann"))

	rows, err := e.Call(context.Background(), "list_people", map[string]interface{}{"id": 7, "name": "x"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ann", cast.ToString(rows[0]["name"]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallPostgresUnknown(t *testing.T) {
	e, mock := newMock(t, pgdialect.New())
	mock.ExpectQuery(`pg_get_function_arguments`).
		WillReturnRows(sqlmock.NewRows([]string{"arguments"}))

	_, err := e.Call(context.Background(), "missing", nil)
	var perr *common.ParseError
	assert.ErrorAs(t, err, &perr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallSQLServer(t *testing.T) {
	e, mock := newMock(t, mssqldialect.New())
	mock.ExpectQuery(`INFORMATION_SCHEMA.PARAMETERS`).
		WillReturnRows(sqlmock.NewRows([]string{"parameter_name"}).AddRow("@UserID").AddRow("@Since"))
	mock.ExpectQuery(`EXEC usp_orders @UserID = 3`).
		WillReturnRows(sqlmock.NewRows([]string{"OrderID"}).AddRow(int64(11)))

	rows, err := e.Call(context.Background(), "usp_orders", map[string]interface{}{"user_id": 3})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 11, cast.ToInt64(rows[0]["OrderID"]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallRejectsNames(t *testing.T) {
	e, mock := newMock(t, pgdialect.New())
	e.Allow("list_people")

	_, err := e.Call(context.Background(), "drop table x;--", nil)
	var perr *common.ParseError
	assert.ErrorAs(t, err, &perr)

	_, err = e.Call(context.Background(), "other_proc", nil)
	assert.ErrorAs(t, err, &perr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLite(t *testing.T) {
	e := NewWithStrategy(nil, sqliteOnly(t))
	_, err := e.Call(context.Background(), "anything", nil)
	var cerr *common.UnsupportedConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func sqliteOnly(t *testing.T) dialect.Strategy {
	t.Helper()
	s, err := dialect.New(dialect.SQLite)
	require.NoError(t, err)
	return s
}
