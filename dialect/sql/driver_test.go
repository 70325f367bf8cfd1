package sql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/storm/dialect"
)

func TestDriver_Dialect(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"sqlite", dialect.SQLite},
		{"postgres", dialect.Postgres},
		{"postgres-otel", dialect.Postgres},
		{"mysql", dialect.MySQL},
		{"duckdb", "duckdb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewDriver(tt.name, Conn{}).Dialect())
		})
	}
}

func TestConn_Exec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.SQLite, db)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM t").WillReturnResult(sqlmock.NewResult(0, 2))
	var res sql.Result
	require.NoError(t, drv.Exec(ctx, "DELETE FROM t", []any{}, &res))
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mock.ExpectExec("UPDATE t").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, drv.Exec(ctx, "UPDATE t SET a = ?", []any{1}, nil))

	assert.ErrorContains(t, drv.Exec(ctx, "x", "not-a-slice", nil), "expect []any for args")
	assert.ErrorContains(t, drv.Exec(ctx, "x", []any{}, new(int)), "expect *sql.Result")

	mock.ExpectClose()
	require.NoError(t, drv.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_Query(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.SQLite, db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	rows := &Rows{}
	require.NoError(t, drv.Query(ctx, "SELECT 1", []any{}, rows))
	n, err := ScanInt(rows)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, rows.Close())

	assert.ErrorContains(t, drv.Query(ctx, "x", []any{}, new(int)), "expect *sql.Rows")
	assert.ErrorContains(t, drv.Query(ctx, "x", nil, rows), "expect []any for args")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriver_DBOnTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	drv := NewDriver(dialect.SQLite, Conn{tx})
	assert.Nil(t, drv.DB())
	assert.NoError(t, drv.Close())
}
