package sql

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/storm/dialect"
)

func TestStatementKind(t *testing.T) {
	tests := map[string]string{
		"SELECT a FROM t":               KindSelect,
		"  select a from t":             KindSelect,
		"WITH x AS (SELECT 1) SELECT *": KindSelect,
		"INSERT INTO t VALUES (1)":      KindInsert,
		"UPDATE t SET a = 1":            KindUpdate,
		"DELETE FROM t":                 KindDelete,
		"CREATE TABLE t (a int)":        KindDDL,
		"DROP TABLE IF EXISTS t":        KindDDL,
		"PRAGMA foreign_keys = on":      KindOther,
		"":                              KindOther,
	}
	for query, kind := range tests {
		assert.Equal(t, kind, StatementKind(query), query)
	}
}

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var slow []string
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db),
		WithSlowThreshold(0),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)
	ctx := context.Background()

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"a"}))
	rows := &Rows{}
	require.NoError(t, drv.Query(ctx, "SELECT a FROM t", []any{}, rows))
	require.NoError(t, rows.Close())

	mock.ExpectExec("DELETE").WillReturnError(errors.New("locked"))
	require.Error(t, drv.Exec(ctx, "DELETE FROM t", []any{}, nil))
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, drv.Exec(ctx, "DELETE FROM t WHERE a = ?", []any{1}, nil))

	s := drv.Stats()
	require.Len(t, s, 2)
	assert.Equal(t, KindDelete, s[0].Kind, "sorted by kind")
	assert.Equal(t, int64(2), s.Kind(KindDelete).Count)
	assert.Equal(t, int64(1), s.Kind(KindDelete).Errors)
	assert.Equal(t, int64(1), s.Kind(KindSelect).Count)
	assert.Zero(t, s.Kind(KindInsert).Count)
	total := s.Total()
	assert.Equal(t, int64(3), total.Count)
	assert.Equal(t, int64(3), total.Slow)
	assert.Equal(t, []string{"SELECT a FROM t", "DELETE FROM t", "DELETE FROM t WHERE a = ?"}, slow)
	assert.Contains(t, s.String(), "statements=3 errors=1 slow=3")

	var out bytes.Buffer
	s.Format(&out)
	assert.Contains(t, out.String(), "DELETE")
	assert.Contains(t, out.String(), "TOTAL")

	drv.Reset()
	assert.Empty(t, drv.Stats())
	assert.Zero(t, KindStats{}.Avg())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsDriver_SlowLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db), WithSlowThreshold(time.Hour), WithSlowQueryLog(logger))
	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, drv.Exec(context.Background(), "UPDATE t SET a = 1", []any{}, nil))
	assert.Empty(t, logs.String())
	assert.Zero(t, drv.Stats().Total().Slow)

	drv = NewStatsDriver(OpenDB(dialect.SQLite, db), WithSlowThreshold(-1), WithSlowQueryLog(logger))
	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, drv.Exec(context.Background(), "UPDATE t SET a = 2", []any{}, nil))
	assert.Contains(t, logs.String(), "slow statement")
	assert.Contains(t, logs.String(), "kind=UPDATE")
	require.NoError(t, mock.ExpectationsWereMet())
}
