package sql

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/storm"
	"github.com/syssam/storm/dialect"
)

// book mirrors the shape of a generated entity and row mapper.
type book struct {
	ID        int64
	AuthorID  int64
	Title     string
	Subtitle  *string
	Price     float64
	Published bool
	Timeout   time.Duration
}

var bookInfo = &storm.EntityInfo{
	Name:  "Book",
	Table: "books",
	Columns: []storm.ColumnInfo{
		{Field: "ID", Column: "id", Type: "bigint", PrimaryKey: true},
		{Field: "AuthorID", Column: "author_id", Type: "bigint"},
		{Field: "Title", Column: "title", Type: "varchar(255)"},
		{Field: "Subtitle", Column: "subtitle", Type: "varchar(255)", Nullable: true},
		{Field: "Price", Column: "price", Type: "double"},
		{Field: "Published", Column: "published", Type: "boolean"},
		{Field: "Timeout", Column: "timeout", Type: "bigint"},
	},
}

type bookMapper struct{}

func (bookMapper) Columns() []string {
	return []string{"id", "author_id", "title", "subtitle", "price", "published", "timeout"}
}

func (bookMapper) Dest(e *book) []any {
	return []any{&e.ID, &e.AuthorID, &e.Title, &e.Subtitle, &e.Price, &e.Published, (*int64)(&e.Timeout)}
}

func (bookMapper) Values(e *book) []any {
	return []any{e.ID, e.AuthorID, e.Title, e.Subtitle, e.Price, e.Published, int64(e.Timeout)}
}

const booksDDL = "CREATE TABLE `books` (`id` bigint NOT NULL, `author_id` bigint NOT NULL, `title` varchar(255) NOT NULL, " +
	"`subtitle` varchar(255) NULL, `price` double NOT NULL, `published` boolean NOT NULL, `timeout` bigint NOT NULL, PRIMARY KEY (`id`));"

func openSQLite(t *testing.T) *Driver {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	drv := OpenDB(dialect.SQLite, db)
	require.NoError(t, NewAdmin(drv).Apply(context.Background(), booksDDL))
	return drv
}

func ptr[T any](v T) *T { return &v }

// ============================================================================
// Round trip against SQLite
// ============================================================================

func TestTable_RoundTrip(t *testing.T) {
	ctx := context.Background()
	books := NewTable(openSQLite(t), bookInfo, bookMapper{})

	want := &book{ID: 1, AuthorID: 7, Title: "Dune", Subtitle: ptr("Part one"), Price: 9.99, Published: true, Timeout: 3 * time.Second}
	require.NoError(t, books.Insert(ctx, want))

	got, err := books.Get(ctx, int64(1))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Nullable columns round trip as nil.
	noSub := &book{ID: 2, AuthorID: 7, Title: "Children of Dune"}
	require.NoError(t, books.Insert(ctx, noSub))
	got, err = books.Get(ctx, int64(2))
	require.NoError(t, err)
	assert.Nil(t, got.Subtitle)
	assert.Equal(t, noSub, got)
}

func TestTable_Queries(t *testing.T) {
	ctx := context.Background()
	books := NewTable(openSQLite(t), bookInfo, bookMapper{})
	require.NoError(t, books.InsertBatch(ctx, []*book{
		{ID: 1, AuthorID: 1, Title: "A"},
		{ID: 2, AuthorID: 1, Title: "B"},
		{ID: 3, AuthorID: 2, Title: "C"},
	}))
	require.NoError(t, books.InsertBatch(ctx, nil))

	n, err := books.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = books.Count(ctx, EQ("author_id", 1))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := books.All(ctx, books.Select().OrderBy(Desc("id")))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "C", all[0].Title)

	page, err := books.Page(ctx, books.Select().OrderBy(Asc("id")), 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].ID)

	first, err := books.First(ctx, books.Select().Where(EQ("author_id", 2)))
	require.NoError(t, err)
	assert.Equal(t, "C", first.Title)

	_, err = books.First(ctx, books.Select().Where(EQ("author_id", 9)))
	assert.True(t, storm.IsNotFound(err))

	_, err = books.Only(ctx, books.Select().Where(EQ("author_id", 1)))
	assert.True(t, storm.IsNotSingular(err))

	only, err := books.Only(ctx, books.Select().Where(EQ("title", "B")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), only.ID)

	ok, err := books.Exists(ctx, EQ("title", "A"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = books.Exists(ctx, EQ("title", "Z"))
	require.NoError(t, err)
	assert.False(t, ok)

	var titles []string
	err = books.Iterate(ctx, books.Select().OrderBy(Asc("id")), func(b *book) error {
		titles = append(titles, b.Title)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, titles)

	stop := errors.New("stop")
	err = books.Iterate(ctx, books.Select(), func(*book) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestTable_CountSelect(t *testing.T) {
	ctx := context.Background()
	books := NewTable(openSQLite(t), bookInfo, bookMapper{})
	require.NoError(t, books.InsertBatch(ctx, []*book{
		{ID: 1, AuthorID: 1, Title: "A"},
		{ID: 2, AuthorID: 1, Title: "B"},
		{ID: 3, AuthorID: 2, Title: "C"},
		{ID: 4, AuthorID: 2, Title: "D"},
		{ID: 5, AuthorID: 3, Title: "E"},
	}))
	tests := []struct {
		name string
		sel  *Selector
		want int
	}{
		{name: "limit and offset", sel: books.Select().OrderBy(Asc("id")).Limit(2).Offset(1), want: 2},
		{name: "limit", sel: books.Select().Limit(2), want: 2},
		{name: "limit past the end", sel: books.Select().Limit(2).Offset(4), want: 1},
		{name: "offset", sel: books.Select().Offset(3), want: 2},
		{name: "distinct", sel: books.Select().Select("author_id").Distinct(), want: 3},
		{name: "group by", sel: books.Select().Select("author_id").GroupBy("author_id").Having(GT("COUNT(*)", 1)), want: 2},
		{name: "union", sel: books.Select().Select("author_id").Where(LT("id", 3)).Union(books.Select().Select("author_id").Where(EQ("id", 5))), want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := books.CountSelect(ctx, tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}

	t.Run("UnionOperandError", func(t *testing.T) {
		_, err := books.CountSelect(ctx, books.Select().Union(books.Select().Limit(1)))
		assert.ErrorContains(t, err, "union operand")
	})
}

func TestTable_ScanGroupBy(t *testing.T) {
	ctx := context.Background()
	books := NewTable(openSQLite(t), bookInfo, bookMapper{})
	require.NoError(t, books.InsertBatch(ctx, []*book{
		{ID: 1, AuthorID: 1, Title: "A", Price: 2},
		{ID: 2, AuthorID: 1, Title: "B", Price: 3},
		{ID: 3, AuthorID: 2, Title: "C", Price: 4},
	}))
	type total struct {
		author int64
		count  int
		price  float64
	}
	var got []total
	s := books.Select().Select("author_id", "COUNT(*)", "SUM(price)").GroupBy("author_id").OrderBy(Asc("author_id"))
	err := books.Scan(ctx, s, func(rows ColumnScanner) error {
		for rows.Next() {
			var v total
			if err := rows.Scan(&v.author, &v.count, &v.price); err != nil {
				return err
			}
			got = append(got, v)
		}
		return rows.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, []total{{1, 2, 5}, {2, 1, 4}}, got)

	var ids []int64
	err = books.Scan(ctx, books.Select().Select("author_id").Distinct().OrderBy(Desc("author_id")), func(rows ColumnScanner) (err error) {
		ids, err = ScanValues[int64](rows)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, ids)
}

func TestTable_Mutations(t *testing.T) {
	ctx := context.Background()
	books := NewTable(openSQLite(t), bookInfo, bookMapper{})
	b := &book{ID: 1, AuthorID: 1, Title: "A"}
	require.NoError(t, books.Insert(ctx, b))

	t.Run("InsertIgnore", func(t *testing.T) {
		inserted, err := books.InsertIgnore(ctx, &book{ID: 1, Title: "dup"})
		require.NoError(t, err)
		assert.False(t, inserted)
		inserted, err = books.InsertIgnore(ctx, &book{ID: 2, Title: "new"})
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("DuplicateKey", func(t *testing.T) {
		err := books.Insert(ctx, &book{ID: 1, Title: "dup"})
		require.Error(t, err)
		assert.True(t, storm.IsConstraintError(err))
		assert.True(t, storm.IsQueryError(err))
		assert.True(t, IsUniqueConstraintError(err))
	})

	t.Run("Update", func(t *testing.T) {
		b.Title = "A2"
		b.Subtitle = ptr("sub")
		n, err := books.Update(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		got, err := books.Get(ctx, int64(1))
		require.NoError(t, err)
		assert.Equal(t, b, got)
	})

	t.Run("UpdateWhere", func(t *testing.T) {
		n, err := books.UpdateWhere(ctx, Update("").Set("price", 1.5).Where(EQ("author_id", 1)))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		n, err = books.UpdateWhere(ctx, Update(""))
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Delete", func(t *testing.T) {
		n, err := books.DeleteKey(ctx, int64(2))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		_, err = books.Get(ctx, int64(2))
		assert.True(t, storm.IsNotFound(err))
		var nf *storm.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, int64(2), nf.ID())

		n, err = books.Delete(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("KeyArity", func(t *testing.T) {
		_, err := books.Get(ctx, 1, 2)
		assert.ErrorContains(t, err, "key has 1 columns, got 2 values")
	})
}

func TestTable_InsertOmit(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)
	require.NoError(t, NewAdmin(drv).Exec(ctx, "CREATE TABLE `notes` (`id` bigint NOT NULL, `author_id` bigint NOT NULL, "+
		"`title` varchar(255) NOT NULL DEFAULT 'untitled', `subtitle` varchar(255) NULL, `price` double NOT NULL DEFAULT 1.5, "+
		"`published` boolean NOT NULL, `timeout` bigint NOT NULL, PRIMARY KEY (`id`))"))
	info := *bookInfo
	info.Table = "notes"
	notes := NewTable(drv, &info, bookMapper{})

	require.NoError(t, notes.InsertOmit(ctx, &book{ID: 1, Title: "ignored", Subtitle: ptr("kept")}, "title", "price"))
	got, err := notes.Get(ctx, int64(1))
	require.NoError(t, err)
	assert.Equal(t, "untitled", got.Title)
	assert.Equal(t, 1.5, got.Price)
	assert.Equal(t, ptr("kept"), got.Subtitle)

	require.NoError(t, notes.InsertOmit(ctx, &book{ID: 2, Title: "plain"}))
	got, err = notes.Get(ctx, int64(2))
	require.NoError(t, err)
	assert.Equal(t, "plain", got.Title)
}

// ============================================================================
// Row mapping failures
// ============================================================================

func TestTable_MappingError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	books := NewTable(OpenDB(dialect.SQLite, db), bookInfo, bookMapper{})

	t.Run("ColumnCount", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `author_id`, `title`, `subtitle`, `price`, `published`, `timeout` FROM `books`")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(1, "A"))
		_, err := books.All(context.Background(), books.Select())
		require.Error(t, err)
		assert.True(t, storm.IsMappingError(err))
		assert.ErrorIs(t, err, storm.ErrMapping)
		assert.Contains(t, err.Error(), "expected 7 columns, got 2")
	})

	t.Run("ColumnOrder", func(t *testing.T) {
		mock.ExpectQuery("SELECT").
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id", "subtitle", "price", "published", "timeout"}))
		_, err := books.All(context.Background(), books.Select())
		var me *storm.MappingError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, "Book", me.Entity)
		assert.Contains(t, me.Message, `column 1 is "title", want "author_id"`)
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	books := NewTable(OpenDB(dialect.Postgres, db), bookInfo, bookMapper{})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "books" WHERE "author_id" = $1`)).
		WithArgs(3).
		WillReturnError(errors.New("relation does not exist"))
	_, err = books.Count(context.Background(), EQ("author_id", 3))
	var qe *storm.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "count", qe.Op)
	assert.Equal(t, []any{3}, qe.Args)
	assert.Contains(t, err.Error(), "Query:\n```\nSELECT COUNT(*)")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_MapperMismatchPanics(t *testing.T) {
	info := &storm.EntityInfo{Name: "Book", Table: "books", Columns: bookInfo.Columns[:2]}
	assert.Panics(t, func() { NewTable(nil, info, bookMapper{}) })
}
