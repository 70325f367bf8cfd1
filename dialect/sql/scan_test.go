package sql

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/storm"
)

func TestCheckColumns(t *testing.T) {
	tests := []struct {
		name     string
		expected []string
		actual   []string
		wantErr  string
	}{
		{name: "match", expected: []string{"id", "title"}, actual: []string{"id", "title"}},
		{name: "case folded", expected: []string{"id", "title"}, actual: []string{"ID", "TITLE"}},
		{name: "fewer", expected: []string{"id", "title"}, actual: []string{"id"}, wantErr: "expected 2 columns, got 1"},
		{name: "more", expected: []string{"id"}, actual: []string{"id", "title"}, wantErr: "expected 1 columns, got 2"},
		{name: "order", expected: []string{"id", "title"}, actual: []string{"title", "id"}, wantErr: `column 0 is "title", want "id"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckColumns("Book", tt.expected, tt.actual)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, storm.IsMappingError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// shortMapper returns fewer scan destinations than columns.
type shortMapper struct{ bookMapper }

func (shortMapper) Dest(e *book) []any { return []any{&e.ID} }

func TestScanAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := bookMapper{}.Columns()
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(cols).
		AddRow(1, 2, "A", nil, 1.5, true, 10).
		AddRow(2, 2, "B", "sub", 2.5, false, 0))
	rows, err := db.Query("SELECT")
	require.NoError(t, err)
	books, err := ScanAll[book](rows, "Book", bookMapper{})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, &book{ID: 1, AuthorID: 2, Title: "A", Price: 1.5, Published: true, Timeout: 10}, books[0])
	require.NotNil(t, books[1].Subtitle)
	assert.Equal(t, "sub", *books[1].Subtitle)

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 2, "A", nil, 1.5, true, 10))
	rows, err = db.Query("SELECT")
	require.NoError(t, err)
	_, err = ScanAll[book](rows, "Book", shortMapper{})
	assert.True(t, storm.IsMappingError(err))
	assert.Contains(t, err.Error(), "mapper returned 1 scan destinations")
}

func TestScanInt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("A").WillReturnRows(sqlmock.NewRows([]string{"a", "b"}).AddRow(1, 2))
	rows, err := db.Query("A")
	require.NoError(t, err)
	_, err = ScanInt(rows)
	assert.True(t, storm.IsMappingError(err))

	mock.ExpectQuery("B").WillReturnRows(sqlmock.NewRows([]string{"n"}))
	rows, err = db.Query("B")
	require.NoError(t, err)
	_, err = ScanInt(rows)
	assert.ErrorContains(t, err, "no rows")

	mock.ExpectQuery("C").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1).AddRow(2))
	rows, err = db.Query("C")
	require.NoError(t, err)
	_, err = ScanInt(rows)
	assert.ErrorContains(t, err, "more than one row")
}

func TestScanValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(5))
	rows, err := db.Query("SELECT")
	require.NoError(t, err)
	ids, err := ScanValues[int64](rows)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5}, ids)
}
