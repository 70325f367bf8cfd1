package storm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/storm"
)

var bookInfo = &storm.EntityInfo{
	Name:  "Book",
	Table: "books",
	Columns: []storm.ColumnInfo{
		{Field: "ID", Column: "id", Type: "bigint", PrimaryKey: true},
		{Field: "AuthorID", Column: "author_id", Type: "bigint"},
		{Field: "Title", Column: "title", Type: "varchar(255)"},
		{Field: "Price", Column: "price", Type: "real", Lossy: "float64 stored as real"},
	},
}

func TestEntityInfo(t *testing.T) {
	assert.Equal(t, []string{"id", "author_id", "title", "price"}, bookInfo.ColumnNames())
	assert.Equal(t, []string{"id"}, bookInfo.PrimaryKey())

	c, ok := bookInfo.Column("title")
	require.True(t, ok)
	assert.Equal(t, "Title", c.Field)
	_, ok = bookInfo.Column("missing")
	assert.False(t, ok)

	lossy := bookInfo.LossyColumns()
	require.Len(t, lossy, 1)
	assert.Equal(t, "price", lossy[0].Column)
}

func TestRegistry(t *testing.T) {
	author := &storm.EntityInfo{Name: "Author", Table: "authors"}
	r := storm.NewRegistry("abc123", bookInfo, author)

	assert.Equal(t, "abc123", r.Fingerprint())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"Author", "Book"}, r.Names())

	e, ok := r.Lookup("Book")
	require.True(t, ok)
	assert.Equal(t, "books", e.Table)
	_, ok = r.Lookup("Tag")
	assert.False(t, ok)

	// Names returns a copy.
	names := r.Names()
	names[0] = "X"
	assert.Equal(t, []string{"Author", "Book"}, r.Names())

	assert.Panics(t, func() { storm.NewRegistry("", author, author) })
}
