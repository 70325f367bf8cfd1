package ddl

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/storm/compiler/gen"
	"github.com/syssam/storm/compiler/load"
	"github.com/syssam/storm/dialect"
	dsql "github.com/syssam/storm/dialect/sql"
)

func library() []*load.Schema {
	return []*load.Schema{
		{
			Name: "Author",
			Fields: []*load.Field{
				{Name: "id", Type: "int64", PrimaryKey: true},
				{Name: "name", Type: "string", Unique: true},
				{Name: "bio", Type: "*string", Nullable: true, Storage: "text"},
			},
		},
		{
			Name: "Book",
			Fields: []*load.Field{
				{Name: "id", Type: "int64", PrimaryKey: true},
				{Name: "authorId", Type: "int64", Ref: "Author.id"},
				{Name: "title", Type: "string", Default: "untitled"},
				{Name: "createdAt", Type: "time.Time", DefaultExpr: "CURRENT_TIMESTAMP"},
			},
			Relations: []*load.Relation{{Name: "tags", Kind: load.ManyToMany, Target: "Tag"}},
		},
		{
			Name: "Tag",
			Fields: []*load.Field{
				{Name: "id", Type: "int64", PrimaryKey: true},
				{Name: "label", Type: "string"},
			},
		},
	}
}

func graph(t *testing.T, name string, schemas []*load.Schema) *gen.Graph {
	t.Helper()
	cfg, err := gen.NewConfig(gen.WithPackage("example.com/app/entity"), gen.WithDialect(name))
	require.NoError(t, err)
	g, err := gen.NewGraph(cfg, schemas)
	require.NoError(t, err)
	return g
}

func TestTables(t *testing.T) {
	tables, err := Tables(graph(t, dialect.SQLite, library()))
	require.NoError(t, err)
	names := make([]string, len(tables))
	for i, tt := range tables {
		names[i] = tt.Name
	}
	assert.Equal(t, []string{"authors", "books", "tags", "book_tag"}, names)

	books := tables[1]
	require.Len(t, books.ForeignKeys, 1)
	fk := books.ForeignKeys[0]
	assert.Equal(t, "books_author_id_fkey", fk.Symbol)
	assert.Equal(t, "authors", fk.RefTable.Name)
	assert.Equal(t, "author_id", fk.Columns[0].Name)
	assert.Empty(t, string(fk.OnDelete))

	join := tables[3]
	require.Len(t, join.ForeignKeys, 2)
	for _, fk := range join.ForeignKeys {
		assert.EqualValues(t, "CASCADE", fk.OnDelete)
	}
	require.Len(t, join.PrimaryKey.Parts, 2)

	authors := tables[0]
	require.Len(t, authors.Indexes, 1)
	assert.True(t, authors.Indexes[0].Unique)
	bio, ok := authors.Column("bio")
	require.True(t, ok)
	assert.True(t, bio.Type.Null)
}

func TestStatements(t *testing.T) {
	t.Run("SQLite", func(t *testing.T) {
		stmts, err := Statements(graph(t, dialect.SQLite, library()))
		require.NoError(t, err)
		script := strings.Join(stmts, "\n")
		assert.Contains(t, script, "CREATE TABLE `authors`")
		assert.Contains(t, script, "CREATE UNIQUE INDEX `authors_name_key`")
		assert.Contains(t, script, "FOREIGN KEY (`author_id`) REFERENCES `authors`")
		assert.Contains(t, script, "DEFAULT 'untitled'")
		assert.Contains(t, script, "CURRENT_TIMESTAMP")
		assert.Contains(t, script, "ON DELETE CASCADE")
		assert.Less(t, strings.Index(script, "`authors`"), strings.Index(script, "CREATE TABLE `books`"))
	})
	t.Run("Postgres", func(t *testing.T) {
		stmts, err := Statements(graph(t, dialect.Postgres, library()))
		require.NoError(t, err)
		script := strings.Join(stmts, "\n")
		assert.Contains(t, script, `CREATE TABLE "books"`)
		assert.Contains(t, script, `"bio" text`)
		assert.Contains(t, script, `REFERENCES "authors"`)
	})
	t.Run("MySQL", func(t *testing.T) {
		stmts, err := Statements(graph(t, dialect.MySQL, library()))
		require.NoError(t, err)
		assert.Contains(t, strings.Join(stmts, "\n"), "CREATE TABLE `tags`")
	})
}

func TestStatements_Cycle(t *testing.T) {
	schemas := []*load.Schema{
		{Name: "Team", Fields: []*load.Field{
			{Name: "id", Type: "int64", PrimaryKey: true},
			{Name: "leadId", Type: "*int64", Nullable: true, Ref: "Member.id"},
		}},
		{Name: "Member", Fields: []*load.Field{
			{Name: "id", Type: "int64", PrimaryKey: true},
			{Name: "teamId", Type: "int64", Ref: "Team.id"},
		}},
	}
	for _, name := range []string{dialect.SQLite, dialect.Postgres, dialect.MySQL} {
		t.Run(name, func(t *testing.T) {
			stmts, err := Statements(graph(t, name, schemas))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, len(stmts), 2)
		})
	}
}

func TestRender_AppliesOnSQLite(t *testing.T) {
	g := graph(t, dialect.SQLite, library())
	arts, err := gen.Emit(g, New())
	require.NoError(t, err)
	require.Len(t, arts, 1)
	a := arts[0]
	assert.Equal(t, "schema.sql", a.Path)
	assert.Equal(t, gen.LangSQL, a.Language)
	assert.True(t, strings.HasPrefix(string(a.Content), "-- Code generated by storm, DO NOT EDIT.\n"))

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()
	drv := dsql.OpenDB(dialect.SQLite, db)
	ctx := context.Background()
	require.NoError(t, dsql.NewAdmin(drv).Apply(ctx, string(a.Content)))
	require.NoError(t, dsql.NewAdmin(drv).Exec(ctx,
		"INSERT INTO `authors` (`id`, `name`) VALUES (1, 'Le Guin')",
		"INSERT INTO `books` (`id`, `author_id`) VALUES (1, 1)",
	))
	var title string
	require.NoError(t, db.QueryRow("SELECT `title` FROM `books` WHERE `id` = 1").Scan(&title))
	assert.Equal(t, "untitled", title)

	again, err := gen.Emit(graph(t, dialect.SQLite, library()), New())
	require.NoError(t, err)
	assert.Equal(t, arts, again)
}

func TestScript(t *testing.T) {
	got := Script("// line one\n// line two", []string{"CREATE TABLE a (id int)", "CREATE TABLE b (id int)"})
	assert.Equal(t, "-- line one\n-- line two\n\nCREATE TABLE a (id int);\n\nCREATE TABLE b (id int);\n", got)
	assert.Len(t, dsql.SplitStatements(got), 2)
}
