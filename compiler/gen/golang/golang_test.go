package golang

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/storm/compiler/gen"
	"github.com/syssam/storm/compiler/load"
	"github.com/syssam/storm/dialect"
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
			Relations: []*load.Relation{{Name: "books", Kind: load.OneToMany, Target: "Book", Inverse: "author"}},
		},
		{
			Name: "Book",
			Fields: []*load.Field{
				{Name: "id", Type: "int64", PrimaryKey: true},
				{Name: "authorId", Type: "int64", Ref: "Author.id"},
				{Name: "title", Type: "string", Default: "untitled"},
				{Name: "createdAt", Type: "time.Time", DefaultExpr: "CURRENT_TIMESTAMP"},
				{Name: "timeout", Type: "time.Duration"},
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

func graph(t *testing.T, schemas []*load.Schema) *gen.Graph {
	t.Helper()
	cfg, err := gen.NewConfig(gen.WithPackage("example.com/app/entity"), gen.WithDialect(dialect.SQLite))
	require.NoError(t, err)
	g, err := gen.NewGraph(cfg, schemas)
	require.NoError(t, err)
	return g
}

func render(t *testing.T, schemas []*load.Schema) map[string]string {
	t.Helper()
	arts, err := gen.Emit(graph(t, schemas), New())
	require.NoError(t, err)
	files := make(map[string]string, len(arts))
	fset := token.NewFileSet()
	for _, a := range arts {
		assert.Equal(t, gen.LangGo, a.Language)
		src := string(a.Content)
		require.True(t, strings.HasPrefix(src, "// Code generated by storm, DO NOT EDIT.\n"), a.Path)
		_, err := parser.ParseFile(fset, a.Path, a.Content, parser.AllErrors)
		require.NoError(t, err, "%s:\n%s", a.Path, src)
		files[a.Path] = src
	}
	return files
}

func TestRender_Files(t *testing.T) {
	arts, err := gen.Emit(graph(t, library()), New())
	require.NoError(t, err)
	var paths []string
	for _, a := range arts {
		paths = append(paths, a.Path)
	}
	assert.Equal(t, []string{
		"author.go", "author_builder.go", "author_mapper.go", "author_query.go",
		"book.go", "book_builder.go", "book_mapper.go", "book_query.go",
		"client.go", "registry.go", "schema.go",
		"tag.go", "tag_builder.go", "tag_mapper.go", "tag_query.go",
	}, paths, "join entities get no files")
}

func TestRender_Entity(t *testing.T) {
	files := render(t, library())
	book := files["book.go"]
	assert.Contains(t, book, "package entity")
	assert.Contains(t, book, "type Book struct {")
	assert.Regexp(t, `AuthorID\s+int64`, book)
	assert.Regexp(t, `Timeout\s+time\.Duration`, book)
	assert.Regexp(t, `Tags\s+\[\]\*Tag\s+`+"`"+`json:"tags,omitempty"`, book)
	assert.Contains(t, book, "func (_e *Book) String() string {")
	assert.Regexp(t, `Table:\s+"books"`, book)
	assert.Regexp(t, `Title:\s+sql\.NewStringField\("title"\)`, book)
	assert.Regexp(t, `AuthorID:\s+sql\.Field\[int64\]\("author_id"\)`, book)

	author := files["author.go"]
	assert.Regexp(t, `Bio\s+\*string\s+`+"`"+`json:"bio,omitempty"`, author)
	assert.Regexp(t, `Books\s+\[\]\*Book`, author)
	assert.Contains(t, author, "if v := _e.Bio; v != nil {")
}

func TestRender_Mapper(t *testing.T) {
	mapper := render(t, library())["book_mapper.go"]
	assert.Contains(t, mapper, `return []string{"id", "author_id", "title", "created_at", "timeout"}`)
	assert.Contains(t, mapper, "(*int64)(&e.Timeout)")
	assert.Contains(t, mapper, "int64(e.Timeout)")
	assert.Contains(t, mapper, "var _ sql.RowMapper[Book] = bookMapper{}")
}

func TestRender_Builder(t *testing.T) {
	files := render(t, library())
	builder := files["book_builder.go"]
	assert.Contains(t, builder, "func (_b *BookBuilder) SetTitle(v string) *BookBuilder {")
	assert.Contains(t, builder, "func (_b *BookBuilder) SetAuthorID(v int64) *BookBuilder {")
	assert.Contains(t, builder, "setCreatedAt bool")
	assert.Contains(t, builder, "omit = append(omit, BookFields.CreatedAt.Name())")
	assert.Contains(t, builder, "_b.client.table.InsertOmit(ctx, e, omit...)")
	assert.Contains(t, builder, "return _b.client.Get(ctx, e.ID)")
	assert.NotContains(t, builder, "setTitle", "literal defaults are assigned by Create")
	assert.Contains(t, builder, "func (_u *BookUpdate) SetTimeout(v time.Duration) *BookUpdate {")
	assert.NotContains(t, builder, "func (_u *BookUpdate) SetID(", "keys are not updated in bulk")

	author := files["author_builder.go"]
	assert.Contains(t, author, "func (_b *AuthorBuilder) SetBio(v string) *AuthorBuilder {")
	assert.Contains(t, author, "_b.entity.Bio = &v")
	assert.Contains(t, author, "func (_b *AuthorBuilder) ClearBio() *AuthorBuilder {")
	assert.Contains(t, author, "_b.client.table.Insert(ctx, e)")

	client := files["client.go"]
	assert.Contains(t, client, `entity: Book{Title: "untitled"}`)
}

func TestRender_Query(t *testing.T) {
	files := render(t, library())
	query := files["book_query.go"]
	assert.Contains(t, query, "withAuthor *AuthorQuery")
	assert.Contains(t, query, "func (_q *BookQuery) WithTags(opts ...func(*TagQuery)) *BookQuery {")
	assert.Contains(t, query, "sql.Pairs[int64, int64](ctx, _q.client.root.bookTagsBridge, keys...)")
	assert.Contains(t, query, "query.Clone().Where(TagFields.ID.In(rights...)).All(ctx)")
	assert.Contains(t, query, "query.Clone().Where(AuthorFields.ID.In(keys...)).All(ctx)")
	assert.Contains(t, query, "func (_q *BookQuery) GroupBy(ctx context.Context, columns, aggregates []string, fn func(sql.ColumnScanner) error) error {")
	assert.Contains(t, query, "GroupBy(columns...)")

	author := files["author_query.go"]
	assert.Contains(t, author, "query.Clone().Where(BookFields.AuthorID.In(keys...)).All(ctx)")
	assert.Contains(t, author, "n.Edges.Books = append(n.Edges.Books, neighbor)")
}

func TestRender_Client(t *testing.T) {
	files := render(t, library())
	client := files["client.go"]
	assert.Contains(t, client, "func NewClient(drv dialect.Driver) *Client {")
	assert.Contains(t, client, `sql.NewBridge(drv, "Book.tags", "book_tag", "book_id", "tag_id")`)
	assert.Contains(t, client, "func (c *BookClient) AddTags(ctx context.Context, e *Book, neighbors ...*Tag) error {")
	assert.Contains(t, client, "func (c *BookClient) Get(ctx context.Context, id int64) (*Book, error) {")
	assert.Contains(t, client, "return storm.NewNotFoundErrorWithID(BookInfo.Name, e.ID)")

	assert.Contains(t, files["registry.go"], "storm.NewRegistry(")
	schema := files["schema.go"]
	assert.Contains(t, schema, "const Schema = ")
	assert.Contains(t, schema, "CREATE TABLE `book_tag`")
	assert.Contains(t, schema, "sql.NewAdmin(c.driver).Apply(ctx, Schema)")
}

func TestRender_Cycles(t *testing.T) {
	schemas := []*load.Schema{
		{
			Name: "Team",
			Fields: []*load.Field{
				{Name: "id", Type: "int64", PrimaryKey: true},
				{Name: "leadId", Type: "*int64", Nullable: true, Ref: "Member.id"},
			},
			Relations: []*load.Relation{{Name: "members", Kind: load.OneToMany, Target: "Member", Inverse: "team"}},
		},
		{Name: "Member", Fields: []*load.Field{
			{Name: "id", Type: "int64", PrimaryKey: true},
			{Name: "teamId", Type: "int64", Ref: "Team.id"},
		}},
		{Name: "Badge", Fields: []*load.Field{
			{Name: "id", Type: "int64", PrimaryKey: true},
			{Name: "memberId", Type: "int64", Ref: "Member.id"},
		}},
	}
	files := render(t, schemas)
	assert.Contains(t, files["team_query.go"], "func (_q *TeamQuery) WithAll() *TeamQuery {\n\treturn _q\n}")
	assert.Contains(t, files["team_query.go"], "if n.LeadID == nil {\n\t\t\tcontinue\n\t\t}")
	assert.Contains(t, files["team_query.go"], "fk := *n.LeadID")
	assert.Contains(t, files["badge_query.go"], "_q.WithMember(func(q *MemberQuery) {\n\t\tq.WithAll()\n\t})")
}

func TestRender_CompositeKey(t *testing.T) {
	schemas := []*load.Schema{
		{Name: "Edition", Fields: []*load.Field{
			{Name: "bookId", Type: "int64", PrimaryKey: true},
			{Name: "number", Type: "int32", PrimaryKey: true},
		}},
		{
			Name: "Printing",
			Fields: []*load.Field{
				{Name: "id", Type: "int64", PrimaryKey: true},
				{Name: "editionBook", Type: "int64"},
				{Name: "editionNumber", Type: "int32"},
			},
			Relations: []*load.Relation{{Name: "edition", Kind: load.ManyToOne, Target: "Edition", Fields: []string{"editionBook", "editionNumber"}}},
		},
	}
	files := render(t, schemas)
	query := files["printing_query.go"]
	assert.Contains(t, query, "nodeids := make(map[[2]any][]*Printing)")
	assert.Contains(t, query, "fk := [2]any{n.EditionBook, n.EditionNumber}")
	assert.Contains(t, query, "sql.InTuples([]string{EditionFields.BookID.Name(), EditionFields.Number.Name()}, keys...)")

	client := files["client.go"]
	assert.Regexp(t, `func \(c \*EditionClient\) Get\(ctx context\.Context, \w+ int64, number int32\) \(\*Edition, error\) \{`, client)
	assert.Contains(t, client, "storm.NewNotFoundErrorWithID(EditionInfo.Name, []any{e.BookID, e.Number})")
}

func TestRender_View(t *testing.T) {
	schemas := append(library(), &load.Schema{
		Name: "BookStat",
		View: true,
		Fields: []*load.Field{
			{Name: "title", Type: "string"},
			{Name: "tagCount", Type: "int64"},
		},
	})
	files := render(t, schemas)
	assert.NotContains(t, files, "bookstat_builder.go")
	assert.Contains(t, files, "bookstat_query.go")
	assert.NotContains(t, files["client.go"], "func (c *BookStatClient) Create()")
	assert.Contains(t, files["client.go"], "func (c *BookStatClient) Query() *BookStatQuery {")
}

func TestRender_Adapters(t *testing.T) {
	files := render(t, []*load.Schema{{Name: "Account", Fields: []*load.Field{
		{Name: "id", Type: "int64", PrimaryKey: true},
		{Name: "addr", Type: "netip.Addr"},
		{Name: "balance", Type: "*big.Int"},
	}}})
	mapper := files["account_mapper.go"]
	assert.Contains(t, mapper, "sql.ScanAddr(&e.Addr)")
	assert.Contains(t, mapper, "sql.ScanBigInt(&e.Balance)")
	assert.Contains(t, mapper, "sql.AddrValue(e.Addr)")
	assert.Contains(t, mapper, "sql.BigIntValue(e.Balance)")

	entity := files["account.go"]
	assert.Contains(t, entity, `"math/big"`)
	assert.Contains(t, entity, `"net/netip"`)
	assert.Contains(t, entity, "Balance *big.Int")
	assert.Regexp(t, `Addr\s+sql\.AddrField`, entity)
	assert.Contains(t, entity, `Balance: sql.BigIntField("balance")`)
	assert.Contains(t, entity, `fmt.Sprintf("%v", v)`)

	builder := files["account_builder.go"]
	assert.Contains(t, builder, "func (_b *AccountBuilder) SetBalance(v *big.Int) *AccountBuilder {")
	assert.Contains(t, builder, "_b.entity.Balance = v")
	assert.Contains(t, builder, "_b.entity.Addr = netip.Addr{}")
	assert.Contains(t, builder, "func (_u *AccountUpdate) SetBalance(v *big.Int) *AccountUpdate {")
	assert.Contains(t, builder, "_u.update.Set(AccountFields.Addr.Name(), sql.AddrValue(v))")
}

func TestRender_NonComparableKey(t *testing.T) {
	schemas := []*load.Schema{
		{Name: "Blob", Fields: []*load.Field{
			{Name: "id", Type: "int64", PrimaryKey: true},
			{Name: "digest", Type: "[]byte", Unique: true},
		}},
		{Name: "Copy", Fields: []*load.Field{
			{Name: "id", Type: "int64", PrimaryKey: true},
			{Name: "digest", Type: "[]byte", Ref: "Blob.digest"},
		}},
	}
	_, err := gen.Emit(graph(t, schemas), New())
	var gerr *gen.GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Copy", gerr.Entity)
	assert.Contains(t, gerr.Message, "non-comparable")
}

func TestRender_Deterministic(t *testing.T) {
	a, err := gen.Emit(graph(t, library()), New())
	require.NoError(t, err)
	b, err := gen.Emit(graph(t, library()), New())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
