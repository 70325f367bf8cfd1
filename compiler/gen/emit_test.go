package gen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/storm/compiler/load"
)

// listRenderer renders one artifact per type listing its columns.
type listRenderer struct {
	lang string
	dir  string
	err  error
}

func (r *listRenderer) Language() string { return r.lang }

func (r *listRenderer) Render(g *Graph) ([]*Artifact, error) {
	if r.err != nil {
		return nil, r.err
	}
	var arts []*Artifact
	for i := len(g.Nodes) - 1; i >= 0; i-- {
		t := g.Nodes[i]
		var b bytes.Buffer
		for _, f := range t.Fields {
			fmt.Fprintf(&b, "%s %s\n", f.Column, f.Storage)
		}
		arts = append(arts, &Artifact{Path: r.dir + "/" + t.Package() + ".txt", Template: "list", Entity: t.Name, Content: b.Bytes()})
	}
	return arts, nil
}

func TestEmit(t *testing.T) {
	g := newGraph(t, tagged())
	r := &listRenderer{lang: "txt", dir: "list"}
	arts, err := Emit(g, r)
	require.NoError(t, err)
	require.Len(t, arts, 4)
	paths := make([]string, len(arts))
	for i, a := range arts {
		paths[i] = a.Path
		assert.Equal(t, "txt", a.Language)
	}
	assert.Equal(t, []string{"list/author.txt", "list/book.txt", "list/booktag.txt", "list/tag.txt"}, paths)
	assert.Equal(t, "id bigint\nauthor_id bigint\ntitle varchar(255)\n", string(arts[1].Content))

	again, err := Emit(newGraph(t, tagged()), r)
	require.NoError(t, err)
	assert.Equal(t, arts, again)
}

func TestEmit_Errors(t *testing.T) {
	g := newGraph(t, library())
	t.Run("NoRenderer", func(t *testing.T) {
		_, err := Emit(g)
		assert.True(t, IsConfigError(err))
	})
	t.Run("RendererFails", func(t *testing.T) {
		arts, err := Emit(g, &listRenderer{lang: "a", dir: "a"}, &listRenderer{lang: "b", err: errors.New("boom")})
		assert.Nil(t, arts)
		var gerr *GenerationError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, "b", gerr.Language)
		assert.ErrorIs(t, err, ErrGenerationFailed)
	})
	t.Run("DuplicatePath", func(t *testing.T) {
		_, err := Emit(g, &listRenderer{lang: "a", dir: "x"}, &listRenderer{lang: "b", dir: "x"})
		var gerr *GenerationError
		require.ErrorAs(t, err, &gerr)
		assert.Contains(t, gerr.Message, "also produced by the a renderer")
	})
	t.Run("UncleanPath", func(t *testing.T) {
		_, err := Emit(g, &listRenderer{lang: "a", dir: "../x"})
		assert.True(t, IsGenerationError(err))
	})
}

func TestCheckIdentifiers(t *testing.T) {
	t.Run("CaseNormalizedFields", func(t *testing.T) {
		schemas := library()
		schemas[0].Fields = append(schemas[0].Fields,
			&load.Field{Name: "author_id", Pos: "x.yaml:1:1", Type: "int64", Column: "a1"},
			&load.Field{Name: "authorId", Pos: "x.yaml:2:1", Type: "int64", Column: "a2"},
		)
		err := CheckIdentifiers(newGraph(t, schemas))
		var cerr *NameCollisionError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "Author", cerr.Entity)
		assert.Equal(t, "AuthorID", cerr.Ident)
		assert.Equal(t, []string{"field author_id", "field authorId"}, cerr.Members)
		assert.Equal(t, []string{"x.yaml:1:1", "x.yaml:2:1"}, cerr.Sites)
		assert.ErrorIs(t, err, ErrNameCollision)
	})
	t.Run("ReservedQueryMethod", func(t *testing.T) {
		schemas := tagged()
		schemas[1].Relations[0].Name = "all"
		var cerr *NameCollisionError
		require.ErrorAs(t, CheckIdentifiers(newGraph(t, schemas)), &cerr)
		assert.Equal(t, "WithAll", cerr.Ident)
	})
	t.Run("EntityNames", func(t *testing.T) {
		schemas := append(library(), &load.Schema{
			Name:   "BookQuery",
			Fields: []*load.Field{{Name: "id", Type: "int64", PrimaryKey: true}},
		})
		var cerr *NameCollisionError
		require.ErrorAs(t, CheckIdentifiers(newGraph(t, schemas)), &cerr)
		assert.Equal(t, "BookQuery", cerr.Ident)
		assert.Equal(t, []string{"entity Book", "entity BookQuery"}, cerr.Members)
	})
	t.Run("EmitStops", func(t *testing.T) {
		schemas := library()
		schemas[1].Fields = append(schemas[1].Fields, &load.Field{Name: "string", Type: "string"})
		arts, err := Emit(newGraph(t, schemas), &listRenderer{lang: "a", dir: "a"})
		assert.Nil(t, arts)
		assert.True(t, IsNameCollisionError(err))
	})
	t.Run("Clean", func(t *testing.T) {
		assert.NoError(t, CheckIdentifiers(newGraph(t, tagged())))
	})
}

func TestArtifactWriter(t *testing.T) {
	dir := t.TempDir()
	arts := []*Artifact{
		{Path: "a.go", Content: []byte("package a\n")},
		{Path: "sql/schema.sql", Content: []byte("CREATE TABLE t (id int);\n")},
	}
	w := NewArtifactWriter(dir).WithWorkers(2)
	require.NoError(t, w.Write(context.Background(), arts))
	got, err := os.ReadFile(filepath.Join(dir, "sql", "schema.sql"))
	require.NoError(t, err)
	assert.Equal(t, arts[1].Content, got)
	assert.Equal(t, 2, w.Metrics().FilesWritten)

	require.NoError(t, w.Write(context.Background(), arts))
	assert.Equal(t, 2, w.Metrics().FilesUnchanged)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".storm-", "staged files are renamed or removed")
	}
}

func TestArtifactWriter_Prune(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("author.go", DefaultHeader+"\n\npackage entity\n")
	write("old_query.go", DefaultHeader+"\n\npackage entity\n")
	write("sql/old.sql", "-- Code generated by storm, DO NOT EDIT.\n\nCREATE TABLE t (id int);\n")
	write("hooks.go", "package entity\n")
	write("kind_string.go", "// Code generated by \"stringer -type=Kind\"; DO NOT EDIT.\n\npackage entity\n")
	write("nested/stale.go", DefaultHeader+"\n\npackage nested\n")

	arts := []*Artifact{
		{Path: "author.go", Content: []byte(DefaultHeader + "\n\npackage entity\n\ntype Author struct{}\n")},
		{Path: "sql/schema.sql", Content: []byte("-- Code generated by storm, DO NOT EDIT.\n")},
	}
	w := NewArtifactWriter(dir).WithPrune(DefaultHeader)
	require.NoError(t, w.Write(context.Background(), arts))
	assert.Equal(t, 2, w.Metrics().FilesRemoved)

	for name, exists := range map[string]bool{
		"author.go":       true,
		"sql/schema.sql":  true,
		"old_query.go":    false,
		"sql/old.sql":     false,
		"hooks.go":        true,
		"kind_string.go":  true,
		"nested/stale.go": true,
	} {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name)))
		if exists {
			assert.NoError(t, err, name)
		} else {
			assert.True(t, os.IsNotExist(err), name)
		}
	}

	// Without a header nothing is pruned.
	write("old_query.go", DefaultHeader+"\n")
	w = NewArtifactWriter(dir)
	require.NoError(t, w.Write(context.Background(), arts))
	assert.Zero(t, w.Metrics().FilesRemoved)
	_, err := os.Stat(filepath.Join(dir, "old_query.go"))
	assert.NoError(t, err)
}

func TestArtifactWriter_Canceled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewArtifactWriter(dir).Write(ctx, []*Artifact{{Path: "a.go", Content: []byte("package a\n")}})
	require.ErrorIs(t, err, context.Canceled)
	_, err = os.Stat(filepath.Join(dir, "a.go"))
	assert.True(t, os.IsNotExist(err))
}

func TestFormatGo(t *testing.T) {
	out, err := FormatGo("x.go", []byte("package x\nimport \"fmt\"\nfunc  F( ) int {return 1}\n"))
	require.NoError(t, err)
	assert.NotContains(t, string(out), "fmt")
	assert.Contains(t, string(out), "func F() int { return 1 }")

	_, err = FormatGo("x.go", []byte("package x\nfunc {"))
	assert.Error(t, err)
}
