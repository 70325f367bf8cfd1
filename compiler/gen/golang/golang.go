// Package golang renders the Go data-access package of a storm graph.
//
// Every declared entity gets four files, and the package gets three shared
// ones:
//
//	{target}/
//	├── {entity}.go           # model struct, edges, metadata and typed fields
//	├── {entity}_mapper.go    # row mapper with static conversions
//	├── {entity}_builder.go   # insert builder and bulk update
//	├── {entity}_query.go     # query builder with eager loading
//	├── client.go             # root client and per-entity clients
//	├── registry.go           # entity metadata registry
//	└── schema.go             # DDL script and CreateSchema
//
// Join entities created for many-to-many relations get no files of their
// own; their rows are managed through sql.Bridge values held by the client.
package golang

import (
	"bytes"
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/storm/compiler/gen"
)

// Import paths referenced by generated code.
const (
	stormPkg   = "github.com/syssam/storm"
	dialectPkg = "github.com/syssam/storm/dialect"
	sqlPkg     = "github.com/syssam/storm/dialect/sql"
)

// Renderer renders the Go package of a graph.
type Renderer struct{}

// New returns a Go renderer.
func New() *Renderer { return &Renderer{} }

// Language implements gen.Renderer.
func (*Renderer) Language() string { return gen.LangGo }

// Render implements gen.Renderer.
func (*Renderer) Render(g *gen.Graph) ([]*gen.Artifact, error) {
	r := &generator{graph: g, cfg: g.Config}
	var arts []*gen.Artifact
	for _, t := range g.Declared() {
		if err := checkKeys(t); err != nil {
			return nil, err
		}
		for _, file := range []struct {
			suffix   string
			template string
			render   func(*jen.File, *gen.Type)
		}{
			{"", "accessor", r.entity},
			{"_mapper", "rowmapper", r.mapper},
			{"_builder", "builder", r.builder},
			{"_query", "query", r.query},
		} {
			if t.View && file.template == "builder" {
				continue
			}
			f := r.newFile()
			file.render(f, t)
			a, err := r.artifact(t.Package()+file.suffix+".go", file.template, t.Name, f)
			if err != nil {
				return nil, err
			}
			arts = append(arts, a)
		}
	}
	for _, file := range []struct {
		name     string
		template string
		render   func(*jen.File) error
	}{
		{"client.go", "client", r.client},
		{"registry.go", "registry", r.registry},
		{"schema.go", "schema", r.schema},
	} {
		f := r.newFile()
		if err := file.render(f); err != nil {
			return nil, &gen.GenerationError{Template: file.template, File: file.name, Cause: err}
		}
		a, err := r.artifact(file.name, file.template, "", f)
		if err != nil {
			return nil, err
		}
		arts = append(arts, a)
	}
	return arts, nil
}

// generator holds the state shared by the file renderers of one run.
type generator struct {
	graph *gen.Graph
	cfg   *gen.Config
}

func (r *generator) newFile() *jen.File {
	f := jen.NewFilePathName(r.cfg.Package, r.cfg.PackageName())
	f.HeaderComment(r.cfg.HeaderText())
	f.ImportName(stormPkg, "storm")
	f.ImportName(dialectPkg, "dialect")
	f.ImportName(sqlPkg, "sql")
	return f
}

func (r *generator) artifact(name, template, entity string, f *jen.File) (*gen.Artifact, error) {
	var b bytes.Buffer
	if err := f.Render(&b); err != nil {
		return nil, &gen.GenerationError{Template: template, Entity: entity, File: name, Cause: err}
	}
	src, err := gen.FormatGo(name, b.Bytes())
	if err != nil {
		return nil, &gen.GenerationError{Template: template, Entity: entity, File: name, Cause: err}
	}
	return &gen.Artifact{Path: name, Template: template, Entity: entity, Content: src}, nil
}

// checkKeys rejects relations whose keys cannot be used as map keys by the
// eager loaders.
func checkKeys(t *gen.Type) error {
	for _, rel := range t.Relations {
		for _, f := range append(append([]*gen.Field(nil), rel.Fields...), rel.References...) {
			if !f.Comparable() {
				return &gen.GenerationError{
					Template: "query",
					Entity:   t.Name,
					Message:  fmt.Sprintf("relation %s joins on %s.%s of non-comparable type %s", rel.Name, f.Type().Name, f.Name, f.HostType),
				}
			}
		}
	}
	return nil
}
