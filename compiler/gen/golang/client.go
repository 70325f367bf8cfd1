package golang

import (
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/storm/compiler/gen"
	"github.com/syssam/storm/compiler/gen/ddl"
)

// bridges returns the many-to-many relations of the declared types, each
// backed by its own sql.Bridge.
func (r *generator) bridges() []*gen.Relation {
	var rels []*gen.Relation
	for _, t := range r.graph.Declared() {
		for _, rel := range t.Relations {
			if rel.Kind == gen.M2M {
				rels = append(rels, rel)
			}
		}
	}
	return rels
}

// client renders the root client and the per-entity clients.
func (r *generator) client(f *jen.File) error {
	types := r.graph.Declared()
	ctx := jen.Id("ctx").Qual("context", "Context")

	f.Comment("Client is the client that holds all storm entity clients.")
	f.Type().Id("Client").StructFunc(func(g *jen.Group) {
		g.Id("driver").Qual(dialectPkg, "Driver")
		for _, t := range types {
			g.Commentf("%s is the client for interacting with the %s entity.", t.Name, t.Name)
			g.Id(t.Name).Op("*").Id(t.ClientName())
		}
		for _, rel := range r.bridges() {
			g.Id(rel.BridgeName()).Op("*").Qual(sqlPkg, "Bridge")
		}
	})

	f.Comment("NewClient returns a Client executing against drv.")
	f.Func().Id("NewClient").Params(jen.Id("drv").Qual(dialectPkg, "Driver")).Op("*").Id("Client").BlockFunc(func(g *jen.Group) {
		g.Id("c").Op(":=").Op("&").Id("Client").Values(jen.Dict{jen.Id("driver"): jen.Id("drv")})
		for _, t := range types {
			g.Id("c").Dot(t.Name).Op("=").Op("&").Id(t.ClientName()).Values(jen.Dict{
				jen.Id("root"): jen.Id("c"),
				jen.Id("table"): jen.Qual(sqlPkg, "NewTable").Types(jen.Id(t.Name)).Call(
					jen.Id("drv"), jen.Id(t.InfoName()), jen.Id(t.MapperName()).Values(),
				),
			})
		}
		for _, rel := range r.bridges() {
			g.Id("c").Dot(rel.BridgeName()).Op("=").Qual(sqlPkg, "NewBridge").Call(
				jen.Id("drv"),
				jen.Lit(rel.From.Name+"."+rel.Name),
				jen.Lit(rel.Through.Table),
				jen.Lit(rel.ThroughFrom.Column),
				jen.Lit(rel.ThroughTo.Column),
			)
		}
		g.Return(jen.Id("c"))
	})

	f.Comment("Open opens a database connection with the given driver name and data")
	f.Comment("source, and returns a Client over it.")
	f.Func().Id("Open").Params(jen.List(jen.Id("driverName"), jen.Id("dataSourceName")).String()).Params(jen.Op("*").Id("Client"), jen.Error()).Block(
		jen.List(jen.Id("drv"), jen.Err()).Op(":=").Qual(sqlPkg, "Open").Call(jen.Id("driverName"), jen.Id("dataSourceName")),
		jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
		jen.Return(jen.Id("NewClient").Call(jen.Id("drv")), jen.Nil()),
	)

	f.Comment("Close closes the database connection.")
	f.Func().Params(jen.Id("c").Op("*").Id("Client")).Id("Close").Params().Error().Block(
		jen.Return(jen.Id("c").Dot("driver").Dot("Close").Call()),
	)

	f.Comment("Driver returns the driver the client executes against.")
	f.Func().Params(jen.Id("c").Op("*").Id("Client")).Id("Driver").Params().Qual(dialectPkg, "Driver").Block(
		jen.Return(jen.Id("c").Dot("driver")),
	)

	for _, t := range types {
		r.entityClient(f, t, ctx)
	}
	return nil
}

func (r *generator) entityClient(f *jen.File, t *gen.Type, ctx *jen.Statement) {
	name := t.ClientName()
	recv := func() *jen.Statement { return jen.Id("c").Op("*").Id(name) }

	f.Commentf("%s is a client for the %s schema.", name, t.Name)
	f.Type().Id(name).Struct(
		jen.Id("root").Op("*").Id("Client"),
		jen.Id("table").Op("*").Qual(sqlPkg, "Table").Types(jen.Id(t.Name)),
	)

	f.Commentf("Query returns a query builder for %s.", t.Name)
	f.Func().Params(recv()).Id("Query").Params().Op("*").Id(t.QueryName()).Block(
		jen.Return(jen.Op("&").Id(t.QueryName()).Values(jen.Dict{jen.Id("client"): jen.Id("c")})),
	)
	if t.View {
		return
	}

	f.Commentf("Create returns a builder for creating a %s entity.", t.Name)
	f.Func().Params(recv()).Id("Create").Params().Op("*").Id(t.BuilderName()).Block(
		jen.Return(jen.Op("&").Id(t.BuilderName()).Values(jen.DictFunc(func(d jen.Dict) {
			d[jen.Id("client")] = jen.Id("c")
			defaults := jen.Dict{}
			for _, fd := range t.Fields {
				if v, ok := literal(fd); ok {
					defaults[jen.Id(fd.StructField())] = v
				}
			}
			if len(defaults) > 0 {
				d[jen.Id("entity")] = jen.Id(t.Name).Values(defaults)
			}
		}))),
	)

	f.Comment("CreateBulk inserts the entities of the builders and returns them in order.")
	f.Func().Params(recv()).Id("CreateBulk").Params(ctx.Clone(), jen.Id("builders").Op("...").Op("*").Id(t.BuilderName())).Params(jen.Index().Op("*").Id(t.Name), jen.Error()).BlockFunc(func(g *jen.Group) {
		if len(deferred(t)) > 0 {
			g.Id("nodes").Op(":=").Make(jen.Index().Op("*").Id(t.Name), jen.Lit(0), jen.Len(jen.Id("builders")))
			g.For(jen.List(jen.Id("_"), jen.Id("b")).Op(":=").Range().Id("builders")).Block(
				jen.List(jen.Id("node"), jen.Err()).Op(":=").Id("b").Dot("Save").Call(jen.Id("ctx")),
				jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
				jen.Id("nodes").Op("=").Append(jen.Id("nodes"), jen.Id("node")),
			)
			g.Return(jen.Id("nodes"), jen.Nil())
			return
		}
		g.If(jen.Len(jen.Id("builders")).Op("==").Lit(0)).Block(jen.Return(jen.Nil(), jen.Nil()))
		g.Id("nodes").Op(":=").Make(jen.Index().Op("*").Id(t.Name), jen.Len(jen.Id("builders")))
		g.For(jen.List(jen.Id("i"), jen.Id("b")).Op(":=").Range().Id("builders")).Block(
			jen.Id("nodes").Index(jen.Id("i")).Op("=").Id("b").Dot("Build").Call(),
		)
		g.If(jen.Err().Op(":=").Id("c").Dot("table").Dot("InsertBatch").Call(jen.Id("ctx"), jen.Id("nodes")), jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Nil(), jen.Err()),
		)
		g.Return(jen.Id("nodes"), jen.Nil())
	})

	params, args := r.keyParams(t)
	f.Commentf("Get returns the %s entity with the given primary key.", t.Name)
	f.Func().Params(recv()).Id("Get").Params(append([]jen.Code{ctx.Clone()}, params...)...).Params(jen.Op("*").Id(t.Name), jen.Error()).Block(
		jen.Return(jen.Id("c").Dot("table").Dot("Get").Call(append([]jen.Code{jen.Id("ctx")}, args...)...)),
	)

	f.Commentf("Update returns a builder updating %s entities in bulk.", t.Name)
	f.Func().Params(recv()).Id("Update").Params().Op("*").Id(t.UpdateName()).Block(
		jen.Return(jen.Op("&").Id(t.UpdateName()).Values(jen.Dict{
			jen.Id("client"): jen.Id("c"),
			jen.Id("update"): jen.Qual(sqlPkg, "Update").Call(jen.Id(t.InfoName()).Dot("Table")),
		})),
	)

	f.Comment("UpdateOne writes every non-key field of e to the row with the same key,")
	f.Comment("and returns the number of affected rows.")
	f.Func().Params(recv()).Id("UpdateOne").Params(ctx.Clone(), jen.Id("e").Op("*").Id(t.Name)).Params(jen.Int64(), jen.Error()).Block(
		jen.Return(jen.Id("c").Dot("table").Dot("Update").Call(jen.Id("ctx"), jen.Id("e"))),
	)

	f.Comment("Delete removes the rows matching the predicates and returns their count.")
	f.Func().Params(recv()).Id("Delete").Params(ctx.Clone(), jen.Id("ps").Op("...").Qual(sqlPkg, "Predicate")).Params(jen.Int64(), jen.Error()).Block(
		jen.Return(jen.Id("c").Dot("table").Dot("Delete").Call(jen.Id("ctx"), jen.Id("ps").Op("..."))),
	)

	f.Comment("DeleteOne removes e. It returns a *storm.NotFoundError when no row has its key.")
	f.Func().Params(recv()).Id("DeleteOne").Params(ctx.Clone(), jen.Id("e").Op("*").Id(t.Name)).Error().Block(
		jen.List(jen.Id("n"), jen.Err()).Op(":=").Id("c").Dot("table").Dot("DeleteKey").Call(append([]jen.Code{jen.Id("ctx")}, keyValues(t, "e")...)...),
		jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Err())),
		jen.If(jen.Id("n").Op("==").Lit(0)).Block(
			jen.Return(jen.Qual(stormPkg, "NewNotFoundErrorWithID").Call(jen.Id(t.InfoName()).Dot("Name"), keyValue(t, "e"))),
		),
		jen.Return(jen.Nil()),
	)

	for _, rel := range t.Relations {
		if rel.Kind != gen.M2M {
			continue
		}
		from, to := rel.From.KeyField(), rel.To.KeyField()
		bridge := jen.Id("c").Dot("root").Dot(rel.BridgeName())
		neighbors := jen.Id("neighbors").Op("...").Op("*").Id(rel.To.Name)

		f.Commentf("%s links e to the given %s through the %q edge. Existing links are kept.", rel.Adder(), rel.To.Plural(), rel.Name)
		f.Func().Params(recv()).Id(rel.Adder()).Params(ctx.Clone(), jen.Id("e").Op("*").Id(t.Name), neighbors.Clone()).Error().Block(
			jen.For(jen.List(jen.Id("_"), jen.Id("n")).Op(":=").Range().Id("neighbors")).Block(
				jen.If(
					jen.Err().Op(":=").Add(bridge.Clone()).Dot("Link").Call(jen.Id("ctx"), jen.Id("e").Dot(from.StructField()), jen.Id("n").Dot(to.StructField())),
					jen.Err().Op("!=").Nil(),
				).Block(jen.Return(jen.Err())),
			),
			jen.Return(jen.Nil()),
		)

		f.Commentf("%s unlinks e from the given %s of the %q edge.", rel.Remover(), rel.To.Plural(), rel.Name)
		f.Func().Params(recv()).Id(rel.Remover()).Params(ctx.Clone(), jen.Id("e").Op("*").Id(t.Name), neighbors.Clone()).Error().Block(
			jen.For(jen.List(jen.Id("_"), jen.Id("n")).Op(":=").Range().Id("neighbors")).Block(
				jen.If(
					jen.List(jen.Id("_"), jen.Err()).Op(":=").Add(bridge.Clone()).Dot("Unlink").Call(jen.Id("ctx"), jen.Id("e").Dot(from.StructField()), jen.Id("n").Dot(to.StructField())),
					jen.Err().Op("!=").Nil(),
				).Block(jen.Return(jen.Err())),
			),
			jen.Return(jen.Nil()),
		)
	}
}

// registry renders the metadata registry of the package.
func (r *generator) registry(f *jen.File) error {
	f.Comment("Registry holds the metadata of every entity of the package. Its")
	f.Comment("fingerprint identifies the model the package was generated from.")
	f.Var().Id("Registry").Op("=").Qual(stormPkg, "NewRegistry").CallFunc(func(g *jen.Group) {
		g.Lit(r.graph.Fingerprint())
		for _, t := range r.graph.Declared() {
			g.Id(t.InfoName())
		}
	})
	return nil
}

// schema renders the DDL script of the package and the method applying it.
func (r *generator) schema(f *jen.File) error {
	stmts, err := ddl.Statements(r.graph)
	if err != nil {
		return err
	}
	f.Commentf("Schema creates the tables of the package on %s, in dependency order.", r.cfg.Dialect)
	f.Const().Id("Schema").Op("=").Lit(strings.Join(stmts, ";\n\n") + ";\n")

	f.Comment("CreateSchema creates the tables of the package. It fails when one of")
	f.Comment("them already exists.")
	f.Func().Params(jen.Id("c").Op("*").Id("Client")).Id("CreateSchema").Params(jen.Id("ctx").Qual("context", "Context")).Error().Block(
		jen.Return(jen.Qual(sqlPkg, "NewAdmin").Call(jen.Id("c").Dot("driver")).Dot("Apply").Call(jen.Id("ctx"), jen.Id("Schema"))),
	)
	return nil
}
