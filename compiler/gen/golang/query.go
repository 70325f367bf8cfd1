package golang

import (
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/storm/compiler/gen"
)

// query renders the query builder of t with its eager loaders.
func (r *generator) query(f *jen.File, t *gen.Type) {
	name := t.QueryName()
	recv := func() *jen.Statement { return jen.Id("_q").Op("*").Id(name) }
	ctx := jen.Id("ctx").Qual("context", "Context")

	f.Commentf("%s is the builder for querying %s entities.", name, t.Name)
	f.Type().Id(name).StructFunc(func(g *jen.Group) {
		g.Id("client").Op("*").Id(t.ClientName())
		g.Id("preds").Index().Qual(sqlPkg, "Predicate")
		g.Id("order").Index().Qual(sqlPkg, "Order")
		g.Id("limit").Op("*").Int()
		g.Id("offset").Op("*").Int()
		if len(t.Relations) > 0 {
			g.Comment("eager-loading edges.")
		}
		for _, rel := range t.Relations {
			g.Id(withField(rel)).Op("*").Id(rel.To.QueryName())
		}
	})

	f.Comment("Where adds predicates to the query. Predicates are joined with AND.")
	f.Func().Params(recv()).Id("Where").Params(jen.Id("ps").Op("...").Qual(sqlPkg, "Predicate")).Op("*").Id(name).Block(
		jen.Id("_q").Dot("preds").Op("=").Append(jen.Id("_q").Dot("preds"), jen.Id("ps").Op("...")),
		jen.Return(jen.Id("_q")),
	)

	f.Comment("Order adds order terms to the query.")
	f.Func().Params(recv()).Id("Order").Params(jen.Id("o").Op("...").Qual(sqlPkg, "Order")).Op("*").Id(name).Block(
		jen.Id("_q").Dot("order").Op("=").Append(jen.Id("_q").Dot("order"), jen.Id("o").Op("...")),
		jen.Return(jen.Id("_q")),
	)

	f.Comment("Limit the number of records to be returned by this query.")
	f.Func().Params(recv()).Id("Limit").Params(jen.Id("limit").Int()).Op("*").Id(name).Block(
		jen.Id("_q").Dot("limit").Op("=").Op("&").Id("limit"),
		jen.Return(jen.Id("_q")),
	)

	f.Comment("Offset to start from.")
	f.Func().Params(recv()).Id("Offset").Params(jen.Id("offset").Int()).Op("*").Id(name).Block(
		jen.Id("_q").Dot("offset").Op("=").Op("&").Id("offset"),
		jen.Return(jen.Id("_q")),
	)

	f.Commentf("Clone returns a duplicate of the %s builder, including all associated steps. It can be", name)
	f.Comment("used to prepare common query builders and use them differently after the clone is made.")
	f.Func().Params(recv()).Id("Clone").Params().Op("*").Id(name).Block(
		jen.If(jen.Id("_q").Op("==").Nil()).Block(jen.Return(jen.Nil())),
		jen.Return(jen.Op("&").Id(name).Values(jen.DictFunc(func(d jen.Dict) {
			d[jen.Id("client")] = jen.Id("_q").Dot("client")
			d[jen.Id("preds")] = jen.Qual("slices", "Clone").Call(jen.Id("_q").Dot("preds"))
			d[jen.Id("order")] = jen.Qual("slices", "Clone").Call(jen.Id("_q").Dot("order"))
			d[jen.Id("limit")] = jen.Id("_q").Dot("limit")
			d[jen.Id("offset")] = jen.Id("_q").Dot("offset")
			for _, rel := range t.Relations {
				d[jen.Id(withField(rel))] = jen.Id("_q").Dot(withField(rel)).Dot("Clone").Call()
			}
		}))),
	)

	for _, rel := range t.Relations {
		f.Commentf("%s tells the query-builder to eager-load the nodes that are connected to", rel.With())
		f.Commentf("the %q edge. The optional arguments are used to configure the query builder of the edge.", rel.Name)
		f.Func().Params(recv()).Id(rel.With()).Params(jen.Id("opts").Op("...").Func().Params(jen.Op("*").Id(rel.To.QueryName()))).Op("*").Id(name).Block(
			jen.Id("query").Op(":=").Id("_q").Dot("client").Dot("root").Dot(rel.To.Name).Dot("Query").Call(),
			jen.For(jen.List(jen.Id("_"), jen.Id("opt")).Op(":=").Range().Id("opts")).Block(
				jen.Id("opt").Call(jen.Id("query")),
			),
			jen.Id("_q").Dot(withField(rel)).Op("=").Id("query"),
			jen.Return(jen.Id("_q")),
		)
	}

	f.Comment("WithAll eager-loads every edge that does not close a relation cycle, and")
	f.Comment("the edges of the loaded neighbors in turn.")
	f.Func().Params(recv()).Id("WithAll").Params().Op("*").Id(name).BlockFunc(func(g *jen.Group) {
		for _, rel := range t.EagerRelations() {
			g.Id("_q").Dot(rel.With()).Call(jen.Func().Params(jen.Id("q").Op("*").Id(rel.To.QueryName())).Block(
				jen.Id("q").Dot("WithAll").Call(),
			))
		}
		g.Return(jen.Id("_q"))
	})

	f.Func().Params(recv()).Id("selector").Params().Op("*").Qual(sqlPkg, "Selector").Block(
		jen.Id("s").Op(":=").Id("_q").Dot("client").Dot("table").Dot("Select").Call().
			Dot("Where").Call(jen.Id("_q").Dot("preds").Op("...")).
			Dot("OrderBy").Call(jen.Id("_q").Dot("order").Op("...")),
		jen.If(jen.Id("_q").Dot("limit").Op("!=").Nil()).Block(
			jen.Id("s").Dot("Limit").Call(jen.Op("*").Id("_q").Dot("limit")),
		),
		jen.If(jen.Id("_q").Dot("offset").Op("!=").Nil()).Block(
			jen.Id("s").Dot("Offset").Call(jen.Op("*").Id("_q").Dot("offset")),
		),
		jen.Return(jen.Id("s")),
	)

	f.Commentf("All executes the query and returns a list of %s.", t.Plural())
	f.Func().Params(recv()).Id("All").Params(ctx.Clone()).Params(jen.Index().Op("*").Id(t.Name), jen.Error()).Block(
		jen.List(jen.Id("nodes"), jen.Err()).Op(":=").Id("_q").Dot("client").Dot("table").Dot("All").Call(jen.Id("ctx"), jen.Id("_q").Dot("selector").Call()),
		jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
		jen.If(jen.Err().Op(":=").Id("_q").Dot("loadEdges").Call(jen.Id("ctx"), jen.Id("nodes")), jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Nil(), jen.Err()),
		),
		jen.Return(jen.Id("nodes"), jen.Nil()),
	)

	for _, m := range []struct{ name, doc string }{
		{"First", fmt.Sprintf("First returns the first %s entity from the query.", t.Name)},
		{"Only", fmt.Sprintf("Only returns a single %s entity found by the query, ensuring it only returns one.", t.Name)},
	} {
		f.Comment(m.doc)
		f.Func().Params(recv()).Id(m.name).Params(ctx.Clone()).Params(jen.Op("*").Id(t.Name), jen.Error()).Block(
			jen.List(jen.Id("node"), jen.Err()).Op(":=").Id("_q").Dot("client").Dot("table").Dot(m.name).Call(jen.Id("ctx"), jen.Id("_q").Dot("selector").Call()),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
			jen.If(jen.Err().Op(":=").Id("_q").Dot("loadEdges").Call(jen.Id("ctx"), jen.Index().Op("*").Id(t.Name).Values(jen.Id("node"))), jen.Err().Op("!=").Nil()).Block(
				jen.Return(jen.Nil(), jen.Err()),
			),
			jen.Return(jen.Id("node"), jen.Nil()),
		)
	}

	f.Comment("Count returns the count of the given query.")
	f.Func().Params(recv()).Id("Count").Params(ctx.Clone()).Params(jen.Int(), jen.Error()).Block(
		jen.Return(jen.Id("_q").Dot("client").Dot("table").Dot("CountSelect").Call(jen.Id("ctx"), jen.Id("_q").Dot("selector").Call())),
	)

	f.Comment("GroupBy selects columns followed by aggregates over the matched rows")
	f.Comment("grouped by columns, and passes the rows to fn.")
	f.Func().Params(recv()).Id("GroupBy").Params(ctx.Clone(), jen.List(jen.Id("columns"), jen.Id("aggregates")).Index().String(), jen.Id("fn").Func().Params(jen.Qual(sqlPkg, "ColumnScanner")).Error()).Error().Block(
		jen.Id("s").Op(":=").Id("_q").Dot("selector").Call().
			Dot("Select").Call(jen.Append(jen.Qual("slices", "Clone").Call(jen.Id("columns")), jen.Id("aggregates").Op("...")).Op("...")).
			Dot("GroupBy").Call(jen.Id("columns").Op("...")),
		jen.Return(jen.Id("_q").Dot("client").Dot("table").Dot("Scan").Call(jen.Id("ctx"), jen.Id("s"), jen.Id("fn"))),
	)

	f.Comment("Exist returns true if the query has elements in the graph.")
	f.Func().Params(recv()).Id("Exist").Params(ctx.Clone()).Params(jen.Bool(), jen.Error()).Block(
		jen.Return(jen.Id("_q").Dot("client").Dot("table").Dot("Exists").Call(jen.Id("ctx"), jen.Id("_q").Dot("preds").Op("..."))),
	)

	f.Func().Params(recv()).Id("loadEdges").Params(ctx.Clone(), jen.Id("nodes").Index().Op("*").Id(t.Name)).Error().BlockFunc(func(g *jen.Group) {
		if len(t.Relations) == 0 {
			g.Return(jen.Nil())
			return
		}
		g.If(jen.Len(jen.Id("nodes")).Op("==").Lit(0)).Block(jen.Return(jen.Nil()))
		for _, rel := range t.Relations {
			g.If(jen.Id("query").Op(":=").Id("_q").Dot(withField(rel)), jen.Id("query").Op("!=").Nil()).Block(
				jen.If(
					jen.Err().Op(":=").Id("_q").Dot(rel.Loader()).Call(jen.Id("ctx"), jen.Id("query"), jen.Id("nodes")),
					jen.Err().Op("!=").Nil(),
				).Block(jen.Return(jen.Err())),
			)
		}
		g.Return(jen.Nil())
	})

	for _, rel := range t.Relations {
		params := jen.Params(ctx.Clone(), jen.Id("query").Op("*").Id(rel.To.QueryName()), jen.Id("nodes").Index().Op("*").Id(t.Name))
		fn := f.Func().Params(recv()).Id(rel.Loader()).Add(params).Error()
		switch {
		case rel.Kind == gen.M2M:
			fn.BlockFunc(func(g *jen.Group) { r.loadM2M(g, rel) })
		case rel.Back:
			fn.BlockFunc(func(g *jen.Group) { r.loadBack(g, rel) })
		default:
			fn.BlockFunc(func(g *jen.Group) { r.loadOwning(g, rel) })
		}
	}
}

func withField(rel *gen.Relation) string {
	return "with" + rel.StructField()
}

// key is the map key the loaders index nodes by.
type key struct {
	r  *generator
	fs []*gen.Field
}

// typ returns the map key type.
func (k key) typ() *jen.Statement {
	if len(k.fs) == 1 {
		return k.r.baseType(k.fs[0])
	}
	return jen.Index(jen.Lit(len(k.fs))).Any()
}

// value returns the key of the entity held by v.
func (k key) value(v string) *jen.Statement {
	expr := func(f *gen.Field) *jen.Statement {
		if f.Pointer() {
			return jen.Op("*").Id(v).Dot(f.StructField())
		}
		return jen.Id(v).Dot(f.StructField())
	}
	if len(k.fs) == 1 {
		return expr(k.fs[0])
	}
	return jen.Index(jen.Lit(len(k.fs))).Any().ValuesFunc(func(g *jen.Group) {
		for _, f := range k.fs {
			g.Add(expr(f))
		}
	})
}

// absent returns the condition under which the entity held by v has no key,
// or nil when the key is always set.
func (k key) absent(v string) jen.Code {
	var conds []jen.Code
	for _, f := range k.fs {
		if f.Pointer() {
			if len(conds) > 0 {
				conds = append(conds, jen.Op("||"))
			}
			conds = append(conds, jen.Id(v).Dot(f.StructField()).Op("==").Nil())
		}
	}
	if len(conds) == 0 {
		return nil
	}
	return jen.Add(conds...)
}

// collected returns the element appended to the key list: composite keys
// are passed to sql.InTuples as slices.
func (k key) collected(v string) jen.Code {
	if len(k.fs) == 1 {
		return jen.Id(v)
	}
	return jen.Id(v).Index(jen.Empty(), jen.Empty())
}

// listType returns the type of the key list.
func (k key) listType() *jen.Statement {
	if len(k.fs) == 1 {
		return k.typ()
	}
	return jen.Index().Any()
}

// in returns the predicate matching the key columns of fs against keys.
func (k key) in(keys string) jen.Code {
	if len(k.fs) == 1 {
		return column(k.fs[0]).Dot("In").Call(jen.Id(keys).Op("..."))
	}
	return jen.Qual(sqlPkg, "InTuples").Call(
		jen.Index().String().ValuesFunc(func(g *jen.Group) {
			for _, f := range k.fs {
				g.Add(column(f).Dot("Name").Call())
			}
		}),
		jen.Id(keys).Op("..."),
	)
}

func skipAbsent(g *jen.Group, k key, v string) {
	if cond := k.absent(v); cond != nil {
		g.If(cond).Block(jen.Continue())
	}
}

// loadOwning renders the loader of a relation whose foreign key is held by
// the nodes: neighbors are fetched by the referenced key.
func (r *generator) loadOwning(g *jen.Group, rel *gen.Relation) {
	from, to := key{r, rel.Fields}, key{r, rel.References}
	g.Id("keys").Op(":=").Make(jen.Index().Add(from.listType()), jen.Lit(0), jen.Len(jen.Id("nodes")))
	g.Id("nodeids").Op(":=").Make(jen.Map(from.typ()).Index().Op("*").Id(rel.From.Name))
	g.For(jen.List(jen.Id("_"), jen.Id("n")).Op(":=").Range().Id("nodes")).BlockFunc(func(g *jen.Group) {
		skipAbsent(g, from, "n")
		g.Id("fk").Op(":=").Add(from.value("n"))
		g.If(jen.List(jen.Id("_"), jen.Id("ok")).Op(":=").Id("nodeids").Index(jen.Id("fk")), jen.Op("!").Id("ok")).Block(
			jen.Id("keys").Op("=").Append(jen.Id("keys"), from.collected("fk")),
		)
		g.Id("nodeids").Index(jen.Id("fk")).Op("=").Append(jen.Id("nodeids").Index(jen.Id("fk")), jen.Id("n"))
	})
	g.If(jen.Len(jen.Id("keys")).Op("==").Lit(0)).Block(jen.Return(jen.Nil()))
	g.List(jen.Id("neighbors"), jen.Err()).Op(":=").Id("query").Dot("Clone").Call().Dot("Where").Call(to.in("keys")).Dot("All").Call(jen.Id("ctx"))
	g.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Err()))
	g.For(jen.List(jen.Id("_"), jen.Id("neighbor")).Op(":=").Range().Id("neighbors")).BlockFunc(func(g *jen.Group) {
		skipAbsent(g, to, "neighbor")
		g.For(jen.List(jen.Id("_"), jen.Id("n")).Op(":=").Range().Id("nodeids").Index(to.value("neighbor"))).Block(
			assign(rel, "n", "neighbor"),
		)
	})
	g.Return(jen.Nil())
}

// loadBack renders the loader of a relation whose foreign key is held by
// the neighbors: neighbors are fetched by the key of the nodes.
func (r *generator) loadBack(g *jen.Group, rel *gen.Relation) {
	from, to := key{r, rel.References}, key{r, rel.Fields}
	g.Id("keys").Op(":=").Make(jen.Index().Add(from.listType()), jen.Lit(0), jen.Len(jen.Id("nodes")))
	g.Id("nodeids").Op(":=").Make(jen.Map(from.typ()).Op("*").Id(rel.From.Name), jen.Len(jen.Id("nodes")))
	g.For(jen.List(jen.Id("_"), jen.Id("n")).Op(":=").Range().Id("nodes")).BlockFunc(func(g *jen.Group) {
		skipAbsent(g, from, "n")
		g.Id("id").Op(":=").Add(from.value("n"))
		g.Id("keys").Op("=").Append(jen.Id("keys"), from.collected("id"))
		g.Id("nodeids").Index(jen.Id("id")).Op("=").Id("n")
	})
	g.If(jen.Len(jen.Id("keys")).Op("==").Lit(0)).Block(jen.Return(jen.Nil()))
	g.List(jen.Id("neighbors"), jen.Err()).Op(":=").Id("query").Dot("Clone").Call().Dot("Where").Call(to.in("keys")).Dot("All").Call(jen.Id("ctx"))
	g.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Err()))
	g.For(jen.List(jen.Id("_"), jen.Id("neighbor")).Op(":=").Range().Id("neighbors")).BlockFunc(func(g *jen.Group) {
		skipAbsent(g, to, "neighbor")
		g.Id("fk").Op(":=").Add(to.value("neighbor"))
		g.List(jen.Id("n"), jen.Id("ok")).Op(":=").Id("nodeids").Index(jen.Id("fk"))
		g.If(jen.Op("!").Id("ok")).Block(
			jen.Return(jen.Qual("fmt", "Errorf").Call(jen.Lit(fmt.Sprintf("unexpected foreign key %%v returned for the %q edge", rel.Name)), jen.Id("fk"))),
		)
		g.Add(assign(rel, "n", "neighbor"))
	})
	g.Return(jen.Nil())
}

// loadM2M renders the loader of a many-to-many relation: the join rows of
// the nodes are read through the bridge, then the neighbors by their key.
func (r *generator) loadM2M(g *jen.Group, rel *gen.Relation) {
	from, to := rel.From.KeyField(), rel.To.KeyField()
	g.Id("keys").Op(":=").Make(jen.Index().Add(r.typ(from.HostType)), jen.Lit(0), jen.Len(jen.Id("nodes")))
	g.Id("nodeids").Op(":=").Make(jen.Map(r.typ(from.HostType)).Op("*").Id(rel.From.Name), jen.Len(jen.Id("nodes")))
	g.For(jen.List(jen.Id("_"), jen.Id("n")).Op(":=").Range().Id("nodes")).Block(
		jen.Id("keys").Op("=").Append(jen.Id("keys"), jen.Id("n").Dot(from.StructField())),
		jen.Id("nodeids").Index(jen.Id("n").Dot(from.StructField())).Op("=").Id("n"),
	)
	g.List(jen.Id("pairs"), jen.Err()).Op(":=").Qual(sqlPkg, "Pairs").Types(r.typ(from.HostType), r.typ(to.HostType)).Call(
		jen.Id("ctx"), jen.Id("_q").Dot("client").Dot("root").Dot(rel.BridgeName()), jen.Id("keys").Op("..."),
	)
	g.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Err()))
	g.If(jen.Len(jen.Id("pairs")).Op("==").Lit(0)).Block(jen.Return(jen.Nil()))
	g.Id("rights").Op(":=").Make(jen.Index().Add(r.typ(to.HostType)), jen.Lit(0), jen.Len(jen.Id("pairs")))
	g.Id("edges").Op(":=").Make(jen.Map(r.typ(to.HostType)).Index().Op("*").Id(rel.From.Name))
	g.For(jen.List(jen.Id("_"), jen.Id("p")).Op(":=").Range().Id("pairs")).Block(
		jen.If(jen.List(jen.Id("_"), jen.Id("ok")).Op(":=").Id("edges").Index(jen.Id("p").Dot("Right")), jen.Op("!").Id("ok")).Block(
			jen.Id("rights").Op("=").Append(jen.Id("rights"), jen.Id("p").Dot("Right")),
		),
		jen.Id("edges").Index(jen.Id("p").Dot("Right")).Op("=").Append(jen.Id("edges").Index(jen.Id("p").Dot("Right")), jen.Id("nodeids").Index(jen.Id("p").Dot("Left"))),
	)
	g.List(jen.Id("neighbors"), jen.Err()).Op(":=").Id("query").Dot("Clone").Call().Dot("Where").Call(
		column(to).Dot("In").Call(jen.Id("rights").Op("...")),
	).Dot("All").Call(jen.Id("ctx"))
	g.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Err()))
	g.For(jen.List(jen.Id("_"), jen.Id("neighbor")).Op(":=").Range().Id("neighbors")).Block(
		jen.For(jen.List(jen.Id("_"), jen.Id("n")).Op(":=").Range().Id("edges").Index(jen.Id("neighbor").Dot(to.StructField()))).Block(
			assign(rel, "n", "neighbor"),
		),
	)
	g.Return(jen.Nil())
}

// assign stores neighbor in the edge field of n.
func assign(rel *gen.Relation, n, neighbor string) jen.Code {
	edge := jen.Id(n).Dot("Edges").Dot(rel.StructField())
	if rel.Unique() {
		return edge.Op("=").Id(neighbor)
	}
	return edge.Clone().Op("=").Append(edge, jen.Id(neighbor))
}
