package golang

import (
	"github.com/dave/jennifer/jen"

	"github.com/syssam/storm/compiler/gen"
)

// builder renders the insert builder and the bulk update of t.
func (r *generator) builder(f *jen.File, t *gen.Type) {
	r.create(f, t)
	r.update(f, t)
}

func (r *generator) create(f *jen.File, t *gen.Type) {
	name := t.BuilderName()
	recv := jen.Id("_b").Op("*").Id(name)
	dbDefaults := deferred(t)
	isDeferred := make(map[*gen.Field]bool, len(dbDefaults))
	for _, fd := range dbDefaults {
		isDeferred[fd] = true
	}

	f.Commentf("%s is the builder for creating a %s entity.", name, t.Name)
	f.Type().Id(name).StructFunc(func(g *jen.Group) {
		g.Id("client").Op("*").Id(t.ClientName())
		g.Id("entity").Id(t.Name)
		for _, fd := range dbDefaults {
			g.Id("set" + fd.StructField()).Bool()
		}
	})

	for _, fd := range t.Fields {
		param := jen.Id("v").Add(r.typ(fd.HostType))
		value := jen.Id("v")
		if fd.Pointer() && !fd.ByRef() {
			param = jen.Id("v").Add(r.baseType(fd))
			value = jen.Op("&").Id("v")
		}
		f.Commentf("%s sets the %q field.", fd.Setter(), fd.Name)
		f.Func().Params(recv.Clone()).Id(fd.Setter()).Params(param).Op("*").Id(name).BlockFunc(func(g *jen.Group) {
			g.Id("_b").Dot("entity").Dot(fd.StructField()).Op("=").Add(value)
			if isDeferred[fd] {
				g.Id("_b").Dot("set" + fd.StructField()).Op("=").True()
			}
			g.Return(jen.Id("_b"))
		})
		if fd.Nullable {
			f.Commentf("%s sets the %q field to NULL.", fd.Clearer(), fd.Name)
			f.Func().Params(recv.Clone()).Id(fd.Clearer()).Params().Op("*").Id(name).BlockFunc(func(g *jen.Group) {
				g.Id("_b").Dot("entity").Dot(fd.StructField()).Op("=").Add(r.null(fd))
				if isDeferred[fd] {
					g.Id("_b").Dot("set" + fd.StructField()).Op("=").True()
				}
				g.Return(jen.Id("_b"))
			})
		}
	}

	f.Commentf("Build returns the %s the builder holds, without writing it.", t.Name)
	f.Func().Params(recv.Clone()).Id("Build").Params().Op("*").Id(t.Name).Block(
		jen.Id("e").Op(":=").Id("_b").Dot("entity"),
		jen.Return(jen.Op("&").Id("e")),
	)

	if len(dbDefaults) == 0 {
		f.Commentf("Save inserts the %s into the database.", t.Name)
		f.Func().Params(recv.Clone()).Id("Save").Params(jen.Id("ctx").Qual("context", "Context")).Params(jen.Op("*").Id(t.Name), jen.Error()).Block(
			jen.Id("e").Op(":=").Id("_b").Dot("Build").Call(),
			jen.If(jen.Err().Op(":=").Id("_b").Dot("client").Dot("table").Dot("Insert").Call(jen.Id("ctx"), jen.Id("e")), jen.Err().Op("!=").Nil()).Block(
				jen.Return(jen.Nil(), jen.Err()),
			),
			jen.Return(jen.Id("e"), jen.Nil()),
		)
		return
	}
	f.Commentf("Save inserts the %s into the database. Fields with a storage default", t.Name)
	f.Comment("that were not set are left to the database, and the stored row is")
	f.Comment("read back.")
	f.Func().Params(recv.Clone()).Id("Save").Params(jen.Id("ctx").Qual("context", "Context")).Params(jen.Op("*").Id(t.Name), jen.Error()).BlockFunc(func(g *jen.Group) {
		g.Id("e").Op(":=").Id("_b").Dot("Build").Call()
		g.Var().Id("omit").Index().String()
		for _, fd := range dbDefaults {
			g.If(jen.Op("!").Id("_b").Dot("set" + fd.StructField())).Block(
				jen.Id("omit").Op("=").Append(jen.Id("omit"), column(fd).Dot("Name").Call()),
			)
		}
		g.If(jen.Err().Op(":=").Id("_b").Dot("client").Dot("table").Dot("InsertOmit").Call(jen.Id("ctx"), jen.Id("e"), jen.Id("omit").Op("...")), jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Nil(), jen.Err()),
		)
		g.If(jen.Len(jen.Id("omit")).Op("==").Lit(0)).Block(
			jen.Return(jen.Id("e"), jen.Nil()),
		)
		g.Return(jen.Id("_b").Dot("client").Dot("Get").Call(append([]jen.Code{jen.Id("ctx")}, keyValues(t, "e")...)...))
	})
}

func (r *generator) update(f *jen.File, t *gen.Type) {
	name := t.UpdateName()
	recv := jen.Id("_u").Op("*").Id(name)

	f.Commentf("%s updates every %s matching its predicates.", name, t.Name)
	f.Type().Id(name).Struct(
		jen.Id("client").Op("*").Id(t.ClientName()),
		jen.Id("preds").Index().Qual(sqlPkg, "Predicate"),
		jen.Id("update").Op("*").Qual(sqlPkg, "UpdateBuilder"),
	)

	f.Commentf("Where adds predicates selecting the %s entities to update.", t.Name)
	f.Func().Params(recv.Clone()).Id("Where").Params(jen.Id("ps").Op("...").Qual(sqlPkg, "Predicate")).Op("*").Id(name).Block(
		jen.Id("_u").Dot("preds").Op("=").Append(jen.Id("_u").Dot("preds"), jen.Id("ps").Op("...")),
		jen.Return(jen.Id("_u")),
	)

	for _, fd := range t.MutableFields() {
		param := jen.Id("v").Add(r.setterType(fd))
		f.Commentf("%s sets the %q field.", fd.Setter(), fd.Name)
		f.Func().Params(recv.Clone()).Id(fd.Setter()).Params(param).Op("*").Id(name).Block(
			jen.Id("_u").Dot("update").Dot("Set").Call(column(fd).Dot("Name").Call(), valueOf(fd, jen.Id("v"))),
			jen.Return(jen.Id("_u")),
		)
		if fd.Nullable {
			f.Commentf("%s sets the %q field to NULL.", fd.Clearer(), fd.Name)
			f.Func().Params(recv.Clone()).Id(fd.Clearer()).Params().Op("*").Id(name).Block(
				jen.Id("_u").Dot("update").Dot("SetNull").Call(column(fd).Dot("Name").Call()),
				jen.Return(jen.Id("_u")),
			)
		}
	}

	f.Comment("Exec executes the update and returns the number of affected rows.")
	f.Comment("Without predicates every row of the table is updated.")
	f.Func().Params(recv.Clone()).Id("Exec").Params(jen.Id("ctx").Qual("context", "Context")).Params(jen.Int64(), jen.Error()).Block(
		jen.Return(jen.Id("_u").Dot("client").Dot("table").Dot("UpdateWhere").Call(
			jen.Id("ctx"),
			jen.Id("_u").Dot("update").Dot("Where").Call(jen.Id("_u").Dot("preds").Op("...")),
		)),
	)
}
