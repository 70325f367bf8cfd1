package golang

import (
	"github.com/dave/jennifer/jen"

	"github.com/syssam/storm/compiler/gen"
)

// mapper renders the row mapper of t. Columns, destinations and values are
// listed in field declaration order, and host types the driver cannot scan
// directly go through their conversion type or runtime adapter.
func (r *generator) mapper(f *jen.File, t *gen.Type) {
	name := t.MapperName()
	recv := jen.Id(name)
	f.Commentf("%s maps %s entities to and from %q rows.", name, t.Name, t.Table)
	f.Type().Id(name).Struct()

	f.Comment("Columns implements sql.RowMapper.")
	f.Func().Params(recv.Clone()).Id("Columns").Params().Index().String().Block(
		jen.Return(jen.Index().String().ValuesFunc(func(g *jen.Group) {
			for _, fd := range t.Fields {
				g.Lit(fd.Column)
			}
		})),
	)

	f.Comment("Dest implements sql.RowMapper.")
	f.Func().Params(recv.Clone()).Id("Dest").Params(jen.Id("e").Op("*").Id(t.Name)).Index().Any().Block(
		jen.Return(jen.Index().Any().ValuesFunc(func(g *jen.Group) {
			for _, fd := range t.Fields {
				dest := jen.Op("&").Id("e").Dot(fd.StructField())
				switch {
				case fd.Adapter() != "":
					dest = jen.Qual(sqlPkg, "Scan"+fd.Adapter()).Call(dest)
				case fd.Conv() != "":
					dest = jen.Parens(jen.Op("*").Id(fd.Conv())).Call(dest)
				}
				g.Add(dest)
			}
		})),
	)

	f.Comment("Values implements sql.RowMapper.")
	f.Func().Params(recv.Clone()).Id("Values").Params(jen.Id("e").Op("*").Id(t.Name)).Index().Any().Block(
		jen.Return(jen.Index().Any().ValuesFunc(func(g *jen.Group) {
			for _, fd := range t.Fields {
				g.Add(valueOf(fd, jen.Id("e").Dot(fd.StructField())))
			}
		})),
	)

	f.Var().Id("_").Qual(sqlPkg, "RowMapper").Types(jen.Id(t.Name)).Op("=").Id(name).Values()
}
