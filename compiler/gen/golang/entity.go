package golang

import (
	"github.com/dave/jennifer/jen"

	"github.com/syssam/storm/compiler/gen"
)

// entity renders the model struct of t, its edges struct, String method,
// metadata variable and typed field set.
func (r *generator) entity(f *jen.File, t *gen.Type) {
	if t.Comment != "" {
		f.Comment(t.Comment)
		f.Comment("")
	}
	f.Commentf("%s is the model entity for the %s schema.", t.Name, t.Name)
	f.Type().Id(t.Name).StructFunc(func(g *jen.Group) {
		for _, fd := range t.Fields {
			switch {
			case fd.Comment != "" && fd.Lossy != "":
				g.Comment(fd.Comment)
				g.Commentf("Lossy: %s", fd.Lossy)
			case fd.Comment != "":
				g.Comment(fd.Comment)
			case fd.Lossy != "":
				g.Commentf("%s is stored as %s. Lossy: %s", fd.StructField(), fd.Storage, fd.Lossy)
			}
			tag := fd.Name
			if fd.Nillable() {
				tag += ",omitempty"
			}
			g.Id(fd.StructField()).Add(r.typ(fd.HostType)).Tag(map[string]string{"json": tag})
		}
		if len(t.Relations) > 0 {
			g.Comment("Edges holds the relations of the entity loaded by its query.")
			g.Id("Edges").Id(t.EdgesName()).Tag(map[string]string{"json": "edges"})
		}
	})

	if len(t.Relations) > 0 {
		f.Commentf("%s holds the relations of a %s.", t.EdgesName(), t.Name)
		f.Type().Id(t.EdgesName()).StructFunc(func(g *jen.Group) {
			for _, rel := range t.Relations {
				g.Commentf("%s holds the value of the %s edge.", rel.StructField(), rel.Name)
				typ := jen.Index().Op("*").Id(rel.To.Name)
				if rel.Unique() {
					typ = jen.Op("*").Id(rel.To.Name)
				}
				g.Id(rel.StructField()).Add(typ).Tag(map[string]string{"json": rel.Name + ",omitempty"})
			}
		})
	}

	f.Comment("String implements the fmt.Stringer.")
	f.Func().Params(jen.Id("_e").Op("*").Id(t.Name)).Id("String").Params().String().BlockFunc(func(g *jen.Group) {
		g.Var().Id("builder").Qual("strings", "Builder")
		g.Id("builder").Dot("WriteString").Call(jen.Lit(t.Name + "("))
		for i, fd := range t.Fields {
			label := fd.Name + "="
			if i > 0 {
				label = ", " + label
			}
			v := jen.Id("_e").Dot(fd.StructField())
			if fd.Pointer() {
				// Pointer hosts passed by reference format themselves.
				elem := jen.Op("*").Id("v")
				if fd.ByRef() {
					elem = jen.Id("v")
				}
				g.If(jen.Id("v").Op(":=").Add(v), jen.Id("v").Op("!=").Nil()).Block(
					jen.Id("builder").Dot("WriteString").Call(jen.Lit(label)),
					jen.Id("builder").Dot("WriteString").Call(jen.Qual("fmt", "Sprintf").Call(jen.Lit("%v"), elem)),
				)
				continue
			}
			g.Id("builder").Dot("WriteString").Call(jen.Lit(label))
			g.Id("builder").Dot("WriteString").Call(jen.Qual("fmt", "Sprintf").Call(jen.Lit("%v"), v))
		}
		g.Id("builder").Dot("WriteByte").Call(jen.LitRune(')'))
		g.Return(jen.Id("builder").Dot("String").Call())
	})

	f.Commentf("%s describes the %s entity and its %q table.", t.InfoName(), t.Name, t.Table)
	f.Var().Id(t.InfoName()).Op("=").Op("&").Qual(stormPkg, "EntityInfo").Values(jen.Dict{
		jen.Id("Name"):  jen.Lit(t.Name),
		jen.Id("Table"): jen.Lit(t.Table),
		jen.Id("Columns"): jen.Index().Qual(stormPkg, "ColumnInfo").ValuesFunc(func(g *jen.Group) {
			for _, fd := range t.Fields {
				d := jen.Dict{
					jen.Id("Field"):  jen.Lit(fd.StructField()),
					jen.Id("Column"): jen.Lit(fd.Column),
					jen.Id("Type"):   jen.Lit(fd.Storage.String()),
				}
				if fd.Nullable {
					d[jen.Id("Nullable")] = jen.True()
				}
				if fd.PK {
					d[jen.Id("PrimaryKey")] = jen.True()
				}
				if fd.Lossy != "" {
					d[jen.Id("Lossy")] = jen.Lit(fd.Lossy)
				}
				g.Values(d)
			}
		}),
	})

	f.Commentf("%s holds the typed columns of %s for building predicates and orders.", t.FieldsName(), t.Name)
	f.Var().Id(t.FieldsName()).Op("=").StructFunc(func(g *jen.Group) {
		for _, fd := range t.Fields {
			g.Id(fd.StructField()).Add(r.fieldType(fd))
		}
	}).Values(jen.DictFunc(func(d jen.Dict) {
		for _, fd := range t.Fields {
			if fd.IsString() {
				d[jen.Id(fd.StructField())] = jen.Qual(sqlPkg, "NewStringField").Call(jen.Lit(fd.Column))
				continue
			}
			d[jen.Id(fd.StructField())] = r.fieldType(fd).Call(jen.Lit(fd.Column))
		}
	}))
}

// fieldType returns the typed column type of a field.
func (r *generator) fieldType(f *gen.Field) *jen.Statement {
	if f.IsString() {
		return jen.Qual(sqlPkg, "StringField")
	}
	if a := f.Adapter(); a != "" {
		return jen.Qual(sqlPkg, a+"Field")
	}
	return jen.Qual(sqlPkg, "Field").Types(r.baseType(f))
}

