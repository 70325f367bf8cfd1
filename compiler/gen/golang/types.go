package golang

import (
	"strconv"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/storm/compiler/gen"
)

// typ returns the Go type expression of a host type such as "*time.Time",
// "[]byte" or "decimal.Decimal".
func (r *generator) typ(host string) *jen.Statement {
	switch {
	case strings.HasPrefix(host, "*"):
		return jen.Op("*").Add(r.typ(host[1:]))
	case strings.HasPrefix(host, "[]"):
		return jen.Index().Add(r.typ(host[2:]))
	}
	if pkg, name, ok := strings.Cut(host, "."); ok {
		return jen.Qual(r.cfg.ImportPath(pkg), name)
	}
	return jen.Id(host)
}

// baseType returns the Go type of the field without pointer indirection.
func (r *generator) baseType(f *gen.Field) *jen.Statement {
	return r.typ(f.BaseType())
}

// setterType returns the parameter type of the setters of f. Pointer hosts
// take their base value unless they are passed by reference.
func (r *generator) setterType(f *gen.Field) *jen.Statement {
	if f.ByRef() {
		return r.typ(f.HostType)
	}
	return r.baseType(f)
}

// null returns the value a builder assigns to clear f.
func (r *generator) null(f *gen.Field) jen.Code {
	if f.Adapter() != "" && !f.Pointer() {
		return r.typ(f.HostType).Values()
	}
	return jen.Nil()
}

// column returns the typed column expression of a field, e.g.
// BookFields.Title.
func column(f *gen.Field) *jen.Statement {
	return jen.Id(f.Type().FieldsName()).Dot(f.StructField())
}

// literal returns the Go constant of a literal default that the builder
// assigns up front, or false when the storage fills the default instead.
// Only non-pointer scalar hosts are assigned up front.
func literal(f *gen.Field) (jen.Code, bool) {
	if f.Default.Kind != gen.DefaultValue || f.Pointer() {
		return nil, false
	}
	v := f.Default.Value
	switch f.HostType {
	case "string":
		return jen.Lit(v), true
	case "bool":
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, false
		}
		return jen.Lit(b), true
	case "int", "int8", "int16", "int32", "int64", "time.Duration":
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false
		}
		return jen.Id(strconv.FormatInt(n, 10)), true
	case "uint", "uint8", "uint16", "uint32", "uint64":
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, false
		}
		return jen.Id(strconv.FormatUint(n, 10)), true
	case "float32", "float64":
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		return jen.Id(strconv.FormatFloat(x, 'g', -1, 64)), true
	}
	return nil, false
}

// deferred returns the fields whose default the storage fills when the
// caller sets no value. Key fields are always written.
func deferred(t *gen.Type) []*gen.Field {
	var fs []*gen.Field
	for _, f := range t.Fields {
		if f.PK || f.Default.Kind == gen.DefaultNone {
			continue
		}
		if _, ok := literal(f); !ok {
			fs = append(fs, f)
		}
	}
	return fs
}

// keyParams returns the parameters of a method addressing one entity by
// its primary key, and the arguments passing them on.
func (r *generator) keyParams(t *gen.Type) (params []jen.Code, args []jen.Code) {
	for _, f := range t.PrimaryKey {
		params = append(params, jen.Id(f.Param()).Add(r.typ(f.HostType)))
		args = append(args, jen.Id(f.Param()))
	}
	return params, args
}

// keyValues returns the primary key values of the entity held by v.
func keyValues(t *gen.Type, v string) []jen.Code {
	vs := make([]jen.Code, len(t.PrimaryKey))
	for i, f := range t.PrimaryKey {
		vs[i] = jen.Id(v).Dot(f.StructField())
	}
	return vs
}

// keyValue returns the primary key of the entity held by v as a single
// value: the field itself, or a []any of the composite key.
func keyValue(t *gen.Type, v string) jen.Code {
	if t.HasOneKey() {
		return jen.Id(v).Dot(t.KeyField().StructField())
	}
	return jen.Index().Any().Values(keyValues(t, v)...)
}

// valueOf converts v to the type the row mapper writes for f.
func valueOf(f *gen.Field, v jen.Code) jen.Code {
	if a := f.Adapter(); a != "" {
		return jen.Qual(sqlPkg, a+"Value").Call(v)
	}
	if c := f.Conv(); c != "" {
		return jen.Id(c).Call(v)
	}
	return v
}
