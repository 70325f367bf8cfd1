package load

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// StructSource builds declarations from Go struct values. The entity name is
// the struct type name and every exported field is an entity field unless
// tagged `storm:"-"`. Field options are read from the storm tag:
//
//	type Book struct {
//		_        struct{}  `storm:"table=books"`
//		ID       int64     `storm:"id,pk"`
//		AuthorID int64     `storm:"author_id,ref=Author.ID"`
//		Price    float64   `storm:"storage=numeric(10,2),lossy=rounded to cents"`
//		Tags     []Tag     `storm:"rel=many-to-many"`
//	}
//
// The first tag element, when it has no '=', is the column name. Options on
// the blank field apply to the entity.
type StructSource struct {
	values []any
}

// Structs returns a source over the given struct values or pointers to them.
func Structs(values ...any) *StructSource {
	return &StructSource{values: values}
}

// Load implements Source.
func (s *StructSource) Load(context.Context) ([]*Schema, error) {
	schemas := make([]*Schema, 0, len(s.values))
	for _, v := range s.values {
		sc, err := structSchema(v)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, sc)
	}
	return schemas, nil
}

func structSchema(v any) (*Schema, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("load: expect struct or struct pointer, got %T", v)
	}
	sc := &Schema{Name: t.Name(), Pos: structPos(t)}
	for i := range t.NumField() {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup("storm")
		if tag == "-" {
			continue
		}
		if sf.Name == "_" {
			if ok {
				if err := entityOptions(sc, tag); err != nil {
					return nil, err
				}
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}
		opts, err := parseTag(tag)
		if err != nil {
			return nil, fmt.Errorf("load: %s.%s: %w", sc.Name, sf.Name, err)
		}
		pos := sc.Pos + "." + sf.Name
		if kind, ok := opts["rel"]; ok {
			r, err := structRelation(sf, kind, opts)
			if err != nil {
				return nil, fmt.Errorf("load: %s.%s: %w", sc.Name, sf.Name, err)
			}
			r.Pos = pos
			sc.Relations = append(sc.Relations, r)
			continue
		}
		f := &Field{
			Name:        sf.Name,
			Pos:         pos,
			Type:        hostType(sf.Type),
			Column:      opts[""],
			Storage:     opts["storage"],
			Default:     opts["default"],
			DefaultExpr: opts["default_expr"],
			Lossy:       opts["lossy"],
			Ref:         opts["ref"],
			Comment:     opts["comment"],
		}
		_, f.PrimaryKey = opts["pk"]
		_, f.Nullable = opts["null"]
		_, f.Unique = opts["unique"]
		sc.Fields = append(sc.Fields, f)
	}
	return sc, nil
}

func entityOptions(sc *Schema, tag string) error {
	opts, err := parseTag(tag)
	if err != nil {
		return fmt.Errorf("load: %s: %w", sc.Name, err)
	}
	sc.Table = opts["table"]
	sc.Comment = opts["comment"]
	_, sc.View = opts["view"]
	return nil
}

func structRelation(sf reflect.StructField, kind string, opts map[string]string) (*Relation, error) {
	target := sf.Type
	for target.Kind() == reflect.Pointer || target.Kind() == reflect.Slice {
		target = target.Elem()
	}
	if target.Kind() != reflect.Struct {
		return nil, fmt.Errorf("relation field must reference a struct type, got %s", sf.Type)
	}
	r := &Relation{
		Name:    sf.Name,
		Kind:    kind,
		Target:  target.Name(),
		Through: opts["through"],
		Inverse: opts["inverse"],
	}
	if fields := opts["fields"]; fields != "" {
		r.Fields = strings.Split(fields, "|")
	}
	return r, nil
}

// parseTag splits a tag into options. Commas inside parentheses do not
// separate options, so "storage=numeric(10,2)" stays whole. The bare first
// element is stored under the empty key.
func parseTag(tag string) (map[string]string, error) {
	opts := make(map[string]string)
	if tag == "" {
		return opts, nil
	}
	var (
		parts []string
		depth int
		start int
	)
	for i, c := range tag {
		switch c {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return nil, fmt.Errorf("unbalanced ')' in tag %q", tag)
			}
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, tag[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '(' in tag %q", tag)
	}
	parts = append(parts, tag[start:])
	for i, p := range parts {
		p = strings.TrimSpace(p)
		k, v, hasValue := strings.Cut(p, "=")
		switch {
		case i == 0 && !hasValue:
			opts[""] = p
		case hasValue:
			opts[strings.TrimSpace(k)] = strings.TrimSpace(v)
		case p != "":
			opts[p] = ""
		}
	}
	return opts, nil
}

// hostType spells t the way it is written in Go source.
func hostType(t reflect.Type) string {
	switch {
	case t.Kind() == reflect.Pointer:
		return "*" + hostType(t.Elem())
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 && t.Name() == "":
		return "[]byte"
	case t.Kind() == reflect.Slice && t.Name() == "":
		return "[]" + hostType(t.Elem())
	case t.PkgPath() != "":
		pkg := t.PkgPath()
		if i := strings.LastIndexByte(pkg, '/'); i >= 0 {
			pkg = pkg[i+1:]
		}
		return pkg + "." + t.Name()
	default:
		return t.String()
	}
}

func structPos(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}
