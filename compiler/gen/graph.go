package gen

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/syssam/storm/compiler/load"
)

// Graph holds the resolved types of one generation run. A Graph is
// immutable once NewGraph returns and may be shared by renderers.
type Graph struct {
	Config *Config
	// Nodes are the types of the graph sorted by name, including synthesized
	// join types.
	Nodes []*Type
	// Relations are the relations of all types, in node order.
	Relations []*Relation
	// Cycles are the cycle groups found among the types.
	Cycles []*CycleGroup
	// Warnings are non-fatal diagnostics, such as accepted range loss.
	Warnings []*Warning

	nodes       map[string]*Type
	fingerprint string
}

// hostTypeExpr matches host type spellings: builtins, pointers, byte
// slices and package qualified names.
var hostTypeExpr = regexp.MustCompile(`^\*?(\[\])?[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// NewGraph reads, resolves and type-maps the declarations. It returns every
// problem found as a single *Report.
func NewGraph(cfg *Config, schemas []*load.Schema) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Graph{Config: cfg, nodes: make(map[string]*Type)}
	rep := &Report{}
	decls := g.read(schemas, rep)
	newResolver(g, rep).resolve(decls)
	types := make([]*Type, 0, len(g.nodes))
	for _, t := range g.nodes {
		types = append(types, t)
	}
	slices.SortFunc(types, func(a, b *Type) int { return cmp.Compare(a.Name, b.Name) })
	NewTypeMapper(cfg).mapTypes(types, rep)
	g.Nodes = types
	for _, t := range g.Nodes {
		g.Relations = append(g.Relations, t.Relations...)
	}
	if err := rep.Err(); err != nil {
		return nil, err
	}
	g.Warnings = rep.Warnings
	for _, w := range g.Warnings {
		cfg.Log().Warn(w.Message, "entity", w.Entity, "field", w.Field, "rule", w.Rule)
	}
	g.fingerprint = g.hash()
	return g, nil
}

// LoadGraph loads the declarations of src and builds the graph.
func LoadGraph(ctx context.Context, cfg *Config, src load.Source) (*Graph, error) {
	schemas, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewGraph(cfg, schemas)
}

// Type returns the type with the given name, or nil.
func (g *Graph) Type(name string) *Type {
	return g.nodes[name]
}

// Persistent returns the types that are backed by a table, in node order.
func (g *Graph) Persistent() []*Type {
	var ts []*Type
	for _, t := range g.Nodes {
		if !t.View {
			ts = append(ts, t)
		}
	}
	return ts
}

// Declared returns the types that are not synthesized, in node order.
func (g *Graph) Declared() []*Type {
	var ts []*Type
	for _, t := range g.Nodes {
		if !t.Synthetic {
			ts = append(ts, t)
		}
	}
	return ts
}

// Fingerprint returns a stable hash of the resolved graph. Two graphs with
// the same fingerprint render identical artifacts.
func (g *Graph) Fingerprint() string {
	return g.fingerprint
}

// hash writes the canonical form of the graph into an xxh3 hasher.
func (g *Graph) hash() string {
	h := xxh3.New()
	w := func(parts ...string) {
		for _, p := range parts {
			io.WriteString(h, p)
			h.Write([]byte{0})
		}
		h.Write([]byte{'\n'})
	}
	w(g.Config.Dialect, g.Config.Package, g.Config.HeaderText())
	for _, t := range g.Nodes {
		w("type", t.Name, t.Table, strconv.FormatBool(t.View), strconv.FormatBool(t.Synthetic), t.Comment)
		for _, f := range t.Fields {
			var ref string
			if f.Ref != nil {
				ref = f.Ref.Type.Name + "." + f.Ref.Field.Name
			}
			w("field", f.Name, f.Column, f.HostType, f.Storage.String(),
				strconv.FormatBool(f.Nullable), strconv.FormatBool(f.PK), strconv.FormatBool(f.Unique),
				strconv.Itoa(int(f.Default.Kind)), f.Default.Value, f.Lossy, ref, f.Comment)
		}
		for _, r := range t.Relations {
			var through string
			if r.Through != nil {
				through = r.Through.Name
			}
			w("relation", r.Name, r.Kind.String(), r.To.Name, fieldNames(r.Fields), through, r.Inverse, strconv.FormatBool(r.Cyclic))
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func fieldNames(fs []*Field) string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return strings.Join(names, ",")
}

// read converts the declarations into types and enforces the structural
// rules. Duplicate entities keep their first declaration.
func (g *Graph) read(schemas []*load.Schema, rep *Report) map[*Type]*load.Schema {
	var (
		decls  = make(map[*Type]*load.Schema)
		dups   = make(map[string][]string)
		tables = make(map[string]*Type)
		order  []string
	)
	for i, s := range schemas {
		if s == nil {
			rep.Add(NewSchemaError("", "", RuleInvalidName, fmt.Sprintf("entity %d is empty", i)))
			continue
		}
		if !validName.MatchString(s.Name) {
			rep.Add(NewSchemaError(s.Name, "", RuleInvalidName, fmt.Sprintf("entity name %q is not a valid identifier", s.Name), s.Pos))
			continue
		}
		if prev, ok := g.nodes[s.Name]; ok {
			if len(dups[s.Name]) == 0 {
				dups[s.Name] = []string{prev.Pos}
				order = append(order, s.Name)
			}
			dups[s.Name] = append(dups[s.Name], s.Pos)
			continue
		}
		t := readType(s, rep)
		if prev, ok := tables[t.Table]; ok {
			rep.Add(NewSchemaError(t.Name, "", RuleDuplicateEntity,
				fmt.Sprintf("table %q is also used by entity %s", t.Table, prev.Name), prev.Pos, t.Pos))
		}
		tables[t.Table] = t
		g.nodes[t.Name] = t
		decls[t] = s
	}
	for _, name := range order {
		rep.Add(NewSchemaError(name, "", RuleDuplicateEntity,
			fmt.Sprintf("entity is declared %d times", len(dups[name])), dups[name]...))
	}
	return decls
}

func readType(s *load.Schema, rep *Report) *Type {
	t := &Type{
		Name:    s.Name,
		Pos:     s.Pos,
		Table:   s.Table,
		Comment: s.Comment,
		View:    s.View,
		fields:  make(map[string]*Field),
		columns: make(map[string]*Field),
	}
	if t.Table == "" {
		t.Table = tableName(s.Name)
	}
	if !validName.MatchString(t.Table) {
		rep.Add(NewSchemaError(t.Name, "", RuleInvalidName, fmt.Sprintf("table name %q is not a valid identifier", t.Table), t.Pos))
	}
	for _, fd := range s.Fields {
		if fd == nil {
			continue
		}
		f, ok := readField(t, fd, rep)
		if !ok {
			continue
		}
		if prev, ok := t.fields[f.Name]; ok {
			rep.Add(NewSchemaError(t.Name, f.Name, RuleDuplicateField, "field is declared more than once", prev.Pos, f.Pos))
			continue
		}
		if prev, ok := t.columns[f.Column]; ok {
			rep.Add(NewSchemaError(t.Name, f.Name, RuleDuplicateField,
				fmt.Sprintf("column %q is also used by field %s", f.Column, prev.Name), prev.Pos, f.Pos))
			continue
		}
		t.addField(f)
	}
	switch {
	case t.View && len(t.PrimaryKey) > 0:
		rep.Add(NewSchemaError(t.Name, "", RulePrimaryKey, "views cannot declare a primary key", t.Pos))
	case !t.View && len(t.PrimaryKey) == 0:
		rep.Add(NewSchemaError(t.Name, "", RulePrimaryKey, "entity declares no primary key", t.Pos))
	}
	return t
}

func readField(t *Type, fd *load.Field, rep *Report) (*Field, bool) {
	if !validName.MatchString(fd.Name) {
		rep.Add(NewSchemaError(t.Name, fd.Name, RuleInvalidName, fmt.Sprintf("field name %q is not a valid identifier", fd.Name), fd.Pos))
		return nil, false
	}
	f := &Field{
		Name:     fd.Name,
		Pos:      fd.Pos,
		Column:   fd.Column,
		HostType: strings.TrimSpace(fd.Type),
		PK:       fd.PrimaryKey,
		Unique:   fd.Unique,
		Lossy:    fd.Lossy,
		Comment:  fd.Comment,
		override: fd.Storage,
		declNull: fd.Nullable,
		ref:      strings.TrimSpace(fd.Ref),
	}
	if f.Column == "" {
		f.Column = snake(f.Name)
	}
	ok := true
	if !validName.MatchString(f.Column) {
		rep.Add(NewSchemaError(t.Name, f.Name, RuleInvalidName, fmt.Sprintf("column name %q is not a valid identifier", f.Column), f.Pos))
		ok = false
	}
	if !hostTypeExpr.MatchString(f.HostType) {
		rep.Add(NewSchemaError(t.Name, f.Name, RuleHostType, fmt.Sprintf("invalid host type %q", fd.Type), f.Pos))
		ok = false
	}
	switch {
	case f.PK && f.declNull:
		rep.Add(NewSchemaError(t.Name, f.Name, RuleNullablePK, "primary key fields cannot be nullable", f.Pos))
		f.declNull = false
	case f.PK && (f.Pointer() || !f.Comparable()):
		rep.Add(NewSchemaError(t.Name, f.Name, RulePrimaryKey, fmt.Sprintf("host type %s cannot hold a primary key", f.HostType), f.Pos))
	}
	switch {
	case fd.Default != "" && fd.DefaultExpr != "":
		rep.Add(NewSchemaError(t.Name, f.Name, RuleDefault, "default and default_expr are mutually exclusive", f.Pos))
		ok = false
	case fd.Default != "":
		f.Default = DefaultPolicy{Kind: DefaultValue, Value: fd.Default}
	case fd.DefaultExpr != "":
		f.Default = DefaultPolicy{Kind: DefaultExpr, Value: fd.DefaultExpr}
	}
	return f, ok
}

func (t *Type) addField(f *Field) {
	f.typ = t
	t.Fields = append(t.Fields, f)
	t.fields[f.Name] = f
	t.columns[f.Column] = f
	if f.PK {
		t.PrimaryKey = append(t.PrimaryKey, f)
	}
}
