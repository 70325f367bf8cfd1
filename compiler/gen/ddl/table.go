package ddl

import (
	"fmt"
	"slices"
	"strings"

	"ariga.io/atlas/sql/schema"

	"github.com/syssam/storm/compiler/gen"
)

// Tables returns the Atlas tables of the persistent types of g, ordered so
// that every table follows the tables its foreign keys reference. Foreign
// keys closing a cycle do not constrain the order.
func Tables(g *gen.Graph) ([]*schema.Table, error) {
	var (
		types  = g.Persistent()
		tables = make(map[*gen.Type]*schema.Table, len(types))
	)
	for _, t := range types {
		st, err := table(g.Config.Dialect, t)
		if err != nil {
			return nil, err
		}
		tables[t] = st
	}
	for _, t := range types {
		for _, fk := range foreignKeys(t) {
			if err := addForeignKey(tables, t, fk); err != nil {
				return nil, err
			}
		}
	}
	return order(types, tables), nil
}

func table(name string, t *gen.Type) (*schema.Table, error) {
	st := schema.NewTable(t.Table)
	if t.Comment != "" {
		st.SetComment(t.Comment)
	}
	for _, f := range t.Fields {
		c, err := column(name, f)
		if err != nil {
			return nil, fmt.Errorf("ddl: %s.%s: %w", t.Name, f.Name, err)
		}
		st.AddColumns(c)
	}
	pk := make([]*schema.Column, len(t.PrimaryKey))
	for i, f := range t.PrimaryKey {
		pk[i] = columnOf(st, f)
	}
	st.SetPrimaryKey(schema.NewPrimaryKey(pk...))
	for _, f := range t.Fields {
		if f.Unique && !(f.PK && t.HasOneKey()) {
			st.AddIndexes(schema.NewUniqueIndex(fmt.Sprintf("%s_%s_key", t.Table, f.Column)).AddColumns(columnOf(st, f)))
		}
	}
	return st, nil
}

func column(name string, f *gen.Field) (*schema.Column, error) {
	typ, err := parseType(name, f.Storage.String())
	if err != nil {
		return nil, err
	}
	c := schema.NewColumn(f.Column).SetType(typ).SetNull(f.Nullable)
	switch f.Default.Kind {
	case gen.DefaultValue:
		c.SetDefault(&schema.Literal{V: f.Default.Value})
	case gen.DefaultExpr:
		c.SetDefault(&schema.RawExpr{X: f.Default.Value})
	}
	if f.Comment != "" {
		c.SetComment(f.Comment)
	}
	return c, nil
}

func columnOf(t *schema.Table, f *gen.Field) *schema.Column {
	c, _ := t.Column(f.Column)
	return c
}

// fkey is a foreign key of a type: the referencing fields and the
// referenced key fields of another type.
type fkey struct {
	fields, refs []*gen.Field
	cascade      bool
}

// foreignKeys returns the foreign keys held by t: one per owning relation,
// plus one per referencing field no relation covers, as in join types.
func foreignKeys(t *gen.Type) []fkey {
	var (
		fks     []fkey
		covered = make(map[*gen.Field]bool)
	)
	for _, r := range t.Relations {
		if r.Back || r.Kind == gen.M2M || len(r.Fields) == 0 {
			continue
		}
		fks = append(fks, fkey{fields: r.Fields, refs: r.References})
		for _, f := range r.Fields {
			covered[f] = true
		}
	}
	for _, f := range t.Fields {
		if f.Ref != nil && !covered[f] {
			fks = append(fks, fkey{fields: []*gen.Field{f}, refs: []*gen.Field{f.Ref.Field}, cascade: t.Synthetic})
		}
	}
	return fks
}

func addForeignKey(tables map[*gen.Type]*schema.Table, t *gen.Type, fk fkey) error {
	ref := fk.refs[0].Type()
	st, rt := tables[t], tables[ref]
	if rt == nil {
		return fmt.Errorf("ddl: %s references %s, which has no table", t.Name, ref.Name)
	}
	names := make([]string, len(fk.fields))
	for i, f := range fk.fields {
		names[i] = f.Column
	}
	sfk := schema.NewForeignKey(fmt.Sprintf("%s_%s_fkey", t.Table, strings.Join(names, "_"))).
		SetRefTable(rt)
	for i, f := range fk.fields {
		sfk.AddColumns(columnOf(st, f)).AddRefColumns(columnOf(rt, fk.refs[i]))
	}
	if fk.cascade {
		sfk.SetOnDelete(schema.Cascade)
	}
	st.AddForeignKeys(sfk)
	return nil
}

// order sorts the tables depth-first along their foreign keys, visiting
// types by name.
func order(types []*gen.Type, tables map[*gen.Type]*schema.Table) []*schema.Table {
	byTable := make(map[*schema.Table]*gen.Type, len(tables))
	for t, st := range tables {
		byTable[st] = t
	}
	var (
		sorted []*schema.Table
		state  = make(map[*gen.Type]int)
		visit  func(*gen.Type)
	)
	visit = func(t *gen.Type) {
		if state[t] != 0 {
			return
		}
		state[t] = 1
		for _, fk := range tables[t].ForeignKeys {
			visit(byTable[fk.RefTable])
		}
		state[t] = 2
		sorted = append(sorted, tables[t])
	}
	names := slices.Clone(types)
	slices.SortFunc(names, func(a, b *gen.Type) int { return strings.Compare(a.Name, b.Name) })
	for _, t := range names {
		visit(t)
	}
	return sorted
}
