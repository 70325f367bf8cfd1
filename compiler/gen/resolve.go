package gen

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/storm/compiler/load"
)

// resolver links field references and declared relations between the types
// of a graph, synthesizes join types and detects cycles.
type resolver struct {
	g   *Graph
	rep *Report
	// joins holds the synthesized join types by name.
	joins map[string]*Type
	bad   map[*Relation]bool
}

// pending is a declared relation whose resolution depends on the owning
// relations of other types.
type pending struct {
	rel  *Relation
	decl *load.Relation
}

func newResolver(g *Graph, rep *Report) *resolver {
	return &resolver{g: g, rep: rep, joins: make(map[string]*Type), bad: make(map[*Relation]bool)}
}

func (r *resolver) resolve(decls map[*Type]*load.Schema) {
	types := make([]*Type, 0, len(decls))
	for t := range decls {
		types = append(types, t)
	}
	slices.SortFunc(types, byName)
	for _, t := range types {
		for _, f := range t.Fields {
			if f.ref != "" {
				r.reference(t, f)
			}
		}
	}
	var back, many []pending
	declared := make(map[*Type][]*Relation)
	for _, t := range types {
		covered := make(map[*Field]bool)
		for _, rd := range decls[t].Relations {
			if rd == nil {
				continue
			}
			rel, ok := r.declare(t, rd)
			if !ok {
				continue
			}
			declared[t] = append(declared[t], rel)
			switch {
			case rel.Kind == M2M:
				many = append(many, pending{rel, rd})
			case rel.Kind == O2M, rel.Kind == O2O && len(rd.Fields) == 0:
				back = append(back, pending{rel, rd})
			default:
				r.owning(rel, rd.Fields)
				for _, f := range rel.Fields {
					covered[f] = true
				}
			}
		}
		for _, f := range t.Fields {
			if f.Ref != nil && !covered[f] {
				t.Relations = append(t.Relations, implicit(t, f))
			}
		}
	}
	for _, t := range types {
		t.Relations = append(t.Relations, declared[t]...)
	}
	for _, p := range back {
		r.inverse(p.rel, p.decl.Inverse)
	}
	// Relations without an inverse own their join type; resolve them first
	// so inverses can share it.
	slices.SortStableFunc(many, func(a, b pending) int {
		return cmpBool(a.decl.Inverse != "", b.decl.Inverse != "")
	})
	for _, p := range many {
		r.manyToMany(p.rel, p.decl)
	}
	for _, t := range types {
		t.Relations = slices.DeleteFunc(t.Relations, func(rel *Relation) bool { return r.bad[rel] })
	}
	r.cycles()
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

func byName(a, b *Type) int { return cmp.Compare(a.Name, b.Name) }

// reference resolves the "Entity" or "Entity.field" reference of a field.
func (r *resolver) reference(t *Type, f *Field) {
	entity, field, _ := strings.Cut(f.ref, ".")
	target := r.g.nodes[entity]
	if target == nil {
		r.rep.Add(&DanglingReferenceError{Entity: t.Name, Field: f.Name, Target: f.ref, Site: f.Pos,
			Message: fmt.Sprintf("entity %s is not declared", entity)})
		return
	}
	var key *Field
	switch {
	case field != "":
		if key = target.Field(field); key == nil {
			r.rep.Add(&DanglingReferenceError{Entity: t.Name, Field: f.Name, Target: f.ref, Site: f.Pos,
				Message: fmt.Sprintf("entity %s has no field %s", entity, field)})
			return
		}
	case target.HasOneKey():
		key = target.PrimaryKey[0]
	default:
		r.rep.Add(NewSchemaError(t.Name, f.Name, RuleRefKey,
			fmt.Sprintf("%s has no single-column primary key to reference", entity), f.Pos))
		return
	}
	if !(key.PK && target.HasOneKey()) && !key.Unique {
		r.rep.Add(NewSchemaError(t.Name, f.Name, RuleRefKey,
			fmt.Sprintf("%s.%s is neither the primary key nor unique", entity, key.Name), f.Pos, key.Pos))
		return
	}
	if f.BaseType() != key.BaseType() {
		r.rep.Add(NewSchemaError(t.Name, f.Name, RuleRefType,
			fmt.Sprintf("type %s does not match %s of %s.%s", f.HostType, key.HostType, entity, key.Name), f.Pos, key.Pos))
		return
	}
	f.Ref = &Ref{Type: target, Field: key}
}

// implicit returns the relation a reference field declares by itself.
func implicit(t *Type, f *Field) *Relation {
	name := refStem(f.Name)
	if name == f.Name {
		name = camel(f.Ref.Type.Name)
	}
	if name == f.Name {
		name += "Ref"
	}
	kind := M2O
	if f.Unique || f.PK && t.HasOneKey() {
		kind = O2O
	}
	return &Relation{
		Name:       name,
		Pos:        f.Pos,
		Kind:       kind,
		From:       t,
		To:         f.Ref.Type,
		Fields:     []*Field{f},
		References: []*Field{f.Ref.Field},
	}
}

// declare creates the relation of a declaration and checks its target.
func (r *resolver) declare(t *Type, rd *load.Relation) (*Relation, bool) {
	if !validName.MatchString(rd.Name) {
		r.rep.Add(NewSchemaError(t.Name, rd.Name, RuleInvalidName, fmt.Sprintf("relation name %q is not a valid identifier", rd.Name), rd.Pos))
		return nil, false
	}
	kind, ok := parseRelKind(rd.Kind)
	if !ok {
		r.rep.Add(NewSchemaError(t.Name, rd.Name, RuleRelation, fmt.Sprintf("unknown relation kind %q", rd.Kind), rd.Pos))
		return nil, false
	}
	target := r.g.nodes[rd.Target]
	if target == nil {
		r.rep.Add(&DanglingReferenceError{Entity: t.Name, Field: rd.Name, Target: rd.Target, Site: rd.Pos,
			Message: fmt.Sprintf("entity %s is not declared", rd.Target)})
		return nil, false
	}
	return &Relation{Name: rd.Name, Pos: rd.Pos, Kind: kind, From: t, To: target}, true
}

// owning resolves a relation whose foreign key is held by the source type.
func (r *resolver) owning(rel *Relation, names []string) {
	from, to := rel.From, rel.To
	if len(names) != len(to.PrimaryKey) {
		r.fail(rel, NewSchemaError(from.Name, rel.Name, RuleRefKey,
			fmt.Sprintf("foreign key has %d fields but the primary key of %s has %d", len(names), to.Name, len(to.PrimaryKey)), rel.Pos))
		return
	}
	fields := make([]*Field, len(names))
	for i, name := range names {
		f := from.Field(name)
		if f == nil {
			r.fail(rel, &DanglingReferenceError{Entity: from.Name, Field: rel.Name, Target: from.Name + "." + name, Site: rel.Pos,
				Message: fmt.Sprintf("entity %s has no field %s", from.Name, name)})
			return
		}
		key := to.PrimaryKey[i]
		if f.BaseType() != key.BaseType() {
			r.fail(rel, NewSchemaError(from.Name, f.Name, RuleRefType,
				fmt.Sprintf("type %s does not match %s of %s.%s", f.HostType, key.HostType, to.Name, key.Name), f.Pos, key.Pos))
			return
		}
		if f.Ref != nil && f.Ref.Type != to {
			r.fail(rel, NewSchemaError(from.Name, f.Name, RuleRelation,
				fmt.Sprintf("field references %s but relation %s targets %s", f.Ref.Type.Name, rel.Name, to.Name), f.Pos, rel.Pos))
			return
		}
		fields[i] = f
	}
	rel.Fields, rel.References = fields, to.PrimaryKey
}

// inverse resolves a relation whose foreign key is held by the target type,
// by pointing it at the owning relation named by the inverse.
func (r *resolver) inverse(rel *Relation, name string) {
	if name == "" {
		r.fail(rel, NewSchemaError(rel.From.Name, rel.Name, RuleRelation,
			fmt.Sprintf("%s relation needs an inverse naming the owning relation or field of %s", rel.Kind, rel.To.Name), rel.Pos))
		return
	}
	var own *Relation
	for _, x := range rel.To.Relations {
		owns := !x.Back && x.To == rel.From && (x.Kind == M2O || x.Kind == O2O) && len(x.Fields) > 0
		if owns && (x.Name == name || len(x.Fields) == 1 && x.Fields[0].Name == name) {
			own = x
			break
		}
	}
	switch {
	case own == nil:
		r.fail(rel, &DanglingReferenceError{Entity: rel.From.Name, Field: rel.Name, Target: rel.To.Name + "." + name, Site: rel.Pos,
			Message: fmt.Sprintf("no relation or reference field %s of %s points to %s", name, rel.To.Name, rel.From.Name)})
		return
	case rel.Kind == O2O && own.Kind != O2O:
		r.fail(rel, NewSchemaError(rel.From.Name, rel.Name, RuleRelation,
			fmt.Sprintf("one-to-one relation cannot invert %s relation %s.%s", own.Kind, rel.To.Name, own.Name), rel.Pos, own.Pos))
		return
	}
	rel.Back = true
	rel.Fields, rel.References = own.Fields, own.References
	rel.Inverse = own.Name
	if own.Inverse == "" {
		own.Inverse = rel.Name
	}
}

func (r *resolver) manyToMany(rel *Relation, rd *load.Relation) {
	from, to := rel.From, rel.To
	if !from.HasOneKey() || !to.HasOneKey() {
		r.fail(rel, NewSchemaError(from.Name, rel.Name, RuleRelation,
			fmt.Sprintf("many-to-many relations need single-column primary keys on %s and %s", from.Name, to.Name), rel.Pos))
		return
	}
	if rd.Inverse != "" {
		x := to.Relation(rd.Inverse)
		if x == nil || x.Kind != M2M || x.To != from || r.bad[x] {
			r.fail(rel, &DanglingReferenceError{Entity: from.Name, Field: rel.Name, Target: to.Name + "." + rd.Inverse, Site: rel.Pos,
				Message: fmt.Sprintf("%s has no many-to-many relation %s to %s", to.Name, rd.Inverse, from.Name)})
			return
		}
		if x.Through != nil {
			if rd.Through != "" && rd.Through != x.Through.Name {
				r.fail(rel, NewSchemaError(from.Name, rel.Name, RuleThrough,
					fmt.Sprintf("join entity %s differs from %s used by the inverse %s.%s", rd.Through, x.Through.Name, to.Name, x.Name), rel.Pos, x.Pos))
				return
			}
			rel.Through, rel.ThroughFrom, rel.ThroughTo = x.Through, x.ThroughTo, x.ThroughFrom
			rel.Inverse, x.Inverse = x.Name, rel.Name
			return
		}
		// Both sides name each other; the first one resolved owns the join.
		rel.Inverse = x.Name
	}
	if rd.Through != "" {
		r.through(rel, rd.Through)
		return
	}
	r.synthesize(rel)
}

// through binds a many-to-many relation to a declared join entity.
func (r *resolver) through(rel *Relation, name string) {
	from, to := rel.From, rel.To
	th := r.g.nodes[name]
	if th == nil {
		r.fail(rel, &DanglingReferenceError{Entity: from.Name, Field: rel.Name, Target: name, Site: rel.Pos,
			Message: fmt.Sprintf("join entity %s is not declared", name)})
		return
	}
	var left, right *Field
	for _, f := range th.Fields {
		if f.Ref == nil || !f.Ref.Field.PK {
			continue
		}
		switch {
		case left == nil && f.Ref.Type == from:
			left = f
		case right == nil && f.Ref.Type == to:
			right = f
		}
	}
	for _, side := range []struct {
		f *Field
		t *Type
	}{{left, from}, {right, to}} {
		if side.f == nil {
			r.fail(rel, NewSchemaError(from.Name, rel.Name, RuleThrough,
				fmt.Sprintf("join entity %s has no field referencing the primary key of %s", th.Name, side.t.Name), rel.Pos, th.Pos))
			return
		}
	}
	rel.Through, rel.ThroughFrom, rel.ThroughTo = th, left, right
}

// synthesize creates the join type of a many-to-many relation. The join is
// named after both participants in name order; a second relation over the
// same pair, and a relation of a type to itself, append the relation name.
func (r *resolver) synthesize(rel *Relation) {
	a, b := rel.From, rel.To
	if b.Name < a.Name {
		a, b = b, a
	}
	name := a.Name + b.Name
	if a == b {
		name = a.Name + pascal(singular(rel.Name))
	}
	if _, taken := r.joins[name]; taken {
		name += pascal(rel.Name)
	}
	table := snake(name)
	for _, t := range r.g.nodes {
		if t.Name == name || t.Table == table {
			r.fail(rel, &NameCollisionError{
				Entity:  rel.From.Name,
				Ident:   name,
				Members: []string{"entity " + t.Name, fmt.Sprintf("join type of relation %s.%s", rel.From.Name, rel.Name)},
				Sites:   []string{t.Pos, rel.Pos},
			})
			return
		}
	}
	lk, rk := a.KeyField(), b.KeyField()
	left := joinField(a, lk, snake(a.Name)+"_"+lk.Column, rel.Pos)
	right := joinField(b, rk, snake(b.Name)+"_"+rk.Column, rel.Pos)
	if a == b {
		right = joinField(b, rk, snake(singular(rel.Name))+"_"+rk.Column, rel.Pos)
	}
	t := &Type{
		Name:      name,
		Pos:       rel.Pos,
		Table:     table,
		Comment:   fmt.Sprintf("%s joins %s and %s.", name, a.Name, b.Name),
		Synthetic: true,
		fields:    make(map[string]*Field),
		columns:   make(map[string]*Field),
	}
	t.addField(left)
	t.addField(right)
	r.joins[name] = t
	r.g.nodes[name] = t
	rel.Through, rel.ThroughFrom, rel.ThroughTo = t, left, right
	if rel.From != a {
		rel.ThroughFrom, rel.ThroughTo = right, left
	}
}

func joinField(t *Type, key *Field, column, pos string) *Field {
	return &Field{
		Name:     camel(column),
		Pos:      pos,
		Column:   column,
		HostType: key.BaseType(),
		PK:       true,
		Ref:      &Ref{Type: t, Field: key},
		override: key.override,
	}
}

func (r *resolver) fail(rel *Relation, p Problem) {
	r.bad[rel] = true
	r.rep.Add(p)
}

// cycles finds the strongly connected components of the relation graph
// (Tarjan) and marks relations that stay within one component.
func (r *resolver) cycles() {
	nodes := make([]*Type, 0, len(r.g.nodes))
	for _, t := range r.g.nodes {
		nodes = append(nodes, t)
	}
	slices.SortFunc(nodes, byName)
	var (
		index   = make(map[*Type]int)
		low     = make(map[*Type]int)
		onStack = make(map[*Type]bool)
		stack   []*Type
		groups  [][]*Type
		next    int
		visit   func(*Type)
	)
	visit = func(t *Type) {
		index[t], low[t] = next, next
		next++
		stack = append(stack, t)
		onStack[t] = true
		for _, rel := range t.Relations {
			switch u := rel.To; {
			case u == nil:
			case !has(index, u):
				visit(u)
				low[t] = min(low[t], low[u])
			case onStack[u]:
				low[t] = min(low[t], index[u])
			}
		}
		if low[t] != index[t] {
			return
		}
		var scc []*Type
		for {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[u] = false
			scc = append(scc, u)
			if u == t {
				break
			}
		}
		if len(scc) > 1 || slices.ContainsFunc(t.Relations, func(rel *Relation) bool { return rel.To == t }) {
			slices.SortFunc(scc, byName)
			groups = append(groups, scc)
		}
	}
	for _, t := range nodes {
		if !has(index, t) {
			visit(t)
		}
	}
	slices.SortFunc(groups, func(a, b []*Type) int { return byName(a[0], b[0]) })
	member := make(map[*Type]*CycleGroup)
	for i, scc := range groups {
		cg := &CycleGroup{ID: i + 1, Types: scc}
		r.g.Cycles = append(r.g.Cycles, cg)
		for _, t := range scc {
			member[t] = cg
		}
	}
	for _, t := range nodes {
		for _, rel := range t.Relations {
			if cg := member[t]; cg != nil && member[rel.To] == cg {
				rel.Cyclic, rel.CycleGroup = true, cg
			}
		}
	}
}

func has[K comparable, V any](m map[K]V, k K) bool {
	_, ok := m[k]
	return ok
}
