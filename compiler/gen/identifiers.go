package gen

import (
	"fmt"
)

// Identifiers reserved by the generated Go package and its declarations.
var (
	reservedPackage = []string{"Client", "NewClient", "Open", "Registry", "Schema"}
	reservedRoot    = []string{"Close", "Driver", "CreateSchema", "driver"}
	reservedEntity  = []string{"Edges", "String"}
	reservedQuery   = []string{"Where", "Order", "Limit", "Offset", "All", "First", "Only", "Count", "Exist", "Clone", "WithAll", "selector", "loadEdges"}
	reservedBuilder = []string{"Build", "Save", "Where", "Exec"}
	reservedClient  = []string{"Create", "CreateBulk", "Get", "Query", "Update", "UpdateOne", "Delete", "DeleteOne"}
)

// namespace collects the members that produce each identifier of one scope.
type namespace struct {
	entity string
	idents map[string][]member
	order  []string
}

type member struct{ name, site string }

func newNamespace(entity string, reserved ...string) *namespace {
	ns := &namespace{entity: entity, idents: make(map[string][]member)}
	for _, r := range reserved {
		ns.add(r, "generated "+r, "")
	}
	return ns
}

func (ns *namespace) add(ident, name, site string) {
	if _, ok := ns.idents[ident]; !ok {
		ns.order = append(ns.order, ident)
	}
	ns.idents[ident] = append(ns.idents[ident], member{name, site})
}

func (ns *namespace) check(rep *Report) {
	for _, ident := range ns.order {
		ms := ns.idents[ident]
		if len(ms) < 2 {
			continue
		}
		err := &NameCollisionError{Entity: ns.entity, Ident: ident}
		for _, m := range ms {
			err.Members = append(err.Members, m.name)
			if m.site != "" {
				err.Sites = append(err.Sites, m.site)
			}
		}
		rep.Add(err)
	}
}

// CheckIdentifiers plans the identifiers the generated code declares and
// reports every pair of declarations that maps to the same one, such as
// fields "author_id" and "authorId" which both produce AuthorID.
func CheckIdentifiers(g *Graph) error {
	rep := &Report{}
	var (
		pkg  = newNamespace("", reservedPackage...)
		root = newNamespace("Client", reservedRoot...)
	)
	for _, t := range g.Nodes {
		if t.Synthetic {
			continue
		}
		for _, ident := range []string{t.Name, t.QueryName(), t.BuilderName(), t.UpdateName(), t.ClientName(),
			t.EdgesName(), t.FieldsName(), t.InfoName(), t.TableName(), t.MapperName()} {
			pkg.add(ident, "entity "+t.Name, t.Pos)
		}
		root.add(t.Name, "entity "+t.Name, t.Pos)
		var (
			entity  = newNamespace(t.Name, reservedEntity...)
			query   = newNamespace(t.Name, reservedQuery...)
			builder = newNamespace(t.Name, reservedBuilder...)
			client  = newNamespace(t.Name, reservedClient...)
			edges   = newNamespace(t.Name)
		)
		for _, f := range t.Fields {
			name := "field " + f.Name
			if !goIdent(f.StructField()) {
				rep.Add(NewSchemaError(t.Name, f.Name, RuleInvalidName,
					fmt.Sprintf("field name does not produce a Go identifier (got %q)", f.StructField()), f.Pos))
				continue
			}
			entity.add(f.StructField(), name, f.Pos)
			builder.add(f.Setter(), name, f.Pos)
			if f.Nullable {
				builder.add(f.Clearer(), name, f.Pos)
			}
		}
		for _, r := range t.Relations {
			name := "relation " + r.Name
			if !goIdent(r.StructField()) {
				rep.Add(NewSchemaError(t.Name, r.Name, RuleInvalidName,
					fmt.Sprintf("relation name does not produce a Go identifier (got %q)", r.StructField()), r.Pos))
				continue
			}
			edges.add(r.StructField(), name, r.Pos)
			query.add(r.With(), name, r.Pos)
			query.add(r.Loader(), name, r.Pos)
			if r.Kind == M2M {
				client.add(r.Adder(), name, r.Pos)
				client.add(r.Remover(), name, r.Pos)
				root.add(r.BridgeName(), fmt.Sprintf("relation %s.%s", t.Name, r.Name), r.Pos)
			}
		}
		for _, ns := range []*namespace{entity, query, builder, client, edges} {
			ns.check(rep)
		}
	}
	pkg.check(rep)
	root.check(rep)
	return rep.Err()
}
