package gen

import (
	"slices"
	"strings"

	"github.com/syssam/storm/compiler/load"
)

// RelKind is the cardinality of a relation.
type RelKind uint8

// Relation kinds.
const (
	O2O RelKind = iota + 1
	M2O
	O2M
	M2M
)

// String returns the declaration spelling of the kind.
func (k RelKind) String() string {
	switch k {
	case O2O:
		return load.OneToOne
	case M2O:
		return load.ManyToOne
	case O2M:
		return load.OneToMany
	case M2M:
		return load.ManyToMany
	}
	return "invalid"
}

func parseRelKind(s string) (RelKind, bool) {
	switch strings.ToLower(s) {
	case load.OneToOne, "o2o":
		return O2O, true
	case load.ManyToOne, "m2o":
		return M2O, true
	case load.OneToMany, "o2m":
		return O2M, true
	case load.ManyToMany, "m2m":
		return M2M, true
	}
	return 0, false
}

// DefaultKind tells how a column gets its value when the caller sets none.
type DefaultKind uint8

// Default policies.
const (
	DefaultNone DefaultKind = iota
	// DefaultValue is a literal value written into the DDL.
	DefaultValue
	// DefaultExpr is a storage expression, e.g. CURRENT_TIMESTAMP.
	DefaultExpr
)

// DefaultPolicy is the default value policy of a field.
type DefaultPolicy struct {
	Kind  DefaultKind
	Value string
}

type (
	// Type is a resolved entity of the graph.
	Type struct {
		Name    string
		Pos     string
		Table   string
		Comment string
		// View entities have no primary key and are read-only.
		View bool
		// Synthetic entities are join tables created by the resolver.
		Synthetic  bool
		Fields     []*Field
		PrimaryKey []*Field
		Relations  []*Relation

		fields  map[string]*Field
		columns map[string]*Field
	}

	// Field is a resolved field of a type.
	Field struct {
		Name     string
		Pos      string
		Column   string
		HostType string
		Storage  StorageType
		Nullable bool
		PK       bool
		Unique   bool
		Default  DefaultPolicy
		// Lossy documents an accepted precision or range loss.
		Lossy   string
		Ref     *Ref
		Comment string

		typ *Type
		// override is the field-level storage type, as declared.
		override string
		declNull bool
		ref      string
	}

	// Ref is a resolved field reference to the key of another entity.
	Ref struct {
		Type  *Type
		Field *Field
	}

	// Relation is a resolved relationship between two types.
	Relation struct {
		Name string
		Pos  string
		Kind RelKind
		From *Type
		To   *Type
		// Fields are the foreign-key fields of the relation. They live in From,
		// or in To when Back is set.
		Fields []*Field
		// References are the key fields the foreign key points at.
		References []*Field
		// Back marks relations whose foreign key is held by the target.
		Back bool
		// Through is the join entity of many-to-many relations, and
		// ThroughFrom and ThroughTo its columns referencing From and To.
		Through     *Type
		ThroughFrom *Field
		ThroughTo   *Field
		// Inverse names the relation of To that walks the same link back.
		Inverse string
		// Cyclic marks relations whose ends belong to the same cycle group.
		Cyclic     bool
		CycleGroup *CycleGroup
	}

	// CycleGroup is a set of types that reach each other through relations.
	CycleGroup struct {
		ID    int
		Types []*Type
	}
)

// Field returns the field with the given name, or nil.
func (t *Type) Field(name string) *Field {
	return t.fields[name]
}

// Column returns the field stored in the given column, or nil.
func (t *Type) Column(name string) *Field {
	return t.columns[name]
}

// Relation returns the relation with the given name, or nil.
func (t *Type) Relation(name string) *Relation {
	for _, r := range t.Relations {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// HasKey reports whether the type has a primary key.
func (t *Type) HasKey() bool { return len(t.PrimaryKey) > 0 }

// HasOneKey reports whether the primary key is a single column.
func (t *Type) HasOneKey() bool { return len(t.PrimaryKey) == 1 }

// KeyField returns the single key field, or nil for views and composite keys.
func (t *Type) KeyField() *Field {
	if !t.HasOneKey() {
		return nil
	}
	return t.PrimaryKey[0]
}

// MutableFields returns the fields that are not part of the primary key.
func (t *Type) MutableFields() []*Field {
	fs := make([]*Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		if !f.PK {
			fs = append(fs, f)
		}
	}
	return fs
}

// Receiver returns the receiver name of the type.
func (t *Type) Receiver() string { return receiver(t.Name) }

// Plural returns the plural form of the type name.
func (t *Type) Plural() string { return plural(t.Name) }

// Package returns the lower-cased name used for per-type file names.
func (t *Type) Package() string { return strings.ToLower(t.Name) }

// Names of the generated declarations of the type.
func (t *Type) QueryName() string   { return t.Name + "Query" }
func (t *Type) BuilderName() string { return t.Name + "Builder" }
func (t *Type) UpdateName() string  { return t.Name + "Update" }
func (t *Type) ClientName() string  { return t.Name + "Client" }
func (t *Type) EdgesName() string   { return t.Name + "Edges" }
func (t *Type) FieldsName() string  { return t.Name + "Fields" }
func (t *Type) InfoName() string    { return t.Name + "Info" }
func (t *Type) TableName() string   { return t.Name + "Table" }
func (t *Type) MapperName() string  { return camel(t.Name) + "Mapper" }

// Imports returns the import paths the host types of the fields need,
// sorted.
func (t *Type) Imports(cfg *Config) []string {
	var paths []string
	for _, f := range t.Fields {
		if p := f.importPath(cfg); p != "" && !slices.Contains(paths, p) {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)
	return paths
}

// NeedsTime reports whether any field requires the time package.
func (t *Type) NeedsTime() bool {
	return slices.ContainsFunc(t.Fields, func(f *Field) bool {
		return strings.HasPrefix(f.BaseType(), "time.")
	})
}

// EagerRelations returns the relations WithAll loads: every relation that
// does not close a cycle.
func (t *Type) EagerRelations() []*Relation {
	var rs []*Relation
	for _, r := range t.Relations {
		if !r.Cyclic {
			rs = append(rs, r)
		}
	}
	return rs
}

// Type returns the type the field belongs to.
func (f *Field) Type() *Type { return f.typ }

// StructField returns the Go struct field name of the field.
func (f *Field) StructField() string { return pascal(f.Name) }

// Setter returns the name of the builder setter of the field.
func (f *Field) Setter() string { return "Set" + f.StructField() }

// Clearer returns the name of the builder method that sets the field to NULL.
func (f *Field) Clearer() string { return "Clear" + f.StructField() }

// Param returns a parameter name for the field.
func (f *Field) Param() string {
	p := camel(f.Name)
	if !goIdent(p) {
		p = "_" + p
	}
	return p
}

// Pointer reports whether the host type is a pointer.
func (f *Field) Pointer() bool { return strings.HasPrefix(f.HostType, "*") }

// BaseType returns the host type without pointer indirection.
func (f *Field) BaseType() string { return strings.TrimPrefix(f.HostType, "*") }

// Nillable reports whether the host type can represent NULL.
func (f *Field) Nillable() bool { return nillable(f.HostType) }

// IsString reports whether the field holds a Go string.
func (f *Field) IsString() bool { return f.BaseType() == "string" }

// IsTime reports whether the field holds a time.Time.
func (f *Field) IsTime() bool { return f.BaseType() == "time.Time" }

// Conv returns the Go type the row mapper converts the field through, or ""
// when the host type is scanned directly. Pointer hosts are always scanned
// directly.
func (f *Field) Conv() string {
	if f.Pointer() {
		return ""
	}
	if h, ok := hostTypes[f.HostType]; ok {
		return h.conv
	}
	return ""
}

// Adapter returns the runtime adapter the row mapper scans and values the
// field through, or "" when the driver handles the host type.
func (f *Field) Adapter() string {
	return hostTypes[f.BaseType()].adapter
}

// ByRef reports whether setters take the pointer host as is instead of
// its base value.
func (f *Field) ByRef() bool {
	return f.Pointer() && f.Adapter() != ""
}

// Comparable reports whether the host type supports == in Go and as a
// column key.
func (f *Field) Comparable() bool {
	switch f.BaseType() {
	case "[]byte", "json.RawMessage":
		return false
	}
	return f.Adapter() == ""
}

// Ordered reports whether predicates can compare the field with < and >.
func (f *Field) Ordered() bool {
	switch h, ok := hostTypes[f.BaseType()]; {
	case !ok:
		return false
	default:
		switch h.family {
		case FamilyInteger, FamilyFloat, FamilyString, FamilyTime:
			return true
		}
	}
	return false
}

func (f *Field) importPath(cfg *Config) string {
	base := strings.TrimPrefix(f.BaseType(), "[]")
	if h, ok := hostTypes[base]; ok {
		return h.imp
	}
	if pkg, _, ok := strings.Cut(base, "."); ok && cfg != nil {
		return cfg.Imports[pkg]
	}
	return ""
}

// Unique reports whether the relation points to at most one entity.
func (r *Relation) Unique() bool { return r.Kind == O2O || r.Kind == M2O }

// StructField returns the name of the relation in the edges struct.
func (r *Relation) StructField() string { return pascal(r.Name) }

// With returns the name of the query method that eager-loads the relation.
func (r *Relation) With() string { return "With" + r.StructField() }

// Loader returns the name of the query method that loads the relation.
func (r *Relation) Loader() string { return "load" + r.StructField() }

// Adder returns the name of the client method linking many-to-many
// neighbors.
func (r *Relation) Adder() string { return "Add" + r.StructField() }

// Remover returns the name of the client method unlinking many-to-many
// neighbors.
func (r *Relation) Remover() string { return "Remove" + r.StructField() }

// Field returns the single foreign-key field of the relation, or nil for
// composite keys and many-to-many relations.
func (r *Relation) Field() *Field {
	if len(r.Fields) != 1 {
		return nil
	}
	return r.Fields[0]
}

// Reference returns the single referenced key field, or nil.
func (r *Relation) Reference() *Field {
	if len(r.References) != 1 {
		return nil
	}
	return r.References[0]
}

// Composite reports whether the foreign key spans several columns.
func (r *Relation) Composite() bool { return len(r.Fields) > 1 }

// Names returns the names of the member types.
func (g *CycleGroup) Names() []string {
	names := make([]string, len(g.Types))
	for i, t := range g.Types {
		names[i] = t.Name
	}
	return names
}

func nillable(host string) bool {
	if strings.HasPrefix(host, "*") {
		return true
	}
	if h, ok := hostTypes[host]; ok {
		return h.nillable
	}
	return false
}

// BridgeName returns the name of the join table variable of a many-to-many
// relation.
func (r *Relation) BridgeName() string {
	return camel(r.From.Name) + r.StructField() + "Bridge"
}
