// Package load reads entity declarations from their sources and returns
// them in the normalized form consumed by the generator.
package load

import (
	"context"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Relation kinds as written in declarations.
const (
	OneToOne   = "one-to-one"
	ManyToOne  = "many-to-one"
	OneToMany  = "one-to-many"
	ManyToMany = "many-to-many"
)

// Schema is the declaration of one entity.
type Schema struct {
	Name      string      `json:"name" yaml:"name"`
	Pos       string      `json:"pos,omitempty" yaml:"-"`
	Table     string      `json:"table,omitempty" yaml:"table,omitempty"`
	View      bool        `json:"view,omitempty" yaml:"view,omitempty"`
	Comment   string      `json:"comment,omitempty" yaml:"comment,omitempty"`
	Fields    []*Field    `json:"fields,omitempty" yaml:"fields,omitempty"`
	Relations []*Relation `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// Field is the declaration of one entity attribute.
type Field struct {
	Name string `json:"name" yaml:"name"`
	Pos  string `json:"pos,omitempty" yaml:"-"`
	// Type is the host type as spelled in Go, e.g. "int64", "*string",
	// "time.Time", "[]byte" or "uuid.UUID".
	Type       string `json:"type" yaml:"type"`
	Column     string `json:"column,omitempty" yaml:"column,omitempty"`
	PrimaryKey bool   `json:"pk,omitempty" yaml:"pk,omitempty"`
	Nullable   bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Unique     bool   `json:"unique,omitempty" yaml:"unique,omitempty"`
	// Storage overrides the storage type, e.g. "varchar(64)".
	Storage string `json:"storage,omitempty" yaml:"storage,omitempty"`
	// Default is a literal default value; DefaultExpr a database expression.
	Default     string `json:"default,omitempty" yaml:"default,omitempty"`
	DefaultExpr string `json:"default_expr,omitempty" yaml:"default_expr,omitempty"`
	// Lossy documents why values of this field may not round-trip exactly.
	Lossy string `json:"lossy,omitempty" yaml:"lossy,omitempty"`
	// Ref is a foreign reference, "Entity" or "Entity.field".
	Ref     string `json:"ref,omitempty" yaml:"ref,omitempty"`
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Relation is an explicitly declared association.
type Relation struct {
	Name   string `json:"name" yaml:"name"`
	Pos    string `json:"pos,omitempty" yaml:"-"`
	Kind   string `json:"kind" yaml:"kind"`
	Target string `json:"target" yaml:"target"`
	// Fields are the owning foreign-key fields of one-to-one and
	// many-to-one relations.
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	// Through names a declared join entity of a many-to-many relation.
	Through string `json:"through,omitempty" yaml:"through,omitempty"`
	// Inverse names the relation or field on the target that owns the keys
	// of a one-to-many relation.
	Inverse string `json:"inverse,omitempty" yaml:"inverse,omitempty"`
}

// Source produces entity declarations. Loading is pure: sources do not
// write anything and keep no state between calls.
type Source interface {
	Load(ctx context.Context) ([]*Schema, error)
}

// Multi concatenates the schemas of several sources, in order.
type Multi []Source

// Load implements Source.
func (m Multi) Load(ctx context.Context) ([]*Schema, error) {
	var all []*Schema
	for _, src := range m {
		schemas, err := src.Load(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, schemas...)
	}
	return all, nil
}

// Static is a Source over already built declarations.
type Static []*Schema

// Load implements Source.
func (s Static) Load(context.Context) ([]*Schema, error) {
	return slices.Clone(s), nil
}

// Field returns the field with the given name, or nil.
func (s *Schema) Field(name string) *Field {
	for _, f := range s.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// UnmarshalYAML records the declaration line and column.
func (s *Schema) UnmarshalYAML(n *yaml.Node) error {
	type plain Schema
	if err := n.Decode((*plain)(s)); err != nil {
		return err
	}
	s.Pos = nodePos(n)
	return nil
}

// UnmarshalYAML records the declaration line and column.
func (f *Field) UnmarshalYAML(n *yaml.Node) error {
	type plain Field
	if err := n.Decode((*plain)(f)); err != nil {
		return err
	}
	f.Pos = nodePos(n)
	return nil
}

// UnmarshalYAML records the declaration line and column.
func (r *Relation) UnmarshalYAML(n *yaml.Node) error {
	type plain Relation
	if err := n.Decode((*plain)(r)); err != nil {
		return err
	}
	r.Pos = nodePos(n)
	return nil
}

func nodePos(n *yaml.Node) string {
	return fmt.Sprintf("%d:%d", n.Line, n.Column)
}
