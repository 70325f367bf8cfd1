// Package storm holds the runtime metadata and error types shared by
// generated data-access code and the dialect/sql query engine.
package storm

import (
	"fmt"
	"slices"
)

// ColumnInfo describes one mapped column of an entity.
type ColumnInfo struct {
	Field      string // Go struct field name
	Column     string // storage column name
	Type       string // resolved storage type, e.g. "bigint", "varchar(255)"
	Nullable   bool
	PrimaryKey bool
	// Lossy documents a conversion that does not round-trip exactly.
	// Empty when reads reproduce written values.
	Lossy string
}

// EntityInfo describes a generated entity. Values are created by generated
// code and never modified afterwards.
type EntityInfo struct {
	Name    string
	Table   string
	Columns []ColumnInfo
}

// ColumnNames returns the storage column names in declaration order.
func (e *EntityInfo) ColumnNames() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Column
	}
	return names
}

// PrimaryKey returns the primary key column names in declaration order.
func (e *EntityInfo) PrimaryKey() []string {
	var pk []string
	for _, c := range e.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Column)
		}
	}
	return pk
}

// Column returns the column info by storage column name.
func (e *EntityInfo) Column(name string) (ColumnInfo, bool) {
	for _, c := range e.Columns {
		if c.Column == name {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// LossyColumns returns the columns that declare a lossy conversion.
func (e *EntityInfo) LossyColumns() []ColumnInfo {
	var cols []ColumnInfo
	for _, c := range e.Columns {
		if c.Lossy != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// Registry maps entity names to their metadata. The generated registry
// artifact builds one at package initialization; it is read-only after that
// and safe for concurrent use.
type Registry struct {
	fingerprint string
	entities    map[string]*EntityInfo
	names       []string
}

// NewRegistry returns a registry over the given entities. It panics on a
// duplicate name, which can only happen with hand-edited generated code.
func NewRegistry(fingerprint string, entities ...*EntityInfo) *Registry {
	r := &Registry{
		fingerprint: fingerprint,
		entities:    make(map[string]*EntityInfo, len(entities)),
	}
	for _, e := range entities {
		if _, ok := r.entities[e.Name]; ok {
			panic(fmt.Sprintf("storm: duplicate entity %q in registry", e.Name))
		}
		r.entities[e.Name] = e
		r.names = append(r.names, e.Name)
	}
	slices.Sort(r.names)
	return r
}

// Lookup returns the metadata of the named entity.
func (r *Registry) Lookup(name string) (*EntityInfo, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Names returns the registered entity names, sorted.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Fingerprint returns the hash of the model the registry was generated from.
func (r *Registry) Fingerprint() string {
	return r.fingerprint
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	return len(r.entities)
}
