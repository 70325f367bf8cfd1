package gen

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure cases.
var (
	// ErrInvalidSchema indicates a structural declaration error.
	ErrInvalidSchema = errors.New("storm: invalid schema")
	// ErrUnmappedType indicates that no type mapping rule applies to a field.
	ErrUnmappedType = errors.New("storm: unmapped type")
	// ErrDanglingReference indicates a relationship to a missing entity or field.
	ErrDanglingReference = errors.New("storm: dangling reference")
	// ErrNameCollision indicates two generated identifiers collide.
	ErrNameCollision = errors.New("storm: name collision")
	// ErrMissingConfig indicates a configuration error.
	ErrMissingConfig = errors.New("storm: missing configuration")
	// ErrGenerationFailed indicates a code generation failure.
	ErrGenerationFailed = errors.New("storm: code generation failed")
)

// Rules reported by the generator.
const (
	RulePrimaryKey      = "primary-key"
	RuleDuplicateField  = "duplicate-field"
	RuleDuplicateEntity = "duplicate-entity"
	RuleInvalidName     = "invalid-name"
	RuleNullablePK      = "nullable-pk"
	RuleHostType        = "host-type"
	RuleDefault         = "default"
	RuleUnmappedType    = "unmapped-type"
	RuleStorageType     = "storage-type"
	RuleTypeFamily      = "type-family"
	RuleNullability     = "nullability"
	RuleNumericRange    = "numeric-range"
	RuleDangling        = "dangling-reference"
	RuleRefType         = "ref-type"
	RuleRefKey          = "ref-key"
	RuleRelation        = "relation"
	RuleThrough         = "through"
	RuleNameCollision   = "name-collision"
)

// Location identifies where a problem was found and which rule it violates.
type Location struct {
	Entity string
	Field  string
	Rule   string
	// Sites holds the declaration sites involved, e.g. "schema.yaml:12:5".
	Sites []string
}

func (l Location) String() string {
	var b strings.Builder
	if l.Entity != "" {
		b.WriteString(l.Entity)
		if l.Field != "" {
			b.WriteString(".")
			b.WriteString(l.Field)
		}
	}
	if l.Rule != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("[" + l.Rule + "]")
	}
	return b.String()
}

// Problem is implemented by every generation-time error.
type Problem interface {
	error
	Location() Location
}

// SchemaError represents a structural declaration error.
type SchemaError struct {
	Entity  string
	Field   string
	Rule    string
	Sites   []string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("storm: schema error")
	if e.Entity != "" {
		b.WriteString(" on entity ")
		b.WriteString(e.Entity)
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Rule != "" {
		fmt.Fprintf(&b, " [%s]", e.Rule)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	writeSites(&b, e.Sites)
	return b.String()
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for SchemaError.
func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}

// Location implements Problem.
func (e *SchemaError) Location() Location {
	return Location{Entity: e.Entity, Field: e.Field, Rule: e.Rule, Sites: e.Sites}
}

// NewSchemaError creates a new SchemaError.
func NewSchemaError(entity, field, rule, message string, sites ...string) *SchemaError {
	return &SchemaError{
		Entity:  entity,
		Field:   field,
		Rule:    rule,
		Message: message,
		Sites:   sites,
	}
}

// UnmappedTypeError is returned when no mapping rule resolves the storage
// type of a field.
type UnmappedTypeError struct {
	Entity   string
	Field    string
	HostType string
	Site     string
}

// Error implements the error interface.
func (e *UnmappedTypeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "storm: unmapped type %q for field %s.%s: no storage override, global override or built-in mapping applies", e.HostType, e.Entity, e.Field)
	writeSites(&b, sites(e.Site))
	return b.String()
}

// Is reports whether the target matches the sentinel error for UnmappedTypeError.
func (e *UnmappedTypeError) Is(target error) bool {
	return target == ErrUnmappedType
}

// Location implements Problem.
func (e *UnmappedTypeError) Location() Location {
	return Location{Entity: e.Entity, Field: e.Field, Rule: RuleUnmappedType, Sites: sites(e.Site)}
}

// DanglingReferenceError is returned when a relationship or field reference
// names an entity or field that is not declared.
type DanglingReferenceError struct {
	Entity string
	Field  string
	// Target is the reference as declared, "Entity" or "Entity.field".
	Target  string
	Site    string
	Message string
}

// Error implements the error interface.
func (e *DanglingReferenceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "storm: dangling reference from %s.%s to %s", e.Entity, e.Field, e.Target)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	writeSites(&b, sites(e.Site))
	return b.String()
}

// Is reports whether the target matches the sentinel error for DanglingReferenceError.
func (e *DanglingReferenceError) Is(target error) bool {
	return target == ErrDanglingReference
}

// Location implements Problem.
func (e *DanglingReferenceError) Location() Location {
	return Location{Entity: e.Entity, Field: e.Field, Rule: RuleDangling, Sites: sites(e.Site)}
}

// NameCollisionError is returned when two declarations produce the same
// generated identifier.
type NameCollisionError struct {
	Entity string
	// Ident is the generated identifier both members map to.
	Ident string
	// Members are the declarations that collide, in declaration order.
	Members []string
	Sites   []string
}

// Error implements the error interface.
func (e *NameCollisionError) Error() string {
	var b strings.Builder
	b.WriteString("storm: name collision")
	if e.Entity != "" {
		b.WriteString(" in entity ")
		b.WriteString(e.Entity)
	}
	fmt.Fprintf(&b, ": %s all generate identifier %q", strings.Join(e.Members, ", "), e.Ident)
	writeSites(&b, e.Sites)
	return b.String()
}

// Is reports whether the target matches the sentinel error for NameCollisionError.
func (e *NameCollisionError) Is(target error) bool {
	return target == ErrNameCollision
}

// Location implements Problem.
func (e *NameCollisionError) Location() Location {
	return Location{Entity: e.Entity, Rule: RuleNameCollision, Sites: e.Sites}
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("storm: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("storm: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether the target matches the sentinel error for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrMissingConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{
		Option:  option,
		Value:   value,
		Message: message,
	}
}

// GenerationError represents a rendering or writing failure.
type GenerationError struct {
	Language string
	Template string
	Entity   string
	File     string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	var b strings.Builder
	b.WriteString("storm: generation error")
	if e.Language != "" {
		b.WriteString(" in ")
		b.WriteString(e.Language)
		if e.Template != "" {
			b.WriteString("/")
			b.WriteString(e.Template)
		}
	}
	if e.Entity != "" {
		b.WriteString(" for entity ")
		b.WriteString(e.Entity)
	}
	if e.File != "" {
		b.WriteString(" (file: ")
		b.WriteString(e.File)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for GenerationError.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// Location implements Problem.
func (e *GenerationError) Location() Location {
	return Location{Entity: e.Entity, Rule: e.Template, Sites: sites(e.File)}
}

// Warning is a non-fatal diagnostic, such as a numeric range mismatch
// between a host type and its storage column.
type Warning struct {
	Entity  string
	Field   string
	Rule    string
	Site    string
	Message string
}

func (w *Warning) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "storm: warning on %s.%s [%s]: %s", w.Entity, w.Field, w.Rule, w.Message)
	writeSites(&b, sites(w.Site))
	return b.String()
}

// IsSchemaError reports whether the error is a SchemaError.
func IsSchemaError(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}

// IsUnmappedTypeError reports whether the error is an UnmappedTypeError.
func IsUnmappedTypeError(err error) bool {
	var unmappedErr *UnmappedTypeError
	return errors.As(err, &unmappedErr)
}

// IsDanglingReferenceError reports whether the error is a DanglingReferenceError.
func IsDanglingReferenceError(err error) bool {
	var danglingErr *DanglingReferenceError
	return errors.As(err, &danglingErr)
}

// IsNameCollisionError reports whether the error is a NameCollisionError.
func IsNameCollisionError(err error) bool {
	var collisionErr *NameCollisionError
	return errors.As(err, &collisionErr)
}

// IsConfigError reports whether the error is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsGenerationError reports whether the error is a GenerationError.
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}

func sites(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func writeSites(b *strings.Builder, sites []string) {
	if len(sites) == 0 {
		return
	}
	b.WriteString(" (declared at ")
	b.WriteString(strings.Join(sites, ", "))
	b.WriteString(")")
}
