package sql

import (
	"math/big"
	"net/netip"
)

// Field is a typed column reference. Generated code declares one per mapped
// column so predicates are checked against the field's host type:
//
//	var AuthorID = sql.Field[int64]("author_id")
//	q.Where(book.AuthorID.EQ(42))
type Field[T any] string

// Name returns the column name.
func (f Field[T]) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f Field[T]) EQ(v T) Predicate { return EQ(string(f), v) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f Field[T]) NEQ(v T) Predicate { return NEQ(string(f), v) }

// GT returns a predicate that checks if the field is greater than the given value.
func (f Field[T]) GT(v T) Predicate { return GT(string(f), v) }

// GTE returns a predicate that checks if the field is greater than or equal to the given value.
func (f Field[T]) GTE(v T) Predicate { return GTE(string(f), v) }

// LT returns a predicate that checks if the field is less than the given value.
func (f Field[T]) LT(v T) Predicate { return LT(string(f), v) }

// LTE returns a predicate that checks if the field is less than or equal to the given value.
func (f Field[T]) LTE(v T) Predicate { return LTE(string(f), v) }

// In returns a predicate that checks if the field value is in the given list.
func (f Field[T]) In(vs ...T) Predicate { return In(string(f), anys(vs)...) }

// NotIn returns a predicate that checks if the field value is not in the given list.
func (f Field[T]) NotIn(vs ...T) Predicate { return NotIn(string(f), anys(vs)...) }

// IsNull returns a predicate that checks if the field is NULL.
func (f Field[T]) IsNull() Predicate { return IsNull(string(f)) }

// NotNull returns a predicate that checks if the field is not NULL.
func (f Field[T]) NotNull() Predicate { return NotNull(string(f)) }

// Asc orders by the field ascending.
func (f Field[T]) Asc() Order { return Asc(string(f)) }

// Desc orders by the field descending.
func (f Field[T]) Desc() Order { return Desc(string(f)) }

// StringField is a typed string column with pattern predicates.
type StringField struct {
	Field[string]
}

// NewStringField returns a StringField for the given column.
func NewStringField(name string) StringField {
	return StringField{Field[string](name)}
}

// Contains returns a predicate that checks if the field contains the given substring.
func (f StringField) Contains(v string) Predicate { return Contains(f.Name(), v) }

// HasPrefix returns a predicate that checks if the field has the given prefix.
func (f StringField) HasPrefix(v string) Predicate { return HasPrefix(f.Name(), v) }

// HasSuffix returns a predicate that checks if the field has the given suffix.
func (f StringField) HasSuffix(v string) Predicate { return HasSuffix(f.Name(), v) }

// Like returns a predicate matching the raw LIKE pattern.
func (f StringField) Like(pattern string) Predicate { return Like(f.Name(), pattern) }

// AddrField is a typed netip.Addr column. Values are compared in their
// stored byte form.
type AddrField string

// Name returns the column name.
func (f AddrField) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given address.
func (f AddrField) EQ(v netip.Addr) Predicate { return EQ(string(f), AddrValue(v)) }

// NEQ returns a predicate that checks if the field does not equal the given address.
func (f AddrField) NEQ(v netip.Addr) Predicate { return NEQ(string(f), AddrValue(v)) }

// In returns a predicate that checks if the field value is in the given list.
func (f AddrField) In(vs ...netip.Addr) Predicate { return In(string(f), adapt(vs, AddrValue)...) }

// NotIn returns a predicate that checks if the field value is not in the given list.
func (f AddrField) NotIn(vs ...netip.Addr) Predicate {
	return NotIn(string(f), adapt(vs, AddrValue)...)
}

// IsNull returns a predicate that checks if the field is NULL.
func (f AddrField) IsNull() Predicate { return IsNull(string(f)) }

// NotNull returns a predicate that checks if the field is not NULL.
func (f AddrField) NotNull() Predicate { return NotNull(string(f)) }

// BigIntField is a typed *big.Int column. The stored bytes do not sort
// numerically, so only equality predicates are offered.
type BigIntField string

// Name returns the column name.
func (f BigIntField) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f BigIntField) EQ(v *big.Int) Predicate { return EQ(string(f), BigIntValue(v)) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f BigIntField) NEQ(v *big.Int) Predicate { return NEQ(string(f), BigIntValue(v)) }

// In returns a predicate that checks if the field value is in the given list.
func (f BigIntField) In(vs ...*big.Int) Predicate { return In(string(f), adapt(vs, BigIntValue)...) }

// NotIn returns a predicate that checks if the field value is not in the given list.
func (f BigIntField) NotIn(vs ...*big.Int) Predicate {
	return NotIn(string(f), adapt(vs, BigIntValue)...)
}

// IsNull returns a predicate that checks if the field is NULL.
func (f BigIntField) IsNull() Predicate { return IsNull(string(f)) }

// NotNull returns a predicate that checks if the field is not NULL.
func (f BigIntField) NotNull() Predicate { return NotNull(string(f)) }

func adapt[T, V any](vs []T, fn func(T) V) []any {
	out := make([]any, len(vs))
	for i := range vs {
		out[i] = fn(vs[i])
	}
	return out
}

func anys[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i := range vs {
		out[i] = vs[i]
	}
	return out
}
