package sql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/storm/dialect"
)

// Querier wraps the basic Query method that is implemented
// by the different builders in this file.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// Builder is the base query builder for the sql dsl. It tracks the
// dialect, the positional arguments and errors raised while building.
type Builder struct {
	sb      *strings.Builder
	dialect string
	args    []any
	errs    []error
}

// SetDialect sets the builder dialect. It's used for garnishing dialect specific queries.
func (b *Builder) SetDialect(dialect string) {
	b.dialect = dialect
}

// Dialect returns the dialect of the builder.
func (b Builder) Dialect() string {
	return b.dialect
}

// Quote quotes the given identifier with the characters based
// on the configured dialect. It defaults to "`".
func (b *Builder) Quote(ident string) string {
	quote := "`"
	if b.postgres() {
		quote = `"`
	}
	switch {
	case ident == "*", strings.Contains(ident, "("):
		// Wildcards and expressions like COUNT(*) are written as is.
		return ident
	case strings.Contains(ident, "."):
		// Qualified names are quoted part by part.
		parts := strings.Split(ident, ".")
		for i := range parts {
			parts[i] = b.Quote(parts[i])
		}
		return strings.Join(parts, ".")
	case strings.HasPrefix(ident, quote) && strings.HasSuffix(ident, quote):
		return ident
	}
	return quote + strings.ReplaceAll(ident, quote, quote+quote) + quote
}

// Ident appends the given string as a quoted identifier.
func (b *Builder) Ident(s string) *Builder {
	if s != "" {
		b.WriteString(b.Quote(s))
	}
	return b
}

// IdentComma appends the given identifiers separated by commas.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.Comma()
		}
		b.Ident(s[i])
	}
	return b
}

// WriteString appends the given string to the builder.
func (b *Builder) WriteString(s string) *Builder {
	if b.sb == nil {
		b.sb = &strings.Builder{}
	}
	b.sb.WriteString(s)
	return b
}

// WriteByte appends the given byte to the builder.
func (b *Builder) WriteByte(c byte) *Builder {
	if b.sb == nil {
		b.sb = &strings.Builder{}
	}
	b.sb.WriteByte(c)
	return b
}

// Comma adds a comma to the query.
func (b *Builder) Comma() *Builder {
	return b.WriteString(", ")
}

// Pad adds a space to the query.
func (b *Builder) Pad() *Builder {
	return b.WriteByte(' ')
}

// Arg appends an input argument to the builder and writes its placeholder.
func (b *Builder) Arg(a any) *Builder {
	b.args = append(b.args, a)
	if b.postgres() {
		return b.WriteString("$" + strconv.Itoa(len(b.args)))
	}
	return b.WriteByte('?')
}

// Args appends a list of arguments to the builder, separated by commas.
func (b *Builder) Args(a ...any) *Builder {
	for i := range a {
		if i > 0 {
			b.Comma()
		}
		b.Arg(a[i])
	}
	return b
}

// Wrap gets a callback, and wraps its result with parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	b.WriteByte('(')
	f(b)
	return b.WriteByte(')')
}

// Join joins the given Querier (e.g. a sub-select) into the builder,
// renumbering its arguments.
func (b *Builder) Join(q Querier) *Builder {
	if sq, ok := q.(*Selector); ok {
		// Build the sub-query on this builder to keep placeholders in sequence.
		sq.build(b)
		return b
	}
	query, args := q.Query()
	b.WriteString(query)
	b.args = append(b.args, args...)
	return b
}

// AddError appends an error to the builder errors.
func (b *Builder) AddError(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Err returns a concatenated error of all errors encountered during
// the query-building, or were added manually by calling AddError.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// String returns the accumulated string.
func (b *Builder) String() string {
	if b.sb == nil {
		return ""
	}
	return b.sb.String()
}

// Query implements the Querier interface.
func (b *Builder) Query() (string, []any) {
	return b.String(), b.args
}

func (b *Builder) postgres() bool {
	return b.dialect == dialect.Postgres
}

// Predicate is a boolean SQL expression used in WHERE clauses.
type Predicate func(*Builder)

// EQ returns a "col = v" predicate.
func EQ(col string, v any) Predicate {
	return binary(col, "=", v)
}

// NEQ returns a "col <> v" predicate.
func NEQ(col string, v any) Predicate {
	return binary(col, "<>", v)
}

// GT returns a "col > v" predicate.
func GT(col string, v any) Predicate {
	return binary(col, ">", v)
}

// GTE returns a "col >= v" predicate.
func GTE(col string, v any) Predicate {
	return binary(col, ">=", v)
}

// LT returns a "col < v" predicate.
func LT(col string, v any) Predicate {
	return binary(col, "<", v)
}

// LTE returns a "col <= v" predicate.
func LTE(col string, v any) Predicate {
	return binary(col, "<=", v)
}

// Like returns a "col LIKE pattern" predicate.
func Like(col, pattern string) Predicate {
	return binary(col, "LIKE", pattern)
}

// Contains returns a predicate matching columns containing the substring.
func Contains(col, sub string) Predicate {
	return escapedLike(col, "%"+escapeLike(sub)+"%")
}

// HasPrefix returns a predicate matching columns starting with the prefix.
func HasPrefix(col, prefix string) Predicate {
	return escapedLike(col, escapeLike(prefix)+"%")
}

// HasSuffix returns a predicate matching columns ending with the suffix.
func HasSuffix(col, suffix string) Predicate {
	return escapedLike(col, "%"+escapeLike(suffix))
}

// escapedLike writes a LIKE predicate whose pattern escapes wildcards with
// a backslash. SQLite has no default escape character.
func escapedLike(col, pattern string) Predicate {
	return func(b *Builder) {
		b.Ident(col).WriteString(" LIKE ").Arg(pattern)
		if b.dialect == dialect.SQLite {
			b.WriteString(` ESCAPE '\'`)
		}
	}
}

func binary(col, op string, v any) Predicate {
	return func(b *Builder) {
		b.Ident(col).Pad().WriteString(op).Pad().Arg(v)
	}
}

// IsNull returns a "col IS NULL" predicate.
func IsNull(col string) Predicate {
	return func(b *Builder) {
		b.Ident(col).WriteString(" IS NULL")
	}
}

// NotNull returns a "col IS NOT NULL" predicate.
func NotNull(col string) Predicate {
	return func(b *Builder) {
		b.Ident(col).WriteString(" IS NOT NULL")
	}
}

// In returns a "col IN (...)" predicate. An empty list never matches.
func In(col string, args ...any) Predicate {
	return func(b *Builder) {
		if len(args) == 0 {
			b.WriteString("1 = 0")
			return
		}
		b.Ident(col).WriteString(" IN ")
		b.Wrap(func(b *Builder) { b.Args(args...) })
	}
}

// NotIn returns a "col NOT IN (...)" predicate. An empty list always matches.
func NotIn(col string, args ...any) Predicate {
	return func(b *Builder) {
		if len(args) == 0 {
			b.WriteString("1 = 1")
			return
		}
		b.Ident(col).WriteString(" NOT IN ")
		b.Wrap(func(b *Builder) { b.Args(args...) })
	}
}

// InTuples returns a predicate matching rows whose columns equal one of
// the given key tuples. A single column is rendered as IN; composite keys
// as an OR of conjunctions. An empty list never matches.
func InTuples(columns []string, keys ...[]any) Predicate {
	if len(columns) == 1 {
		args := make([]any, len(keys))
		for i, k := range keys {
			args[i] = k[0]
		}
		return In(columns[0], args...)
	}
	if len(keys) == 0 {
		return In(columns[0])
	}
	ors := make([]Predicate, len(keys))
	for i, k := range keys {
		ands := make([]Predicate, len(columns))
		for j, c := range columns {
			ands[j] = EQ(c, k[j])
		}
		ors[i] = And(ands...)
	}
	return Or(ors...)
}

// InSelect returns a "col IN (SELECT ...)" predicate.
func InSelect(col string, s *Selector) Predicate {
	return func(b *Builder) {
		b.Ident(col).WriteString(" IN ")
		b.Wrap(func(b *Builder) { b.Join(s) })
	}
}

// And groups predicates with the AND operator.
func And(preds ...Predicate) Predicate {
	return group("AND", preds)
}

// Or groups predicates with the OR operator.
func Or(preds ...Predicate) Predicate {
	return group("OR", preds)
}

func group(op string, preds []Predicate) Predicate {
	return func(b *Builder) {
		if len(preds) == 1 {
			preds[0](b)
			return
		}
		b.Wrap(func(b *Builder) {
			for i, p := range preds {
				if i > 0 {
					b.Pad().WriteString(op).Pad()
				}
				p(b)
			}
		})
	}
}

// Not wraps the given predicate with the NOT operator.
func Not(pred Predicate) Predicate {
	return func(b *Builder) {
		b.WriteString("NOT ")
		b.Wrap(pred)
	}
}

// ExprP returns a raw predicate. Placeholders in expr must follow the
// dialect convention.
func ExprP(expr string, args ...any) Predicate {
	return func(b *Builder) {
		b.WriteString(expr)
		b.args = append(b.args, args...)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Order is an ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Asc returns an ascending order term.
func Asc(col string) Order { return Order{Column: col} }

// Desc returns a descending order term.
func Desc(col string) Order { return Order{Column: col, Desc: true} }

// DialectBuilder prefixes all root builders with the Dialect value.
type DialectBuilder struct {
	dialect string
}

// Dialect creates a new DialectBuilder with the given dialect name.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// Select creates a Selector for the configured dialect.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	s := Select(columns...)
	s.SetDialect(d.dialect)
	return s
}

// Insert creates an InsertBuilder for the configured dialect.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	i := Insert(table)
	i.SetDialect(d.dialect)
	return i
}

// Update creates an UpdateBuilder for the configured dialect.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	u := Update(table)
	u.SetDialect(d.dialect)
	return u
}

// Delete creates a DeleteBuilder for the configured dialect.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	del := Delete(table)
	del.SetDialect(d.dialect)
	return del
}

// Selector is a builder for the `SELECT` statement.
type Selector struct {
	Builder
	columns  []string
	count    bool
	distinct bool
	table    string
	where    []Predicate
	group    []string
	having   []Predicate
	unions   []union
	order    []Order
	limit    *int
	offset   *int
}

type union struct {
	all bool
	sel *Selector
}

// Select returns a new selector for the `SELECT` statement.
func Select(columns ...string) *Selector {
	return &Selector{columns: columns}
}

// From sets the source table of the `SELECT` statement.
func (s *Selector) From(table string) *Selector {
	s.table = table
	return s
}

// Table returns the source table name.
func (s *Selector) Table() string {
	return s.table
}

// Columns returns the selected columns.
func (s *Selector) Columns() []string {
	return s.columns
}

// Select changes the columns selection of the SELECT statement.
func (s *Selector) Select(columns ...string) *Selector {
	s.columns = columns
	s.count = false
	return s
}

// Distinct adds the DISTINCT keyword to the `SELECT` statement.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// Count turns the selector into a `SELECT COUNT(*)` query.
func (s *Selector) Count() *Selector {
	s.count = true
	return s
}

// Where appends predicates joined with AND to the `WHERE` clause.
func (s *Selector) Where(preds ...Predicate) *Selector {
	s.where = append(s.where, preds...)
	return s
}

// GroupBy appends columns to the `GROUP BY` clause.
func (s *Selector) GroupBy(columns ...string) *Selector {
	s.group = append(s.group, columns...)
	return s
}

// Having appends predicates joined with AND to the `HAVING` clause.
func (s *Selector) Having(preds ...Predicate) *Selector {
	s.having = append(s.having, preds...)
	return s
}

// Union appends a `UNION` with the given selector. ORDER BY, LIMIT and
// OFFSET of the outer selector apply to the whole compound query.
func (s *Selector) Union(t *Selector) *Selector {
	return s.union(t, false)
}

// UnionAll appends a `UNION ALL` with the given selector.
func (s *Selector) UnionAll(t *Selector) *Selector {
	return s.union(t, true)
}

func (s *Selector) union(t *Selector, all bool) *Selector {
	if len(t.order) > 0 || t.limit != nil || t.offset != nil || len(t.unions) > 0 {
		s.AddError(errors.New("sql: union operand must not be ordered, paged or compound"))
	}
	s.unions = append(s.unions, union{all: all, sel: t})
	return s
}

// OrderBy appends ORDER BY terms.
func (s *Selector) OrderBy(orders ...Order) *Selector {
	s.order = append(s.order, orders...)
	return s
}

// Limit adds the `LIMIT` clause to the `SELECT` statement.
func (s *Selector) Limit(limit int) *Selector {
	s.limit = &limit
	return s
}

// Offset adds the `OFFSET` clause to the `SELECT` statement.
func (s *Selector) Offset(offset int) *Selector {
	s.offset = &offset
	return s
}

// Clone returns a duplicate of the selector. Predicates are shared since
// they are immutable.
func (s *Selector) Clone() *Selector {
	c := &Selector{
		columns:  append([]string(nil), s.columns...),
		count:    s.count,
		distinct: s.distinct,
		table:    s.table,
		where:    append([]Predicate(nil), s.where...),
		group:    append([]string(nil), s.group...),
		having:   append([]Predicate(nil), s.having...),
		order:    append([]Order(nil), s.order...),
	}
	c.SetDialect(s.dialect)
	c.errs = append(c.errs, s.errs...)
	for _, u := range s.unions {
		c.unions = append(c.unions, union{all: u.all, sel: u.sel.Clone()})
	}
	if s.limit != nil {
		c.Limit(*s.limit)
	}
	if s.offset != nil {
		c.Offset(*s.offset)
	}
	return c
}

// Query returns query representation of a `SELECT` statement.
func (s *Selector) Query() (string, []any) {
	b := &Builder{dialect: s.dialect}
	s.build(b)
	s.args = b.args
	return b.String(), b.args
}

// Err returns the errors raised while building the query.
func (s *Selector) Err() error {
	if s.table == "" {
		return errors.Join(append(s.errs, errors.New("sql: select without FROM table"))...)
	}
	return errors.Join(s.errs...)
}

func (s *Selector) build(b *Builder) {
	// A paged, distinct, grouped or compound selection is counted
	// through a derived table.
	if s.count && (s.limit != nil || s.offset != nil || s.distinct || len(s.group) > 0 || len(s.unions) > 0) {
		inner := s.Clone()
		inner.count = false
		b.WriteString("SELECT COUNT(*) FROM ")
		b.Wrap(inner.build)
		b.WriteString(" AS ").Ident("t")
		return
	}
	s.core(b)
	for _, u := range s.unions {
		b.WriteString(" UNION ")
		if u.all {
			b.WriteString("ALL ")
		}
		u.sel.core(b)
	}
	if len(s.order) > 0 && !s.count {
		b.WriteString(" ORDER BY ")
		for i, o := range s.order {
			if i > 0 {
				b.Comma()
			}
			b.Ident(o.Column)
			if o.Desc {
				b.WriteString(" DESC")
			}
		}
	}
	// SQLite and MySQL accept OFFSET only after a LIMIT clause.
	switch {
	case s.limit != nil:
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(*s.limit))
	case s.offset != nil && b.dialect == dialect.MySQL:
		b.WriteString(" LIMIT 18446744073709551615")
	case s.offset != nil && b.dialect != dialect.Postgres:
		b.WriteString(" LIMIT -1")
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ").WriteString(strconv.Itoa(*s.offset))
	}
}

// core writes the SELECT, FROM, WHERE, GROUP BY and HAVING clauses.
func (s *Selector) core(b *Builder) {
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	switch {
	case s.count:
		b.WriteString("COUNT(*)")
	case len(s.columns) == 0:
		b.WriteString("*")
	default:
		b.IdentComma(s.columns...)
	}
	b.WriteString(" FROM ").Ident(s.table)
	writeWhere(b, s.where)
	if len(s.group) > 0 {
		b.WriteString(" GROUP BY ").IdentComma(s.group...)
	}
	if len(s.having) > 0 {
		b.WriteString(" HAVING ")
		for i, p := range s.having {
			if i > 0 {
				b.WriteString(" AND ")
			}
			p(b)
		}
	}
}

func writeWhere(b *Builder, preds []Predicate) {
	if len(preds) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	if len(preds) == 1 {
		preds[0](b)
		return
	}
	for i, p := range preds {
		if i > 0 {
			b.WriteString(" AND ")
		}
		p(b)
	}
}

// InsertBuilder is a builder for `INSERT INTO` statement.
type InsertBuilder struct {
	Builder
	table   string
	columns []string
	values  [][]any
	ignore  bool
}

// Insert creates a builder for the `INSERT INTO` statement.
func Insert(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

// Columns sets the columns of the insert statement.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = append(i.columns, columns...)
	return i
}

// Values appends a value tuple for the insert statement.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = append(i.values, values)
	return i
}

// OrIgnore skips rows that violate a uniqueness constraint instead of
// failing the statement.
func (i *InsertBuilder) OrIgnore() *InsertBuilder {
	i.ignore = true
	return i
}

// Query returns query representation of an `INSERT INTO` statement.
func (i *InsertBuilder) Query() (string, []any) {
	b := &Builder{dialect: i.dialect}
	switch {
	case i.ignore && i.dialect == dialect.SQLite:
		b.WriteString("INSERT OR IGNORE INTO ")
	case i.ignore && i.dialect == dialect.MySQL:
		b.WriteString("INSERT IGNORE INTO ")
	default:
		b.WriteString("INSERT INTO ")
	}
	b.Ident(i.table).Pad()
	b.Wrap(func(b *Builder) { b.IdentComma(i.columns...) })
	b.WriteString(" VALUES ")
	for j, v := range i.values {
		if j > 0 {
			b.Comma()
		}
		if len(v) != len(i.columns) {
			b.AddError(fmt.Errorf("sql: insert into %s: row %d has %d values for %d columns", i.table, j, len(v), len(i.columns)))
		}
		b.Wrap(func(b *Builder) { b.Args(v...) })
	}
	if i.ignore && i.dialect == dialect.Postgres {
		b.WriteString(" ON CONFLICT DO NOTHING")
	}
	i.errs = append(i.errs[:0:0], b.errs...)
	i.args = b.args
	return b.String(), b.args
}

// UpdateBuilder is a builder for `UPDATE` statement.
type UpdateBuilder struct {
	Builder
	table   string
	columns []string
	values  []any
	where   []Predicate
}

// Update creates a builder for the `UPDATE` statement.
func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

// Set sets a column to a given value. Columns are written in call order.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// SetNull sets a column as null value.
func (u *UpdateBuilder) SetNull(column string) *UpdateBuilder {
	return u.Set(column, nil)
}

// Empty reports whether this builder does not contain update changes.
func (u *UpdateBuilder) Empty() bool {
	return len(u.columns) == 0
}

// Where appends predicates joined with AND to the `WHERE` clause.
func (u *UpdateBuilder) Where(preds ...Predicate) *UpdateBuilder {
	u.where = append(u.where, preds...)
	return u
}

// Query returns query representation of an `UPDATE` statement.
func (u *UpdateBuilder) Query() (string, []any) {
	b := &Builder{dialect: u.dialect}
	b.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, c := range u.columns {
		if i > 0 {
			b.Comma()
		}
		b.Ident(c).WriteString(" = ")
		if u.values[i] == nil {
			b.WriteString("NULL")
		} else {
			b.Arg(u.values[i])
		}
	}
	writeWhere(b, u.where)
	u.args = b.args
	return b.String(), b.args
}

// DeleteBuilder is a builder for `DELETE` statement.
type DeleteBuilder struct {
	Builder
	table string
	where []Predicate
}

// Delete creates a builder for the `DELETE` statement.
func Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{table: table}
}

// Where appends predicates joined with AND to the `WHERE` clause.
func (d *DeleteBuilder) Where(preds ...Predicate) *DeleteBuilder {
	d.where = append(d.where, preds...)
	return d
}

// Query returns query representation of a `DELETE` statement.
func (d *DeleteBuilder) Query() (string, []any) {
	b := &Builder{dialect: d.dialect}
	b.WriteString("DELETE FROM ").Ident(d.table)
	writeWhere(b, d.where)
	d.args = b.args
	return b.String(), b.args
}
