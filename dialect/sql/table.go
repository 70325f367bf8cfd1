package sql

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/syssam/storm"
	"github.com/syssam/storm/dialect"
)

// Table executes queries for one entity type. Generated query and builder
// code delegate to it. A Table only holds immutable metadata and is safe
// for concurrent use; each call uses the connection handed to it.
type Table[T any] struct {
	driver dialect.Driver
	info   *storm.EntityInfo
	mapper RowMapper[T]
}

// NewTable returns a Table bound to the given driver. It panics when the
// mapper columns and the entity metadata disagree, since both are generated
// from the same model.
func NewTable[T any](drv dialect.Driver, info *storm.EntityInfo, m RowMapper[T]) *Table[T] {
	if !slices.Equal(info.ColumnNames(), m.Columns()) {
		panic(fmt.Sprintf("storm: %s mapper columns %v do not match metadata %v", info.Name, m.Columns(), info.ColumnNames()))
	}
	return &Table[T]{driver: drv, info: info, mapper: m}
}

// Info returns the entity metadata.
func (t *Table[T]) Info() *storm.EntityInfo { return t.info }

// Driver returns the driver the table executes against.
func (t *Table[T]) Driver() dialect.Driver { return t.driver }

// Select returns a selector over all mapped columns of the table.
func (t *Table[T]) Select() *Selector {
	return Dialect(t.driver.Dialect()).Select(t.mapper.Columns()...).From(t.info.Table)
}

// All executes the selector and maps every row.
func (t *Table[T]) All(ctx context.Context, s *Selector) ([]*T, error) {
	var out []*T
	err := t.Iterate(ctx, s, func(e *T) error {
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Iterate executes the selector and calls fn for every mapped row, in
// result order. Returning an error from fn stops the iteration.
func (t *Table[T]) Iterate(ctx context.Context, s *Selector, fn func(*T) error) error {
	if err := s.Err(); err != nil {
		return err
	}
	query, args := s.Query()
	rows := &Rows{}
	if err := t.driver.Query(ctx, query, args, rows); err != nil {
		return t.queryError("select", query, args, err)
	}
	defer rows.Close()
	if err := ScanEach(rows, t.info.Name, t.mapper, fn); err != nil {
		if storm.IsMappingError(err) {
			return err
		}
		return t.queryError("select", query, args, err)
	}
	return nil
}

// First returns the first entity matched by the selector.
func (t *Table[T]) First(ctx context.Context, s *Selector) (*T, error) {
	es, err := t.All(ctx, s.Clone().Limit(1))
	if err != nil {
		return nil, err
	}
	if len(es) == 0 {
		return nil, storm.NewNotFoundError(t.info.Name)
	}
	return es[0], nil
}

// Only returns the single entity matched by the selector, failing with a
// NotFoundError or NotSingularError otherwise.
func (t *Table[T]) Only(ctx context.Context, s *Selector) (*T, error) {
	es, err := t.All(ctx, s.Clone().Limit(2))
	if err != nil {
		return nil, err
	}
	switch len(es) {
	case 1:
		return es[0], nil
	case 0:
		return nil, storm.NewNotFoundError(t.info.Name)
	default:
		return nil, storm.NewNotSingularError(t.info.Name, -1)
	}
}

// Get returns the entity with the given primary key values, in key column order.
func (t *Table[T]) Get(ctx context.Context, key ...any) (*T, error) {
	p, err := t.keyPredicate(key)
	if err != nil {
		return nil, err
	}
	es, err := t.All(ctx, t.Select().Where(p))
	if err != nil {
		return nil, err
	}
	if len(es) == 0 {
		return nil, storm.NewNotFoundErrorWithID(t.info.Name, keyValue(key))
	}
	return es[0], nil
}

// Page returns at most limit entities matched by the selector, skipping offset rows.
func (t *Table[T]) Page(ctx context.Context, s *Selector, offset, limit int) ([]*T, error) {
	return t.All(ctx, s.Clone().Offset(offset).Limit(limit))
}

// Count returns the number of rows matching the predicates.
func (t *Table[T]) Count(ctx context.Context, preds ...Predicate) (int, error) {
	return t.CountSelect(ctx, t.Select().Where(preds...))
}

// CountSelect returns the number of rows matched by the selector.
func (t *Table[T]) CountSelect(ctx context.Context, s *Selector) (int, error) {
	if err := s.Err(); err != nil {
		return 0, err
	}
	query, args := s.Clone().Count().Query()
	rows := &Rows{}
	if err := t.driver.Query(ctx, query, args, rows); err != nil {
		return 0, t.queryError("count", query, args, err)
	}
	defer rows.Close()
	n, err := ScanInt(rows)
	if err != nil {
		return 0, t.queryError("count", query, args, err)
	}
	return n, nil
}

// Scan executes a selector whose columns do not follow the row mapper,
// such as a grouped or aggregated selection, and hands the rows to fn.
func (t *Table[T]) Scan(ctx context.Context, s *Selector, fn func(ColumnScanner) error) error {
	if err := s.Err(); err != nil {
		return err
	}
	query, args := s.Query()
	rows := &Rows{}
	if err := t.driver.Query(ctx, query, args, rows); err != nil {
		return t.queryError("select", query, args, err)
	}
	defer rows.Close()
	if err := fn(rows); err != nil {
		return t.queryError("select", query, args, err)
	}
	return nil
}

// Exists reports whether any row matches the predicates.
func (t *Table[T]) Exists(ctx context.Context, preds ...Predicate) (bool, error) {
	s := Dialect(t.driver.Dialect()).Select(t.info.PrimaryKey()...).From(t.info.Table).Where(preds...).Limit(1)
	if len(t.info.PrimaryKey()) == 0 {
		s.Select(t.mapper.Columns()[0])
	}
	query, args := s.Query()
	rows := &Rows{}
	if err := t.driver.Query(ctx, query, args, rows); err != nil {
		return false, t.queryError("exist", query, args, err)
	}
	defer rows.Close()
	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, t.queryError("exist", query, args, err)
	}
	return found, nil
}

// Insert writes one entity.
func (t *Table[T]) Insert(ctx context.Context, e *T) error {
	_, err := t.insert(ctx, false, e)
	return err
}

// InsertIgnore writes one entity unless it conflicts with an existing row.
// It reports whether a row was written.
func (t *Table[T]) InsertIgnore(ctx context.Context, e *T) (bool, error) {
	n, err := t.insert(ctx, true, e)
	return n > 0, err
}

// InsertBatch writes all entities with a single statement.
func (t *Table[T]) InsertBatch(ctx context.Context, es []*T) error {
	if len(es) == 0 {
		return nil
	}
	_, err := t.insert(ctx, false, es...)
	return err
}

// InsertOmit writes one entity without the given columns, leaving them to
// the column defaults of the database.
func (t *Table[T]) InsertOmit(ctx context.Context, e *T, omit ...string) error {
	if len(omit) == 0 {
		return t.Insert(ctx, e)
	}
	var (
		columns []string
		values  []any
		all     = t.mapper.Values(e)
	)
	for i, c := range t.mapper.Columns() {
		if !slices.Contains(omit, c) {
			columns = append(columns, c)
			values = append(values, all[i])
		}
	}
	ib := Dialect(t.driver.Dialect()).Insert(t.info.Table).Columns(columns...).Values(values...)
	query, args := ib.Query()
	if err := ib.Err(); err != nil {
		return err
	}
	_, err := t.exec(ctx, "insert", query, args)
	return err
}

func (t *Table[T]) insert(ctx context.Context, ignore bool, es ...*T) (int64, error) {
	ib := Dialect(t.driver.Dialect()).Insert(t.info.Table).Columns(t.mapper.Columns()...)
	for _, e := range es {
		ib.Values(t.mapper.Values(e)...)
	}
	if ignore {
		ib.OrIgnore()
	}
	query, args := ib.Query()
	if err := ib.Err(); err != nil {
		return 0, err
	}
	return t.exec(ctx, "insert", query, args)
}

// Update writes all non-key columns of e to the row with the same key.
// It returns the number of affected rows.
func (t *Table[T]) Update(ctx context.Context, e *T) (int64, error) {
	pk := t.info.PrimaryKey()
	if len(pk) == 0 {
		return 0, fmt.Errorf("storm: %s has no primary key", t.info.Name)
	}
	values := t.mapper.Values(e)
	ub := Dialect(t.driver.Dialect()).Update(t.info.Table)
	var key []any
	for i, c := range t.info.Columns {
		if c.PrimaryKey {
			key = append(key, values[i])
			continue
		}
		ub.Set(c.Column, values[i])
	}
	if ub.Empty() {
		return 0, nil
	}
	p, err := t.keyPredicate(key)
	if err != nil {
		return 0, err
	}
	query, args := ub.Where(p).Query()
	return t.exec(ctx, "update", query, args)
}

// UpdateWhere applies the update builder to the table and returns the
// number of affected rows.
func (t *Table[T]) UpdateWhere(ctx context.Context, ub *UpdateBuilder) (int64, error) {
	if ub.Empty() {
		return 0, nil
	}
	ub.SetDialect(t.driver.Dialect())
	ub.table = t.info.Table
	query, args := ub.Query()
	return t.exec(ctx, "update", query, args)
}

// Delete removes the rows matching the predicates and returns their count.
// Calling Delete without predicates empties the table.
func (t *Table[T]) Delete(ctx context.Context, preds ...Predicate) (int64, error) {
	query, args := Dialect(t.driver.Dialect()).Delete(t.info.Table).Where(preds...).Query()
	return t.exec(ctx, "delete", query, args)
}

// DeleteKey removes the row with the given primary key values.
func (t *Table[T]) DeleteKey(ctx context.Context, key ...any) (int64, error) {
	p, err := t.keyPredicate(key)
	if err != nil {
		return 0, err
	}
	return t.Delete(ctx, p)
}

func (t *Table[T]) exec(ctx context.Context, op, query string, args []any) (int64, error) {
	var res sql.Result
	if err := t.driver.Exec(ctx, query, args, &res); err != nil {
		if IsConstraintError(err) {
			return 0, storm.NewConstraintError(op+" "+t.info.Name, t.queryError(op, query, args, err))
		}
		return 0, t.queryError(op, query, args, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, t.queryError(op, query, args, err)
	}
	return n, nil
}

func (t *Table[T]) keyPredicate(key []any) (Predicate, error) {
	pk := t.info.PrimaryKey()
	if len(pk) == 0 || len(key) != len(pk) {
		return nil, fmt.Errorf("storm: %s key has %d columns, got %d values", t.info.Name, len(pk), len(key))
	}
	preds := make([]Predicate, len(pk))
	for i, c := range pk {
		preds[i] = EQ(c, key[i])
	}
	return And(preds...), nil
}

func (t *Table[T]) queryError(op, query string, args []any, err error) error {
	return storm.NewQueryError(t.info.Name, op, query, args, err)
}

func keyValue(key []any) any {
	if len(key) == 1 {
		return key[0]
	}
	return key
}
