package sql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/syssam/storm"
	"github.com/syssam/storm/dialect"
)

// Bridge manages the rows of a many-to-many join table. The left and right
// columns reference the keys of the two participant entities.
type Bridge struct {
	driver dialect.Driver
	name   string
	table  string
	left   string
	right  string
}

// NewBridge returns a Bridge over the join table.
func NewBridge(drv dialect.Driver, name, table, left, right string) *Bridge {
	return &Bridge{driver: drv, name: name, table: table, left: left, right: right}
}

// Link associates the two keys. Linking an existing pair is a no-op.
func (b *Bridge) Link(ctx context.Context, left, right any) error {
	query, args := Dialect(b.driver.Dialect()).Insert(b.table).
		Columns(b.left, b.right).
		Values(left, right).
		OrIgnore().
		Query()
	if err := b.driver.Exec(ctx, query, args, nil); err != nil {
		return storm.NewQueryError(b.name, "link", query, args, err)
	}
	return nil
}

// Unlink removes the association and reports whether it existed.
func (b *Bridge) Unlink(ctx context.Context, left, right any) (bool, error) {
	query, args := Dialect(b.driver.Dialect()).Delete(b.table).
		Where(EQ(b.left, left), EQ(b.right, right)).
		Query()
	var res sql.Result
	if err := b.driver.Exec(ctx, query, args, &res); err != nil {
		return false, storm.NewQueryError(b.name, "unlink", query, args, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Exists reports whether the two keys are associated.
func (b *Bridge) Exists(ctx context.Context, left, right any) (bool, error) {
	n, err := b.count(ctx, EQ(b.left, left), EQ(b.right, right))
	return n > 0, err
}

// Rights returns a selector of the right keys associated with left.
func (b *Bridge) Rights(left any) *Selector {
	return Dialect(b.driver.Dialect()).Select(b.right).From(b.table).Where(EQ(b.left, left))
}

// Lefts returns a selector of the left keys associated with right.
func (b *Bridge) Lefts(right any) *Selector {
	return Dialect(b.driver.Dialect()).Select(b.left).From(b.table).Where(EQ(b.right, right))
}

// CountRights returns the number of right keys associated with left.
func (b *Bridge) CountRights(ctx context.Context, left any) (int, error) {
	return b.count(ctx, EQ(b.left, left))
}

// CountLefts returns the number of left keys associated with right.
func (b *Bridge) CountLefts(ctx context.Context, right any) (int, error) {
	return b.count(ctx, EQ(b.right, right))
}

func (b *Bridge) count(ctx context.Context, preds ...Predicate) (int, error) {
	query, args := Dialect(b.driver.Dialect()).Select().From(b.table).Where(preds...).Count().Query()
	rows := &Rows{}
	if err := b.driver.Query(ctx, query, args, rows); err != nil {
		return 0, storm.NewQueryError(b.name, "count", query, args, err)
	}
	defer rows.Close()
	return ScanInt(rows)
}

// Pair is one row of a join table.
type Pair[L, R any] struct {
	Left  L
	Right R
}

// Pairs returns the join rows whose left key is one of lefts, ordered by
// left then right key. It is used to eager-load many-to-many relations
// with a single query.
func Pairs[L, R any](ctx context.Context, b *Bridge, lefts ...L) ([]Pair[L, R], error) {
	if len(lefts) == 0 {
		return nil, nil
	}
	query, args := Dialect(b.driver.Dialect()).Select(b.left, b.right).From(b.table).
		Where(In(b.left, anys(lefts)...)).
		OrderBy(Asc(b.left), Asc(b.right)).
		Query()
	rows := &Rows{}
	if err := b.driver.Query(ctx, query, args, rows); err != nil {
		return nil, storm.NewQueryError(b.name, "pairs", query, args, err)
	}
	defer rows.Close()
	var pairs []Pair[L, R]
	for rows.Next() {
		var p Pair[L, R]
		if err := rows.Scan(&p.Left, &p.Right); err != nil {
			return nil, fmt.Errorf("sql/scan: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// Reverse returns the Bridge seen from the right participant.
func (b *Bridge) Reverse() *Bridge {
	return &Bridge{driver: b.driver, name: b.name, table: b.table, left: b.right, right: b.left}
}
