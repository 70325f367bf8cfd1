package sql

import (
	"fmt"
	"strings"

	"github.com/syssam/storm"
)

// RowMapper maps one entity type to and from a database row. Generated
// row mappers implement it with static conversions. Dest and Values return
// their elements in exactly the order of Columns.
type RowMapper[T any] interface {
	// Columns returns the storage columns in field declaration order.
	Columns() []string
	// Dest returns scan destinations pointing into e.
	Dest(e *T) []any
	// Values returns the values of e to write.
	Values(e *T) []any
}

// CheckColumns verifies that a result set has exactly the expected columns,
// in the expected order. Column names are compared case-insensitively since
// some drivers fold identifier case.
func CheckColumns(entity string, expected, actual []string) error {
	if len(expected) != len(actual) {
		return storm.NewMappingError(entity, expected, actual, "")
	}
	for i := range expected {
		if !strings.EqualFold(expected[i], actual[i]) {
			return storm.NewMappingError(entity, expected, actual,
				fmt.Sprintf("column %d is %q, want %q", i, actual[i], expected[i]))
		}
	}
	return nil
}

// ScanEach scans every row of rows into a fresh entity and passes it to fn.
// The column layout is checked once before the first row is read.
// ScanEach does not close rows.
func ScanEach[T any](rows ColumnScanner, entity string, m RowMapper[T], fn func(*T) error) error {
	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("sql/scan: failed getting column names: %w", err)
	}
	if err := CheckColumns(entity, m.Columns(), columns); err != nil {
		return err
	}
	for rows.Next() {
		e := new(T)
		dest := m.Dest(e)
		if len(dest) != len(columns) {
			return storm.NewMappingError(entity, m.Columns(), columns,
				fmt.Sprintf("mapper returned %d scan destinations", len(dest)))
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("sql/scan: scan %s: %w", entity, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ScanAll scans all rows into entities using the given mapper.
func ScanAll[T any](rows ColumnScanner, entity string, m RowMapper[T]) ([]*T, error) {
	var out []*T
	err := ScanEach(rows, entity, m, func(e *T) error {
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScanInt scans a single integer value (e.g. a COUNT(*) result) from rows.
func ScanInt(rows ColumnScanner) (int, error) {
	columns, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	if len(columns) != 1 {
		return 0, storm.NewMappingError("", []string{"count"}, columns, "")
	}
	var n int
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("sql/scan: no rows in result set")
	}
	if err := rows.Scan(&n); err != nil {
		return 0, fmt.Errorf("sql/scan: %w", err)
	}
	if rows.Next() {
		return 0, fmt.Errorf("sql/scan: more than one row in result set")
	}
	return n, rows.Err()
}

// ScanValues scans the first column of every row into a slice of V.
func ScanValues[V any](rows ColumnScanner) ([]V, error) {
	var out []V
	for rows.Next() {
		var v V
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("sql/scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
