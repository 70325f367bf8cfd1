package sql

import (
	"errors"
	"slices"
	"strings"

	"github.com/syssam/storm"
)

// constraintKind classifies a database constraint violation by the codes
// and messages the supported drivers report for it.
type constraintKind struct {
	sqlState []string // SQLSTATE codes (lib/pq, pgx)
	mysql    []uint16 // MySQL error numbers
	messages []string // fallback substrings, incl. SQLite
}

var (
	uniqueViolation = constraintKind{
		sqlState: []string{"23505"},
		mysql:    []uint16{1062},
		messages: []string{"Error 1062", "violates unique constraint", "UNIQUE constraint failed"},
	}
	foreignKeyViolation = constraintKind{
		sqlState: []string{"23503"},
		mysql:    []uint16{1451, 1452},
		messages: []string{"Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"},
	}
	checkViolation = constraintKind{
		sqlState: []string{"23514"},
		mysql:    []uint16{3819},
		messages: []string{"Error 3819", "violates check constraint", "CHECK constraint failed"},
	}
	notNullViolation = constraintKind{
		sqlState: []string{"23502"},
		mysql:    []uint16{1048},
		messages: []string{"Error 1048", "violates not-null constraint", "NOT NULL constraint failed"},
	}
)

// Error shapes exposed by lib/pq, pgx, go-sql-driver/mysql and modernc sqlite.
type (
	errorCoder    interface{ Code() string }
	errorNumberer interface{ Number() uint16 }
	sqlStateError interface{ SQLState() string }
)

func (k constraintKind) match(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[sqlStateError](err); ok && slices.Contains(k.sqlState, e.SQLState()) {
		return true
	}
	if e, ok := asError[errorCoder](err); ok && slices.Contains(k.sqlState, e.Code()) {
		return true
	}
	if e, ok := asError[errorNumberer](err); ok && slices.Contains(k.mysql, e.Number()) {
		return true
	}
	// Wrappers may replace the message, so the whole chain is inspected.
	for ; err != nil; err = errors.Unwrap(err) {
		msg := err.Error()
		for _, m := range k.messages {
			if strings.Contains(msg, m) {
				return true
			}
		}
	}
	return false
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return storm.IsConstraintError(err) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err) ||
		notNullViolation.match(err)
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool { return uniqueViolation.match(err) }

// IsForeignKeyConstraintError reports if the error resulted from a foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool { return foreignKeyViolation.match(err) }

// IsCheckConstraintError reports if the error resulted from a check constraint violation.
func IsCheckConstraintError(err error) bool { return checkViolation.match(err) }

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}
