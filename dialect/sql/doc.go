// Package sql is the runtime query engine used by generated code.
//
// It provides statement builders, a database/sql backed Driver, and the
// generic Table type that executes queries for one entity and maps rows
// through a generated RowMapper.
//
// # Builder Types
//
//   - Builder: low-level SQL string builder with identifier quoting
//   - Selector: SELECT builder with predicates, ordering and pagination
//   - InsertBuilder: INSERT builder with multi-row values and OrIgnore
//   - UpdateBuilder: UPDATE builder with SET and WHERE clauses
//   - DeleteBuilder: DELETE builder with WHERE predicates
//
// # Dialect Support
//
// Identifier quoting and placeholders follow the dialect:
//
//	sql.Dialect(dialect.Postgres).Select("id", "name").From("users").Where(sql.EQ("status", "active"))
//	// SELECT "id", "name" FROM "users" WHERE "status" = $1
//
//	sql.Dialect(dialect.SQLite).Select("id", "name").From("users").Where(sql.EQ("status", "active"))
//	// SELECT `id`, `name` FROM `users` WHERE `status` = ?
//
// # Row Mapping
//
// Table checks the result columns against the mapper before scanning. A
// result with a different column count or order fails with a
// *storm.MappingError instead of filling fields with zero values:
//
//	books := sql.NewTable(drv, book.Info, book.Mapper{})
//	all, err := books.All(ctx, books.Select().Where(book.Title.HasPrefix("Go")))
package sql
