package sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/storm"
	"github.com/syssam/storm/dialect"
)

// Admin executes schema statements, such as the DDL artifact emitted by the
// generator, against a driver.
type Admin struct {
	driver dialect.Driver
}

// NewAdmin returns an Admin for the given driver.
func NewAdmin(drv dialect.Driver) *Admin {
	return &Admin{driver: drv}
}

// Apply executes every statement of a DDL script in order. Statements end
// with a semicolon at the end of a line; "--" comment lines are skipped.
func (a *Admin) Apply(ctx context.Context, script string) error {
	return a.Exec(ctx, SplitStatements(script)...)
}

// Exec executes the given statements in order and stops at the first failure.
func (a *Admin) Exec(ctx context.Context, stmts ...string) error {
	for i, stmt := range stmts {
		if err := a.driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("storm: statement %d: %w", i+1, err)
		}
	}
	return nil
}

// DropTables drops the given tables if they exist, in the given order.
// A failing table does not stop the others; all failures are returned.
func (a *Admin) DropTables(ctx context.Context, tables ...string) error {
	errs := make([]error, 0, len(tables))
	for _, t := range tables {
		b := &Builder{dialect: a.driver.Dialect()}
		b.WriteString("DROP TABLE IF EXISTS ").Ident(t)
		if err := a.driver.Exec(ctx, b.String(), []any{}, nil); err != nil {
			errs = append(errs, fmt.Errorf("storm: drop %s: %w", t, err))
		}
	}
	return storm.NewAggregateError(errs...)
}

// SplitStatements splits a DDL script into statements.
func SplitStatements(script string) []string {
	var (
		stmts []string
		cur   strings.Builder
	)
	for line := range strings.SplitSeq(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
		if strings.HasSuffix(trimmed, ";") {
			stmts = append(stmts, strings.TrimSuffix(strings.TrimSpace(cur.String()), ";"))
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
