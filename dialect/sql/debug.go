package sql

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/syssam/storm/dialect"
)

// FormatRows renders a result set as a text table, one line per row,
// followed by a row count. It consumes rows but does not close them.
func FormatRows(w io.Writer, rows ColumnScanner) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	t.AppendHeader(header)

	n := 0
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		row := make(table.Row, len(cols))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	t.Render()
	_, err = fmt.Fprintf(w, "(%d rows)\n", n)
	return err
}

// DumpQuery runs the query and returns its result rendered by FormatRows.
// It is meant for debugging and tests.
func DumpQuery(ctx context.Context, drv dialect.Driver, query string, args ...any) (string, error) {
	if args == nil {
		args = []any{}
	}
	rows := &Rows{}
	if err := drv.Query(ctx, query, args, rows); err != nil {
		return "", err
	}
	defer rows.Close()
	var sb strings.Builder
	if err := FormatRows(&sb, rows); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// DebugDriver wraps a Driver and logs every statement at debug level.
type DebugDriver struct {
	dialect.Driver
	logger *slog.Logger
}

// NewDebugDriver wraps a Driver with statement logging. A nil logger
// uses slog.Default().
func NewDebugDriver(drv dialect.Driver, logger *slog.Logger) *DebugDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{Driver: drv, logger: logger}
}

// Query implements dialect.Driver.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "query", "sql", query, "args", args)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec implements dialect.Driver.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "exec", "sql", query, "args", args)
	return d.Driver.Exec(ctx, query, args, v)
}

var _ dialect.Driver = (*DebugDriver)(nil)
