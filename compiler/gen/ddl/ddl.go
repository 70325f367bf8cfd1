// Package ddl renders the SQL schema of a storm graph.
//
// Tables are described with Atlas schema types and turned into statements
// by the plan applier of the configured dialect:
//
//	{target}/
//	└── schema.sql    # CREATE TABLE statements in dependency order
package ddl

import (
	"context"
	"fmt"
	"strings"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/storm/compiler/gen"
	"github.com/syssam/storm/dialect"
)

// DefaultPath is the artifact path of the rendered schema.
const DefaultPath = "schema.sql"

// Renderer renders the tables of the persistent types of a graph into one
// SQL script.
type Renderer struct {
	// Path of the artifact relative to the target directory.
	Path string
}

// New returns a Renderer writing to DefaultPath.
func New() *Renderer {
	return &Renderer{Path: DefaultPath}
}

// Language implements gen.Renderer.
func (*Renderer) Language() string { return gen.LangSQL }

// Render implements gen.Renderer.
func (r *Renderer) Render(g *gen.Graph) ([]*gen.Artifact, error) {
	stmts, err := Statements(g)
	if err != nil {
		return nil, &gen.GenerationError{Template: "schema", Cause: err}
	}
	p := r.Path
	if p == "" {
		p = DefaultPath
	}
	return []*gen.Artifact{{
		Path:     p,
		Template: "schema",
		Content:  []byte(Script(g.Config.HeaderText(), stmts)),
	}}, nil
}

// Script joins the statements into a script that sql.Admin.Apply and
// database shells accept. The Go comment header is rewritten as SQL
// comments.
func Script(header string, stmts []string) string {
	var b strings.Builder
	for _, line := range strings.Split(header, "\n") {
		if rest, ok := strings.CutPrefix(line, "//"); ok {
			line = "--" + rest
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, stmt := range stmts {
		b.WriteByte('\n')
		b.WriteString(stmt)
		b.WriteString(";\n")
	}
	return b.String()
}

// Statements returns the statements creating the tables of g, for the
// dialect of its configuration.
func Statements(g *gen.Graph) ([]string, error) {
	tables, err := Tables(g)
	if err != nil {
		return nil, err
	}
	planner, err := planApplier(g.Config.Dialect)
	if err != nil {
		return nil, err
	}
	changes := make([]schema.Change, len(tables))
	for i, t := range tables {
		changes[i] = &schema.AddTable{T: t}
	}
	plan, err := planner.PlanChanges(context.Background(), "storm", changes)
	if err != nil {
		return nil, fmt.Errorf("ddl: plan %s schema: %w", g.Config.Dialect, err)
	}
	stmts := make([]string, 0, len(plan.Changes))
	for _, c := range plan.Changes {
		if strings.HasPrefix(c.Cmd, "PRAGMA ") {
			continue
		}
		stmts = append(stmts, c.Cmd)
	}
	return stmts, nil
}

func planApplier(name string) (migrate.PlanApplier, error) {
	switch name {
	case dialect.SQLite:
		return sqlite.DefaultPlan, nil
	case dialect.Postgres:
		return postgres.DefaultPlan, nil
	case dialect.MySQL:
		return mysql.DefaultPlan, nil
	}
	return nil, fmt.Errorf("ddl: unsupported dialect %q", name)
}

func parseType(name, typ string) (schema.Type, error) {
	switch name {
	case dialect.Postgres:
		return postgres.ParseType(typ)
	case dialect.MySQL:
		return mysql.ParseType(typ)
	default:
		return sqlite.ParseType(typ)
	}
}
