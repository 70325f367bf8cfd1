package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/syssam/storm/compiler/gen"
)

func newDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [entity...]",
		Short: "Print the resolved model as tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.genConfig()
			if err != nil {
				return err
			}
			g, err := gen.LoadGraph(cmd.Context(), cfg, a.cfg.Source())
			if err != nil {
				return a.report(cmd.ErrOrStderr(), err)
			}
			types := g.Nodes
			if len(args) > 0 {
				types = types[:0:0]
				for _, name := range args {
					t := g.Type(name)
					if t == nil {
						return fmt.Errorf("unknown entity %q", name)
					}
					types = append(types, t)
				}
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				describeGraph(out, g)
			}
			for _, t := range types {
				describeType(out, t)
			}
			return nil
		},
	}
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

func describeGraph(w io.Writer, g *gen.Graph) {
	t := newTable(w, "entities")
	t.AppendHeader(table.Row{"Entity", "Table", "Kind", "Key", "Fields", "Relations"})
	for _, n := range g.Nodes {
		t.AppendRow(table.Row{n.Name, n.Table, kind(n), columns(n.PrimaryKey), len(n.Fields), len(n.Relations)})
	}
	t.Render()
	if len(g.Cycles) == 0 {
		return
	}
	c := newTable(w, "cycle groups")
	c.AppendHeader(table.Row{"Group", "Entities"})
	for _, cg := range g.Cycles {
		names := make([]string, len(cg.Types))
		for i, ct := range cg.Types {
			names[i] = ct.Name
		}
		c.AppendRow(table.Row{cg.ID, strings.Join(names, ", ")})
	}
	c.Render()
}

func describeType(w io.Writer, n *gen.Type) {
	t := newTable(w, n.Name)
	t.AppendHeader(table.Row{"Field", "Column", "Host Type", "Storage", "Null", "Key", "Default"})
	for _, f := range n.Fields {
		t.AppendRow(table.Row{f.Name, f.Column, f.HostType, f.Storage.String(), flag(f.Nullable), flag(f.PK), defaultOf(f)})
	}
	t.Render()
	if len(n.Relations) == 0 {
		return
	}
	r := newTable(w, n.Name+" relations")
	r.AppendHeader(table.Row{"Relation", "Kind", "Target", "Keys", "Through", "Cyclic"})
	for _, rel := range n.Relations {
		through := ""
		if rel.Through != nil {
			through = rel.Through.Name
		}
		r.AppendRow(table.Row{rel.Name, rel.Kind.String(), rel.To.Name, columns(rel.Fields), through, flag(rel.Cyclic)})
	}
	r.Render()
}

func kind(t *gen.Type) string {
	switch {
	case t.View:
		return "view"
	case t.Synthetic:
		return "join"
	default:
		return "entity"
	}
}

func columns(fs []*gen.Field) string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Column
	}
	return strings.Join(names, ", ")
}

func flag(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func defaultOf(f *gen.Field) string {
	switch f.Default.Kind {
	case gen.DefaultValue:
		return f.Default.Value
	case gen.DefaultExpr:
		return "(" + f.Default.Value + ")"
	}
	return ""
}
