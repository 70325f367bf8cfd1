package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syssam/storm/compiler/gen"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the declarations and print every problem found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.genConfig()
			if err != nil {
				return err
			}
			g, err := gen.LoadGraph(cmd.Context(), cfg, a.cfg.Source())
			if err == nil {
				err = gen.CheckIdentifiers(g)
			}
			if err != nil {
				return a.report(cmd.OutOrStdout(), err)
			}
			out := cmd.OutOrStdout()
			printReport(out, nil, g.Warnings)
			okLabel.Fprint(out, "ok")
			fmt.Fprintf(out, ": %d entities, %d relations, %d cycle groups\n", len(g.Nodes), len(g.Relations), len(g.Cycles))
			return nil
		},
	}
}
