package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/storm/compiler"
	"github.com/syssam/storm/compiler/gen"
	"github.com/syssam/storm/compiler/gen/ddl"
	"github.com/syssam/storm/compiler/load"
	"github.com/syssam/storm/dialect"
	"github.com/syssam/storm/dialect/sql"

	// database/sql drivers for the supported dialects.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func newApplyCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create the tables of the model in a database",
		Example: `  storm apply --driver sqlite --dsn file:app.db
  storm apply --driver postgres --dsn "postgres://localhost/app?sslmode=disable"
  storm apply --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			script, err := a.script(cmd.Context())
			if err != nil {
				return a.report(cmd.ErrOrStderr(), err)
			}
			if dryRun {
				_, err := io.WriteString(cmd.OutOrStdout(), script)
				return err
			}
			db := a.cfg.Database
			if db.DSN == "" {
				return fmt.Errorf("apply: no data source; set --dsn or database.dsn")
			}
			drv, err := sql.Open(db.Driver, db.DSN)
			if err != nil {
				return err
			}
			defer drv.Close()
			var base dialect.Driver = drv
			if a.cfg.Verbose {
				base = sql.NewDebugDriver(drv, a.log)
			}
			stats := sql.NewStatsDriver(base, sql.WithSlowQueryLog(a.log))
			if err := sql.NewAdmin(stats).Apply(cmd.Context(), script); err != nil {
				return err
			}
			a.log.Info("schema applied", "driver", db.Driver, "stats", stats.Stats().String())
			if a.cfg.Verbose {
				stats.Stats().Format(cmd.ErrOrStderr())
			}
			return nil
		},
	}
	cmd.Flags().String("driver", "", "database driver: sqlite, mysql or postgres (default: the dialect)")
	cmd.Flags().String("dsn", "", "data source name")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the script instead of executing it")
	return cmd
}

// script renders the DDL of the model for the database driver.
func (a *app) script(ctx context.Context) (string, error) {
	if a.cfg.Database.Driver == "" {
		a.cfg.Database.Driver = a.cfg.Dialect
	}
	a.cfg.Dialect = a.cfg.Database.Driver
	cfg, err := a.genConfig()
	if err != nil {
		return "", err
	}
	cfg.Languages = []string{gen.LangSQL}
	cfg.Renderers = []gen.Renderer{ddl.New()}
	_, arts, err := compiler.Build(ctx, cfg, a.cfg.Source())
	if err != nil {
		return "", err
	}
	for _, art := range arts {
		if art.Path == ddl.DefaultPath {
			return string(art.Content), nil
		}
	}
	return "", fmt.Errorf("apply: no %s artifact rendered", ddl.DefaultPath)
}

func newSnapshotCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write the declarations to a msgpack snapshot",
		Long: `Snapshot reads the declaration files and writes them to a single msgpack
file. Generating from a snapshot reproduces the model without the original
files, for example in CI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schemas, err := load.Files(a.cfg.Schema...).Load(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := load.WriteSnapshot(w, schemas); err != nil {
				return err
			}
			a.log.Debug("snapshot written", "entities", len(schemas), "output", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}
