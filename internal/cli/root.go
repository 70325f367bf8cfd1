// Package cli implements the storm command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/storm/compiler/gen"
	"github.com/syssam/storm/internal/config"
)

// Version is set at build time.
var Version = "dev"

// ErrInvalid is returned after the problems of an invalid model were
// printed.
var ErrInvalid = errors.New("storm: invalid schema")

// app is the state shared by the commands of one invocation.
type app struct {
	cfgFile string
	noColor bool
	cfg     *config.Config
	log     *slog.Logger
}

// NewRootCmd returns the storm command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "storm",
		Short: "storm generates type-safe data access code from entity declarations",
		Long: `storm reads entity declarations, validates the model they describe and
emits a Go data access package together with the SQL schema of its tables.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			if a.noColor {
				color.NoColor = true
			}
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			a.cfg, err = config.Load(a.cfgFile, wd, cmd.Flags())
			if err != nil {
				return err
			}
			a.log = newLogger(cmd.ErrOrStderr(), a.cfg.Verbose)
			if a.cfg.File != "" {
				a.log.Debug("using config file", "path", a.cfg.File)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./storm.yaml)")
	flags.StringSlice("schema", nil, "declaration files or globs")
	flags.String("snapshot", "", "msgpack declaration snapshot")
	flags.String("package", "", "import path of the generated package")
	flags.String("target", "", "output directory")
	flags.String("dialect", "", "storage dialect: sqlite, mysql or postgres")
	flags.StringSlice("languages", nil, "output languages: go, sql")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newGenerateCmd(a),
		newValidateCmd(a),
		newDescribeCmd(a),
		newApplyCmd(a),
		newSnapshotCmd(a),
	)
	return root
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// genConfig returns the generator configuration of the invocation.
func (a *app) genConfig() (*gen.Config, error) {
	return a.cfg.Gen(a.log)
}

// report prints the problems and warnings of a failed run and returns
// ErrInvalid, or returns err unchanged when it carries no report.
func (a *app) report(w io.Writer, err error) error {
	rep, ok := gen.AsReport(err)
	if !ok {
		return err
	}
	printReport(w, rep.Problems, rep.Warnings)
	return ErrInvalid
}

var (
	errorLabel   = color.New(color.FgRed, color.Bold)
	warningLabel = color.New(color.FgYellow, color.Bold)
	okLabel      = color.New(color.FgGreen, color.Bold)
)

func printReport(w io.Writer, problems []gen.Problem, warnings []*gen.Warning) {
	for _, p := range problems {
		errorLabel.Fprint(w, "error")
		fmt.Fprintf(w, ": %s\n", p.Error())
	}
	for _, wn := range warnings {
		warningLabel.Fprint(w, "warning")
		fmt.Fprintf(w, ": %s.%s [%s]: %s", wn.Entity, wn.Field, wn.Rule, wn.Message)
		if wn.Site != "" {
			fmt.Fprintf(w, " (%s)", wn.Site)
		}
		fmt.Fprintln(w)
	}
}
