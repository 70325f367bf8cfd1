package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/syssam/storm/compiler"
)

// debounce is how long the watcher waits for more changes before it
// regenerates.
const debounce = 150 * time.Millisecond

func newGenerateCmd(a *app) *cobra.Command {
	var watchMode bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the data access package and the SQL schema",
		Example: `  # Generate with ./storm.yaml
  storm generate

  # Regenerate whenever a declaration file changes
  storm generate --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := a.generate(cmd.Context())
			if !watchMode {
				return a.report(cmd.ErrOrStderr(), err)
			}
			if err != nil {
				_ = a.report(cmd.ErrOrStderr(), err)
			}
			return a.watch(cmd.Context(), func() {
				if err := a.generate(cmd.Context()); err != nil {
					_ = a.report(cmd.ErrOrStderr(), err)
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "regenerate when declarations change")
	return cmd
}

func (a *app) generate(ctx context.Context) error {
	cfg, err := a.genConfig()
	if err != nil {
		return err
	}
	return compiler.Generate(ctx, cfg, a.cfg.Source())
}

// watch calls run after changes to declaration files settle, until ctx
// is done.
func (a *app) watch(ctx context.Context, run func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	for _, dir := range a.cfg.Watched() {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		a.log.Info("watching", "dir", dir)
	}
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 || !a.declaration(ev.Name) {
				continue
			}
			a.log.Debug("declaration changed", "file", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			run()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("watch error", slog.Any("error", err))
		}
	}
}

// declaration reports whether path is one of the declaration inputs.
func (a *app) declaration(path string) bool {
	path = filepath.Clean(path)
	for _, p := range a.cfg.Schema {
		if ok, _ := filepath.Match(filepath.Clean(p), path); ok {
			return true
		}
	}
	return a.cfg.Snapshot != "" && filepath.Clean(a.cfg.Snapshot) == path
}
