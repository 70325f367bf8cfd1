// Package compiler runs the storm generation pipeline: it loads entity
// declarations, builds the schema model, renders the configured languages
// and writes the artifacts to disk.
//
//	cfg, err := gen.NewConfig(
//		gen.WithPackage("example.com/app/entity"),
//		gen.WithTarget("./entity"),
//	)
//	if err != nil {
//		return err
//	}
//	err = compiler.Generate(ctx, cfg, load.Files("schema/*.yaml"))
package compiler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/storm/compiler/gen"
	"github.com/syssam/storm/compiler/gen/ddl"
	"github.com/syssam/storm/compiler/gen/golang"
	"github.com/syssam/storm/compiler/load"
)

// Renderer returns the bundled renderer of a language.
func Renderer(lang string) (gen.Renderer, error) {
	switch lang {
	case gen.LangGo:
		return golang.New(), nil
	case gen.LangSQL:
		return ddl.New(), nil
	default:
		return nil, gen.NewConfigError("Languages", lang, "unknown output language; use go or sql")
	}
}

// Build loads the declarations of src and returns the finalized graph and
// its artifacts, without writing anything.
func Build(ctx context.Context, cfg *gen.Config, src load.Source) (*gen.Graph, []*gen.Artifact, error) {
	if len(cfg.Renderers) == 0 {
		for _, lang := range cfg.Languages {
			r, err := Renderer(lang)
			if err != nil {
				return nil, nil, err
			}
			cfg.Renderers = append(cfg.Renderers, r)
		}
	}
	g, err := gen.LoadGraph(ctx, cfg, src)
	if err != nil {
		return nil, nil, err
	}
	arts, err := gen.Emit(g)
	if err != nil {
		return nil, nil, err
	}
	return g, arts, nil
}

// Generate runs one generation: load, resolve, render and write to
// cfg.Target. Nothing is written when any step fails.
func Generate(ctx context.Context, cfg *gen.Config, src load.Source) error {
	if cfg.Target == "" {
		return gen.NewConfigError("Target", nil, "target directory is required")
	}
	start := time.Now()
	g, arts, err := Build(ctx, cfg, src)
	if err != nil {
		return err
	}
	w := gen.NewArtifactWriter(cfg.Target).WithPrune(cfg.HeaderText())
	if err := w.Write(ctx, arts); err != nil {
		return err
	}
	m := w.Metrics()
	cfg.Log().Info("generated",
		"target", cfg.Target,
		"entities", len(g.Nodes),
		"written", m.FilesWritten,
		"unchanged", m.FilesUnchanged,
		"removed", m.FilesRemoved,
		"took", time.Since(start),
	)
	return nil
}

// Run pairs a configuration with its declaration source.
type Run struct {
	Config *gen.Config
	Source load.Source
}

// GenerateAll executes independent runs in parallel. Each run owns its
// graph; the first failure cancels the runs that have not finished.
func GenerateAll(ctx context.Context, runs ...Run) error {
	errg, ctx := errgroup.WithContext(ctx)
	for i, r := range runs {
		errg.Go(func() error {
			if err := Generate(ctx, r.Config, r.Source); err != nil {
				return fmt.Errorf("run %d (%s): %w", i, r.Config.Target, err)
			}
			return nil
		})
	}
	return errg.Wait()
}
