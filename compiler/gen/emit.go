package gen

import (
	"cmp"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"
)

// Artifact is one generated file.
type Artifact struct {
	// Path is the slash-separated path relative to the target directory.
	Path     string
	Language string
	Template string
	// Entity is set for per-entity artifacts.
	Entity  string
	Content []byte
}

// Renderer renders a finalized graph into the artifacts of one language.
// Renderers must be deterministic: the same graph renders byte-identical
// artifacts.
type Renderer interface {
	Language() string
	Render(*Graph) ([]*Artifact, error)
}

// Emit checks the generated identifiers of the graph and renders it with
// the given renderers, or the configured ones. Emit is all-or-nothing: the
// first failing renderer fails the run and no artifact is returned.
func Emit(g *Graph, renderers ...Renderer) ([]*Artifact, error) {
	if len(renderers) == 0 {
		renderers = g.Config.Renderers
	}
	if len(renderers) == 0 {
		return nil, NewConfigError("Renderers", nil, "no renderer configured")
	}
	if err := CheckIdentifiers(g); err != nil {
		return nil, err
	}
	log := g.Config.Log()
	var (
		arts []*Artifact
		seen = make(map[string]string)
	)
	for _, r := range renderers {
		start := time.Now()
		out, err := r.Render(g)
		if err != nil {
			var gerr *GenerationError
			if errors.As(err, &gerr) {
				if gerr.Language == "" {
					gerr.Language = r.Language()
				}
				return nil, err
			}
			return nil, &GenerationError{Language: r.Language(), Message: "render", Cause: err}
		}
		for _, a := range out {
			if a.Language == "" {
				a.Language = r.Language()
			}
			if err := checkPath(a); err != nil {
				return nil, err
			}
			if prev, ok := seen[a.Path]; ok {
				return nil, &GenerationError{Language: a.Language, Template: a.Template, File: a.Path,
					Message: fmt.Sprintf("path is also produced by the %s renderer", prev)}
			}
			seen[a.Path] = a.Language
		}
		arts = append(arts, out...)
		log.Debug("rendered artifacts", "language", r.Language(), "files", len(out), "took", time.Since(start))
	}
	slices.SortFunc(arts, func(a, b *Artifact) int { return cmp.Compare(a.Path, b.Path) })
	return arts, nil
}

func checkPath(a *Artifact) error {
	switch {
	case a.Path == "":
		return &GenerationError{Language: a.Language, Template: a.Template, Entity: a.Entity, Message: "artifact has no path"}
	case path.IsAbs(a.Path), path.Clean(a.Path) != a.Path, strings.HasPrefix(a.Path, "../"):
		return &GenerationError{Language: a.Language, Template: a.Template, Entity: a.Entity, File: a.Path,
			Message: "artifact path must be clean and relative"}
	}
	return nil
}
