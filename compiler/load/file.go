package load

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// FileSource reads YAML or JSON descriptor files. Patterns may be plain
// paths or globs; matches are read in lexical order so the declaration
// order is stable across runs.
//
// A descriptor file holds a list of entities:
//
//	entities:
//	  - name: Author
//	    fields:
//	      - {name: id, type: int64, pk: true}
//	      - {name: name, type: string}
type FileSource struct {
	Patterns []string
}

// Files returns a FileSource over the given paths or globs.
func Files(patterns ...string) *FileSource {
	return &FileSource{Patterns: patterns}
}

// descriptor is the top-level layout of a declaration file.
type descriptor struct {
	Entities []*Schema `yaml:"entities"`
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) ([]*Schema, error) {
	paths, err := s.Paths()
	if err != nil {
		return nil, err
	}
	var all []*Schema
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		schemas, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, schemas...)
	}
	return all, nil
}

// Paths expands the patterns into a sorted, de-duplicated list of files.
func (s *FileSource) Paths() ([]string, error) {
	var paths []string
	for _, p := range s.Patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("load: invalid pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("load: no declaration files match %q", p)
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}

// ReadFile reads the declarations of a single file.
func ReadFile(path string) ([]*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: read %s: %w", path, err)
	}
	schemas, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load: %s: %w", path, err)
	}
	for _, sc := range schemas {
		sc.Pos = path + ":" + sc.Pos
		for _, f := range sc.Fields {
			f.Pos = path + ":" + f.Pos
		}
		for _, r := range sc.Relations {
			r.Pos = path + ":" + r.Pos
		}
	}
	return schemas, nil
}

// Parse decodes declarations from YAML or JSON bytes. Positions are
// "line:column" pairs relative to the input.
func Parse(data []byte) ([]*Schema, error) {
	var d descriptor
	switch err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&d); {
	case errors.Is(err, io.EOF):
		return nil, nil
	case err != nil:
		return nil, err
	}
	for i, sc := range d.Entities {
		if sc == nil {
			return nil, fmt.Errorf("entity %d is empty", i)
		}
	}
	return d.Entities, nil
}
