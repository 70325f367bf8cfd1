package gen

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"
)

// ArtifactWriter writes emitted artifacts below a directory. Files are
// staged in parallel next to their destination and renamed into place only
// after every file was staged, so a failed run leaves no partial output.
type ArtifactWriter struct {
	dir     string
	workers int
	header  string

	mu      sync.Mutex
	metrics *WriterMetrics
}

// WriterMetrics tracks write performance.
type WriterMetrics struct {
	FilesWritten   int
	FilesUnchanged int
	FilesRemoved   int
	TotalBytes     int64
	WriteTime      time.Duration
}

// NewArtifactWriter creates a writer for the given directory.
func NewArtifactWriter(dir string) *ArtifactWriter {
	return &ArtifactWriter{
		dir:     dir,
		workers: runtime.GOMAXPROCS(0),
		metrics: &WriterMetrics{},
	}
}

// WithWorkers sets the number of parallel workers.
func (w *ArtifactWriter) WithWorkers(n int) *ArtifactWriter {
	if n > 0 {
		w.workers = n
	}
	return w
}

// WithPrune makes Write remove files left over from earlier runs. A file
// is removed when it sits in a directory holding artifacts, is not one of
// them, and starts with the given header (comment markers aside).
func (w *ArtifactWriter) WithPrune(header string) *ArtifactWriter {
	w.header = header
	return w
}

// Metrics returns the write metrics.
func (w *ArtifactWriter) Metrics() *WriterMetrics {
	return w.metrics
}

// staged is an artifact written to a temporary file.
type staged struct {
	tmp, path string
}

// Write stages all artifacts and then moves them into place. Artifacts whose
// content matches the file on disk are left untouched.
func (w *ArtifactWriter) Write(ctx context.Context, arts []*Artifact) error {
	start := time.Now()
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return &GenerationError{File: w.dir, Message: "create output directory", Cause: err}
	}
	files := make([]*staged, len(arts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(w.workers)
	for i, a := range arts {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := w.stage(a)
			files[i] = s
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		discard(files)
		return err
	}
	for i, s := range files {
		if s == nil {
			continue
		}
		if err := os.Rename(s.tmp, s.path); err != nil {
			discard(files[i:])
			return &GenerationError{Language: arts[i].Language, File: arts[i].Path, Message: "move into place", Cause: err}
		}
	}
	if err := w.prune(arts); err != nil {
		return err
	}
	w.metrics.WriteTime += time.Since(start)
	return nil
}

func (w *ArtifactWriter) stage(a *Artifact) (*staged, error) {
	path := filepath.Join(w.dir, filepath.FromSlash(a.Path))
	if cur, err := os.ReadFile(path); err == nil && bytes.Equal(cur, a.Content) {
		w.mu.Lock()
		w.metrics.FilesUnchanged++
		w.mu.Unlock()
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &GenerationError{Language: a.Language, File: a.Path, Message: "create directory", Cause: err}
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".storm-*")
	if err != nil {
		return nil, &GenerationError{Language: a.Language, File: a.Path, Message: "stage file", Cause: err}
	}
	s := &staged{tmp: f.Name(), path: path}
	if _, err := f.Write(a.Content); err != nil {
		f.Close()
		return s, &GenerationError{Language: a.Language, File: a.Path, Message: "stage file", Cause: err}
	}
	if err := f.Close(); err != nil {
		return s, &GenerationError{Language: a.Language, File: a.Path, Message: "stage file", Cause: err}
	}
	if err := os.Chmod(s.tmp, 0o644); err != nil {
		return s, &GenerationError{Language: a.Language, File: a.Path, Message: "stage file", Cause: err}
	}
	w.mu.Lock()
	w.metrics.FilesWritten++
	w.metrics.TotalBytes += int64(len(a.Content))
	w.mu.Unlock()
	return s, nil
}

// prune removes stale generated files next to the written artifacts.
func (w *ArtifactWriter) prune(arts []*Artifact) error {
	mark := headerMark(w.header)
	if mark == "" {
		return nil
	}
	keep := make(map[string]bool, len(arts))
	dirs := make(map[string]bool)
	for _, a := range arts {
		path := filepath.Join(w.dir, filepath.FromSlash(a.Path))
		keep[path] = true
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return &GenerationError{File: dir, Message: "list output directory", Cause: err}
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if e.IsDir() || keep[path] || !generatedBy(path, mark) {
				continue
			}
			if err := os.Remove(path); err != nil {
				return &GenerationError{File: path, Message: "remove stale file", Cause: err}
			}
			w.metrics.FilesRemoved++
		}
	}
	return nil
}

// headerMark returns the first header line without its comment marker.
func headerMark(header string) string {
	line, _, _ := strings.Cut(header, "\n")
	line = strings.TrimPrefix(strings.TrimPrefix(line, "//"), "--")
	return strings.TrimSpace(line)
}

// generatedBy reports whether the file at path starts with the header mark
// written as a Go or SQL comment.
func generatedBy(path, mark string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}
	line = strings.TrimSpace(line)
	return line == "// "+mark || line == "-- "+mark
}

// discard removes staged files (errors intentionally ignored as we're
// already in error state).
func discard(files []*staged) {
	for _, s := range files {
		if s != nil {
			_ = os.Remove(s.tmp)
		}
	}
}

// FormatGo formats generated Go source with goimports, which also removes
// unused imports. The path only guides import resolution.
func FormatGo(path string, src []byte) ([]byte, error) {
	out, err := imports.Process(path, src, nil)
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", path, err)
	}
	return out, nil
}
