package load

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshotVersion is bumped whenever the encoded layout changes.
const snapshotVersion = 1

type snapshot struct {
	Version  int       `json:"version"`
	Entities []*Schema `json:"entities"`
}

// SnapshotSource reads a declaration set previously written by WriteSnapshot.
type SnapshotSource struct {
	Path string
}

// Snapshot returns a SnapshotSource for the given file.
func Snapshot(path string) *SnapshotSource {
	return &SnapshotSource{Path: path}
}

// Load implements Source.
func (s *SnapshotSource) Load(context.Context) ([]*Schema, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("load: open snapshot: %w", err)
	}
	defer f.Close()
	schemas, err := ReadSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("load: %s: %w", s.Path, err)
	}
	return schemas, nil
}

// WriteSnapshot encodes the declarations with msgpack. Declaration sites
// are kept so diagnostics from a snapshot still point to the original files.
func WriteSnapshot(w io.Writer, schemas []*Schema) error {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	enc.SetOmitEmpty(true)
	return enc.Encode(&snapshot{Version: snapshotVersion, Entities: schemas})
}

// ReadSnapshot decodes declarations written by WriteSnapshot.
func ReadSnapshot(r io.Reader) ([]*Schema, error) {
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")
	var s snapshot
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	return s.Entities, nil
}
