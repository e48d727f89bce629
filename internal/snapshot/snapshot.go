// Package snapshot writes the bronze, silver and gold JSON snapshots of a run
// together with a metadata sidecar.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/brentp/xopen"
)

// Layer is a medallion layer.
type Layer string

// Layers.
const (
	Bronze Layer = "bronze"
	Silver Layer = "silver"
	Gold   Layer = "gold"
)

const metaSuffix = ".meta.json"

// Metadata describes one written snapshot.
type Metadata struct {
	RunID     string    `json:"run_id"`
	Layer     Layer     `json:"layer"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Records   int       `json:"record_count"`
	Bytes     int64     `json:"bytes"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}

// Store writes snapshots under a root directory, one subdirectory per layer.
type Store struct {
	root     string
	compress bool
}

// NewStore creates a store rooted at dir. Compressed snapshots are gzipped.
func NewStore(dir string, compress bool) *Store {
	return &Store{root: dir, compress: compress}
}

// Write encodes v as JSON into <root>/<layer>/<name>_<runID>.json[.gz] and
// writes its metadata next to it. The checksum covers the file as written.
func (s *Store) Write(runID string, layer Layer, name string, v any, records int) (*Metadata, error) {
	dir := filepath.Join(s.root, string(layer))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", name, runID))
	if s.compress {
		path += ".gz"
	}

	w, err := xopen.Wopen(path)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		w.Close()
		return nil, fmt.Errorf("encode %s snapshot: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close snapshot: %w", err)
	}

	sum, size, err := checksum(path)
	if err != nil {
		return nil, err
	}
	meta := &Metadata{
		RunID:     runID,
		Layer:     layer,
		Name:      name,
		Path:      path,
		Records:   records,
		Bytes:     size,
		SHA256:    sum,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(metaPath(path), data, 0o644); err != nil {
		return nil, fmt.Errorf("write snapshot metadata: %w", err)
	}
	return meta, nil
}

// Read decodes the snapshot at path into v after verifying its checksum
// against the sidecar metadata, when one exists.
func Read(path string, v any) error {
	if data, err := os.ReadFile(metaPath(path)); err == nil {
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("parse snapshot metadata: %w", err)
		}
		sum, _, err := checksum(path)
		if err != nil {
			return err
		}
		if sum != meta.SHA256 {
			return fmt.Errorf("snapshot %s: checksum mismatch", path)
		}
	}

	r, err := xopen.Ropen(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer r.Close()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return nil
}

// List returns the metadata of every snapshot of a layer, newest first.
func (s *Store) List(layer Layer) ([]Metadata, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, string(layer), "*"+metaSuffix))
	if err != nil {
		return nil, err
	}
	out := make([]Metadata, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, err
		}
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("parse %s: %w", m, err)
		}
		out = append(out, meta)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// Latest returns the newest snapshot named name in layer.
func (s *Store) Latest(layer Layer, name string) (*Metadata, error) {
	list, err := s.List(layer)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Name == name {
			return &list[i], nil
		}
	}
	return nil, fmt.Errorf("no %s snapshot named %s", layer, name)
}

func metaPath(path string) string {
	return strings.TrimSuffix(strings.TrimSuffix(path, ".gz"), ".json") + metaSuffix
}

func checksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash snapshot: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
