// Package jsonfile persists the catalog as a single pretty-printed JSON
// array on the local filesystem. It is the default backend: zero setup,
// human-inspectable, and the catalog is small enough that rewriting the
// whole file on every merge is cheap.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"enrich/internal/catalog"
)

func init() {
	catalog.Register("jsonfile", New)
}

// Store reads and writes one JSON file. The DSN is the file path.
type Store struct {
	path string
}

func New(ctx context.Context, cfg catalog.Config) (catalog.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("jsonfile: missing path")
	}
	if dir := filepath.Dir(cfg.DSN); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("jsonfile: create dir: %w", err)
		}
	}
	return &Store{path: cfg.DSN}, nil
}

func (s *Store) Close() {}

// Load returns the persisted records. A missing file is a fresh catalog,
// not an error.
func (s *Store) Load(ctx context.Context) ([]catalog.Record, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []catalog.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: read %s: %w", s.path, err)
	}

	var records []catalog.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("jsonfile: decode %s: %w", s.path, err)
	}
	return records, nil
}

// Replace writes records to a temporary file in the same directory and
// renames it over the target. Readers see either the old catalog or the
// new one, never a truncated file.
func (s *Store) Replace(ctx context.Context, records []catalog.Record) error {
	if records == nil {
		records = []catalog.Record{}
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("jsonfile: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("jsonfile: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("jsonfile: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("jsonfile: rename: %w", err)
	}
	return nil
}
