package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OverrideStore persists the highest-precedence layer as a nested YAML
// document. Writes go through a temp file in the same directory followed by a
// rename, so a failed write never corrupts the previous document.
type OverrideStore struct {
	path     string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

// NewOverrideStore constructs a store for the document at path.
func NewOverrideStore(path string) *OverrideStore {
	return &OverrideStore{
		path:     path,
		dirPerm:  0o700,
		filePerm: 0o600,
	}
}

// Path returns the location of the override document.
func (s *OverrideStore) Path() string { return s.path }

// Load reads the nested override document. A missing file is an empty
// document, not an error.
func (s *OverrideStore) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read overrides %q: %w", s.path, err)
	}

	var doc map[string]any
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedConfig, s.path, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// Layer flattens the override document into resolvable paths.
func (s *OverrideStore) Layer() (Layer, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	flat, err := flattenTree(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedConfig, s.path, err)
	}

	layer := make(Layer, len(flat))
	for path, value := range flat {
		layer[path] = Value{Value: value, Source: SourceOverride}
	}
	return layer, nil
}

// Set stores one coerced value under a validated path and persists the
// rebuilt document atomically.
func (s *OverrideStore) Set(path string, value any) error {
	if err := ValidatePath(path); err != nil {
		return err
	}

	doc, err := s.Load()
	if err != nil {
		return err
	}
	insertPath(doc, path, value)
	return s.write(doc)
}

func (s *OverrideStore) write(doc map[string]any) error {
	dir := filepath.Dir(s.path)
	if _, err := os.Stat(dir); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		if err := os.MkdirAll(dir, s.dirPerm); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "overrides-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(s.filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	enc := yaml.NewEncoder(tmp)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		enc.Close()
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := os.Chmod(s.path, s.filePerm); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
