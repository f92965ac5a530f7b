// Package store provides a small family of generic typed file stores with
// an optional atomic write mode: Save writes to a temp file in the same
// directory and renames it into place, so a reader never observes a
// partially written file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// JSONStore provides generic JSON file I/O with an optional atomic-write mode.
type JSONStore[T any] struct {
	path         string
	allowMissing bool
	atomic       bool
}

// NewJSONStore creates a JSON-backed store at path. When allowMissing is
// true, Load returns the zero value instead of an error if the file does
// not exist. When atomic is true, Save writes via temp-file-then-rename.
func NewJSONStore[T any](path string, allowMissing, atomic bool) *JSONStore[T] {
	return &JSONStore[T]{path: path, allowMissing: allowMissing, atomic: atomic}
}

// Path returns the store's backing file path.
func (s *JSONStore[T]) Path() string { return s.path }

// Load reads and unmarshals the JSON file into type T.
func (s *JSONStore[T]) Load() (T, error) {
	var result T
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && s.allowMissing {
			return result, nil
		}
		return result, err
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("invalid %s: %w", filepath.Base(s.path), err)
	}
	return result, nil
}

// Save marshals data as pretty-printed, newline-terminated JSON and writes
// it to the store's path, atomically when the store was constructed with
// atomic=true.
func (s *JSONStore[T]) Save(data T) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(s.path), err)
	}
	encoded = append(encoded, '\n')
	if s.atomic {
		return writeAtomic(s.path, encoded, 0o644)
	}
	return os.WriteFile(s.path, encoded, 0o644)
}

// YAMLStore provides generic YAML file I/O, used for project configuration
// rather than the lockfile.
type YAMLStore[T any] struct {
	path         string
	allowMissing bool
	atomic       bool
}

// NewYAMLStore creates a YAML-backed store at path.
func NewYAMLStore[T any](path string, allowMissing, atomic bool) *YAMLStore[T] {
	return &YAMLStore[T]{path: path, allowMissing: allowMissing, atomic: atomic}
}

// Path returns the store's backing file path.
func (s *YAMLStore[T]) Path() string { return s.path }

// Load reads and unmarshals the YAML file into type T.
func (s *YAMLStore[T]) Load() (T, error) {
	var result T
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && s.allowMissing {
			return result, nil
		}
		return result, err
	}
	if err := yaml.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("invalid %s: %w", filepath.Base(s.path), err)
	}
	return result, nil
}

// Save marshals and writes data, atomically when the store was constructed
// with atomic=true.
func (s *YAMLStore[T]) Save(data T) error {
	encoded, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(s.path), err)
	}
	if s.atomic {
		return writeAtomic(s.path, encoded, 0o644)
	}
	return os.WriteFile(s.path, encoded, 0o644)
}

// writeAtomic writes data to a temp file in path's directory, then renames
// it over path. Renaming within the same directory is atomic on every
// platform this project targets, and guarantees a concurrent reader sees
// either the old file or the new one, never a torn write.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	return nil
}
