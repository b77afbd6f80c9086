// Package configstore persists the user-declared fields of entries marked
// save_for_next_run, so they can be re-added on the next supervisor start.
// Only fields the operator supplied are stored; runtime state (status, pid,
// run_count, timestamps) never crosses into the file.
package configstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/loykin/exeio/internal/entry"
)

// Store is a JSON file holding one entry.Spec per id, written atomically.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open loads an existing store file, or starts a fresh empty one if it
// does not yet exist. A file containing a duplicate id is rejected: it
// could only happen from hand-editing or a bug, and silently picking one
// copy would hide the problem.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	specs, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	if err := rejectDuplicates(specs); err != nil {
		return nil, err
	}
	return s, nil
}

func rejectDuplicates(specs []entry.Spec) error {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if seen[s.ID] {
			return fmt.Errorf("configstore: duplicate id %q in persisted config", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

func (s *Store) readLocked() ([]entry.Spec, error) {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("configstore: read %s: %w", s.path, err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	var specs []entry.Spec
	if err := json.Unmarshal(b, &specs); err != nil {
		return nil, fmt.Errorf("configstore: parse %s: %w", s.path, err)
	}
	return specs, nil
}

// List returns every persisted spec, ordered by id.
func (s *Store) List() ([]entry.Spec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	specs, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs, nil
}

// Upsert writes spec into the store, replacing any existing entry with the
// same id, and persists the result atomically.
func (s *Store) Upsert(spec entry.Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	specs, err := s.readLocked()
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range specs {
		if existing.ID == spec.ID {
			specs[i] = spec
			replaced = true
			break
		}
	}
	if !replaced {
		specs = append(specs, spec)
	}
	return s.writeLocked(specs)
}

// Delete removes id from the store, if present. Deleting an id that isn't
// there is not an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	specs, err := s.readLocked()
	if err != nil {
		return err
	}
	out := specs[:0]
	for _, existing := range specs {
		if existing.ID != id {
			out = append(out, existing)
		}
	}
	return s.writeLocked(out)
}

// writeLocked serializes specs to a temp file in the same directory, fsyncs
// it, renames it over the real path, then fsyncs the containing directory
// so the rename itself survives a crash - the rename is atomic on the same
// filesystem, so a crash mid-write never leaves a truncated file in its
// place.
func (s *Store) writeLocked(specs []entry.Spec) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("configstore: mkdir: %w", err)
	}

	b, err := json.MarshalIndent(specs, "", "  ")
	if err != nil {
		return fmt.Errorf("configstore: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".exeio-config-*.tmp")
	if err != nil {
		return fmt.Errorf("configstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("configstore: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("configstore: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("configstore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("configstore: rename into place: %w", err)
	}

	dir, err := os.Open(filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("configstore: open dir for sync: %w", err)
	}
	defer func() { _ = dir.Close() }()
	if err := dir.Sync(); err != nil {
		return fmt.Errorf("configstore: sync dir: %w", err)
	}
	return nil
}
