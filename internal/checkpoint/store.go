// Package checkpoint records which pipeline stages have completed for each
// item.
//
// A Store holds one unordered marker set per item. Complete and Invalidate
// rewrite the whole set; no marker implies another, so callers cascade
// invalidation themselves using After and From.
package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"ribodb/internal/fileutil"
)

// StatusFile is the per-item marker file name.
const StatusFile = "status"

// Set is an unordered marker collection.
type Set map[Marker]struct{}

// Has reports whether m is in the set.
func (s Set) Has(m Marker) bool {
	_, ok := s[m]
	return ok
}

// Sorted returns the markers in stage order, unknown markers last in
// lexical order.
func (s Set) Sorted() []Marker {
	out := make([]Marker, 0, len(s))
	for _, m := range order {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	var extra []Marker
	for m := range s {
		if !Known(m) {
			extra = append(extra, m)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// Store persists marker sets keyed by item identifier.
type Store interface {
	Markers(item string) (Set, error)
	Complete(item string, marker Marker) error
	Invalidate(item string, markers ...Marker) error
	Has(item string, marker Marker) (bool, error)
}

// FileStore keeps each item's markers in <root>/<item>/status, one per line.
type FileStore struct {
	root string
	mu   sync.Mutex
}

// NewFileStore returns a store rooted at the output directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Path returns the status file location for item.
func (s *FileStore) Path(item string) string {
	return filepath.Join(s.root, item, StatusFile)
}

// Markers reads the item's set. A missing status file is an empty set.
func (s *FileStore) Markers(item string) (Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(item)
}

func (s *FileStore) Complete(item string, marker Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, err := s.read(item)
	if err != nil {
		return err
	}
	if set.Has(marker) {
		return nil
	}
	set[marker] = struct{}{}
	return s.write(item, set)
}

func (s *FileStore) Invalidate(item string, markers ...Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, err := s.read(item)
	if err != nil {
		return err
	}
	changed := false
	for _, m := range markers {
		if set.Has(m) {
			delete(set, m)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.write(item, set)
}

func (s *FileStore) Has(item string, marker Marker) (bool, error) {
	set, err := s.Markers(item)
	if err != nil {
		return false, err
	}
	return set.Has(marker), nil
}

func (s *FileStore) read(item string) (Set, error) {
	set := Set{}
	file, err := os.Open(s.Path(item))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return set, nil
		}
		return nil, fmt.Errorf("open checkpoint for %s: %w", item, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		set[Marker(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read checkpoint for %s: %w", item, err)
	}
	return set, nil
}

func (s *FileStore) write(item string, set Set) error {
	var b strings.Builder
	for _, m := range set.Sorted() {
		b.WriteString(string(m))
		b.WriteByte('\n')
	}
	if err := fileutil.WriteAtomic(s.Path(item), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write checkpoint for %s: %w", item, err)
	}
	return nil
}

// MemoryStore is an in-process Store for tests and dry runs.
type MemoryStore struct {
	mu   sync.Mutex
	sets map[string]Set
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: map[string]Set{}}
}

func (s *MemoryStore) Markers(item string) (Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Set{}
	for m := range s.sets[item] {
		out[m] = struct{}{}
	}
	return out, nil
}

func (s *MemoryStore) Complete(item string, marker Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[item]
	if !ok {
		set = Set{}
		s.sets[item] = set
	}
	set[marker] = struct{}{}
	return nil
}

func (s *MemoryStore) Invalidate(item string, markers ...Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range markers {
		delete(s.sets[item], m)
	}
	return nil
}

func (s *MemoryStore) Has(item string, marker Marker) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets[item].Has(marker), nil
}
