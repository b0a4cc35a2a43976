package harmonics

import (
	"fmt"
	"io"
	"sync"

	"github.com/banshee-data/spur.analyzer/internal/fsutil"
	"github.com/banshee-data/spur.analyzer/internal/monitoring"
)

// Store owns the active table and the name of where it came from. Loads
// either replace both at once or leave them untouched.
type Store struct {
	mu     sync.RWMutex
	fs     fsutil.FileSystem
	table  *Table
	source string
}

// NewStore returns a store holding the built-in default table.
func NewStore(fsys fsutil.FileSystem) *Store {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Store{
		fs:     fsys,
		table:  Default(),
		source: DefaultSource,
	}
}

// Table returns the active table.
func (s *Store) Table() *Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Source returns the label of the active table.
func (s *Store) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Snapshot returns the active table and its source as one consistent pair.
func (s *Store) Snapshot() (*Table, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table, s.source
}

// Replace installs t as the active table.
func (s *Store) Replace(t *Table, source string) {
	if t == nil {
		return
	}
	s.mu.Lock()
	s.table = t
	s.source = source
	s.mu.Unlock()
	monitoring.Logf("harmonics table replaced: source=%q size=%dx%d", source, t.Size(), t.Size())
}

// Reset restores the built-in default table.
func (s *Store) Reset() {
	s.Replace(Default(), DefaultSource)
}

// LoadFile parses the mixer file at path and makes it active. On error the
// previous table stays active and a warning naming the file is logged.
func (s *Store) LoadFile(path string) (*Table, error) {
	t, err := LoadFile(s.fs, path)
	if err != nil {
		monitoring.Warnf("file not compatible with spur analyzer: %v", err)
		return nil, err
	}
	s.Replace(t, path)
	return t, nil
}

// LoadReader parses a table from r, labelled name, and makes it active.
// It has the same all-or-nothing behaviour as LoadFile.
func (s *Store) LoadReader(name string, r io.Reader) (*Table, error) {
	t, err := Parse(r)
	if err != nil {
		err = &FileError{Path: name, Err: err}
		monitoring.Warnf("file not compatible with spur analyzer: %v", err)
		return nil, err
	}
	s.Replace(t, name)
	return t, nil
}

// String describes the active table for logs.
func (s *Store) String() string {
	t, src := s.Snapshot()
	return fmt.Sprintf("%s (%dx%d)", src, t.Size(), t.Size())
}
