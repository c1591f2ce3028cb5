// Package storage saves downloaded reports to the local filesystem.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SavedFile describes a file written by LocalStore.
type SavedFile struct {
	Name    string
	Path    string
	Size    int64
	SavedAt time.Time
}

// LocalStore writes files into one directory. It implements store.Saver.
type LocalStore struct {
	mu    sync.RWMutex
	dir   string
	saved []SavedFile
}

// NewLocalStore creates a LocalStore, creating dir if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the target directory.
func (s *LocalStore) Dir() string { return s.dir }

// Save writes data to dir/name, replacing any existing file. The file is
// written under a temporary name first so a failed write never leaves a
// truncated report behind.
func (s *LocalStore) Save(name string, data []byte) error {
	if name == "" || filepath.Base(name) != name {
		return fmt.Errorf("invalid file name %q", name)
	}
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, SavedFile{Name: name, Path: path, Size: int64(len(data)), SavedAt: time.Now()})
	return nil
}

// Last returns the most recently saved file.
func (s *LocalStore) Last() (SavedFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.saved) == 0 {
		return SavedFile{}, false
	}
	return s.saved[len(s.saved)-1], true
}
