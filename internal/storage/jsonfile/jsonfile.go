package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	pkgerrors "hytun/pkg/errors"
)

// ErrNotExist is returned by Load when the named document has never been
// saved.
var ErrNotExist = errors.New("document does not exist")

// Store persists JSON documents as individual files in a directory. Saves
// write to a temp file and rename over the original so a crash mid-write
// never leaves a truncated document behind.
type Store struct {
	dir string
}

// New creates a document store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Load reads the named document into v.
func (s *Store) Load(name string, v any) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExist
		}
		return &pkgerrors.StoreError{Document: name, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &pkgerrors.StoreError{Document: name, Err: fmt.Errorf("failed to decode: %w", err)}
	}
	return nil
}

// Save replaces the named document with the serialization of v.
func (s *Store) Save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &pkgerrors.StoreError{Document: name, Err: fmt.Errorf("failed to encode: %w", err)}
	}

	path := s.path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return &pkgerrors.StoreError{Document: name, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &pkgerrors.StoreError{Document: name, Err: err}
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}
