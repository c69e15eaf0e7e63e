// Package file stores the identity document as a JSON file on local disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
)

func init() {
	database.RegisterBackend(config.BackendFile, func(_ context.Context, cfg *config.StorageConfig) (database.IdentityStore, error) {
		return New(cfg.Path)
	})
}

// Store is a file-backed IdentityStore. Writes go to a temporary file in the
// same directory which is then renamed over the target.
type Store struct {
	path string
}

// New creates a Store writing to path, creating the parent directory if needed.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &Store{path: path}, nil
}

// Name returns the backend name.
func (s *Store) Name() string {
	return config.BackendFile
}

// Load reads the identity document. A missing file is an empty store.
func (s *Store) Load(_ context.Context, size int) (*database.LoadResult, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &database.LoadResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return database.DecodeDocument(data, size), nil
}

// Save atomically replaces the identity document.
func (s *Store) Save(_ context.Context, identities []database.StoredIdentity) error {
	data, err := database.EncodeDocument(identities)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op; the store holds no open handles.
func (s *Store) Close() error {
	return nil
}
