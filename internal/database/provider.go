package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-auth/internal/config"
)

// Opener creates an IdentityStore from the storage configuration.
type Opener func(ctx context.Context, cfg *config.StorageConfig) (IdentityStore, error)

var (
	backends   = map[string]Opener{}
	backendsMu sync.RWMutex
)

// RegisterBackend registers a storage backend under name.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(name string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = open
}

// Backends returns the names of all registered backends, sorted.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open returns the IdentityStore for the configured backend.
func Open(ctx context.Context, cfg *config.StorageConfig) (IdentityStore, error) {
	backendsMu.RLock()
	open, ok := backends[cfg.Backend]
	backendsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("storage backend %q not registered (available: %v)", cfg.Backend, Backends())
	}

	store, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Backend, err)
	}
	return store, nil
}
