package database

import (
	"context"
)

// IdentityStore persists the ordered identity set as one unit.
type IdentityStore interface {
	// Name returns the backend name for logging
	Name() string
	// Load reads the stored identities. A store that was never written yields an
	// empty result, not an error. Records whose descriptor is not exactly size
	// long are skipped and reported in LoadResult.Warnings.
	Load(ctx context.Context, size int) (*LoadResult, error)
	// Save replaces the stored identities. Readers never observe a partial write.
	Save(ctx context.Context, identities []StoredIdentity) error
	// Close releases the underlying resources
	Close() error
}
