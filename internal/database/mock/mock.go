// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/descriptor"
)

// MockIdentityStore is an in-memory implementation of database.IdentityStore
type MockIdentityStore struct {
	mu         sync.Mutex
	identities []database.StoredIdentity
	warnings   []error
	saves      int

	// Error injection
	LoadError  error
	SaveError  error
	CloseError error
}

// NewMockIdentityStore creates a new mock identity store
func NewMockIdentityStore() *MockIdentityStore {
	return &MockIdentityStore{}
}

// Seed sets the stored identities and load warnings returned by Load
func (m *MockIdentityStore) Seed(identities []database.StoredIdentity, warnings ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities = copyIdentities(identities)
	m.warnings = warnings
}

// Stored returns a copy of the last saved identities
func (m *MockIdentityStore) Stored() []database.StoredIdentity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyIdentities(m.identities)
}

// Saves returns how many times Save succeeded
func (m *MockIdentityStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Name returns the backend name
func (m *MockIdentityStore) Name() string {
	return "mock"
}

// Load returns the seeded identities; records of the wrong size are skipped like a real backend
func (m *MockIdentityStore) Load(ctx context.Context, size int) (*database.LoadResult, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := &database.LoadResult{Warnings: append([]error(nil), m.warnings...)}
	for i, ident := range m.identities {
		if len(ident.Descriptor) != size {
			result.Warnings = append(result.Warnings, &descriptor.CorruptRecordError{
				Index: i, Name: ident.Name, Err: descriptor.ErrCorruptDescriptor,
			})
			continue
		}
		result.Identities = append(result.Identities, ident)
	}
	result.Identities = copyIdentities(result.Identities)
	return result, nil
}

// Save replaces the stored identities
func (m *MockIdentityStore) Save(ctx context.Context, identities []database.StoredIdentity) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities = copyIdentities(identities)
	m.saves++
	return nil
}

// Close returns CloseError
func (m *MockIdentityStore) Close() error {
	return m.CloseError
}

func copyIdentities(in []database.StoredIdentity) []database.StoredIdentity {
	if in == nil {
		return nil
	}
	out := make([]database.StoredIdentity, len(in))
	for i, ident := range in {
		out[i] = ident
		out[i].Descriptor = descriptor.Clone(ident.Descriptor)
	}
	return out
}
