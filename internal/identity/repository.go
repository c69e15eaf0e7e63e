package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/descriptor"
	"github.com/kozaktomas/face-auth/internal/logger"
)

// Options configures a Repository.
type Options struct {
	// DescriptorSize is the fixed descriptor length; defaults to descriptor.DefaultSize.
	DescriptorSize int
	Logger         *logger.Logger
	// Now returns the enrollment timestamp; defaults to time.Now.
	Now func() time.Time
}

// LoadReport describes what Open found in durable storage.
type LoadReport struct {
	Loaded   int
	Warnings []error
}

// Repository is the ordered, uniquely named set of enrolled identities.
//
// Every mutation holds the writer lock for check, save and publish, so two
// concurrent Adds of the same name cannot both succeed and readers never see a
// state that is not yet durable.
type Repository struct {
	mu         sync.RWMutex
	store      database.IdentityStore
	identities []Identity
	byName     map[string]int
	revision   uint64
	size       int
	log        *logger.Logger
	now        func() time.Time
}

// Open hydrates a Repository from store. Corrupt records or an unreadable
// document are reported in the LoadReport and logged; they do not fail start-up.
// A read error from the store does.
func Open(ctx context.Context, store database.IdentityStore, opts Options) (*Repository, *LoadReport, error) {
	r := &Repository{
		store:  store,
		byName: make(map[string]int),
		size:   opts.DescriptorSize,
		log:    opts.Logger,
		now:    opts.Now,
	}
	if r.size <= 0 {
		r.size = descriptor.DefaultSize
	}
	if r.log == nil {
		r.log = logger.Nop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.log = r.log.With("component", "identity", "backend", store.Name())

	result, err := store.Load(ctx, r.size)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStorageIO, err)
	}

	report := &LoadReport{Warnings: result.Warnings}
	for i, stored := range result.Identities {
		// Stored names may predate normalisation (browser exports are not trimmed).
		name := NormalizeName(stored.Name)
		if name == "" {
			report.Warnings = append(report.Warnings, &descriptor.CorruptRecordError{Index: i, Name: stored.Name, Err: ErrInvalidName})
			continue
		}
		if _, dup := r.byName[name]; dup {
			report.Warnings = append(report.Warnings, fmt.Errorf("duplicate stored identity %q skipped: %w", name, ErrNameExists))
			continue
		}
		stored.Name = name
		r.byName[name] = len(r.identities)
		r.identities = append(r.identities, Identity(stored))
	}
	report.Loaded = len(r.identities)

	for _, w := range report.Warnings {
		r.log.Warn("identity storage warning", "error", w)
	}
	r.log.Info("identities loaded", "count", report.Loaded, "warnings", len(report.Warnings))

	return r, report, nil
}

// DescriptorSize returns the descriptor length accepted by the repository.
func (r *Repository) DescriptorSize() int {
	return r.size
}

// Add enrolls ident at the end of the iteration order and persists the result.
// The name is normalised with NormalizeName; EnrolledAt is set if zero.
func (r *Repository) Add(ctx context.Context, ident Identity) error {
	ident.Name = NormalizeName(ident.Name)
	if ident.Name == "" {
		return ErrInvalidName
	}
	if err := descriptor.Validate(ident.Descriptor, r.size); err != nil {
		return err
	}
	ident.Descriptor = descriptor.Clone(ident.Descriptor)
	if ident.EnrolledAt.IsZero() {
		ident.EnrolledAt = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[ident.Name]; ok {
		return fmt.Errorf("%w: %q", ErrNameExists, ident.Name)
	}

	next := make([]Identity, len(r.identities), len(r.identities)+1)
	copy(next, r.identities)
	next = append(next, ident)

	if err := r.commit(ctx, next); err != nil {
		return err
	}
	r.log.Info("identity enrolled", "name", ident.Name, "count", len(next))
	return nil
}

// Remove deletes the identity called name and persists the result.
func (r *Repository) Remove(ctx context.Context, name string) error {
	name = NormalizeName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	next := make([]Identity, 0, len(r.identities)-1)
	next = append(next, r.identities[:idx]...)
	next = append(next, r.identities[idx+1:]...)

	if err := r.commit(ctx, next); err != nil {
		return err
	}
	r.log.Info("identity removed", "name", name, "count", len(next))
	return nil
}

// Reset removes every identity and persists the empty set.
func (r *Repository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.commit(ctx, nil); err != nil {
		return err
	}
	r.log.Info("identities reset")
	return nil
}

// commit persists next and, only if that succeeds, publishes it.
// Caller must hold r.mu for writing.
func (r *Repository) commit(ctx context.Context, next []Identity) error {
	stored := make([]database.StoredIdentity, len(next))
	for i, ident := range next {
		stored[i] = database.StoredIdentity(ident)
	}

	if err := r.store.Save(ctx, stored); err != nil {
		r.log.Error("saving identities failed", "error", err)
		if errors.Is(err, descriptor.ErrInvalidDescriptor) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}

	byName := make(map[string]int, len(next))
	for i, ident := range next {
		byName[ident.Name] = i
	}
	r.identities = next
	r.byName = byName
	r.revision++
	return nil
}

// List returns a snapshot of all identities in enrollment order.
func (r *Repository) List() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Identity, len(r.identities))
	for i, ident := range r.identities {
		out[i] = ident.clone()
	}
	return out
}

// Snapshot returns the identities together with the revision they belong to.
func (r *Repository) Snapshot() ([]Identity, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Identity, len(r.identities))
	for i, ident := range r.identities {
		out[i] = ident.clone()
	}
	return out, r.revision
}

// Get returns the identity called name.
func (r *Repository) Get(name string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byName[NormalizeName(name)]
	if !ok {
		return Identity{}, false
	}
	return r.identities[idx].clone(), true
}

// Contains reports whether an identity called name is enrolled.
func (r *Repository) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[NormalizeName(name)]
	return ok
}

// Len returns the number of enrolled identities.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities)
}

// Revision increases by one with every committed mutation.
func (r *Repository) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}

// Close closes the underlying store.
func (r *Repository) Close() error {
	return r.store.Close()
}
