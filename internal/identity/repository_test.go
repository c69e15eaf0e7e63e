package identity

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/database/file"
	"github.com/kozaktomas/face-auth/internal/database/mock"
	"github.com/kozaktomas/face-auth/internal/descriptor"
)

const testSize = 4

func vec(v ...float32) descriptor.Descriptor {
	d := make(descriptor.Descriptor, testSize)
	copy(d, v)
	return d
}

func openMock(t *testing.T, store *mock.MockIdentityStore) *Repository {
	t.Helper()
	repo, _, err := Open(context.Background(), store, Options{DescriptorSize: testSize})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return repo
}

func names(identities []Identity) []string {
	out := make([]string, len(identities))
	for i, ident := range identities {
		out[i] = ident.Name
	}
	return out
}

func TestOpen_EmptyStore(t *testing.T) {
	repo := openMock(t, mock.NewMockIdentityStore())
	if repo.Len() != 0 {
		t.Errorf("expected empty repository, got %d", repo.Len())
	}
	if repo.Revision() != 0 {
		t.Errorf("expected revision 0, got %d", repo.Revision())
	}
}

func TestOpen_ReportsWarningsAndSkipsDuplicates(t *testing.T) {
	store := mock.NewMockIdentityStore()
	store.Seed([]database.StoredIdentity{
		{Name: "alice", Descriptor: vec(1)},
		{Name: "broken", Descriptor: descriptor.Descriptor{1, 2}},
		{Name: "bob", Descriptor: vec(2)},
		{Name: "alice", Descriptor: vec(3)},
	})

	repo, report, err := Open(context.Background(), store, Options{DescriptorSize: testSize})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if report.Loaded != 2 {
		t.Errorf("expected 2 loaded, got %d", report.Loaded)
	}
	if len(report.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", report.Warnings)
	}
	if !errors.Is(report.Warnings[0], descriptor.ErrCorruptDescriptor) {
		t.Errorf("expected corrupt descriptor warning, got %v", report.Warnings[0])
	}
	if !errors.Is(report.Warnings[1], ErrNameExists) {
		t.Errorf("expected duplicate warning, got %v", report.Warnings[1])
	}

	alice, ok := repo.Get("alice")
	if !ok || alice.Descriptor[0] != 1 {
		t.Errorf("expected first alice to win, got %+v", alice)
	}
}

func TestOpen_NormalizesStoredNames(t *testing.T) {
	store := mock.NewMockIdentityStore()
	store.Seed([]database.StoredIdentity{
		{Name: "Bob ", Descriptor: vec(1)},
		{Name: " Zo\u0065\u0308", Descriptor: vec(2)},
		{Name: "   ", Descriptor: vec(3)},
		{Name: "Bob", Descriptor: vec(4)},
		{Name: "Alice", Descriptor: vec(5)},
	})

	repo, report, err := Open(context.Background(), store, Options{DescriptorSize: testSize})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if got := names(repo.List()); fmt.Sprint(got) != fmt.Sprint([]string{"Bob", "Zo\u00eb", "Alice"}) {
		t.Errorf("unexpected names %q", got)
	}
	if len(report.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", report.Warnings)
	}
	var corrupt *descriptor.CorruptRecordError
	if !errors.As(report.Warnings[0], &corrupt) || !errors.Is(corrupt, ErrInvalidName) {
		t.Errorf("expected blank name to be reported as a corrupt record, got %v", report.Warnings[0])
	}
	if !errors.Is(report.Warnings[1], ErrNameExists) {
		t.Errorf("expected duplicate warning for Bob, got %v", report.Warnings[1])
	}

	if err := repo.Add(context.Background(), Identity{Name: "Bob", Descriptor: vec(6)}); !errors.Is(err, ErrNameExists) {
		t.Errorf("expected ErrNameExists for loaded Bob, got %v", err)
	}
	if err := repo.Remove(context.Background(), "Bob "); err != nil {
		t.Errorf("Remove(Bob ): %v", err)
	}
	if err := repo.Remove(context.Background(), "Zo\u00eb"); err != nil {
		t.Errorf("Remove(Zo\u00eb): %v", err)
	}
	if got := names(repo.List()); len(got) != 1 || got[0] != "Alice" {
		t.Errorf("expected only Alice left, got %q", got)
	}
	if got := names(identitiesOf(store.Stored())); len(got) != 1 || got[0] != "Alice" {
		t.Errorf("expected only Alice persisted, got %q", got)
	}
}

func identitiesOf(stored []database.StoredIdentity) []Identity {
	out := make([]Identity, len(stored))
	for i, s := range stored {
		out[i] = Identity(s)
	}
	return out
}

func TestOpen_LoadError(t *testing.T) {
	store := mock.NewMockIdentityStore()
	store.LoadError = errors.New("disk on fire")

	_, _, err := Open(context.Background(), store, Options{DescriptorSize: testSize})
	if !errors.Is(err, ErrStorageIO) {
		t.Errorf("expected ErrStorageIO, got %v", err)
	}
}

func TestAdd(t *testing.T) {
	store := mock.NewMockIdentityStore()
	repo := openMock(t, store)
	ctx := context.Background()

	if err := repo.Add(ctx, Identity{Name: "alice", Descriptor: vec(1)}); err != nil {
		t.Fatalf("Add alice: %v", err)
	}
	if err := repo.Add(ctx, Identity{Name: "bob", Descriptor: vec(2)}); err != nil {
		t.Fatalf("Add bob: %v", err)
	}

	got := names(repo.List())
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("expected [alice bob], got %v", got)
	}
	if repo.Revision() != 2 {
		t.Errorf("expected revision 2, got %d", repo.Revision())
	}
	if stored := store.Stored(); len(stored) != 2 {
		t.Errorf("expected 2 persisted identities, got %d", len(stored))
	}
	if alice, _ := repo.Get("alice"); alice.EnrolledAt.IsZero() {
		t.Error("expected EnrolledAt to be set")
	}
}

func TestAdd_Errors(t *testing.T) {
	tests := []struct {
		name    string
		ident   Identity
		wantErr error
	}{
		{"duplicate", Identity{Name: "alice", Descriptor: vec(9)}, ErrNameExists},
		{"duplicate after trim", Identity{Name: "  alice ", Descriptor: vec(9)}, ErrNameExists},
		{"empty name", Identity{Name: "", Descriptor: vec(9)}, ErrInvalidName},
		{"whitespace name", Identity{Name: " \t", Descriptor: vec(9)}, ErrInvalidName},
		{"no face", Identity{Name: "carol"}, descriptor.ErrNoFace},
		{"wrong size", Identity{Name: "carol", Descriptor: descriptor.Descriptor{1}}, descriptor.ErrInvalidDescriptor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mock.NewMockIdentityStore()
			repo := openMock(t, store)
			if err := repo.Add(context.Background(), Identity{Name: "alice", Descriptor: vec(1)}); err != nil {
				t.Fatalf("Add: %v", err)
			}

			err := repo.Add(context.Background(), tt.ident)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if repo.Len() != 1 || store.Saves() != 1 {
				t.Errorf("expected state unchanged, len=%d saves=%d", repo.Len(), store.Saves())
			}
		})
	}
}

func TestAdd_NormalizesUnicode(t *testing.T) {
	repo := openMock(t, mock.NewMockIdentityStore())
	ctx := context.Background()

	// "Zoë" precomposed and decomposed.
	if err := repo.Add(ctx, Identity{Name: "Zo\u00eb", Descriptor: vec(1)}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := repo.Add(ctx, Identity{Name: "Zoe\u0308", Descriptor: vec(2)})
	if !errors.Is(err, ErrNameExists) {
		t.Errorf("expected ErrNameExists for decomposed form, got %v", err)
	}
	if !repo.Contains("Zoe\u0308") {
		t.Error("expected Contains to match the decomposed form")
	}
	// Comparison is case-sensitive.
	if err := repo.Add(ctx, Identity{Name: "zo\u00eb", Descriptor: vec(3)}); err != nil {
		t.Errorf("expected lowercase name to be distinct, got %v", err)
	}
}

func TestAdd_CopiesDescriptor(t *testing.T) {
	repo := openMock(t, mock.NewMockIdentityStore())
	d := vec(1, 2, 3, 4)
	if err := repo.Add(context.Background(), Identity{Name: "alice", Descriptor: d}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	d[0] = 42

	alice, _ := repo.Get("alice")
	if alice.Descriptor[0] != 1 {
		t.Errorf("stored descriptor changed with caller's slice: %v", alice.Descriptor)
	}
	alice.Descriptor[1] = 42
	again, _ := repo.Get("alice")
	if again.Descriptor[1] != 2 {
		t.Errorf("stored descriptor changed through Get result: %v", again.Descriptor)
	}
}

func TestRemove(t *testing.T) {
	store := mock.NewMockIdentityStore()
	repo := openMock(t, store)
	ctx := context.Background()
	for i, name := range []string{"alice", "bob", "carol"} {
		if err := repo.Add(ctx, Identity{Name: name, Descriptor: vec(float32(i))}); err != nil {
			t.Fatalf("Add %s: %v", name, err)
		}
	}

	if err := repo.Remove(ctx, "bob"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got := names(repo.List())
	if len(got) != 2 || got[0] != "alice" || got[1] != "carol" {
		t.Errorf("expected [alice carol], got %v", got)
	}
	if bob, ok := repo.Get("bob"); ok {
		t.Errorf("expected bob to be gone, got %+v", bob)
	}
	carol, _ := repo.Get("carol")
	if carol.Descriptor[0] != 2 {
		t.Errorf("index not rebuilt after remove, got %+v", carol)
	}

	if err := repo.Remove(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if len(store.Stored()) != 2 {
		t.Errorf("expected 2 persisted identities, got %d", len(store.Stored()))
	}
}

func TestReset(t *testing.T) {
	store := mock.NewMockIdentityStore()
	repo := openMock(t, store)
	ctx := context.Background()
	if err := repo.Add(ctx, Identity{Name: "alice", Descriptor: vec(1)}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := repo.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if repo.Len() != 0 || len(store.Stored()) != 0 {
		t.Errorf("expected empty repository and store")
	}
	// Reset on an empty set is fine.
	if err := repo.Reset(ctx); err != nil {
		t.Errorf("second Reset: %v", err)
	}
	// The name is free again.
	if err := repo.Add(ctx, Identity{Name: "alice", Descriptor: vec(2)}); err != nil {
		t.Errorf("re-adding after reset: %v", err)
	}
}

func TestMutations_RollBackOnSaveFailure(t *testing.T) {
	store := mock.NewMockIdentityStore()
	repo := openMock(t, store)
	ctx := context.Background()
	if err := repo.Add(ctx, Identity{Name: "alice", Descriptor: vec(1)}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	store.SaveError = errors.New("read-only file system")

	ops := map[string]func() error{
		"add":    func() error { return repo.Add(ctx, Identity{Name: "bob", Descriptor: vec(2)}) },
		"remove": func() error { return repo.Remove(ctx, "alice") },
		"reset":  func() error { return repo.Reset(ctx) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(); !errors.Is(err, ErrStorageIO) {
				t.Errorf("expected ErrStorageIO, got %v", err)
			}
			got := names(repo.List())
			if len(got) != 1 || got[0] != "alice" {
				t.Errorf("expected [alice] after failed %s, got %v", name, got)
			}
			if repo.Revision() != 1 {
				t.Errorf("expected revision 1, got %d", repo.Revision())
			}
		})
	}
}

func TestAdd_ConcurrentSameName(t *testing.T) {
	store := mock.NewMockIdentityStore()
	repo := openMock(t, store)
	ctx := context.Background()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Add(ctx, Identity{Name: "alice", Descriptor: vec(float32(i))})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrNameExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Errorf("expected 1 success and %d conflicts, got %d and %d", workers-1, successes, conflicts)
	}
	if repo.Len() != 1 || len(store.Stored()) != 1 {
		t.Errorf("expected exactly one alice, len=%d stored=%d", repo.Len(), len(store.Stored()))
	}
}

func TestAdd_ConcurrentDistinctNames(t *testing.T) {
	repo := openMock(t, mock.NewMockIdentityStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := repo.Add(ctx, Identity{Name: fmt.Sprintf("user-%02d", i), Descriptor: vec(float32(i))}); err != nil {
				t.Errorf("Add: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if repo.Len() != 20 || repo.Revision() != 20 {
		t.Errorf("expected 20 identities and revision 20, got %d and %d", repo.Len(), repo.Revision())
	}
}

func TestRepository_DurableAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	ctx := context.Background()
	enrolled := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	store, err := file.New(path)
	if err != nil {
		t.Fatalf("file.New: %v", err)
	}
	repo, _, err := Open(ctx, store, Options{DescriptorSize: testSize, Now: func() time.Time { return enrolled }})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	alice := vec(0.1, -0.2, 0.30000001, 1e-7)
	if err := repo.Add(ctx, Identity{Name: "alice", Descriptor: alice}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := repo.Add(ctx, Identity{Name: "bob", Descriptor: vec(1)}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := repo.Remove(ctx, "bob"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	store2, err := file.New(path)
	if err != nil {
		t.Fatalf("file.New: %v", err)
	}
	reopened, report, err := Open(ctx, store2, Options{DescriptorSize: testSize})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if report.Loaded != 1 || len(report.Warnings) != 0 {
		t.Errorf("unexpected report %+v", report)
	}
	got, ok := reopened.Get("alice")
	if !ok {
		t.Fatal("alice not reloaded")
	}
	for i := range alice {
		if got.Descriptor[i] != alice[i] {
			t.Errorf("descriptor[%d] = %v, want %v", i, got.Descriptor[i], alice[i])
		}
	}
	if !got.EnrolledAt.Equal(enrolled) {
		t.Errorf("EnrolledAt = %v, want %v", got.EnrolledAt, enrolled)
	}
}
