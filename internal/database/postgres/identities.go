package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/descriptor"
	"github.com/pgvector/pgvector-go"
)

// IdentityStore keeps one row per identity in the identities table, scoped to a
// collection so several identity sets can share a database.
type IdentityStore struct {
	pool       *Pool
	collection string
}

// NewIdentityStore creates a new PostgreSQL identity store.
func NewIdentityStore(pool *Pool, collection string) *IdentityStore {
	return &IdentityStore{pool: pool, collection: collection}
}

// Name returns the backend name.
func (s *IdentityStore) Name() string {
	return config.BackendPostgres
}

// Load reads all identities of the collection in enrollment order.
// Rows whose embedding has the wrong dimension are skipped and reported.
func (s *IdentityStore) Load(ctx context.Context, size int) (*database.LoadResult, error) {
	query := `
		SELECT name, embedding, enrolled_at
		FROM identities
		WHERE collection = $1
		ORDER BY position
	`

	rows, err := s.pool.Query(ctx, query, s.collection)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	result := &database.LoadResult{}
	for i := 0; rows.Next(); i++ {
		var (
			name       string
			embedding  pgvector.Vector
			enrolledAt sql.NullTime
		)
		if err := rows.Scan(&name, &embedding, &enrolledAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}

		d := descriptor.Descriptor(embedding.Slice())
		if len(d) != size {
			result.Warnings = append(result.Warnings, &descriptor.CorruptRecordError{
				Index: i,
				Name:  name,
				Err:   fmt.Errorf("%w: got %d values, want %d", descriptor.ErrCorruptDescriptor, len(d), size),
			})
			continue
		}

		ident := database.StoredIdentity{Name: name, Descriptor: d}
		if enrolledAt.Valid {
			ident.EnrolledAt = enrolledAt.Time
		}
		result.Identities = append(result.Identities, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}

	return result, nil
}

// Save replaces the collection inside one transaction. An advisory lock keyed by
// the collection keeps concurrent saves from interleaving their rows; it does not
// merge them. Each save writes the caller's full set, so the last one wins and a
// collection must have a single owning process.
func (s *IdentityStore) Save(ctx context.Context, identities []database.StoredIdentity) error {
	for _, ident := range identities {
		if err := descriptor.Validate(ident.Descriptor, len(ident.Descriptor)); err != nil {
			return fmt.Errorf("identity %q: %w", ident.Name, err)
		}
	}

	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", s.collection); err != nil {
		return fmt.Errorf("lock collection: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM identities WHERE collection = $1", s.collection); err != nil {
		return fmt.Errorf("clear identities: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO identities (collection, position, name, embedding, enrolled_at)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, ident := range identities {
		var enrolledAt any
		if !ident.EnrolledAt.IsZero() {
			enrolledAt = ident.EnrolledAt.UTC().Truncate(time.Microsecond)
		}
		vec := pgvector.NewVector(ident.Descriptor)
		if _, err := stmt.ExecContext(ctx, s.collection, i, ident.Name, vec, enrolledAt); err != nil {
			return fmt.Errorf("insert identity %q: %w", ident.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit identities: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *IdentityStore) Close() error {
	return s.pool.Close()
}
