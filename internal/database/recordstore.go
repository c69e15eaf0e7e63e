package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordQueries holds the dialect specific statements of a RecordStore.
// Load takes the record key, Save takes key, payload and update time.
type RecordQueries struct {
	Load string
	Save string
}

// RecordStore keeps the whole identity document in a single named row of a SQL
// table. One upsert statement replaces it, so a save is atomic.
type RecordStore struct {
	name    string
	db      *sql.DB
	key     string
	queries RecordQueries
}

// NewRecordStore creates a RecordStore. The caller owns schema creation;
// Close closes db.
func NewRecordStore(name string, db *sql.DB, key string, queries RecordQueries) *RecordStore {
	return &RecordStore{name: name, db: db, key: key, queries: queries}
}

// Name returns the backend name.
func (s *RecordStore) Name() string {
	return s.name
}

// Load reads the named record.
func (s *RecordStore) Load(ctx context.Context, size int) (*LoadResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.queries.Load, s.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return &LoadResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load record %q: %w", s.key, err)
	}
	return DecodeDocument([]byte(payload), size), nil
}

// Save overwrites the named record.
func (s *RecordStore) Save(ctx context.Context, identities []StoredIdentity) error {
	data, err := EncodeDocument(identities)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.queries.Save, s.key, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("save record %q: %w", s.key, err)
	}
	return nil
}

// Close closes the database handle.
func (s *RecordStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing %s database: %w", s.name, err)
	}
	return nil
}
