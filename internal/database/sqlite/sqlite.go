// Package sqlite stores the identity document in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
	_ "modernc.org/sqlite"
)

func init() {
	database.RegisterBackend(config.BackendSQLite, func(ctx context.Context, cfg *config.StorageConfig) (database.IdentityStore, error) {
		return Open(ctx, cfg.Path, cfg.RecordKey)
	})
}

const schema = `
	CREATE TABLE IF NOT EXISTS records (
		key        TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)
`

var queries = database.RecordQueries{
	Load: `SELECT payload FROM records WHERE key = ?`,
	Save: `
		INSERT INTO records (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`,
}

// Open opens (creating if needed) the SQLite database at path and returns a
// store keeping the identity document under recordKey.
func Open(ctx context.Context, path, recordKey string) (*database.RecordStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating sqlite directory: %w", err)
	}

	dsn := "file:" + path + "?" + url.Values{
		"_pragma": []string{"busy_timeout(5000)", "journal_mode(WAL)"},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}

	return database.NewRecordStore(config.BackendSQLite, db, recordKey, queries), nil
}
