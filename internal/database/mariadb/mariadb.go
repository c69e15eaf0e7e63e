// Package mariadb stores the identity document as a single named row in MariaDB/MySQL.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
)

func init() {
	database.RegisterBackend(config.BackendMariaDB, func(ctx context.Context, cfg *config.StorageConfig) (database.IdentityStore, error) {
		pool, err := NewPool(cfg)
		if err != nil {
			return nil, err
		}
		return pool.IdentityStore(ctx, cfg.RecordKey)
	})
}

const schema = `
	CREATE TABLE IF NOT EXISTS records (
		record_key VARCHAR(191) NOT NULL PRIMARY KEY,
		payload    LONGTEXT NOT NULL,
		updated_at DATETIME(6) NOT NULL
	) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin
`

var queries = database.RecordQueries{
	Load: `SELECT payload FROM records WHERE record_key = ?`,
	Save: `
		INSERT INTO records (record_key, payload, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = VALUES(updated_at)
	`,
}

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(cfg *config.StorageConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	dsn, err := mysql.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	dsn.ParseTime = true

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// IdentityStore creates the records table if needed and returns a store for recordKey.
// The store takes ownership of the pool.
func (p *Pool) IdentityStore(ctx context.Context, recordKey string) (*database.RecordStore, error) {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to initialize MariaDB schema: %w", err)
	}
	return database.NewRecordStore(config.BackendMariaDB, p.db, recordKey, queries), nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}
