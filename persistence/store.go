// Package persistence provides SQLite-based state persistence for the search cycle
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	DefaultDBName = "autosearch.db"
)

// ErrStorageUnavailable is returned when the database cannot be read or written.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Store handles all persistence operations using SQLite
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the database at dbPath
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = DefaultDBName
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps per-connection
	// pragmas in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// WAL keeps a half-written transaction invisible if the process dies mid-commit
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.dbPath
}

// initTables creates all required tables
func (s *Store) initTables() error {
	tables := []string{
		// Namespaced key/value state that survives page loads and process exits
		`CREATE TABLE IF NOT EXISTS automation_state (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (namespace, key)
		)`,

		// Daily stats table
		`CREATE TABLE IF NOT EXISTS daily_stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date DATE UNIQUE NOT NULL,
			searches_submitted INTEGER DEFAULT 0,
			results_clicked INTEGER DEFAULT 0,
			batches_fetched INTEGER DEFAULT 0,
			fetch_failures INTEGER DEFAULT 0
		)`,
	}

	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Transaction executes a function within a database transaction
func (s *Store) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// getValues reads the given keys of a namespace. Missing keys are absent from the map.
func (s *Store) getValues(ctx context.Context, namespace string, keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	err := s.Transaction(ctx, func(tx *sql.Tx) error {
		for _, key := range keys {
			var value string
			err := tx.QueryRowContext(ctx,
				`SELECT value FROM automation_state WHERE namespace = ? AND key = ?`,
				namespace, key,
			).Scan(&value)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			values[key] = value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// setValues writes all values of a namespace in one transaction
func (s *Store) setValues(ctx context.Context, namespace string, values map[string]string) error {
	return s.Transaction(ctx, func(tx *sql.Tx) error {
		for key, value := range values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO automation_state (namespace, key, value, updated_at)
				VALUES (?, ?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(namespace, key) DO UPDATE SET
					value = excluded.value,
					updated_at = excluded.updated_at
			`, namespace, key, value)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// deleteValues removes keys of a namespace in one transaction
func (s *Store) deleteValues(ctx context.Context, namespace string, keys ...string) error {
	return s.Transaction(ctx, func(tx *sql.Tx) error {
		for _, key := range keys {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM automation_state WHERE namespace = ? AND key = ?`,
				namespace, key,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// getTodayDate returns today's date in YYYY-MM-DD format
func getTodayDate() string {
	return time.Now().Format("2006-01-02")
}
