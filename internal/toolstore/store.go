// Package toolstore is the SQLite-backed tool-execution service: typed
// record operations over customers and their tickets. The orchestration
// core only consumes its call contract; callers reach it either in-process
// or through the JSON-RPC surface.
package toolstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store wraps an SQLite database with the record operations the data
// worker consumes.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultPath returns the default database location under XDG data home.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "quorum", "records.db")
}

// Open opens the store at the given path, creating parent directories as
// needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Customers},
		{2, migrationV2Tickets},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Customers = `
CREATE TABLE IF NOT EXISTS customers (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT,
	phone TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	plan TEXT NOT NULL DEFAULT 'basic',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_customers_status ON customers(status);
`

const migrationV2Tickets = `
CREATE TABLE IF NOT EXISTS tickets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	issue TEXT NOT NULL,
	priority TEXT NOT NULL DEFAULT 'normal',
	status TEXT NOT NULL DEFAULT 'open',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tickets_customer_id ON tickets(customer_id);
CREATE INDEX IF NOT EXISTS idx_tickets_priority ON tickets(priority);
`

// Seed inserts the sample customers and tickets used by the demo
// scenarios. Existing rows with the same IDs are replaced.
func (s *Store) Seed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	customers := []struct {
		id                        int64
		name, email, status, plan string
	}{
		{1, "Alice Johnson", "alice@example.com", "active", "premium"},
		{2, "Bob Martinez", "bob@example.com", "active", "basic"},
		{3, "Carol Chen", "carol@example.com", "inactive", "basic"},
		{4, "David Okafor", "david@example.com", "active", "premium"},
		{5, "Charlie Brown", "charlie@example.com", "active", "basic"},
		{6, "Erin Walsh", "erin@example.com", "suspended", "basic"},
	}
	for _, c := range customers {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO customers (id, name, email, status, plan)
			VALUES (?, ?, ?, ?, ?)
		`, c.id, c.name, c.email, c.status, c.plan)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("seed customer %d: %w", c.id, err)
		}
	}

	// Tickets are auto-keyed, clear them so reseeding stays idempotent.
	if _, err := tx.Exec("DELETE FROM tickets"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear tickets: %w", err)
	}

	tickets := []struct {
		customerID               int64
		issue, priority, tstatus string
	}{
		{1, "Billing discrepancy on last invoice", "high", "open"},
		{2, "Cannot log in after password reset", "normal", "open"},
		{4, "Requesting plan downgrade", "normal", "closed"},
		{5, "Service outage reported", "high", "open"},
	}
	for _, t := range tickets {
		_, err := tx.Exec(`
			INSERT INTO tickets (customer_id, issue, priority, status)
			VALUES (?, ?, ?, ?)
		`, t.customerID, t.issue, t.priority, t.tstatus)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("seed ticket for customer %d: %w", t.customerID, err)
		}
	}

	return tx.Commit()
}
