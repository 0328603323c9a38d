package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "ledger_schema",
		Up:      migration001LedgerSchema,
	},
	{
		Version: 2,
		Name:    "add_sync_tables",
		Up:      migration002AddSyncTables,
	},
	{
		Version: 3,
		Name:    "add_candidate_indexes",
		Up:      migration003AddCandidateIndexes,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// ================================================================
// MIGRATION FUNCTIONS
// ================================================================

// migration001LedgerSchema creates the core ledger tables
func migration001LedgerSchema(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS connections (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			provider_type TEXT NOT NULL,
			status TEXT DEFAULT 'active',
			last_sync_at TIMESTAMP,
			last_error TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT,
			currency TEXT DEFAULT 'USD',
			baseline_balance REAL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			parent_id TEXT REFERENCES categories(id),
			owner_user_id TEXT,
			color TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(name, parent_id, owner_user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS local_transactions (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			user_id TEXT NOT NULL,
			date TIMESTAMP NOT NULL,
			amount REAL NOT NULL,
			description TEXT,
			merchant_name TEXT,
			notes TEXT,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			category_id TEXT REFERENCES categories(id),
			from_bank BOOLEAN DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration002AddSyncTables creates the provider-sync tables
func migration002AddSyncTables(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS linked_accounts (
			id TEXT PRIMARY KEY,
			connection_id TEXT NOT NULL REFERENCES connections(id),
			external_account_id TEXT NOT NULL,
			local_account_id TEXT REFERENCES accounts(id),
			name TEXT,
			type TEXT,
			institution TEXT,
			mask TEXT,
			sync_enabled BOOLEAN DEFAULT 1,
			last_sync_at TIMESTAMP,
			UNIQUE(connection_id, external_account_id)
		)`,

		// external_id is the idempotency key: at-most-once import
		`CREATE TABLE IF NOT EXISTS external_transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			connection_id TEXT NOT NULL REFERENCES connections(id),
			linked_account_id TEXT NOT NULL REFERENCES linked_accounts(id),
			external_id TEXT UNIQUE NOT NULL,
			date TIMESTAMP NOT NULL,
			amount REAL NOT NULL,
			description TEXT,
			merchant_name TEXT,
			provider_category TEXT,
			balance_after REAL,
			pending BOOLEAN DEFAULT 0,
			is_duplicate BOOLEAN DEFAULT 0,
			duplicate_confidence INTEGER,
			needs_review BOOLEAN DEFAULT 0,
			local_transaction_id TEXT REFERENCES local_transactions(id),
			imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS sync_runs (
			id TEXT PRIMARY KEY,
			connection_id TEXT NOT NULL REFERENCES connections(id),
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			accounts_synced INTEGER DEFAULT 0,
			transactions_fetched INTEGER DEFAULT 0,
			transactions_imported INTEGER DEFAULT 0,
			duplicates_detected INTEGER DEFAULT 0,
			needs_review INTEGER DEFAULT 0,
			error_message TEXT,
			error_detail TEXT,
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration003AddCandidateIndexes adds indexes for duplicate-candidate and
// review queries
func migration003AddCandidateIndexes(db *sql.Tx) error {
	queries := []string{
		`CREATE INDEX IF NOT EXISTS idx_local_transactions_account_date
		 ON local_transactions(account_id, date)`,

		`CREATE INDEX IF NOT EXISTS idx_local_transactions_account_amount
		 ON local_transactions(account_id, amount)`,

		`CREATE INDEX IF NOT EXISTS idx_external_transactions_needs_review
		 ON external_transactions(needs_review)`,

		`CREATE INDEX IF NOT EXISTS idx_sync_runs_connection
		 ON sync_runs(connection_id, started_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}
