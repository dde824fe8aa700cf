package database

import (
	"fmt"
	"log"
)

// Migration represents a database migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

func migrations(dbType string) []Migration {
	boolType := "INTEGER"
	timeType := "TIMESTAMP"
	if dbType == "postgres" {
		boolType = "BOOLEAN"
		timeType = "TIMESTAMP WITH TIME ZONE"
	}
	return []Migration{
		{
			Version:     1,
			Description: "Create analysis_records table",
			SQL: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS analysis_records (
				id TEXT PRIMARY KEY,
				phone TEXT NOT NULL,
				created_at %s NOT NULL,
				mode TEXT NOT NULL,
				report_text TEXT NOT NULL,
				thumbnail TEXT,
				favorite %s NOT NULL DEFAULT %s
			)`, timeType, boolType, boolDefault(dbType)),
		},
		{
			Version:     2,
			Description: "Index analysis_records by phone and recency",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_records_phone_time ON analysis_records (phone, created_at)`,
		},
	}
}

func boolDefault(dbType string) string {
	if dbType == "postgres" {
		return "FALSE"
	}
	return "0"
}

// migrate applies pending migrations in version order.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	for _, m := range migrations(s.dbType) {
		if m.Version <= current {
			continue
		}
		log.Printf("Applying migration %d: %s", m.Version, m.Description)
		if _, err := s.db.Exec(m.SQL); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		if _, err := s.db.Exec(s.rebind(`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`), m.Version, m.Description); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}
