package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is portable between PostgreSQL and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS programs (
    id VARCHAR(36) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS clients (
    id VARCHAR(36) PRIMARY KEY,
    first_name VARCHAR(100) NOT NULL,
    last_name VARCHAR(100) NOT NULL,
    date_of_birth DATE NOT NULL,
    gender VARCHAR(1) NOT NULL,
    phone_number VARCHAR(20) NOT NULL DEFAULT '',
    email VARCHAR(254) NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    registration_date TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
    id VARCHAR(36) PRIMARY KEY,
    client_id VARCHAR(36) NOT NULL REFERENCES clients (id) ON DELETE CASCADE,
    program_id VARCHAR(36) NOT NULL REFERENCES programs (id) ON DELETE CASCADE,
    enrollment_date TIMESTAMP NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    notes TEXT NOT NULL DEFAULT '',
    CONSTRAINT enrollments_client_program_key UNIQUE (client_id, program_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_enrollments_program_id ON enrollments (program_id)`,
}

// Migrate creates the registry tables when they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
