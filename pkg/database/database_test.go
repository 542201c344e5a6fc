package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/health-registry-api/pkg/config"
)

func openMemory(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, Migrate(context.Background(), db))

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('programs', 'clients', 'enrollments')"))
	assert.Equal(t, 3, count)
}

func TestIsUniqueViolationOnDuplicatePair(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := db.ExecContext(ctx, "INSERT INTO programs (id, name, description, created_at) VALUES (?, ?, ?, ?)", "p1", "TB Program", "", now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO clients (id, first_name, last_name, date_of_birth, gender, registration_date)
        VALUES (?, ?, ?, ?, ?, ?)`, "c1", "John", "Doe", "1990-01-15", "M", now)
	require.NoError(t, err)

	const insert = "INSERT INTO enrollments (id, client_id, program_id, enrollment_date, active, notes) VALUES (?, ?, ?, ?, ?, ?)"
	_, err = db.ExecContext(ctx, insert, "e1", "c1", "p1", now, true, "")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "e2", "c1", "p1", now, true, "")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestIsUniqueViolationPostgresCodes(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestIsPostgres(t *testing.T) {
	db := openMemory(t)
	assert.False(t, IsPostgres(db))
}

func TestSQLiteUnicodeLower(t *testing.T) {
	db := openMemory(t)

	var folded string
	require.NoError(t, db.Get(&folded, "SELECT "+Lower(db, "?"), "ÉMILE Zoë"))
	assert.Equal(t, "émile zoë", folded)

	var null *string
	require.NoError(t, db.Get(&null, "SELECT "+Lower(db, "NULL")))
	assert.Nil(t, null)
}
