package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/health-registry-api/internal/models"
	"github.com/noah-isme/health-registry-api/pkg/config"
	"github.com/noah-isme/health-registry-api/pkg/database"
)

func newRepoMock(t *testing.T, driver string) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, driver), mock
}

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

var seedClock = time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)

// nextSeedTime hands out strictly increasing timestamps so creation order is deterministic.
func nextSeedTime() time.Time {
	seedClock = seedClock.Add(time.Minute)
	return seedClock
}

func seedProgram(t *testing.T, db *sqlx.DB, name string) *models.Program {
	t.Helper()
	program := &models.Program{Name: name, CreatedAt: nextSeedTime()}
	require.NoError(t, NewProgramRepository(db).Create(context.Background(), program))
	return program
}

func seedClient(t *testing.T, db *sqlx.DB, first, last, email string) *models.Client {
	t.Helper()
	client := &models.Client{
		FirstName:        first,
		LastName:         last,
		DateOfBirth:      models.NewDate(1990, time.January, 15),
		Gender:           models.GenderOther,
		Email:            email,
		RegistrationDate: nextSeedTime(),
	}
	require.NoError(t, NewClientRepository(db).Create(context.Background(), client))
	return client
}

func seedEnrollment(t *testing.T, db *sqlx.DB, clientID, programID string, active bool) *models.Enrollment {
	t.Helper()
	enrollment := &models.Enrollment{ClientID: clientID, ProgramID: programID, Active: active, EnrollmentDate: nextSeedTime()}
	require.NoError(t, NewEnrollmentRepository(db).Create(context.Background(), enrollment))
	return enrollment
}

func countEnrollments(t *testing.T, db *sqlx.DB, where string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, db.Rebind("SELECT COUNT(*) FROM enrollments "+where), args...))
	return n
}
