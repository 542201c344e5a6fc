package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/health-registry-api/internal/models"
	appErrors "github.com/noah-isme/health-registry-api/pkg/errors"
)

type countingProgramRepo struct {
	programRepository
	lists int
	finds int
}

func (c *countingProgramRepo) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	c.lists++
	return c.programRepository.List(ctx, filter)
}

func (c *countingProgramRepo) FindByID(ctx context.Context, id string) (*models.Program, error) {
	c.finds++
	return c.programRepository.FindByID(ctx, id)
}

type failingProgramRepo struct {
	programRepository
}

func (failingProgramRepo) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	return nil, 0, sql.ErrConnDone
}

func TestProgramCRUD(t *testing.T) {
	f := newRegistryFixture(t)
	svc := NewProgramService(f.programs, nil, f.metrics, nil, nil)

	created, err := svc.Create(context.Background(), ProgramRequest{Name: "  HIV Program ", Description: "Antiretroviral care"})
	require.NoError(t, err)
	assert.Equal(t, "HIV Program", created.Name)
	assert.False(t, created.CreatedAt.IsZero())

	desc := "Updated"
	patched, err := svc.Patch(context.Background(), created.ID, ProgramPatchRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "HIV Program", patched.Name)
	assert.Equal(t, "Updated", patched.Description)

	updated, err := svc.Update(context.Background(), created.ID, ProgramRequest{Name: "HIV Care"})
	require.NoError(t, err)
	assert.Equal(t, "HIV Care", updated.Name)
	assert.Empty(t, updated.Description)

	fetched, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "HIV Care", fetched.Name)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	_, err = svc.Get(context.Background(), created.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.True(t, errors.Is(svc.Delete(context.Background(), created.ID), appErrors.ErrNotFound))
}

func TestProgramCreateValidation(t *testing.T) {
	f := newRegistryFixture(t)
	svc := NewProgramService(f.programs, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), ProgramRequest{Name: "   "})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, "name", appErr.Details[0].Field)
	assert.Equal(t, "This field is required.", appErr.Details[0].Message)

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.Create(context.Background(), ProgramRequest{Name: string(long)})
	require.Error(t, err)
	assert.Equal(t, "Ensure this field has no more than 100 characters.", appErrors.FromError(err).Details[0].Message)
}

func TestProgramDeleteCascadesEnrollments(t *testing.T) {
	f := newRegistryFixture(t)
	program := f.program(t, "TB Program")
	client := f.client(t, "John", "Doe")
	_, err := f.enrollmentService().Enroll(context.Background(), client.ID, EnrollRequest{ProgramID: program.ID})
	require.NoError(t, err)

	svc := NewProgramService(f.programs, nil, f.metrics, nil, nil)
	require.NoError(t, svc.Delete(context.Background(), program.ID))
	assert.Zero(t, f.enrollmentCount(t, client.ID, program.ID))

	profile, err := f.clientService(profileToday).Profile(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Empty(t, profile.Enrollments)
}

func TestProgramListUsesCacheUntilWrite(t *testing.T) {
	f := newRegistryFixture(t)
	f.program(t, "HIV Program")
	repo := &countingProgramRepo{programRepository: f.programs}
	store := newMemoryCache()
	cache := NewCacheService(store, ProgramCacheNamespace, 0, f.metrics, nil)
	svc := NewProgramService(repo, cache, f.metrics, nil, nil)

	first, _, err := svc.List(context.Background(), models.ProgramFilter{})
	require.NoError(t, err)
	second, pagination, err := svc.List(context.Background(), models.ProgramFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lists)
	assert.Equal(t, len(first), len(second))
	assert.Equal(t, 1, pagination.TotalCount)

	_, err = svc.Create(context.Background(), ProgramRequest{Name: "Malaria Program"})
	require.NoError(t, err)
	assert.Zero(t, store.len())

	third, _, err := svc.List(context.Background(), models.ProgramFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lists)
	assert.Len(t, third, 2)
}

func TestProgramGetUsesCache(t *testing.T) {
	f := newRegistryFixture(t)
	program := f.program(t, "HIV Program")
	repo := &countingProgramRepo{programRepository: f.programs}
	cache := NewCacheService(newMemoryCache(), ProgramCacheNamespace, 0, nil, nil)
	svc := NewProgramService(repo, cache, nil, nil, nil)

	for i := 0; i < 3; i++ {
		got, err := svc.Get(context.Background(), program.ID)
		require.NoError(t, err)
		assert.Equal(t, "HIV Program", got.Name)
	}
	assert.Equal(t, 1, repo.finds)
}

func TestProgramListWrapsRepositoryErrors(t *testing.T) {
	svc := NewProgramService(failingProgramRepo{}, nil, nil, nil, nil)
	_, _, err := svc.List(context.Background(), models.ProgramFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
