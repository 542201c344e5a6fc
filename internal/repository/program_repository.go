package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/health-registry-api/internal/models"
	"github.com/noah-isme/health-registry-api/pkg/database"
)

// ProgramRepository manages persistence for health programs.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs a ProgramRepository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

const programColumns = "id, name, description, created_at"

// List returns programs in creation order.
func (r *ProgramRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	base := "FROM programs"
	var args []interface{}
	if filter.Search != "" {
		base += " WHERE " + database.Lower(r.db, "name") + ` LIKE ? ESCAPE '\'`
		args = append(args, containsPattern(filter.Search))
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at ASC, id ASC", programColumns, base) + pageClause(filter.Page, filter.PageSize)

	programs := []models.Program{}
	if err := r.db.SelectContext(ctx, &programs, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list programs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) "+base), args...); err != nil {
		return nil, 0, fmt.Errorf("count programs: %w", err)
	}
	return programs, total, nil
}

// FindByID fetches a program by ID.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	var program models.Program
	query := r.db.Rebind("SELECT " + programColumns + " FROM programs WHERE id = ?")
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// Create inserts a new program.
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	if program.CreatedAt.IsZero() {
		program.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO programs (id, name, description, created_at) VALUES (:id, :name, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// Update modifies the mutable program fields.
func (r *ProgramRepository) Update(ctx context.Context, program *models.Program) error {
	const query = `UPDATE programs SET name = :name, description = :description WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, program)
	if err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return requireAffected(res, "update program")
}

// Delete removes a program and every enrollment referencing it. It returns the number of enrollments removed.
func (r *ProgramRepository) Delete(ctx context.Context, id string) (int64, error) {
	return deleteWithEnrollments(ctx, r.db, "programs", "program_id", id)
}
