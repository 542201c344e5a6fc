package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/health-registry-api/internal/models"
	"github.com/noah-isme/health-registry-api/pkg/database"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const (
	enrollmentColumns       = "id, client_id, program_id, enrollment_date, active, notes"
	enrollmentDetailColumns = "e.id, e.client_id, e.program_id, e.enrollment_date, e.active, e.notes, p.name AS program_name"
	enrollmentDetailFrom    = "FROM enrollments e JOIN programs p ON p.id = e.program_id"
	enrollmentOrder         = "ORDER BY e.enrollment_date ASC, e.id ASC"
)

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ClientID != "" {
		conditions = append(conditions, "e.client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, "e.program_id = ?")
		args = append(args, filter.ProgramID)
	}
	if filter.Active != nil {
		conditions = append(conditions, "e.active = ?")
		args = append(args, *filter.Active)
	}

	base := enrollmentDetailFrom
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s %s", enrollmentDetailColumns, base, enrollmentOrder) + pageClause(filter.Page, filter.PageSize)

	enrollments := []models.EnrollmentDetail{}
	if err := r.db.SelectContext(ctx, &enrollments, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) "+base), args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListByClientIDs returns the enrollments of the given clients with program names, in creation order.
func (r *EnrollmentRepository) ListByClientIDs(ctx context.Context, clientIDs []string) ([]models.EnrollmentDetail, error) {
	enrollments := []models.EnrollmentDetail{}
	if len(clientIDs) == 0 {
		return enrollments, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s %s WHERE e.client_id IN (?) %s", enrollmentDetailColumns, enrollmentDetailFrom, enrollmentOrder), clientIDs)
	if err != nil {
		return nil, fmt.Errorf("expand client ids: %w", err)
	}
	if err := r.db.SelectContext(ctx, &enrollments, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list client enrollments: %w", err)
	}
	return enrollments, nil
}

// FindDetailByID returns an enrollment with its program name.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE e.id = ?", enrollmentDetailColumns, enrollmentDetailFrom)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, r.db.Rebind(query), id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new enrollment record. A second row for the same client and
// program fails with the database's unique violation.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	prepareEnrollment(enrollment)
	const query = `INSERT INTO enrollments (id, client_id, program_id, enrollment_date, active, notes)
        VALUES (:id, :client_id, :program_id, :enrollment_date, :active, :notes)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update persists the mutable fields of an enrollment.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments SET active = :active, notes = :notes WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, enrollment)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return requireAffected(res, "update enrollment")
}

// Delete removes a single enrollment.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM enrollments WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return requireAffected(res, "delete enrollment")
}

// FindByPair loads the enrollment for a client/program pair within exec, locking
// the row on PostgreSQL until the surrounding transaction ends.
func (r *EnrollmentRepository) FindByPair(ctx context.Context, exec sqlx.ExtContext, clientID, programID string) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE client_id = ? AND program_id = ?"
	if database.IsPostgres(r.db) {
		query += " FOR UPDATE"
	}
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, exec, &enrollment, exec.Rebind(query), clientID, programID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// InsertIfAbsent inserts the enrollment unless a row for the same pair already
// exists. It reports whether a row was inserted.
func (r *EnrollmentRepository) InsertIfAbsent(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) (bool, error) {
	prepareEnrollment(enrollment)
	const query = `INSERT INTO enrollments (id, client_id, program_id, enrollment_date, active, notes)
        VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (client_id, program_id) DO NOTHING`
	res, err := exec.ExecContext(ctx, exec.Rebind(query),
		enrollment.ID, enrollment.ClientID, enrollment.ProgramID, enrollment.EnrollmentDate, enrollment.Active, enrollment.Notes)
	if err != nil {
		return false, fmt.Errorf("insert enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert enrollment rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetActive toggles the active flag of an enrollment within exec.
func (r *EnrollmentRepository) SetActive(ctx context.Context, exec sqlx.ExtContext, id string, active bool) error {
	res, err := exec.ExecContext(ctx, exec.Rebind("UPDATE enrollments SET active = ? WHERE id = ?"), active, id)
	if err != nil {
		return fmt.Errorf("set enrollment active: %w", err)
	}
	return requireAffected(res, "set enrollment active")
}

func prepareEnrollment(enrollment *models.Enrollment) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = time.Now().UTC()
	}
}
