package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/health-registry-api/internal/models"
	"github.com/noah-isme/health-registry-api/pkg/database"
	appErrors "github.com/noah-isme/health-registry-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
	FindByPair(ctx context.Context, exec sqlx.ExtContext, clientID, programID string) (*models.Enrollment, error)
	InsertIfAbsent(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) (bool, error)
	SetActive(ctx context.Context, exec sqlx.ExtContext, id string, active bool) error
}

type clientReader interface {
	FindByID(ctx context.Context, id string) (*models.Client, error)
}

type programReader interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// EnrollmentService runs the enroll workflow and direct enrollment maintenance.
type EnrollmentService struct {
	repo      enrollmentRepository
	clients   clientReader
	programs  programReader
	tx        txProvider
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, clients clientReader, programs programReader, tx txProvider, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, clients: clients, programs: programs, tx: tx, metrics: metrics, validator: validate, logger: logger}
}

// Enroll makes the client an active member of the requested program. Repeating
// the call is safe: an inactive enrollment is reactivated and an active one is
// left untouched, so a client never holds two rows for the same program.
func (s *EnrollmentService) Enroll(ctx context.Context, clientID string, req EnrollRequest) (*models.EnrollResult, error) {
	client, err := s.RequireClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	programID := strings.TrimSpace(req.ProgramID)
	if programID == "" {
		return nil, appErrors.Validation("Program ID is required", appErrors.FieldError{Field: "program_id", Message: "This field is required."})
	}

	program, err := s.programs.FindByID(ctx, programID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Internal(err, "failed to load program")
	}

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	enrollment, outcome, err := s.transition(ctx, tx, client.ID, program.ID)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit enrollment")
	}

	s.metrics.RecordEnrollment(outcome)
	s.logger.Info("enroll action",
		zap.String("client_id", client.ID),
		zap.String("program_id", program.ID),
		zap.String("enrollment_id", enrollment.ID),
		zap.String("outcome", string(outcome)),
	)

	return &models.EnrollResult{
		Outcome:    outcome,
		Message:    enrollMessage(outcome, program.Name),
		Enrollment: *enrollment,
		Program:    *program,
	}, nil
}

// transition applies absent→active, inactive→active or active→active for the pair.
func (s *EnrollmentService) transition(ctx context.Context, tx *sqlx.Tx, clientID, programID string) (*models.Enrollment, models.EnrollOutcome, error) {
	existing, err := s.repo.FindByPair(ctx, tx, clientID, programID)
	if errors.Is(err, sql.ErrNoRows) {
		candidate := &models.Enrollment{ClientID: clientID, ProgramID: programID, Active: true}
		inserted, insertErr := s.repo.InsertIfAbsent(ctx, tx, candidate)
		if insertErr != nil {
			return nil, "", appErrors.Internal(insertErr, "failed to create enrollment")
		}
		if inserted {
			return candidate, models.EnrollOutcomeEnrolled, nil
		}
		// A concurrent request created the row after our lookup.
		existing, err = s.repo.FindByPair(ctx, tx, clientID, programID)
	}
	if err != nil {
		return nil, "", appErrors.Internal(err, "failed to load enrollment")
	}

	if existing.Active {
		return existing, models.EnrollOutcomeAlreadyEnrolled, nil
	}
	if err := s.repo.SetActive(ctx, tx, existing.ID, true); err != nil {
		return nil, "", appErrors.Internal(err, "failed to reactivate enrollment")
	}
	existing.Active = true
	return existing, models.EnrollOutcomeReenrolled, nil
}

func enrollMessage(outcome models.EnrollOutcome, programName string) string {
	switch outcome {
	case models.EnrollOutcomeReenrolled:
		return fmt.Sprintf("Client re-enrolled in %s", programName)
	case models.EnrollOutcomeAlreadyEnrolled:
		return fmt.Sprintf("Client already enrolled in %s", programName)
	default:
		return fmt.Sprintf("Client successfully enrolled in %s", programName)
	}
}

// RequireClient loads the client an enroll request targets, failing with not found when it is unknown.
func (s *EnrollmentService) RequireClient(ctx context.Context, clientID string) (*models.Client, error) {
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Internal(err, "failed to load client")
	}
	return client, nil
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollments")
	}
	return enrollments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a single enrollment with its program name.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	return detail, nil
}

// Create inserts an enrollment directly. A second enrollment for the same
// client and program is rejected as a constraint violation.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := validateEnrollment(s.validator, &req); err != nil {
		return nil, err
	}
	if _, err := s.clients.FindByID(ctx, req.ClientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Internal(err, "failed to load client")
	}
	if _, err := s.programs.FindByID(ctx, req.ProgramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Internal(err, "failed to load program")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	enrollment := &models.Enrollment{
		ClientID:  req.ClientID,
		ProgramID: req.ProgramID,
		Active:    active,
		Notes:     strings.TrimSpace(req.Notes),
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrConstraintViolation.Code, appErrors.ErrConstraintViolation.Status,
				"client is already enrolled in this program")
		}
		return nil, appErrors.Internal(err, "failed to create enrollment")
	}
	return s.Get(ctx, enrollment.ID)
}

// Update replaces the mutable fields of an enrollment.
func (s *EnrollmentService) Update(ctx context.Context, id string, req UpdateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := validatePayload(s.validator, req, "invalid enrollment payload"); err != nil {
		return nil, err
	}
	return s.save(ctx, id, req.Active, &req.Notes)
}

// Patch updates the supplied fields of an enrollment.
func (s *EnrollmentService) Patch(ctx context.Context, id string, req PatchEnrollmentRequest) (*models.EnrollmentDetail, error) {
	return s.save(ctx, id, req.Active, req.Notes)
}

// Delete removes a single enrollment.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Internal(err, "failed to delete enrollment")
	}
	return nil
}

func (s *EnrollmentService) save(ctx context.Context, id string, active *bool, notes *string) (*models.EnrollmentDetail, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if active != nil {
		detail.Active = *active
	}
	if notes != nil {
		detail.Notes = strings.TrimSpace(*notes)
	}
	if err := s.repo.Update(ctx, &detail.Enrollment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to update enrollment")
	}
	return detail, nil
}
