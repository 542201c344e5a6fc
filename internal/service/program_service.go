package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/health-registry-api/internal/models"
	appErrors "github.com/noah-isme/health-registry-api/pkg/errors"
)

// ProgramCacheNamespace prefixes the keys of cached program reads.
const ProgramCacheNamespace = "programs"

type programRepository interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error)
	FindByID(ctx context.Context, id string) (*models.Program, error)
	Create(ctx context.Context, program *models.Program) error
	Update(ctx context.Context, program *models.Program) error
	Delete(ctx context.Context, id string) (int64, error)
}

type programPage struct {
	Items []models.Program `json:"items"`
	Total int              `json:"total"`
}

// ProgramService exposes CRUD operations over the program catalogue.
type ProgramService struct {
	repo      programRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService constructs ProgramService. cache may be nil.
func NewProgramService(repo programRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// List returns programs matching the filter in creation order.
func (s *ProgramService) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	result, err := readThrough(ctx, s.cache, fmt.Sprintf("list:%s:%d:%d", filter.Search, filter.Page, filter.PageSize), func() (programPage, error) {
		programs, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return programPage{}, appErrors.Internal(err, "failed to list programs")
		}
		return programPage{Items: programs, Total: total}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result.Items, models.NewPagination(filter.Page, filter.PageSize, result.Total), nil
}

// Get returns a single program.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.Program, error) {
	return readThrough(ctx, s.cache, "item:"+id, func() (*models.Program, error) {
		return s.load(ctx, id)
	})
}

// Create registers a new program.
func (s *ProgramService) Create(ctx context.Context, req ProgramRequest) (*models.Program, error) {
	if err := validateProgram(s.validator, &req); err != nil {
		return nil, err
	}
	program := &models.Program{Name: req.Name, Description: req.Description}
	if err := s.repo.Create(ctx, program); err != nil {
		return nil, appErrors.Internal(err, "failed to create program")
	}
	s.invalidate(ctx)
	s.logger.Info("program created", zap.String("program_id", program.ID), zap.String("name", program.Name))
	return program, nil
}

// Update replaces every mutable field of a program.
func (s *ProgramService) Update(ctx context.Context, id string, req ProgramRequest) (*models.Program, error) {
	program, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, program, req)
}

// Patch updates the supplied fields of a program.
func (s *ProgramService) Patch(ctx context.Context, id string, req ProgramPatchRequest) (*models.Program, error) {
	program, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, program, req.apply(*program))
}

// Delete removes a program and all of its enrollments.
func (s *ProgramService) Delete(ctx context.Context, id string) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return appErrors.Internal(err, "failed to delete program")
	}
	s.invalidate(ctx)
	s.metrics.RecordCascade("program", removed)
	s.logger.Info("program deleted", zap.String("program_id", id), zap.Int64("enrollments_removed", removed))
	return nil
}

func (s *ProgramService) save(ctx context.Context, program *models.Program, req ProgramRequest) (*models.Program, error) {
	if err := validateProgram(s.validator, &req); err != nil {
		return nil, err
	}
	program.Name = req.Name
	program.Description = req.Description
	if err := s.repo.Update(ctx, program); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Internal(err, "failed to update program")
	}
	s.invalidate(ctx)
	return program, nil
}

func (s *ProgramService) load(ctx context.Context, id string) (*models.Program, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Internal(err, "failed to load program")
	}
	return program, nil
}

func (s *ProgramService) invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx)
}
