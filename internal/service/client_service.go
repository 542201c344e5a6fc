package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/health-registry-api/internal/models"
	appErrors "github.com/noah-isme/health-registry-api/pkg/errors"
)

type clientRepository interface {
	List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int, error)
	FindByID(ctx context.Context, id string) (*models.Client, error)
	Create(ctx context.Context, client *models.Client) error
	Update(ctx context.Context, client *models.Client) error
	Delete(ctx context.Context, id string) (int64, error)
}

type clientEnrollmentReader interface {
	ListByClientIDs(ctx context.Context, clientIDs []string) ([]models.EnrollmentDetail, error)
}

// ClientService manages client records and assembles client profiles.
type ClientService struct {
	repo        clientRepository
	enrollments clientEnrollmentReader
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewClientService constructs ClientService.
func NewClientService(repo clientRepository, enrollments clientEnrollmentReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ClientService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientService{repo: repo, enrollments: enrollments, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// WithClock overrides the clock used to compute ages.
func (s *ClientService) WithClock(now func() time.Time) *ClientService {
	if now != nil {
		s.now = now
	}
	return s
}

// List returns client profiles matching the filter in registration order.
func (s *ClientService) List(ctx context.Context, filter models.ClientFilter) ([]models.ClientProfile, *models.Pagination, error) {
	clients, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list clients")
	}
	profiles, err := s.assembleProfiles(ctx, clients)
	if err != nil {
		return nil, nil, err
	}
	return profiles, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Profile returns the full read model of a client.
func (s *ClientService) Profile(ctx context.Context, id string) (*models.ClientProfile, error) {
	client, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, client)
}

// Create registers a new client.
func (s *ClientService) Create(ctx context.Context, req ClientRequest) (*models.ClientProfile, error) {
	if err := validateClient(s.validator, &req); err != nil {
		return nil, err
	}
	client := &models.Client{}
	applyClientRequest(client, req)
	if err := s.repo.Create(ctx, client); err != nil {
		return nil, appErrors.Internal(err, "failed to create client")
	}
	s.logger.Info("client registered", zap.String("client_id", client.ID))
	return s.profile(ctx, client)
}

// Update replaces every mutable field of a client.
func (s *ClientService) Update(ctx context.Context, id string, req ClientRequest) (*models.ClientProfile, error) {
	client, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, client, req)
}

// Patch updates the supplied fields of a client.
func (s *ClientService) Patch(ctx context.Context, id string, req ClientPatchRequest) (*models.ClientProfile, error) {
	client, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, client, req.apply(*client))
}

// Delete removes a client and all of its enrollments.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return appErrors.Internal(err, "failed to delete client")
	}
	s.metrics.RecordCascade("client", removed)
	s.logger.Info("client deleted", zap.String("client_id", id), zap.Int64("enrollments_removed", removed))
	return nil
}

func (s *ClientService) save(ctx context.Context, client *models.Client, req ClientRequest) (*models.ClientProfile, error) {
	if err := validateClient(s.validator, &req); err != nil {
		return nil, err
	}
	applyClientRequest(client, req)
	if err := s.repo.Update(ctx, client); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Internal(err, "failed to update client")
	}
	return s.profile(ctx, client)
}

func (s *ClientService) load(ctx context.Context, id string) (*models.Client, error) {
	client, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Internal(err, "failed to load client")
	}
	return client, nil
}

func (s *ClientService) profile(ctx context.Context, client *models.Client) (*models.ClientProfile, error) {
	profiles, err := s.assembleProfiles(ctx, []models.Client{*client})
	if err != nil {
		return nil, err
	}
	return &profiles[0], nil
}

// assembleProfiles loads the enrollments of every client in one query.
func (s *ClientService) assembleProfiles(ctx context.Context, clients []models.Client) ([]models.ClientProfile, error) {
	profiles := make([]models.ClientProfile, 0, len(clients))
	if len(clients) == 0 {
		return profiles, nil
	}
	ids := make([]string, 0, len(clients))
	for _, client := range clients {
		ids = append(ids, client.ID)
	}
	details, err := s.enrollments.ListByClientIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load client enrollments")
	}
	byClient := make(map[string][]models.EnrollmentView, len(clients))
	for _, detail := range details {
		byClient[detail.ClientID] = append(byClient[detail.ClientID], detail.View())
	}
	today := s.now()
	for _, client := range clients {
		profiles = append(profiles, models.NewClientProfile(client, byClient[client.ID], today))
	}
	return profiles, nil
}

func applyClientRequest(client *models.Client, req ClientRequest) {
	client.FirstName = req.FirstName
	client.LastName = req.LastName
	if req.DateOfBirth != nil {
		client.DateOfBirth = *req.DateOfBirth
	}
	client.Gender = req.Gender
	client.PhoneNumber = req.PhoneNumber
	client.Email = req.Email
	client.Address = req.Address
}
