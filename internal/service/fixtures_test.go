package service

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/health-registry-api/internal/models"
	"github.com/noah-isme/health-registry-api/internal/repository"
	"github.com/noah-isme/health-registry-api/pkg/config"
	"github.com/noah-isme/health-registry-api/pkg/database"
	appErrors "github.com/noah-isme/health-registry-api/pkg/errors"
)

type registryFixture struct {
	db          *sqlx.DB
	programs    *repository.ProgramRepository
	clients     *repository.ClientRepository
	enrollments *repository.EnrollmentRepository
	metrics     *MetricsService
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return &registryFixture{
		db:          db,
		programs:    repository.NewProgramRepository(db),
		clients:     repository.NewClientRepository(db),
		enrollments: repository.NewEnrollmentRepository(db),
		metrics:     NewMetricsService(),
	}
}

func (f *registryFixture) enrollmentService() *EnrollmentService {
	return NewEnrollmentService(f.enrollments, f.clients, f.programs, f.db, f.metrics, nil, nil)
}

func (f *registryFixture) clientService(now time.Time) *ClientService {
	return NewClientService(f.clients, f.enrollments, f.metrics, nil, nil).WithClock(func() time.Time { return now })
}

func (f *registryFixture) program(t *testing.T, name string) *models.Program {
	t.Helper()
	program := &models.Program{Name: name, Description: name + " description"}
	require.NoError(t, f.programs.Create(context.Background(), program))
	return program
}

func (f *registryFixture) client(t *testing.T, first, last string) *models.Client {
	t.Helper()
	client := &models.Client{
		FirstName:   first,
		LastName:    last,
		DateOfBirth: models.NewDate(1990, time.January, 15),
		Gender:      models.GenderMale,
		Email:       first + "@example.com",
	}
	require.NoError(t, f.clients.Create(context.Background(), client))
	return client
}

func (f *registryFixture) enrollmentCount(t *testing.T, clientID, programID string) int {
	t.Helper()
	var count int
	query := f.db.Rebind("SELECT COUNT(*) FROM enrollments WHERE client_id = ? AND program_id = ?")
	require.NoError(t, f.db.Get(&count, query, clientID, programID))
	return count
}

// memoryCache is an in-process CacheRepository used to observe cache traffic.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = payload
	m.sets++
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *memoryCache) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
