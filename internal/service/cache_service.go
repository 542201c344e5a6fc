package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/health-registry-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService is a namespaced read-through cache. A nil *CacheService is a valid, disabled cache.
type CacheService struct {
	store     CacheRepository
	namespace string
	ttl       time.Duration
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewCacheService prefixes every key with namespace and stores entries for ttl.
func NewCacheService(store CacheRepository, namespace string, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *CacheService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{store: store, namespace: namespace, ttl: ttl, metrics: metrics, logger: logger}
}

// Enabled reports whether lookups can hit a backing store.
func (s *CacheService) Enabled() bool {
	return s != nil && s.store != nil
}

func (s *CacheService) key(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

// Get decodes the entry stored under key into dest and reports whether it was found.
// Store failures count as misses.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.store.Get(ctx, s.key(key), dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache read failed", zap.String("key", s.key(key)), zap.Error(err))
	}
	return err == nil
}

// Set stores value under key. Failures are logged, never returned.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if !s.Enabled() {
		return
	}
	start := time.Now()
	err := s.store.Set(ctx, s.key(key), value, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache write failed", zap.String("key", s.key(key)), zap.Error(err))
	}
}

// Invalidate drops every entry of the namespace.
func (s *CacheService) Invalidate(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	if err := s.store.DeleteByPattern(ctx, s.key("*")); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("namespace", s.namespace), zap.Error(err))
	}
}

// readThrough returns the cached value for key, or calls load and caches its result.
func readThrough[T any](ctx context.Context, cache *CacheService, key string, load func() (T, error)) (T, error) {
	var cached T
	if cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	value, err := load()
	if err != nil {
		return value, err
	}
	cache.Set(ctx, key, value)
	return value, nil
}
