package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/health-registry-api/pkg/errors"
)

func TestRedisCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewRedisCacheRepository(nil)
	ctx := context.Background()

	var dest map[string]string
	assert.ErrorIs(t, repo.Get(ctx, "programs:item:1", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "programs:item:1", map[string]string{"name": "HIV Program"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "programs:*"))
	assert.NoError(t, repo.Close())
}
