package labelcore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/labelcore/pkg/labelcore"
	cachemem "github.com/printforge/labelcore/pkg/labelcore/cache/memory"
)

func TestCacheInvalidator_LabelChanged(t *testing.T) {
	ctx := context.Background()
	cache := cachemem.New()
	inv := labelcore.NewCacheInvalidator(cache, nil)

	labelID, projectID, ownerID := uuid.New(), uuid.New(), uuid.New()
	otherLabel, otherProject := uuid.New(), uuid.New()

	seed := map[string]string{
		labelcore.LabelCacheKey(labelID):          "entity",
		labelcore.LabelCacheKey(otherLabel):       "other entity",
		labelcore.ProjectLabelsPrefix(projectID):  "listing",
		labelcore.ProjectLabelsPrefix(otherProject): "other listing",
		labelcore.UserProjectsPrefix(ownerID):     "projects",
	}
	for key, value := range seed {
		require.NoError(t, cache.Set(ctx, key, []byte(value), time.Minute))
	}

	inv.LabelChanged(ctx, labelID, projectID, ownerID)

	for _, gone := range []string{
		labelcore.LabelCacheKey(labelID),
		labelcore.ProjectLabelsPrefix(projectID),
		labelcore.UserProjectsPrefix(ownerID),
	} {
		_, err := cache.Get(ctx, gone)
		assert.ErrorIs(t, err, labelcore.ErrCacheMiss, "key %q should be dropped", gone)
	}

	// Unrelated scopes survive.
	for _, kept := range []string{
		labelcore.LabelCacheKey(otherLabel),
		labelcore.ProjectLabelsPrefix(otherProject),
	} {
		_, err := cache.Get(ctx, kept)
		assert.NoError(t, err, "key %q should survive", kept)
	}
}

func TestCacheInvalidator_ProjectChanged(t *testing.T) {
	ctx := context.Background()
	cache := cachemem.New()
	inv := labelcore.NewCacheInvalidator(cache, nil)

	projectID, ownerID := uuid.New(), uuid.New()
	require.NoError(t, cache.Set(ctx, labelcore.ProjectCacheKey(projectID), []byte("p"), time.Minute))
	require.NoError(t, cache.Set(ctx, labelcore.UserProjectsPrefix(ownerID), []byte("l"), time.Minute))

	inv.ProjectChanged(ctx, projectID, ownerID)

	_, err := cache.Get(ctx, labelcore.ProjectCacheKey(projectID))
	assert.ErrorIs(t, err, labelcore.ErrCacheMiss)
	_, err = cache.Get(ctx, labelcore.UserProjectsPrefix(ownerID))
	assert.ErrorIs(t, err, labelcore.ErrCacheMiss)
}

func TestCacheInvalidator_DegradedCache(t *testing.T) {
	// Invalidation over a failing cache must never panic or surface errors.
	inv := labelcore.NewCacheInvalidator(failingCache{}, nil)
	inv.LabelChanged(context.Background(), uuid.New(), uuid.New(), uuid.New())
	inv.ProjectChanged(context.Background(), uuid.New(), uuid.New())
}

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, labelcore.ErrCacheMiss
}

func (failingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return assert.AnError
}

func (failingCache) Delete(ctx context.Context, keys ...string) error {
	return assert.AnError
}

func (failingCache) DeletePrefix(ctx context.Context, prefix string) error {
	return assert.AnError
}
