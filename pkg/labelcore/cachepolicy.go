package labelcore

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// TTL classes: listings change often and expire quickly, single entities
// live longer.
const (
	TTLEntity  = 10 * time.Minute
	TTLListing = time.Minute
)

// Cache key builders. Listing keys share a stable prefix with their scope
// so mutations can drop them by prefix match.
func LabelCacheKey(labelID uuid.UUID) string {
	return "label:" + labelID.String()
}

func ProjectCacheKey(projectID uuid.UUID) string {
	return "project:" + projectID.String()
}

func ProjectLabelsPrefix(projectID uuid.UUID) string {
	return "labels:project:" + projectID.String()
}

func UserProjectsPrefix(ownerID uuid.UUID) string {
	return "projects:user:" + ownerID.String()
}

// CacheInvalidator is the single policy point for which cache keys to drop
// on which mutation. There is no write-through: a write never repopulates
// the cache, the next read misses and recomputes from the durable store.
// Invalidation failures are logged and never fail the mutation.
type CacheInvalidator struct {
	cache  Cache
	logger *slog.Logger
}

// NewCacheInvalidator creates an invalidator over the given cache.
func NewCacheInvalidator(cache Cache, logger *slog.Logger) *CacheInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheInvalidator{cache: cache, logger: logger}
}

// LabelChanged drops the label's entity key and every listing whose scope
// includes it.
func (i *CacheInvalidator) LabelChanged(ctx context.Context, labelID, projectID, ownerID uuid.UUID) {
	if err := i.cache.Delete(ctx, LabelCacheKey(labelID)); err != nil {
		i.logger.Warn("cache invalidation failed", "key", LabelCacheKey(labelID), "error", err)
	}
	i.dropListings(ctx, projectID, ownerID)
}

// ProjectLabelsChanged drops the listing keys for a project after a bulk
// mutation that touched no pre-existing label entity.
func (i *CacheInvalidator) ProjectLabelsChanged(ctx context.Context, projectID, ownerID uuid.UUID) {
	i.dropListings(ctx, projectID, ownerID)
}

// ProjectChanged drops the project's entity key and the owner's listings.
func (i *CacheInvalidator) ProjectChanged(ctx context.Context, projectID, ownerID uuid.UUID) {
	if err := i.cache.Delete(ctx, ProjectCacheKey(projectID)); err != nil {
		i.logger.Warn("cache invalidation failed", "key", ProjectCacheKey(projectID), "error", err)
	}
	if err := i.cache.DeletePrefix(ctx, UserProjectsPrefix(ownerID)); err != nil {
		i.logger.Warn("cache invalidation failed", "prefix", UserProjectsPrefix(ownerID), "error", err)
	}
}

func (i *CacheInvalidator) dropListings(ctx context.Context, projectID, ownerID uuid.UUID) {
	for _, prefix := range []string{ProjectLabelsPrefix(projectID), UserProjectsPrefix(ownerID)} {
		if err := i.cache.DeletePrefix(ctx, prefix); err != nil {
			i.logger.Warn("cache invalidation failed", "prefix", prefix, "error", err)
		}
	}
}
