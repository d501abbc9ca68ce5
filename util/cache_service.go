package util

import (
	"context"

	"github.com/hearthguard/sentinel/db"
	"github.com/hearthguard/sentinel/model"
)

// CacheService fronts the Redis cache. All methods degrade to no-ops/misses
// when Redis is not configured, so isolated test instances need no backend.
type CacheService struct{}

func NewCacheService() *CacheService {
	return &CacheService{}
}

func (c *CacheService) GetDecision(ctx context.Context, fingerprint string) (*model.AccessDecision, error) {
	return db.GetCachedDecision(ctx, fingerprint)
}

func (c *CacheService) SetDecision(ctx context.Context, fingerprint string, decision *model.AccessDecision) error {
	return db.CacheDecision(ctx, fingerprint, decision)
}

func (c *CacheService) InvalidateDecisions(ctx context.Context) error {
	return db.InvalidateDecisions(ctx)
}

func (c *CacheService) SetDashboard(ctx context.Context, payload interface{}) error {
	return db.CacheDashboard(ctx, payload)
}
