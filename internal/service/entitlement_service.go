package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tickwise/internal/entity"
	"tickwise/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const entitlementCacheTTL = 5 * time.Minute

// EntitlementService resolves the feature set a user is entitled to, with a
// redis read-through cache in front of the billing tables. Resolution
// degrades instead of denying: a cache outage falls through to the database,
// a database outage falls back to the free-tier defaults.
type EntitlementService struct {
	billing repository.BillingRepository
	cache   *redis.Client
	logger  *logrus.Logger
	ttl     time.Duration
}

func NewEntitlementService(billing repository.BillingRepository, cache *redis.Client, logger *logrus.Logger) *EntitlementService {
	return &EntitlementService{
		billing: billing,
		cache:   cache,
		logger:  logger,
		ttl:     entitlementCacheTTL,
	}
}

func entitlementCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("entitlements:%s", userID)
}

// Resolve returns the user's entitlements, serving from cache when possible.
// It never returns an error for infrastructure trouble; the fallback chain
// always produces a usable feature set.
func (s *EntitlementService) Resolve(ctx context.Context, userID uuid.UUID) *Entitlements {
	if cached := s.readCache(ctx, userID); cached != nil {
		return cached
	}

	entitlements := s.resolveFromStore(ctx, userID)
	s.writeCache(ctx, userID, entitlements)
	return entitlements
}

// Invalidate drops the cached entry so the next Resolve sees fresh billing
// state. Billing webhooks call this after any subscription change.
func (s *EntitlementService) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, entitlementCacheKey(userID)).Err(); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("entitlement cache invalidation failed")
		return err
	}
	return nil
}

func (s *EntitlementService) readCache(ctx context.Context, userID uuid.UUID) *Entitlements {
	if s.cache == nil {
		return nil
	}
	payload, err := s.cache.Get(ctx, entitlementCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("entitlement cache read failed")
		}
		return nil
	}
	var entitlements Entitlements
	if err := json.Unmarshal(payload, &entitlements); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("entitlement cache entry corrupt")
		return nil
	}
	return &entitlements
}

func (s *EntitlementService) writeCache(ctx context.Context, userID uuid.UUID, entitlements *Entitlements) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(entitlements)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, entitlementCacheKey(userID), payload, s.ttl).Err(); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("entitlement cache write failed")
	}
}

// resolveFromStore walks the fallback chain: active subscription plan, then
// the free plan row, then hardcoded defaults.
func (s *EntitlementService) resolveFromStore(ctx context.Context, userID uuid.UUID) *Entitlements {
	subscription, err := s.billing.FindActiveSubscription(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("subscription lookup failed, using defaults")
		return DefaultEntitlements()
	}
	if subscription != nil {
		if entitlements := s.planEntitlements(ctx, &subscription.Plan); entitlements != nil {
			return entitlements
		}
	}

	freePlan, err := s.billing.FindPlanByName(ctx, entity.FreePlanName)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("free plan lookup failed, using defaults")
		return DefaultEntitlements()
	}
	if freePlan != nil {
		if entitlements := s.planEntitlements(ctx, freePlan); entitlements != nil {
			return entitlements
		}
	}
	return DefaultEntitlements()
}

func (s *EntitlementService) planEntitlements(ctx context.Context, plan *entity.SubscriptionPlan) *Entitlements {
	features, err := s.billing.ListPlanFeatures(ctx, plan.ID)
	if err != nil {
		s.logger.WithError(err).WithField("plan", plan.Name).Warn("plan feature load failed")
		return nil
	}
	decoded := make(map[string]FeatureValue, len(features))
	for _, feature := range features {
		decoded[feature.FeatureKey] = DecodeFeatureValue(feature.FeatureValue)
	}
	return &Entitlements{PlanName: plan.Name, Features: decoded}
}
