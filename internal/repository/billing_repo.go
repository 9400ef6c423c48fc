package repository

import (
	"context"
	"errors"

	"tickwise/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillingRepository reads subscription state written by the external billing
// webhook processor. This core never writes billing rows.
type BillingRepository interface {
	FindActiveSubscription(ctx context.Context, userID uuid.UUID) (*entity.UserSubscription, error)
	FindPlanByName(ctx context.Context, name string) (*entity.SubscriptionPlan, error)
	ListPlanFeatures(ctx context.Context, planID uuid.UUID) ([]entity.PlanFeature, error)
}

type billingRepository struct {
	db *gorm.DB
}

func NewBillingRepository(db *gorm.DB) BillingRepository {
	return &billingRepository{db: db}
}

func (r *billingRepository) FindActiveSubscription(ctx context.Context, userID uuid.UUID) (*entity.UserSubscription, error) {
	var subscription entity.UserSubscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ? AND status = ?", userID, entity.SubscriptionActive).
		First(&subscription).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &subscription, err
}

func (r *billingRepository) FindPlanByName(ctx context.Context, name string) (*entity.SubscriptionPlan, error) {
	var plan entity.SubscriptionPlan
	err := r.db.WithContext(ctx).
		Where("name = ? AND is_active = true", name).
		First(&plan).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &plan, err
}

func (r *billingRepository) ListPlanFeatures(ctx context.Context, planID uuid.UUID) ([]entity.PlanFeature, error) {
	var features []entity.PlanFeature
	err := r.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Find(&features).Error
	if err != nil {
		return nil, err
	}
	return features, nil
}
