package entity

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// FreePlanName is the fallback plan assigned when a user has no active
// subscription.
const FreePlanName = "free"

type SubscriptionPlan struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	DisplayName string    `gorm:"type:varchar(100);not null"`

	PriceMonthlyCents int64   `gorm:"not null"`
	StripePriceID     *string `gorm:"type:varchar(255)"`

	IsActive bool `gorm:"default:true;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Features []PlanFeature
}

// PlanFeature stores feature values as opaque strings; they are decoded on
// read (JSON-parse-or-literal) by the entitlement layer.
type PlanFeature struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PlanID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ix_plan_features_plan_key"`

	FeatureKey   string `gorm:"type:varchar(100);not null;uniqueIndex:ix_plan_features_plan_key"`
	FeatureValue string `gorm:"type:text;not null"`

	CreatedAt time.Time
}

// UserSubscription is written by the external billing webhook processor; this
// core only reads it and honors the cache invalidation signal.
type UserSubscription struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	PlanID uuid.UUID `gorm:"type:uuid;not null"`
	Plan   SubscriptionPlan

	StripeCustomerID     *string `gorm:"type:varchar(255)"`
	StripeSubscriptionID *string `gorm:"type:varchar(255)"`

	Status SubscriptionStatus `gorm:"type:varchar(20);not null;index"`

	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool `gorm:"default:false;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
