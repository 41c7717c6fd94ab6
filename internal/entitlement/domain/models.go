// Package domain contains persistence models for purchased package
// entitlements.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus mirrors the payment authority's lifecycle states.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
)

// PackageEntitlement is a user's purchased credit pool. At most one row
// per user has is_active = true; replaced or ended packages are
// deactivated, never deleted, so granted-credit history stays auditable.
type PackageEntitlement struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID snowflake.ID `gorm:"not null;index" json:"user_id"`
	PlanID snowflake.ID `gorm:"not null;index" json:"plan_id"`

	CreditsRemaining int `gorm:"not null;default:0" json:"credits_remaining"`
	CreditsUsed      int `gorm:"not null;default:0" json:"credits_used"`

	IsActive  bool       `gorm:"not null;default:true;index" json:"is_active"`
	StartedAt time.Time  `gorm:"not null" json:"started_at"`
	ExpiresAt *time.Time `gorm:"" json:"expires_at,omitempty"`

	StripeSubscriptionID *string             `gorm:"type:text;index" json:"stripe_subscription_id,omitempty"`
	SubscriptionStatus   *SubscriptionStatus `gorm:"type:text" json:"subscription_status,omitempty"`
	CurrentPeriodStart   *time.Time          `gorm:"" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time          `gorm:"" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool                `gorm:"not null;default:false" json:"cancel_at_period_end"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PackageEntitlement) TableName() string { return "package_entitlements" }
