package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entitlement *PackageEntitlement) error
	FindActiveByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*PackageEntitlement, error)
	FindByStripeSubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*PackageEntitlement, error)

	// Deduct spends n package credits guarded on credits_remaining; false
	// means insufficient balance or a concurrent winner.
	Deduct(ctx context.Context, db *gorm.DB, id snowflake.ID, n int, now time.Time) (bool, error)

	// AddCredits grants n credits (purchase top-up or bonus).
	AddCredits(ctx context.Context, db *gorm.DB, id snowflake.ID, n int, now time.Time) error

	// Refund reverses a spend: remaining goes up, used goes down (floored
	// at zero so reversals never fabricate negative usage).
	Refund(ctx context.Context, db *gorm.DB, id snowflake.ID, n int, now time.Time) error

	DeactivateByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) error
	UpdateSubscriptionState(ctx context.Context, db *gorm.DB, id snowflake.ID, state SubscriptionStateUpdate, now time.Time) error
}

// SubscriptionStateUpdate carries the fields a payment-authority event
// may change.
type SubscriptionStateUpdate struct {
	Status             SubscriptionStatus
	IsActive           bool
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  *bool
}
