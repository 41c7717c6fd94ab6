package domain

import (
	"context"
	"errors"
	"time"
)

type ApplyPurchaseRequest struct {
	UserID           string `json:"user_id"`
	PlanID           string `json:"plan_id"`
	CreditsPurchased int    `json:"credits_purchased"`

	StripeSubscriptionID *string    `json:"stripe_subscription_id,omitempty"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
}

type SubscriptionEvent struct {
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	Status               string     `json:"status"`
	CurrentPeriodStart   *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    *bool      `json:"cancel_at_period_end,omitempty"`
}

type Service interface {
	// GetActive returns the user's active package, or nil without error
	// when none exists.
	GetActive(ctx context.Context, userID string) (*PackageEntitlement, error)

	// ApplyPurchase credits a completed purchase: top up the active
	// package, or create one when the user has none.
	ApplyPurchase(ctx context.Context, req ApplyPurchaseRequest) (*PackageEntitlement, error)

	// ApplySubscriptionEvent applies a payment-authority status report,
	// matching on the external subscription id.
	ApplySubscriptionEvent(ctx context.Context, event SubscriptionEvent) error

	// AddBonusCredits grants promotional credits. Deduplication of repeat
	// grants is the caller's responsibility.
	AddBonusCredits(ctx context.Context, userID string, n int) error
}

var (
	ErrInvalidUser             = errors.New("invalid_user")
	ErrInvalidPlan             = errors.New("invalid_plan")
	ErrInvalidCredits          = errors.New("invalid_credits")
	ErrPackageNotFound         = errors.New("package_not_found")
	ErrSubscriptionNotFound    = errors.New("subscription_not_found")
	ErrInvalidSubscriptionData = errors.New("invalid_subscription_data")
)
