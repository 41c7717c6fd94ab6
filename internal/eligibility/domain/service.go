package domain

import "context"

type Service interface {
	// ValidatePackageChange decides whether a user may switch to the
	// target plan. Upgrades always pass; downgrades pass only after the
	// tenure or payment-count threshold is met.
	ValidatePackageChange(ctx context.Context, userID, targetPlanID string) (*ChangeValidation, error)
}
