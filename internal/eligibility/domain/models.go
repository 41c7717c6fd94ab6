// Package domain defines the package-change eligibility check that
// gates plan switches, including the downgrade cooldown.
package domain

import (
	"errors"
	"fmt"
	"time"
)

type ChangeType string

const (
	ChangeUpgrade   ChangeType = "upgrade"
	ChangeDowngrade ChangeType = "downgrade"
	ChangeLateral   ChangeType = "lateral"
)

var (
	ErrNoActivePackage = errors.New("no_active_package")
	ErrSamePlan        = errors.New("same_plan")

	// ErrSameCreditLimit rejects a switch between plans with identical
	// credit limits before any upgrade or downgrade classification.
	ErrSameCreditLimit = errors.New("same_credit_limit")
)

// DowngradeLockedError rejects a downgrade inside the cooldown window.
type DowngradeLockedError struct {
	MonthsActive      int       `json:"months_active"`
	CompletedPayments int64     `json:"completed_payments"`
	EligibleAt        time.Time `json:"eligible_at"`
}

func (e *DowngradeLockedError) Error() string {
	return fmt.Sprintf("downgrade_locked: eligible at %s", e.EligibleAt.Format(time.RFC3339))
}

type ChangeValidation struct {
	Allowed    bool       `json:"allowed"`
	ChangeType ChangeType `json:"change_type"`

	CurrentPlanID string `json:"current_plan_id"`
	TargetPlanID  string `json:"target_plan_id"`

	MonthsActive      int   `json:"months_active"`
	CompletedPayments int64 `json:"completed_payments"`

	// EligibleAt is set on rejected downgrades.
	EligibleAt *time.Time `json:"eligible_at,omitempty"`
}
