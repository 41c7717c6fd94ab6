package service

import (
	"context"
	"time"

	"github.com/cardlens/creditd/internal/clock"
	"github.com/cardlens/creditd/internal/config"
	"github.com/cardlens/creditd/internal/eligibility/domain"
	entitlementdomain "github.com/cardlens/creditd/internal/entitlement/domain"
	paymentdomain "github.com/cardlens/creditd/internal/payment/domain"
	plandomain "github.com/cardlens/creditd/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	Entitlements entitlementdomain.Service
	Plans        plandomain.Service
	Payments     paymentdomain.Service
	Limits       *config.LimitsConfigHolder `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	clock        clock.Clock
	entitlements entitlementdomain.Service
	plans        plandomain.Service
	payments     paymentdomain.Service
	limits       *config.LimitsConfigHolder
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:          p.Log.Named("eligibility.service"),
		clock:        p.Clock,
		entitlements: p.Entitlements,
		plans:        p.Plans,
		payments:     p.Payments,
		limits:       p.Limits,
	}
}

func (s *Service) ValidatePackageChange(ctx context.Context, userID, targetPlanID string) (*domain.ChangeValidation, error) {
	current, err := s.entitlements.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrNoActivePackage
	}

	target, err := s.plans.Get(ctx, targetPlanID)
	if err != nil {
		return nil, err
	}
	if target.ID == current.PlanID {
		return nil, domain.ErrSamePlan
	}

	currentPlan, err := s.plans.Get(ctx, current.PlanID.String())
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	monthsActive := wholeMonthsBetween(current.StartedAt, now)
	completedPayments, err := s.payments.CountCompletedPayments(ctx, userID)
	if err != nil {
		return nil, err
	}

	validation := &domain.ChangeValidation{
		CurrentPlanID:     current.PlanID.String(),
		TargetPlanID:      target.ID.String(),
		MonthsActive:      monthsActive,
		CompletedPayments: completedPayments,
	}

	// Equal allowances are churn, not change. Rejected before any
	// upgrade or downgrade classification, regardless of tier.
	if target.CreditLimit == currentPlan.CreditLimit {
		validation.ChangeType = domain.ChangeLateral
		return validation, domain.ErrSameCreditLimit
	}

	if (target.Tier.Rank() > currentPlan.Tier.Rank()) != (target.CreditLimit > currentPlan.CreditLimit) {
		s.log.Warn("plan tier order disagrees with credit limits",
			zap.String("current_plan", currentPlan.Code),
			zap.String("target_plan", target.Code),
		)
	}

	if target.CreditLimit > currentPlan.CreditLimit {
		validation.ChangeType = domain.ChangeUpgrade
		validation.Allowed = true
		return validation, nil
	}
	validation.ChangeType = domain.ChangeDowngrade

	policy := config.DefaultLimitsConfig()
	if s.limits != nil {
		policy = s.limits.Get()
	}
	if monthsActive >= policy.DowngradeMinMonths || completedPayments >= int64(policy.DowngradeMinPayments) {
		validation.Allowed = true
		return validation, nil
	}

	eligibleAt := current.StartedAt.AddDate(0, policy.DowngradeMinMonths, 0)
	validation.EligibleAt = &eligibleAt
	return validation, &domain.DowngradeLockedError{
		MonthsActive:      monthsActive,
		CompletedPayments: completedPayments,
		EligibleAt:        eligibleAt,
	}
}

// wholeMonthsBetween counts full calendar months elapsed from start to
// now, anchored to the start's day of month.
func wholeMonthsBetween(start, now time.Time) int {
	if now.Before(start) {
		return 0
	}
	months := (now.Year()-start.Year())*12 + int(now.Month()) - int(start.Month())
	if months > 0 && now.Before(start.AddDate(0, months, 0)) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
