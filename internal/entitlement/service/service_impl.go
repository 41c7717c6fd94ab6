package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/clock"
	"github.com/cardlens/creditd/internal/entitlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Node  *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	node  *snowflake.Node
	repo  domain.Repository
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("entitlement.service"),
		clock: p.Clock,
		node:  p.Node,
		repo:  p.Repo,
	}
}

func (s *Service) GetActive(ctx context.Context, userID string) (*domain.PackageEntitlement, error) {
	uid, err := snowflake.ParseString(strings.TrimSpace(userID))
	if err != nil {
		return nil, domain.ErrInvalidUser
	}
	return s.repo.FindActiveByUser(ctx, s.db, uid)
}

// ApplyPurchase records a completed purchase inside one transaction.
// A purchase for the plan already active tops up the existing pool; a
// purchase for a different plan retires the old package and starts a
// fresh one, keeping a single active row per user.
func (s *Service) ApplyPurchase(ctx context.Context, req domain.ApplyPurchaseRequest) (*domain.PackageEntitlement, error) {
	uid, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil {
		return nil, domain.ErrInvalidUser
	}
	planID, err := snowflake.ParseString(strings.TrimSpace(req.PlanID))
	if err != nil {
		return nil, domain.ErrInvalidPlan
	}
	if req.CreditsPurchased <= 0 {
		return nil, domain.ErrInvalidCredits
	}

	now := s.clock.Now()

	var result *domain.PackageEntitlement
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindActiveByUser(ctx, tx, uid)
		if err != nil {
			return err
		}

		if current != nil && current.PlanID == planID {
			if err := s.repo.AddCredits(ctx, tx, current.ID, req.CreditsPurchased, now); err != nil {
				return err
			}
			current.CreditsRemaining += req.CreditsPurchased
			current.UpdatedAt = now
			result = current
			return nil
		}

		if current != nil {
			if err := s.repo.DeactivateByUser(ctx, tx, uid, now); err != nil {
				return err
			}
		}

		entitlement := &domain.PackageEntitlement{
			ID:                   s.node.Generate(),
			UserID:               uid,
			PlanID:               planID,
			CreditsRemaining:     req.CreditsPurchased,
			IsActive:             true,
			StartedAt:            now,
			ExpiresAt:            req.ExpiresAt,
			StripeSubscriptionID: req.StripeSubscriptionID,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if req.StripeSubscriptionID != nil {
			status := domain.SubscriptionStatusActive
			entitlement.SubscriptionStatus = &status
		}
		if err := s.repo.Insert(ctx, tx, entitlement); err != nil {
			return err
		}
		result = entitlement
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("purchase applied",
		zap.String("user_id", uid.String()),
		zap.String("plan_id", planID.String()),
		zap.Int("credits", req.CreditsPurchased),
	)
	return result, nil
}

func (s *Service) ApplySubscriptionEvent(ctx context.Context, event domain.SubscriptionEvent) error {
	subscriptionID := strings.TrimSpace(event.StripeSubscriptionID)
	if subscriptionID == "" {
		return domain.ErrInvalidSubscriptionData
	}
	status, ok := parseSubscriptionStatus(event.Status)
	if !ok {
		return domain.ErrInvalidSubscriptionData
	}

	entitlement, err := s.repo.FindByStripeSubscriptionID(ctx, s.db, subscriptionID)
	if err != nil {
		return err
	}
	if entitlement == nil {
		return domain.ErrSubscriptionNotFound
	}

	// Only a live subscription keeps the package spendable. past_due
	// suspends it until the provider reports recovery.
	state := domain.SubscriptionStateUpdate{
		Status:             status,
		IsActive:           status == domain.SubscriptionStatusActive,
		CurrentPeriodStart: event.CurrentPeriodStart,
		CurrentPeriodEnd:   event.CurrentPeriodEnd,
		CancelAtPeriodEnd:  event.CancelAtPeriodEnd,
	}
	if err := s.repo.UpdateSubscriptionState(ctx, s.db, entitlement.ID, state, s.clock.Now()); err != nil {
		return err
	}

	s.log.Info("subscription state applied",
		zap.String("subscription_id", subscriptionID),
		zap.String("status", string(status)),
		zap.Bool("is_active", state.IsActive),
	)
	return nil
}

func (s *Service) AddBonusCredits(ctx context.Context, userID string, n int) error {
	uid, err := snowflake.ParseString(strings.TrimSpace(userID))
	if err != nil {
		return domain.ErrInvalidUser
	}
	if n <= 0 {
		return domain.ErrInvalidCredits
	}

	entitlement, err := s.repo.FindActiveByUser(ctx, s.db, uid)
	if err != nil {
		return err
	}
	if entitlement == nil {
		return domain.ErrPackageNotFound
	}
	return s.repo.AddCredits(ctx, s.db, entitlement.ID, n, s.clock.Now())
}

func parseSubscriptionStatus(raw string) (domain.SubscriptionStatus, bool) {
	switch domain.SubscriptionStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case domain.SubscriptionStatusActive:
		return domain.SubscriptionStatusActive, true
	case domain.SubscriptionStatusPastDue:
		return domain.SubscriptionStatusPastDue, true
	case domain.SubscriptionStatusCanceled:
		return domain.SubscriptionStatusCanceled, true
	case domain.SubscriptionStatusUnpaid:
		return domain.SubscriptionStatusUnpaid, true
	default:
		return "", false
	}
}
