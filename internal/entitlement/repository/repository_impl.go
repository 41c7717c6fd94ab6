package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/entitlement/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entitlement *domain.PackageEntitlement) error {
	return db.WithContext(ctx).Create(entitlement).Error
}

func (r *repo) FindActiveByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.PackageEntitlement, error) {
	var entitlement domain.PackageEntitlement
	err := db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("started_at DESC").
		Take(&entitlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entitlement, nil
}

func (r *repo) FindByStripeSubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.PackageEntitlement, error) {
	var entitlement domain.PackageEntitlement
	err := db.WithContext(ctx).
		Where("stripe_subscription_id = ?", subscriptionID).
		Take(&entitlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entitlement, nil
}

func (r *repo) Deduct(ctx context.Context, db *gorm.DB, id snowflake.ID, n int, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE package_entitlements
		 SET credits_remaining = credits_remaining - ?, credits_used = credits_used + ?, updated_at = ?
		 WHERE id = ? AND is_active = ? AND credits_remaining >= ?`,
		n, n, now, id, true, n,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) AddCredits(ctx context.Context, db *gorm.DB, id snowflake.ID, n int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE package_entitlements
		 SET credits_remaining = credits_remaining + ?, updated_at = ?
		 WHERE id = ?`,
		n, now, id,
	).Error
}

func (r *repo) Refund(ctx context.Context, db *gorm.DB, id snowflake.ID, n int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE package_entitlements
		 SET credits_remaining = credits_remaining + ?,
		     credits_used = CASE WHEN credits_used > ? THEN credits_used - ? ELSE 0 END,
		     updated_at = ?
		 WHERE id = ?`,
		n, n, n, now, id,
	).Error
}

func (r *repo) DeactivateByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE package_entitlements
		 SET is_active = ?, updated_at = ?
		 WHERE user_id = ? AND is_active = ?`,
		false, now, userID, true,
	).Error
}

func (r *repo) UpdateSubscriptionState(ctx context.Context, db *gorm.DB, id snowflake.ID, state domain.SubscriptionStateUpdate, now time.Time) error {
	updates := map[string]any{
		"subscription_status": string(state.Status),
		"is_active":           state.IsActive,
		"updated_at":          now,
	}
	if state.CurrentPeriodStart != nil {
		updates["current_period_start"] = *state.CurrentPeriodStart
	}
	if state.CurrentPeriodEnd != nil {
		updates["current_period_end"] = *state.CurrentPeriodEnd
	}
	if state.CancelAtPeriodEnd != nil {
		updates["cancel_at_period_end"] = *state.CancelAtPeriodEnd
	}
	return db.WithContext(ctx).
		Model(&domain.PackageEntitlement{}).
		Where("id = ?", id).
		Updates(updates).Error
}
