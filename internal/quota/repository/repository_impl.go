package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/quota/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, usage *domain.FreeQuotaUsage) error {
	return db.WithContext(ctx).Create(usage).Error
}

func (r *repo) FindByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.FreeQuotaUsage, error) {
	var usage domain.FreeQuotaUsage
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&usage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &usage, nil
}

func (r *repo) FindByAnonymous(ctx context.Context, db *gorm.DB, ipAddress, fingerprint string) (*domain.FreeQuotaUsage, error) {
	var usage domain.FreeQuotaUsage
	err := db.WithContext(ctx).
		Where("user_id IS NULL AND ip_address = ? AND fingerprint = ?", ipAddress, fingerprint).
		Take(&usage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &usage, nil
}

func (r *repo) ResetIfDue(ctx context.Context, db *gorm.DB, id snowflake.ID, observedLastReset, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE free_quota_usages
		 SET credits_used = 0, last_reset = ?, updated_at = ?
		 WHERE id = ? AND last_reset = ?`,
		now, now, id, observedLastReset,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Deduct(ctx context.Context, db *gorm.DB, id snowflake.ID, n, dailyLimit int, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE free_quota_usages
		 SET credits_used = credits_used + ?, updated_at = ?
		 WHERE id = ? AND credits_used + ? <= ?`,
		n, now, id, n, dailyLimit,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Refund(ctx context.Context, db *gorm.DB, id snowflake.ID, n int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE free_quota_usages
		 SET credits_used = CASE WHEN credits_used > ? THEN credits_used - ? ELSE 0 END,
		     updated_at = ?
		 WHERE id = ?`,
		n, n, now, id,
	).Error
}

func (r *repo) AssignToUser(ctx context.Context, db *gorm.DB, id, userID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE free_quota_usages
		 SET user_id = ?, ip_address = NULL, fingerprint = NULL, updated_at = ?
		 WHERE id = ? AND user_id IS NULL`,
		userID, now, id,
	).Error
}

func (r *repo) MergeUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, addUsed int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE free_quota_usages
		 SET credits_used = credits_used + ?, updated_at = ?
		 WHERE id = ?`,
		addUsed, now, id,
	).Error
}

func (r *repo) DeleteByID(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM free_quota_usages WHERE id = ?`, id,
	).Error
}
