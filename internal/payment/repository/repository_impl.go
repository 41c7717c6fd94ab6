package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/payment/domain"
	pkgdb "github.com/cardlens/creditd/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) CountCompletedByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("user_id = ? AND status = ?", userID, domain.PaymentStatusCompleted).
		Count(&count).Error
	return count, err
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.WebhookEvent) (bool, error) {
	if err := db.WithContext(ctx).Create(event).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repo) DeleteEvent(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM payment_webhook_events WHERE id = ?`, id,
	).Error
}
