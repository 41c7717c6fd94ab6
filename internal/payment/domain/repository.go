package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error

	// CountCompletedByUser feeds the downgrade eligibility check.
	CountCompletedByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error)

	// InsertEvent reports false when the (provider, event_id) pair was
	// already recorded.
	InsertEvent(ctx context.Context, db *gorm.DB, event *WebhookEvent) (bool, error)
	DeleteEvent(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
