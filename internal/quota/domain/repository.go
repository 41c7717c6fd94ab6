package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository owns all writes to free_quota_usages. Every mutation is a
// single conditional UPDATE so concurrent requests for the same identity
// cannot double-spend or double-reset; callers check the returned
// applied flag instead of read-modify-writing.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, usage *FreeQuotaUsage) error
	FindByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*FreeQuotaUsage, error)
	FindByAnonymous(ctx context.Context, db *gorm.DB, ipAddress, fingerprint string) (*FreeQuotaUsage, error)

	// ResetIfDue zeroes credits_used guarded on the last_reset the caller
	// observed. A false return means another request reset first.
	ResetIfDue(ctx context.Context, db *gorm.DB, id snowflake.ID, observedLastReset, now time.Time) (bool, error)

	// Deduct spends n credits guarded on the daily limit; false means the
	// guard failed (insufficient room or a concurrent winner).
	Deduct(ctx context.Context, db *gorm.DB, id snowflake.ID, n, dailyLimit int, now time.Time) (bool, error)

	// Refund returns up to n credits, flooring at zero.
	Refund(ctx context.Context, db *gorm.DB, id snowflake.ID, n int, now time.Time) error

	// AssignToUser rekeys an anonymous row onto a user during migration.
	AssignToUser(ctx context.Context, db *gorm.DB, id, userID snowflake.ID, now time.Time) error

	// MergeUsage folds an absorbed anonymous row's usage into an existing
	// user row, then the anonymous row is deleted via DeleteByID.
	MergeUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, addUsed int, now time.Time) error
	DeleteByID(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
