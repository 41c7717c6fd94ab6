package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/pkg/db/pagination"
	"gorm.io/gorm"
)

var (
	ErrInvalidEntry     = errors.New("invalid_ledger_entry")
	ErrDuplicateEntry   = errors.New("duplicate_ledger_entry")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)

type ListRequest struct {
	IdentityKey   string        `form:"identity_key"`
	OperationType OperationType `form:"operation_type"`
	pagination.Pagination
}

type MonthTotal struct {
	Month           string `json:"month"`
	CreditsConsumed int    `json:"credits_consumed"`
}

type Stats struct {
	TotalConsumed int                   `json:"total_consumed"`
	ByOperation   map[OperationType]int `json:"by_operation"`
	ByMonth       []MonthTotal          `json:"by_month"`
}

type StatsRequest struct {
	IdentityKey string     `form:"identity_key"`
	From        *time.Time `form:"from" time_format:"2006-01-02"`
	To          *time.Time `form:"to" time_format:"2006-01-02"`
}

type Service interface {
	// Record appends an entry inside the caller's transaction so the
	// ledger write commits or rolls back with the balance change.
	Record(ctx context.Context, tx *gorm.DB, entry *UsageLedgerEntry) error

	FindByIdempotencyKey(ctx context.Context, tx *gorm.DB, key string) (*UsageLedgerEntry, error)

	// ReassignIdentity re-attributes historical entries to a user during
	// anonymous account migration.
	ReassignIdentity(ctx context.Context, tx *gorm.DB, fromKey string, userID snowflake.ID, toKey string) (int64, error)
	List(ctx context.Context, req ListRequest) ([]*UsageLedgerEntry, *pagination.PageInfo, error)
	Stats(ctx context.Context, req StatsRequest) (*Stats, error)
}
