// Package domain contains the append-only usage ledger. Entries are
// never updated or deleted; corrections are written as reversal rows.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type OperationType string

const (
	OperationDeduct    OperationType = "deduct"
	OperationReversal  OperationType = "reversal"
	OperationPurchase  OperationType = "purchase"
	OperationBonus     OperationType = "bonus"
	OperationMigration OperationType = "migration"

	// Spend kinds callers attribute a deduction to. They consume
	// credits exactly like a plain deduct but keep per-feature stats
	// meaningful.
	OperationCardScan  OperationType = "card_scan"
	OperationBatchScan OperationType = "batch_scan"
	OperationExport    OperationType = "export"
)

// Spend reports whether the operation consumes credits.
func (op OperationType) Spend() bool {
	switch op {
	case OperationDeduct, OperationCardScan, OperationBatchScan, OperationExport:
		return true
	default:
		return false
	}
}

// SpendOperations lists every credit-consuming operation kind.
func SpendOperations() []OperationType {
	return []OperationType{OperationDeduct, OperationCardScan, OperationBatchScan, OperationExport}
}

type UsageLedgerEntry struct {
	ID snowflake.ID `gorm:"primaryKey" json:"id"`

	// IdentityKey is the resolved accounting identity at write time.
	// Migration rewrites it on historical rows so a user's ledger stays
	// contiguous across the anonymous boundary.
	IdentityKey string        `gorm:"not null;index" json:"identity_key"`
	UserID      *snowflake.ID `gorm:"index" json:"user_id,omitempty"`
	IPAddress   *string       `gorm:"type:text" json:"ip_address,omitempty"`
	Fingerprint *string       `gorm:"type:text" json:"fingerprint,omitempty"`

	OperationType OperationType `gorm:"type:text;not null;index" json:"operation_type"`
	PackageID     *snowflake.ID `gorm:"index" json:"package_id,omitempty"`

	CreditsConsumed        int `gorm:"not null;default:0" json:"credits_consumed"`
	FreeCreditsConsumed    int `gorm:"not null;default:0" json:"free_credits_consumed"`
	PackageCreditsConsumed int `gorm:"not null;default:0" json:"package_credits_consumed"`

	IdempotencyKey *string           `gorm:"type:text;uniqueIndex" json:"idempotency_key,omitempty"`
	Details        datatypes.JSONMap `gorm:"type:jsonb" json:"details,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (UsageLedgerEntry) TableName() string { return "usage_ledger_entries" }
