// Package domain defines the combined-balance views and error types for
// spending across the free and purchased credit pools.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/identity"
	ledgerdomain "github.com/cardlens/creditd/internal/ledger/domain"
)

// ErrConflict is returned when concurrent writers exhausted the retry
// budget; the caller may safely retry the whole operation.
var ErrConflict = errors.New("concurrent_update_conflict")

var (
	ErrInvalidAmount         = errors.New("invalid_credit_amount")
	ErrMissingIdempotencyKey = errors.New("missing_idempotency_key")
	ErrInvalidOperationType  = errors.New("invalid_operation_type")
)

// InsufficientCreditsError reports a rejected all-or-nothing deduction.
// Neither pool was touched.
type InsufficientCreditsError struct {
	Needed           int `json:"needed"`
	FreeAvailable    int `json:"free_available"`
	PackageAvailable int `json:"package_available"`
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient_credits: need %d, free %d, package %d",
		e.Needed, e.FreeAvailable, e.PackageAvailable)
}

// FreeQuotaView is the caller-facing state of the windowed free pool.
type FreeQuotaView struct {
	DailyLimit       int       `json:"daily_limit"`
	CreditsUsed      int       `json:"credits_used"`
	CreditsRemaining int       `json:"credits_remaining"`
	ResetsAt         time.Time `json:"resets_at"`
}

// PackageQuotaView is the caller-facing state of the purchased pool.
type PackageQuotaView struct {
	PackageID        snowflake.ID `json:"package_id"`
	PlanID           snowflake.ID `json:"plan_id"`
	CreditsRemaining int          `json:"credits_remaining"`
	CreditsUsed      int          `json:"credits_used"`
	ExpiresAt        *time.Time   `json:"expires_at,omitempty"`
}

// Snapshot combines both pools for one accounting identity.
type Snapshot struct {
	IdentityKey    string            `json:"identity_key"`
	Free           FreeQuotaView     `json:"free"`
	Package        *PackageQuotaView `json:"package,omitempty"`
	TotalRemaining int               `json:"total_remaining"`
}

type DeductRequest struct {
	Identity identity.AccountingIdentity
	Credits  int

	// OperationType attributes the spend to a feature (card_scan,
	// batch_scan, export). Empty means a plain deduct.
	OperationType ledgerdomain.OperationType

	IdempotencyKey *string
	Details        map[string]any
}

type DeductResult struct {
	FreeConsumed    int          `json:"free_consumed"`
	PackageConsumed int          `json:"package_consumed"`
	LedgerEntryID   snowflake.ID `json:"ledger_entry_id"`
	AlreadyApplied  bool         `json:"already_applied"`
	Snapshot        *Snapshot    `json:"snapshot,omitempty"`
}

type RefundRequest struct {
	Identity identity.AccountingIdentity
	Credits  int

	// OperationType names the spend kind being reversed, recorded in
	// the reversal entry's details.
	OperationType ledgerdomain.OperationType

	IdempotencyKey string
	Details        map[string]any
}

type RefundResult struct {
	FreeReturned    int          `json:"free_returned"`
	PackageReturned int          `json:"package_returned"`
	LedgerEntryID   snowflake.ID `json:"ledger_entry_id"`
	AlreadyApplied  bool         `json:"already_applied"`
}
