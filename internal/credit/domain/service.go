package domain

import (
	"context"

	"github.com/cardlens/creditd/internal/identity"
)

type Service interface {
	// GetFreeQuota reads the identity's free pool, creating the row on
	// first sight and applying any due lazy reset.
	GetFreeQuota(ctx context.Context, id identity.AccountingIdentity) (*FreeQuotaView, error)

	// GetPackageQuota returns the purchased pool, or nil for identities
	// without an active package.
	GetPackageQuota(ctx context.Context, id identity.AccountingIdentity) (*PackageQuotaView, error)

	Snapshot(ctx context.Context, id identity.AccountingIdentity) (*Snapshot, error)

	// CanSpend is advisory only; a later Deduct may still fail.
	CanSpend(ctx context.Context, id identity.AccountingIdentity, credits int) (bool, *Snapshot, error)

	// Deduct spends credits atomically across both pools, free first.
	// Either the full amount is taken and a ledger entry written, or
	// nothing changes.
	Deduct(ctx context.Context, req DeductRequest) (*DeductResult, error)

	// Refund compensates an earlier deduction, package pool first. The
	// idempotency key makes provider retries safe.
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}
