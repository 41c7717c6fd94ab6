// Package domain defines the anonymous-to-user migration executed at
// signup.
package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidUser     = errors.New("invalid_user")
	ErrInvalidIdentity = errors.New("invalid_anonymous_identity")
)

type MigrateRequest struct {
	UserID string `json:"user_id"`

	// SessionID re-homes contact records captured before signup.
	SessionID string `json:"session_id,omitempty"`

	IPAddress   string `json:"ip_address"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

type MigrationResult struct {
	// QuotaMerged is true when the user already had a usage row and the
	// anonymous row's consumption was folded into it.
	QuotaMerged        bool  `json:"quota_merged"`
	CreditsUsedCarried int   `json:"credits_used_carried"`
	LedgerEntriesMoved int64 `json:"ledger_entries_moved"`
	ContactsMoved      int64 `json:"contacts_moved"`

	// AlreadyMigrated is true when nothing remained under the anonymous
	// identity, typically a repeated call.
	AlreadyMigrated bool `json:"already_migrated"`
}

type Service interface {
	// MigrateAnonymousToUser moves quota consumption, ledger history and
	// contacts from an anonymous identity to the user, in one
	// transaction. Calling it again is a no-op.
	MigrateAnonymousToUser(ctx context.Context, req MigrateRequest) (*MigrationResult, error)
}
