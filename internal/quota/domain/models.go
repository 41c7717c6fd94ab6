// Package domain contains persistence models for the time-windowed free
// credit pool.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// FreeQuotaUsage tracks one identity's consumption inside the current
// reset window. Exactly one row exists per accounting identity: keyed by
// user_id for authenticated callers, by (ip_address, fingerprint) with a
// null user_id for anonymous ones.
//
// Resets are lazy. A row whose window has elapsed keeps its stale
// credits_used until the next read observes `now - last_reset >=
// reset_interval_hours` and zeroes it; no background job is involved.
type FreeQuotaUsage struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID      *snowflake.ID `gorm:"uniqueIndex:ux_free_quota_user" json:"user_id,omitempty"`
	IPAddress   *string       `gorm:"type:text;uniqueIndex:ux_free_quota_anon,priority:1" json:"ip_address,omitempty"`
	Fingerprint *string       `gorm:"type:text;uniqueIndex:ux_free_quota_anon,priority:2" json:"fingerprint,omitempty"`

	CreditsUsed        int       `gorm:"not null;default:0" json:"credits_used"`
	LastReset          time.Time `gorm:"not null" json:"last_reset"`
	ResetIntervalHours int       `gorm:"not null;default:24" json:"reset_interval_hours"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (FreeQuotaUsage) TableName() string { return "free_quota_usages" }

// ResetDue reports whether the reset window has elapsed.
func (u FreeQuotaUsage) ResetDue(now time.Time) bool {
	interval := u.ResetIntervalHours
	if interval <= 0 {
		interval = 24
	}
	return now.Sub(u.LastReset) >= time.Duration(interval)*time.Hour
}
