// Package domain contains the plan catalog models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tier orders plans for upgrade/downgrade detection.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// Rank maps a tier onto the strict total order free < basic < premium < enterprise.
func (t Tier) Rank() int {
	switch t {
	case TierFree:
		return 0
	case TierBasic:
		return 1
	case TierPremium:
		return 2
	case TierEnterprise:
		return 3
	default:
		return -1
	}
}

// Plan is a catalog row describing a purchasable package and the
// free-quota profile it confers.
type Plan struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	Code               string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name               string       `gorm:"type:text;not null" json:"name"`
	Tier               Tier         `gorm:"type:text;not null" json:"tier"`
	CreditLimit        int          `gorm:"not null" json:"credit_limit"`
	PriceMonthlyCents  int64        `gorm:"not null;default:0" json:"price_monthly_cents"`
	IsSubscription     bool         `gorm:"not null;default:false" json:"is_subscription"`
	DailyLimit         int          `gorm:"not null" json:"daily_limit"`
	ResetIntervalHours int          `gorm:"not null;default:24" json:"reset_interval_hours"`
	Active             bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }
