// Package domain contains payment records and the webhook event log
// used to deduplicate provider deliveries.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type Payment struct {
	ID     snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID snowflake.ID  `gorm:"not null;index" json:"user_id"`
	PlanID *snowflake.ID `gorm:"index" json:"plan_id,omitempty"`

	AmountCents int64  `gorm:"not null" json:"amount_cents"`
	Currency    string `gorm:"type:text;not null;default:usd" json:"currency"`

	Provider          string        `gorm:"type:text;not null" json:"provider"`
	ProviderPaymentID *string       `gorm:"type:text;uniqueIndex" json:"provider_payment_id,omitempty"`
	Status            PaymentStatus `gorm:"type:text;not null;index" json:"status"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// WebhookEvent is the dedup gate for provider deliveries. The unique
// (provider, event_id) pair turns redelivery into a no-op.
type WebhookEvent struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	Provider  string         `gorm:"type:text;not null;uniqueIndex:ux_webhook_provider_event,priority:1" json:"provider"`
	EventID   string         `gorm:"type:text;not null;uniqueIndex:ux_webhook_provider_event,priority:2" json:"event_id"`
	EventType string         `gorm:"type:text;not null" json:"event_type"`
	Payload   datatypes.JSON `gorm:"type:jsonb" json:"payload"`

	ReceivedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"received_at"`
}

// TableName sets the database table name.
func (WebhookEvent) TableName() string { return "payment_webhook_events" }
