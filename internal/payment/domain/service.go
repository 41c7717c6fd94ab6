package domain

import (
	"context"
	"errors"
)

var (
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrInvalidSignature      = errors.New("invalid_webhook_signature")
	ErrInvalidPayload        = errors.New("invalid_webhook_payload")
	ErrUnsupportedEventType  = errors.New("unsupported_event_type")
)

// Supported provider event types.
const (
	EventCheckoutCompleted   = "checkout.completed"
	EventSubscriptionUpdated = "subscription.updated"
)

type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
}

type Service interface {
	// IngestWebhook verifies, deduplicates and applies one provider
	// delivery. Redelivered events return ErrEventAlreadyProcessed so
	// transports can acknowledge without reapplying.
	IngestWebhook(ctx context.Context, provider string, payload []byte, signature string) (*WebhookResult, error)

	CountCompletedPayments(ctx context.Context, userID string) (int64, error)
}
