package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/clock"
	"github.com/cardlens/creditd/internal/config"
	entitlementdomain "github.com/cardlens/creditd/internal/entitlement/domain"
	"github.com/cardlens/creditd/internal/observability/metrics"
	"github.com/cardlens/creditd/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	Config       config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Node         *snowflake.Node
	Repo         domain.Repository
	Entitlements entitlementdomain.Service
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	secret       string
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	node         *snowflake.Node
	repo         domain.Repository
	entitlements entitlementdomain.Service
	metrics      *metrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		secret:       p.Config.WebhookSecret,
		db:           p.DB,
		log:          p.Log.Named("payment.service"),
		clock:        p.Clock,
		node:         p.Node,
		repo:         p.Repo,
		entitlements: p.Entitlements,
		metrics:      p.Metrics,
	}
}

type webhookEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type checkoutCompletedData struct {
	UserID         string  `json:"user_id"`
	PlanID         string  `json:"plan_id"`
	Credits        int     `json:"credits"`
	AmountCents    int64   `json:"amount_cents"`
	Currency       string  `json:"currency"`
	PaymentID      string  `json:"payment_id"`
	SubscriptionID *string `json:"subscription_id,omitempty"`
	ExpiresAt      *int64  `json:"expires_at,omitempty"`
}

type subscriptionUpdatedData struct {
	SubscriptionID     string `json:"subscription_id"`
	Status             string `json:"status"`
	CurrentPeriodStart *int64 `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *int64 `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  *bool  `json:"cancel_at_period_end,omitempty"`
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, signature string) (*domain.WebhookResult, error) {
	if err := s.verifySignature(payload, signature); err != nil {
		s.metrics.RecordWebhookEvent(ctx, "unknown", "bad_signature")
		return nil, err
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if envelope.ID == "" || envelope.Type == "" {
		return nil, domain.ErrInvalidPayload
	}

	event := &domain.WebhookEvent{
		ID:         s.node.Generate(),
		Provider:   strings.TrimSpace(provider),
		EventID:    envelope.ID,
		EventType:  envelope.Type,
		Payload:    payload,
		ReceivedAt: s.clock.Now(),
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, event)
	if err != nil {
		return nil, err
	}
	if !inserted {
		s.metrics.RecordWebhookEvent(ctx, envelope.Type, "duplicate")
		return nil, domain.ErrEventAlreadyProcessed
	}

	if err := s.handle(ctx, event, envelope); err != nil {
		// release the dedup slot so the provider's retry can succeed
		if delErr := s.repo.DeleteEvent(ctx, s.db, event.ID); delErr != nil {
			s.log.Error("failed to release webhook event after handler error",
				zap.String("event_id", envelope.ID), zap.Error(delErr))
		}
		s.metrics.RecordWebhookEvent(ctx, envelope.Type, "error")
		return nil, err
	}

	s.metrics.RecordWebhookEvent(ctx, envelope.Type, "ok")
	s.log.Info("webhook applied",
		zap.String("provider", event.Provider),
		zap.String("event_id", envelope.ID),
		zap.String("event_type", envelope.Type),
	)
	return &domain.WebhookResult{EventID: envelope.ID, EventType: envelope.Type}, nil
}

func (s *Service) handle(ctx context.Context, event *domain.WebhookEvent, envelope webhookEnvelope) error {
	switch envelope.Type {
	case domain.EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, event, envelope.Data)
	case domain.EventSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, envelope.Data)
	default:
		return domain.ErrUnsupportedEventType
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *domain.WebhookEvent, data json.RawMessage) error {
	var checkout checkoutCompletedData
	if err := json.Unmarshal(data, &checkout); err != nil {
		return domain.ErrInvalidPayload
	}

	var expiresAt *time.Time
	if checkout.ExpiresAt != nil {
		t := time.Unix(*checkout.ExpiresAt, 0).UTC()
		expiresAt = &t
	}

	entitlement, err := s.entitlements.ApplyPurchase(ctx, entitlementdomain.ApplyPurchaseRequest{
		UserID:               checkout.UserID,
		PlanID:               checkout.PlanID,
		CreditsPurchased:     checkout.Credits,
		StripeSubscriptionID: checkout.SubscriptionID,
		ExpiresAt:            expiresAt,
	})
	if err != nil {
		return err
	}

	currency := strings.ToLower(strings.TrimSpace(checkout.Currency))
	if currency == "" {
		currency = "usd"
	}
	payment := &domain.Payment{
		ID:          s.node.Generate(),
		UserID:      entitlement.UserID,
		PlanID:      &entitlement.PlanID,
		AmountCents: checkout.AmountCents,
		Currency:    currency,
		Provider:    event.Provider,
		Status:      domain.PaymentStatusCompleted,
		CreatedAt:   s.clock.Now(),
		UpdatedAt:   s.clock.Now(),
	}
	if checkout.PaymentID != "" {
		payment.ProviderPaymentID = &checkout.PaymentID
	}
	return s.repo.InsertPayment(ctx, s.db, payment)
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, data json.RawMessage) error {
	var sub subscriptionUpdatedData
	if err := json.Unmarshal(data, &sub); err != nil {
		return domain.ErrInvalidPayload
	}

	event := entitlementdomain.SubscriptionEvent{
		StripeSubscriptionID: sub.SubscriptionID,
		Status:               sub.Status,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodStart != nil {
		t := time.Unix(*sub.CurrentPeriodStart, 0).UTC()
		event.CurrentPeriodStart = &t
	}
	if sub.CurrentPeriodEnd != nil {
		t := time.Unix(*sub.CurrentPeriodEnd, 0).UTC()
		event.CurrentPeriodEnd = &t
	}
	return s.entitlements.ApplySubscriptionEvent(ctx, event)
}

func (s *Service) CountCompletedPayments(ctx context.Context, userID string) (int64, error) {
	uid, err := snowflake.ParseString(strings.TrimSpace(userID))
	if err != nil {
		return 0, entitlementdomain.ErrInvalidUser
	}
	return s.repo.CountCompletedByUser(ctx, s.db, uid)
}

// verifySignature checks the hex HMAC-SHA256 of the raw body. An empty
// configured secret disables verification for local development.
func (s *Service) verifySignature(payload []byte, signature string) error {
	if s.secret == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
		return domain.ErrInvalidSignature
	}
	return nil
}
