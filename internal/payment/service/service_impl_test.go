package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/clock"
	"github.com/cardlens/creditd/internal/config"
	entitlementdomain "github.com/cardlens/creditd/internal/entitlement/domain"
	entitlementrepo "github.com/cardlens/creditd/internal/entitlement/repository"
	entitlementservice "github.com/cardlens/creditd/internal/entitlement/service"
	"github.com/cardlens/creditd/internal/payment/domain"
	"github.com/cardlens/creditd/internal/payment/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_test"

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Payment{},
		&domain.WebhookEvent{},
		&entitlementdomain.PackageEntitlement{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))

	entitlements := entitlementservice.NewService(entitlementservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fc,
		Node:  node,
		Repo:  entitlementrepo.Provide(),
	})

	svc := NewService(ServiceParam{
		Config:       config.Config{WebhookSecret: testSecret},
		DB:           db,
		Log:          zap.NewNop(),
		Clock:        fc,
		Node:         node,
		Repo:         repository.Provide(),
		Entitlements: entitlements,
	}).(*Service)
	return svc, db
}

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func checkoutPayload(eventID string, userID, planID snowflake.ID, credits int) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":"checkout.completed","data":{"user_id":%q,"plan_id":%q,"credits":%d,"amount_cents":1999,"currency":"USD","payment_id":"pi_1"}}`,
		eventID, userID.String(), planID.String(), credits,
	))
}

func TestIngestCheckoutCompleted(t *testing.T) {
	svc, db := newTestService(t)
	payload := checkoutPayload("evt_1", 101, 201, 500)

	res, err := svc.IngestWebhook(context.Background(), "stripe", payload, sign(payload))
	require.NoError(t, err)
	require.Equal(t, "evt_1", res.EventID)
	require.Equal(t, domain.EventCheckoutCompleted, res.EventType)

	var entitlement entitlementdomain.PackageEntitlement
	require.NoError(t, db.First(&entitlement, "user_id = ?", snowflake.ID(101)).Error)
	require.Equal(t, 500, entitlement.CreditsRemaining)

	var payment domain.Payment
	require.NoError(t, db.First(&payment, "user_id = ?", snowflake.ID(101)).Error)
	require.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	require.Equal(t, "usd", payment.Currency)
	require.EqualValues(t, 1999, payment.AmountCents)

	count, err := svc.CountCompletedPayments(context.Background(), snowflake.ID(101).String())
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestIngestDuplicateEvent(t *testing.T) {
	svc, db := newTestService(t)
	payload := checkoutPayload("evt_1", 101, 201, 500)

	_, err := svc.IngestWebhook(context.Background(), "stripe", payload, sign(payload))
	require.NoError(t, err)

	_, err = svc.IngestWebhook(context.Background(), "stripe", payload, sign(payload))
	require.ErrorIs(t, err, domain.ErrEventAlreadyProcessed)

	// the purchase was applied exactly once
	var entitlement entitlementdomain.PackageEntitlement
	require.NoError(t, db.First(&entitlement, "user_id = ?", snowflake.ID(101)).Error)
	require.Equal(t, 500, entitlement.CreditsRemaining)
}

func TestIngestBadSignature(t *testing.T) {
	svc, _ := newTestService(t)
	payload := checkoutPayload("evt_1", 101, 201, 500)

	_, err := svc.IngestWebhook(context.Background(), "stripe", payload, "deadbeef")
	require.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestIngestUnsupportedEventType(t *testing.T) {
	svc, _ := newTestService(t)
	payload := []byte(`{"id":"evt_9","type":"invoice.paid","data":{}}`)

	_, err := svc.IngestWebhook(context.Background(), "stripe", payload, sign(payload))
	require.ErrorIs(t, err, domain.ErrUnsupportedEventType)
}

func TestHandlerFailureReleasesDedupSlot(t *testing.T) {
	svc, _ := newTestService(t)

	// no entitlement carries this subscription yet, so the handler fails
	payload := []byte(`{"id":"evt_2","type":"subscription.updated","data":{"subscription_id":"sub_1","status":"canceled"}}`)
	_, err := svc.IngestWebhook(context.Background(), "stripe", payload, sign(payload))
	require.ErrorIs(t, err, entitlementdomain.ErrSubscriptionNotFound)

	// create the entitlement, then the provider retry succeeds
	checkout := []byte(`{"id":"evt_1","type":"checkout.completed","data":{"user_id":"101","plan_id":"201","credits":500,"payment_id":"pi_1","subscription_id":"sub_1"}}`)
	_, err = svc.IngestWebhook(context.Background(), "stripe", checkout, sign(checkout))
	require.NoError(t, err)

	_, err = svc.IngestWebhook(context.Background(), "stripe", payload, sign(payload))
	require.NoError(t, err)
}

func TestSubscriptionUpdatedAppliesState(t *testing.T) {
	svc, db := newTestService(t)

	checkout := []byte(`{"id":"evt_1","type":"checkout.completed","data":{"user_id":"101","plan_id":"201","credits":500,"payment_id":"pi_1","subscription_id":"sub_1"}}`)
	_, err := svc.IngestWebhook(context.Background(), "stripe", checkout, sign(checkout))
	require.NoError(t, err)

	update := []byte(`{"id":"evt_2","type":"subscription.updated","data":{"subscription_id":"sub_1","status":"past_due","cancel_at_period_end":true}}`)
	_, err = svc.IngestWebhook(context.Background(), "stripe", update, sign(update))
	require.NoError(t, err)

	var entitlement entitlementdomain.PackageEntitlement
	require.NoError(t, db.First(&entitlement, "user_id = ?", snowflake.ID(101)).Error)
	require.Equal(t, entitlementdomain.SubscriptionStatusPastDue, *entitlement.SubscriptionStatus)
	require.True(t, entitlement.CancelAtPeriodEnd)
	require.False(t, entitlement.IsActive)
}
