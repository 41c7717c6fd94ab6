package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/clock"
	contactdomain "github.com/cardlens/creditd/internal/contact/domain"
	contactrepo "github.com/cardlens/creditd/internal/contact/repository"
	ledgerdomain "github.com/cardlens/creditd/internal/ledger/domain"
	ledgerservice "github.com/cardlens/creditd/internal/ledger/service"
	quotadomain "github.com/cardlens/creditd/internal/quota/domain"
	quotarepo "github.com/cardlens/creditd/internal/quota/repository"
	"github.com/cardlens/creditd/internal/transfer/domain"
	"github.com/cardlens/creditd/pkg/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   *Service
	db    *gorm.DB
	clock *clock.FakeClock
	node  *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&quotadomain.FreeQuotaUsage{},
		&ledgerdomain.UsageLedgerEntry{},
		&contactdomain.Contact{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, 7, 1, 14, 0, 0, 0, time.UTC))

	ledger := ledgerservice.NewService(ledgerservice.ServiceParam{
		DB: db, Log: zap.NewNop(), Clock: fc, Node: node,
		Store: repository.ProvideStore[ledgerdomain.UsageLedgerEntry](db),
	})

	svc := NewService(ServiceParam{
		DB: db, Log: zap.NewNop(), Clock: fc, Node: node,
		QuotaRepo: quotarepo.Provide(),
		Contacts:  contactrepo.Provide(),
		Ledger:    ledger,
	}).(*Service)
	return &fixture{svc: svc, db: db, clock: fc, node: node}
}

func (f *fixture) seedAnonymousUsage(t *testing.T, ip, fp string, used int) *quotadomain.FreeQuotaUsage {
	t.Helper()
	row := &quotadomain.FreeQuotaUsage{
		ID:                 f.node.Generate(),
		IPAddress:          &ip,
		Fingerprint:        &fp,
		CreditsUsed:        used,
		LastReset:          f.clock.Now(),
		ResetIntervalHours: 24,
	}
	require.NoError(t, f.db.Create(row).Error)
	return row
}

func TestMigrationRekeysAnonymousRow(t *testing.T) {
	f := newFixture(t)
	f.seedAnonymousUsage(t, "203.0.113.7", "fp-1", 3)

	userID := snowflake.ID(101)
	res, err := f.svc.MigrateAnonymousToUser(context.Background(), domain.MigrateRequest{
		UserID: userID.String(), IPAddress: "203.0.113.7", Fingerprint: "fp-1",
	})
	require.NoError(t, err)
	require.False(t, res.QuotaMerged)
	require.False(t, res.AlreadyMigrated)
	require.Equal(t, 3, res.CreditsUsedCarried)

	var row quotadomain.FreeQuotaUsage
	require.NoError(t, f.db.First(&row, "user_id = ?", userID).Error)
	require.Equal(t, 3, row.CreditsUsed)
	require.Nil(t, row.IPAddress)
	require.Nil(t, row.Fingerprint)
}

func TestMigrationMergesIntoExistingUserRow(t *testing.T) {
	f := newFixture(t)
	f.seedAnonymousUsage(t, "203.0.113.7", "fp-1", 3)

	userID := snowflake.ID(101)
	require.NoError(t, f.db.Create(&quotadomain.FreeQuotaUsage{
		ID:                 f.node.Generate(),
		UserID:             &userID,
		CreditsUsed:        2,
		LastReset:          f.clock.Now(),
		ResetIntervalHours: 24,
	}).Error)

	res, err := f.svc.MigrateAnonymousToUser(context.Background(), domain.MigrateRequest{
		UserID: userID.String(), IPAddress: "203.0.113.7", Fingerprint: "fp-1",
	})
	require.NoError(t, err)
	require.True(t, res.QuotaMerged)

	var rows []quotadomain.FreeQuotaUsage
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, 5, rows[0].CreditsUsed)
}

func TestMigrationMovesLedgerAndContacts(t *testing.T) {
	f := newFixture(t)
	f.seedAnonymousUsage(t, "203.0.113.7", "fp-1", 1)

	ip, fp := "203.0.113.7", "fp-1"
	require.NoError(t, f.db.Create(&ledgerdomain.UsageLedgerEntry{
		ID:              f.node.Generate(),
		IdentityKey:     "anon:203.0.113.7:fp-1",
		IPAddress:       &ip,
		Fingerprint:     &fp,
		OperationType:   ledgerdomain.OperationDeduct,
		CreditsConsumed: 1,
		CreatedAt:       f.clock.Now(),
	}).Error)

	sessionID := "sess-1"
	require.NoError(t, f.db.Create(&contactdomain.Contact{
		ID:                 f.node.Generate(),
		AnonymousSessionID: &sessionID,
		Email:              "someone@example.com",
	}).Error)

	userID := snowflake.ID(101)
	res, err := f.svc.MigrateAnonymousToUser(context.Background(), domain.MigrateRequest{
		UserID: userID.String(), SessionID: sessionID,
		IPAddress: "203.0.113.7", Fingerprint: "fp-1",
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.LedgerEntriesMoved)
	require.EqualValues(t, 1, res.ContactsMoved)

	var entry ledgerdomain.UsageLedgerEntry
	require.NoError(t, f.db.First(&entry, "operation_type = ?", ledgerdomain.OperationDeduct).Error)
	require.Equal(t, "user:"+userID.String(), entry.IdentityKey)
	require.NotNil(t, entry.UserID)

	var contact contactdomain.Contact
	require.NoError(t, f.db.First(&contact, "email = ?", "someone@example.com").Error)
	require.NotNil(t, contact.UserID)
	require.Nil(t, contact.AnonymousSessionID)

	// a migration marker entry was appended under the user's identity
	var markers int64
	require.NoError(t, f.db.Model(&ledgerdomain.UsageLedgerEntry{}).
		Where("operation_type = ?", ledgerdomain.OperationMigration).
		Count(&markers).Error)
	require.EqualValues(t, 1, markers)
}

func TestMigrationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedAnonymousUsage(t, "203.0.113.7", "fp-1", 3)

	userID := snowflake.ID(101)
	req := domain.MigrateRequest{
		UserID: userID.String(), IPAddress: "203.0.113.7", Fingerprint: "fp-1",
	}

	_, err := f.svc.MigrateAnonymousToUser(context.Background(), req)
	require.NoError(t, err)

	res, err := f.svc.MigrateAnonymousToUser(context.Background(), req)
	require.NoError(t, err)
	require.True(t, res.AlreadyMigrated)

	// no double-carry of consumption
	var row quotadomain.FreeQuotaUsage
	require.NoError(t, f.db.First(&row, "user_id = ?", userID).Error)
	require.Equal(t, 3, row.CreditsUsed)

	var markers int64
	require.NoError(t, f.db.Model(&ledgerdomain.UsageLedgerEntry{}).
		Where("operation_type = ?", ledgerdomain.OperationMigration).
		Count(&markers).Error)
	require.EqualValues(t, 1, markers)
}

func TestMigrationValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.MigrateAnonymousToUser(context.Background(), domain.MigrateRequest{
		UserID: "nope", IPAddress: "203.0.113.7",
	})
	require.ErrorIs(t, err, domain.ErrInvalidUser)

	_, err = f.svc.MigrateAnonymousToUser(context.Background(), domain.MigrateRequest{
		UserID: snowflake.ID(101).String(),
	})
	require.ErrorIs(t, err, domain.ErrInvalidIdentity)
}
