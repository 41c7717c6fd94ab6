package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/clock"
	"github.com/cardlens/creditd/internal/ledger/domain"
	"github.com/cardlens/creditd/pkg/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, fc *clock.FakeClock) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.UsageLedgerEntry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fc,
		Node:  node,
		Store: repository.ProvideStore[domain.UsageLedgerEntry](db),
	}).(*Service)
	return svc, db
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	svc, db := newTestService(t, fc)

	entry := &domain.UsageLedgerEntry{
		IdentityKey:         "anon:10.0.0.1:fp",
		OperationType:       domain.OperationDeduct,
		CreditsConsumed:     3,
		FreeCreditsConsumed: 3,
	}
	require.NoError(t, svc.Record(context.Background(), db, entry))
	require.NotZero(t, entry.ID)
	require.Equal(t, fc.Now(), entry.CreatedAt)
}

func TestRecordRejectsIncompleteEntries(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	svc, db := newTestService(t, fc)

	err := svc.Record(context.Background(), db, &domain.UsageLedgerEntry{OperationType: domain.OperationDeduct})
	require.ErrorIs(t, err, domain.ErrInvalidEntry)
}

func TestRecordDuplicateIdempotencyKey(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	svc, db := newTestService(t, fc)

	key := "refund-abc"
	first := &domain.UsageLedgerEntry{
		IdentityKey:    "user:101",
		OperationType:  domain.OperationReversal,
		IdempotencyKey: &key,
	}
	require.NoError(t, svc.Record(context.Background(), db, first))

	second := &domain.UsageLedgerEntry{
		IdentityKey:    "user:101",
		OperationType:  domain.OperationReversal,
		IdempotencyKey: &key,
	}
	require.ErrorIs(t, svc.Record(context.Background(), db, second), domain.ErrDuplicateEntry)

	found, err := svc.FindByIdempotencyKey(context.Background(), db, key)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, first.ID, found.ID)
}

func TestListPaginatesByCursor(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	svc, db := newTestService(t, fc)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Record(context.Background(), db, &domain.UsageLedgerEntry{
			IdentityKey:     "user:101",
			OperationType:   domain.OperationDeduct,
			CreditsConsumed: 1,
		}))
		fc.Advance(time.Minute)
	}

	req := domain.ListRequest{IdentityKey: "user:101"}
	req.PageSize = 2

	page1, info, err := svc.List(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.True(t, info.HasMore)
	require.NotEmpty(t, info.NextPageToken)

	req.PageToken = info.NextPageToken
	page2, info, err := svc.List(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.True(t, info.HasMore)

	// descending, so newest first and no overlap across pages
	require.True(t, page1[0].CreatedAt.After(page1[1].CreatedAt))
	require.NotEqual(t, page1[1].ID, page2[0].ID)

	req.PageToken = info.NextPageToken
	page3, info, err := svc.List(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	require.False(t, info.HasMore)
}

func TestStatsAggregates(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	svc, db := newTestService(t, fc)

	record := func(op domain.OperationType, n int) {
		require.NoError(t, svc.Record(context.Background(), db, &domain.UsageLedgerEntry{
			IdentityKey:     "user:101",
			OperationType:   op,
			CreditsConsumed: n,
		}))
	}

	record(domain.OperationDeduct, 3)
	record(domain.OperationDeduct, 2)
	record(domain.OperationCardScan, 6)
	record(domain.OperationReversal, 1)
	fc.Advance(31 * 24 * time.Hour)
	record(domain.OperationDeduct, 4)

	stats, err := svc.Stats(context.Background(), domain.StatsRequest{IdentityKey: "user:101"})
	require.NoError(t, err)
	require.Equal(t, 14, stats.TotalConsumed)
	require.Equal(t, 9, stats.ByOperation[domain.OperationDeduct])
	require.Equal(t, 6, stats.ByOperation[domain.OperationCardScan])
	require.Equal(t, 1, stats.ByOperation[domain.OperationReversal])
	require.Len(t, stats.ByMonth, 2)
	require.Equal(t, "2026-04", stats.ByMonth[0].Month)
	require.Equal(t, 11, stats.ByMonth[0].CreditsConsumed)
	require.Equal(t, "2026-05", stats.ByMonth[1].Month)
	require.Equal(t, 4, stats.ByMonth[1].CreditsConsumed)
}
