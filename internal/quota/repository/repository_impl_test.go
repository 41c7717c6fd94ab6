package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/quota/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.FreeQuotaUsage{}))
	return db
}

func seedRow(t *testing.T, db *gorm.DB, used int, lastReset time.Time) *domain.FreeQuotaUsage {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ip, fp := "203.0.113.7", "fp-1"
	row := &domain.FreeQuotaUsage{
		ID:                 node.Generate(),
		IPAddress:          &ip,
		Fingerprint:        &fp,
		CreditsUsed:        used,
		LastReset:          lastReset,
		ResetIntervalHours: 24,
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func TestDeductGuardedByLimit(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	row := seedRow(t, db, 3, now)
	repo := Provide()

	ok, err := repo.Deduct(context.Background(), db, row.ID, 2, 5, now)
	require.NoError(t, err)
	require.True(t, ok)

	// the guard rejects anything past the limit without changing the row
	ok, err = repo.Deduct(context.Background(), db, row.ID, 1, 5, now)
	require.NoError(t, err)
	require.False(t, ok)

	var stored domain.FreeQuotaUsage
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	require.Equal(t, 5, stored.CreditsUsed)
}

func TestResetIfDueIsCompareAndSwap(t *testing.T) {
	db := newTestDB(t)
	t0 := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	row := seedRow(t, db, 5, t0)
	repo := Provide()

	now := t0.Add(25 * time.Hour)
	won, err := repo.ResetIfDue(context.Background(), db, row.ID, t0, now)
	require.NoError(t, err)
	require.True(t, won)

	// a second caller holding the stale last_reset loses
	won, err = repo.ResetIfDue(context.Background(), db, row.ID, t0, now.Add(time.Second))
	require.NoError(t, err)
	require.False(t, won)

	var stored domain.FreeQuotaUsage
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	require.Equal(t, 0, stored.CreditsUsed)
}

func TestRefundFloorsAtZero(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	row := seedRow(t, db, 2, now)
	repo := Provide()

	require.NoError(t, repo.Refund(context.Background(), db, row.ID, 5, now))

	var stored domain.FreeQuotaUsage
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	require.Equal(t, 0, stored.CreditsUsed)
}

func TestAssignToUserOnlyRekeysAnonymousRows(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	row := seedRow(t, db, 2, now)
	repo := Provide()

	userID := snowflake.ID(101)
	require.NoError(t, repo.AssignToUser(context.Background(), db, row.ID, userID, now))

	var stored domain.FreeQuotaUsage
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	require.NotNil(t, stored.UserID)
	require.Equal(t, userID, *stored.UserID)
	require.Nil(t, stored.IPAddress)
	require.Nil(t, stored.Fingerprint)

	// already owned, a second rekey to another user is a no-op
	require.NoError(t, repo.AssignToUser(context.Background(), db, row.ID, snowflake.ID(202), now))
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	require.Equal(t, userID, *stored.UserID)
}
