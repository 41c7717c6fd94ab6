package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/cache"
	plandomain "github.com/cardlens/creditd/internal/plan/domain"
	planrepo "github.com/cardlens/creditd/internal/plan/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (plandomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&plandomain.Plan{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:            db,
		Log:           zap.NewNop(),
		Repo:          planrepo.Provide(),
		ResolverCache: cache.NewPlanResolverCache(),
	})
	return svc, db, node
}

func TestGetByIDAndCode(t *testing.T) {
	svc, db, node := newTestService(t)

	plan := &plandomain.Plan{
		ID:     node.Generate(),
		Code:   "basic",
		Name:   "Basic",
		Tier:   plandomain.TierBasic,
		Active: true,
	}
	require.NoError(t, db.Create(plan).Error)

	got, err := svc.Get(context.Background(), plan.ID.String())
	require.NoError(t, err)
	require.Equal(t, plan.Code, got.Code)

	got, err = svc.GetByCode(context.Background(), "basic")
	require.NoError(t, err)
	require.Equal(t, plan.ID, got.ID)

	_, err = svc.Get(context.Background(), "not-a-snowflake")
	require.ErrorIs(t, err, plandomain.ErrInvalidID)

	_, err = svc.Get(context.Background(), node.Generate().String())
	require.ErrorIs(t, err, plandomain.ErrPlanNotFound)
}

func TestDefaultFreePlanPrefersOldestCatalogRow(t *testing.T) {
	svc, db, node := newTestService(t)

	first := &plandomain.Plan{
		ID:                 node.Generate(),
		Code:               "free",
		Name:               "Free",
		Tier:               plandomain.TierFree,
		DailyLimit:         5,
		ResetIntervalHours: 24,
		Active:             true,
	}
	require.NoError(t, db.Create(first).Error)
	require.NoError(t, db.Create(&plandomain.Plan{
		ID:                 node.Generate(),
		Code:               "free-v2",
		Name:               "Free v2",
		Tier:               plandomain.TierFree,
		DailyLimit:         8,
		ResetIntervalHours: 24,
		Active:             true,
	}).Error)

	got, err := svc.DefaultFreePlan(context.Background())
	require.NoError(t, err)
	require.Equal(t, "free", got.Code)
	require.Equal(t, 5, got.DailyLimit)
}

func TestDefaultFreePlanFallsBackToConfig(t *testing.T) {
	svc, _, _ := newTestService(t)

	got, err := svc.DefaultFreePlan(context.Background())
	require.NoError(t, err)
	require.Equal(t, "free-fallback", got.Code)
	require.Equal(t, 5, got.DailyLimit)
	require.Equal(t, 24, got.ResetIntervalHours)
}
