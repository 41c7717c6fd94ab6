package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cardlens/creditd/internal/cache"
	"github.com/cardlens/creditd/internal/config"
	plandomain "github.com/cardlens/creditd/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Repo          plandomain.Repository
	ResolverCache cache.PlanResolverCache
	Limits        *config.LimitsConfigHolder `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	repo          plandomain.Repository
	resolverCache cache.PlanResolverCache
	limits        *config.LimitsConfigHolder
}

func NewService(p ServiceParam) plandomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("plan.service"),
		repo:          p.Repo,
		resolverCache: p.ResolverCache,
		limits:        p.Limits,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*plandomain.Plan, error) {
	planID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, plandomain.ErrInvalidID
	}

	if cached, ok := s.resolverCache.GetPlan(planID.String()); ok {
		return cached, nil
	}

	plan, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}

	s.resolverCache.SetPlan(planID.String(), plan)
	return plan, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*plandomain.Plan, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, plandomain.ErrInvalidCode
	}

	plan, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) List(ctx context.Context) ([]*plandomain.Plan, error) {
	return s.repo.List(ctx, s.db, true)
}

// DefaultFreePlan resolves the anonymous free-quota profile.
//
// The catalog wins when it has an active free-tier row (oldest first, so
// adding a second free plan never reshuffles existing identities). When
// the catalog is empty the hot-reloadable limits config supplies a
// synthetic profile instead of failing open.
func (s *Service) DefaultFreePlan(ctx context.Context) (*plandomain.Plan, error) {
	if cached, ok := s.resolverCache.GetDefaultFreePlan(); ok {
		return cached, nil
	}

	plan, err := s.repo.FindOldestActiveFree(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		plan = s.fallbackFreePlan()
		s.log.Warn("no active free plan in catalog, using configured fallback",
			zap.Int("daily_limit", plan.DailyLimit),
		)
	}

	s.resolverCache.SetDefaultFreePlan(plan)
	return plan, nil
}

func (s *Service) fallbackFreePlan() *plandomain.Plan {
	profile := config.DefaultLimitsConfig().Anonymous
	if s.limits != nil {
		profile = s.limits.Get().Anonymous
	}
	return &plandomain.Plan{
		Code:               "free-fallback",
		Name:               "Free",
		Tier:               plandomain.TierFree,
		DailyLimit:         profile.DailyLimit,
		ResetIntervalHours: profile.ResetIntervalHours,
		Active:             true,
	}
}
