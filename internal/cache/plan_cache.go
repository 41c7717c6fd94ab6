package cache

import (
	"time"

	plandomain "github.com/cardlens/creditd/internal/plan/domain"
)

const (
	defaultPlanTTL     = 10 * time.Minute
	defaultFreePlanTTL = 1 * time.Minute
)

// PlanResolverCache stores catalog lookups for the entitlement hot path.
type PlanResolverCache interface {
	GetPlan(id string) (*plandomain.Plan, bool)
	SetPlan(id string, plan *plandomain.Plan)
	GetDefaultFreePlan() (*plandomain.Plan, bool)
	SetDefaultFreePlan(plan *plandomain.Plan)
	Invalidate()
}

type planResolverCache struct {
	plans    Cache[string, *plandomain.Plan]
	freePlan Cache[string, *plandomain.Plan]
}

func NewPlanResolverCache() PlanResolverCache {
	return &planResolverCache{
		plans:    NewTTLCache[string, *plandomain.Plan](),
		freePlan: NewTTLCache[string, *plandomain.Plan](),
	}
}

func (c *planResolverCache) GetPlan(id string) (*plandomain.Plan, bool) {
	return c.plans.Get(id)
}

func (c *planResolverCache) SetPlan(id string, plan *plandomain.Plan) {
	if plan == nil {
		return
	}
	c.plans.Set(id, plan, defaultPlanTTL)
}

func (c *planResolverCache) GetDefaultFreePlan() (*plandomain.Plan, bool) {
	return c.freePlan.Get("default")
}

func (c *planResolverCache) SetDefaultFreePlan(plan *plandomain.Plan) {
	if plan == nil {
		return
	}
	c.freePlan.Set("default", plan, defaultFreePlanTTL)
}

func (c *planResolverCache) Invalidate() {
	c.freePlan.Delete("default")
}
