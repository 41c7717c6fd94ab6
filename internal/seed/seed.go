// Package seed bootstraps the plan catalog so a fresh install serves
// free quota immediately.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/cardlens/creditd/internal/plan/domain"
	"gorm.io/gorm"
)

func defaultPlans() []plandomain.Plan {
	return []plandomain.Plan{
		{
			Code:               "free",
			Name:               "Free",
			Tier:               plandomain.TierFree,
			DailyLimit:         5,
			ResetIntervalHours: 24,
			Active:             true,
		},
		{
			Code:               "basic",
			Name:               "Basic",
			Tier:               plandomain.TierBasic,
			CreditLimit:        500,
			PriceMonthlyCents:  1900,
			IsSubscription:     true,
			DailyLimit:         10,
			ResetIntervalHours: 24,
			Active:             true,
		},
		{
			Code:               "premium",
			Name:               "Premium",
			Tier:               plandomain.TierPremium,
			CreditLimit:        2500,
			PriceMonthlyCents:  4900,
			IsSubscription:     true,
			DailyLimit:         25,
			ResetIntervalHours: 24,
			Active:             true,
		},
		{
			Code:               "enterprise",
			Name:               "Enterprise",
			Tier:               plandomain.TierEnterprise,
			CreditLimit:        10000,
			PriceMonthlyCents:  19900,
			IsSubscription:     true,
			DailyLimit:         100,
			ResetIntervalHours: 24,
			Active:             true,
		},
	}
}

// EnsureDefaultPlans inserts the stock catalog, keyed by code. Existing
// rows are left untouched so operator edits survive restarts.
func EnsureDefaultPlans(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, plan := range defaultPlans() {
			var existing plandomain.Plan
			err := tx.Where("code = ?", plan.Code).Take(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			plan.ID = node.Generate()
			if err := tx.Create(&plan).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
