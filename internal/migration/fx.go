package migration

import (
	"github.com/cardlens/creditd/internal/config"
	contactdomain "github.com/cardlens/creditd/internal/contact/domain"
	entitlementdomain "github.com/cardlens/creditd/internal/entitlement/domain"
	ledgerdomain "github.com/cardlens/creditd/internal/ledger/domain"
	paymentdomain "github.com/cardlens/creditd/internal/payment/domain"
	plandomain "github.com/cardlens/creditd/internal/plan/domain"
	quotadomain "github.com/cardlens/creditd/internal/quota/domain"
	"github.com/cardlens/creditd/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql are for local and self-hosted setups where
			// schema autogeneration is good enough
			if err := conn.AutoMigrate(
				&plandomain.Plan{},
				&quotadomain.FreeQuotaUsage{},
				&entitlementdomain.PackageEntitlement{},
				&paymentdomain.Payment{},
				&paymentdomain.WebhookEvent{},
				&ledgerdomain.UsageLedgerEntry{},
				&contactdomain.Contact{},
			); err != nil {
				return err
			}
		}

		return seed.EnsureDefaultPlans(conn)
	}),
)
